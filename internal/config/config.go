// Package config holds runtime configuration for droidbridge.
package config

import (
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/droidbridge/droidbridge/internal/constants"
)

// Environment variable overrides.
const (
	EnvBridgeBinary = "DROIDBRIDGE_ADB"
	EnvHashAlgo     = "DROIDBRIDGE_HASH_ALGO"
	EnvSerial       = "DROIDBRIDGE_SERIAL"
)

// Config is the runtime configuration for bridge commands and planning.
type Config struct {
	// BridgeBinary is the path to the adb binary. Empty means resolve
	// "adb" from PATH.
	BridgeBinary string

	// Serial selects a specific device when more than one is attached.
	Serial string

	// HashAlgorithm selects the digest used for duplicate detection:
	// "sha256", "sha1" or "md5". Consistent within one planning call.
	HashAlgorithm string

	// CommandTimeout bounds captured (non-streaming) bridge commands.
	CommandTimeout time.Duration

	// CancelGracePeriod is the wait between terminate and kill on cancel.
	CancelGracePeriod time.Duration
}

// Default returns a Config with defaults applied, honoring environment
// overrides.
func Default() *Config {
	cfg := &Config{
		HashAlgorithm:     "sha256",
		CommandTimeout:    constants.CommandTimeout,
		CancelGracePeriod: constants.CancelGracePeriod,
	}

	if v := os.Getenv(EnvBridgeBinary); v != "" {
		cfg.BridgeBinary = v
	}
	if v := os.Getenv(EnvHashAlgo); v != "" {
		cfg.HashAlgorithm = v
	}
	if v := os.Getenv(EnvSerial); v != "" {
		cfg.Serial = v
	}

	return cfg
}

// Validate checks the configuration for usable values.
func (c *Config) Validate() error {
	switch c.HashAlgorithm {
	case "sha256", "sha1", "md5":
	default:
		return fmt.Errorf("unsupported hash algorithm: %q", c.HashAlgorithm)
	}

	if c.CommandTimeout <= 0 {
		return fmt.Errorf("command timeout must be positive")
	}
	if c.CancelGracePeriod <= 0 {
		return fmt.Errorf("cancel grace period must be positive")
	}
	return nil
}

// ResolveBinary returns the bridge binary path to execute. When
// BridgeBinary is unset, "adb" is looked up on PATH.
func (c *Config) ResolveBinary() (string, error) {
	if c.BridgeBinary != "" {
		if _, err := os.Stat(c.BridgeBinary); err != nil {
			return "", fmt.Errorf("bridge binary not found at %s: %w", c.BridgeBinary, err)
		}
		return c.BridgeBinary, nil
	}

	path, err := exec.LookPath("adb")
	if err != nil {
		return "", fmt.Errorf("adb not found on PATH: %w", err)
	}
	return path, nil
}
