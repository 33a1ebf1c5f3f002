// Package sanitize validates paths and device serials before they are
// passed to the bridge tool.
//
// The bridge binary is always invoked with an argv array, never a shell
// string, but device-side paths still end up inside `shell` subcommands,
// so anything that could be interpreted by the device shell is rejected
// here rather than escaped.
package sanitize

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// dangerous substrings for device-side paths; covers command injection
// and command substitution patterns
var devicePathPatterns = []string{
	";", "|", "&", "$(", "${", "`", "\n", "\r",
	"&&", "||", ">>",
}

var plainPathRe = regexp.MustCompile(`^[a-zA-Z0-9_\-./ ]+$`)

// serialRe matches USB serials and tcpip endpoints (host:port)
var serialRe = regexp.MustCompile(`^[a-zA-Z0-9.:_-]+$`)

// DevicePath validates a device-side path.
// Returns the trimmed path or an error describing the first violation.
func DevicePath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("device path cannot be empty")
	}

	path = strings.TrimSpace(path)

	if strings.ContainsRune(path, 0) {
		return "", fmt.Errorf("device path contains null byte")
	}

	for _, pattern := range devicePathPatterns {
		if strings.Contains(path, pattern) {
			return "", fmt.Errorf("device path contains dangerous pattern %q", pattern)
		}
	}

	// Device paths are normally absolute; tolerate explicit relative paths
	// but hold anything else to a conservative character set.
	if !strings.HasPrefix(path, "/") && !strings.HasPrefix(path, "./") {
		if !plainPathRe.MatchString(path) {
			return "", fmt.Errorf("device path contains invalid characters")
		}
	}

	return path, nil
}

// LocalPath validates a local filesystem path, normalizing it to an
// absolute path. When baseDir is non-empty the result must stay inside
// baseDir; traversal outside it is rejected.
func LocalPath(path, baseDir string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("local path cannot be empty")
	}

	path = strings.TrimSpace(path)

	if strings.ContainsRune(path, 0) {
		return "", fmt.Errorf("local path contains null byte")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("invalid local path: %w", err)
	}
	abs = filepath.Clean(abs)

	if baseDir != "" {
		baseAbs, err := filepath.Abs(baseDir)
		if err != nil {
			return "", fmt.Errorf("invalid base directory: %w", err)
		}
		baseAbs = filepath.Clean(baseAbs)
		if abs != baseAbs && !strings.HasPrefix(abs, baseAbs+string(os.PathSeparator)) {
			return "", fmt.Errorf("path traversal detected: %s is outside %s", abs, baseAbs)
		}
	}

	return abs, nil
}

// DeviceSerial validates a device serial as reported by the bridge tool.
func DeviceSerial(serial string) (string, error) {
	if serial == "" {
		return "", fmt.Errorf("device serial cannot be empty")
	}

	if !serialRe.MatchString(serial) {
		return "", fmt.Errorf("device serial contains invalid characters")
	}

	return serial, nil
}
