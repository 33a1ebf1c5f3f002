// Package adb runs commands against the Android Debug Bridge binary.
//
// All commands are spawned with an argv array; no shell string is ever
// built on the host side. Callers are expected to have validated paths
// and serials with util/sanitize before they reach this package.
package adb

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/droidbridge/droidbridge/internal/config"
	"github.com/droidbridge/droidbridge/internal/logging"
)

// Runner executes bridge commands. The streaming path (transfers) builds
// an unstarted command so the caller keeps ownership of the process
// lifecycle; the captured path blocks until the command finishes.
type Runner interface {
	// Run executes a command and captures its output. exitCode is -1
	// when the process could not be started.
	Run(ctx context.Context, args ...string) (stdout, stderr string, exitCode int, err error)

	// Command builds an unstarted command for the given bridge
	// subcommand, with the binary path and device selector applied.
	Command(args ...string) *exec.Cmd
}

// ExecRunner is the production Runner backed by a resolved adb binary.
type ExecRunner struct {
	binary  string
	serial  string
	timeout time.Duration
	log     *logging.Logger
}

// NewExecRunner resolves the bridge binary from cfg and returns a runner
// bound to it.
func NewExecRunner(cfg *config.Config) (*ExecRunner, error) {
	binary, err := cfg.ResolveBinary()
	if err != nil {
		return nil, err
	}

	return &ExecRunner{
		binary:  binary,
		serial:  cfg.Serial,
		timeout: cfg.CommandTimeout,
		log:     logging.NewLogger("adb"),
	}, nil
}

// Binary returns the resolved bridge binary path.
func (r *ExecRunner) Binary() string {
	return r.binary
}

// buildArgs prepends the device selector when a serial is configured.
func (r *ExecRunner) buildArgs(args []string) []string {
	if r.serial == "" {
		return args
	}
	return append([]string{"-s", r.serial}, args...)
}

// Run executes a bridge command and captures stdout and stderr
// separately. The configured timeout applies on top of ctx.
func (r *ExecRunner) Run(ctx context.Context, args ...string) (string, string, int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	full := r.buildArgs(args)
	cmd := exec.CommandContext(ctx, r.binary, full...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.log.Debugf("run: %s %s", r.binary, strings.Join(full, " "))

	err := cmd.Run()
	outStr := strings.TrimSpace(stdout.String())
	errStr := strings.TrimSpace(stderr.String())

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return outStr, errStr, exitErr.ExitCode(), nil
		}
		// Spawn failure or context timeout; no exit code available.
		return outStr, errStr, -1, err
	}

	return outStr, errStr, 0, nil
}

// Command builds an unstarted command. The caller owns starting, waiting
// and killing it.
func (r *ExecRunner) Command(args ...string) *exec.Cmd {
	return exec.Command(r.binary, r.buildArgs(args)...)
}
