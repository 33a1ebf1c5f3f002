// Package transfer runs device file transfers as child processes of the
// bridge binary and tracks their progress line by line.
package transfer

import (
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/droidbridge/droidbridge/internal/logging"
)

// ProcState describes the lifecycle of the managed child process.
type ProcState int

const (
	// ProcNotStarted means no child process has been launched yet.
	ProcNotStarted ProcState = iota
	// ProcRunning means a child process is alive and owned by the controller.
	ProcRunning
	// ProcExited means the last child process has been reaped.
	ProcExited
)

// ErrProcessActive is returned by Start while a previous child is still running.
var ErrProcessActive = errors.New("a transfer process is already running")

// Controller owns at most one live child process at a time. Start launches a
// child, Wait reaps it, and Cancel terminates it with a grace period. The
// exited state keeps the last exit code but no process handle, so a finished
// child can never be signalled by a late Cancel.
type Controller struct {
	mu       sync.Mutex
	state    ProcState
	cmd      *exec.Cmd
	done     chan struct{}
	exitCode int
	grace    time.Duration
	log      *logging.Logger
}

// NewController returns a controller that gives a cancelled child the given
// grace period between SIGTERM and SIGKILL.
func NewController(grace time.Duration) *Controller {
	return &Controller{
		state: ProcNotStarted,
		grace: grace,
		log:   logging.NewLogger("proc"),
	}
}

// State reports the current lifecycle state.
func (c *Controller) State() ProcState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ExitCode returns the exit code of the last reaped child. Only meaningful
// once State reports ProcExited.
func (c *Controller) ExitCode() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exitCode
}

// Start launches cmd and takes ownership of it. It fails with
// ErrProcessActive if a previous child has not exited yet. The caller must
// follow a successful Start with exactly one Wait.
func (c *Controller) Start(cmd *exec.Cmd) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == ProcRunning {
		return ErrProcessActive
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting bridge process: %w", err)
	}
	c.cmd = cmd
	c.state = ProcRunning
	c.done = make(chan struct{})
	c.log.Debug().Int("pid", cmd.Process.Pid).Msg("child process started")
	return nil
}

// Wait blocks until the child exits, records its exit code, and releases the
// process handle. It returns the exit code, or -1 when the child was killed
// by a signal or could not be waited on.
func (c *Controller) Wait() int {
	c.mu.Lock()
	cmd := c.cmd
	done := c.done
	c.mu.Unlock()
	if cmd == nil {
		return c.ExitCode()
	}

	err := cmd.Wait()
	code := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		} else {
			code = -1
		}
	}

	c.mu.Lock()
	c.state = ProcExited
	c.exitCode = code
	c.cmd = nil
	c.mu.Unlock()
	close(done)
	c.log.Debug().Int("exit_code", code).Msg("child process reaped")
	return code
}

// Cancel terminates the running child: a termination signal first, then a
// hard kill after the grace period. It returns true only when there was a
// live child to cancel. A child that already exited, or one that finishes
// between the liveness check and the signal, yields false.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	if c.state != ProcRunning || c.cmd == nil || c.cmd.Process == nil {
		c.mu.Unlock()
		return false
	}
	proc := c.cmd.Process
	done := c.done
	c.mu.Unlock()

	select {
	case <-done:
		return false
	default:
	}

	if err := terminate(proc); err != nil {
		// The child won the race and exited before the signal landed.
		return false
	}
	c.log.Debug().Msg("sent termination signal to child process")

	select {
	case <-done:
	case <-time.After(c.grace):
		c.log.Warn().Msg("child ignored termination signal, killing")
		_ = proc.Kill()
		<-done
	}
	return true
}
