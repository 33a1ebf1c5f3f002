//go:build !windows

package transfer

import (
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControllerCancelWithNoProcess(t *testing.T) {
	c := NewController(2 * time.Second)
	assert.False(t, c.Cancel())
	assert.Equal(t, ProcNotStarted, c.State())
}

func TestControllerCancelAfterExit(t *testing.T) {
	c := NewController(2 * time.Second)
	require.NoError(t, c.Start(exec.Command("true")))
	code := c.Wait()
	assert.Equal(t, 0, code)
	assert.Equal(t, ProcExited, c.State())

	// The child is gone, so there is nothing to cancel.
	assert.False(t, c.Cancel())
	assert.Equal(t, 0, c.ExitCode())
}

func TestControllerCancelRunningProcess(t *testing.T) {
	c := NewController(2 * time.Second)
	require.NoError(t, c.Start(exec.Command("sleep", "30")))

	waited := make(chan int, 1)
	go func() { waited <- c.Wait() }()

	// Give the reaper a moment to block in Wait before signalling.
	time.Sleep(50 * time.Millisecond)
	start := time.Now()
	assert.True(t, c.Cancel())
	assert.Less(t, time.Since(start), 5*time.Second)

	select {
	case code := <-waited:
		assert.NotEqual(t, 0, code)
	case <-time.After(5 * time.Second):
		t.Fatal("child was not reaped after cancel")
	}
	assert.Equal(t, ProcExited, c.State())
}

func TestControllerRejectsSecondStart(t *testing.T) {
	c := NewController(2 * time.Second)
	require.NoError(t, c.Start(exec.Command("sleep", "30")))
	defer func() {
		go c.Wait()
		c.Cancel()
	}()

	err := c.Start(exec.Command("true"))
	assert.ErrorIs(t, err, ErrProcessActive)
}

func TestControllerStartFailure(t *testing.T) {
	c := NewController(2 * time.Second)
	err := c.Start(exec.Command("/nonexistent/droidbridge-test-binary"))
	require.Error(t, err)
	assert.Equal(t, ProcNotStarted, c.State())
}
