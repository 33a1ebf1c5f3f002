//go:build !windows

package transfer

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/droidbridge/droidbridge/internal/events"
)

// scriptBuilder ignores the bridge argv and runs a shell script instead, so
// tests can feed the manager arbitrary tool output.
type scriptBuilder struct {
	script string
}

func (b scriptBuilder) Command(args ...string) *exec.Cmd {
	return exec.Command("/bin/sh", "-c", b.script)
}

type progressRecorder struct {
	mu     sync.Mutex
	values []int
}

func (r *progressRecorder) record(pct int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, pct)
}

func (r *progressRecorder) last() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.values) == 0 {
		return -1
	}
	return r.values[len(r.values)-1]
}

func pullRequest(t *testing.T) Request {
	t.Helper()
	return Request{
		Direction:  DirectionPull,
		SourcePath: "/sdcard/DCIM",
		DestPath:   t.TempDir(),
	}
}

func TestTransferCompletesAtExactlyHundred(t *testing.T) {
	// 101 lines with no percentage markers exercise the heuristic estimator,
	// then the summary line and a clean exit must land on exactly 100.
	var sb strings.Builder
	for i := 0; i < 101; i++ {
		fmt.Fprintf(&sb, "echo 'copying item %d'\n", i)
	}
	sb.WriteString("echo '3 files pulled. (100%)'\n")
	sb.WriteString("exit 0\n")

	m := NewManager(scriptBuilder{script: sb.String()}, nil)
	rec := &progressRecorder{}
	m.SetProgressCallback(rec.record)

	gen, results, err := m.Start(pullRequest(t))
	require.NoError(t, err)
	require.Equal(t, uint64(1), gen)

	res := waitForResult(t, results)
	assert.True(t, res.Success)
	assert.False(t, res.Cancelled)
	assert.Equal(t, 3, res.FilesTransferred)
	assert.Equal(t, 100, rec.last())
	assert.False(t, m.Active())
}

func TestTransferFailureCarriesExitCode(t *testing.T) {
	script := "echo 'adb: error: remote object does not exist'; exit 1"
	m := NewManager(scriptBuilder{script: script}, nil)

	_, results, err := m.Start(pullRequest(t))
	require.NoError(t, err)

	res := waitForResult(t, results)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "exit code 1")
	assert.Contains(t, res.Message, "remote object does not exist")
}

func TestTransferRejectsConcurrentStart(t *testing.T) {
	m := NewManager(scriptBuilder{script: "exec sleep 30"}, nil)
	_, results, err := m.Start(pullRequest(t))
	require.NoError(t, err)

	_, _, err = m.Start(pullRequest(t))
	assert.ErrorIs(t, err, ErrTransferActive)

	require.True(t, m.Cancel())
	waitForResult(t, results)
}

func TestCancelRunningTransfer(t *testing.T) {
	m := NewManager(scriptBuilder{script: "echo started; exec sleep 30"}, nil)
	_, results, err := m.Start(pullRequest(t))
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	assert.True(t, m.Cancel())

	res := waitForResult(t, results)
	assert.True(t, res.Cancelled)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "cancelled")
	assert.False(t, m.Active())
}

func TestCancelWithNoTransfer(t *testing.T) {
	m := NewManager(scriptBuilder{script: "true"}, nil)
	assert.False(t, m.Cancel())
}

func TestCancelAfterTransferFinished(t *testing.T) {
	m := NewManager(scriptBuilder{script: "exit 0"}, nil)
	_, results, err := m.Start(pullRequest(t))
	require.NoError(t, err)
	waitForResult(t, results)

	assert.False(t, m.Cancel())
}

func TestStaleGenerationUpdatesAreDropped(t *testing.T) {
	m := NewManager(scriptBuilder{script: "true"}, nil)
	rec := &progressRecorder{}
	m.SetProgressCallback(rec.record)

	current := m.generation.Add(1)
	m.emitProgress(current-1, 42)
	assert.Equal(t, -1, rec.last(), "stale generation must not reach the callback")

	m.emitProgress(current, 42)
	assert.Equal(t, 42, rec.last())
}

func TestBuildTransferArgs(t *testing.T) {
	dir := t.TempDir()
	localFile := filepath.Join(dir, "photo.jpg")
	require.NoError(t, os.WriteFile(localFile, []byte("data"), 0o644))

	t.Run("pull", func(t *testing.T) {
		dest := filepath.Join(dir, "out")
		args, err := buildTransferArgs(Request{
			Direction:  DirectionPull,
			SourcePath: "/sdcard/DCIM",
			DestPath:   dest,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"pull", "/sdcard/DCIM", dest}, args)
		assert.DirExists(t, dest)
	})

	t.Run("push", func(t *testing.T) {
		args, err := buildTransferArgs(Request{
			Direction:  DirectionPush,
			SourcePath: localFile,
			DestPath:   "/sdcard/upload",
			SingleFile: true,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"push", localFile, "/sdcard/upload"}, args)
	})

	t.Run("hostile device path", func(t *testing.T) {
		_, err := buildTransferArgs(Request{
			Direction:  DirectionPull,
			SourcePath: "/sdcard; rm -rf /",
			DestPath:   dir,
		})
		assert.Error(t, err)
	})

	t.Run("missing push source", func(t *testing.T) {
		_, err := buildTransferArgs(Request{
			Direction:  DirectionPush,
			SourcePath: filepath.Join(dir, "missing.bin"),
			DestPath:   "/sdcard/upload",
		})
		assert.Error(t, err)
	})

	t.Run("push single file rejects directory", func(t *testing.T) {
		_, err := buildTransferArgs(Request{
			Direction:  DirectionPush,
			SourcePath: dir,
			DestPath:   "/sdcard/upload",
			SingleFile: true,
		})
		assert.Error(t, err)
	})

	t.Run("unknown direction", func(t *testing.T) {
		_, err := buildTransferArgs(Request{Direction: "sideways"})
		assert.Error(t, err)
	})
}

func TestManagerPublishesLifecycleEvents(t *testing.T) {
	bus := events.NewEventBus(100)
	ch := bus.SubscribeAll()

	m := NewManager(scriptBuilder{script: "echo '(50%)'; exit 0"}, bus)
	gen, results, err := m.Start(pullRequest(t))
	require.NoError(t, err)

	res := waitForResult(t, results)
	require.True(t, res.Success)
	bus.Close()

	seen := map[events.EventType]bool{}
	lastPct := -1
	for ev := range ch {
		seen[ev.Type()] = true
		if pe, ok := ev.(*events.ProgressEvent); ok {
			assert.Equal(t, gen, pe.Generation)
			lastPct = pe.Percentage
		}
	}
	assert.True(t, seen[events.EventTransferStarted])
	assert.True(t, seen[events.EventProgress])
	assert.True(t, seen[events.EventTransferCompleted])
	assert.Equal(t, 100, lastPct)
}

func TestCancelledResultIsDistinctFromFailure(t *testing.T) {
	m := NewManager(scriptBuilder{script: "echo started; exec sleep 30"}, nil)
	_, results, err := m.Start(pullRequest(t))
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	require.True(t, m.Cancel())
	cancelled := waitForResult(t, results)

	m2 := NewManager(scriptBuilder{script: "exit 1"}, nil)
	_, results2, err := m2.Start(pullRequest(t))
	require.NoError(t, err)
	failed := waitForResult(t, results2)

	// Both are unsuccessful, but only the cancelled run says so.
	assert.False(t, cancelled.Success)
	assert.True(t, cancelled.Cancelled)
	assert.False(t, failed.Success)
	assert.False(t, failed.Cancelled)
}

func TestParseFilesSummary(t *testing.T) {
	cases := []struct {
		line string
		n    int
		ok   bool
	}{
		{"3 files pulled. 0 files skipped.", 3, true},
		{"1 file pushed.", 1, true},
		{"12 files pushed. (4.2 MB/s)", 12, true},
		{"copying DCIM/photo.jpg", 0, false},
	}
	for _, tc := range cases {
		n, ok := parseFilesSummary(tc.line)
		assert.Equal(t, tc.ok, ok, tc.line)
		if tc.ok {
			assert.Equal(t, tc.n, n, tc.line)
		}
	}
}

func waitForResult(t *testing.T, results <-chan Result) Result {
	t.Helper()
	select {
	case res := <-results:
		return res
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for transfer result")
		return Result{}
	}
}
