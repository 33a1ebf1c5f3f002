package transfer

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/droidbridge/droidbridge/internal/constants"
	"github.com/droidbridge/droidbridge/internal/events"
	"github.com/droidbridge/droidbridge/internal/logging"
	"github.com/droidbridge/droidbridge/internal/progress"
	"github.com/droidbridge/droidbridge/internal/util/sanitize"
)

// Direction selects which way files move between host and device.
type Direction string

const (
	// DirectionPull copies files from the device to the host.
	DirectionPull Direction = "pull"
	// DirectionPush copies files from the host to the device.
	DirectionPush Direction = "push"
)

// Request describes one transfer to execute.
type Request struct {
	Direction  Direction
	SourcePath string
	DestPath   string
	// SingleFile marks a transfer of one file rather than a directory tree.
	SingleFile bool
}

// Result is the terminal outcome of a transfer.
type Result struct {
	Generation uint64
	Success    bool
	Cancelled  bool
	Message    string
	// FilesTransferred is parsed from the tool's summary line when present.
	FilesTransferred int
}

// ErrTransferActive is returned by Start while a transfer is in flight.
var ErrTransferActive = errors.New("a transfer is already in progress")

// CommandBuilder constructs an unstarted bridge command for the given
// arguments. Satisfied by adb.ExecRunner.
type CommandBuilder interface {
	Command(args ...string) *exec.Cmd
}

var filesSummaryRe = regexp.MustCompile(`(?i)(\d+)\s+files?\s+(?:pulled|pushed)`)

// Manager runs one transfer at a time. Each started transfer is stamped with
// a fresh generation number; progress and status emissions carry that stamp
// and are dropped once the manager has moved on, so a cancelled or superseded
// transfer can never update the caller with stale values.
type Manager struct {
	builder    CommandBuilder
	controller *Controller
	bus        *events.EventBus
	log        *logging.Logger

	generation atomic.Uint64
	active     atomic.Bool
	cancelled  atomic.Bool

	mu         sync.Mutex
	onProgress func(int)
	onStatus   func(string)
}

// NewManager wires a manager to a command builder and an optional event bus.
// A nil bus disables event publication but leaves callbacks working.
func NewManager(builder CommandBuilder, bus *events.EventBus) *Manager {
	return &Manager{
		builder:    builder,
		controller: NewController(constants.CancelGracePeriod),
		bus:        bus,
		log:        logging.NewLogger("transfer"),
	}
}

// SetProgressCallback registers a callback for percentage updates. Updates
// from stale generations are never delivered.
func (m *Manager) SetProgressCallback(fn func(int)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onProgress = fn
}

// SetStatusCallback registers a callback for status line updates.
func (m *Manager) SetStatusCallback(fn func(string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStatus = fn
}

// Generation returns the stamp of the most recently started transfer.
func (m *Manager) Generation() uint64 {
	return m.generation.Load()
}

// Active reports whether a transfer is currently running.
func (m *Manager) Active() bool {
	return m.active.Load()
}

// Start validates the request, launches the bridge process, and begins
// consuming its output on a worker goroutine. It returns the generation
// stamp of the new transfer and a channel that receives exactly one terminal
// Result. Only one transfer may run at a time.
func (m *Manager) Start(req Request) (uint64, <-chan Result, error) {
	if !m.active.CompareAndSwap(false, true) {
		return 0, nil, ErrTransferActive
	}

	args, err := buildTransferArgs(req)
	if err != nil {
		m.active.Store(false)
		return 0, nil, err
	}

	gen := m.generation.Add(1)
	m.cancelled.Store(false)

	cmd := m.builder.Command(args...)
	stream, err := mergedOutput(cmd)
	if err != nil {
		m.active.Store(false)
		return 0, nil, err
	}
	if err := m.controller.Start(cmd); err != nil {
		m.active.Store(false)
		return 0, nil, err
	}

	m.log.Info().
		Uint64("generation", gen).
		Str("direction", string(req.Direction)).
		Str("source", req.SourcePath).
		Str("dest", req.DestPath).
		Msg("transfer started")
	if m.bus != nil {
		m.bus.Publish(events.TransferEvent{
			BaseEvent:  events.NewBaseEvent(events.EventTransferStarted),
			Generation: gen,
			Direction:  string(req.Direction),
			Source:     req.SourcePath,
			Dest:       req.DestPath,
		})
	}

	results := make(chan Result, 1)
	go m.run(gen, req, stream, results)
	return gen, results, nil
}

// Cancel stops the running transfer. It first invalidates the current
// generation so in-flight output can no longer surface as progress, then
// terminates the child. Returns false when there is nothing live to cancel.
func (m *Manager) Cancel() bool {
	if !m.active.Load() {
		return false
	}
	m.cancelled.Store(true)
	m.generation.Add(1)
	ok := m.controller.Cancel()
	if !ok {
		m.cancelled.Store(false)
	}
	return ok
}

func (m *Manager) run(gen uint64, req Request, stream *bufio.Scanner, results chan<- Result) {
	state := progress.NewState(time.Now())
	m.emitProgress(gen, 0)
	m.emitStatus(gen, fmt.Sprintf("Starting %s: %s", req.Direction, req.SourcePath))

	files := 0
	lastLine := ""
	for stream.Scan() {
		line := strings.TrimSpace(stream.Text())
		if line == "" {
			continue
		}
		lastLine = line
		if n, ok := parseFilesSummary(line); ok {
			files = n
		}
		if pct, changed := state.ObserveLine(line, time.Now()); changed {
			m.emitProgress(gen, pct)
		}
		m.emitStatus(gen, line)
	}
	streamErr := stream.Err()
	code := m.controller.Wait()

	res := Result{Generation: gen, FilesTransferred: files}
	switch {
	case m.cancelled.Load():
		res.Cancelled = true
		res.Message = "Transfer cancelled by user."
		m.log.Info().Uint64("generation", gen).Msg("transfer cancelled")
		if m.bus != nil {
			m.bus.Publish(events.TransferEvent{
				BaseEvent:  events.NewBaseEvent(events.EventTransferCancelled),
				Generation: gen,
				Direction:  string(req.Direction),
				Source:     req.SourcePath,
				Dest:       req.DestPath,
				Message:    res.Message,
			})
		}
	case streamErr != nil:
		res.Message = fmt.Sprintf("Error reading transfer output: %v", streamErr)
		m.failTransfer(gen, req, &res, streamErr)
	case code == 0:
		state.ForceComplete()
		m.emitProgress(gen, state.Progress())
		res.Success = true
		res.Message = "Transfer completed successfully."
		m.emitStatus(gen, res.Message)
		m.log.Info().Uint64("generation", gen).Int("files", files).Msg("transfer completed")
		if m.bus != nil {
			m.bus.Publish(events.TransferEvent{
				BaseEvent:  events.NewBaseEvent(events.EventTransferCompleted),
				Generation: gen,
				Direction:  string(req.Direction),
				Source:     req.SourcePath,
				Dest:       req.DestPath,
				Success:    true,
				Message:    res.Message,
			})
		}
	default:
		res.Message = fmt.Sprintf("Transfer failed with exit code %d", code)
		if lastLine != "" {
			res.Message += ": " + lastLine
		}
		m.failTransfer(gen, req, &res, nil)
	}

	m.active.Store(false)
	results <- res
}

func (m *Manager) failTransfer(gen uint64, req Request, res *Result, err error) {
	m.emitStatus(gen, res.Message)
	m.log.Error().Uint64("generation", gen).Str("message", res.Message).Msg("transfer failed")
	if m.bus != nil {
		m.bus.Publish(events.TransferEvent{
			BaseEvent:  events.NewBaseEvent(events.EventTransferFailed),
			Generation: gen,
			Direction:  string(req.Direction),
			Source:     req.SourcePath,
			Dest:       req.DestPath,
			Message:    res.Message,
			Err:        err,
		})
	}
}

func (m *Manager) emitProgress(gen uint64, pct int) {
	if gen != m.generation.Load() {
		return
	}
	m.mu.Lock()
	fn := m.onProgress
	m.mu.Unlock()
	if fn != nil {
		fn(pct)
	}
	if m.bus != nil {
		m.bus.PublishProgress(gen, pct)
	}
}

func (m *Manager) emitStatus(gen uint64, msg string) {
	if gen != m.generation.Load() {
		return
	}
	m.mu.Lock()
	fn := m.onStatus
	m.mu.Unlock()
	if fn != nil {
		fn(msg)
	}
	if m.bus != nil {
		m.bus.PublishStatus(gen, msg)
	}
}

// buildTransferArgs validates both endpoints and produces the bridge argv.
func buildTransferArgs(req Request) ([]string, error) {
	switch req.Direction {
	case DirectionPull:
		remote, err := sanitize.DevicePath(req.SourcePath)
		if err != nil {
			return nil, fmt.Errorf("invalid device source path: %w", err)
		}
		if req.DestPath == "" {
			return nil, errors.New("destination path is required")
		}
		if err := os.MkdirAll(destDir(req), 0o755); err != nil {
			return nil, fmt.Errorf("creating destination directory: %w", err)
		}
		return []string{"pull", remote, req.DestPath}, nil
	case DirectionPush:
		info, err := os.Stat(req.SourcePath)
		if err != nil {
			return nil, fmt.Errorf("source path not accessible: %w", err)
		}
		if req.SingleFile && info.IsDir() {
			return nil, fmt.Errorf("source %s is a directory, not a file", req.SourcePath)
		}
		remote, err := sanitize.DevicePath(req.DestPath)
		if err != nil {
			return nil, fmt.Errorf("invalid device destination path: %w", err)
		}
		return []string{"push", req.SourcePath, remote}, nil
	default:
		return nil, fmt.Errorf("unknown transfer direction %q", req.Direction)
	}
}

// destDir is the local directory that must exist before a pull starts. A
// single-file pull names the file itself, so its parent is the directory.
func destDir(req Request) string {
	if req.SingleFile {
		return filepath.Dir(req.DestPath)
	}
	return req.DestPath
}

// mergedOutput interleaves the child's stdout and stderr on one stream so
// progress lines are observed in the order the tool emits them.
func mergedOutput(cmd *exec.Cmd) (*bufio.Scanner, error) {
	pipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("attaching output pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout
	sc := bufio.NewScanner(pipe)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return sc, nil
}

func parseFilesSummary(line string) (int, bool) {
	match := filesSummaryRe.FindStringSubmatch(line)
	if match == nil {
		return 0, false
	}
	n, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
