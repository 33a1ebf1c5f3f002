package progress

import (
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Reporter receives percentage and status updates from a transfer run.
// Implementations are invoked from the worker goroutine and must not
// block for long; the CLI implementation renders a bar, test code uses
// recording fakes.
type Reporter interface {
	Start(description string)
	Update(percentage int)
	Status(message string)
	Finish()
	// Halt stops rendering without completing the bar; used for
	// cancellation, which is an acknowledged stop rather than an error.
	Halt(message string)
	Error(err error)
}

// CLIReporter renders a single percent-based progress bar on stderr.
type CLIReporter struct {
	bar     *progressbar.ProgressBar
	verbose bool
}

// NewCLIReporter creates a CLI progress reporter. With verbose set,
// status lines from the bridge tool are echoed above the bar.
func NewCLIReporter(verbose bool) *CLIReporter {
	return &CLIReporter{verbose: verbose}
}

// Start initializes the progress bar.
func (p *CLIReporter) Start(description string) {
	p.bar = progressbar.NewOptions(100,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetWidth(50),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(os.Stderr, "\n")
		}),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// Update moves the bar to the given percentage.
func (p *CLIReporter) Update(percentage int) {
	if p.bar != nil {
		_ = p.bar.Set(percentage)
	}
}

// Status echoes a raw status line when verbose output is on.
func (p *CLIReporter) Status(message string) {
	if p.verbose && message != "" {
		fmt.Fprintf(os.Stderr, "\r\033[K%s\n", message)
	}
}

// Finish completes the bar.
func (p *CLIReporter) Finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}

// Halt clears the bar and prints the message without an error prefix.
func (p *CLIReporter) Halt(message string) {
	if p.bar != nil {
		_ = p.bar.Clear()
	}
	fmt.Fprintln(os.Stderr, message)
}

// Error clears the bar and prints the error.
func (p *CLIReporter) Error(err error) {
	if p.bar != nil {
		_ = p.bar.Clear()
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
}

// NopReporter discards all updates. Used when no UI is attached.
type NopReporter struct{}

func (NopReporter) Start(string)  {}
func (NopReporter) Update(int)    {}
func (NopReporter) Status(string) {}
func (NopReporter) Finish()       {}
func (NopReporter) Halt(string)   {}
func (NopReporter) Error(error)   {}
