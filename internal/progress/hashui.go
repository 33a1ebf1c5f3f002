package progress

import (
	"io"
	"os"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"
)

// HashUI renders the duplicate-scan phase: one bar per side (source and
// target digests), stacked with mpb. Outside a terminal the bars are
// suppressed and only the final summary is printed.
type HashUI struct {
	progress   *mpb.Progress
	isTerminal bool
}

// NewHashUI creates the scan UI.
func NewHashUI() *HashUI {
	isTerminal := term.IsTerminal(int(os.Stderr.Fd()))

	var p *mpb.Progress
	if isTerminal {
		p = mpb.New(
			mpb.WithOutput(os.Stderr),
			mpb.WithRefreshRate(300*time.Millisecond),
			mpb.WithWidth(64),
		)
	} else {
		p = mpb.New(mpb.WithOutput(io.Discard))
	}

	return &HashUI{progress: p, isTerminal: isTerminal}
}

// AddSideBar creates one bar for hashing total files on the named side
// ("local" or "device"). The returned function advances the bar by one
// file; it is safe to call from the hashing goroutine.
func (u *HashUI) AddSideBar(side string, total int) func() {
	if total <= 0 {
		return func() {}
	}

	bar := u.progress.New(int64(total),
		mpb.BarStyle().Lbound("[").Filler("█").Tip("█").Padding("░").Rbound("]"),
		mpb.PrependDecorators(
			decor.Name("hashing "+side+" ", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.CountersNoUnit("%d / %d", decor.WCSyncSpace),
		),
	)

	return func() { bar.Increment() }
}

// Wait blocks until all bars complete.
func (u *HashUI) Wait() {
	u.progress.Wait()
}

// Writer returns a writer that prints safely above the bars.
func (u *HashUI) Writer() io.Writer {
	if u.isTerminal {
		return u.progress
	}
	return os.Stderr
}
