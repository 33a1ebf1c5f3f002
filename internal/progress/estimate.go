package progress

import (
	"time"

	"github.com/droidbridge/droidbridge/internal/constants"
)

// State tracks progress for one in-flight transfer run. It is owned
// exclusively by that run's worker goroutine and reset at each start;
// it must not be shared across runs.
type State struct {
	startTime      time.Time
	lastUpdateTime time.Time
	lineCount      uint64

	// lastProgress is kept as a float so fractional heuristic estimates
	// accumulate across lines; reported values are truncated to int.
	lastProgress float64
}

// NewState returns a State for a run starting at now.
func NewState(now time.Time) *State {
	return &State{
		startTime:      now,
		lastUpdateTime: now,
	}
}

// LineCount returns the number of lines observed so far.
func (s *State) LineCount() uint64 {
	return s.lineCount
}

// Progress returns the current progress percentage.
func (s *State) Progress() int {
	return int(s.lastProgress)
}

// ObserveLine feeds one line of subprocess output through the parser and,
// absent an explicit signal, the heuristic estimator. It returns the
// current percentage and whether this line changed it.
//
// An explicit signal always wins and may move progress backward; only the
// heuristic path is constrained to forward motion. Heuristic progress
// never exceeds 95 - the final jump to 100 is reserved for a confirmed
// successful exit (see ForceComplete).
func (s *State) ObserveLine(line string, now time.Time) (int, bool) {
	s.lineCount++

	if pct, ok := ParseProgress(line); ok {
		s.lastProgress = float64(pct)
		s.lastUpdateTime = now
		return pct, true
	}

	return s.estimate(now)
}

// estimate advances progress heuristically. Evaluated once per line with
// no explicit signal; the time-based branch takes precedence over the
// activity-based branch.
func (s *State) estimate(now time.Time) (int, bool) {
	sinceUpdate := now.Sub(s.lastUpdateTime)
	elapsed := now.Sub(s.startTime)

	// Time-based branch: something should move every couple of seconds
	// on a live transfer.
	if sinceUpdate >= constants.EstimateInterval && s.lastProgress < constants.HeuristicCap {
		var candidate float64
		if s.lineCount > constants.LargeTransferLineThreshold {
			// Large transfers: blend line activity with elapsed time.
			activity := minf(float64(s.lineCount)/constants.ActivityDivisor, constants.ActivityCap)
			timeTerm := minf(elapsed.Seconds()/constants.TimeDivisorSeconds, constants.TimeCap)
			candidate = minf(activity+timeTerm, constants.HeuristicCap)
		} else {
			candidate = minf(s.lastProgress+constants.SmallTransferIncrement, constants.HeuristicCap)
		}

		if candidate > s.lastProgress {
			s.lastProgress = candidate
			s.lastUpdateTime = now
			return int(s.lastProgress), true
		}
		return int(s.lastProgress), false
	}

	// Activity-based branch: bump on every Nth line, shrinking the
	// increment as the transfer drags on.
	if s.lineCount%constants.ActivityWindow == 0 && s.lastProgress < constants.ActivityBranchCap {
		windows := s.lineCount/constants.ActivityWindow + 1
		increment := constants.ActivityBranchCap / int(windows)
		if increment > constants.ActivityIncrementMax {
			increment = constants.ActivityIncrementMax
		}
		if increment < constants.ActivityIncrementMin {
			increment = constants.ActivityIncrementMin
		}

		candidate := minf(s.lastProgress+float64(increment), constants.ActivityBranchCap)
		if candidate > s.lastProgress {
			s.lastProgress = candidate
			s.lastUpdateTime = now
			return int(s.lastProgress), true
		}
	}

	return int(s.lastProgress), false
}

// ForceComplete sets progress to exactly 100. Called only after the
// subprocess exits with a zero status.
func (s *State) ForceComplete() {
	s.lastProgress = 100
	s.lastUpdateTime = time.Now()
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
