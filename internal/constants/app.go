package constants

import (
	"time"
)

// Heuristic progress estimation
//
// The bridge tool's textual progress reporting varies between tool versions
// and transfer sizes; large transfers often emit no percentage at all. These
// constants are tuned against observed output and must stay consistent with
// each other.
const (
	// EstimateInterval - minimum time between heuristic progress bumps
	EstimateInterval = 2 * time.Second

	// LargeTransferLineThreshold - line counts above this switch the
	// time-based branch to the activity+elapsed formula
	LargeTransferLineThreshold = 100

	// ActivityDivisor - line_count/ActivityDivisor contributes at most
	// ActivityCap percent on the large-transfer path
	ActivityDivisor = 1000
	ActivityCap     = 50

	// TimeDivisorSeconds - elapsed/TimeDivisorSeconds contributes at most
	// TimeCap percent (assumes transfers in the 1-2 minute range)
	TimeDivisorSeconds = 60
	TimeCap            = 40

	// SmallTransferIncrement - fallback bump for small transfers
	SmallTransferIncrement = 10

	// HeuristicCap - heuristic progress never exceeds this before a
	// confirmed successful exit; the final jump to 100 is reserved
	HeuristicCap = 95

	// ActivityWindow - the activity-based branch fires every N lines
	ActivityWindow = 50

	// ActivityBranchCap - ceiling for the activity-based branch
	ActivityBranchCap = 90

	// ActivityIncrementMax / ActivityIncrementMin - bounds on per-window bumps
	ActivityIncrementMax = 5
	ActivityIncrementMin = 1
)

// Process lifecycle
const (
	// CancelGracePeriod - time between SIGTERM and SIGKILL on cancel
	CancelGracePeriod = 2 * time.Second

	// CommandTimeout - timeout for captured (non-streaming) bridge commands
	CommandTimeout = 15 * time.Second
)

// Hashing
const (
	// HashChunkSize - read size for chunked local file digests (8 KB)
	HashChunkSize = 8192
)

// Disk space
const (
	// DiskSpaceSafetyMargin - multiplier applied to required bytes before a pull
	DiskSpaceSafetyMargin = 1.1
)

// Event bus tuning
const (
	// EventBusDefaultBuffer - default per-subscriber channel buffer
	EventBusDefaultBuffer = 1000

	// EventBusMaxBuffer - hard cap on per-subscriber channel buffer
	EventBusMaxBuffer = 10000
)
