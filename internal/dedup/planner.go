package dedup

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/droidbridge/droidbridge/internal/logging"
	"github.com/droidbridge/droidbridge/internal/util/sanitize"
)

// HashIndex maps a file path to its hex digest. Built fresh for each
// planning call; never cached.
type HashIndex map[string]string

// Report is the outcome of one planning call. Ordering of both slices
// follows the order of the source path list.
type Report struct {
	FilesToTransfer []string
	Duplicates      []string
	BytesSaved      uint64
	FilesSaved      uint64
}

// Planner partitions a source file set into files worth transferring and
// duplicates already present on the target side.
type Planner struct {
	runner    CommandRunner
	algorithm string
	log       *logging.Logger

	// onStatus receives advisory progress messages; may be nil.
	onStatus func(string)

	// onHashed is called after each file digest attempt, per side;
	// drives the scan UI. May be nil.
	onHashed func(side Side)
}

// Option configures a Planner.
type Option func(*Planner)

// WithStatusFunc attaches an advisory status sink.
func WithStatusFunc(fn func(string)) Option {
	return func(p *Planner) { p.onStatus = fn }
}

// WithHashedFunc attaches a per-file hashing progress hook.
func WithHashedFunc(fn func(side Side)) Option {
	return func(p *Planner) { p.onHashed = fn }
}

// NewPlanner creates a planner using the given digest algorithm
// ("sha256", "sha1" or "md5").
func NewPlanner(runner CommandRunner, algorithm string, opts ...Option) (*Planner, error) {
	if _, err := newHasher(algorithm); err != nil {
		return nil, err
	}

	p := &Planner{
		runner:    runner,
		algorithm: algorithm,
		log:       logging.NewLogger("dedup"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *Planner) status(format string, args ...interface{}) {
	if p.onStatus != nil {
		p.onStatus(fmt.Sprintf(format, args...))
	}
}

func (p *Planner) hashed(side Side) {
	if p.onHashed != nil {
		p.onHashed(side)
	}
}

// digest computes one file's digest on the given side. A failure is
// local to that file: it is logged and reported as ok=false, never as a
// planning error.
func (p *Planner) digest(ctx context.Context, path string, side Side) (string, bool) {
	var dig string
	var err error
	if side == SideRemote {
		dig, err = RemoteDigest(ctx, p.runner, path, p.algorithm)
	} else {
		dig, err = LocalDigest(path, p.algorithm)
	}
	if err != nil {
		p.log.Debugf("digest failed for %s: %v", path, err)
		p.status("Could not hash %s: %v", path, err)
		return "", false
	}
	return dig, true
}

// BuildIndex builds a path-to-digest index for one side. Files whose
// digest cannot be computed are left out of the index.
func (p *Planner) BuildIndex(ctx context.Context, paths []string, side Side) HashIndex {
	index := make(HashIndex, len(paths))
	for i, path := range paths {
		if dig, ok := p.digest(ctx, path, side); ok {
			index[path] = dig
		}
		p.hashed(side)
		p.status("Computing %s hashes... %d/%d", side, i+1, len(paths))
	}
	return index
}

// FindDuplicateFiles builds digest indexes for both sides and partitions
// sourcePaths. A source file is a duplicate iff its digest appears in the
// set of target digests, regardless of name or path. Files whose digest
// could not be computed are conservatively kept in the transfer set.
func (p *Planner) FindDuplicateFiles(ctx context.Context, sourcePaths, targetPaths []string, sourceSide, targetSide Side) *Report {
	p.status("Scanning for duplicates...")

	sourceIndex := p.BuildIndex(ctx, sourcePaths, sourceSide)
	targetIndex := p.BuildIndex(ctx, targetPaths, targetSide)

	targetDigests := make(map[string]struct{}, len(targetIndex))
	for _, dig := range targetIndex {
		targetDigests[dig] = struct{}{}
	}

	report := &Report{}
	for _, path := range sourcePaths {
		dig, ok := sourceIndex[path]
		if !ok {
			report.FilesToTransfer = append(report.FilesToTransfer, path)
			continue
		}
		if _, dup := targetDigests[dig]; dup {
			report.Duplicates = append(report.Duplicates, path)
		} else {
			report.FilesToTransfer = append(report.FilesToTransfer, path)
		}
	}

	for _, path := range report.Duplicates {
		if size, ok := p.fileSize(ctx, path, sourceSide); ok {
			report.BytesSaved += uint64(size)
			report.FilesSaved++
		}
	}

	p.status("Found %d duplicates, %d files to transfer",
		len(report.Duplicates), len(report.FilesToTransfer))

	return report
}

// fileSize returns a file's size on the given side. Unknown sizes report
// ok=false and contribute zero to savings.
func (p *Planner) fileSize(ctx context.Context, path string, side Side) (int64, bool) {
	if side == SideLocal {
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			return 0, false
		}
		return info.Size(), true
	}

	clean, err := sanitize.DevicePath(path)
	if err != nil {
		return 0, false
	}
	stdout, _, code, err := p.runner.Run(ctx, "shell", "stat", "-c", "%s", clean)
	if err != nil || code != 0 {
		return 0, false
	}
	size, err := strconv.ParseInt(strings.TrimSpace(stdout), 10, 64)
	if err != nil || size < 0 {
		return 0, false
	}
	return size, true
}
