package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"

	"github.com/spf13/cobra"

	"github.com/droidbridge/droidbridge/internal/adb"
	"github.com/droidbridge/droidbridge/internal/config"
	"github.com/droidbridge/droidbridge/internal/constants"
	"github.com/droidbridge/droidbridge/internal/dedup"
	"github.com/droidbridge/droidbridge/internal/diskspace"
	"github.com/droidbridge/droidbridge/internal/events"
	"github.com/droidbridge/droidbridge/internal/localfs"
	"github.com/droidbridge/droidbridge/internal/progress"
	"github.com/droidbridge/droidbridge/internal/transfer"
	strutil "github.com/droidbridge/droidbridge/internal/util/strings"
)

// newPullCmd creates the 'pull' command.
func newPullCmd() *cobra.Command {
	var noDedup bool
	var singleFile bool

	cmd := &cobra.Command{
		Use:   "pull <device-path> <local-path>",
		Short: "Copy files from the device to this machine",
		Long: `Copy a directory tree (or with --file, a single file) from the device.

Before transferring, files already present locally with identical content
are detected by hash comparison and the transfer is skipped when there is
nothing new to copy. Use --no-dedup to transfer unconditionally.

Examples:
  droidbridge pull /sdcard/DCIM ./photos
  droidbridge pull --file /sdcard/report.pdf ./report.pdf`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := transfer.Request{
				Direction:  transfer.DirectionPull,
				SourcePath: args[0],
				DestPath:   args[1],
				SingleFile: singleFile,
			}
			return runTransfer(cmd.Context(), req, !noDedup)
		},
	}

	cmd.Flags().BoolVar(&noDedup, "no-dedup", false, "Skip duplicate detection and always transfer")
	cmd.Flags().BoolVarP(&singleFile, "file", "f", false, "Transfer a single file instead of a directory")
	return cmd
}

// newPushCmd creates the 'push' command.
func newPushCmd() *cobra.Command {
	var noDedup bool
	var singleFile bool

	cmd := &cobra.Command{
		Use:   "push <local-path> <device-path>",
		Short: "Copy files from this machine to the device",
		Long: `Copy a directory tree (or with --file, a single file) to the device.

Before transferring, files the device already holds with identical content
are detected by hash comparison and the transfer is skipped when there is
nothing new to copy. Use --no-dedup to transfer unconditionally.

Examples:
  droidbridge push ./music /sdcard/Music
  droidbridge push --file ./track.mp3 /sdcard/Music/track.mp3`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := transfer.Request{
				Direction:  transfer.DirectionPush,
				SourcePath: args[0],
				DestPath:   args[1],
				SingleFile: singleFile,
			}
			return runTransfer(cmd.Context(), req, !noDedup)
		},
	}

	cmd.Flags().BoolVar(&noDedup, "no-dedup", false, "Skip duplicate detection and always transfer")
	cmd.Flags().BoolVarP(&singleFile, "file", "f", false, "Transfer a single file instead of a directory")
	return cmd
}

// runTransfer performs the duplicate pre-scan when requested, then executes
// the transfer with live progress on stderr.
func runTransfer(ctx context.Context, req transfer.Request, dedupe bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	runner, err := adb.NewExecRunner(cfg)
	if err != nil {
		return err
	}
	if _, err := runner.CheckDevice(ctx); err != nil {
		return err
	}
	if req.Direction == transfer.DirectionPull {
		if err := checkPullSpace(ctx, runner, req); err != nil {
			return err
		}
	}

	bus := events.NewEventBus(0)
	reporter := progress.NewCLIReporter(verbose)
	drained := watchEvents(bus, reporter)

	if dedupe {
		report, err := buildPlan(ctx, runner, cfg, bus, req)
		if err != nil {
			logger.Warn().Err(err).Msg("duplicate scan failed, transferring everything")
		} else if report != nil {
			printReport(report)
			if len(report.FilesToTransfer) == 0 && len(report.Duplicates) > 0 {
				bus.Close()
				<-drained
				fmt.Println("All files already present, nothing to transfer.")
				return nil
			}
		}
	}

	manager := transfer.NewManager(runner, bus)
	reporter.Start(fmt.Sprintf("%s %s", req.Direction, req.SourcePath))

	_, results, err := manager.Start(req)
	if err != nil {
		bus.Close()
		<-drained
		reporter.Error(err)
		return err
	}

	// Ctrl-C cancels the child instead of orphaning it. The worker always
	// delivers exactly one terminal result, cancelled runs included.
	var res transfer.Result
	select {
	case res = <-results:
	case <-ctx.Done():
		manager.Cancel()
		res = <-results
	}
	bus.Close()
	<-drained

	if res.Cancelled {
		// An acknowledged stop, not an error.
		reporter.Halt(res.Message)
		return nil
	}
	if !res.Success {
		reporter.Error(errors.New(res.Message))
		return errors.New(res.Message)
	}
	reporter.Finish()
	if res.FilesTransferred > 0 {
		fmt.Printf("%d %s transferred.\n", res.FilesTransferred,
			strutil.Pluralize("file", int64(res.FilesTransferred)))
	} else {
		fmt.Println(res.Message)
	}
	return nil
}

// watchEvents drives the terminal reporter off the bus. The returned
// channel closes once the bus is closed and every buffered event has been
// delivered, so callers can sequence final output after the last update.
func watchEvents(bus *events.EventBus, reporter progress.Reporter) <-chan struct{} {
	ch := bus.SubscribeAll()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range ch {
			switch e := ev.(type) {
			case *events.ProgressEvent:
				reporter.Update(e.Percentage)
			case *events.StatusEvent:
				logger.Debug().Str("line", e.Message).Msg("tool output")
			case events.PlanEvent:
				if e.Type() == events.EventPlanCompleted {
					logger.Debug().
						Int("transfer", e.FilesToTransfer).
						Int("duplicates", e.Duplicates).
						Uint64("bytes_saved", e.BytesSaved).
						Msg("duplicate scan done")
				}
			}
		}
	}()
	return done
}

// announcePlanStarted marks the beginning of a duplicate scan on the bus.
func announcePlanStarted(bus *events.EventBus) {
	bus.Publish(events.PlanEvent{
		BaseEvent: events.NewBaseEvent(events.EventPlanStarted),
	})
}

// announcePlanCompleted publishes the scan outcome on the bus.
func announcePlanCompleted(bus *events.EventBus, report *dedup.Report) {
	bus.Publish(events.PlanEvent{
		BaseEvent:       events.NewBaseEvent(events.EventPlanCompleted),
		FilesToTransfer: len(report.FilesToTransfer),
		Duplicates:      len(report.Duplicates),
		BytesSaved:      report.BytesSaved,
	})
}

// buildPlan hashes both sides of the requested transfer and reports which
// source files the target already has. A nil report with nil error means
// planning does not apply (single unlistable endpoint).
func buildPlan(ctx context.Context, runner *adb.ExecRunner, cfg *config.Config, bus *events.EventBus, req transfer.Request) (*dedup.Report, error) {
	var sources, targets []string
	var sourceSide, targetSide dedup.Side

	switch req.Direction {
	case transfer.DirectionPull:
		sourceSide, targetSide = dedup.SideRemote, dedup.SideLocal
		var err error
		sources, err = remoteFilePaths(ctx, runner, req)
		if err != nil {
			return nil, err
		}
		targets = localFilePaths(req.DestPath)
	case transfer.DirectionPush:
		sourceSide, targetSide = dedup.SideLocal, dedup.SideRemote
		var err error
		sources, err = localSourcePaths(req)
		if err != nil {
			return nil, err
		}
		remoteReq := transfer.Request{SourcePath: req.DestPath, SingleFile: req.SingleFile}
		targets, _ = remoteFilePaths(ctx, runner, remoteReq)
	default:
		return nil, fmt.Errorf("unknown transfer direction %q", req.Direction)
	}

	if len(sources) == 0 {
		return nil, nil
	}

	announcePlanStarted(bus)
	ui := progress.NewHashUI()
	bump := map[dedup.Side]func(){
		sourceSide: ui.AddSideBar(sourceSide.String(), len(sources)),
		targetSide: ui.AddSideBar(targetSide.String(), len(targets)),
	}
	planner, err := dedup.NewPlanner(runner, cfg.HashAlgorithm,
		dedup.WithStatusFunc(func(msg string) {
			logger.Debug().Str("status", msg).Msg("duplicate scan")
		}),
		dedup.WithHashedFunc(func(side dedup.Side) {
			if fn := bump[side]; fn != nil {
				fn()
			}
		}),
	)
	if err != nil {
		return nil, err
	}

	report := planner.FindDuplicateFiles(ctx, sources, targets, sourceSide, targetSide)
	ui.Wait()
	announcePlanCompleted(bus, report)
	return report, nil
}

// checkPullSpace verifies the local filesystem can hold everything the pull
// will copy. Sizes come from the device listing; when the device side cannot
// be sized the check is skipped.
func checkPullSpace(ctx context.Context, runner *adb.ExecRunner, req transfer.Request) error {
	var required int64
	if req.SingleFile {
		size, err := runner.RemoteSize(ctx, req.SourcePath)
		if err != nil {
			return nil
		}
		required = size
	} else {
		entries, err := runner.RemoteList(ctx, req.SourcePath)
		if err != nil {
			return nil
		}
		for _, e := range entries {
			required += e.Size
		}
	}
	return diskspace.CheckAvailableSpace(req.DestPath, required, constants.DiskSpaceSafetyMargin)
}

// remoteFilePaths lists the device-side files of the request source. For a
// single-file transfer that is the file itself, otherwise the files directly
// under the directory.
func remoteFilePaths(ctx context.Context, runner *adb.ExecRunner, req transfer.Request) ([]string, error) {
	if req.SingleFile {
		return []string{req.SourcePath}, nil
	}
	entries, err := runner.RemoteList(ctx, req.SourcePath)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.Type == adb.EntryFile {
			paths = append(paths, path.Join(req.SourcePath, e.Name))
		}
	}
	return paths, nil
}

// localFilePaths returns the files under dir, or nothing when it does not
// exist yet.
func localFilePaths(dir string) []string {
	if _, err := os.Stat(dir); err != nil {
		return nil
	}
	entries, err := localfs.Collect(dir, localfs.CollectOptions{})
	if err != nil {
		return nil
	}
	return localfs.Paths(entries)
}

func localSourcePaths(req transfer.Request) ([]string, error) {
	if req.SingleFile {
		return []string{req.SourcePath}, nil
	}
	entries, err := localfs.Collect(req.SourcePath, localfs.CollectOptions{})
	if err != nil {
		return nil, err
	}
	return localfs.Paths(entries), nil
}

func printReport(report *dedup.Report) {
	if len(report.Duplicates) == 0 {
		return
	}
	fmt.Printf("Skipping %d duplicate %s",
		len(report.Duplicates), strutil.Pluralize("file", int64(len(report.Duplicates))))
	if report.BytesSaved > 0 {
		fmt.Printf(" (%s saved)", strutil.FormatBytes(report.BytesSaved))
	}
	fmt.Println(".")
}
