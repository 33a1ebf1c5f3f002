package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/droidbridge/droidbridge/internal/adb"
	"github.com/droidbridge/droidbridge/internal/events"
	"github.com/droidbridge/droidbridge/internal/progress"
	"github.com/droidbridge/droidbridge/internal/transfer"
	strutil "github.com/droidbridge/droidbridge/internal/util/strings"
)

// newPlanCmd creates the 'plan' command.
func newPlanCmd() *cobra.Command {
	var singleFile bool

	cmd := &cobra.Command{
		Use:   "plan <pull|push> <source> <dest>",
		Short: "Show what a transfer would copy and what it would skip",
		Long: `Hash both sides of a prospective transfer and report which source files
the destination already holds with identical content, without moving
anything.

Examples:
  droidbridge plan pull /sdcard/DCIM ./photos
  droidbridge plan push ./music /sdcard/Music`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			direction := transfer.Direction(args[0])
			if direction != transfer.DirectionPull && direction != transfer.DirectionPush {
				return fmt.Errorf("direction must be %q or %q", transfer.DirectionPull, transfer.DirectionPush)
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			runner, err := adb.NewExecRunner(cfg)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if _, err := runner.CheckDevice(ctx); err != nil {
				return err
			}

			req := transfer.Request{
				Direction:  direction,
				SourcePath: args[1],
				DestPath:   args[2],
				SingleFile: singleFile,
			}
			bus := events.NewEventBus(0)
			drained := watchEvents(bus, progress.NopReporter{})
			report, err := buildPlan(ctx, runner, cfg, bus, req)
			bus.Close()
			<-drained
			if err != nil {
				return err
			}
			if report == nil {
				fmt.Println("No source files found, nothing to plan.")
				return nil
			}

			fmt.Printf("Files to transfer: %d\n", len(report.FilesToTransfer))
			for _, p := range report.FilesToTransfer {
				fmt.Printf("  + %s\n", p)
			}
			fmt.Printf("Duplicates skipped: %d\n", len(report.Duplicates))
			for _, p := range report.Duplicates {
				fmt.Printf("  = %s\n", p)
			}
			if report.FilesSaved > 0 {
				fmt.Printf("Savings: %s across %d %s\n",
					strutil.FormatBytes(report.BytesSaved),
					report.FilesSaved,
					strutil.Pluralize("file", int64(report.FilesSaved)))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&singleFile, "file", "f", false, "Plan a single-file transfer")
	return cmd
}
