// Package cli provides the command-line interface for droidbridge.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/droidbridge/droidbridge/internal/config"
	"github.com/droidbridge/droidbridge/internal/logging"
	"github.com/droidbridge/droidbridge/internal/version"
)

var (
	// Global flags
	adbPath   string
	serial    string
	algorithm string
	verbose   bool

	logger *logging.Logger
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "droidbridge",
		Short: "Bulk file transfers between an Android device and this machine",
		Long: `droidbridge ` + version.Full() + `
Transfers files to and from Android devices over adb, with streamed
progress reporting and content-hash duplicate detection that skips
files the other side already has.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = logging.NewLogger("cli")
			if verbose {
				logging.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&adbPath, "adb", "", "Path to the adb binary (default: resolve from PATH)")
	rootCmd.PersistentFlags().StringVarP(&serial, "serial", "s", "", "Device serial to target when several are attached")
	rootCmd.PersistentFlags().StringVar(&algorithm, "algorithm", "", "Digest for duplicate detection: sha256, sha1 or md5")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")

	rootCmd.Version = version.Full()

	rootCmd.AddCommand(newPullCmd())
	rootCmd.AddCommand(newPushCmd())
	rootCmd.AddCommand(newPlanCmd())
	rootCmd.AddCommand(newDevicesCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// newVersionCmd creates the 'version' command.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("droidbridge %s\n", version.Full())
		},
	}
}

// Execute runs the CLI with signal-aware cancellation.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}

// loadConfig builds the effective configuration from defaults, environment
// and command-line flags, flags winning.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if adbPath != "" {
		cfg.BridgeBinary = adbPath
	}
	if serial != "" {
		cfg.Serial = serial
	}
	if algorithm != "" {
		cfg.HashAlgorithm = algorithm
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
