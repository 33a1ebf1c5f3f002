package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/droidbridge/droidbridge/internal/adb"
)

// newDevicesCmd creates the 'devices' command.
func newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List attached devices and their states",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			runner, err := adb.NewExecRunner(cfg)
			if err != nil {
				return err
			}

			devices, err := runner.Devices(cmd.Context())
			if err != nil {
				return err
			}
			if len(devices) == 0 {
				fmt.Println("No devices attached.")
				return nil
			}

			fmt.Printf("%-24s %s\n", "SERIAL", "STATE")
			for _, d := range devices {
				fmt.Printf("%-24s %s\n", d.Serial, d.State)
			}
			return nil
		},
	}
}
