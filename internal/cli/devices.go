package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/droidstage/droidstage/internal/adb"
	"github.com/droidstage/droidstage/internal/infrastructure/logging"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List devices visible to adb",
	Long: `Devices prints every device the adb server reports together with its
authorization state. Only devices in state "device" accept automation;
unauthorized and offline entries are listed so fleet problems surface
before a run.`,
	RunE: runDevices,
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}

func runDevices(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := logging.New(cfg.Logging, build.Version)
	client, err := adb.New(cfg.ADB, log)
	if err != nil {
		return fmt.Errorf("initialising adb: %w", err)
	}

	devices, err := client.ListDevices(cmd.Context())
	if err != nil {
		return fmt.Errorf("listing devices: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(devices) == 0 {
		fmt.Fprintln(out, "No devices found. Is the adb server running?")
		return nil
	}

	fmt.Fprintf(out, "%-24s %-14s %-20s %s\n", "SERIAL", "STATE", "MODEL", "ELIGIBLE")
	eligible := 0
	for _, d := range devices {
		mark := "no"
		if d.Selectable() {
			mark = "yes"
			eligible++
		}
		model := d.Model
		if model == "" {
			model = "-"
		}
		fmt.Fprintf(out, "%-24s %-14s %-20s %s\n", d.Serial, d.State, model, mark)
	}
	fmt.Fprintf(out, "\n%d device(s), %d eligible\n", len(devices), eligible)
	return nil
}
