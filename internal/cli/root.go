package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/droidstage/droidstage/internal/infrastructure/config"
)

// BuildInfo carries version metadata injected at link time by the
// release build.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

var (
	cfgFile string
	build   = BuildInfo{Version: "dev", Commit: "unknown", Date: "unknown"}
)

var rootCmd = &cobra.Command{
	Use:   "droidstage",
	Short: "Stage-aware Android device automation over adb",
	Long: `Droidstage drives connected Android devices through repeating UI
flows. It polls each device's screen over adb, matches the frame
against configured stage templates, and dispatches the actions bound
to the recognised stage.

The configuration file path resolves in order: the --config flag, the
DROIDSTAGE_CONFIG environment variable, then config.yaml in the
working directory.`,
	SilenceUsage: true,
}

// Execute runs the root command with build metadata available to
// subcommands. The context carries the process shutdown signal.
func Execute(ctx context.Context, info BuildInfo) error {
	build = info
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: $DROIDSTAGE_CONFIG, then config.yaml)")
}

// configPath resolves the configuration file location. The flag wins
// over the environment, the environment over the working-directory
// default.
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if path := os.Getenv("DROIDSTAGE_CONFIG"); path != "" {
		return path
	}
	return "config.yaml"
}

func loadConfig() (*config.Config, error) {
	path := configPath()
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return cfg, nil
}
