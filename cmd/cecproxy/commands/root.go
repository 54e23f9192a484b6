package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	// configEnv names the environment variable holding the config path.
	configEnv = "CECPROXY_CONFIG"

	defaultConfigPath = "configs/config.yaml"
)

// rootCmd runs the proxy when called without a subcommand.
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "cecproxy",
		Short: "Expose an HDMI-CEC TV to Home Assistant over MQTT",
		Long: `cecproxy drives cec-client and publishes the TV it controls as
Home Assistant MQTT discovery entities.

The TV appears as a power switch whose state follows the TV, plus volume up,
volume down and mute buttons. Every configured HDMI source gets a button that
switches the TV to that input.

Configuration is read from --config, then $CECPROXY_CONFIG, then
configs/config.yaml.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath(cmd))
		},
	}

	root.PersistentFlags().String("config", "", "path to the YAML config file")
	root.AddCommand(newRunCmd(), newDiscoveryCmd())

	return root
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the proxy (the default when no command is given)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath(cmd))
		},
	}
}

// Execute runs the root command until ctx is cancelled or the proxy fails.
func Execute(ctx context.Context) error {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.ExecuteContext(ctx)
}

// SetVersionInfo sets the version information for the CLI.
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

// configPath resolves the config file: flag, then environment, then default.
func configPath(cmd *cobra.Command) string {
	if f := cmd.Flag("config"); f != nil && f.Value.String() != "" {
		return f.Value.String()
	}
	if path := os.Getenv(configEnv); path != "" {
		return path
	}
	return defaultConfigPath
}
