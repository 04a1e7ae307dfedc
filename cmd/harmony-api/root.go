package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const (
	// configEnv names the config file when --config is not given.
	configEnv = "HARMONY_API_CONFIG"

	// defaultConfigPath is used when it exists and nothing else is set.
	defaultConfigPath = "config.yaml"
)

func newRootCmd() *cobra.Command {
	var configFlag string

	serve := func(cmd *cobra.Command, _ []string) error {
		return run(cmd.Context(), getConfigPath(configFlag))
	}

	root := &cobra.Command{
		Use:   "harmony-api",
		Short: "HTTP and MQTT gateway for Logitech Harmony hubs",
		Long: `harmony-api discovers Harmony hubs on the local network, keeps their
activities, devices and current state cached, and exposes them over a REST
API, a WebSocket event stream and MQTT.`,
		SilenceUsage: true,
		RunE:         serve,
	}
	root.PersistentFlags().StringVarP(&configFlag, "config", "c", "",
		fmt.Sprintf("config file (default $%s, then ./%s)", configEnv, defaultConfigPath))

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the gateway (default command)",
			Args:  cobra.NoArgs,
			RunE:  serve,
		},
		newDiscoverCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "harmony-api %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}

// getConfigPath resolves the config file: the flag, then $HARMONY_API_CONFIG,
// then ./config.yaml when present. "" means defaults and environment only.
func getConfigPath(flag string) string {
	if flag != "" {
		return flag
	}
	if path := os.Getenv(configEnv); path != "" {
		return path
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return defaultConfigPath
	}
	return ""
}
