package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pthm/hxbus/internal/config"
	"github.com/pthm/hxbus/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "hxbus",
	Short: "hxbus serves HTMX pages wired with a publish/subscribe event bus",
	Long: `hxbus composes pages from YAML declarations. Producers broadcast named
events in groups; observers re-render parts of the page when the events
they subscribe to are dispatched.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Config file (default ./hxbus.yaml)")
	rootCmd.PersistentFlags().String("dir", ".", "Directory containing the page declarations")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
}

// loadConfig reads the configuration and applies the persistent flags
// that were set explicitly.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level, _ = cmd.Flags().GetString("log-level")
	}
	return cfg, nil
}

func newLogger(cfg config.Config) zerolog.Logger {
	lc := logging.DefaultConfig()
	lc.Level = logging.ParseLevel(cfg.Log.Level)
	lc.Pretty = cfg.Log.Pretty
	return logging.New(lc)
}
