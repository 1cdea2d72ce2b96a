// Command sqlstudio manages SQLines conversion sessions from the terminal.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sqlines/studio/internal/config"
	"github.com/sqlines/studio/internal/logging"
)

var (
	configPath string
	cfg        config.Config
	logger     = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "sqlstudio",
	Short: "SQLines Studio: convert SQL between database dialects",
	Long: `SQLines Studio keeps a set of conversion tabs, each holding source SQL,
its converted target SQL and the dialects to convert between.

Tabs and open files are checkpointed to the state directory, so every
command works on the same session. "sqlstudio run" keeps the session live:
open files are watched for changes, the license is re-checked and the
session is checkpointed periodically.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configPath == "" {
			p, err := config.DefaultPath()
			if err != nil {
				return err
			}
			configPath = p
		}
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded

		l, err := logging.New(cfg.Log)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to settings file (default: ~/.config/sqlstudio/settings.yaml)")

	rootCmd.AddGroup(
		&cobra.Group{ID: "session", Title: "Session:"},
		&cobra.Group{ID: "convert", Title: "Conversion:"},
		&cobra.Group{ID: "setup", Title: "Setup:"},
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
