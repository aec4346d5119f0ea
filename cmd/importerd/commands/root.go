package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/breakingdawnisback/Job-Importer/config"
	"github.com/breakingdawnisback/Job-Importer/logger"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "importerd",
	Short: "Job feed importer and dashboard backend",
	Long: `importerd imports job postings from configured RSS/XML feeds and
serves a dashboard API with real-time import notifications.

Available commands:
  serve   - Start the HTTP/WebSocket server
  db      - Database operations (migrate, stats)
  version - Show version information

Examples:
  importerd serve                  # Start server with defaults
  importerd serve --config my.toml # Start with explicit config file
  importerd db migrate             # Apply pending migrations
  importerd db stats               # Show feed/session/job counts`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := logger.Initialize(cfg.Log.JSON); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		if verbose {
			logger.SetLevel(zapcore.DebugLevel)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: ./importer.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig resolves configuration honoring the --config flag.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFrom(configPath)
	}
	return config.Load()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
