// Package cli implements the sitrep command surface.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/infblueocean/sitrep/internal/config"
	"github.com/infblueocean/sitrep/internal/logging"
	"github.com/infblueocean/sitrep/internal/store"
)

var (
	dbPath  string
	logFile bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "sitrep",
	Short: "sitrep - conflict incident aggregation pipeline",
	Long: `sitrep ingests short reports about conflict events from multiple feeds,
groups them into distinct incidents, ranks incidents by an explainable
composite score, and publishes extractive summaries for display.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("sitrep v1.0.0")
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (default: ~/.sitrep/sitrep.db)")
	rootCmd.PersistentFlags().BoolVar(&logFile, "log-file", false, "log to ~/.sitrep/logs instead of stderr")

	rootCmd.AddCommand(versionCmd)
}

// setup loads config, initializes logging and opens the store.
// Callers must Close() the returned store.
func setup() (*config.Config, *store.Store, error) {
	if logFile {
		if err := logging.Init(); err != nil {
			return nil, nil, err
		}
	} else {
		logging.InitStderr()
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	path := dbPath
	if path == "" {
		path = cfg.DBPath
	}
	if path == "" {
		path = config.DefaultDBPath()
	}

	st, err := store.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}

	return cfg, st, nil
}
