// Package cli provides the command-line interface for fluwatch.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/fluwatch/pipeline/internal/config"
	"github.com/fluwatch/pipeline/internal/db"
	"github.com/fluwatch/pipeline/internal/logging"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	configPath string
	verbose    bool

	// Global config, logger and database connection
	cfg        config.Config
	logger     *slog.Logger
	logCleanup func() error
	conn       *db.Connection
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "fluwatch",
	Short: "H5N1 surveillance data ingestion pipeline",
	Long: `Fluwatch ingests H5N1 animal-case reports from heterogeneous public
surveillance files, normalizes them into a single case schema, fills in
missing coordinates from county and state lookup tables, validates every
record, and loads the results into PostGIS with a full audit trail.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		level := logging.ParseLevel(cfg.LogLevel)
		if verbose {
			level = slog.LevelDebug
		}
		logger, logCleanup = logging.Setup(cfg.LogFile, level)

		conn, err = db.NewConnection(context.Background(), cfg.Database)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if conn != nil {
			conn.Close()
		}
		if logCleanup != nil {
			if err := logCleanup(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
			}
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", ".", "directory containing config.yaml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
