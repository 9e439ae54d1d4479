// Package cli holds the dispomed command line: the API server, schema setup
// and a terminal availability report.
package cli

import (
	"github.com/dispomed/dispomed-api/config"
	"github.com/dispomed/dispomed-api/database"
	"github.com/dispomed/dispomed-api/logging"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time via ldflags.
	Version = "dev"

	envFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "dispomed",
	Short: "Drug shortage monitoring API",
	Long: `dispomed serves the drug shortage incidents stored in PostgreSQL:
filtered incident lists, monthly shortage aggregates, timeline charts and
per-product availability scores.`,
	SilenceUsage: true,
}

// Execute runs the command selected on the command line
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.Version = Version
}

// loadConfig reads the dotenv file, validates the environment and installs
// the global logger.
func loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	// a failing log directory only disables file output
	_ = logging.InitLogger(logging.Options{
		Dir:            cfg.LogDir,
		Env:            cfg.Env,
		Level:          cfg.LogLevel,
		Verbose:        verbose,
		RetentionWeeks: cfg.LogRetentionWeeks,
		MaxFileSize:    cfg.MaxLogFileSize,
	})
	return cfg, nil
}

func databaseOptions(cfg *config.Config) database.Options {
	return database.Options{
		URL:            cfg.DatabaseURL,
		MaxConns:       cfg.DBMaxConns,
		ConnectTimeout: cfg.DBConnectTimeout,
	}
}
