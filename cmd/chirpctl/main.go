// chirpctl is the operator CLI: log replay, determinism checks,
// archival snapshots, fake-data seeding and relay-stream tailing. It
// talks to the same stores as the server, so point it at the same env.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"chirper/internal/config"
	"chirper/internal/eventlog"
	"chirper/internal/logger"
)

var (
	envFile string
	verbose bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "chirpctl",
	Short: "Operator tooling for the chirper event log and read store",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if envFile != "" {
			if err := godotenv.Load(envFile); err != nil {
				return fmt.Errorf("load %s: %w", envFile, err)
			}
		}
		var err error
		cfg, err = config.LoadConfig()
		if err != nil {
			return err
		}

		// Keep command output readable: internals log at warn unless
		// asked for more.
		level := "warn"
		if verbose {
			level = "debug"
		}
		return logger.Initialize(level, cfg.LogFile)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Close()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Load environment from this file before reading config")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log internals at debug level")

	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(tailCmd)
}

// openLog opens the configured SQL event log. Every subcommand works
// against durable state, so an unset DATABASE_URL is an error rather
// than a silent in-memory fallback.
func openLog() (eventlog.Log, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set; chirpctl needs the durable event log")
	}
	return eventlog.OpenSQL(cfg.DatabaseURL)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
