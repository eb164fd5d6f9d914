// Package commands wires configuration, browsers, crawlers and storage into
// the venue-crawler CLI.
package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"venue-crawler/config"
	"venue-crawler/utils"
)

var (
	cfg    *config.Config
	logger *utils.Logger

	logLevel string
	dbDriver string
)

var rootCmd = &cobra.Command{
	Use:   "venue-crawler",
	Short: "venue-crawler discovers escape-room and board-game venues and the rooms they offer.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.Load()
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
		}
		if cmd.Flags().Changed("db") {
			cfg.DBDriver = dbDriver
		}
		logger = utils.NewLoggerWithLevel(cfg.LogLevel)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&dbDriver, "db", "sqlite", "storage driver: postgres or sqlite")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func retryConfig() utils.RetryConfig {
	return utils.RetryConfig{MaxAttempts: cfg.MaxRetries, BaseDelay: 2 * time.Second, Logger: logger}
}

func dsn() string {
	if cfg.DBDriver == "postgres" {
		return cfg.DSN()
	}
	return cfg.SQLitePath
}
