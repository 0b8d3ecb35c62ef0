// Package cli implements the tcgsync command line, a one-shot trigger for each sync pipeline.
package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"tcg-companion/config"
	"tcg-companion/logging"
	"tcg-companion/models"
	"tcg-companion/services"
	"tcg-companion/utils"
	"tcg-companion/workers"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format   string // "json" | "text"
	LogLevel string

	// NewRunner builds the pipelines for one invocation. The returned func releases them.
	NewRunner func(ctx context.Context) (services.SyncRunner, func(), error)
}

var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the tcgsync root command wired to the real database and sites.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}
	opts.NewRunner = opts.defaultRunner
	return newRootCommand(opts)
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tcgsync",
		Short: "Run tcg-companion sync pipelines once",
		Long: `Run one tcg-companion sync pipeline against the configured database and exit.

Configuration comes from the same environment variables (and .env file) as the server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "override LOG_LEVEL")

	cmd.AddCommand(newTournamentsCommand(opts))
	cmd.AddCommand(newDecksCommand(opts))
	cmd.AddCommand(newCatalogCommand(opts))
	cmd.AddCommand(newPricesCommand(opts))
	cmd.AddCommand(newAlertsCommand(opts))
	return cmd
}

func (o *RootOptions) defaultRunner(ctx context.Context) (services.SyncRunner, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	level := cfg.Logging.Level
	if o.LogLevel != "" {
		level = o.LogLevel
	}
	// console logs on stderr keep --format json output on stdout parseable
	logging.Init(logging.Config{Level: level, Format: "console"})

	db, err := models.Open(cfg.Database.URL)
	if err != nil {
		return nil, nil, err
	}
	if err := models.AutoMigrate(db); err != nil {
		return nil, nil, err
	}
	archiver, err := utils.NewArchiver(ctx, cfg.Archive)
	if err != nil {
		return nil, nil, err
	}

	runner := workers.NewRunner(workers.Deps{DB: db, Config: cfg, Archiver: archiver})
	closeDB := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return runner, closeDB, nil
}
