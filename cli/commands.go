package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"tcg-companion/services"
	"tcg-companion/workers"
)

// run builds a runner, calls fn with it and prints the summary.
func run(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, r services.SyncRunner) (any, error)) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	runner, release, err := opts.NewRunner(ctx)
	if err != nil {
		return err
	}
	if release != nil {
		defer release()
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	summary, err := fn(ctx, runner)
	if err != nil {
		if opts.Format == "json" {
			_ = out.Error(err)
		}
		return err
	}
	return out.Success(cmd.Name(), summary)
}

func newTournamentsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tournaments",
		Short: "Sync the Limitless tournament listing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, func(ctx context.Context, r services.SyncRunner) (any, error) {
				return r.SyncLimitlessTournaments(ctx)
			})
		},
	}
}

func newDecksCommand(opts *RootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "decks",
		Short: "Import standings and deck lists for recent tournaments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return fmt.Errorf("--limit must not be negative")
			}
			return run(cmd, opts, func(ctx context.Context, r services.SyncRunner) (any, error) {
				return r.SyncLimitlessTournamentDecks(ctx, workers.DeckSyncOptions{Limit: limit})
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "tournaments to process, newest first (0 = SYNC_DECK_LIMIT)")
	return cmd
}

func newCatalogCommand(opts *RootOptions) *cobra.Command {
	var (
		pageSize, offset, limit int
		delay                   time.Duration
		dryRun                  bool
	)
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Mirror the TCGplayer catalog",
		Long: `Mirror the TCGplayer catalog into tcg_catalog_products.

Only a full pass (no --offset, no --limit, no --dry-run) marks missing products as removed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if pageSize < 0 || offset < 0 || limit < 0 || delay < 0 {
				return fmt.Errorf("--page-size, --offset, --limit and --delay must not be negative")
			}
			o := workers.CatalogSyncOptions{PageSize: pageSize, Offset: offset, Limit: limit, DryRun: dryRun}
			if cmd.Flags().Changed("delay") {
				o.Delay = &delay
			}
			return run(cmd, opts, func(ctx context.Context, r services.SyncRunner) (any, error) {
				return r.SyncTcgCatalog(ctx, o)
			})
		},
	}
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "products per page, at most 100 (0 = SYNC_PAGE_SIZE)")
	cmd.Flags().IntVar(&offset, "offset", 0, "start offset")
	cmd.Flags().IntVar(&limit, "limit", 0, "stop after this many products (0 = all)")
	cmd.Flags().DurationVar(&delay, "delay", 0, "pause between pages (default SYNC_DELAY)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "fetch and log without writing")
	return cmd
}

func newPricesCommand(opts *RootOptions) *cobra.Command {
	var watchlisted bool
	cmd := &cobra.Command{
		Use:   "prices",
		Short: "Refresh card prices and evaluate price alerts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, func(ctx context.Context, r services.SyncRunner) (any, error) {
				return r.SyncTcgplayerPrices(ctx, workers.PriceSyncOptions{OnlyWatchlisted: watchlisted})
			})
		},
	}
	cmd.Flags().BoolVar(&watchlisted, "watchlisted", false, "only cards with an active price alert")
	return cmd
}

func newAlertsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "alerts [card-id...]",
		Short: "Evaluate price alerts against current prices",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]uint, 0, len(args))
			for _, a := range args {
				id, err := strconv.ParseUint(a, 10, 0)
				if err != nil || id == 0 {
					return fmt.Errorf("invalid card id %q", a)
				}
				ids = append(ids, uint(id))
			}
			return run(cmd, opts, func(ctx context.Context, r services.SyncRunner) (any, error) {
				return r.EvaluatePriceAlerts(ctx, ids)
			})
		},
	}
}
