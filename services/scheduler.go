package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"

	"tcg-companion/config"
	"tcg-companion/logging"
	"tcg-companion/workers"
)

// NewScheduler registers one job per pipeline with a non-zero interval. Jobs run in singleton
// mode; a tick that lands while the previous run is still going is skipped. The scheduler is
// returned unstarted.
func NewScheduler(ctx context.Context, runner SyncRunner, cfg config.ScheduleConfig) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	log := logging.For("scheduler")

	jobs := []struct {
		name     string
		interval time.Duration
		run      func(context.Context) error
	}{
		{workers.PipelineTournaments, cfg.Tournaments, func(ctx context.Context) error {
			_, err := runner.SyncLimitlessTournaments(ctx)
			return err
		}},
		{workers.PipelineDecks, cfg.Decks, func(ctx context.Context) error {
			_, err := runner.SyncLimitlessTournamentDecks(ctx, workers.DeckSyncOptions{})
			return err
		}},
		{workers.PipelineCatalog, cfg.Catalog, func(ctx context.Context) error {
			_, err := runner.SyncTcgCatalog(ctx, workers.CatalogSyncOptions{})
			return err
		}},
		{workers.PipelinePrices, cfg.Prices, func(ctx context.Context) error {
			_, err := runner.SyncTcgplayerPrices(ctx, workers.PriceSyncOptions{})
			return err
		}},
	}

	for _, j := range jobs {
		if j.interval <= 0 {
			log.Info().Str("job", j.name).Msg("[Scheduler] job disabled")
			continue
		}
		_, err := sched.NewJob(
			gocron.DurationJob(j.interval),
			gocron.NewTask(func() {
				err := j.run(ctx)
				switch {
				case errors.Is(err, workers.ErrSyncInProgress):
					log.Info().Str("job", j.name).Msg("[Scheduler] previous run still going, skipping tick")
				case err != nil:
					// the pipeline already logged the failure
					log.Warn().Err(err).Str("job", j.name).Msg("[Scheduler] scheduled run failed")
				}
			}),
			gocron.WithName(j.name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			_ = sched.Shutdown()
			return nil, fmt.Errorf("failed to schedule %s: %w", j.name, err)
		}
		log.Info().Str("job", j.name).Dur("every", j.interval).Msg("⏰ [Scheduler] job registered")
	}
	return sched, nil
}
