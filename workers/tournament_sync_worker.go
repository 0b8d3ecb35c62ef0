package workers

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tcg-companion/models"
	"tcg-companion/reconcile"
	"tcg-companion/scraper"
)

type TournamentSyncSummary struct {
	reconcile.Result
	SourceID uint   `json:"source_id"`
	RunID    string `json:"run_id"`
}

// SyncLimitlessTournaments mirrors the Limitless tournament listing into tournaments.
// Tournaments are matched on (source, identity) and never tombstoned.
func (r *Runner) SyncLimitlessTournaments(ctx context.Context) (TournamentSyncSummary, error) {
	release, err := r.acquire(PipelineTournaments)
	if err != nil {
		return TournamentSyncSummary{}, err
	}
	defer release()

	start := time.Now()
	sum, err := r.syncTournaments(ctx)
	observe(PipelineTournaments, start, false, err)
	if err != nil {
		r.log.Error().Err(err).Str("run_id", sum.RunID).Msg("❌ [SYNC] tournament sync failed")
		return sum, err
	}

	countEntities(PipelineTournaments, sum.Result)
	r.log.Info().
		Str("run_id", sum.RunID).
		Int("created", sum.Created).
		Int("updated", sum.Updated).
		Int("pages", sum.Pages).
		Msg("✅ [SYNC] tournaments synced")
	return sum, nil
}

func (r *Runner) syncTournaments(ctx context.Context) (TournamentSyncSummary, error) {
	sum := TournamentSyncSummary{RunID: newRunID()}

	client, err := r.limitlessClient(sum.RunID)
	if err != nil {
		return sum, err
	}

	source, err := r.ensureLimitlessSource(ctx, client.BaseURL())
	if err != nil {
		return sum, err
	}
	sum.SourceID = source.ID

	r.log.Info().Str("run_id", sum.RunID).Str("base_url", client.BaseURL()).Msg("[SYNC] 📡 Fetching Limitless tournament listing")

	pages := reconcile.SourceFunc[scraper.TournamentRow](func(ctx context.Context, req reconcile.PageRequest) (reconcile.PageResult[scraper.TournamentRow], error) {
		lp, err := Retry(ctx, r.retry, "limitless tournaments page", func() (scraper.ListPage, error) {
			return client.FetchTournamentListPage(ctx, req.Number)
		})
		if err != nil {
			return reconcile.PageResult[scraper.TournamentRow]{}, err
		}
		last := lp.MaxPages <= 0 || req.Number >= lp.MaxPages
		page := reconcile.PageResult[scraper.TournamentRow]{Items: lp.Rows, Last: last}
		// the pagination widget decides whether more pages follow, not the row count;
		// the site may ignore show= and rows with too few cells are dropped
		if !last && len(lp.Rows) > 0 {
			page.Fetched = max(len(lp.Rows), req.Size)
		}
		return page, nil
	})

	res, err := reconcile.Run[scraper.TournamentRow](ctx, r.db, pages, tournamentStore{sourceID: source.ID}, reconcile.Options{
		PageSize:  client.PageSize(),
		Delay:     r.delay(),
		ChunkSize: r.cfg.Sync.ChunkSize,
		Now:       r.now,
		Sleep:     r.sleep,
	})
	sum.Result = res
	if err != nil {
		return sum, err
	}

	if err := r.db.WithContext(ctx).Model(&models.TournamentSource{}).
		Where("id = ?", source.ID).
		Update("last_synced_at", res.Timestamp).Error; err != nil {
		return sum, fmt.Errorf("failed to stamp tournament source: %w", err)
	}
	return sum, nil
}

// ensureLimitlessSource upserts the limitless TournamentSource row.
func (r *Runner) ensureLimitlessSource(ctx context.Context, baseURL string) (models.TournamentSource, error) {
	db := r.db.WithContext(ctx)
	source := models.TournamentSource{Slug: models.SourceLimitless, Name: "Limitless TCG", BaseURL: baseURL}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slug"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "base_url", "updated_at"}),
	}).Create(&source).Error; err != nil {
		return source, fmt.Errorf("failed to upsert tournament source: %w", err)
	}
	if err := db.Where("slug = ?", models.SourceLimitless).First(&source).Error; err != nil {
		return source, fmt.Errorf("failed to load tournament source: %w", err)
	}
	return source, nil
}

type tournamentStore struct {
	sourceID uint
}

func (s tournamentStore) Key(row scraper.TournamentRow) string {
	return fmt.Sprintf("%d/%s", s.sourceID, row.Identity())
}

// tournamentColumns are rewritten on every re-sync, nulls included.
var tournamentColumns = []string{
	"type", "name", "region", "country", "format", "event_date", "player_count",
	"is_player_count_approx", "winner_name", "winner_url", "tournament_url", "last_synced_at",
}

func (s tournamentStore) Upsert(tx *gorm.DB, row scraper.TournamentRow, stamp time.Time) (reconcile.Outcome, error) {
	t := models.Tournament{
		SourceID:            s.sourceID,
		SourceTournamentID:  row.Identity(),
		Type:                scraper.ClassifyTournamentType(row.Name),
		Name:                row.Name,
		Region:              row.Region,
		Country:             row.Country,
		Format:              row.Format,
		EventDate:           row.EventDate(),
		PlayerCount:         row.Players,
		IsPlayerCountApprox: row.PlayersApprox,
		WinnerName:          row.Winner,
		WinnerURL:           row.WinnerURL,
		TournamentURL:       row.DetailURL,
		Status:              models.TournamentStatusCompleted,
		LastSyncedAt:        &stamp,
	}

	var existing models.Tournament
	if err := tx.Where("source_id = ? AND source_tournament_id = ?", t.SourceID, t.SourceTournamentID).
		Limit(1).Find(&existing).Error; err != nil {
		return reconcile.OutcomeSkipped, err
	}

	if existing.ID == 0 {
		if err := tx.Create(&t).Error; err != nil {
			return reconcile.OutcomeSkipped, err
		}
		return reconcile.OutcomeCreated, nil
	}

	if err := tx.Model(&existing).Select(tournamentColumns).Updates(&t).Error; err != nil {
		return reconcile.OutcomeSkipped, err
	}
	return reconcile.OutcomeUpdated, nil
}
