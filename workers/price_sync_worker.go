package workers

import (
	"context"
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"

	"tcg-companion/alerts"
	"tcg-companion/models"
	"tcg-companion/tcgplayer"
)

const defaultCurrency = "USD"

type PriceSyncOptions struct {
	OnlyWatchlisted bool // only cards with at least one active alert
}

type PriceSyncSummary struct {
	RunID     string         `json:"run_id"`
	Cards     int            `json:"cards"`
	Chunks    int            `json:"chunks"`
	Updated   int            `json:"updated"`
	Unchanged int            `json:"unchanged"`
	Missing   int            `json:"missing"`
	PriceLogs int            `json:"price_logs"`
	Alerts    alerts.Summary `json:"alerts"`
}

// SyncTcgplayerPrices refreshes market, low and high prices for every card linked to a
// TCGplayer product. Each chunk writes price changes, price log rows and triggered alerts in
// one transaction.
func (r *Runner) SyncTcgplayerPrices(ctx context.Context, opts PriceSyncOptions) (PriceSyncSummary, error) {
	release, err := r.acquire(PipelinePrices)
	if err != nil {
		return PriceSyncSummary{}, err
	}
	defer release()

	start := time.Now()
	sum, err := r.syncPrices(ctx, opts)
	observe(PipelinePrices, start, false, err)
	if err != nil {
		r.log.Error().Err(err).Str("run_id", sum.RunID).Int("chunks", sum.Chunks).Msg("❌ [SYNC] price sync failed")
		return sum, err
	}

	r.log.Info().
		Str("run_id", sum.RunID).
		Int("cards", sum.Cards).
		Int("updated", sum.Updated).
		Int("unchanged", sum.Unchanged).
		Int("missing", sum.Missing).
		Int("price_logs", sum.PriceLogs).
		Int("alerts_triggered", sum.Alerts.Triggered).
		Msg("💰 [SYNC] prices synced")
	return sum, nil
}

func (r *Runner) syncPrices(ctx context.Context, opts PriceSyncOptions) (PriceSyncSummary, error) {
	sum := PriceSyncSummary{RunID: newRunID()}

	q := r.db.WithContext(ctx).Model(&models.Card{}).Where("tcgplayer_product_id IS NOT NULL")
	if opts.OnlyWatchlisted {
		q = q.Where("id IN (?)", r.db.Model(&models.CardPriceAlert{}).Select("card_id").Where("is_active = ?", true))
	}
	var cards []models.Card
	if err := q.Order("id").Find(&cards).Error; err != nil {
		return sum, fmt.Errorf("failed to load cards: %w", err)
	}
	sum.Cards = len(cards)
	if len(cards) == 0 {
		r.log.Info().Bool("watchlisted", opts.OnlyWatchlisted).Msg("[SYNC] no priced cards to refresh")
		return sum, nil
	}

	batch := r.cfg.Sync.PriceBatch
	if batch <= 0 {
		batch = len(cards)
	}
	for start := 0; start < len(cards); start += batch {
		if start > 0 {
			if err := r.sleep(ctx, r.cfg.Sync.Delay); err != nil {
				return sum, err
			}
		}
		chunk := cards[start:min(start+batch, len(cards))]
		if err := r.priceChunk(ctx, chunk, &sum); err != nil {
			return sum, err
		}
		sum.Chunks++
	}
	return sum, nil
}

func (r *Runner) priceChunk(ctx context.Context, cards []models.Card, sum *PriceSyncSummary) error {
	ids := make([]int64, 0, len(cards))
	for _, c := range cards {
		ids = append(ids, *c.TcgplayerProductID)
	}

	entries, err := Retry(ctx, r.retry, "tcgplayer pricing", func() ([]tcgplayer.PricingEntry, error) {
		return r.tcg.GetPricing(ctx, ids)
	})
	if err != nil {
		return fmt.Errorf("pricing for %d products: %w", len(ids), err)
	}
	best := tcgplayer.SelectBestPricing(entries)
	now := r.now().UTC()

	var updated, unchanged, missing int
	var logs []models.CardPriceLog
	var summary alerts.Summary
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updated, unchanged, missing = 0, 0, 0
		logs = logs[:0]
		touched := make([]uint, 0, len(cards))

		for _, card := range cards {
			entry, ok := best[*card.TcgplayerProductID]
			if !ok {
				missing++
				continue
			}
			market, low, high := round2(entry.MarketPrice), round2(entry.LowPrice), round2(entry.HighPrice)

			changes := map[string]any{}
			if Changed(card.MarketPrice, market) {
				changes["market_price"] = market
			}
			if Changed(card.LowPrice, low) {
				changes["low_price"] = low
			}
			if Changed(card.HighPrice, high) {
				changes["high_price"] = high
			}
			if len(changes) > 0 {
				changes["price_updated_at"] = now
				changes["price_currency"] = defaultCurrency
				if err := tx.Model(&models.Card{}).Where("id = ?", card.ID).Updates(changes).Error; err != nil {
					return fmt.Errorf("failed to update card %d prices: %w", card.ID, err)
				}
				updated++
			} else {
				unchanged++
			}

			// the series gets a row per fetched price even when nothing moved
			for _, p := range []struct {
				kind  models.PriceType
				price *float64
			}{
				{models.PriceTypeMarket, market},
				{models.PriceTypeLow, low},
				{models.PriceTypeHigh, high},
			} {
				if p.price == nil {
					continue
				}
				logs = append(logs, models.CardPriceLog{
					CardID:      card.ID,
					PriceType:   p.kind,
					Price:       *p.price,
					Currency:    defaultCurrency,
					CollectedAt: now,
				})
			}
			touched = append(touched, card.ID)
		}

		if len(logs) > 0 {
			if err := tx.Create(&logs).Error; err != nil {
				return fmt.Errorf("failed to write price logs: %w", err)
			}
		}
		if len(touched) == 0 {
			summary = alerts.Summary{}
			return nil
		}
		var err error
		summary, err = r.evaluator.Evaluate(ctx, tx, touched)
		return err
	})
	if err != nil {
		return err
	}

	sum.Updated += updated
	sum.Unchanged += unchanged
	sum.Missing += missing
	sum.PriceLogs += len(logs)
	sum.Alerts = addSummaries(sum.Alerts, summary)
	return nil
}

// EvaluatePriceAlerts evaluates active alerts against current card prices outside a price
// sync. An empty cardIDs evaluates every active alert.
func (r *Runner) EvaluatePriceAlerts(ctx context.Context, cardIDs []uint) (alerts.Summary, error) {
	release, err := r.acquire(PipelineAlerts)
	if err != nil {
		return alerts.Summary{}, err
	}
	defer release()

	start := time.Now()
	var sum alerts.Summary
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		sum, err = r.evaluator.Evaluate(ctx, tx, cardIDs)
		return err
	})
	observe(PipelineAlerts, start, false, err)
	if err != nil {
		r.log.Error().Err(err).Msg("❌ [ALERTS] evaluation failed")
		return alerts.Summary{}, err
	}
	r.log.Info().
		Int("evaluated", sum.Evaluated).
		Int("triggered", sum.Triggered).
		Int("notifications", sum.Notifications).
		Msg("🔔 [ALERTS] evaluation complete")
	return sum, nil
}

func addSummaries(a, b alerts.Summary) alerts.Summary {
	return alerts.Summary{
		Evaluated:     a.Evaluated + b.Evaluated,
		Triggered:     a.Triggered + b.Triggered,
		Skipped:       a.Skipped + b.Skipped,
		Notifications: a.Notifications + b.Notifications,
	}
}

// round2 rounds a price to cents.
func round2(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := math.Round(*v*100) / 100
	return &r
}

// Changed reports whether a fetched price differs from the stored one, at cent precision.
// Both missing is no change; gaining or losing a price is.
func Changed(old, fetched *float64) bool {
	if old == nil || fetched == nil {
		return old != fetched
	}
	return math.Round(*old*100) != math.Round(*fetched*100)
}
