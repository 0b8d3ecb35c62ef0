package alerts

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"tcg-companion/logging"
	"tcg-companion/metrics"
	"tcg-companion/models"
)

type Summary struct {
	Evaluated     int `json:"evaluated"`
	Triggered     int `json:"triggered"`
	Skipped       int `json:"skipped"`
	Notifications int `json:"notifications"`
}

type Evaluator struct {
	now  func() time.Time
	rand *rand.Rand
	log  zerolog.Logger
}

type Option func(*Evaluator)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) { e.now = now }
}

// WithRand makes message selection deterministic.
func WithRand(r *rand.Rand) Option {
	return func(e *Evaluator) { e.rand = r }
}

func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{
		now:  time.Now,
		rand: rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)),
		log:  logging.For("alerts"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate checks every active alert, limited to cardIDs when given, and writes alert logs
// and in-app notifications through tx. Run it inside the transaction that wrote the prices
// so alerts and prices commit together.
func (e *Evaluator) Evaluate(ctx context.Context, tx *gorm.DB, cardIDs []uint) (Summary, error) {
	var sum Summary
	now := e.now().UTC()
	tx = tx.WithContext(ctx)

	q := tx.Preload("Card").Where("is_active = ?", true)
	if len(cardIDs) > 0 {
		q = q.Where("card_id IN ?", cardIDs)
	}
	var active []models.CardPriceAlert
	if err := q.Order("id").Find(&active).Error; err != nil {
		return sum, fmt.Errorf("failed to load price alerts: %w", err)
	}

	var (
		logs          []models.CardPriceAlertLog
		notifications []models.AdminNotification
		triggeredIDs  []uint
	)

	for _, alert := range active {
		sum.Evaluated++

		if alert.Card.MarketPrice == nil {
			sum.Skipped++
			continue
		}
		current := *alert.Card.MarketPrice

		rule, err := RuleFor(alert)
		if err != nil {
			e.log.Warn().Err(err).Uint("alert_id", alert.ID).Msg("⚠️ [ALERTS] skipping misconfigured alert")
			sum.Skipped++
			continue
		}

		obs := Observation{Current: current}
		if pr, ok := rule.(PercentChangeRule); ok {
			prev, err := previousMarketPrice(tx, alert.CardID, now.Add(-pr.Window))
			if err != nil {
				return sum, err
			}
			obs.Previous = prev
		}

		out := rule.Check(obs)
		if !out.Triggered {
			continue
		}

		sum.Triggered++
		metrics.AlertsTriggered.WithLabelValues(string(rule.Type())).Inc()
		triggeredIDs = append(triggeredIDs, alert.ID)

		logs = append(logs, models.CardPriceAlertLog{
			ID:             uuid.NewString(),
			AlertID:        alert.ID,
			CardID:         alert.CardID,
			UserID:         alert.UserID,
			ThresholdType:  alert.ThresholdType,
			ThresholdValue: alert.ThresholdValue,
			TriggerPrice:   current,
			PreviousPrice:  obs.Previous,
			PercentChange:  out.PercentChange,
			CreatedAt:      now,
		})

		if alert.NotificationMethod == models.NotifyInApp {
			n, err := e.notification(alert, current, out.PercentChange, now)
			if err != nil {
				return sum, err
			}
			notifications = append(notifications, n)
		}

		e.log.Info().
			Uint("alert_id", alert.ID).
			Uint("card_id", alert.CardID).
			Str("type", string(alert.ThresholdType)).
			Float64("price", current).
			Msg("🔔 [ALERTS] alert triggered")
	}

	if len(logs) > 0 {
		if err := tx.Create(&logs).Error; err != nil {
			return sum, fmt.Errorf("failed to write alert logs: %w", err)
		}
		if err := tx.Model(&models.CardPriceAlert{}).
			Where("id IN ?", triggeredIDs).
			Update("updated_at", now).Error; err != nil {
			return sum, fmt.Errorf("failed to touch triggered alerts: %w", err)
		}
	}
	if len(notifications) > 0 {
		if err := tx.Create(&notifications).Error; err != nil {
			return sum, fmt.Errorf("failed to write notifications: %w", err)
		}
		sum.Notifications = len(notifications)
	}

	return sum, nil
}

// previousMarketPrice returns the latest MARKET price logged at or before at.
func previousMarketPrice(tx *gorm.DB, cardID uint, at time.Time) (*float64, error) {
	var entry models.CardPriceLog
	err := tx.Where("card_id = ? AND price_type = ? AND collected_at <= ?", cardID, models.PriceTypeMarket, at).
		Order("collected_at DESC").
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load price history for card %d: %w", cardID, err)
	}
	return &entry.Price, nil
}

func (e *Evaluator) notification(alert models.CardPriceAlert, price float64, pct *float64, now time.Time) (models.AdminNotification, error) {
	meta, err := json.Marshal(map[string]any{
		"alert_id":        alert.ID,
		"card_id":         alert.CardID,
		"threshold_type":  alert.ThresholdType,
		"threshold_value": alert.ThresholdValue,
		"trigger_price":   price,
		"percent_change":  pct,
	})
	if err != nil {
		return models.AdminNotification{}, fmt.Errorf("failed to encode notification metadata: %w", err)
	}

	return models.AdminNotification{
		ID:        uuid.NewString(),
		UserID:    alert.UserID,
		Type:      models.NotificationTypePriceAlert,
		Title:     buildTitle(alert.Card.Name),
		Message:   buildMessage(e.rand, alert.ThresholdType, alert.Card.Name, price, alert.ThresholdValue, pct),
		Metadata:  datatypes.JSON(meta),
		CreatedAt: now,
	}, nil
}
