package workers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tcg-companion/models"
)

func TestChanged(t *testing.T) {
	assert.False(t, Changed(nil, nil))
	assert.True(t, Changed(nil, fptr(1)))
	assert.True(t, Changed(fptr(1), nil))
	assert.True(t, Changed(fptr(1), fptr(1.01)))
	assert.False(t, Changed(fptr(1.25), fptr(1.25)))
}

func TestRound2(t *testing.T) {
	assert.Nil(t, round2(nil))
	assert.Equal(t, 12.35, *round2(fptr(12.3456)))
	assert.Equal(t, 3.0, *round2(fptr(2.999)))
}

type pricedCards struct {
	zoro, nami, unlisted models.Card
}

func seedPricedCards(t *testing.T, e *env) pricedCards {
	t.Helper()
	c := pricedCards{
		zoro:     models.Card{Code: "OP01-001", Name: "Roronoa Zoro", TcgplayerProductID: i64ptr(501)},
		nami:     models.Card{Code: "OP01-016", Name: "Nami", TcgplayerProductID: i64ptr(502)},
		unlisted: models.Card{Code: "OP01-013", Name: "Sanji"},
	}
	for _, card := range []*models.Card{&c.zoro, &c.nami, &c.unlisted} {
		require.NoError(t, e.db.Create(card).Error)
	}
	return c
}

func zoroPricing(market, low, high any) []map[string]any {
	return []map[string]any{
		{"productId": 501, "subTypeName": "Normal", "marketPrice": market, "lowPrice": low, "highPrice": high},
		{"productId": 501, "subTypeName": "Foil", "marketPrice": 99.0},
	}
}

func TestSyncPricesUnchangedMarketOnlyLogsOneRow(t *testing.T) {
	e := newEnv(t)
	cards := seedPricedCards(t, e)
	ctx := context.Background()

	e.api.pricing = zoroPricing(12.35, nil, nil)
	_, err := e.runner.SyncTcgplayerPrices(ctx, PriceSyncOptions{})
	require.NoError(t, err)
	before := e.count(t, &models.CardPriceLog{}, "card_id = ?", cards.zoro.ID)
	assert.Equal(t, int64(1), before)

	e.clock = e.clock.Add(time.Hour)
	sum, err := e.runner.SyncTcgplayerPrices(ctx, PriceSyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Updated)
	assert.Equal(t, 1, sum.Unchanged)
	assert.Equal(t, 1, sum.PriceLogs)
	assert.Equal(t, before+1, e.count(t, &models.CardPriceLog{}, "card_id = ?", cards.zoro.ID), "exactly one new log row")
}

func TestSyncPricesUpdatesChangedFieldsAndLogsEveryPrice(t *testing.T) {
	e := newEnv(t)
	cards := seedPricedCards(t, e)
	ctx := context.Background()

	e.api.pricing = zoroPricing(12.3456, 10.0, 20.0)
	first, err := e.runner.SyncTcgplayerPrices(ctx, PriceSyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, first.Cards)
	assert.Equal(t, 1, first.Chunks)
	assert.Equal(t, 1, first.Updated)
	assert.Equal(t, 1, first.Missing, "nami has no pricing entry")
	assert.Equal(t, 3, first.PriceLogs)

	var zoro models.Card
	require.NoError(t, e.db.First(&zoro, cards.zoro.ID).Error)
	require.NotNil(t, zoro.MarketPrice)
	assert.Equal(t, 12.35, *zoro.MarketPrice, "normal beats foil, rounded to cents")
	assert.Equal(t, 10.0, *zoro.LowPrice)
	assert.Equal(t, "USD", zoro.PriceCurrency)
	require.NotNil(t, zoro.PriceUpdatedAt)

	// same prices: nothing to update, but the series still grows
	e.clock = e.clock.Add(time.Hour)
	second, err := e.runner.SyncTcgplayerPrices(ctx, PriceSyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Updated)
	assert.Equal(t, 1, second.Unchanged)
	assert.Equal(t, 3, second.PriceLogs)
	assert.Equal(t, int64(6), e.count(t, &models.CardPriceLog{}, ""))

	var unchanged models.Card
	require.NoError(t, e.db.First(&unchanged, cards.zoro.ID).Error)
	assert.True(t, unchanged.PriceUpdatedAt.Equal(*zoro.PriceUpdatedAt), "no-op leaves price_updated_at alone")

	// a price that disappears upstream is cleared
	e.api.pricing = zoroPricing(12.35, nil, 20.0)
	third, err := e.runner.SyncTcgplayerPrices(ctx, PriceSyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, third.Updated)
	assert.Equal(t, 2, third.PriceLogs)

	require.NoError(t, e.db.First(&zoro, cards.zoro.ID).Error)
	assert.Nil(t, zoro.LowPrice)
	assert.Equal(t, 12.35, *zoro.MarketPrice)
}

func TestSyncPricesEvaluatesAlertsForTouchedCards(t *testing.T) {
	e := newEnv(t)
	cards := seedPricedCards(t, e)
	e.api.pricing = zoroPricing(15.0, 10.0, 20.0)

	above := models.CardPriceAlert{UserID: "user-1", CardID: cards.zoro.ID, ThresholdType: models.ThresholdAboveValue, ThresholdValue: 12, NotificationMethod: models.NotifyInApp, IsActive: true}
	below := models.CardPriceAlert{UserID: "user-2", CardID: cards.zoro.ID, ThresholdType: models.ThresholdBelowValue, ThresholdValue: 12, NotificationMethod: models.NotifyInApp, IsActive: true}
	require.NoError(t, e.db.Create(&above).Error)
	require.NoError(t, e.db.Create(&below).Error)

	sum, err := e.runner.SyncTcgplayerPrices(context.Background(), PriceSyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Alerts.Evaluated)
	assert.Equal(t, 1, sum.Alerts.Triggered)
	assert.Equal(t, 1, sum.Alerts.Notifications)

	var logs []models.CardPriceAlertLog
	require.NoError(t, e.db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, above.ID, logs[0].AlertID)
	assert.Equal(t, 15.0, logs[0].TriggerPrice)
	assert.Equal(t, int64(1), e.count(t, &models.AdminNotification{}, "user_id = ?", "user-1"))
}

func TestSyncPricesOnlyWatchlisted(t *testing.T) {
	e := newEnv(t)
	cards := seedPricedCards(t, e)
	e.api.pricing = zoroPricing(15.0, 10.0, 20.0)

	watch := models.CardPriceAlert{UserID: "user-1", CardID: cards.zoro.ID, ThresholdType: models.ThresholdAboveValue, ThresholdValue: 100, IsActive: true}
	paused := models.CardPriceAlert{UserID: "user-1", CardID: cards.nami.ID, ThresholdType: models.ThresholdAboveValue, ThresholdValue: 100, IsActive: true}
	require.NoError(t, e.db.Create(&watch).Error)
	require.NoError(t, e.db.Create(&paused).Error)
	require.NoError(t, e.db.Model(&paused).Update("is_active", false).Error)

	sum, err := e.runner.SyncTcgplayerPrices(context.Background(), PriceSyncOptions{OnlyWatchlisted: true})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Cards)
	assert.Equal(t, 0, sum.Missing)
}

func TestSyncPricesChunksAndPaces(t *testing.T) {
	e := newEnv(t)
	seedPricedCards(t, e)
	e.runner.cfg.Sync.PriceBatch = 1
	e.runner.cfg.Sync.Delay = time.Second
	e.api.pricing = zoroPricing(15.0, 10.0, 20.0)

	sum, err := e.runner.SyncTcgplayerPrices(context.Background(), PriceSyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Chunks)
	assert.Equal(t, 2, e.api.pricingN)
	assert.Equal(t, []time.Duration{time.Second}, e.sleeps)
}

func TestEvaluatePriceAlerts(t *testing.T) {
	e := newEnv(t)
	cards := seedPricedCards(t, e)
	require.NoError(t, e.db.Model(&models.Card{}).Where("id = ?", cards.nami.ID).Update("market_price", 4.5).Error)

	alert := models.CardPriceAlert{UserID: "user-1", CardID: cards.nami.ID, ThresholdType: models.ThresholdBelowValue, ThresholdValue: 5, NotificationMethod: models.NotifyInApp, IsActive: true}
	require.NoError(t, e.db.Create(&alert).Error)

	sum, err := e.runner.EvaluatePriceAlerts(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Triggered)
	assert.Equal(t, 1, sum.Notifications)

	sum, err = e.runner.EvaluatePriceAlerts(context.Background(), []uint{cards.zoro.ID})
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Evaluated)
}
