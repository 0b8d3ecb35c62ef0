package services

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"tcg-companion/alerts"
	"tcg-companion/config"
	"tcg-companion/models"
	"tcg-companion/testutil"
	"tcg-companion/workers"
)

// fakeRunner records the options it was called with and returns err from every pipeline.
type fakeRunner struct {
	err     error
	decks   *workers.DeckSyncOptions
	catalog *workers.CatalogSyncOptions
	prices  *workers.PriceSyncOptions
	cardIDs []uint

	mu    sync.Mutex
	calls map[string]int
}

func (f *fakeRunner) hit(p string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[p]++
}

func (f *fakeRunner) count(p string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[p]
}

func (f *fakeRunner) SyncLimitlessTournaments(context.Context) (workers.TournamentSyncSummary, error) {
	f.hit(workers.PipelineTournaments)
	return workers.TournamentSyncSummary{RunID: "run-1"}, f.err
}

func (f *fakeRunner) SyncLimitlessTournamentDecks(_ context.Context, opts workers.DeckSyncOptions) (workers.DeckSyncSummary, error) {
	f.hit(workers.PipelineDecks)
	f.decks = &opts
	return workers.DeckSyncSummary{Tournaments: 2}, f.err
}

func (f *fakeRunner) SyncTcgCatalog(_ context.Context, opts workers.CatalogSyncOptions) (workers.CatalogSyncSummary, error) {
	f.hit(workers.PipelineCatalog)
	f.catalog = &opts
	return workers.CatalogSyncSummary{}, f.err
}

func (f *fakeRunner) SyncTcgplayerPrices(_ context.Context, opts workers.PriceSyncOptions) (workers.PriceSyncSummary, error) {
	f.hit(workers.PipelinePrices)
	f.prices = &opts
	return workers.PriceSyncSummary{}, f.err
}

func (f *fakeRunner) EvaluatePriceAlerts(_ context.Context, cardIDs []uint) (alerts.Summary, error) {
	f.hit(workers.PipelineAlerts)
	f.cardIDs = cardIDs
	return alerts.Summary{Evaluated: len(cardIDs)}, f.err
}

func newTestApp(t *testing.T, runner SyncRunner) (*fiber.App, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	svc := NewSyncService(db, runner)
	app := fiber.New()
	app.Post("/admin/sync/tournaments", svc.SyncTournaments)
	app.Post("/admin/sync/tournament-decks", svc.SyncTournamentDecks)
	app.Post("/admin/sync/catalog", svc.SyncCatalog)
	app.Post("/admin/sync/prices", svc.SyncPrices)
	app.Post("/admin/alerts/evaluate", svc.EvaluateAlerts)
	app.Get("/admin/notifications", svc.ListNotifications)
	app.Get("/health", svc.Health)
	return app, db
}

func do(t *testing.T, app *fiber.App, method, target, body string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func TestSyncTriggersPassOptions(t *testing.T) {
	runner := &fakeRunner{}
	app, _ := newTestApp(t, runner)

	status, body := do(t, app, "POST", "/admin/sync/tournament-decks?limit=5", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, 5, runner.decks.Limit)
	assert.Equal(t, float64(2), body["tournaments"])

	status, _ = do(t, app, "POST", "/admin/sync/catalog", `{"page_size":50,"offset":100,"limit":10,"delay_ms":250,"dry_run":true}`)
	assert.Equal(t, fiber.StatusOK, status)
	require.NotNil(t, runner.catalog)
	assert.Equal(t, 50, runner.catalog.PageSize)
	assert.Equal(t, 100, runner.catalog.Offset)
	assert.Equal(t, 10, runner.catalog.Limit)
	assert.True(t, runner.catalog.DryRun)
	require.NotNil(t, runner.catalog.Delay)
	assert.Equal(t, 250*time.Millisecond, *runner.catalog.Delay)

	status, _ = do(t, app, "POST", "/admin/sync/catalog", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Nil(t, runner.catalog.Delay, "no body keeps the configured delay")

	status, _ = do(t, app, "POST", "/admin/sync/prices?watchlisted=true", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.True(t, runner.prices.OnlyWatchlisted)

	status, body = do(t, app, "POST", "/admin/alerts/evaluate", `{"card_ids":[3,4]}`)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, []uint{3, 4}, runner.cardIDs)
	assert.Equal(t, float64(2), body["evaluated"])
}

func TestSyncTriggerRejectsBadInput(t *testing.T) {
	runner := &fakeRunner{}
	app, _ := newTestApp(t, runner)

	status, _ := do(t, app, "POST", "/admin/sync/tournament-decks?limit=-1", "")
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = do(t, app, "POST", "/admin/sync/catalog", `{"offset":-5}`)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = do(t, app, "POST", "/admin/sync/catalog", `{"offset":`)
	assert.Equal(t, fiber.StatusBadRequest, status)

	assert.Zero(t, runner.count(workers.PipelineCatalog))
}

func TestSyncErrorsMapToStatus(t *testing.T) {
	app, _ := newTestApp(t, &fakeRunner{err: workers.ErrSyncInProgress})
	status, body := do(t, app, "POST", "/admin/sync/tournaments", "")
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, workers.PipelineTournaments, body["pipeline"])

	app, _ = newTestApp(t, &fakeRunner{err: errors.New("limitless unreachable")})
	status, body = do(t, app, "POST", "/admin/sync/tournaments", "")
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, "limitless unreachable", body["details"])
}

func TestListNotifications(t *testing.T) {
	app, db := newTestApp(t, &fakeRunner{})
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, n := range []models.AdminNotification{
		{UserID: "user-1", Title: "old"},
		{UserID: "user-2", Title: "other user"},
		{UserID: "user-1", Title: "new"},
		{UserID: "user-1", Title: "read", IsRead: true},
	} {
		n.ID = uuid.NewString()
		n.Type = models.NotificationTypePriceAlert
		n.Message = n.Title
		n.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, db.Create(&n).Error)
	}

	status, body := do(t, app, "GET", "/admin/notifications?user_id=user-1&unread=true", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(2), body["count"])
	list := body["notifications"].([]any)
	assert.Equal(t, "new", list[0].(map[string]any)["title"])
	assert.Equal(t, "old", list[1].(map[string]any)["title"])

	_, body = do(t, app, "GET", "/admin/notifications?limit=1", "")
	assert.Equal(t, float64(1), body["count"])
}

func TestHealth(t *testing.T) {
	app, _ := newTestApp(t, &fakeRunner{})
	status, body := do(t, app, "GET", "/health", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestNewSchedulerSkipsDisabledJobs(t *testing.T) {
	sched, err := NewScheduler(context.Background(), &fakeRunner{}, config.ScheduleConfig{
		Tournaments: time.Hour,
		Prices:      15 * time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sched.Shutdown() })

	var names []string
	for _, j := range sched.Jobs() {
		names = append(names, j.Name())
	}
	assert.ElementsMatch(t, []string{workers.PipelineTournaments, workers.PipelinePrices}, names)
}

func TestScheduledRunCallsPipeline(t *testing.T) {
	runner := &fakeRunner{}
	sched, err := NewScheduler(context.Background(), runner, config.ScheduleConfig{Catalog: time.Hour})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sched.Shutdown() })

	jobs := sched.Jobs()
	require.Len(t, jobs, 1)
	sched.Start()
	require.NoError(t, jobs[0].RunNow())
	assert.Eventually(t, func() bool {
		return runner.count(workers.PipelineCatalog) == 1
	}, 2*time.Second, 10*time.Millisecond)
}
