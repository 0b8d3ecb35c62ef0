package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tcg-companion/alerts"
	"tcg-companion/reconcile"
	"tcg-companion/services"
	"tcg-companion/workers"
)

type fakeRunner struct {
	err     error
	decks   workers.DeckSyncOptions
	catalog workers.CatalogSyncOptions
	prices  workers.PriceSyncOptions
	cardIDs []uint
}

func (f *fakeRunner) SyncLimitlessTournaments(context.Context) (workers.TournamentSyncSummary, error) {
	return workers.TournamentSyncSummary{Result: reconcile.Result{Processed: 103, Created: 103}, RunID: "run-1"}, f.err
}

func (f *fakeRunner) SyncLimitlessTournamentDecks(_ context.Context, o workers.DeckSyncOptions) (workers.DeckSyncSummary, error) {
	f.decks = o
	return workers.DeckSyncSummary{}, f.err
}

func (f *fakeRunner) SyncTcgCatalog(_ context.Context, o workers.CatalogSyncOptions) (workers.CatalogSyncSummary, error) {
	f.catalog = o
	return workers.CatalogSyncSummary{}, f.err
}

func (f *fakeRunner) SyncTcgplayerPrices(_ context.Context, o workers.PriceSyncOptions) (workers.PriceSyncSummary, error) {
	f.prices = o
	return workers.PriceSyncSummary{Cards: 2, Alerts: alerts.Summary{Triggered: 1}}, f.err
}

func (f *fakeRunner) EvaluatePriceAlerts(_ context.Context, ids []uint) (alerts.Summary, error) {
	f.cardIDs = ids
	return alerts.Summary{}, f.err
}

func execute(t *testing.T, runner *fakeRunner, args ...string) (string, error) {
	t.Helper()
	opts := &RootOptions{NewRunner: func(context.Context) (services.SyncRunner, func(), error) {
		return runner, nil, nil
	}}
	cmd := newRootCommand(opts)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"tournaments", "decks", "catalog", "prices", "alerts"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, sub.Name())
	}
	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)
}

func TestTextOutput(t *testing.T) {
	out, err := execute(t, &fakeRunner{}, "tournaments")
	require.NoError(t, err)
	assert.Contains(t, out, "tournaments complete")
	assert.Regexp(t, `created\s+103`, out)
	assert.Regexp(t, `run_id\s+run-1`, out)

	out, err = execute(t, &fakeRunner{}, "prices")
	require.NoError(t, err)
	assert.Regexp(t, `alerts\.triggered\s+1`, out)
}

func TestJSONOutput(t *testing.T) {
	out, err := execute(t, &fakeRunner{}, "tournaments", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status  string         `json:"status"`
		Command string         `json:"command"`
		Data    map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "tournaments", resp.Command)
	assert.Equal(t, float64(103), resp.Data["created"])
}

func TestFlagsReachOptions(t *testing.T) {
	r := &fakeRunner{}

	_, err := execute(t, r, "decks", "--limit", "7")
	require.NoError(t, err)
	assert.Equal(t, 7, r.decks.Limit)

	_, err = execute(t, r, "catalog", "--page-size", "50", "--offset", "10", "--limit", "5", "--dry-run", "--delay", "1500ms")
	require.NoError(t, err)
	assert.Equal(t, 50, r.catalog.PageSize)
	assert.Equal(t, 10, r.catalog.Offset)
	assert.Equal(t, 5, r.catalog.Limit)
	assert.True(t, r.catalog.DryRun)
	require.NotNil(t, r.catalog.Delay)
	assert.Equal(t, 1500*time.Millisecond, *r.catalog.Delay)

	_, err = execute(t, r, "catalog")
	require.NoError(t, err)
	assert.Nil(t, r.catalog.Delay)

	_, err = execute(t, r, "prices", "--watchlisted")
	require.NoError(t, err)
	assert.True(t, r.prices.OnlyWatchlisted)

	_, err = execute(t, r, "alerts", "4", "9")
	require.NoError(t, err)
	assert.Equal(t, []uint{4, 9}, r.cardIDs)
}

func TestInvalidInput(t *testing.T) {
	_, err := execute(t, &fakeRunner{}, "alerts", "abc")
	assert.Error(t, err)

	_, err = execute(t, &fakeRunner{}, "tournaments", "--format", "yaml")
	assert.Error(t, err)

	_, err = execute(t, &fakeRunner{}, "decks", "--limit", "-1")
	assert.Error(t, err)
}

func TestRunFailurePropagates(t *testing.T) {
	boom := errors.New("tcgplayer down")

	_, err := execute(t, &fakeRunner{err: boom}, "prices")
	assert.ErrorIs(t, err, boom)

	out, err := execute(t, &fakeRunner{err: boom}, "prices", "--format", "json")
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, out, `"status":"error"`)
	assert.Contains(t, out, "tcgplayer down")
}
