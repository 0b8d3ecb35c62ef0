package workers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tcg-companion/models"
)

func TestSyncTcgCatalogTombstonesMissingProducts(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.api.setCatalog(1001, 1002, 1003)
	first, err := e.runner.SyncTcgCatalog(ctx, CatalogSyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, first.Created)
	assert.Equal(t, 2, first.Pages, "page size 2 over 3 products")

	e.clock = e.clock.Add(time.Hour)
	e.api.setCatalog(1001, 1003)
	second, err := e.runner.SyncTcgCatalog(ctx, CatalogSyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 2, second.Updated)
	assert.Equal(t, 1, second.Stale)

	var removed models.TcgCatalogProduct
	require.NoError(t, e.db.Where("product_id = ?", 1002).First(&removed).Error)
	assert.Equal(t, models.ProductStatusRemoved, removed.ProductStatus)
	assert.Equal(t, int64(2), e.count(t, &models.TcgCatalogProduct{}, "product_status = ?", models.ProductStatusActive))

	// coming back upstream revives it
	e.clock = e.clock.Add(time.Hour)
	e.api.setCatalog(1001, 1002, 1003)
	third, err := e.runner.SyncTcgCatalog(ctx, CatalogSyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, third.Stale)
	assert.Equal(t, int64(3), e.count(t, &models.TcgCatalogProduct{}, "product_status = ?", models.ProductStatusActive))
}

func TestSyncTcgCatalogNormalizesProducts(t *testing.T) {
	e := newEnv(t)
	e.api.setCatalog(1001)

	_, err := e.runner.SyncTcgCatalog(context.Background(), CatalogSyncOptions{})
	require.NoError(t, err)

	var p models.TcgCatalogProduct
	require.NoError(t, e.db.Where("product_id = ?", 1001).First(&p).Error)
	assert.Equal(t, "Card 1001", p.Name)
	assert.Equal(t, "Character", p.CardType)
	assert.Equal(t, "OP01-001", p.Number)
	assert.False(t, p.IsSealed)
	assert.Contains(t, string(p.Metadata), `"productId":1001`)
	assert.True(t, p.LastSyncedAt.Equal(testNow))
}

func TestSyncTcgCatalogDryRunWritesNothing(t *testing.T) {
	e := newEnv(t)
	e.api.setCatalog(1001, 1002, 1003)

	sum, err := e.runner.SyncTcgCatalog(context.Background(), CatalogSyncOptions{DryRun: true})
	require.NoError(t, err)
	assert.True(t, sum.DryRun)
	assert.Equal(t, 3, sum.Processed)
	assert.Equal(t, 0, sum.Created)
	assert.Equal(t, int64(0), e.count(t, &models.TcgCatalogProduct{}, ""))
}

func TestSyncTcgCatalogPartialPassDoesNotTombstone(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.api.setCatalog(1001, 1002, 1003)
	_, err := e.runner.SyncTcgCatalog(ctx, CatalogSyncOptions{})
	require.NoError(t, err)
	e.clock = e.clock.Add(time.Hour)

	delay := 5 * time.Millisecond
	e.sleeps = nil
	sum, err := e.runner.SyncTcgCatalog(ctx, CatalogSyncOptions{Offset: 1, Limit: 1, PageSize: 50, Delay: &delay})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Processed)
	assert.Equal(t, 0, sum.Stale)
	assert.Empty(t, e.sleeps, "a single page never sleeps")
	assert.Equal(t, int64(3), e.count(t, &models.TcgCatalogProduct{}, "product_status = ?", models.ProductStatusActive))
}

func TestSyncTcgCatalogPacesPages(t *testing.T) {
	e := newEnv(t)
	e.api.setCatalog(1, 2, 3, 4, 5)

	delay := 250 * time.Millisecond
	sum, err := e.runner.SyncTcgCatalog(context.Background(), CatalogSyncOptions{Delay: &delay})
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Pages)
	assert.Equal(t, []time.Duration{delay, delay}, e.sleeps)
}
