package workers

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"tcg-companion/models"
	"tcg-companion/reconcile"
	"tcg-companion/tcgplayer"
)

// CatalogSyncOptions bound one catalog pass. Zero values fall back to configuration.
type CatalogSyncOptions struct {
	PageSize int
	Offset   int
	Limit    int
	Delay    *time.Duration
	DryRun   bool
	Logger   *zerolog.Logger
}

type CatalogSyncSummary struct {
	reconcile.Result
	RunID string `json:"run_id"`
}

// SyncTcgCatalog mirrors the TCGplayer catalog for the configured category into
// tcg_catalog_products. A full pass (offset 0, no limit, not a dry run) also marks products
// it did not see as removed.
func (r *Runner) SyncTcgCatalog(ctx context.Context, opts CatalogSyncOptions) (CatalogSyncSummary, error) {
	release, err := r.acquire(PipelineCatalog)
	if err != nil {
		return CatalogSyncSummary{}, err
	}
	defer release()

	sum := CatalogSyncSummary{RunID: newRunID()}
	log := r.log
	if opts.Logger != nil {
		log = *opts.Logger
	}
	log = log.With().Str("run_id", sum.RunID).Logger()

	ropts := reconcile.Options{
		PageSize:  opts.PageSize,
		Offset:    opts.Offset,
		Limit:     opts.Limit,
		Delay:     opts.Delay,
		ChunkSize: r.cfg.Sync.ChunkSize,
		DryRun:    opts.DryRun,
		Tombstone: true,
		Logger:    &log,
		Now:       r.now,
		Sleep:     r.sleep,
	}
	if ropts.PageSize <= 0 {
		ropts.PageSize = r.cfg.Sync.PageSize
	}
	if ropts.Delay == nil {
		ropts.Delay = r.delay()
	}

	log.Info().
		Int("page_size", ropts.PageSize).
		Int("offset", ropts.Offset).
		Int("limit", ropts.Limit).
		Bool("dry_run", ropts.DryRun).
		Msg("[SYNC] 📡 Starting TCGplayer catalog sync")

	start := time.Now()
	res, err := reconcile.Run[tcgplayer.NormalizedProduct](ctx, r.db, r.catalogSource(), catalogStore{}, ropts)
	sum.Result = res
	observe(PipelineCatalog, start, opts.DryRun, err)
	countEntities(PipelineCatalog, res)
	if err != nil {
		log.Error().Err(err).Int("processed", res.Processed).Msg("❌ [SYNC] catalog sync failed")
		return sum, err
	}

	log.Info().
		Int("processed", res.Processed).
		Int("created", res.Created).
		Int("updated", res.Updated).
		Int("removed", res.Stale).
		Int("pages", res.Pages).
		Msg("✅ [SYNC] catalog synced")
	return sum, nil
}

// catalogSource pages through the category sorted by name. Fetched carries the number of
// IDs the search returned so offsets stay correct when hydration drops products.
func (r *Runner) catalogSource() reconcile.Source[tcgplayer.NormalizedProduct] {
	return reconcile.SourceFunc[tcgplayer.NormalizedProduct](func(ctx context.Context, req reconcile.PageRequest) (reconcile.PageResult[tcgplayer.NormalizedProduct], error) {
		type page struct {
			search   tcgplayer.SearchResult
			products []tcgplayer.Product
		}
		p, err := Retry(ctx, r.retry, "tcgplayer catalog page", func() (page, error) {
			res, products, err := r.tcg.SearchProducts(ctx, tcgplayer.SearchRequest{
				Sort:   "ProductName ASC",
				Limit:  req.Size,
				Offset: req.Offset,
			})
			return page{search: res, products: products}, err
		})
		if err != nil {
			return reconcile.PageResult[tcgplayer.NormalizedProduct]{}, err
		}

		items := make([]tcgplayer.NormalizedProduct, 0, len(p.products))
		for _, prod := range p.products {
			items = append(items, tcgplayer.NormalizeProduct(prod))
		}
		fetched := len(p.search.ProductIDs)
		last := p.search.TotalItems > 0 && req.Offset+fetched >= p.search.TotalItems
		return reconcile.PageResult[tcgplayer.NormalizedProduct]{Items: items, Fetched: fetched, Last: last}, nil
	})
}

type catalogStore struct{}

func (catalogStore) Key(p tcgplayer.NormalizedProduct) string {
	return strconv.FormatInt(p.ProductID, 10)
}

func (catalogStore) Upsert(tx *gorm.DB, p tcgplayer.NormalizedProduct, stamp time.Time) (reconcile.Outcome, error) {
	row := models.TcgCatalogProduct{
		ProductID:     p.ProductID,
		Name:          p.Name,
		CleanName:     p.CleanName,
		ImageURL:      p.ImageURL,
		URL:           p.URL,
		CategoryID:    p.CategoryID,
		GroupID:       p.GroupID,
		CardType:      p.CardType,
		Rarity:        p.Rarity,
		Number:        p.Number,
		IsSealed:      p.IsSealed,
		Metadata:      datatypes.JSON(p.Metadata),
		ProductStatus: models.ProductStatusActive,
		LastSyncedAt:  stamp,
	}
	if len(row.Metadata) == 0 {
		row.Metadata = datatypes.JSON("{}")
	}

	var existing models.TcgCatalogProduct
	if err := tx.Where("product_id = ?", p.ProductID).Limit(1).Find(&existing).Error; err != nil {
		return reconcile.OutcomeSkipped, err
	}
	if existing.ID == 0 {
		if err := tx.Create(&row).Error; err != nil {
			return reconcile.OutcomeSkipped, err
		}
		return reconcile.OutcomeCreated, nil
	}

	if err := tx.Model(&existing).Updates(map[string]any{
		"name":           row.Name,
		"clean_name":     row.CleanName,
		"image_url":      row.ImageURL,
		"url":            row.URL,
		"category_id":    row.CategoryID,
		"group_id":       row.GroupID,
		"card_type":      row.CardType,
		"rarity":         row.Rarity,
		"number":         row.Number,
		"is_sealed":      row.IsSealed,
		"metadata":       row.Metadata,
		"product_status": models.ProductStatusActive,
		"last_synced_at": stamp,
	}).Error; err != nil {
		return reconcile.OutcomeSkipped, err
	}
	return reconcile.OutcomeUpdated, nil
}

// MarkStale tombstones active products this pass did not touch.
func (catalogStore) MarkStale(tx *gorm.DB, stamp time.Time) (int64, error) {
	res := tx.Model(&models.TcgCatalogProduct{}).
		Where("product_status = ? AND last_synced_at < ?", models.ProductStatusActive, stamp).
		Update("product_status", models.ProductStatusRemoved)
	return res.RowsAffected, res.Error
}
