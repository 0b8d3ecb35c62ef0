// Package reconcile implements the page-by-page upsert and mark-stale loop shared by the
// tournament, catalog and deck syncs.
//
// A run fetches pages from a Source one at a time, upserts every item through a Store in
// transactions of ChunkSize, sleeps Delay between pages and, when asked to and only after a
// complete pass, lets the Store tombstone every record the run did not touch. Fetch errors
// abort the run; chunks that already committed stay committed, which is safe because
// re-running is idempotent.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"tcg-companion/logging"
)

const (
	MaxPageSize      = 100
	DefaultPageSize  = 100
	DefaultChunkSize = 25
	DefaultDelay     = 2 * time.Second
)

// PageRequest describes the page the engine wants next. Number is 1-based; Offset counts
// items already consumed, starting at Options.Offset.
type PageRequest struct {
	Number int
	Offset int
	Size   int
}

// PageResult is one page of upstream items. Last short-circuits the short-page check for
// sources that know they are done. Fetched is the number of upstream entries the page
// covered when that differs from len(Items), e.g. IDs that failed to hydrate; it drives
// offsets and short-page detection.
type PageResult[T any] struct {
	Items   []T
	Last    bool
	Fetched int
}

func (p PageResult[T]) size() int {
	if p.Fetched > 0 {
		return p.Fetched
	}
	return len(p.Items)
}

type Source[T any] interface {
	FetchPage(ctx context.Context, req PageRequest) (PageResult[T], error)
}

// SourceFunc adapts a function to Source.
type SourceFunc[T any] func(ctx context.Context, req PageRequest) (PageResult[T], error)

func (f SourceFunc[T]) FetchPage(ctx context.Context, req PageRequest) (PageResult[T], error) {
	return f(ctx, req)
}

type Outcome int

const (
	OutcomeCreated Outcome = iota
	OutcomeUpdated
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeUpdated:
		return "updated"
	default:
		return "skipped"
	}
}

// Store persists items. Key is the stable identity used for logging; Upsert must match on
// the same identity, stamp the record with stamp and report whether it created or updated.
type Store[T any] interface {
	Key(item T) string
	Upsert(tx *gorm.DB, item T, stamp time.Time) (Outcome, error)
}

// Tombstoner is implemented by stores whose records can disappear upstream. MarkStale flags
// every record last synced before stamp and returns how many it changed.
type Tombstoner interface {
	MarkStale(tx *gorm.DB, stamp time.Time) (int64, error)
}

type Options struct {
	PageSize  int
	Offset    int
	Limit     int            // 0 = no limit
	Delay     *time.Duration // nil = DefaultDelay
	ChunkSize int
	DryRun    bool
	Tombstone bool

	Logger *zerolog.Logger
	Now    func() time.Time
	Sleep  func(ctx context.Context, d time.Duration) error
}

type Result struct {
	Processed int       `json:"processed"`
	Created   int       `json:"created"`
	Updated   int       `json:"updated"`
	Skipped   int       `json:"skipped"`
	Stale     int       `json:"stale"`
	Pages     int       `json:"pages"`
	Timestamp time.Time `json:"timestamp"`
	DryRun    bool      `json:"dry_run"`
}

// FullPass reports whether opts describe an unbounded run from the first item.
func (o Options) FullPass() bool {
	return o.Offset == 0 && o.Limit == 0
}

func (o Options) withDefaults() Options {
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.PageSize > MaxPageSize {
		o.PageSize = MaxPageSize
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.Delay == nil {
		d := DefaultDelay
		o.Delay = &d
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Sleep == nil {
		o.Sleep = Sleep
	}
	if o.Logger == nil {
		l := logging.For("reconcile")
		o.Logger = &l
	}
	return o
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run executes one reconciliation pass. The returned Result is valid even when err != nil
// and reflects what was committed before the failure.
func Run[T any](ctx context.Context, db *gorm.DB, source Source[T], store Store[T], opts Options) (Result, error) {
	opts = opts.withDefaults()
	log := opts.Logger

	// Postgres keeps microseconds; a finer stamp would make fresh rows look stale.
	stamp := opts.Now().UTC().Truncate(time.Microsecond)
	res := Result{Timestamp: stamp, DryRun: opts.DryRun}
	offset := opts.Offset

	for page := 1; ; page++ {
		size := opts.PageSize
		if opts.Limit > 0 {
			remaining := opts.Limit - res.Processed
			if remaining <= 0 {
				break
			}
			if remaining < size {
				size = remaining
			}
		}

		req := PageRequest{Number: page, Offset: offset, Size: size}
		pr, err := source.FetchPage(ctx, req)
		if err != nil {
			return res, fmt.Errorf("fetch page %d (offset %d): %w", page, offset, err)
		}
		res.Pages++

		items := pr.Items
		if pr.size() == 0 {
			log.Debug().Int("page", page).Msg("[RECONCILE] empty page, stopping")
			break
		}
		if opts.Limit > 0 && len(items) > opts.Limit-res.Processed {
			items = items[:opts.Limit-res.Processed]
		}

		if err := applyPage(ctx, db, store, items, stamp, opts, &res); err != nil {
			return res, err
		}
		log.Info().
			Int("page", page).
			Int("items", len(items)).
			Int("processed", res.Processed).
			Bool("dry_run", opts.DryRun).
			Msg("📄 [RECONCILE] page processed")

		offset += pr.size()
		if pr.Last || pr.size() < req.Size {
			break
		}
		if opts.Limit > 0 && res.Processed >= opts.Limit {
			break
		}
		if err := opts.Sleep(ctx, *opts.Delay); err != nil {
			return res, err
		}
	}

	// an empty pass is more likely an upstream outage than a fully delisted catalog
	if opts.Tombstone && !opts.DryRun && opts.FullPass() && res.Processed > 0 {
		if ts, ok := any(store).(Tombstoner); ok {
			var stale int64
			err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
				var err error
				stale, err = ts.MarkStale(tx, stamp)
				return err
			})
			if err != nil {
				return res, fmt.Errorf("mark stale: %w", err)
			}
			res.Stale = int(stale)
			if stale > 0 {
				log.Info().Int64("stale", stale).Msg("🪦 [RECONCILE] tombstoned records missing from this pass")
			}
		}
	}

	return res, nil
}

func applyPage[T any](ctx context.Context, db *gorm.DB, store Store[T], items []T, stamp time.Time, opts Options, res *Result) error {
	for start := 0; start < len(items); start += opts.ChunkSize {
		end := min(start+opts.ChunkSize, len(items))
		chunk := items[start:end]

		if opts.DryRun {
			for _, item := range chunk {
				opts.Logger.Info().Str("key", store.Key(item)).Msg("🔎 [DRY-RUN] would upsert")
			}
			res.Processed += len(chunk)
			continue
		}

		var created, updated, skipped int
		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			created, updated, skipped = 0, 0, 0
			for _, item := range chunk {
				outcome, err := store.Upsert(tx, item, stamp)
				if err != nil {
					return fmt.Errorf("upsert %s: %w", store.Key(item), err)
				}
				switch outcome {
				case OutcomeCreated:
					created++
				case OutcomeUpdated:
					updated++
				default:
					skipped++
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		res.Created += created
		res.Updated += updated
		res.Skipped += skipped
		res.Processed += len(chunk)
	}
	return nil
}
