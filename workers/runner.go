// Package workers composes the scraper, resolver, reconciliation engine, TCGplayer client
// and alert evaluator into the sync pipelines.
package workers

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"tcg-companion/alerts"
	"tcg-companion/config"
	"tcg-companion/logging"
	"tcg-companion/metrics"
	"tcg-companion/reconcile"
	"tcg-companion/scraper"
	"tcg-companion/tcgplayer"
	"tcg-companion/utils"
)

// Pipeline names, used for run locking, metrics and logs.
const (
	PipelineTournaments = "tournaments"
	PipelineDecks       = "decks"
	PipelineCatalog     = "catalog"
	PipelinePrices      = "prices"
	PipelineAlerts      = "alerts"
)

// ErrSyncInProgress is returned when the same pipeline is already running.
var ErrSyncInProgress = errors.New("sync already in progress")

type Runner struct {
	db        *gorm.DB
	cfg       *config.Config
	tcg       *tcgplayer.Client
	evaluator *alerts.Evaluator
	archiver  scraper.PageArchiver
	http      *http.Client
	retry     RetryPolicy
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
	log       zerolog.Logger

	mu      sync.Mutex
	running map[string]bool
}

// Deps are the collaborators of a Runner. Only DB and Config are required.
type Deps struct {
	DB         *gorm.DB
	Config     *config.Config
	TCGplayer  *tcgplayer.Client
	Evaluator  *alerts.Evaluator
	Archiver   scraper.PageArchiver
	HTTPClient *http.Client
	Retry      *RetryPolicy
	Now        func() time.Time
	Sleep      func(ctx context.Context, d time.Duration) error
}

func NewRunner(d Deps) *Runner {
	cfg := d.Config
	if cfg == nil {
		cfg = config.Default()
	}

	r := &Runner{
		db:        d.DB,
		cfg:       cfg,
		tcg:       d.TCGplayer,
		evaluator: d.Evaluator,
		archiver:  d.Archiver,
		http:      d.HTTPClient,
		now:       d.Now,
		sleep:     d.Sleep,
		log:       logging.For("workers"),
		running:   make(map[string]bool),
	}

	if r.tcg == nil {
		tokens := tcgplayer.NewOAuthTokenProvider(cfg.TCGplayer.TokenURL, cfg.TCGplayer.PublicKey, cfg.TCGplayer.PrivateKey, d.HTTPClient)
		r.tcg = tcgplayer.NewClient(tcgplayer.Config{
			BaseURL:           cfg.TCGplayer.APIURL,
			CategoryID:        cfg.TCGplayer.CategoryID,
			RequestsPerSecond: cfg.TCGplayer.RequestsPerSecond,
			HTTPClient:        d.HTTPClient,
		}, tokens)
	}
	if r.evaluator == nil {
		opts := []alerts.Option{}
		if d.Now != nil {
			opts = append(opts, alerts.WithClock(d.Now))
		}
		r.evaluator = alerts.NewEvaluator(opts...)
	}
	if r.http == nil {
		r.http = utils.HTTPClient
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.sleep == nil {
		r.sleep = reconcile.Sleep
	}
	if d.Retry != nil {
		r.retry = *d.Retry
	} else {
		r.retry = RetryPolicy{
			Attempts:        cfg.Sync.RetryAttempts,
			InitialInterval: cfg.Sync.RetryDelay,
			MaxInterval:     10 * cfg.Sync.RetryDelay,
		}
	}
	return r
}

// acquire marks pipeline as running. The returned func releases it.
func (r *Runner) acquire(pipeline string) (func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running[pipeline] {
		return nil, ErrSyncInProgress
	}
	r.running[pipeline] = true
	return func() {
		r.mu.Lock()
		delete(r.running, pipeline)
		r.mu.Unlock()
	}, nil
}

// Running reports which pipelines are currently executing.
func (r *Runner) Running() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.running))
	for _, p := range []string{PipelineTournaments, PipelineDecks, PipelineCatalog, PipelinePrices, PipelineAlerts} {
		if r.running[p] {
			out = append(out, p)
		}
	}
	return out
}

// limitlessClient builds a scraper client whose archived pages are grouped under runID.
func (r *Runner) limitlessClient(runID string) (*scraper.Client, error) {
	opts := []scraper.Option{
		scraper.WithHTTPClient(r.http),
		scraper.WithPageSize(r.cfg.Limitless.PageSize),
	}
	if r.archiver != nil {
		opts = append(opts, scraper.WithArchiver(r.archiver, runID))
	}
	return scraper.NewClient(r.cfg.Limitless.BaseURL, opts...)
}

func (r *Runner) delay() *time.Duration {
	d := r.cfg.Sync.Delay
	return &d
}

func newRunID() string {
	return time.Now().UTC().Format("20060102T150405Z") + "-" + uuid.NewString()[:8]
}

// observe records run metrics once a pipeline finishes.
func observe(pipeline string, start time.Time, dryRun bool, err error) {
	status := "success"
	switch {
	case err != nil:
		status = "failure"
	case dryRun:
		status = "dry_run"
	}
	metrics.SyncRuns.WithLabelValues(pipeline, status).Inc()
	metrics.SyncDuration.WithLabelValues(pipeline).Observe(time.Since(start).Seconds())
}

func countEntities(pipeline string, res reconcile.Result) {
	if res.DryRun {
		return
	}
	metrics.SyncEntities.WithLabelValues(pipeline, "created").Add(float64(res.Created))
	metrics.SyncEntities.WithLabelValues(pipeline, "updated").Add(float64(res.Updated))
	metrics.SyncEntities.WithLabelValues(pipeline, "skipped").Add(float64(res.Skipped))
	metrics.SyncEntities.WithLabelValues(pipeline, "stale").Add(float64(res.Stale))
}
