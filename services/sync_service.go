// Package services exposes the sync pipelines to the admin HTTP API and the scheduler.
package services

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"tcg-companion/alerts"
	"tcg-companion/logging"
	"tcg-companion/models"
	"tcg-companion/workers"
)

// SyncRunner is the set of pipelines the service can trigger. *workers.Runner implements it.
type SyncRunner interface {
	SyncLimitlessTournaments(ctx context.Context) (workers.TournamentSyncSummary, error)
	SyncLimitlessTournamentDecks(ctx context.Context, opts workers.DeckSyncOptions) (workers.DeckSyncSummary, error)
	SyncTcgCatalog(ctx context.Context, opts workers.CatalogSyncOptions) (workers.CatalogSyncSummary, error)
	SyncTcgplayerPrices(ctx context.Context, opts workers.PriceSyncOptions) (workers.PriceSyncSummary, error)
	EvaluatePriceAlerts(ctx context.Context, cardIDs []uint) (alerts.Summary, error)
}

type SyncService struct {
	DB     *gorm.DB
	Runner SyncRunner
	log    zerolog.Logger
}

func NewSyncService(db *gorm.DB, runner SyncRunner) *SyncService {
	return &SyncService{DB: db, Runner: runner, log: logging.For("admin")}
}

// catalogRequest is the JSON body of POST /admin/sync/catalog. DelayMs is in milliseconds.
type catalogRequest struct {
	PageSize int  `json:"page_size"`
	Offset   int  `json:"offset"`
	Limit    int  `json:"limit"`
	DelayMs  *int `json:"delay_ms"`
	DryRun   bool `json:"dry_run"`
}

type evaluateRequest struct {
	CardIDs []uint `json:"card_ids"`
}

// respond renders a summary, or the error with 409 for a run already in progress.
func (s *SyncService) respond(c *fiber.Ctx, pipeline string, summary any, err error) error {
	if errors.Is(err, workers.ErrSyncInProgress) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error(), "pipeline": pipeline})
	}
	if err != nil {
		s.log.Error().Err(err).Str("pipeline", pipeline).Msg("❌ [ADMIN] sync trigger failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "sync failed",
			"details": err.Error(),
			"summary": summary,
		})
	}
	return c.JSON(summary)
}

// SyncTournaments handles POST /admin/sync/tournaments.
func (s *SyncService) SyncTournaments(c *fiber.Ctx) error {
	sum, err := s.Runner.SyncLimitlessTournaments(c.UserContext())
	return s.respond(c, workers.PipelineTournaments, sum, err)
}

// SyncTournamentDecks handles POST /admin/sync/tournament-decks?limit=N.
func (s *SyncService) SyncTournamentDecks(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 0)
	if limit < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "limit must not be negative"})
	}
	sum, err := s.Runner.SyncLimitlessTournamentDecks(c.UserContext(), workers.DeckSyncOptions{Limit: limit})
	return s.respond(c, workers.PipelineDecks, sum, err)
}

// SyncCatalog handles POST /admin/sync/catalog. The body is optional.
func (s *SyncService) SyncCatalog(c *fiber.Ctx) error {
	var req catalogRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body", "details": err.Error()})
		}
	}
	if req.PageSize < 0 || req.Offset < 0 || req.Limit < 0 || (req.DelayMs != nil && *req.DelayMs < 0) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "options must not be negative"})
	}

	opts := workers.CatalogSyncOptions{
		PageSize: req.PageSize,
		Offset:   req.Offset,
		Limit:    req.Limit,
		DryRun:   req.DryRun,
	}
	if req.DelayMs != nil {
		d := time.Duration(*req.DelayMs) * time.Millisecond
		opts.Delay = &d
	}
	sum, err := s.Runner.SyncTcgCatalog(c.UserContext(), opts)
	return s.respond(c, workers.PipelineCatalog, sum, err)
}

// SyncPrices handles POST /admin/sync/prices?watchlisted=true.
func (s *SyncService) SyncPrices(c *fiber.Ctx) error {
	sum, err := s.Runner.SyncTcgplayerPrices(c.UserContext(), workers.PriceSyncOptions{
		OnlyWatchlisted: c.QueryBool("watchlisted", false),
	})
	return s.respond(c, workers.PipelinePrices, sum, err)
}

// EvaluateAlerts handles POST /admin/alerts/evaluate with an optional {"card_ids": [...]}.
func (s *SyncService) EvaluateAlerts(c *fiber.Ctx) error {
	var req evaluateRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body", "details": err.Error()})
		}
	}
	sum, err := s.Runner.EvaluatePriceAlerts(c.UserContext(), req.CardIDs)
	return s.respond(c, workers.PipelineAlerts, sum, err)
}

// ListNotifications handles GET /admin/notifications, newest first.
// Filters: user_id, unread=true, limit (default 50, max 200).
func (s *SyncService) ListNotifications(c *fiber.Ctx) error {
	limit, err := strconv.Atoi(c.Query("limit", "50"))
	if err != nil || limit <= 0 || limit > 200 {
		limit = 50
	}

	q := s.DB.WithContext(c.UserContext()).Model(&models.AdminNotification{})
	if userID := c.Query("user_id"); userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	if c.QueryBool("unread", false) {
		q = q.Where("is_read = ?", false)
	}

	var notifications []models.AdminNotification
	if err := q.Order("created_at DESC").Order("id").Limit(limit).Find(&notifications).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load notifications", "details": err.Error()})
	}
	return c.JSON(fiber.Map{"notifications": notifications, "count": len(notifications)})
}

// Health handles GET /health.
func (s *SyncService) Health(c *fiber.Ctx) error {
	status := fiber.Map{"status": "ok"}
	if sqlDB, err := s.DB.DB(); err != nil || sqlDB.PingContext(c.UserContext()) != nil {
		status["status"] = "degraded"
		status["database"] = "unreachable"
		return c.Status(fiber.StatusServiceUnavailable).JSON(status)
	}
	if r, ok := s.Runner.(interface{ Running() []string }); ok {
		status["running"] = r.Running()
	}
	return c.JSON(status)
}
