package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tcg-companion/middleware"
	"tcg-companion/services"
)

func SetupPublicRoutes(app *fiber.App, syncService *services.SyncService) {
	app.Get("/health", syncService.Health)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
}

// SetupAdminRoutes mounts the sync triggers under /admin, behind the admin bearer token.
func SetupAdminRoutes(app *fiber.App, syncService *services.SyncService, adminToken string) {
	admin := app.Group("/admin", middleware.AdminTokenMiddleware(adminToken))

	admin.Post("/sync/tournaments", syncService.SyncTournaments)
	admin.Post("/sync/tournament-decks", syncService.SyncTournamentDecks)
	admin.Post("/sync/catalog", syncService.SyncCatalog)
	admin.Post("/sync/prices", syncService.SyncPrices)
	admin.Post("/alerts/evaluate", syncService.EvaluateAlerts)

	admin.Get("/notifications", syncService.ListNotifications)
}
