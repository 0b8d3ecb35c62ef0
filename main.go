package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"tcg-companion/config"
	"tcg-companion/handlers"
	"tcg-companion/logging"
	"tcg-companion/models"
	"tcg-companion/services"
	"tcg-companion/utils"
	"tcg-companion/workers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	log := logging.For("server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := models.Open(cfg.Database.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	if err := models.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	archiver, err := utils.NewArchiver(ctx, cfg.Archive)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize page archive")
	}

	runner := workers.NewRunner(workers.Deps{DB: db, Config: cfg, Archiver: archiver})
	syncService := services.NewSyncService(db, runner)

	sched, err := services.NewScheduler(ctx, runner, cfg.Schedule)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up scheduler")
	}
	sched.Start()

	app := fiber.New(fiber.Config{
		AppName:               "tcg-companion",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: allowedOrigins(cfg.Server.AllowedOrigins),
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		MaxAge:       86400,
	}))

	handlers.SetupPublicRoutes(app, syncService)
	handlers.SetupAdminRoutes(app, syncService, cfg.Server.AdminToken)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		log.Info().Str("addr", addr).Msg("✅ Server running")
		if err := app.Listen(addr); err != nil {
			log.Error().Err(err).Msg("server error")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	if err := sched.Shutdown(); err != nil {
		log.Warn().Err(err).Msg("scheduler shutdown")
	}
	if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
		log.Warn().Err(err).Msg("server shutdown")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// allowedOrigins trims the spaces around each comma separated origin.
func allowedOrigins(raw string) string {
	origins := strings.Split(raw, ",")
	for i, o := range origins {
		origins[i] = strings.TrimSpace(o)
	}
	return strings.Join(origins, ",")
}
