package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"

	"consdocs/internal/config"
	"consdocs/internal/embedder"
	handlers "consdocs/internal/http/handler"
	"consdocs/internal/http/middleware"
	"consdocs/internal/query"
	"consdocs/internal/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open index database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = store.Close()
	}()

	emb, err := embedder.NewFromEnv()
	if err != nil {
		logger.Error("failed to initialize embedding provider", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = emb.Close()
	}()
	logger.Info("embedding provider ready", "provider", emb.Provider(), "enabled", emb.Enabled())

	svc := query.New(store, emb)

	registry := prometheus.NewRegistry()
	promMiddleware, err := middleware.NewPrometheusMiddleware(registry)
	if err != nil {
		logger.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
	})

	// Register global middleware
	app.Use(cors.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger(logger))
	app.Use(promMiddleware.Handler())

	handlers.RegisterRoutes(app, svc, registry)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error("server stopped", "error", err)
			os.Exit(1)
		}
	}()
	logger.Info("server started", "port", cfg.Port, "db", cfg.DBPath, "storage_mode", storage.BuildMode)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}
