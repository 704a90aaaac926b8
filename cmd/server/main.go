package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"recapstudio-backend/internal/app"
	"recapstudio-backend/internal/config"
	"recapstudio-backend/internal/events"
	"recapstudio-backend/internal/handlers"
	"recapstudio-backend/internal/logging"
	"recapstudio-backend/internal/metrics"
	"recapstudio-backend/internal/recap"
	"recapstudio-backend/internal/router"
	"recapstudio-backend/internal/services"
	"recapstudio-backend/internal/websocket"
	"recapstudio-backend/internal/worker"
)

func main() {
	// ──── Step 1: Load Configuration ────
	cfg, err := config.Load()
	if err != nil {
		logging.Init("info", false)
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	logging.Init(cfg.LogLevel, cfg.Env == "development")
	logger := logging.WithComponent("server")
	logger.Info().Str("env", cfg.Env).Str("store", cfg.StoreBackend).Msg("starting recap studio")

	metrics.Register(prometheus.DefaultRegisterer)

	// ──── Step 2: Store, Script Client, Enrichment, Engine ────
	ctx := context.Background()
	a, err := app.New(ctx, cfg, logger, true)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer a.Close()

	// ──── Step 3: Output Storage ────
	videos, err := recap.NewFileVideoStore(filepath.Join(cfg.StoragePath, "outputs"), func(id uuid.UUID) string {
		return "/api/v1/recaps/" + id.String() + "/video"
	})
	if err != nil {
		log.Fatal().Err(err).Msg("storage unavailable")
	}

	orchestrator := recap.New(recap.Deps{
		Engine:            a.Engine,
		Scripts:           a.Scripts,
		Videos:            videos,
		Enricher:          a.Enrichment,
		Advisor:           a.Advisor,
		Stats:             a.Stats,
		DefaultCredential: cfg.GeminiAPIKey,
		EnrichmentTimeout: 30 * time.Second,
		Logger:            logger,
	})

	// ──── Step 4: Status Fan-out and Worker Pool ────
	var bus events.Bus = events.NewMemoryBus()
	if a.Redis != nil {
		bus = events.NewRedisBus(a.Redis.PubSub)
	}

	registry := worker.NewRegistry()
	workerPool := worker.NewPool(registry, bus, cfg.WorkerQueueSize, 1, logger)
	workerPool.Start()

	janitor := services.NewCacheJanitor(a.Cache, cfg.CachePurgeSchedule, logger)
	if err := janitor.Start(); err != nil {
		log.Fatal().Err(err).Msg("cache janitor failed to start")
	}

	wsHub := websocket.NewHub(bus, logger)

	// ──── Step 5: HTTP Server ────
	checks := map[string]handlers.Check{}
	if a.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return a.Redis.KV.Ping(ctx).Err() }
	}
	if a.PGPool != nil {
		checks["postgres"] = a.PGPool.Ping
	}

	r := router.New(router.Handlers{
		Recap: handlers.NewRecapHandler(orchestrator, workerPool, registry, videos, a.YouTube,
			filepath.Join(cfg.StoragePath, "uploads"), logger),
		Settings: handlers.NewSettingsHandler(a.Advisor),
		Stats:    handlers.NewStatsHandler(a.Stats, logger),
		Health:   handlers.NewHealthHandler(checks, a.Engine.Loaded),
		WSHub:    wsHub,
	}, cfg.FrontendURL, logger)

	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     r,
		ReadTimeout: 5 * time.Minute,
		IdleTimeout: 60 * time.Second,
	}

	// Graceful shutdown
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info().Msg("shutting down")
		janitor.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
		workerPool.Stop()
	}()

	logger.Info().
		Str("api", fmt.Sprintf("http://localhost:%s/api/v1", cfg.Port)).
		Str("ws", fmt.Sprintf("ws://localhost:%s/api/v1/ws", cfg.Port)).
		Msg("recap studio ready")

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		logger.Fatal().Err(err).Msg("server error")
	}
	<-stopped
}
