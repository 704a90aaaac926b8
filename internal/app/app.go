// Package app assembles the shared services used by both the studio server
// and the recapctl command.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"recapstudio-backend/internal/config"
	"recapstudio-backend/internal/database"
	"recapstudio-backend/internal/media"
	"recapstudio-backend/internal/services"
	"recapstudio-backend/internal/store"
	"recapstudio-backend/migrations"
)

// App holds the long-lived services built from the configuration.
type App struct {
	Config *config.Config
	Logger zerolog.Logger

	KV     store.KV
	Redis  *database.RedisClients
	PGPool *pgxpool.Pool

	Scripts    *services.ScriptService
	YouTube    *services.YouTubeService
	Cache      *services.EnrichmentCache
	Enrichment *services.EnrichmentService
	Advisor    *services.Advisor
	Stats      *services.StatsService
	Engine     *media.Engine

	closers []func()
}

// New connects the configured key-value backend and builds every service on
// top of it. withRedis forces a Redis connection even when the store lives
// elsewhere, for status fan-out.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger, withRedis bool) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	if err := a.connectStore(ctx, withRedis); err != nil {
		a.Close()
		return nil, err
	}

	transport, err := a.scriptTransport()
	if err != nil {
		a.Close()
		return nil, err
	}
	prompts := services.NewPromptBuilder(cfg.ScriptLanguage, cfg.Overlay.ScriptInstructions)
	a.Scripts = services.NewScriptService(transport, prompts, cfg.GeminiConcurrentReqs, cfg.GeminiTimeout, logger)

	a.YouTube = services.NewYouTubeService(cfg.YouTubeAPIKey, &http.Client{Timeout: 30 * time.Second})
	a.Cache = services.NewEnrichmentCache(a.KV, time.Now)
	a.Enrichment = services.NewEnrichmentService(a.Cache, services.CatalogLookup{}, a.YouTube, a.KV, logger)

	overrides := make(map[string]services.GenreDefault, len(cfg.Overlay.GenreDefaults))
	for genre, d := range cfg.Overlay.GenreDefaults {
		overrides[genre] = services.GenreDefault{ClipDuration: d.ClipDuration, IntervalPattern: d.IntervalPattern}
	}
	a.Advisor = services.NewAdvisor(a.KV, overrides)
	if err := a.Advisor.Load(ctx); err != nil {
		logger.Warn().Err(err).Msg("failed to load learning history, starting empty")
	}
	a.Stats = services.NewStatsService(a.KV)

	a.Engine = media.NewEngine(logger, media.FFmpegLoader(logger, cfg.FFmpegThreads), cfg.EngineWorkDir)
	a.closers = append(a.closers, func() {
		if err := a.Engine.Dispose(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("engine dispose failed")
		}
	})

	return a, nil
}

func (a *App) connectStore(ctx context.Context, withRedis bool) error {
	cfg := a.Config

	if cfg.StoreBackend == "redis" || (withRedis && cfg.RedisURL != "") {
		clients, err := database.NewRedisClients(cfg.RedisURL)
		if err != nil {
			return err
		}
		a.Redis = clients
		a.closers = append(a.closers, clients.Close)
		a.Logger.Info().Msg("redis connected")
	}

	switch cfg.StoreBackend {
	case "redis":
		a.KV = store.NewRedis(a.Redis.KV, "recapstudio:")
	case "postgres":
		pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		a.PGPool = pool
		a.closers = append(a.closers, pool.Close)
		if err := database.RunMigrations(ctx, pool, migrations.FS, a.Logger); err != nil {
			return fmt.Errorf("database migration failed: %w", err)
		}
		a.KV = store.NewPostgres(pool)
		a.Logger.Info().Msg("postgres connected, migrations applied")
	default:
		a.KV = store.NewMemory()
		a.Logger.Info().Msg("using in-memory store")
	}
	return nil
}

func (a *App) scriptTransport() (services.ScriptTransport, error) {
	cfg := a.Config
	switch cfg.GeminiTransport {
	case "sdk":
		t := services.NewSDKTransport(cfg.GeminiModel)
		a.closers = append(a.closers, t.Close)
		return t, nil
	case "rest":
		return services.NewRESTTransport(&http.Client{}, cfg.GeminiBaseURL, cfg.GeminiModel), nil
	default:
		return nil, fmt.Errorf("unsupported GEMINI_TRANSPORT %q", cfg.GeminiTransport)
	}
}

// Close releases connections in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
