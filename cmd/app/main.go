// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"garment-studio/internal/config"
	"garment-studio/internal/domain/ports/adapter"
	designAdapters "garment-studio/internal/infra/adapters/design"
	tryonAdapters "garment-studio/internal/infra/adapters/tryon"
	pg "garment-studio/internal/infra/db/postgres"
	"garment-studio/internal/infra/logging"
	"garment-studio/internal/infra/metrics"
	red "garment-studio/internal/infra/redis"
	"garment-studio/internal/infra/storage"
	"garment-studio/internal/infra/web"
	"garment-studio/internal/infra/worker"
	"garment-studio/internal/usecase"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "developer mode (console logs, relaxed auth)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("developer mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect")
	}
	defer pool.Close()
	if err := pg.Migrate(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("postgres migrate")
	}
	jobs := pg.NewCustomizationJobRepo(pool)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect")
	}
	defer redisClient.Close()
	statusCache := red.NewTryOnStatusCache(redisClient, cfg.Redis.TTL)
	rateLimiter := red.NewRateLimiter(redisClient)

	// ---- Blob storage ----
	blob, err := storage.NewSupabaseStore(cfg.Storage.URL, cfg.Storage.ServiceKey, cfg.Storage.Bucket, cfg.Storage.Timeout)
	if err != nil {
		logger.Fatal().Err(err).Msg("blob storage")
	}

	// ---- Providers ----
	design, err := newDesignAdapter(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("design provider")
	}
	tryOn, err := newTryOnAdapter(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("try-on provider")
	}
	logger.Info().
		Str("design", design.Name()).
		Str("tryon", tryOn.Name()).
		Msg("providers ready")

	// ---- Background workers ----
	cleanupPool := worker.NewPool(cfg.Worker.CleanupWorkers, logger.With().Str("component", "cleanup").Logger())
	cleanupPool.Start(ctx)
	defer cleanupPool.Stop()
	cleaner := worker.NewBlobCleaner(cleanupPool, blob, logger.With().Str("component", "cleanup").Logger())

	// ---- Use case ----
	uc := usecase.NewCustomizationUseCase(
		jobs, blob, design, tryOn,
		statusCache, cleaner,
		cfg.TryOn.Retries, cfg.TryOn.RetryBackoff,
		logger,
	)

	// ---- HTTP ----
	auth := web.NewAuthManager(cfg.Auth.JWTSecret)
	server := web.NewServer(cfg.Server, uc, auth, rateLimiter, cfg.RateLimit.GeneratePerMinute, logger)
	if err := server.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("http server")
	}
	logger.Info().Msg("shutdown complete")
}

func newDesignAdapter(ctx context.Context, cfg *config.Config) (adapter.DesignGenerationAdapter, error) {
	switch cfg.Design.Provider {
	case "openai":
		return designAdapters.NewOpenAIAdapter(cfg.Design.OpenAIKey, cfg.Design.Model, cfg.Design.Timeout)
	case "gemini":
		return designAdapters.NewGeminiAdapter(ctx, cfg.Design.GeminiKey, cfg.Design.GeminiURL, cfg.Design.Model, cfg.Design.Timeout)
	case "noop":
		return designAdapters.NewNoOpAdapter(0), nil
	default:
		return nil, fmt.Errorf("unknown design provider %q", cfg.Design.Provider)
	}
}

func newTryOnAdapter(cfg *config.Config) (adapter.VirtualTryOnAdapter, error) {
	if cfg.TryOn.BaseURL == "noop" || (cfg.TryOn.BaseURL == "" && cfg.Runtime.Dev) {
		return tryonAdapters.NewNoOpAdapter(2), nil
	}
	return tryonAdapters.NewHTTPAdapter(cfg.TryOn.BaseURL, cfg.TryOn.APIKey, cfg.TryOn.Model, cfg.TryOn.SubmitTimeout, cfg.TryOn.PollTimeout)
}
