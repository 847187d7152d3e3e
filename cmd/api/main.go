package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"mediashrink/internal/adapter/repo"
	"mediashrink/internal/domain"
	"mediashrink/internal/encoder"
	"mediashrink/internal/http/handlers"
	httpapi "mediashrink/internal/http/httpapi"
	"mediashrink/internal/infra"
	"mediashrink/internal/jobs"
	"mediashrink/internal/middleware"
	"mediashrink/internal/progress"
	"mediashrink/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stopSignals := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	var (
		jobRepo    domain.JobRepository
		uploadRepo domain.UploadRepository
	)
	if cfg.DatabaseURL != "" {
		dbpool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer dbpool.Close()

		runner := infra.NewSQLRunner(dbpool, logger)
		if err := repo.EnsureSchema(ctx, runner); err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare schema")
		}
		jobRepo = repo.NewJobRepository(runner)
		uploadRepo = repo.NewUploadRepository(runner)
		logger.Info().Msg("using postgres job store")
	} else {
		store := repo.NewMemoryStore()
		jobRepo, uploadRepo = store.Jobs(), store.Uploads()
		logger.Info().Msg("using in-memory job store")
	}

	var broker progress.Broker
	if cfg.RedisURL != "" {
		client, err := infra.NewRedisClient(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect redis")
		}
		defer client.Close()
		broker = progress.NewRedisBroker(client, cfg.FileRetention, &logger)
		logger.Info().Msg("using redis progress broker")
	} else {
		broker = progress.NewHub(&logger)
	}

	files, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare storage")
	}

	svc := jobs.NewService(jobRepo, uploadRepo, files, broker,
		encoder.NewFFmpeg(cfg.FFmpegPath, cfg.FFprobePath, &logger),
		jobs.Options{
			Retention:     cfg.FileRetention,
			MaxConcurrent: cfg.MaxConcurrentJobs,
			Logger:        &logger,
		})
	svc.StartJanitor(ctx, cfg.CleanupInterval)

	app := handlers.NewApp(svc, &logger, cfg.MaxUploadBytes)
	router := httpapi.NewRouter(app, httpapi.RouterOptions{
		Logger: logger,
		Auth: middleware.BasicAuthConfig{
			Enabled: cfg.AuthEnabled,
			User:    cfg.AuthUser,
			Pass:    cfg.AuthPass,
		},
		AllowedOrigins:  cfg.CORSAllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if err := svc.Close(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("encodes did not stop in time")
	}
	logger.Info().Msg("server stopped")
}
