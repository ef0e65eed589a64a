package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/video-stream/summarizer/internal/api"
	"github.com/video-stream/summarizer/internal/api/middleware"
	"github.com/video-stream/summarizer/internal/auth"
	"github.com/video-stream/summarizer/internal/cache"
	"github.com/video-stream/summarizer/internal/config"
	"github.com/video-stream/summarizer/internal/db"
	"github.com/video-stream/summarizer/internal/job"
	"github.com/video-stream/summarizer/internal/logger"
	"github.com/video-stream/summarizer/internal/service"
	"github.com/video-stream/summarizer/internal/storage"
	"github.com/video-stream/summarizer/internal/youtube"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.DataPath, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	store := storage.NewStore(cfg.StaticPath)
	if err := store.EnsureLayout(); err != nil {
		log.Fatalf("Failed to prepare static directory: %v", err)
	}

	database, err := db.NewSQLite(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	if err := database.EnsureAdmin(cfg.AdminUsername, cfg.AdminPassword); err != nil {
		log.Fatalf("Failed to create admin user: %v", err)
	}
	slog.Info("admin user ensured", slog.String("username", cfg.AdminUsername))

	responses := cache.New(ctx, cache.Options{
		RedisURL:   cfg.Cache.RedisURL,
		TTL:        cfg.Cache.TTL,
		MaxEntries: cfg.Cache.MaxEntries,
	})
	defer responses.Close()

	videos := youtube.New(youtube.Config{
		HTTPClient:        &http.Client{Timeout: cfg.YouTube.Timeout},
		RequestsPerSecond: cfg.YouTube.RequestsPerSecond,
		Burst:             cfg.YouTube.Burst,
		MaxTries:          cfg.YouTube.MaxTries,
	})

	svc := service.New(videos, store, responses, database, cfg.Performance.MaxConcurrentUpscales)

	queue := job.NewJobQueue(database.DB(), cfg.Performance.Workers)
	queue.RegisterHandler(job.JobUpscale, svc.UpscaleJobHandler())
	queue.Start()
	defer queue.Stop()

	limiter := middleware.NewRateLimiter(cfg.Performance.RateLimitPerMinute, time.Minute)
	defer limiter.Close()

	router := api.NewRouter(api.Deps{
		Config:   cfg,
		Database: database,
		JWT:      auth.NewJWTService(cfg.JWTSecret),
		Service:  svc,
		Store:    store,
		Cache:    responses,
		Jobs:     queue,
		Limiter:  limiter,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server",
			slog.String("addr", srv.Addr),
			slog.String("static", store.Root()),
			slog.Bool("redis", responses.Redis()),
			slog.Int("workers", cfg.Performance.Workers))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", slog.Any("error", err))
		}
	case <-ctx.Done():
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown failed", slog.Any("error", err))
		}
	}
}
