package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/aosk-dev/nftmedia/internal/api/handler"
	"github.com/aosk-dev/nftmedia/internal/api/middleware"
	"github.com/aosk-dev/nftmedia/internal/config"
	"github.com/aosk-dev/nftmedia/internal/infrastructure/bridge"
	"github.com/aosk-dev/nftmedia/internal/infrastructure/cache"
	"github.com/aosk-dev/nftmedia/internal/infrastructure/fetcher"
	"github.com/aosk-dev/nftmedia/internal/infrastructure/metrics"
	"github.com/aosk-dev/nftmedia/internal/infrastructure/postgres"
	"github.com/aosk-dev/nftmedia/internal/infrastructure/queue"
	"github.com/aosk-dev/nftmedia/internal/infrastructure/storage"
	"github.com/aosk-dev/nftmedia/internal/preview"
	"github.com/aosk-dev/nftmedia/internal/usecase"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Initialize infrastructure clients
	pgClient, err := postgres.NewClient(ctx, postgres.DefaultClientConfig(cfg.Database.DSN()))
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer pgClient.Close()
	logger.Info("connected to PostgreSQL")

	metrics.RegisterDBPoolGauges(func() metrics.DBPoolStats {
		s := pgClient.Stats()
		return metrics.DBPoolStats{
			AcquiredConns: s.AcquiredConns,
			IdleConns:     s.IdleConns,
			TotalConns:    s.TotalConns,
			MaxConns:      s.MaxConns,
		}
	})

	storageClient, err := storage.NewClient(ctx, storage.ClientConfig{
		Endpoint:  cfg.MinIO.Endpoint,
		AccessKey: cfg.MinIO.AccessKey,
		SecretKey: cfg.MinIO.SecretKey,
		Bucket:    cfg.MinIO.Bucket,
		UseSSL:    cfg.MinIO.UseSSL,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to MinIO: %w", err)
	}
	logger.Info("connected to MinIO", slog.String("bucket", storageClient.Bucket()))

	queueClient, err := queue.NewClient(ctx, queue.DefaultClientConfig(cfg.RabbitMQ.URL()))
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	defer queueClient.Close()
	logger.Info("connected to RabbitMQ")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	logger.Info("connected to Redis")

	bridgeClient, err := bridge.NewClient(bridge.DefaultClientConfig(cfg.NATS.URL))
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer bridgeClient.Close()
	logger.Info("connected to NATS")

	// Wire repositories and services
	nftRepo := postgres.NewNFTRepository(pgClient.Pool())
	mediaCache := cache.NewRedisMediaCache(redisClient)
	previews := preview.NewImagingGenerator(preview.DefaultImagingConfig())
	contentFetcher := fetcher.NewHTTPFetcher(
		fetcher.Config{Timeout: cfg.Fetcher.Timeout},
		storageClient,
		previews,
	)

	verifier := usecase.NewMediaVerifier(contentFetcher, mediaCache, bridgeClient, usecase.VerifierConfig{
		MaxFileSize: cfg.Fetcher.MaxFileSize,
	})
	nftSvc := usecase.NewNFTService(nftRepo, mediaCache, queueClient)

	nftHandler := handler.NewNFTHandler(nftSvc, verifier)

	r := setupRouter(logger, nftHandler,
		handler.ReadyCheck{Name: "postgres", Check: pgClient.Ping},
		handler.ReadyCheck{Name: "minio", Check: storageClient.Ping},
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down server", slog.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func setupRouter(logger *slog.Logger, nfts *handler.NFTHandler, checks ...handler.ReadyCheck) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))

	r.Get("/health", handler.Health)
	r.Get("/ready", handler.Ready(checks...))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/nfts", func(r chi.Router) {
			r.Get("/", nfts.List)
			r.Put("/{id}", nfts.Register)
			r.Get("/{id}", nfts.Get)
			r.Get("/{id}/media", nfts.Media)
			r.Post("/{id}/verify", nfts.RequestVerification)
			r.Post("/{id}/reload", nfts.RequestReload)
		})
	})

	return r
}
