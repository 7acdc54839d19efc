package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/aosk-dev/nftmedia/internal/config"
	"github.com/aosk-dev/nftmedia/internal/domain/repository"
	"github.com/aosk-dev/nftmedia/internal/infrastructure/bridge"
	"github.com/aosk-dev/nftmedia/internal/infrastructure/cache"
	"github.com/aosk-dev/nftmedia/internal/infrastructure/fetcher"
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

	bridgeServer, err := bridge.NewServer(bridge.DefaultClientConfig(cfg.NATS.URL))
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer bridgeServer.Close()
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
	maintenanceSvc := usecase.NewMaintenanceService(nftRepo, storageClient, usecase.MaintenanceConfig{
		MaxCacheBytes: cfg.Worker.MaxCacheBytes,
	})

	// Setup signal handling for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// WaitGroup to track in-flight tasks
	var wg sync.WaitGroup

	errCh := make(chan error, 2)

	// Serve the cache manager side of the bridge
	go func() {
		logger.Info("serving bridge subjects")
		err := bridgeServer.Serve(ctx, maintenanceSvc.EnforceCacheLimit, maintenanceSvc.ResolveSVG)
		if err != nil && ctx.Err() == nil {
			errCh <- fmt.Errorf("bridge server error: %w", err)
		}
	}()

	// Start consuming verification tasks
	go func() {
		logger.Info("starting worker, consuming verification tasks")
		err := queueClient.ConsumeVerificationTasks(ctx, func(task repository.VerificationTask) error {
			wg.Add(1)
			defer wg.Done()

			logger.Info("processing task",
				slog.String("task_id", task.TaskID.String()),
				slog.String("nft_id", task.NFTID),
				slog.Int("retry_count", task.RetryCount),
			)

			if task.RetryCount >= cfg.Worker.MaxRetries {
				logger.Error("task exceeded retry limit, dropping",
					slog.String("task_id", task.TaskID.String()),
					slog.String("nft_id", task.NFTID),
					slog.Int("retry_count", task.RetryCount),
				)
				return nil
			}

			nft, err := nftRepo.GetByID(ctx, task.NFTID)
			if err != nil {
				if errors.Is(err, repository.ErrNFTNotFound) {
					// The record was deleted after the task was queued.
					logger.Warn("dropping task for unknown nft",
						slog.String("task_id", task.TaskID.String()),
						slog.String("nft_id", task.NFTID),
					)
					return nil
				}
				return fmt.Errorf("look up nft: %w", err)
			}

			state, err := verifier.Verify(ctx, usecase.VerifyInput{
				NFT:             nft,
				ForceValidate:   task.ForceValidate,
				IgnoreSizeLimit: task.IgnoreSizeLimit,
			})
			if err != nil {
				return fmt.Errorf("verify nft %s: %w", task.NFTID, err)
			}

			logger.Info("task completed",
				slog.String("task_id", task.TaskID.String()),
				slog.String("nft_id", task.NFTID),
				slog.Bool("valid", state.IsValid),
				slog.String("verification_error", state.Error),
			)
			return nil
		})
		if err != nil && ctx.Err() == nil {
			errCh <- fmt.Errorf("consumer error: %w", err)
		}
	}()

	// Wait for shutdown signal or error
	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down worker", slog.String("signal", sig.String()))
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer shutdownCancel()

	// Cancel the main context to stop consuming new messages
	cancel()

	// Wait for in-flight tasks to complete (or timeout)
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("all in-flight tasks completed")
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timeout exceeded, some tasks may not have completed")
	}

	logger.Info("worker stopped")
	return nil
}
