package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"echo.app/relay/common/id"
	"echo.app/relay/common/logger"
	"echo.app/relay/common/otel"
	"echo.app/relay/core/config"
	"echo.app/relay/core/db"
	"echo.app/relay/internal/lock"
	"echo.app/relay/internal/queue"
	"echo.app/relay/internal/service"
	"echo.app/relay/internal/service/webhook"
	"echo.app/relay/internal/store"
	"echo.app/relay/internal/worker"
	"github.com/redis/go-redis/v9"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeWorker)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	fmt.Printf("%s\n", banner)

	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	slog.InfoContext(ctx, "echo webhook worker starting",
		"env", cfg.Env,
		"consumer_group", cfg.Webhook.Group,
		"consumer_name", cfg.Webhook.Consumer)

	if err := id.Init(cfg.NodeID); err != nil {
		slog.ErrorContext(ctx, "failed to initialize id generator", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.InfoContext(ctx, "database connected")

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	slog.InfoContext(ctx, "redis connected", "stream", cfg.Webhook.Stream)

	producer := queue.NewRedisProducer(redisClient, cfg.Webhook.Stream, nil)
	defer producer.Close()

	services := service.NewServices(service.ServicesConfig{
		Stores:   store.NewStores(database.Queries()),
		TxRunner: service.NewTxRunner(database),
		Producer: producer,
		WebhookCfg: webhook.Config{
			Timeout:   cfg.Webhook.Timeout,
			BatchSize: cfg.Webhook.SweepBatch,
		},
		TrackerTimeout:      cfg.Tracker.Timeout,
		IntegrationCacheTTL: cfg.Tracker.IntegrationCache,
		DashboardURL:        cfg.DashboardURL,
		PublicURL:           cfg.PublicURL,
	})
	engine := services.Webhooks()

	consumer, err := queue.NewRedisConsumer(redisClient, queue.ConsumerConfig{
		Stream:       cfg.Webhook.Stream,
		Group:        cfg.Webhook.Group,
		Consumer:     cfg.Webhook.Consumer,
		DLQStream:    cfg.Webhook.DLQStream,
		BatchSize:    10,
		Block:        5 * time.Second,
		MaxAttempts:  3,
		RequeueDelay: time.Second,
	}, nil)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create consumer", "error", err)
		os.Exit(1)
	}

	w := worker.New(consumer, engine, worker.Config{MaxAttempts: 3}, nil)

	reclaimer := worker.NewRedisReclaimer(redisClient, worker.RedisReclaimerConfig{
		Stream:        cfg.Webhook.Stream,
		Group:         cfg.Webhook.Group,
		Consumer:      cfg.Webhook.Consumer + "-reclaimer",
		MinIdle:       5 * time.Minute,
		Interval:      1 * time.Minute,
		BatchSize:     10,
		MaxDeliveries: 5,
	}, consumer, w.ProcessMessage, nil)

	sweeper, err := worker.NewSweepScheduler(engine, lock.New(redisClient, nil), worker.SweeperConfig{
		Schedule:   cfg.Webhook.SweepSchedule,
		StaleAfter: cfg.Webhook.StaleAfter,
		LockTTL:    cfg.Webhook.LockTTL,
	}, nil)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create sweep scheduler", "error", err)
		os.Exit(1)
	}

	runCtx, stopRun := context.WithCancel(ctx)
	defer stopRun()

	errCh := make(chan error, 2)
	go func() {
		errCh <- w.Run(runCtx)
	}()
	go func() {
		reclaimer.Run(runCtx)
		errCh <- nil
	}()
	sweeper.Start(runCtx)

	slog.InfoContext(ctx, "worker initialized and running", "sweep_schedule", cfg.Webhook.SweepSchedule)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down worker...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Stop the schedulers first, then drain the in-flight delivery
	stopped := make(chan struct{})
	go func() {
		sweeper.Stop()
		reclaimer.Stop()
		w.Stop()
		close(stopped)
	}()

	select {
	case <-shutdownCtx.Done():
		slog.WarnContext(ctx, "shutdown timeout exceeded")
		stopRun()
	case <-stopped:
		for range 2 {
			if err := <-errCh; err != nil {
				slog.ErrorContext(ctx, "worker error during shutdown", "error", err)
			}
		}
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(ctx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(ctx, "worker shutdown complete")
}

const banner = `
███████╗ ██████╗██╗  ██╗ ██████╗     ██╗    ██╗ ██████╗ ██████╗ ██╗  ██╗███████╗██████╗ 
██╔════╝██╔════╝██║  ██║██╔═══██╗    ██║    ██║██╔═══██╗██╔══██╗██║ ██╔╝██╔════╝██╔══██╗
█████╗  ██║     ███████║██║   ██║    ██║ █╗ ██║██║   ██║██████╔╝█████╔╝ █████╗  ██████╔╝
██╔══╝  ██║     ██╔══██║██║   ██║    ██║███╗██║██║   ██║██╔══██╗██╔═██╗ ██╔══╝  ██╔══██╗
███████╗╚██████╗██║  ██║╚██████╔╝    ╚███╔███╔╝╚██████╔╝██║  ██║██║  ██╗███████╗██║  ██║
╚══════╝ ╚═════╝╚═╝  ╚═╝ ╚═════╝      ╚══╝╚══╝  ╚═════╝ ╚═╝  ╚═╝╚═╝  ╚═╝╚══════╝╚═╝  ╚═╝
`
