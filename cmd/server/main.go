package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"echo.app/relay/common/id"
	"echo.app/relay/common/logger"
	"echo.app/relay/common/otel"
	"echo.app/relay/core/config"
	"echo.app/relay/core/db"
	"echo.app/relay/internal/http/middleware"
	httprouter "echo.app/relay/internal/http/router"
	"echo.app/relay/internal/queue"
	"echo.app/relay/internal/service"
	"echo.app/relay/internal/service/webhook"
	"echo.app/relay/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeServer)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "echo api starting", "env", cfg.Env, "service", cfg.OTel.ServiceName)
	if err := id.Init(cfg.NodeID); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
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
	defer redisClient.Close()

	// Without Redis new events wait for the worker's sweep instead of the stream.
	var producer queue.Producer
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.WarnContext(ctx, "redis unavailable, webhook events will be picked up by the sweep", "error", err)
	} else {
		producer = queue.NewRedisProducer(redisClient, cfg.Webhook.Stream, nil)
		defer producer.Close()
		slog.InfoContext(ctx, "redis connected", "stream", cfg.Webhook.Stream)
	}

	stores := store.NewStores(database.Queries())

	services := service.NewServices(service.ServicesConfig{
		Stores:   stores,
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

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, services)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func setupRouter(cfg config.Config, services *service.Services) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	httprouter.SetupRoutes(router, services, httprouter.RouterConfig{
		PublicURL: cfg.PublicURL,
	})

	return router
}

const banner = `
███████╗ ██████╗██╗  ██╗ ██████╗      █████╗ ██████╗ ██╗
██╔════╝██╔════╝██║  ██║██╔═══██╗    ██╔══██╗██╔══██╗██║
█████╗  ██║     ███████║██║   ██║    ███████║██████╔╝██║
██╔══╝  ██║     ██╔══██║██║   ██║    ██╔══██║██╔═══╝ ██║
███████╗╚██████╗██║  ██║╚██████╔╝    ██║  ██║██║     ██║
╚══════╝ ╚═════╝╚═╝  ╚═╝ ╚═════╝     ╚═╝  ╚═╝╚═╝     ╚═╝
`
