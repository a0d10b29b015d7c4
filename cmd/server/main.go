package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vibecampus/vibehub/internal/api"
	"github.com/vibecampus/vibehub/internal/auth"
	"github.com/vibecampus/vibehub/internal/cache"
	"github.com/vibecampus/vibehub/internal/db"
	"github.com/vibecampus/vibehub/internal/procedures"
	"github.com/vibecampus/vibehub/internal/realtime"
	"github.com/vibecampus/vibehub/internal/storage"
	"github.com/vibecampus/vibehub/pkg/config"
	"github.com/vibecampus/vibehub/pkg/logging"
	"github.com/vibecampus/vibehub/pkg/telemetry"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logging.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.GetLogger().Sync()

	logger := logging.GetLogger()
	logger.Info("Starting VibeHub API Server")

	// Initialize telemetry
	telemetryShutdown, err := telemetry.Init(&cfg.Telemetry)
	if err != nil {
		logger.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer telemetryShutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.New(&cfg.Database, cfg.Logging.Level)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close()
	if err := database.Migrate(ctx); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}

	redisCache, err := cache.New(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisCache.Close()

	publisher, subscriber, closeBroker, err := openBroker(ctx, cfg, database, redisCache)
	if err != nil {
		logger.Fatal("Failed to start realtime broker", zap.Error(err))
	}
	defer closeBroker()

	store, err := storage.NewLocal(&cfg.Storage)
	if err != nil {
		logger.Fatal("Failed to open storage", zap.Error(err))
	}

	repo := db.NewRepository(database.DB, publisher)
	router := api.NewRouter(api.Dependencies{
		DB:         database,
		Cache:      redisCache,
		Repo:       repo,
		Auth:       auth.NewService(repo, &cfg.Auth, auth.LogMailer{}),
		Procedures: procedures.NewRegistry(repo),
		Storage:    store,
		Realtime:   subscriber,
		ProfileTTL: cfg.Cache.ProfileTTL,
	})

	// Create Gin router
	if cfg.Logging.Level == "DEBUG" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	router.SetupRoutes(engine)

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: engine,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Server starting", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()

	logger.Info("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// openBroker picks where changes are published and read. With the "app"
// source the API publishes after each commit; with "postgres" row
// triggers notify the relay, which republishes into Redis.
func openBroker(ctx context.Context, cfg *config.Config, database *db.DB, c *cache.Cache) (realtime.Publisher, realtime.Subscriber, func(), error) {
	if cfg.Realtime.Source == config.RealtimeSourcePostgres {
		if err := database.InstallNotifyTriggers(ctx, cfg.Realtime.NotifyChannel); err != nil {
			return nil, nil, nil, err
		}
		broker := realtime.NewRedisBroker(c.Client(), cfg.Realtime.Channel)
		if err := broker.Start(ctx); err != nil {
			return nil, nil, nil, err
		}
		return realtime.NopPublisher{}, broker, func() { broker.Close() }, nil
	}

	if c.Client() != nil {
		broker := realtime.NewRedisBroker(c.Client(), cfg.Realtime.Channel)
		if err := broker.Start(ctx); err != nil {
			return nil, nil, nil, err
		}
		return broker, broker, func() { broker.Close() }, nil
	}

	broker := realtime.NewMemoryBroker()
	return broker, broker, func() { broker.Close() }, nil
}
