package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/vibecampus/vibehub/internal/cache"
	"github.com/vibecampus/vibehub/internal/realtime"
	"github.com/vibecampus/vibehub/internal/relay"
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
	if !cfg.Redis.Enabled {
		fmt.Fprintln(os.Stderr, "The relay needs redis_url")
		os.Exit(1)
	}

	// Initialize logger
	if err := logging.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.GetLogger().Sync()

	logger := logging.GetLogger()
	logger.Info("Starting VibeHub change relay",
		zap.String("notify_channel", cfg.Realtime.NotifyChannel),
		zap.String("channel", cfg.Realtime.Channel))

	// Initialize telemetry
	telemetryShutdown, err := telemetry.Init(&cfg.Telemetry)
	if err != nil {
		logger.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer telemetryShutdown()

	redisCache, err := cache.New(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisCache.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	broker := realtime.NewRedisBroker(redisCache.Client(), cfg.Realtime.Channel)
	listener := realtime.NewPGListener(cfg.Database.URL, cfg.Realtime.NotifyChannel)
	r := relay.New(&cfg.Realtime, listener, broker)

	if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Relay stopped", zap.Error(err))
	}
	logger.Info("Relay exited", zap.Int64("relayed", r.Relayed()), zap.Int64("restarts", r.Restarts()))
}
