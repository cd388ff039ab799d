package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/arrowlabs/rrlsched/internal/config"
	"github.com/arrowlabs/rrlsched/internal/handlers"
	"github.com/arrowlabs/rrlsched/internal/proxy"
	"github.com/arrowlabs/rrlsched/internal/server"
	"github.com/arrowlabs/rrlsched/pkg/eventlog"
	"github.com/arrowlabs/rrlsched/pkg/ratelimiter"
	"github.com/arrowlabs/rrlsched/pkg/scheduler"
	"github.com/arrowlabs/rrlsched/pkg/workerpool"
)

func newServeCmd() *cobra.Command {
	var eventDBPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduling engine and its HTTP status/control surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), eventDBPath)
		},
	}
	cmd.Flags().StringVar(&eventDBPath, "event-db", "rrlsched-events.duckdb", "path to the DuckDB event audit log")
	return cmd
}

func runServe(ctx context.Context, eventDBPath string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger, err := buildLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	defer logger.Sync()

	schedCfg, err := cfg.ToSchedulerConfig()
	if err != nil {
		return fmt.Errorf("build scheduler config: %w", err)
	}

	sink, err := eventlog.Open(eventDBPath)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	defer sink.Close()

	pool := workerpool.NewSimplePool("rrlsched", workerpool.Config{Min: 0, Max: cfg.Scheduler.NumWorkers})

	var limiter ratelimiter.Limiter
	if cfg.Scheduler.RateLimiterBucketSize > 0 {
		limiter = ratelimiter.NewTokenBucket(
			int(cfg.Scheduler.RateLimiterBucketSize),
			int(cfg.Scheduler.RateLimiterRefillRate),
			cfg.Scheduler.RateLimiterRefillInterval,
		)
	} else {
		limiter = ratelimiter.NewUnlimited()
	}

	var processor scheduler.Processor
	if cfg.Server.DownstreamURL != "" {
		processor = proxy.NewForwarder(cfg.Server.DownstreamURL).Processor()
	} else {
		processor = proxy.Echo()
	}

	engine := scheduler.NewEngine(schedCfg, processor, pool, limiter, scheduler.Hooks{}, sink)
	if err := engine.Start(); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}

	handler := handlers.New(engine, sink, cfg.Auth)
	srv := server.NewServer(&cfg.Server, func(group *gin.RouterGroup) {
		handler.Register(group)
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-sigCh:
		logger.Sugar().Info("shutdown signal received")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(stopCtx); err != nil {
		logger.Sugar().Warnw("http server shutdown error", "error", err)
	}

	if err := engine.ShutdownFor(5 * time.Second); err != nil {
		logger.Sugar().Warnw("engine shutdown error", "error", err)
	}
	return nil
}

func buildLogger(level, format string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.Set(level); err != nil {
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	return cfg.Build()
}
