package http

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"chirper/internal/cache"
	"chirper/internal/command"
	"chirper/internal/config"
	"chirper/internal/eventlog"
	"chirper/internal/handler"
	"chirper/internal/logger"
	"chirper/internal/metrics"
	"chirper/internal/projector"
	"chirper/internal/query"
	"chirper/internal/queue"
	"chirper/internal/readstore"
	"chirper/internal/redis"
)

// shutdownGrace bounds the drain of in-flight requests.
const shutdownGrace = 10 * time.Second

// Run assembles the whole service and blocks until SIGINT/SIGTERM.
func Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.Initialize(cfg.LogLevel, cfg.LogFile); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	ctx := context.Background()

	// Event log: SQL when configured, in-memory otherwise.
	var eventLog eventlog.Log
	if cfg.DatabaseURL != "" {
		sqlLog, err := eventlog.OpenSQL(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		eventLog = sqlLog
		logger.Log.Info("event log opened", zap.String("backend", "sql"))
	} else {
		eventLog = eventlog.NewMemoryLog()
		logger.Log.Warn("event log is in-memory; events do not survive restarts")
	}
	defer eventLog.Close()

	// Timeline backend: Redis sorted sets when configured.
	var timelines readstore.TimelineStore
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = redis.NewClient(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		if err := redisClient.Ping(ctx); err != nil {
			return err
		}
		timelines = cache.NewRedisTimelines(redisClient.Client, cfg.MaxTimeline)
		logger.Log.Info("timelines backed by redis")
	} else {
		timelines = readstore.NewMemoryTimelines(cfg.MaxTimeline)
	}

	store := readstore.New(timelines, cfg.CelebrityThreshold)
	observer := metrics.NewProjectionObserver()

	// Rebuild the read store from whatever the log already holds.
	stats, err := projector.Replay(ctx, eventLog, store, cfg.FanoutWorkers, observer)
	if err != nil {
		return fmt.Errorf("startup replay: %w", err)
	}
	logger.Log.Info("read store ready",
		zap.Int("profiles", stats.Profiles),
		zap.Int("posts", stats.Posts),
		zap.Int("edges", stats.Edges))

	pipeline := projector.NewPipeline(projector.New(store, cfg.FanoutWorkers, observer))
	pipeline.Start()

	bus := command.NewBus(eventLog, store, pipeline)
	if cfg.EventStreamEnabled {
		if redisClient == nil {
			logger.Log.Warn("EVENT_STREAM_ENABLED set but no REDIS_URL; relay disabled")
		} else {
			bus.SetPublisher(queue.NewPublisher(redisClient.Client, int64(cfg.EventStreamMaxLen)))
			logger.Log.Info("event relay enabled", zap.String("stream", queue.StreamEvents))
		}
	}
	queries := query.New(store, cfg.MaxTimeline)

	if cfg.IdentitySecret == "" {
		logger.Log.Warn("IDENTITY_SECRET is empty; tokens are forgeable")
	}
	ttl := time.Duration(cfg.IdentityTTLMinutes) * time.Minute

	router := NewRouter(RouterConfig{
		UserHandler:     handler.NewUserHandler(bus, queries, cfg.IdentitySecret, ttl),
		IdentityHandler: handler.NewIdentityHandler(queries, cfg.IdentitySecret, ttl),
		PostHandler:     handler.NewPostHandler(bus, queries),
		FollowHandler:   handler.NewFollowHandler(bus),
		FeedHandler:     handler.NewFeedHandler(queries),
		IdentitySecret:  cfg.IdentitySecret,
	})

	srv := &stdhttp.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		pipeline.Stop()
		return err
	case sig := <-quit:
		logger.Log.Info("shutting down", zap.String("signal", sig.String()))
	}

	drainCtx, cancel := context.WithTimeout(ctx, shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(drainCtx); err != nil {
		logger.Log.Error("forced shutdown", zap.Error(err))
	}
	pipeline.Stop()
	return nil
}
