package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/pawprint/config"
	"github.com/d60-Lab/pawprint/internal/api"
	"github.com/d60-Lab/pawprint/internal/api/handler"
	"github.com/d60-Lab/pawprint/internal/api/middleware"
	"github.com/d60-Lab/pawprint/internal/cache"
	"github.com/d60-Lab/pawprint/internal/events"
	"github.com/d60-Lab/pawprint/internal/repository"
	"github.com/d60-Lab/pawprint/internal/repository/memory"
	"github.com/d60-Lab/pawprint/internal/repository/relational"
	"github.com/d60-Lab/pawprint/internal/service"
	"github.com/d60-Lab/pawprint/pkg/database"
	"github.com/d60-Lab/pawprint/pkg/logger"
	"github.com/d60-Lab/pawprint/pkg/tracing"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.Sentry.DSN, Environment: cfg.Sentry.Environment}); err != nil {
			return fmt.Errorf("init sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	opts := []service.GateOption{service.WithTrendingWindow(cfg.Insights.TrendingWindow)}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unavailable, insights served uncached", zap.Error(err))
		} else {
			opts = append(opts, service.WithInsights(cache.NewInsights(store, rdb, cfg.Insights.CacheTTL)))
		}
	}
	gate := service.NewGate(store, opts...)
	subs := service.NewSubscriptionService(store)

	if cfg.Events.AMQPURL != "" {
		wait, err := startConsumer(ctx, cfg.Events, subs)
		if err != nil {
			return err
		}
		defer wait()
	}

	gin.SetMode(cfg.Server.Mode)
	limiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	go sweepLimiter(ctx, limiter)

	router, err := api.NewRouter(cfg, handler.New(gate, subs), limiter)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr), zap.String("storage", cfg.Storage.Backend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		stop()
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	if cfg.Storage.Backend == "memory" {
		return memory.New(), nil
	}
	db, err := database.InitDB(cfg)
	if err != nil {
		return nil, err
	}
	store := relational.New(db)
	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return store, nil
}

func startConsumer(ctx context.Context, cfg config.EventsConfig, subs *service.SubscriptionService) (func(), error) {
	conn, err := events.Connect(cfg.AMQPURL, cfg.ConnRetries, cfg.RetryDelay)
	if err != nil {
		return nil, err
	}
	ch, err := events.SetupChannel(conn, cfg.Queue, cfg.Concurrency)
	if err != nil {
		conn.Close()
		return nil, err
	}
	wait, err := events.Consume(ctx, ch, cfg.Queue, cfg.Concurrency, events.NewDispatcher(subs).Handle)
	if err != nil {
		conn.Close()
		return nil, err
	}
	logger.Info("consuming account events", zap.String("queue", cfg.Queue), zap.Int("concurrency", cfg.Concurrency))
	return func() {
		wait()
		_ = ch.Close()
		_ = conn.Close()
	}, nil
}

func sweepLimiter(ctx context.Context, rl *middleware.RateLimiter) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.Sweep(10 * time.Minute)
		case <-ctx.Done():
			return
		}
	}
}
