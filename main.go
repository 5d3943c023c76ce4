package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"recruitment-tracker-go/internal/config"
	"recruitment-tracker-go/internal/handlers"
	"recruitment-tracker-go/internal/logger"
	"recruitment-tracker-go/internal/notify"
	"recruitment-tracker-go/internal/recruitment"
	"recruitment-tracker-go/internal/store"
	"recruitment-tracker-go/internal/telemetry"
)

const serviceName = "recruitment-tracker"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.Environment)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, serviceName, cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("failed to flush traces", zap.Error(err))
		}
	}()

	// SQL store: source of truth for entities, history, grants and users
	var sqlStore *store.SQLStore
	switch cfg.DatabaseDriver {
	case "sqlite":
		sqlStore, err = store.NewSQLiteStore(cfg.DatabaseURL)
	default:
		sqlStore, err = store.NewPostgresStore(cfg.DatabaseURL)
	}
	if err != nil {
		return fmt.Errorf("connect to %s: %w", cfg.DatabaseDriver, err)
	}
	defer sqlStore.Close()

	if err := sqlStore.RunMigrations(ctx); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	log.Info("database migrations completed", zap.String("driver", sqlStore.Dialect()))

	// Redis: grant cache and event bus
	redisStore := store.NewRedisStore(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, cfg.GrantCacheTTL, cfg.EventHistorySize)
	defer redisStore.Close()
	if err := redisStore.Ping(ctx); err != nil {
		log.Warn("redis unreachable; grant cache and events degrade until it recovers",
			zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}

	push, err := notify.NewWebPush(sqlStore, notify.VAPIDKeys{
		PublicKey:  cfg.VAPIDPublicKey,
		PrivateKey: cfg.VAPIDPrivateKey,
		Subscriber: cfg.VAPIDSubscriber,
	}, log)
	if err != nil {
		return fmt.Errorf("setup web push: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	svc := recruitment.NewService(sqlStore, log,
		recruitment.WithGrantCache(redisStore),
		recruitment.WithEvents(redisStore),
		recruitment.WithNotifier(push),
		recruitment.WithMetrics(recruitment.NewMetrics(reg)),
	)

	if err := handlers.EnsureAdmin(ctx, sqlStore, cfg.AdminUsername, cfg.AdminPassword, log); err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}

	h := handlers.NewHandler(svc, sqlStore, sqlStore, cfg.SessionSecret, cfg.Production(), log)
	h.Events = redisStore
	h.VAPID = push
	h.Gatherer = reg
	h.Timeout = cfg.RequestTimeout
	h.Health["database"] = sqlStore
	h.Health["redis"] = redisStore

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		// Event streams end when the signal context is cancelled.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", srv.Addr), zap.String("env", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
