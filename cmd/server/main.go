package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
	_ "time/tzdata"

	"warungpos/backend/internal/cache"
	"warungpos/backend/internal/config"
	"warungpos/backend/internal/events"
	"warungpos/backend/internal/httpapi"
	"warungpos/backend/internal/logger"
	"warungpos/backend/internal/notify"
	"warungpos/backend/internal/service"
	"warungpos/backend/internal/store"
	"warungpos/backend/internal/store/memory"
	pgstore "warungpos/backend/internal/store/postgres"
	"warungpos/backend/internal/syncqueue"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := validateSecurityConfig(cfg); err != nil {
		return fmt.Errorf("invalid security configuration: %w", err)
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Development: cfg.LogDevelopment})
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	logger.SetDefault(log)
	defer func() { _ = log.Sync() }()

	startCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 3)
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				log.Warnw("close error", "error", err)
			}
		}
	}()

	if cfg.DatabaseURL != "" {
		poolCfg := pgstore.DefaultPoolConfig(cfg.DatabaseURL)
		poolCfg.MaxConns = cfg.DBMaxConns
		pg, err := pgstore.New(startCtx, poolCfg)
		if err != nil {
			return fmt.Errorf("postgres unavailable and DATABASE_URL is set, refusing to start with in-memory fallback: %w", err)
		}
		closers = append(closers, func() error { pg.Close(); return nil })
		if cfg.DBAutoMigrate {
			if err := pg.Migrate(startCtx); err != nil {
				return err
			}
			log.Info("schema migrated")
		}
		repo = pg
		log.Info("repository: postgres")
	} else {
		mem, err := memory.NewSeeded()
		if err != nil {
			return fmt.Errorf("seed in-memory store: %w", err)
		}
		repo = mem
		log.Warn("repository: in-memory, data is lost on restart")
	}

	var dashboardCache cache.DashboardCache = cache.NoopDashboardCache{}
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisDashboardCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(startCtx); err != nil {
			log.Warnw("redis unavailable, using noop cache", "error", err)
			_ = redisCache.Close()
		} else {
			dashboardCache = redisCache
			closers = append(closers, redisCache.Close)
			log.Info("cache: redis")
		}
	} else {
		log.Info("cache: noop")
	}

	var publisher service.EventPublisher = events.NoopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		publisher = kafkaPublisher
		closers = append(closers, kafkaPublisher.Close)
		log.Infow("events: kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	svc := service.New(repo, service.Options{
		Cache:     dashboardCache,
		CacheTTL:  cfg.DashboardCacheTTL(),
		Publisher: publisher,
		Notifier:  notify.NewWhatsAppMock(log),
		Replay: syncqueue.Config{
			Capacity:    cfg.SyncQueueCapacity,
			MaxAttempts: cfg.SyncMaxAttempts,
			BaseBackoff: cfg.SyncBaseBackoff(),
			MaxBackoff:  cfg.SyncMaxBackoff(),
		},
		Logger: log,
	})
	auth := httpapi.NewAuthManager(cfg.AuthSecret, cfg.AccessTokenTTL(), repo)
	api := httpapi.New(svc, auth, httpapi.Options{
		AllowedOrigin: cfg.AllowedOrigin,
		CallbackToken: cfg.PaymentCallbackToken,
		Logger:        log,
	})
	if cfg.PaymentCallbackToken == "" {
		log.Warn("PAYMENT_CALLBACK_TOKEN is not set, payment callbacks are disabled")
	}

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var workers sync.WaitGroup
	workers.Add(1)
	go func() {
		defer workers.Done()
		svc.RunReplay(ctx)
	}()

	serveErr := make(chan error, 1)
	go func() {
		log.Infow("warungpos backend listening", "addr", cfg.Address())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			stop()
			workers.Wait()
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("shutdown error", "error", err)
	}
	stop()
	workers.Wait()

	log.Info("server stopped")
	return nil
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.PaymentCallbackToken != "" && len(cfg.PaymentCallbackToken) < 16 {
		return fmt.Errorf("PAYMENT_CALLBACK_TOKEN must be at least 16 characters when set")
	}
	return nil
}
