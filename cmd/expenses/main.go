package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"expenses/internal/backend"
	"expenses/internal/cache"
	"expenses/internal/cli"
	"expenses/internal/config"
	apphttp "expenses/internal/http"
	applog "expenses/internal/log"
	"expenses/internal/services"
)

func main() {
	cfg, logger := cli.Bootstrap(applog.ComponentApp)
	if err := run(cfg, logger); err != nil {
		logger.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(cfg *config.Config, logger *applog.Logger) error {
	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	be, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return fmt.Errorf("initialize %s backend: %w", cfg.DataBackend, err)
	}
	defer func() {
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", "error", err)
		}
	}()

	if cfg.QueryCacheTTL > 0 && cfg.DataBackend != config.BackendMemory {
		logger.Warn("Query cache only sees inserts from this process, reads may lag other writers",
			"ttl", cfg.QueryCacheTTL,
			"backend", cfg.DataBackend)
	}

	svc := services.NewExpenseService(be.Store, be.Publisher, services.Options{
		CacheSize: cfg.QueryCacheSize,
		CacheTTL:  cfg.QueryCacheTTL,
		Logger:    logger,
	})

	cacheLogger := logger.WithComponent(applog.ComponentCache)
	caches := cache.NewManager(func(removed int) {
		if removed > 0 {
			cacheLogger.Debug("Expired cache entries removed", "removed", removed)
		}
	})
	caches.Register(svc.Cache())
	caches.StartCleanup(time.Minute)
	defer caches.Stop()

	srv, err := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
		Logger:             logger,
	})
	if err != nil {
		return fmt.Errorf("configure HTTP server: %w", err)
	}

	logger.Info("Starting expenses server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"events_enabled", be.Publisher != nil)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.ListenAndServe)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
