// cmd/quantserver runs the strategy execution HTTP service: REST
// endpoints under /quant, SSE streaming, a WebSocket live price feed,
// and a separate metrics/health listener.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"quantdesk/config"
	"quantdesk/internal/api"
	"quantdesk/internal/engine"
	"quantdesk/internal/insight"
	"quantdesk/internal/logger"
	"quantdesk/internal/marketdata"
	"quantdesk/internal/metrics"
	redisstore "quantdesk/internal/store/redis"
	sqlitestore "quantdesk/internal/store/sqlite"
	"quantdesk/internal/strategy"
)

func main() {
	cfg := config.Load()
	log := logger.Init("quantserver", parseLevel(cfg.LogLevel))
	log.Info("starting", "listen_addr", cfg.ListenAddr, "metrics_addr", cfg.MetricsAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Both caches are optional accelerators. A failed open is logged
	// and the service continues straight against the upstream.
	var barCache marketdata.BarCache
	var barDB *sql.DB
	if cfg.SQLitePath != "" {
		cache, err := sqlitestore.New(sqlitestore.Config{Path: cfg.SQLitePath, TTL: cfg.BarCacheTTL}, log)
		if err != nil {
			log.Warn("bar cache disabled", "path", cfg.SQLitePath, "error", err)
		} else {
			defer cache.Close()
			barCache = cache
			barDB = cache.DB()
		}
	}

	var quoteCache marketdata.QuoteCache
	var rdb *goredis.Client
	if cfg.RedisAddr != "" {
		cache, err := redisstore.NewQuoteCache(redisstore.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.QuoteCacheTTL,
		}, log)
		if err != nil {
			log.Warn("quote cache disabled", "addr", cfg.RedisAddr, "error", err)
		} else {
			defer cache.Close()
			quoteCache = cache
			rdb = cache.Client()
		}
	}

	yahoo := marketdata.NewYahoo(cfg.MarketDataBaseURL, cfg.MarketDataTimeout, log)
	breaker := marketdata.NewBreaker(yahoo, cfg.BreakerMaxFailures, cfg.BreakerResetTimeout, log)
	provider := marketdata.NewService(breaker, barCache, quoteCache, log)

	registry := strategy.NewRegistry()
	eng := engine.New(registry, provider, log)
	eng.StepDelay = cfg.StepDelay

	var insights insight.Provider
	if cfg.GeminiAPIKey != "" {
		gem, err := insight.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, log)
		if err != nil {
			log.Warn("insight backend disabled", "error", err)
		} else {
			insights = gem
		}
	}

	met := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	health.StartProber(ctx, rdb, barDB, 0)

	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health, log)
	metricsSrv.Start()

	srv := api.NewServer(eng, registry, provider, insights, health, met, log, api.Config{
		LiveTick:  cfg.LiveTick,
		RateRPS:   cfg.RateRPS,
		RateBurst: cfg.RateBurst,
	})

	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("http server listening", "addr", cfg.ListenAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", "error", err)
	}
	metricsSrv.Stop(shutdownCtx)
	log.Info("stopped")
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
