// Package metrics holds the Prometheus instrumentation and the health
// endpoint shared by the API server.
package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the quant engine.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec // labels: route, status
	RequestDuration *prometheus.HistogramVec

	RunsTotal         *prometheus.CounterVec // labels: strategy, outcome
	StreamEventsTotal prometheus.Counter
	StreamRunsTotal   *prometheus.CounterVec // labels: outcome

	LiveSessions    prometheus.Gauge
	LiveFramesTotal prometheus.Counter

	ProviderRequests *prometheus.CounterVec // labels: op, outcome
	ProviderDuration prometheus.Histogram
	CacheLookups     *prometheus.CounterVec // labels: cache, result
	BreakerState     prometheus.Gauge       // 0=closed, 1=open, 2=half-open
	BreakerTrips     prometheus.Counter

	RateLimited prometheus.Counter
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quantdesk_http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "quantdesk_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),

		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quantdesk_engine_runs_total",
			Help: "Engine run/backtest executions by strategy and outcome",
		}, []string{"strategy", "outcome"}),
		StreamEventsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quantdesk_stream_events_total",
			Help: "SSE step events emitted",
		}),
		StreamRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quantdesk_stream_runs_total",
			Help: "Streamed runs by outcome",
		}, []string{"outcome"}),

		LiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quantdesk_live_sessions",
			Help: "Open live price WebSocket sessions",
		}),
		LiveFramesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quantdesk_live_frames_total",
			Help: "Price update frames pushed to live clients",
		}),

		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quantdesk_provider_requests_total",
			Help: "Upstream market data requests by operation and outcome",
		}, []string{"op", "outcome"}),
		ProviderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "quantdesk_provider_request_duration_seconds",
			Help:    "Upstream market data request latency",
			Buckets: prometheus.DefBuckets,
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quantdesk_cache_lookups_total",
			Help: "Bar and quote cache lookups by result",
		}, []string{"cache", "result"}),
		BreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quantdesk_provider_breaker_state",
			Help: "Market data circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		BreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quantdesk_provider_breaker_trips_total",
			Help: "Times the market data circuit breaker tripped open",
		}),

		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quantdesk_rate_limited_total",
			Help: "Requests rejected by the per-IP rate limiter",
		}),
	}

	prometheus.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.RunsTotal,
		m.StreamEventsTotal,
		m.StreamRunsTotal,
		m.LiveSessions,
		m.LiveFramesTotal,
		m.ProviderRequests,
		m.ProviderDuration,
		m.CacheLookups,
		m.BreakerState,
		m.BreakerTrips,
		m.RateLimited,
	)

	return m
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	RedisConnected  bool
	RedisLatencyMs  float64
	SQLiteOK        bool
	SQLiteLatencyMs float64
	LastCheckAt     time.Time
	StartedAt       time.Time

	// Redis and SQLite are optional accelerators; absent means the
	// probe never runs and the field stays neutral.
	redisEnabled  bool
	sqliteEnabled bool
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{StartedAt: time.Now()}
}

// CheckRedis probes Redis connectivity and latency.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	h.mu.Lock()
	h.redisEnabled = true
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(time.Since(start).Microseconds()) / 1000
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite probes the bar cache database.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	h.mu.Lock()
	h.sqliteEnabled = true
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(time.Since(start).Microseconds()) / 1000
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartProber runs periodic liveness probes until ctx is canceled.
// Either handle may be nil.
func (h *HealthStatus) StartProber(ctx context.Context, rdb *goredis.Client, db *sql.DB, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if db != nil {
					h.CheckSQLite(probeCtx, db)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if (h.redisEnabled && !h.RedisConnected) || (h.sqliteEnabled && !h.SQLiteOK) {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		RedisEnabled    bool    `json:"redis_enabled"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteEnabled   bool    `json:"sqlite_enabled"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		RedisEnabled:    h.redisEnabled,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteEnabled:   h.sqliteEnabled,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	addr string
	srv  *http.Server
	log  *slog.Logger
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus, log *slog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		addr: addr,
		log:  log,
		srv:  &http.Server{Addr: addr, Handler: mux},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		s.log.Info("metrics server listening", "addr", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			s.log.Error("metrics server error", "err", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
