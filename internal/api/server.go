// Package api exposes the quant engine over HTTP: JSON endpoints for
// run/backtest, an SSE adapter for the step stream and a WebSocket
// route for live prices.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"quantdesk/internal/engine"
	"quantdesk/internal/insight"
	"quantdesk/internal/live"
	"quantdesk/internal/metrics"
	"quantdesk/internal/strategy"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// SetCORS sets CORS headers for REST endpoints.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// Config tunes the transport layer.
type Config struct {
	LiveTick  time.Duration // live quote cadence; zero picks one second
	RateRPS   float64       // per-IP request budget; zero disables limiting
	RateBurst int
}

// Server wires the engine and its collaborators into HTTP routes.
type Server struct {
	engine   *engine.Engine
	registry *strategy.Registry
	quotes   live.QuoteProvider
	insights insight.Provider // nil when no LLM backend is configured
	health   http.Handler
	met      *metrics.Metrics
	log      *slog.Logger

	liveTick time.Duration
	limiter  *ipLimiter
}

// NewServer builds the server. insights and health may be nil.
func NewServer(e *engine.Engine, reg *strategy.Registry, quotes live.QuoteProvider,
	insights insight.Provider, health http.Handler, met *metrics.Metrics,
	log *slog.Logger, cfg Config) *Server {

	tick := cfg.LiveTick
	if tick <= 0 {
		tick = time.Second
	}
	var limiter *ipLimiter
	if cfg.RateRPS > 0 {
		limiter = newIPLimiter(cfg.RateRPS, cfg.RateBurst)
	}
	return &Server{
		engine:   e,
		registry: reg,
		quotes:   quotes,
		insights: insights,
		health:   health,
		met:      met,
		log:      log,
		liveTick: tick,
		limiter:  limiter,
	}
}

// Routes registers all endpoints and returns the wrapped handler.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /quant/strategies", s.handleStrategies)
	mux.HandleFunc("POST /quant/run", s.handleRun)
	mux.HandleFunc("POST /quant/backtest", s.handleBacktest)
	mux.HandleFunc("POST /quant/ai-insight", s.handleInsight)
	mux.HandleFunc("GET /quant/stream/run", s.handleStreamRun)
	mux.HandleFunc("GET /quant/ws/live/{ticker}", s.handleLive)
	mux.HandleFunc("OPTIONS /", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		w.WriteHeader(http.StatusOK)
	})

	if s.health != nil {
		mux.Handle("GET /healthz", s.health)
	} else {
		mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"ok"}`))
		})
	}

	var h http.Handler = mux
	if s.limiter != nil {
		h = s.limiter.middleware(h, s.met)
	}
	return s.requestLog(h)
}
