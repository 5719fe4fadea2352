package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"quantdesk/internal/engine"
	"quantdesk/internal/insight"
	"quantdesk/internal/live"
)

func (s *Server) handleStrategies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.List())
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req engine.RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Ticker) == "" || req.Strategy == "" {
		writeBadRequest(w, "ticker and strategy are required")
		return
	}

	rec, err := s.engine.Run(r.Context(), req)
	if err != nil {
		s.countRun(req.Strategy, "error")
		writeEngineError(w, err)
		return
	}
	s.countRun(req.Strategy, "ok")
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	var req engine.BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Ticker) == "" || req.Strategy == "" {
		writeBadRequest(w, "ticker and strategy are required")
		return
	}

	rec, err := s.engine.Backtest(r.Context(), req)
	if err != nil {
		s.countRun(req.Strategy, "error")
		writeEngineError(w, err)
		return
	}
	s.countRun(req.Strategy, "ok")
	writeJSON(w, http.StatusOK, rec)
}

type insightResponse struct {
	Ticker     string `json:"ticker"`
	Strategy   string `json:"strategy"`
	Insight    string `json:"insight"`
	Disclaimer string `json:"disclaimer"`
}

func (s *Server) handleInsight(w http.ResponseWriter, r *http.Request) {
	if s.insights == nil {
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "insight backend not configured"})
		return
	}

	var req insight.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Ticker == "" || req.Strategy == "" {
		writeBadRequest(w, "ticker and strategy are required")
		return
	}

	text, err := s.insights.Insight(r.Context(), req)
	if err != nil {
		s.log.Error("insight generation failed", "ticker", req.Ticker, "err", err)
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "insight generation failed", Retryable: true})
		return
	}
	writeJSON(w, http.StatusOK, insightResponse{
		Ticker:     req.Ticker,
		Strategy:   req.Strategy,
		Insight:    text,
		Disclaimer: engine.Disclaimer,
	})
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	ticker := r.PathValue("ticker")
	if strings.TrimSpace(ticker) == "" {
		writeBadRequest(w, "ticker is required")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("live upgrade failed", "err", err)
		return
	}

	if s.met != nil {
		s.met.LiveSessions.Inc()
		defer s.met.LiveSessions.Dec()
	}
	live.NewSession(conn, ticker, s.quotes, s.log, s.liveTick).Run(r.Context())
}

func (s *Server) countRun(strategy, outcome string) {
	if s.met != nil {
		s.met.RunsTotal.WithLabelValues(strategy, outcome).Inc()
	}
}
