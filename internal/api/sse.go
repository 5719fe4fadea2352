package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"quantdesk/internal/engine"
)

// handleStreamRun adapts the step stream onto SSE. The response is
// always 200; engine failures arrive as a terminal error event.
func (s *Server) handleStreamRun(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	q := r.URL.Query()
	req := engine.RunRequest{
		Ticker:   q.Get("ticker"),
		Strategy: q.Get("strategy"),
		Period:   q.Get("period"),
		Interval: q.Get("interval"),
	}
	if raw := q.Get("params"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.Params); err != nil {
			writeBadRequest(w, "params must be a JSON object of numbers")
			return
		}
	}
	if strings.TrimSpace(req.Ticker) == "" || req.Strategy == "" {
		writeBadRequest(w, "ticker and strategy are required")
		return
	}

	SetCORS(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	err := s.engine.Stream(r.Context(), req, func(ev engine.Event) error {
		name := "step"
		if ev.Final {
			name = "complete"
		}
		if err := writeSSE(w, name, ev); err != nil {
			return err
		}
		flusher.Flush()
		if s.met != nil {
			s.met.StreamEventsTotal.Inc()
		}
		return nil
	})
	if err != nil {
		if r.Context().Err() == nil {
			writeSSE(w, "error", errorBody{Error: streamErrorMessage(err)})
			flusher.Flush()
		}
		s.countStream("error")
		return
	}
	s.countStream("ok")
}

func streamErrorMessage(err error) string {
	// EngineError messages are already client-safe; anything else is not.
	if msg := engineMessage(err); msg != "" {
		return msg
	}
	return "strategy execution failed"
}

func writeSSE(w http.ResponseWriter, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

func (s *Server) countStream(outcome string) {
	if s.met != nil {
		s.met.StreamRunsTotal.WithLabelValues(outcome).Inc()
	}
}
