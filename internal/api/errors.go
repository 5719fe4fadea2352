package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"quantdesk/internal/marketdata"
	"quantdesk/internal/model"
)

type errorBody struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	SetCORS(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeEngineError maps the engine error taxonomy onto status codes.
// An unresolvable ticker surfaces as 404 rather than 502 so clients
// can tell a bad symbol from a flaky upstream.
func writeEngineError(w http.ResponseWriter, err error) {
	var ee *model.EngineError
	if !errors.As(err, &ee) {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}

	status := http.StatusInternalServerError
	switch ee.Kind {
	case model.KindInvalidParams, model.KindUnknownStrategy:
		status = http.StatusBadRequest
	case model.KindDataUnavailable:
		status = http.StatusBadGateway
		if errors.Is(err, marketdata.ErrUnknownTicker) {
			status = http.StatusNotFound
		}
	case model.KindInternalComputation:
		status = http.StatusInternalServerError
	}

	writeJSON(w, status, errorBody{
		Error:     ee.Message,
		Kind:      string(ee.Kind),
		Retryable: ee.Retryable,
	})
}

// engineMessage returns the client-safe message of an EngineError, or
// an empty string for any other error.
func engineMessage(err error) string {
	var ee *model.EngineError
	if errors.As(err, &ee) {
		return ee.Message
	}
	return ""
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}
