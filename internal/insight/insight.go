// Package insight turns strategy results into short natural-language
// research notes via an LLM backend.
package insight

import (
	"context"
	"encoding/json"
	"fmt"

	"quantdesk/internal/model"
)

const systemPrompt = `You are a senior quantitative analyst at an institutional trading desk.
Generate a concise, professional market analysis based on the strategy execution results provided.
Use precise quantitative language. Reference specific metrics. Avoid colloquial expressions.
Sound like an internal research note from a hedge fund quant team.
Do not use any emojis or icons. Keep the tone clinical and data-driven.
Structure: 1-2 sentence market regime assessment, 1-2 sentence strategy performance summary,
1 sentence risk assessment, 1 sentence actionable conclusion.
Maximum 150 words. No disclaimers in the insight body.`

// Request carries the strategy result to be summarized.
type Request struct {
	Ticker         string        `json:"ticker"`
	Strategy       string        `json:"strategy"`
	Metrics        model.Metrics `json:"metrics"`
	SignalsSummary string        `json:"signals_summary,omitempty"`
}

// Provider produces an analyst note for a result record.
type Provider interface {
	Insight(ctx context.Context, req Request) (string, error)
}

// Prompt renders the user-facing half of the LLM exchange.
func Prompt(req Request) string {
	metrics, err := json.Marshal(req.Metrics)
	if err != nil {
		metrics = []byte("{}")
	}
	return fmt.Sprintf("Ticker: %s\nStrategy: %s\nMetrics: %s\nSignals Summary: %s\n",
		req.Ticker, req.Strategy, metrics, req.SignalsSummary)
}

// SystemPrompt exposes the analyst persona for backends that take the
// system instruction separately.
func SystemPrompt() string { return systemPrompt }
