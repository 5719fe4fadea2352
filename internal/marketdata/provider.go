// Package marketdata supplies historical bars and live quotes. The
// upstream source is the Yahoo chart API; a SQLite bar cache and a Redis
// quote cache sit in front of it, and a circuit breaker guards the
// upstream against repeated failures.
package marketdata

import (
	"context"
	"errors"

	"quantdesk/internal/model"
)

// ErrUnknownTicker marks a ticker the upstream cannot resolve. It is
// carried as the cause of a DataUnavailable engine error so transports
// can distinguish a bad symbol from a flaky upstream.
var ErrUnknownTicker = errors.New("unknown ticker")

// Provider serves bar history and quote snapshots. Implementations must
// be safe for concurrent use.
type Provider interface {
	History(ctx context.Context, ticker, period, interval string) ([]model.Bar, error)
	Quote(ctx context.Context, ticker string) (*model.Quote, error)
}
