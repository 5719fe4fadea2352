package marketdata

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"quantdesk/internal/model"
)

// ErrUpstreamOpen is returned while the breaker rejects calls.
var ErrUpstreamOpen = errors.New("market data upstream circuit open")

// BreakerState is the circuit position.
type BreakerState int

const (
	BreakerClosed   BreakerState = iota // requests pass through
	BreakerOpen                         // requests rejected immediately
	BreakerHalfOpen                     // one probe allowed through
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker guards an upstream Provider. After maxFailures consecutive
// failures it opens and rejects calls for resetTimeout, then allows one
// probe. A successful probe closes the circuit; a failed one reopens it.
//
// Only upstream failures trip the breaker: a canceled context or an
// unknown ticker is the caller's problem, not the upstream's.
type Breaker struct {
	upstream Provider
	log      *slog.Logger

	mu           sync.Mutex
	state        BreakerState
	failures     int
	maxFailures  int
	resetTimeout time.Duration
	lastFailure  time.Time
}

// NewBreaker wraps upstream. Non-positive arguments fall back to
// 5 failures and a 30 second reset window.
func NewBreaker(upstream Provider, maxFailures int, resetTimeout time.Duration, log *slog.Logger) *Breaker {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	if resetTimeout <= 0 {
		resetTimeout = 30 * time.Second
	}
	return &Breaker{
		upstream:     upstream,
		log:          log,
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
	}
}

// History passes through to the upstream under breaker control.
func (b *Breaker) History(ctx context.Context, ticker, period, interval string) ([]model.Bar, error) {
	var bars []model.Bar
	err := b.execute(ctx, func() error {
		var err error
		bars, err = b.upstream.History(ctx, ticker, period, interval)
		return err
	})
	return bars, err
}

// Quote passes through to the upstream under breaker control.
func (b *Breaker) Quote(ctx context.Context, ticker string) (*model.Quote, error) {
	var q *model.Quote
	err := b.execute(ctx, func() error {
		var err error
		q, err = b.upstream.Quote(ctx, ticker)
		return err
	})
	return q, err
}

// State reports the current circuit position.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) execute(ctx context.Context, fn func() error) error {
	b.mu.Lock()
	if b.state == BreakerOpen {
		if time.Since(b.lastFailure) > b.resetTimeout {
			b.transition(BreakerHalfOpen)
		} else {
			b.mu.Unlock()
			return model.ErrDataUnavailable("market data upstream unavailable", ErrUpstreamOpen)
		}
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil && b.countable(ctx, err) {
		b.failures++
		b.lastFailure = time.Now()
		if b.state == BreakerHalfOpen || b.failures >= b.maxFailures {
			b.transition(BreakerOpen)
		}
		return err
	}
	if err != nil {
		return err
	}
	if b.state == BreakerHalfOpen {
		b.transition(BreakerClosed)
	}
	b.failures = 0
	return nil
}

// countable reports whether err should count against the upstream.
func (b *Breaker) countable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	return !errors.Is(err, ErrUnknownTicker)
}

func (b *Breaker) transition(to BreakerState) {
	from := b.state
	b.state = to
	if to == BreakerClosed {
		b.failures = 0
	}
	if b.log != nil {
		b.log.Warn("market data breaker state change",
			"from", from.String(), "to", to.String(), "failures", b.failures)
	}
}
