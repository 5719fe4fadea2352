package marketdata

import (
	"context"
	"log/slog"

	"quantdesk/internal/model"
)

// BarCache stores bar windows keyed by (ticker, period, interval).
// ok distinguishes a fresh hit from a stale or absent entry.
type BarCache interface {
	Get(ctx context.Context, ticker, period, interval string) ([]model.Bar, bool, error)
	Put(ctx context.Context, ticker, period, interval string, bars []model.Bar) error
}

// QuoteCache stores short-lived quote snapshots.
type QuoteCache interface {
	Get(ctx context.Context, ticker string) (*model.Quote, bool, error)
	Put(ctx context.Context, ticker string, quote *model.Quote) error
}

// Service fronts an upstream Provider with optional caches. Cache
// failures degrade to upstream fetches; they never fail a request.
type Service struct {
	upstream Provider
	bars     BarCache
	quotes   QuoteCache
	log      *slog.Logger
}

// NewService composes upstream with caches. Either cache may be nil.
func NewService(upstream Provider, bars BarCache, quotes QuoteCache, log *slog.Logger) *Service {
	return &Service{upstream: upstream, bars: bars, quotes: quotes, log: log}
}

// History serves from the bar cache when fresh, otherwise fetches
// upstream and writes through.
func (s *Service) History(ctx context.Context, ticker, period, interval string) ([]model.Bar, error) {
	if s.bars != nil {
		cached, ok, err := s.bars.Get(ctx, ticker, period, interval)
		if err != nil {
			s.log.Warn("bar cache read failed", "ticker", ticker, "err", err)
		} else if ok {
			return cached, nil
		}
	}

	bars, err := s.upstream.History(ctx, ticker, period, interval)
	if err != nil {
		return nil, err
	}
	if s.bars != nil {
		if err := s.bars.Put(ctx, ticker, period, interval, bars); err != nil {
			s.log.Warn("bar cache write failed", "ticker", ticker, "err", err)
		}
	}
	return bars, nil
}

// Quote serves from the quote cache when present, otherwise fetches
// upstream and stores the snapshot.
func (s *Service) Quote(ctx context.Context, ticker string) (*model.Quote, error) {
	if s.quotes != nil {
		cached, ok, err := s.quotes.Get(ctx, ticker)
		if err != nil {
			s.log.Warn("quote cache read failed", "ticker", ticker, "err", err)
		} else if ok {
			return cached, nil
		}
	}

	q, err := s.upstream.Quote(ctx, ticker)
	if err != nil {
		return nil, err
	}
	if s.quotes != nil {
		if err := s.quotes.Put(ctx, ticker, q); err != nil {
			s.log.Warn("quote cache write failed", "ticker", ticker, "err", err)
		}
	}
	return q, nil
}
