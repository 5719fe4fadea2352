// Package redis caches live quote snapshots. Quotes go stale in
// seconds, so entries carry a short TTL and a miss simply falls
// through to the upstream.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"quantdesk/internal/model"
)

// DefaultQuoteTTL bounds how old a served quote can be.
const DefaultQuoteTTL = 5 * time.Second

// Config configures the quote cache connection.
type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration // zero picks DefaultQuoteTTL
}

// QuoteCache stores quote snapshots under quote:{ticker} keys.
type QuoteCache struct {
	client *goredis.Client
	ttl    time.Duration
	log    *slog.Logger
}

// NewQuoteCache connects and pings the server.
func NewQuoteCache(cfg Config, log *slog.Logger) (*QuoteCache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultQuoteTTL
	}
	log.Info("quote cache connected", "addr", cfg.Addr, "ttl", ttl.String())
	return &QuoteCache{client: client, ttl: ttl, log: log}, nil
}

func quoteKey(ticker string) string { return "quote:" + ticker }

// Get returns the cached quote, with ok reporting a hit.
func (q *QuoteCache) Get(ctx context.Context, ticker string) (*model.Quote, bool, error) {
	data, err := q.client.Get(ctx, quoteKey(ticker)).Result()
	if err == goredis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get quote: %w", err)
	}
	var quote model.Quote
	if err := json.Unmarshal([]byte(data), &quote); err != nil {
		// A corrupt entry is dropped and treated as a miss.
		q.client.Del(ctx, quoteKey(ticker))
		return nil, false, nil
	}
	return &quote, true, nil
}

// Put stores the quote under the configured TTL.
func (q *QuoteCache) Put(ctx context.Context, ticker string, quote *model.Quote) error {
	data, err := json.Marshal(quote)
	if err != nil {
		return fmt.Errorf("marshal quote: %w", err)
	}
	return q.client.Set(ctx, quoteKey(ticker), string(data), q.ttl).Err()
}

// Ping checks connectivity for health reporting.
func (q *QuoteCache) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Client exposes the underlying connection for health probes.
func (q *QuoteCache) Client() *goredis.Client { return q.client }

// Close closes the client.
func (q *QuoteCache) Close() error { return q.client.Close() }
