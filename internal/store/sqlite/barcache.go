// Package sqlite persists fetched bar history so repeated analysis runs
// on the same window do not hammer the upstream. Entries age out by
// fetch time; staleness is a cache miss, never an error.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"quantdesk/internal/model"
)

// DefaultTTL is how long a cached window stays fresh.
const DefaultTTL = 15 * time.Minute

// Config configures the bar cache.
type Config struct {
	Path string        // database file, e.g. "data/bars.db"
	TTL  time.Duration // freshness window; zero picks DefaultTTL
}

// Cache is a SQLite-backed bar store keyed by (ticker, period, interval).
type Cache struct {
	db  *sql.DB
	ttl time.Duration
	log *slog.Logger
}

// New opens the database in WAL mode and ensures the schema.
func New(cfg Config, log *slog.Logger) (*Cache, error) {
	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single writer keeps WAL contention out of the picture.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	log.Info("bar cache opened", "path", cfg.Path, "ttl", ttl.String())
	return &Cache{db: db, ttl: ttl, log: log}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS bars (
			ticker   TEXT    NOT NULL,
			period   TEXT    NOT NULL,
			interval TEXT    NOT NULL,
			ts       INTEGER NOT NULL,
			open     REAL    NOT NULL,
			high     REAL    NOT NULL,
			low      REAL    NOT NULL,
			close    REAL    NOT NULL,
			volume   REAL    NOT NULL,
			PRIMARY KEY (ticker, period, interval, ts)
		);

		CREATE TABLE IF NOT EXISTS bar_fetches (
			ticker     TEXT    NOT NULL,
			period     TEXT    NOT NULL,
			interval   TEXT    NOT NULL,
			fetched_at INTEGER NOT NULL,
			PRIMARY KEY (ticker, period, interval)
		);
	`)
	return err
}

// Get returns the cached series for the window, with ok reporting a
// fresh hit. A stale or absent window is (nil, false, nil).
func (c *Cache) Get(ctx context.Context, ticker, period, interval string) ([]model.Bar, bool, error) {
	var fetchedAt sql.NullInt64
	err := c.db.QueryRowContext(ctx,
		`SELECT fetched_at FROM bar_fetches WHERE ticker = ? AND period = ? AND interval = ?`,
		ticker, period, interval,
	).Scan(&fetchedAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("sqlite fetch stamp: %w", err)
	}
	if !fetchedAt.Valid || time.Since(time.Unix(fetchedAt.Int64, 0)) > c.ttl {
		return nil, false, nil
	}

	rows, err := c.db.QueryContext(ctx,
		`SELECT ts, open, high, low, close, volume FROM bars
		 WHERE ticker = ? AND period = ? AND interval = ? ORDER BY ts`,
		ticker, period, interval,
	)
	if err != nil {
		return nil, false, fmt.Errorf("sqlite select bars: %w", err)
	}
	defer rows.Close()

	var bars []model.Bar
	for rows.Next() {
		var b model.Bar
		if err := rows.Scan(&b.TS, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, false, fmt.Errorf("sqlite scan bar: %w", err)
		}
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("sqlite iterate bars: %w", err)
	}
	if len(bars) == 0 {
		return nil, false, nil
	}
	return bars, true, nil
}

// Put replaces the stored window and stamps it freshly fetched. The
// swap and the stamp commit in one transaction.
func (c *Cache) Put(ctx context.Context, ticker, period, interval string, bars []model.Bar) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM bars WHERE ticker = ? AND period = ? AND interval = ?`,
		ticker, period, interval,
	); err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite clear window: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO bars (ticker, period, interval, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite prepare: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx,
			ticker, period, interval, b.TS, b.Open, b.High, b.Low, b.Close, b.Volume,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite insert bar: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO bar_fetches (ticker, period, interval, fetched_at)
		VALUES (?, ?, ?, ?)
	`, ticker, period, interval, time.Now().Unix()); err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite stamp fetch: %w", err)
	}

	return tx.Commit()
}

// DB exposes the handle for health checks.
func (c *Cache) DB() *sql.DB { return c.db }

// Close closes the database.
func (c *Cache) Close() error { return c.db.Close() }
