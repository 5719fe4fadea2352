// Package live streams near-real-time price snapshots to WebSocket
// clients. Each connection gets an independent session: a quote poll
// loop, a buffered send channel drained by a write pump, and a read
// pump that tolerates client pings and honors explicit closes.
package live

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"quantdesk/internal/model"
	"quantdesk/internal/sanitize"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 1024
	sendBuffer     = 8
	quoteTimeout   = 5 * time.Second
)

// QuoteProvider supplies point-in-time price snapshots.
type QuoteProvider interface {
	Quote(ctx context.Context, ticker string) (*model.Quote, error)
}

// PriceUpdate is the data payload of one price_update frame.
type PriceUpdate struct {
	Ticker    string         `json:"ticker"`
	Price     sanitize.Float `json:"price"`
	Change    sanitize.Float `json:"change"`
	ChangePct sanitize.Float `json:"change_pct"`
	Volume    int64          `json:"volume"`
	High      sanitize.Float `json:"high"`
	Low       sanitize.Float `json:"low"`
	Timestamp int64          `json:"timestamp"`
}

type frame struct {
	Type  string       `json:"type,omitempty"`
	Data  *PriceUpdate `json:"data,omitempty"`
	Error string       `json:"error,omitempty"`
}

type clientMessage struct {
	Type string `json:"type"`
}

// Session is one live price stream bound to a single connection.
type Session struct {
	id     string
	ticker string
	conn   *websocket.Conn
	quotes QuoteProvider
	log    *slog.Logger
	tick   time.Duration

	send chan []byte
	done chan struct{} // closed by readPump
	stop chan struct{} // closed by Run; tells writePump to finish
}

// NewSession wraps an already-upgraded connection. tick bounds the quote
// cadence; zero picks one second.
func NewSession(conn *websocket.Conn, ticker string, quotes QuoteProvider, log *slog.Logger, tick time.Duration) *Session {
	if tick <= 0 {
		tick = time.Second
	}
	id := uuid.NewString()
	return &Session{
		id:     id,
		ticker: strings.ToUpper(strings.TrimSpace(ticker)),
		conn:   conn,
		quotes: quotes,
		log:    log.With("session_id", id),
		tick:   tick,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
		stop:   make(chan struct{}),
	}
}

// Run blocks until the client disconnects, the context is canceled or a
// send stalls. It owns the connection and closes it on return.
func (s *Session) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go s.writePump()
	go s.readPump(cancel)

	s.log.Info("live session opened", "ticker", s.ticker)
	ticker := time.NewTicker(s.tick)
	defer func() {
		ticker.Stop()
		close(s.stop)
		s.log.Info("live session closed", "ticker", s.ticker)
	}()

	// First snapshot goes out immediately so the client is not left
	// waiting a full tick.
	for {
		if !s.pushQuote(ctx) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
		}
	}
}

// pushQuote fetches one snapshot and enqueues it. Provider failures are
// forwarded as error frames and the cadence continues; only a stalled
// client ends the session.
func (s *Session) pushQuote(ctx context.Context) bool {
	qctx, cancel := context.WithTimeout(ctx, quoteTimeout)
	q, err := s.quotes.Quote(qctx, s.ticker)
	cancel()

	var f frame
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		s.log.Warn("live quote fetch failed", "ticker", s.ticker, "err", err)
		f = frame{Error: fmt.Sprintf("Failed to fetch data for %s", s.ticker)}
	} else {
		change, changePct := quoteChange(q)
		f = frame{Type: "price_update", Data: &PriceUpdate{
			Ticker:    s.ticker,
			Price:     sanitize.Value(q.Price),
			Change:    sanitize.Value(change),
			ChangePct: sanitize.Value(changePct),
			Volume:    q.Volume,
			High:      sanitize.Value(q.DayHigh),
			Low:       sanitize.Value(q.DayLow),
			Timestamp: q.TS,
		}}
	}

	msg, err := json.Marshal(f)
	if err != nil {
		s.log.Error("live frame marshal failed", "err", err)
		return true
	}
	select {
	case s.send <- msg:
		return true
	default:
		// More than a full buffer uncollected: the client has stalled.
		s.log.Warn("live client stalled, terminating", "ticker", s.ticker)
		return false
	}
}

func quoteChange(q *model.Quote) (change, changePct float64) {
	if q.PreviousClose == 0 {
		return 0, 0
	}
	change = q.Price - q.PreviousClose
	return change, change / q.PreviousClose * 100
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case <-s.stop:
			s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes client messages. `{"type":"ping"}` is answered with
// a pong frame; `{"type":"close"}`, a close frame or any read error ends
// the session.
func (s *Session) readPump(cancel context.CancelFunc) {
	defer func() {
		cancel()
		close(s.done)
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Time{}) // client silence is allowed
	s.conn.SetPongHandler(func(string) error { return nil })

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		switch msg.Type {
		case "ping":
			pong, _ := json.Marshal(frame{Type: "pong"})
			select {
			case s.send <- pong:
			default:
			}
		case "close":
			return
		}
	}
}
