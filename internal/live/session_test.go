package live

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantdesk/internal/model"
)

type fakeQuotes struct {
	calls atomic.Int64
	fail  atomic.Bool
}

func (f *fakeQuotes) Quote(ctx context.Context, ticker string) (*model.Quote, error) {
	n := f.calls.Add(1)
	if f.fail.Load() {
		return nil, errors.New("upstream down")
	}
	return &model.Quote{
		Ticker: ticker, Price: 100 + float64(n), PreviousClose: 100,
		DayHigh: 110, DayLow: 95, Volume: 1000, TS: time.Now().Unix(),
	}, nil
}

// liveServer upgrades one connection, runs a session on it and reports
// session exit on the returned channel.
func liveServer(t *testing.T, quotes QuoteProvider, tick time.Duration) (*httptest.Server, <-chan struct{}) {
	t.Helper()
	done := make(chan struct{})
	up := websocket.Upgrader{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		require.NoError(t, err)
		NewSession(conn, "AAPL", quotes, log, tick).Run(r.Context())
		close(done)
	}))
	t.Cleanup(srv.Close)
	return srv, done
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var f frame
	require.NoError(t, json.Unmarshal(raw, &f))
	return f
}

func TestSession_PriceUpdateArrives(t *testing.T) {
	srv, _ := liveServer(t, &fakeQuotes{}, 20*time.Millisecond)
	conn := dial(t, srv)

	f := readFrame(t, conn)
	require.Equal(t, "price_update", f.Type)
	require.NotNil(t, f.Data)
	assert.Equal(t, "AAPL", f.Data.Ticker)
	assert.Equal(t, 101.0, float64(f.Data.Price))
	assert.Equal(t, 1.0, float64(f.Data.Change))
	assert.Equal(t, 1.0, float64(f.Data.ChangePct))
	assert.Equal(t, int64(1000), f.Data.Volume)
}

func TestSession_PingDoesNotTerminate(t *testing.T) {
	srv, done := liveServer(t, &fakeQuotes{}, 20*time.Millisecond)
	conn := dial(t, srv)

	readFrame(t, conn)
	require.NoError(t, conn.WriteJSON(clientMessage{Type: "ping"}))

	// The session answers with a pong and keeps streaming updates.
	sawPong, sawUpdate := false, false
	for i := 0; i < 10 && !(sawPong && sawUpdate); i++ {
		f := readFrame(t, conn)
		switch f.Type {
		case "pong":
			sawPong = true
		case "price_update":
			sawUpdate = true
		}
	}
	assert.True(t, sawPong, "ping should be answered")
	assert.True(t, sawUpdate, "updates should continue after ping")

	select {
	case <-done:
		t.Fatal("session terminated by ping")
	default:
	}
}

func TestSession_CloseTerminatesWithinOneTick(t *testing.T) {
	srv, done := liveServer(t, &fakeQuotes{}, 20*time.Millisecond)
	conn := dial(t, srv)

	readFrame(t, conn)
	require.NoError(t, conn.WriteJSON(clientMessage{Type: "close"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not terminate after close message")
	}
}

func TestSession_ClientDisconnectTerminates(t *testing.T) {
	srv, done := liveServer(t, &fakeQuotes{}, 20*time.Millisecond)
	conn := dial(t, srv)

	readFrame(t, conn)
	conn.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not terminate after disconnect")
	}
}

func TestSession_ProviderErrorKeepsCadence(t *testing.T) {
	quotes := &fakeQuotes{}
	quotes.fail.Store(true)
	srv, done := liveServer(t, quotes, 20*time.Millisecond)
	conn := dial(t, srv)

	f := readFrame(t, conn)
	assert.Contains(t, f.Error, "AAPL")

	// Recovery: the next frames carry data again.
	quotes.fail.Store(false)
	var recovered bool
	for i := 0; i < 10 && !recovered; i++ {
		f = readFrame(t, conn)
		recovered = f.Type == "price_update"
	}
	assert.True(t, recovered, "stream should recover after provider errors")

	select {
	case <-done:
		t.Fatal("session terminated by provider error")
	default:
	}
}

func TestQuoteChange(t *testing.T) {
	change, pct := quoteChange(&model.Quote{Price: 105, PreviousClose: 100})
	assert.Equal(t, 5.0, change)
	assert.Equal(t, 5.0, pct)

	change, pct = quoteChange(&model.Quote{Price: 105, PreviousClose: 0})
	assert.Equal(t, 0.0, change)
	assert.Equal(t, 0.0, pct)
}
