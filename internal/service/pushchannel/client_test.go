package pushchannel

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"SignalFeed/internal/domain/models"
	drepo "SignalFeed/internal/domain/repository"
	applogger "SignalFeed/pkg/logger"
)

type nopMetrics struct{}

func (nopMetrics) RecordSignal(string, string)        {}
func (nopMetrics) RecordDuplicate(string)             {}
func (nopMetrics) RecordArchived(string, string)      {}
func (nopMetrics) RecordError(string)                 {}
func (nopMetrics) RecordLatency(string, float64)      {}
func (nopMetrics) SetConnectionState(drepo.ConnState) {}
func (nopMetrics) RecordSubscribe(int)                {}
func (nopMetrics) SetStoreSize(int)                   {}

func testLogger() *applogger.Logger {
	l, _ := applogger.New(&applogger.Config{Level: "error", Format: "console", Output: "stderr"})
	return l
}

// pushServer is a minimal fake of the upstream websocket endpoint. It records
// inbound frames and can emit newSignal frames.
type pushServer struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu     sync.Mutex
	conn   *websocket.Conn
	frames []map[string]any
}

func newPushServer(t *testing.T) *pushServer {
	t.Helper()
	ps := &pushServer{}
	ps.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := ps.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ps.mu.Lock()
		ps.conn = conn
		ps.mu.Unlock()
		for {
			var f map[string]any
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
			ps.mu.Lock()
			ps.frames = append(ps.frames, f)
			ps.mu.Unlock()
		}
	}))
	t.Cleanup(ps.srv.Close)
	return ps
}

func (ps *pushServer) url() string {
	return "ws" + strings.TrimPrefix(ps.srv.URL, "http")
}

func (ps *pushServer) waitFrames(t *testing.T, n int) []map[string]any {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		ps.mu.Lock()
		if len(ps.frames) >= n {
			out := append([]map[string]any(nil), ps.frames...)
			ps.mu.Unlock()
			return out
		}
		ps.mu.Unlock()
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d frames", n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func (ps *pushServer) send(t *testing.T, frameType string, data any) {
	t.Helper()
	ps.mu.Lock()
	conn := ps.conn
	ps.mu.Unlock()
	if conn == nil {
		t.Fatalf("no server-side connection")
	}
	b, _ := json.Marshal(data)
	if err := conn.WriteJSON(map[string]any{"type": frameType, "data": json.RawMessage(b)}); err != nil {
		t.Fatalf("server send: %v", err)
	}
}

func TestOpenAuthenticatesAndSubscribes(t *testing.T) {
	ps := newPushServer(t)
	c := New(ps.url(), 1, 10*time.Millisecond, time.Minute, nopMetrics{}, testLogger())
	defer c.Close()

	connected := make(chan struct{})
	err := c.Open(context.Background(), "tok-1", drepo.StreamHooks{
		OnConnect: func() { close(connected) },
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	<-connected
	if c.State() != drepo.StateConnected {
		t.Fatalf("state %v after open", c.State())
	}

	if err := c.Subscribe([]string{"BTC", "ETH"}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	frames := ps.waitFrames(t, 2)
	if frames[0]["type"] != "auth" || frames[0]["token"] != "tok-1" {
		t.Fatalf("first frame must authenticate, got %v", frames[0])
	}
	if frames[1]["type"] != "subscribe" {
		t.Fatalf("expected subscribe frame, got %v", frames[1])
	}
}

func TestSignalsAreDeliveredToHook(t *testing.T) {
	ps := newPushServer(t)
	c := New(ps.url(), 1, 10*time.Millisecond, time.Minute, nopMetrics{}, testLogger())
	defer c.Close()

	got := make(chan models.Signal, 1)
	connected := make(chan struct{})
	err := c.Open(context.Background(), "tok", drepo.StreamHooks{
		OnConnect: func() { close(connected) },
		OnSignal:  func(s models.Signal) { got <- s },
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	<-connected

	ps.send(t, "newSignal", map[string]any{
		"id":          "sig-1",
		"assetSymbol": "BTC",
		"type":        "price",
		"strength":    72,
		"timestamp":   "2025-06-01T12:00:00Z",
	})
	// Unknown frame types are ignored, not fatal.
	ps.send(t, "heartbeat", map[string]any{})

	select {
	case s := <-got:
		if s.ID != "sig-1" || s.Type != models.SignalPrice {
			t.Fatalf("unexpected signal %+v", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("signal never reached the hook")
	}
}

func TestOpenWhileOpenIsNoop(t *testing.T) {
	ps := newPushServer(t)
	c := New(ps.url(), 1, 10*time.Millisecond, time.Minute, nopMetrics{}, testLogger())
	defer c.Close()

	connects := 0
	hooks := drepo.StreamHooks{OnConnect: func() { connects++ }}
	if err := c.Open(context.Background(), "tok", hooks); err != nil {
		t.Fatalf("open: %v", err)
	}
	// A second Open while connected must not dial a second socket.
	if err := c.Open(context.Background(), "tok", hooks); err != nil {
		t.Fatalf("re-open: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if connects != 1 {
		t.Fatalf("expected a single connection, OnConnect fired %d times", connects)
	}
}

func TestOpenFailureIsReturnedSynchronously(t *testing.T) {
	c := New("ws://127.0.0.1:1/nope", 1, 10*time.Millisecond, time.Minute, nopMetrics{}, testLogger())

	err := c.Open(context.Background(), "tok", drepo.StreamHooks{})
	if err == nil {
		t.Fatalf("expected connect error")
	}
	var ce *models.ConnectionError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConnectionError, got %T", err)
	}
	if c.State() != drepo.StateErrored {
		t.Fatalf("state %v after failed open", c.State())
	}

	// An errored client accepts a fresh Open.
	ps := newPushServer(t)
	c2 := New("ws://127.0.0.1:1/nope", 1, 10*time.Millisecond, time.Minute, nopMetrics{}, testLogger())
	_ = c2.Open(context.Background(), "tok", drepo.StreamHooks{})
	c2.url = ps.url()
	if err := c2.Open(context.Background(), "tok", drepo.StreamHooks{}); err != nil {
		t.Fatalf("reopen after error: %v", err)
	}
	defer c2.Close()
	if c2.State() != drepo.StateConnected {
		t.Fatalf("state %v after recovery", c2.State())
	}
}

func TestSubscribeWhileDisconnectedFails(t *testing.T) {
	c := New("ws://example.invalid", 1, 10*time.Millisecond, time.Minute, nopMetrics{}, testLogger())
	if err := c.Subscribe([]string{"BTC"}); err == nil {
		t.Fatalf("subscribe without a connection must fail")
	}
}

func TestReopenStopsPreviousSessionLoops(t *testing.T) {
	ps := newPushServer(t)
	c := New(ps.url(), 1, 10*time.Millisecond, time.Minute, nopMetrics{}, testLogger())

	canceled := make(chan struct{})
	c.state.Store(int32(drepo.StateErrored))
	c.cancel = func() { close(canceled) }

	if err := c.Open(context.Background(), "tok", drepo.StreamHooks{}); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer c.Close()

	select {
	case <-canceled:
	default:
		t.Fatalf("previous session context not canceled on reopen")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	ps := newPushServer(t)
	c := New(ps.url(), 1, 10*time.Millisecond, time.Minute, nopMetrics{}, testLogger())
	if err := c.Open(context.Background(), "tok", drepo.StreamHooks{}); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if c.State() != drepo.StateDisconnected {
		t.Fatalf("state %v after close", c.State())
	}
}
