package pushchannel

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"SignalFeed/internal/domain/models"
	drepo "SignalFeed/internal/domain/repository"
	applogger "SignalFeed/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait    = 5 * time.Second
	pongWait     = 60 * time.Second
	defaultPing  = 30 * time.Second
	defaultDelay = 2 * time.Second
)

// Client owns the lifecycle of the one push channel connection per session.
// It is an explicit state machine (disconnected -> connecting -> connected ->
// errored) with transition guards, so a second Open while a connection is up
// or being established is a no-op rather than a duplicate socket.
//
// The connection carries no subscription memory: after every successful
// (re)connect the OnConnect hook fires and the subscription tracker replays
// the current scope.
type Client struct {
	url          string
	maxAttempts  int
	initialDelay time.Duration
	pingInterval time.Duration
	metrics      drepo.Metrics
	log          *applogger.Logger

	state atomic.Int32

	mu     sync.Mutex // guards conn, hooks, token, cancel
	wmu    sync.Mutex // serializes websocket writes
	conn   *websocket.Conn
	hooks  drepo.StreamHooks
	token  string
	cancel context.CancelFunc
}

// New creates a push channel client. attempts and delay bound the automatic
// reconnect policy; zero values fall back to 5 attempts / 2s.
func New(url string, attempts int, delay, ping time.Duration, metrics drepo.Metrics, log *applogger.Logger) *Client {
	if attempts <= 0 {
		attempts = 5
	}
	if delay <= 0 {
		delay = defaultDelay
	}
	if ping <= 0 {
		ping = defaultPing
	}
	return &Client{
		url:          url,
		maxAttempts:  attempts,
		initialDelay: delay,
		pingInterval: ping,
		metrics:      metrics,
		log:          log,
	}
}

// State returns the current lifecycle state.
func (c *Client) State() drepo.ConnState {
	return drepo.ConnState(c.state.Load())
}

func (c *Client) setState(s drepo.ConnState) {
	c.state.Store(int32(s))
	c.metrics.SetConnectionState(s)
}

// Open establishes the connection, authenticates, and starts the read and
// ping loops. If a connection is already open or being established it
// no-ops. A dial failure transitions to errored and is returned to the
// caller rather than thrown asynchronously, so the caller decides on retry.
func (c *Client) Open(ctx context.Context, token string, hooks drepo.StreamHooks) error {
	if !c.state.CompareAndSwap(int32(drepo.StateDisconnected), int32(drepo.StateConnecting)) &&
		!c.state.CompareAndSwap(int32(drepo.StateErrored), int32(drepo.StateConnecting)) {
		return nil // already connecting or connected
	}
	c.metrics.SetConnectionState(drepo.StateConnecting)

	c.mu.Lock()
	c.token = token
	c.hooks = hooks
	c.mu.Unlock()

	conn, err := c.dial(ctx)
	if err != nil {
		c.setState(drepo.StateErrored)
		c.metrics.RecordError("connect")
		return &models.ConnectionError{Err: err}
	}

	loopCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	// A prior errored session may still have its ping loop and dead
	// socket around. Stop them before this session takes over.
	if c.cancel != nil {
		c.cancel()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.conn = conn
	c.cancel = cancel
	c.mu.Unlock()
	c.setState(drepo.StateConnected)
	c.log.Info("push channel connected", applogger.String("url", c.url))

	go c.pingLoop(loopCtx)
	go c.readLoop(loopCtx, conn)

	if hooks.OnConnect != nil {
		hooks.OnConnect()
	}
	return nil
}

// dial opens the socket and performs the auth handshake.
func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.url, err)
	}

	c.mu.Lock()
	token := c.token
	c.mu.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(map[string]any{"type": "auth", "token": token}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("auth handshake: %w", err)
	}
	_ = conn.SetWriteDeadline(time.Time{})

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	return conn, nil
}

// Subscribe replaces the server-side watched set with the given symbols.
func (c *Client) Subscribe(symbols []string) error {
	return c.writeJSON(map[string]any{"type": "subscribe", "assets": symbols})
}

// Unsubscribe clears the server-side watched set.
func (c *Client) Unsubscribe() error {
	return c.writeJSON(map[string]any{"type": "unsubscribe"})
}

func (c *Client) writeJSON(v any) error {
	if c.State() != drepo.StateConnected {
		return fmt.Errorf("push channel not connected")
	}
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("push channel conn nil")
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, b, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || c.State() == drepo.StateDisconnected {
				return // deliberate close
			}
			c.metrics.RecordError("stream_read")
			if next := c.reconnect(ctx); next != nil {
				conn = next
				continue
			}
			return // exhausted; state errored, caller notified
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var f frame
		if err := json.Unmarshal(b, &f); err != nil {
			continue // ignore non-JSON frames
		}
		if f.Type != "newSignal" {
			continue
		}
		var sig models.Signal
		if err := json.Unmarshal(f.Data, &sig); err != nil {
			c.metrics.RecordError("signal_decode")
			continue
		}

		c.mu.Lock()
		onSignal := c.hooks.OnSignal
		c.mu.Unlock()
		if onSignal != nil {
			onSignal(sig)
		}
	}
}

// reconnect retries the dial with increasing delay, up to the bounded attempt
// count. Returns the new connection, or nil once attempts are exhausted, in
// which case the state is errored and a manual Open is required.
func (c *Client) reconnect(ctx context.Context) *websocket.Conn {
	c.setState(drepo.StateConnecting)

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		delay := c.initialDelay * time.Duration(attempt)
		select {
		case <-ctx.Done():
			c.setState(drepo.StateDisconnected)
			return nil
		case <-time.After(delay):
		}

		conn, err := c.dial(ctx)
		if err != nil {
			c.metrics.RecordError("reconnect")
			c.log.Warn("push channel reconnect failed",
				applogger.Int("attempt", attempt), applogger.Error(err))
			continue
		}

		c.mu.Lock()
		old := c.conn
		c.conn = conn
		hooks := c.hooks
		c.mu.Unlock()
		if old != nil {
			_ = old.Close()
		}
		c.setState(drepo.StateConnected)
		c.log.Info("push channel reconnected", applogger.Int("attempt", attempt))
		if hooks.OnConnect != nil {
			hooks.OnConnect()
		}
		return conn
	}

	c.setState(drepo.StateErrored)
	c.mu.Lock()
	onError := c.hooks.OnError
	c.mu.Unlock()
	if onError != nil {
		onError(&models.ConnectionError{
			Attempt: c.maxAttempts,
			Err:     fmt.Errorf("reconnect attempts exhausted"),
		})
	}
	return nil
}

func (c *Client) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			conn := c.conn
			c.mu.Unlock()
			if conn == nil || c.State() != drepo.StateConnected {
				continue
			}
			c.wmu.Lock()
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.PingMessage, nil)
			c.wmu.Unlock()
		}
	}
}

// Close tears the connection down. Idempotent.
func (c *Client) Close() error {
	c.setState(drepo.StateDisconnected)

	c.mu.Lock()
	conn := c.conn
	cancel := c.cancel
	c.conn = nil
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		return conn.Close()
	}
	return nil
}

var _ drepo.SignalStream = (*Client)(nil)
