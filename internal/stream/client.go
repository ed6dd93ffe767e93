package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/TravelAgent/client/internal/infrastructure/logging"
	"github.com/GriffinCanCode/TravelAgent/client/internal/infrastructure/monitoring"
)

var (
	ErrNotConnected = errors.New("websocket is not connected")
	ErrNoSession    = errors.New("session id required")
	ErrClosed       = errors.New("websocket client closed")
)

const (
	DefaultMaxReconnectAttempts = 5
	DefaultReconnectDelay       = time.Second
	DefaultHandshakeTimeout     = 10 * time.Second

	maxFrameSize = 1 << 20
)

// ConnState is the connection state of a Client
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// CloseEvent describes the end of one connection
type CloseEvent struct {
	Code        int
	Reason      string
	Intentional bool
	Err         error
}

// Config configures a streaming session client
type Config struct {
	// BaseURL is the ws:// or wss:// origin, e.g. ws://localhost:8000
	BaseURL   string
	SessionID string

	MaxReconnectAttempts int
	ReconnectDelay       time.Duration
	HandshakeTimeout     time.Duration
	Header               http.Header
}

// wsConn is the subset of *websocket.Conn the client uses
type wsConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type dialFunc func(ctx context.Context, target string) (wsConn, error)

// afterFunc schedules f after d and returns a stop func
type afterFunc func(d time.Duration, f func()) (stop func() bool)

// link is one physical connection
type link struct {
	conn         wsConn
	writeMu      sync.Mutex
	closedByUser atomic.Bool
}

// Client owns the streaming channel of one chat session.
//
// Inbound frames are read by a single goroutine per connection and
// dispatched to listeners in arrival order on that goroutine.
type Client struct {
	target      string
	maxAttempts int
	baseDelay   time.Duration
	logger      *zap.Logger
	metrics     *monitoring.Metrics

	dial  dialFunc
	after afterFunc

	mu        sync.Mutex
	state     ConnState   // Protected by mu
	current   *link       // Protected by mu
	closing   bool        // Protected by mu
	attempts  int         // Protected by mu
	stopTimer func() bool // Protected by mu

	onMessage listeners[Event]
	onError   listeners[error]
	onClose   listeners[CloseEvent]
}

// NewClient creates a disconnected client for one session
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.SessionID == "" {
		return nil, ErrNoSession
	}
	target, err := ChatURL(cfg.BaseURL, cfg.SessionID)
	if err != nil {
		return nil, err
	}

	if cfg.MaxReconnectAttempts < 0 {
		cfg.MaxReconnectAttempts = 0
	} else if cfg.MaxReconnectAttempts == 0 {
		cfg.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}

	c := &Client{
		target:      target,
		maxAttempts: cfg.MaxReconnectAttempts,
		baseDelay:   cfg.ReconnectDelay,
		logger:      logging.OrNop(logger).With(zap.String("session_id", cfg.SessionID)),
		after: func(d time.Duration, f func()) func() bool {
			return time.AfterFunc(d, f).Stop
		},
	}
	c.dial = gorillaDialer(cfg.HandshakeTimeout, cfg.Header)
	return c, nil
}

// WithMetrics adds stream metrics
func (c *Client) WithMetrics(metrics *monitoring.Metrics) *Client {
	c.metrics = metrics
	return c
}

// ChatURL builds the per-session channel URL: {base}/ws/chat/{sessionId}/
func ChatURL(base, sessionID string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid websocket url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("invalid websocket url scheme %q", u.Scheme)
	}
	return u.String() + "/ws/chat/" + url.PathEscape(sessionID) + "/", nil
}

func gorillaDialer(timeout time.Duration, header http.Header) dialFunc {
	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: timeout,
	}
	return func(ctx context.Context, target string) (wsConn, error) {
		conn, _, err := dialer.DialContext(ctx, target, header)
		if err != nil {
			return nil, err
		}
		conn.SetReadLimit(maxFrameSize)
		return conn, nil
	}
}

// URL returns the channel URL
func (c *Client) URL() string {
	return c.target
}

// Connect opens the channel. It returns once the socket is open, or the
// dial error. A failed dial counts as an unexpected close, so automatic
// reconnects are scheduled as for a dropped connection. Calling Connect
// while a dial is in flight or the channel is open is a no-op.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	c.closing = false
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return nil
	}
	c.cancelTimerLocked()
	c.state = StateConnecting
	c.mu.Unlock()

	return c.open(ctx)
}

// SendMessage transmits {"message": text}. Without an open channel it
// returns ErrNotConnected and sends nothing.
func (c *Client) SendMessage(text string) error {
	c.mu.Lock()
	l := c.current
	connected := c.state == StateConnected
	c.mu.Unlock()

	if !connected || l == nil {
		c.logger.Error("WebSocket is not connected")
		return ErrNotConnected
	}

	payload, err := encodeOutbound(text)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	if err := l.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	c.metrics.RecordSent()
	c.logger.Debug("Message sent", zap.Int("bytes", len(payload)))
	return nil
}

// OnMessage registers a listener for decoded inbound events
func (c *Client) OnMessage(fn func(Event)) (unsubscribe func()) {
	return c.onMessage.add(fn)
}

// OnError registers a listener for dial and transport errors
func (c *Client) OnError(fn func(error)) (unsubscribe func()) {
	return c.onError.add(fn)
}

// OnClose registers a listener for connection closes, intentional or not
func (c *Client) OnClose(fn func(CloseEvent)) (unsubscribe func()) {
	return c.onClose.add(fn)
}

// Disconnect closes the channel and suppresses any pending reconnect
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.closing = true
	c.cancelTimerLocked()
	l := c.current
	c.current = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	if l == nil {
		return
	}
	l.closedByUser.Store(true)

	l.writeMu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = l.conn.WriteMessage(websocket.CloseMessage, msg)
	l.writeMu.Unlock()
	_ = l.conn.Close()

	c.metrics.SetStreamConnected(false)
	c.logger.Info("WebSocket disconnected")
}

// IsConnected reports whether the channel is open
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

// State returns the current connection state
func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// open dials once. The caller has already moved the state to
// StateConnecting, which keeps a second dial from starting.
func (c *Client) open(ctx context.Context) error {
	c.logger.Info("Connecting to WebSocket", zap.String("url", c.target))
	conn, err := c.dial(ctx, c.target)
	if err != nil {
		c.logger.Error("WebSocket dial failed", zap.Error(err))
		c.onError.emit(err)
		c.handleClose(nil, CloseEvent{Code: websocket.CloseAbnormalClosure, Err: err})
		return fmt.Errorf("connect %s: %w", c.target, err)
	}

	l := &link{conn: conn}

	c.mu.Lock()
	if c.closing {
		// Disconnect raced with the dial
		c.mu.Unlock()
		_ = conn.Close()
		return ErrClosed
	}
	if c.current != nil {
		// a dial started before a Disconnect/Connect cycle won the slot
		c.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	c.current = l
	c.state = StateConnected
	c.attempts = 0
	c.mu.Unlock()

	c.metrics.SetStreamConnected(true)
	c.logger.Info("WebSocket connected")

	go c.readLoop(l)
	return nil
}

func (c *Client) readLoop(l *link) {
	for {
		_, frame, err := l.conn.ReadMessage()
		if err != nil {
			c.handleClose(l, closeEventFrom(err, l.closedByUser.Load()))
			return
		}

		ev, err := Decode(frame)
		if err != nil {
			reason := ReasonInvalidJSON
			var de *DecodeError
			if errors.As(err, &de) {
				reason = de.Reason
			}
			c.metrics.RecordDroppedFrame(reason)
			c.logger.Warn("Dropping malformed frame", zap.String("reason", reason), zap.Error(err))
			continue
		}

		c.metrics.RecordStreamEvent(string(ev.Type()))
		c.logger.Debug("WebSocket message", zap.String("type", string(ev.Type())))
		c.onMessage.emit(ev)
	}
}

// handleClose runs when a connection ends or a dial fails (l == nil).
// Close listeners fire unless an unexpected close belongs to a superseded
// connection; a reconnect is scheduled only for an unexpected close of the
// current connection while attempts remain.
func (c *Client) handleClose(l *link, ev CloseEvent) {
	c.mu.Lock()
	// a failed dial (l == nil) is stale once another connection is open
	stale := c.current != l
	if !stale {
		c.current = nil
		c.state = StateDisconnected
	}
	c.mu.Unlock()

	if stale && !ev.Intentional {
		return
	}
	if !stale {
		c.metrics.SetStreamConnected(false)
	}

	c.logger.Info("WebSocket closed",
		zap.Int("code", ev.Code),
		zap.String("reason", ev.Reason),
		zap.Bool("intentional", ev.Intentional))
	c.onClose.emit(ev)

	if ev.Intentional {
		return
	}
	c.scheduleReconnect()
}

func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closing {
		return
	}
	if c.attempts >= c.maxAttempts {
		c.logger.Warn("Giving up reconnecting", zap.Int("attempts", c.attempts))
		return
	}

	c.attempts++
	attempt := c.attempts
	delay := time.Duration(attempt) * c.baseDelay

	c.logger.Info("Reconnecting",
		zap.Int("attempt", attempt),
		zap.Int("max_attempts", c.maxAttempts),
		zap.Duration("delay", delay))

	c.stopTimer = c.after(delay, func() {
		c.mu.Lock()
		c.stopTimer = nil
		if c.closing || c.state != StateDisconnected {
			c.mu.Unlock()
			return
		}
		c.state = StateConnecting
		c.mu.Unlock()

		c.metrics.RecordReconnect()
		ctx, cancel := context.WithTimeout(context.Background(), DefaultHandshakeTimeout)
		defer cancel()
		_ = c.open(ctx)
	})
}

func (c *Client) cancelTimerLocked() {
	if c.stopTimer != nil {
		c.stopTimer()
		c.stopTimer = nil
	}
}

func closeEventFrom(err error, intentional bool) CloseEvent {
	ev := CloseEvent{Code: websocket.CloseAbnormalClosure, Intentional: intentional, Err: err}
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		ev.Code = ce.Code
		ev.Reason = ce.Text
	}
	return ev
}
