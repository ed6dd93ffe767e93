// Package progress folds the live event stream of a chat session into a
// renderable view: connection status, the message log, the active agent and
// pipeline step, and the last error.
package progress

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/TravelAgent/client/internal/infrastructure/logging"
	"github.com/GriffinCanCode/TravelAgent/client/internal/shared/id"
	"github.com/GriffinCanCode/TravelAgent/client/internal/stream"
	"github.com/GriffinCanCode/TravelAgent/client/internal/trip"
)

// User-facing error texts
const (
	ErrTextConnectFailed = "Failed to connect to server"
	ErrTextConnection    = "Connection error"
	ErrTextNotConnected  = "Not connected to server"
)

// status of a connection event once the channel is open
const statusConnected = "connected"

// Role identifies who produced a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleFeedback  Role = "feedback"
)

// Message is one entry of the session log
type Message struct {
	ID        id.MessageID
	Role      Role
	Content   string
	Timestamp time.Time
	Agent     string
	Step      stream.Step
}

// State is a point-in-time copy of the tracker
type State struct {
	Connected    bool
	Messages     []Message
	CurrentAgent string
	CurrentStep  stream.Step
	Processing   bool
	Error        string
}

// Conn is the part of stream.Client the tracker drives
type Conn interface {
	Connect(ctx context.Context) error
	SendMessage(text string) error
	OnMessage(fn func(stream.Event)) func()
	OnError(fn func(error)) func()
	OnClose(fn func(stream.CloseEvent)) func()
	Disconnect()
	IsConnected() bool
}

// DataSink receives structured trip data delivered over the stream
type DataSink interface {
	IngestBackendData(data *trip.Data)
}

// Tracker maintains the progress view of one session
type Tracker struct {
	conn   Conn
	sink   DataSink
	logger *zap.Logger
	now    func() time.Time

	mu          sync.Mutex
	messages    []Message   // Protected by mu
	agent       string      // Protected by mu
	step        stream.Step // Protected by mu
	processing  bool        // Protected by mu
	errText     string      // Protected by mu
	unsubscribe []func()    // Protected by mu

	subscribers []subscriber
	subMu       sync.Mutex
	nextSub     int
}

type subscriber struct {
	id int
	fn func(State)
}

// NewTracker creates a tracker over conn. Nothing happens until Start.
func NewTracker(conn Conn, logger *zap.Logger) *Tracker {
	return &Tracker{
		conn:   conn,
		logger: logging.OrNop(logger),
		now:    time.Now,
	}
}

// WithSink forwards message_complete data to sink
func (t *Tracker) WithSink(sink DataSink) *Tracker {
	t.sink = sink
	return t
}

// Start registers the stream listeners and opens the connection
func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.unsubscribe == nil {
		t.unsubscribe = []func(){
			t.conn.OnMessage(t.handleEvent),
			t.conn.OnError(t.handleError),
			t.conn.OnClose(t.handleClose),
		}
	}
	t.mu.Unlock()

	if err := t.conn.Connect(ctx); err != nil {
		t.logger.Error("Failed to connect", zap.Error(err))
		t.update(func() { t.errText = ErrTextConnectFailed })
		return err
	}
	t.update(func() { t.errText = "" })
	return nil
}

// SendMessage appends the user's message and transmits it. Without a
// connection nothing is appended and the error state is set.
func (t *Tracker) SendMessage(text string) error {
	if !t.conn.IsConnected() {
		t.update(func() { t.errText = ErrTextNotConnected })
		return stream.ErrNotConnected
	}

	t.update(func() {
		t.messages = append(t.messages, Message{
			ID:        id.NewMessageID(),
			Role:      RoleUser,
			Content:   text,
			Timestamp: t.now(),
		})
	})

	if err := t.conn.SendMessage(text); err != nil {
		t.logger.Error("Failed to send message", zap.Error(err))
		t.update(func() { t.errText = ErrTextNotConnected })
		return err
	}
	return nil
}

// ClearMessages empties the log and resets agent and step
func (t *Tracker) ClearMessages() {
	t.update(func() {
		t.messages = nil
		t.agent = ""
		t.step = ""
	})
}

// Snapshot returns a copy of the current state
func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// Subscribe registers fn to run after every change. fn runs without the
// tracker lock held, on the goroutine that caused the change.
func (t *Tracker) Subscribe(fn func(State)) (unsubscribe func()) {
	t.subMu.Lock()
	defer t.subMu.Unlock()

	t.nextSub++
	subID := t.nextSub
	t.subscribers = append(t.subscribers, subscriber{id: subID, fn: fn})

	return func() {
		t.subMu.Lock()
		defer t.subMu.Unlock()
		for i, s := range t.subscribers {
			if s.id == subID {
				t.subscribers = append(t.subscribers[:i:i], t.subscribers[i+1:]...)
				return
			}
		}
	}
}

// Close removes the stream listeners and disconnects
func (t *Tracker) Close() {
	t.mu.Lock()
	unsubs := t.unsubscribe
	t.unsubscribe = nil
	t.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	t.conn.Disconnect()
}

func (t *Tracker) handleEvent(ev stream.Event) {
	switch e := ev.(type) {
	case *stream.ConnectionEvent:
		t.logger.Info("Connection event",
			zap.String("status", e.Status),
			zap.String("message", e.Message))
		if e.Status == statusConnected {
			// the channel is back; connect errors no longer apply
			t.update(func() { t.errText = "" })
		} else {
			t.notify()
		}

	case *stream.ProcessingStartedEvent:
		t.update(func() {
			t.processing = true
			t.step = stream.StepUnderstandingRequest
			t.errText = ""
		})

	case *stream.FeedbackEvent:
		if !e.Step.Known() {
			t.logger.Debug("Unknown feedback step", zap.String("step", string(e.Step)))
		}
		t.update(func() {
			if e.Agent != "" {
				t.agent = e.Agent
			}
			t.step = e.Step
			t.messages = append(t.messages, Message{
				ID:        id.NewMessageID(),
				Role:      RoleFeedback,
				Content:   e.Message,
				Timestamp: t.timestamp(e.Timestamp),
				Agent:     e.Agent,
				Step:      e.Step,
			})
		})

	case *stream.MessageCompleteEvent:
		t.update(func() {
			t.processing = false
			t.agent = ""
			t.step = stream.StepCompleted
			if e.Reply == "" {
				return
			}
			t.messages = append(t.messages, Message{
				ID:        id.NewMessageID(),
				Role:      RoleAssistant,
				Content:   e.Reply,
				Timestamp: t.timestamp(e.Timestamp),
			})
		})
		if t.sink != nil && !e.Data.Empty() {
			t.sink.IngestBackendData(e.Data)
		}

	case *stream.ErrorEvent:
		t.logger.Warn("Backend error", zap.String("error", e.Error), zap.String("details", e.Details))
		t.update(func() {
			t.processing = false
			t.agent = ""
			t.errText = e.Error
		})
	}
}

func (t *Tracker) handleError(err error) {
	t.logger.Warn("Stream error", zap.Error(err))
	t.update(func() { t.errText = ErrTextConnection })
}

func (t *Tracker) handleClose(ev stream.CloseEvent) {
	t.logger.Info("Stream closed", zap.Int("code", ev.Code), zap.Bool("intentional", ev.Intentional))
	t.notify()
}

// Backend timestamps are ISO 8601, with or without a zone
var timestampLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999"}

// timestamp prefers the backend's timestamp over the local clock
func (t *Tracker) timestamp(raw string) time.Time {
	if raw == "" {
		return t.now()
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts
		}
	}
	return t.now()
}

func (t *Tracker) update(fn func()) {
	t.mu.Lock()
	fn()
	t.mu.Unlock()
	t.notify()
}

func (t *Tracker) notify() {
	t.subMu.Lock()
	subs := make([]subscriber, len(t.subscribers))
	copy(subs, t.subscribers)
	t.subMu.Unlock()

	if len(subs) == 0 {
		return
	}
	state := t.Snapshot()
	for _, s := range subs {
		s.fn(state)
	}
}

func (t *Tracker) snapshotLocked() State {
	messages := make([]Message, len(t.messages))
	copy(messages, t.messages)
	return State{
		Connected:    t.conn.IsConnected(),
		Messages:     messages,
		CurrentAgent: t.agent,
		CurrentStep:  t.step,
		Processing:   t.processing,
		Error:        t.errText,
	}
}
