// Package fakebackend is an in-process stand-in for the travel chat backend,
// serving the HTTP chat routes and the per-session WebSocket channel.
package fakebackend

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/GriffinCanCode/TravelAgent/client/internal/trip"
)

// Turn is the scripted answer to one user message
type Turn struct {
	Reply    string
	Data     *trip.Data
	Feedback []Feedback
}

// Feedback is one progress frame sent before the reply on the stream
type Feedback struct {
	Step    string
	Message string
	Agent   string
}

// City is the scripted answer to locate_city; nil means "no data"
type City struct {
	City       string
	Country    string
	Confidence float64
	Reasoning  string
}

// Script decides the turn for a message
type Script func(sessionID, message string) Turn

type sessionData struct {
	state   map[string]interface{}
	history []map[string]interface{}
}

// Backend is a running fake server
type Backend struct {
	server *httptest.Server
	script Script

	mu       sync.Mutex
	sessions map[string]*sessionData
	conns    map[string][]*wsConn
	city     *City
	requests []Request
}

// Request records the chat-relevant parts of one HTTP call
type Request struct {
	Method    string
	Path      string
	SessionID string
	Message   string
}

type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) send(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *wsConn) sendRaw(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// New starts a backend answering with script (echo when nil)
func New(script Script) *Backend {
	if script == nil {
		script = Echo
	}
	gin.SetMode(gin.TestMode)

	b := &Backend{
		script:   script,
		sessions: make(map[string]*sessionData),
		conns:    make(map[string][]*wsConn),
	}

	router := gin.New()
	router.RedirectTrailingSlash = false
	router.POST("/chat/", b.handleChat)
	router.GET("/chat/", b.handleState)
	router.POST("/chat/state/", b.handleUpdateState)
	router.POST("/chat/reset/", b.handleReset)
	router.GET("/chat/summary/", b.handleSummary)
	router.POST("/chat/locate_city/", b.handleLocateCity)
	router.GET("/ws/chat/:session_id/", b.handleWebSocket)

	b.server = httptest.NewServer(router)
	return b
}

// Echo replies with the message itself
func Echo(_, message string) Turn {
	return Turn{Reply: "Echo: " + message}
}

// URL is the HTTP base URL
func (b *Backend) URL() string {
	return b.server.URL
}

// WebSocketURL is the ws:// base URL
func (b *Backend) WebSocketURL() string {
	return "ws" + strings.TrimPrefix(b.server.URL, "http")
}

// Close stops the server and drops every connection
func (b *Backend) Close() {
	b.DropConnections()
	b.server.Close()
}

// SetCity scripts the next locate_city answers
func (b *Backend) SetCity(city *City) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.city = city
}

// CreateSession registers a session and returns its id
func (b *Backend) CreateSession() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.createSessionLocked()
}

// Requests returns every recorded HTTP call
func (b *Backend) Requests() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Request(nil), b.requests...)
}

// SendRaw writes frame to every stream of the session
func (b *Backend) SendRaw(sessionID string, frame []byte) {
	for _, c := range b.streams(sessionID) {
		_ = c.sendRaw(frame)
	}
}

// DropConnections closes every stream without a close handshake
func (b *Backend) DropConnections() {
	b.mu.Lock()
	all := b.conns
	b.conns = make(map[string][]*wsConn)
	b.mu.Unlock()

	for _, conns := range all {
		for _, c := range conns {
			_ = c.conn.Close()
		}
	}
}

// Connections counts open streams of the session
func (b *Backend) Connections(sessionID string) int {
	return len(b.streams(sessionID))
}

func (b *Backend) streams(sessionID string) []*wsConn {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*wsConn(nil), b.conns[sessionID]...)
}

func (b *Backend) createSessionLocked() string {
	id := uuid.NewString()
	b.sessions[id] = &sessionData{state: map[string]interface{}{"progress_stage": "start"}}
	return id
}

func (b *Backend) record(c *gin.Context, sessionID, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, Request{
		Method:    c.Request.Method,
		Path:      c.Request.URL.Path,
		SessionID: sessionID,
		Message:   message,
	})
}
