package fakebackend

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// sessionFrom reads the session id the way the real backend does: body or
// form field first, then query, then header
func sessionFrom(c *gin.Context, bodyID string) string {
	if bodyID != "" {
		return bodyID
	}
	if id := c.PostForm("sessionId"); id != "" {
		return id
	}
	if id := c.Query("sessionId"); id != "" {
		return id
	}
	return c.GetHeader("X-Session-Id")
}

func (b *Backend) handleChat(c *gin.Context) {
	var body struct {
		Message   string `json:"message"`
		SessionID string `json:"sessionId"`
	}
	if c.ContentType() == "application/json" {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON"})
			return
		}
	} else {
		body.Message = c.PostForm("message")
	}

	sessionID := sessionFrom(c, body.SessionID)
	b.record(c, sessionID, body.Message)
	if body.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message is required"})
		return
	}

	b.mu.Lock()
	sess, ok := b.sessions[sessionID]
	if !ok {
		sessionID = b.createSessionLocked()
		sess = b.sessions[sessionID]
	}
	sess.history = append(sess.history, map[string]interface{}{"role": "user", "content": body.Message})
	b.mu.Unlock()

	turn := b.script(sessionID, body.Message)

	b.mu.Lock()
	sess.history = append(sess.history, map[string]interface{}{"role": "assistant", "content": turn.Reply})
	resp := gin.H{
		"reply":      turn.Reply,
		"session_id": sessionID,
		"state":      copyMap(sess.state),
		"history":    append([]map[string]interface{}(nil), sess.history...),
	}
	b.mu.Unlock()

	if turn.Data != nil {
		resp["data"] = turn.Data
	}
	c.JSON(http.StatusOK, resp)
}

func (b *Backend) handleState(c *gin.Context) {
	sessionID := c.Query("sessionId")
	b.record(c, sessionID, "")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sessionId query param required"})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	sess, ok := b.sessions[sessionID]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id": sessionID,
		"state":      copyMap(sess.state),
		"history":    sess.history,
	})
}

func (b *Backend) handleUpdateState(c *gin.Context) {
	var body struct {
		SessionID string                 `json:"sessionId"`
		Updates   map[string]interface{} `json:"updates"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "updates must be an object"})
		return
	}
	sessionID := sessionFrom(c, body.SessionID)
	b.record(c, sessionID, "")

	b.mu.Lock()
	defer b.mu.Unlock()
	sess, ok := b.sessions[sessionID]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	for k, v := range body.Updates {
		sess.state[k] = v
	}
	c.JSON(http.StatusOK, gin.H{"session_id": sessionID, "state": copyMap(sess.state)})
}

func (b *Backend) handleReset(c *gin.Context) {
	var body struct {
		SessionID string `json:"sessionId"`
	}
	_ = c.ShouldBindJSON(&body)
	sessionID := sessionFrom(c, body.SessionID)
	b.record(c, sessionID, "")

	b.mu.Lock()
	delete(b.sessions, sessionID)
	b.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"message": "Session reset successful"})
}

func (b *Backend) handleSummary(c *gin.Context) {
	sessionID := sessionFrom(c, "")
	b.record(c, sessionID, "")

	b.mu.Lock()
	defer b.mu.Unlock()
	sess, ok := b.sessions[sessionID]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"summary": gin.H{
			"session_id":          sessionID,
			"progress_stage":      sess.state["progress_stage"],
			"destination_airport": sess.state["destination_airport"],
			"flight_selected":     sess.state["flight_selection"] != nil,
			"hotel_selected":      sess.state["hotel_selection"] != nil,
			"activities_count":    0,
			"itinerary_defined":   sess.state["itinerary"] != nil,
		},
		"state": copyMap(sess.state),
	})
}

func (b *Backend) handleLocateCity(c *gin.Context) {
	if _, err := c.FormFile("image"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Lipsește fișierul imagine"})
		return
	}
	b.record(c, sessionFrom(c, ""), c.PostForm("hint"))

	b.mu.Lock()
	city := b.city
	b.mu.Unlock()

	if city == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"city":       city.City,
		"country":    city.Country,
		"confidence": city.Confidence,
		"reasoning":  city.Reasoning,
		"fallback":   false,
	}})
}

func (b *Backend) handleWebSocket(c *gin.Context) {
	sessionID := c.Param("session_id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	ws := &wsConn{conn: conn}

	b.mu.Lock()
	b.conns[sessionID] = append(b.conns[sessionID], ws)
	b.mu.Unlock()

	defer func() {
		b.removeConn(sessionID, ws)
		_ = conn.Close()
	}()

	_ = ws.send(gin.H{
		"type":       "connection",
		"status":     "connected",
		"session_id": sessionID,
		"message":    "Connected to travel assistant",
		"timestamp":  now(),
	})

	for {
		var msg struct {
			Message string `json:"message"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		b.streamTurn(ws, sessionID, msg.Message)
	}
}

// streamTurn plays one scripted turn over the stream
func (b *Backend) streamTurn(ws *wsConn, sessionID, message string) {
	if message == "" {
		_ = ws.send(gin.H{"type": "error", "error": "Message is required", "timestamp": now()})
		return
	}
	_ = ws.send(gin.H{"type": "processing_started", "message": "Procesez cererea...", "timestamp": now()})

	turn := b.script(sessionID, message)
	for _, fb := range turn.Feedback {
		frame := gin.H{"type": "feedback", "step": fb.Step, "message": fb.Message, "timestamp": now()}
		if fb.Agent != "" {
			frame["agent"] = fb.Agent
		}
		_ = ws.send(frame)
	}

	complete := gin.H{
		"type":       "message_complete",
		"reply":      turn.Reply,
		"session_id": sessionID,
		"timestamp":  now(),
	}
	if turn.Data != nil {
		complete["data"] = turn.Data
	}
	_ = ws.send(complete)
}

func (b *Backend) removeConn(sessionID string, ws *wsConn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	conns := b.conns[sessionID]
	for i, c := range conns {
		if c == ws {
			b.conns[sessionID] = append(conns[:i:i], conns[i+1:]...)
			return
		}
	}
}

func copyMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
