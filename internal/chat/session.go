package chat

import (
	"context"
	"sync"
)

// Sender is the part of Client the Session drives
type Sender interface {
	Send(ctx context.Context, payload Payload) (*Response, error)
	LocateCity(ctx context.Context, image []byte, filename, hint string) (*CityAnalysis, error)
}

// SessionView is the UI state of a Session
type SessionView struct {
	Loading      bool
	ImageLoading bool
	Reply        string
	Error        string
}

// Session turns Client errors into UI state. Calls never return an error;
// a failure yields nil and sets Error.
type Session struct {
	client Sender

	mu   sync.RWMutex
	view SessionView
}

// NewSession wraps client
func NewSession(client Sender) *Session {
	return &Session{client: client}
}

// SendMessage sends one turn. ok is false when the turn failed.
func (s *Session) SendMessage(ctx context.Context, payload Payload) (resp *Response, ok bool) {
	s.update(func(v *SessionView) {
		v.Loading = true
		v.Error = ""
	})
	defer s.update(func(v *SessionView) { v.Loading = false })

	resp, err := s.client.Send(ctx, payload)
	if err != nil {
		s.update(func(v *SessionView) { v.Error = ErrorMessage(err) })
		return nil, false
	}

	s.update(func(v *SessionView) { v.Reply = resp.Reply })
	return resp, true
}

// LocateCity analyses an image. A failure yields nil and sets Error.
func (s *Session) LocateCity(ctx context.Context, image []byte, filename, hint string) *CityAnalysis {
	s.update(func(v *SessionView) {
		v.ImageLoading = true
		v.Error = ""
	})
	defer s.update(func(v *SessionView) { v.ImageLoading = false })

	analysis, err := s.client.LocateCity(ctx, image, filename, hint)
	if err != nil {
		s.update(func(v *SessionView) { v.Error = ErrorMessage(err) })
		return nil
	}
	return analysis
}

// View returns a copy of the UI state
func (s *Session) View() SessionView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view
}

func (s *Session) update(fn func(v *SessionView)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.view)
}
