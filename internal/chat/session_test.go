package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, payload Payload) (*Response, error) {
	args := m.Called(ctx, payload)
	resp, _ := args.Get(0).(*Response)
	return resp, args.Error(1)
}

func (m *mockSender) LocateCity(ctx context.Context, image []byte, filename, hint string) (*CityAnalysis, error) {
	args := m.Called(ctx, image, filename, hint)
	a, _ := args.Get(0).(*CityAnalysis)
	return a, args.Error(1)
}

func TestSessionSendMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("success sets reply", func(t *testing.T) {
		sender := &mockSender{}
		sender.On("Send", ctx, Text("hi")).Return(&Response{Reply: "Salut"}, nil)
		s := NewSession(sender)

		resp, ok := s.SendMessage(ctx, Text("hi"))
		require.True(t, ok)
		assert.Equal(t, "Salut", resp.Reply)
		assert.Equal(t, SessionView{Reply: "Salut"}, s.View())
		sender.AssertExpectations(t)
	})

	t.Run("api error surfaces backend text", func(t *testing.T) {
		sender := &mockSender{}
		sender.On("Send", ctx, Text("hi")).Return(nil, &APIError{Status: 500, Message: "Failed to process message"})
		s := NewSession(sender)

		resp, ok := s.SendMessage(ctx, Text("hi"))
		assert.False(t, ok)
		assert.Nil(t, resp)
		assert.Equal(t, "Failed to process message", s.View().Error)
		assert.False(t, s.View().Loading)
	})

	t.Run("next call clears error", func(t *testing.T) {
		sender := &mockSender{}
		sender.On("Send", ctx, Text("a")).Return(nil, errors.New("dial tcp: refused")).Once()
		sender.On("Send", ctx, Text("b")).Return(&Response{Reply: "ok"}, nil).Once()
		s := NewSession(sender)

		s.SendMessage(ctx, Text("a"))
		assert.Equal(t, "dial tcp: refused", s.View().Error)
		s.SendMessage(ctx, Text("b"))
		assert.Empty(t, s.View().Error)
	})
}

func TestSessionLocateCity(t *testing.T) {
	ctx := context.Background()
	img := []byte{1, 2, 3}

	sender := &mockSender{}
	sender.On("LocateCity", ctx, img, "a.jpg", "").Return(nil, errors.New("timeout")).Once()
	sender.On("LocateCity", ctx, img, "a.jpg", "x").Return(FallbackAnalysis(), nil).Once()
	s := NewSession(sender)

	assert.Nil(t, s.LocateCity(ctx, img, "a.jpg", ""))
	assert.Equal(t, "timeout", s.View().Error)
	assert.False(t, s.View().ImageLoading)

	a := s.LocateCity(ctx, img, "a.jpg", "x")
	require.NotNil(t, a)
	assert.True(t, a.Fallback)
	assert.Empty(t, s.View().Error)
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "", ErrorMessage(nil))
	assert.Equal(t, "bad", ErrorMessage(&APIError{Status: 400, Message: "bad"}))
	assert.Equal(t, UnexpectedError, ErrorMessage(errors.New("")))
}
