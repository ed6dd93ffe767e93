package chat

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/TravelAgent/client/internal/infrastructure/logging"
	"github.com/GriffinCanCode/TravelAgent/client/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/TravelAgent/client/internal/session"
	"github.com/GriffinCanCode/TravelAgent/client/internal/shared/id"
)

const (
	HeaderSessionID = "X-Session-Id"
	HeaderRequestID = "X-Request-Id"

	DefaultTimeout = 60 * time.Second
)

// Endpoints relative to the API base URL
const (
	endpointChat   = "/chat/"
	endpointState  = "/chat/state/"
	endpointLocate = "/chat/locate_city/"
	endpointReset  = "/chat/reset/"
	endpointSum    = "/chat/summary/"
)

var ErrNoImage = errors.New("image is empty")

// Config configures the request/response client
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64
}

// Client is the request/response path to the chat backend. The session id
// lives in the injected store; the first reply that carries one fills it.
type Client struct {
	http    *transport
	store   session.Store
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// NewClient creates a chat client backed by store
func NewClient(cfg Config, store session.Store, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	t := newTransport(strings.TrimRight(cfg.BaseURL, "/"), cfg.Timeout)
	t.setRateLimit(cfg.RateLimit)

	return &Client{
		http:   t,
		store:  store,
		logger: logging.OrNop(logger),
	}
}

// WithMetrics adds request metrics
func (c *Client) WithMetrics(metrics *monitoring.Metrics) *Client {
	c.metrics = metrics
	return c
}

// SessionID returns the stored session id
func (c *Client) SessionID() (string, bool) {
	return c.store.Get()
}

// Send posts one chat turn and returns the reply envelope
func (c *Client) Send(ctx context.Context, payload Payload) (*Response, error) {
	sessionID, hasSession := c.store.Get()

	req, err := c.newRequest(ctx)
	if err != nil {
		return nil, err
	}

	switch p := payload.(type) {
	case Text:
		body := map[string]interface{}{"message": string(p)}
		if hasSession {
			body["sessionId"] = sessionID
		}
		req.SetHeader("Content-Type", "application/json").SetBody(body)

	case Multipart:
		if len(p.Image) == 0 {
			return nil, ErrNoImage
		}
		fields := make(map[string]string, len(p.Fields)+2)
		for k, v := range p.Fields {
			fields[k] = v
		}
		if p.Hint != "" {
			fields["message"] = p.Hint
		}
		fields["sessionId"] = sessionID
		attachImage(req, p.Image, p.Filename)
		req.SetMultipartFormData(fields)

	default:
		return nil, fmt.Errorf("unsupported payload %T", payload)
	}

	var out Response
	if err := c.do(req, http.MethodPost, endpointChat, &out); err != nil {
		return nil, err
	}

	if !hasSession && out.SessionID != "" {
		if err := c.store.Set(out.SessionID); err != nil {
			c.logger.Warn("Failed to persist session id", zap.Error(err))
		} else {
			c.logger.Info("Session started", zap.String("session_id", out.SessionID))
		}
	}
	return &out, nil
}

// FetchState reads the persisted session state. Without a stored session
// it returns nil and no error.
func (c *Client) FetchState(ctx context.Context) (*SessionState, error) {
	sessionID, ok := c.store.Get()
	if !ok {
		return nil, nil
	}

	req, err := c.newRequest(ctx)
	if err != nil {
		return nil, err
	}
	req.SetQueryParam("sessionId", sessionID)

	var out SessionState
	if err := c.do(req, http.MethodGet, endpointChat, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateState merges updates into the backend session state. Without a
// stored session it does nothing.
func (c *Client) UpdateState(ctx context.Context, updates map[string]interface{}) (*SessionState, error) {
	sessionID, ok := c.store.Get()
	if !ok {
		return nil, nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}

	req, err := c.newRequest(ctx)
	if err != nil {
		return nil, err
	}
	req.SetHeader("Content-Type", "application/json").
		SetBody(map[string]interface{}{"sessionId": sessionID, "updates": updates})

	var out SessionState
	if err := c.do(req, http.MethodPost, endpointState, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LocateCity asks the backend which city an image shows. A response
// without structured data yields FallbackAnalysis.
func (c *Client) LocateCity(ctx context.Context, image []byte, filename, hint string) (*CityAnalysis, error) {
	if len(image) == 0 {
		return nil, ErrNoImage
	}

	req, err := c.newRequest(ctx)
	if err != nil {
		return nil, err
	}

	fields := map[string]string{}
	if hint != "" {
		fields["hint"] = hint
	}
	if sessionID, ok := c.store.Get(); ok {
		fields["sessionId"] = sessionID
	}
	attachImage(req, image, filename)
	req.SetMultipartFormData(fields)

	var out locateResponse
	if err := c.do(req, http.MethodPost, endpointLocate, &out); err != nil {
		return nil, err
	}
	if out.Data == nil {
		return FallbackAnalysis(), nil
	}
	return out.Data, nil
}

// Reset ends the backend session and forgets the stored id
func (c *Client) Reset(ctx context.Context) error {
	sessionID, ok := c.store.Get()
	if ok {
		req, err := c.newRequest(ctx)
		if err != nil {
			return err
		}
		req.SetHeader("Content-Type", "application/json").
			SetBody(map[string]interface{}{"sessionId": sessionID})

		if err := c.do(req, http.MethodPost, endpointReset, nil); err != nil {
			return err
		}
	}

	if err := c.store.Clear(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	c.logger.Info("Session reset", zap.String("session_id", sessionID))
	return nil
}

// Summary returns the compact planning summary. Without a stored session
// it returns nil and no error.
func (c *Client) Summary(ctx context.Context) (*Summary, error) {
	sessionID, ok := c.store.Get()
	if !ok {
		return nil, nil
	}

	req, err := c.newRequest(ctx)
	if err != nil {
		return nil, err
	}
	req.SetQueryParam("sessionId", sessionID)

	var out summaryResponse
	if err := c.do(req, http.MethodGet, endpointSum, &out); err != nil {
		return nil, err
	}
	return &out.Summary, nil
}

// newRequest prepares a request with the session and request id headers
func (c *Client) newRequest(ctx context.Context) (*resty.Request, error) {
	req, err := c.http.request(ctx)
	if err != nil {
		return nil, err
	}
	req.SetHeader(HeaderRequestID, id.NewRequestID().String())
	if sessionID, ok := c.store.Get(); ok {
		req.SetHeader(HeaderSessionID, sessionID)
	}
	return req, nil
}

// do executes req and decodes a 2xx body into out (when non-nil)
func (c *Client) do(req *resty.Request, method, endpoint string, out interface{}) error {
	start := time.Now()
	resp, err := req.Execute(method, endpoint)
	if err != nil {
		c.metrics.RecordChatRequest(endpoint, "transport_error", time.Since(start))
		c.logger.Error("Chat request failed",
			zap.String("method", method),
			zap.String("endpoint", endpoint),
			zap.Error(err))
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}

	c.metrics.RecordChatRequest(endpoint, fmt.Sprint(resp.StatusCode()), time.Since(start))

	if resp.IsError() || resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		apiErr := newAPIError(resp.StatusCode(), resp.Body())
		c.logger.Warn("Chat request rejected",
			zap.String("method", method),
			zap.String("endpoint", endpoint),
			zap.Int("status", apiErr.Status),
			zap.String("error", apiErr.Message))
		return apiErr
	}

	if out == nil || len(resp.Body()) == 0 {
		return nil
	}
	if err := sonic.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

// attachImage adds the image part with a sniffed content type
func attachImage(req *resty.Request, image []byte, filename string) {
	mtype := mimetype.Detect(image)
	if filename == "" {
		filename = "image" + mtype.Extension()
	}
	req.SetMultipartField("image", filename, mtype.String(), bytes.NewReader(image))
}
