package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

const userAgent = "TravelAgent-Client/1.0"

// transport wraps resty with client-side rate limiting.
// Request/response turns are never retried: a turn is not idempotent.
type transport struct {
	resty   *resty.Client
	limiter *rate.Limiter
	mu      sync.RWMutex
}

func newTransport(baseURL string, timeout time.Duration) *transport {
	// Pooled transport only; retries stay off
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 0
	retryClient.Logger = nil

	restyClient := resty.New()
	restyClient.
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json").
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal)

	restyClient.SetTransport(retryClient.HTTPClient.Transport)

	return &transport{
		resty:   restyClient,
		limiter: rate.NewLimiter(rate.Inf, 0), // Unlimited by default
	}
}

// setRateLimit configures rate limiting (requests per second)
func (t *transport) setRateLimit(rps float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rps <= 0 {
		t.limiter = rate.NewLimiter(rate.Inf, 0)
		return
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	t.limiter = rate.NewLimiter(rate.Limit(rps), burst)
}

// request creates a new request after waiting on the limiter
func (t *transport) request(ctx context.Context) (*resty.Request, error) {
	t.mu.RLock()
	limiter := t.limiter
	t.mu.RUnlock()

	if err := limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}
	return t.resty.R().SetContext(ctx), nil
}
