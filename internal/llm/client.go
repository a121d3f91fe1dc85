package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Rate limiter and retry defaults.
const (
	defaultRateLimit   = 5.0
	defaultBurst       = 10
	defaultMaxRetries  = 3
	defaultBaseBackoff = 1 * time.Second
)

// Client wraps a provider with a token-bucket limiter and exponential
// backoff for transient failures. It is safe for concurrent use.
type Client struct {
	provider    Completer
	name        string
	limiter     *rate.Limiter
	maxRetries  int
	baseBackoff time.Duration
	maxTokens   int
	logger      *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithRateLimit sets requests per second and burst size.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithMaxRetries sets how many times a retryable failure is retried.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) { c.maxRetries = n }
}

// WithBaseBackoff sets the first retry delay. Each retry doubles it.
func WithBaseBackoff(d time.Duration) ClientOption {
	return func(c *Client) { c.baseBackoff = d }
}

// WithDefaultMaxTokens applies to requests that leave MaxTokens at zero.
func WithDefaultMaxTokens(n int) ClientOption {
	return func(c *Client) { c.maxTokens = n }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithProviderName labels metrics and logs.
func WithProviderName(name string) ClientOption {
	return func(c *Client) { c.name = name }
}

// NewClient wraps provider.
func NewClient(provider Completer, opts ...ClientOption) *Client {
	c := &Client{
		provider:    provider,
		name:        "custom",
		limiter:     rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
		maxRetries:  defaultMaxRetries,
		baseBackoff: defaultBaseBackoff,
		maxTokens:   defaultMaxTokens,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete waits for the limiter, then calls the provider, retrying
// rate-limit, server and network errors with exponential backoff.
func (c *Client) Complete(ctx context.Context, req Request) (Response, error) {
	if req.MaxTokens == 0 {
		req.MaxTokens = c.maxTokens
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.baseBackoff * time.Duration(1<<(attempt-1))
			c.logger.Debug("retrying completion",
				zap.String("provider", c.name),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return Response{}, ctx.Err()
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return Response{}, fmt.Errorf("rate limiter error: %w", err)
		}

		start := time.Now()
		resp, err := c.provider.Complete(ctx, req)
		requestDuration.WithLabelValues(c.name).Observe(time.Since(start).Seconds())
		if err == nil {
			requestsTotal.WithLabelValues(c.name, "success").Inc()
			tokensTotal.WithLabelValues(c.name, "input").Add(float64(resp.InputTokens))
			tokensTotal.WithLabelValues(c.name, "output").Add(float64(resp.OutputTokens))
			return resp, nil
		}

		lastErr = err
		if !isRetryableError(err) {
			requestsTotal.WithLabelValues(c.name, "error").Inc()
			return Response{}, err
		}
		requestsTotal.WithLabelValues(c.name, "retry").Inc()
	}

	return Response{}, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// retryableError marks a provider failure as transient.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// Retryable marks err as transient so Client retries it.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

func isRetryableError(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}
