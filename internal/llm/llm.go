// Package llm provides the completion clients that back maker's generators.
//
// A Completer turns a system prompt and a user prompt into text. Providers
// are OpenAI-compatible endpoints (OpenAI, OpenRouter) through langchaingo
// and Anthropic through its Go SDK. New wraps the selected provider with a
// token-bucket limiter and retries for transient failures.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/maker/internal/config"
	"go.uber.org/zap"
)

// Provider names accepted by New.
const (
	ProviderOpenRouter = "openrouter"
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
)

const (
	defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	defaultOpenAIBaseURL     = "https://api.openai.com/v1"
	defaultOpenRouterModel   = "google/gemini-2.0-flash-001"
	defaultOpenAIModel       = "gpt-4o-mini"
	defaultAnthropicModel    = "claude-3-5-haiku-latest"
	defaultMaxTokens         = 500
	defaultTimeout           = 60 * time.Second
)

var (
	// ErrMissingAPIKey is returned when a provider has no credentials.
	ErrMissingAPIKey = errors.New("llm: API key required")

	// ErrUnknownProvider is returned by New for unsupported providers.
	ErrUnknownProvider = errors.New("llm: unknown provider")

	// ErrEmptyResponse is returned when a provider answers without text.
	ErrEmptyResponse = errors.New("llm: empty response")
)

// Request is a single completion call.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	// MaxTokens caps the response length. Zero uses the client default.
	MaxTokens int
}

// Response carries the completion text and token usage when reported.
type Response struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// Completer produces one completion per call.
type Completer interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req Request) (Response, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// New builds the provider named in cfg and wraps it in a rate-limited,
// retrying Client.
func New(cfg config.LLMConfig, logger *zap.Logger) (*Client, error) {
	var (
		provider Completer
		err      error
	)
	switch cfg.Provider {
	case ProviderOpenRouter, ProviderOpenAI, "":
		provider, err = newOpenAIProvider(cfg)
	case ProviderAnthropic:
		provider, err = newAnthropicProvider(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	name := cfg.Provider
	if name == "" {
		name = ProviderOpenRouter
	}
	opts := []ClientOption{WithLogger(logger), WithProviderName(name)}
	if cfg.RateLimit > 0 {
		opts = append(opts, WithRateLimit(cfg.RateLimit, cfg.Burst))
	}
	if cfg.MaxRetries > 0 {
		opts = append(opts, WithMaxRetries(cfg.MaxRetries))
	}
	if cfg.MaxTokens > 0 {
		opts = append(opts, WithDefaultMaxTokens(cfg.MaxTokens))
	}
	return NewClient(provider, opts...), nil
}

func timeoutOf(cfg config.LLMConfig) time.Duration {
	if d := cfg.Timeout.Duration(); d > 0 {
		return d
	}
	return defaultTimeout
}
