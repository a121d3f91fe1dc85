package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strconv"

	"github.com/fyrsmithlabs/maker/internal/config"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
)

// openAIProvider talks to any OpenAI-compatible chat completions endpoint.
type openAIProvider struct {
	llm *openai.LLM
}

func newOpenAIProvider(cfg config.LLMConfig) (*openAIProvider, error) {
	if !cfg.APIKey.IsSet() {
		return nil, fmt.Errorf("%s: %w", cfg.Provider, ErrMissingAPIKey)
	}

	baseURL, model := cfg.BaseURL, cfg.Model
	if cfg.Provider == ProviderOpenAI {
		if baseURL == "" {
			baseURL = defaultOpenAIBaseURL
		}
		if model == "" {
			model = defaultOpenAIModel
		}
	} else {
		if baseURL == "" {
			baseURL = defaultOpenRouterBaseURL
		}
		if model == "" {
			model = defaultOpenRouterModel
		}
	}

	llm, err := openai.New(
		openai.WithToken(cfg.APIKey.Value()),
		openai.WithBaseURL(baseURL),
		openai.WithModel(model),
		openai.WithHTTPClient(&http.Client{Timeout: timeoutOf(cfg)}),
	)
	if err != nil {
		return nil, fmt.Errorf("creating openai client: %w", err)
	}
	return &openAIProvider{llm: llm}, nil
}

func (p *openAIProvider) Complete(ctx context.Context, req Request) (Response, error) {
	messages := make([]llms.MessageContent, 0, 2)
	if req.System != "" {
		messages = append(messages, llms.TextParts(schema.ChatMessageTypeSystem, req.System))
	}
	messages = append(messages, llms.TextParts(schema.ChatMessageTypeHuman, req.Prompt))

	out, err := p.llm.GenerateContent(ctx, messages,
		llms.WithTemperature(req.Temperature),
		llms.WithMaxTokens(req.MaxTokens),
	)
	if err != nil {
		return Response{}, classifyOpenAIError(err)
	}
	if len(out.Choices) == 0 || out.Choices[0].Content == "" {
		return Response{}, ErrEmptyResponse
	}

	choice := out.Choices[0]
	return Response{
		Text:         choice.Content,
		InputTokens:  intInfo(choice.GenerationInfo, "PromptTokens"),
		OutputTokens: intInfo(choice.GenerationInfo, "CompletionTokens"),
	}, nil
}

var statusCodePattern = regexp.MustCompile(`status code: (\d{3})`)

// classifyOpenAIError marks rate limits, server errors and network failures
// as retryable. langchaingo reports HTTP failures only in the message text.
func classifyOpenAIError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return Retryable(fmt.Errorf("API request failed: %w", err))
	}
	if m := statusCodePattern.FindStringSubmatch(err.Error()); m != nil {
		code, _ := strconv.Atoi(m[1])
		if code == http.StatusTooManyRequests || code >= 500 {
			return Retryable(err)
		}
	}
	return err
}

func intInfo(info map[string]any, key string) int {
	switch v := info[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
