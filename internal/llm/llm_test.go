package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fyrsmithlabs/maker/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openAIServer(t *testing.T, handler func(w http.ResponseWriter, body map[string]any)) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		handler(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func writeChatCompletion(w http.ResponseWriter, content string) {
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "test-model",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
		"usage": map[string]any{"prompt_tokens": 42, "completion_tokens": 7, "total_tokens": 49},
	})
}

func llmConfig(provider, baseURL string) config.LLMConfig {
	return config.LLMConfig{
		Provider:   provider,
		Model:      "test-model",
		APIKey:     config.Secret("test-key"),
		BaseURL:    baseURL,
		Timeout:    config.Duration(5 * time.Second),
		RateLimit:  1000,
		Burst:      100,
		MaxRetries: 2,
		MaxTokens:  321,
	}
}

func TestOpenAIProvider_Complete(t *testing.T) {
	srv, hits := openAIServer(t, func(w http.ResponseWriter, body map[string]any) {
		assert.Equal(t, "test-model", body["model"])
		messages, ok := body["messages"].([]any)
		require.True(t, ok)
		require.Len(t, messages, 2)
		assert.Equal(t, "system", messages[0].(map[string]any)["role"])
		assert.Equal(t, "user", messages[1].(map[string]any)["role"])
		writeChatCompletion(w, `{"disk": 1, "from": 0, "to": 2}`)
	})

	client, err := New(llmConfig(ProviderOpenRouter, srv.URL), nil)
	require.NoError(t, err)

	resp, err := client.Complete(context.Background(), Request{
		System:      "You are a focused micro-agent.",
		Prompt:      "Next move?",
		Temperature: 0.7,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"disk": 1, "from": 0, "to": 2}`, resp.Text)
	assert.Equal(t, 42, resp.InputTokens)
	assert.Equal(t, 7, resp.OutputTokens)
	assert.Equal(t, int32(1), hits.Load())
}

func TestOpenAIProvider_PromptOnly(t *testing.T) {
	srv, _ := openAIServer(t, func(w http.ResponseWriter, body map[string]any) {
		messages, ok := body["messages"].([]any)
		require.True(t, ok)
		require.Len(t, messages, 1)
		assert.Equal(t, "user", messages[0].(map[string]any)["role"])
		writeChatCompletion(w, "ok")
	})

	client, err := New(llmConfig(ProviderOpenRouter, srv.URL), nil)
	require.NoError(t, err)

	resp, err := client.Complete(context.Background(), Request{Prompt: "Next move?"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
}

func TestOpenAIProvider_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv, hits := openAIServer(t, func(w http.ResponseWriter, _ map[string]any) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"message":"overloaded"}}`))
			return
		}
		writeChatCompletion(w, "ok")
	})

	provider, err := newOpenAIProvider(llmConfig(ProviderOpenAI, srv.URL))
	require.NoError(t, err)
	client := NewClient(provider, WithBaseBackoff(time.Millisecond), WithMaxRetries(2))

	resp, err := client.Complete(context.Background(), Request{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.Equal(t, int32(2), hits.Load())
}

func TestOpenAIProvider_ClientErrorNotRetried(t *testing.T) {
	srv, hits := openAIServer(t, func(w http.ResponseWriter, _ map[string]any) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad model"}}`))
	})

	provider, err := newOpenAIProvider(llmConfig(ProviderOpenAI, srv.URL))
	require.NoError(t, err)
	client := NewClient(provider, WithBaseBackoff(time.Millisecond), WithMaxRetries(3))

	_, err = client.Complete(context.Background(), Request{Prompt: "hi"})
	require.Error(t, err)
	assert.False(t, isRetryableError(err))
	assert.Equal(t, int32(1), hits.Load())
}

func TestAnthropicProvider_Complete(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := hits.Add(1)
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test-model", body["model"])
		assert.EqualValues(t, 321, body["max_tokens"])
		assert.NotEmpty(t, body["system"])

		w.Header().Set("Content-Type", "application/json")
		if n == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
			return
		}
		_, _ = w.Write([]byte(`{
			"id": "msg_1", "type": "message", "role": "assistant", "model": "test-model",
			"content": [{"type": "text", "text": "move disk 1"}],
			"stop_reason": "end_turn", "stop_sequence": null,
			"usage": {"input_tokens": 11, "output_tokens": 4}
		}`))
	}))
	defer srv.Close()

	provider, err := newAnthropicProvider(llmConfig(ProviderAnthropic, srv.URL))
	require.NoError(t, err)
	client := NewClient(provider, WithBaseBackoff(time.Millisecond), WithDefaultMaxTokens(321))

	resp, err := client.Complete(context.Background(), Request{System: "sys", Prompt: "next?"})
	require.NoError(t, err)
	assert.Equal(t, "move disk 1", resp.Text)
	assert.Equal(t, 11, resp.InputTokens)
	assert.Equal(t, 4, resp.OutputTokens)
	assert.Equal(t, int32(2), hits.Load(), "429 is retried once")
}

func TestNew_Errors(t *testing.T) {
	_, err := New(config.LLMConfig{Provider: "local"}, nil)
	assert.ErrorIs(t, err, ErrUnknownProvider)

	_, err = New(config.LLMConfig{Provider: ProviderOpenAI}, nil)
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	_, err = New(config.LLMConfig{Provider: ProviderAnthropic}, nil)
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestClient_RetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	provider := CompleterFunc(func(context.Context, Request) (Response, error) {
		calls.Add(1)
		return Response{}, Retryable(errors.New("server error (502)"))
	})
	client := NewClient(provider, WithBaseBackoff(time.Millisecond), WithMaxRetries(2))

	_, err := client.Complete(context.Background(), Request{Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries exceeded")
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_CancelDuringBackoff(t *testing.T) {
	provider := CompleterFunc(func(context.Context, Request) (Response, error) {
		return Response{}, Retryable(errors.New("rate limited (429)"))
	})
	client := NewClient(provider, WithBaseBackoff(time.Hour), WithMaxRetries(3))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Complete(ctx, Request{Prompt: "x"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_DefaultMaxTokens(t *testing.T) {
	var got Request
	provider := CompleterFunc(func(_ context.Context, req Request) (Response, error) {
		got = req
		return Response{Text: "ok"}, nil
	})

	_, err := NewClient(provider, WithDefaultMaxTokens(64)).Complete(context.Background(), Request{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, 64, got.MaxTokens)

	_, err = NewClient(provider).Complete(context.Background(), Request{Prompt: "x", MaxTokens: 9})
	require.NoError(t, err)
	assert.Equal(t, 9, got.MaxTokens)
}

func TestClassifyOpenAIError(t *testing.T) {
	assert.True(t, isRetryableError(classifyOpenAIError(errors.New("API returned unexpected status code: 429: slow down"))))
	assert.True(t, isRetryableError(classifyOpenAIError(errors.New("API returned unexpected status code: 500"))))
	assert.False(t, isRetryableError(classifyOpenAIError(errors.New("API returned unexpected status code: 401: bad key"))))
	assert.False(t, isRetryableError(classifyOpenAIError(context.Canceled)))
}

func TestIntInfo(t *testing.T) {
	info := map[string]any{"a": 3, "b": int64(4), "c": float64(5), "d": "x"}
	assert.Equal(t, 3, intInfo(info, "a"))
	assert.Equal(t, 4, intInfo(info, "b"))
	assert.Equal(t, 5, intInfo(info, "c"))
	assert.Equal(t, 0, intInfo(info, "d"))
	assert.Equal(t, 0, intInfo(nil, "a"))
}
