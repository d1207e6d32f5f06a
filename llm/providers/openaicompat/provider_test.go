package openaicompat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/consultflow/llm"
	"github.com/BaSui01/consultflow/types"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) (*Provider, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	p := New(Config{Name: "test", BaseURL: srv.URL, APIKey: "sk-test"}, zap.NewNop())
	return p, srv
}

func TestProvider_Completion(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req wireRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)

		json.NewEncoder(w).Encode(wireResponse{
			ID:    "cmpl-1",
			Model: "gpt-4o",
			Choices: []wireChoice{{
				Message:      wireMessage{Role: "assistant", Content: `{"analysis":"ok"}`},
				FinishReason: "stop",
			}},
			Usage: &wireUsage{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150},
		})
	})

	resp, err := p.Completion(context.Background(), &llm.ChatRequest{
		Model: "gpt-4o",
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "you are a consultant"},
			{Role: llm.RoleUser, Content: "analyze this"},
		},
		MaxTokens: 500,
	})

	require.NoError(t, err)
	assert.Equal(t, `{"analysis":"ok"}`, resp.Content())
	assert.Equal(t, 150, resp.Usage.TotalTokens)
	assert.Equal(t, "test", resp.Provider)
}

func TestProvider_Completion_NoChoicesIsTransportFailure(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(wireResponse{ID: "cmpl-2", Model: "gpt-4o"})
	})

	_, err := p.Completion(context.Background(), &llm.ChatRequest{Model: "gpt-4o"})

	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrTransportFailure))
	assert.True(t, types.IsRetryable(err))
}

func TestProvider_Completion_HTTPErrorStatus(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "rate limit reached", "type": "rate_limit"},
		})
	})

	_, err := p.Completion(context.Background(), &llm.ChatRequest{Model: "gpt-4o"})

	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrTransportFailure))
	assert.Contains(t, err.Error(), "rate limit reached")
}

func TestProvider_HealthCheck(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	})

	status, err := p.HealthCheck(context.Background())

	require.NoError(t, err)
	assert.True(t, status.Healthy)
}
