package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felipepmaragno/stem-explainer/internal/oracle"
)

type sentRequest struct {
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	MaxCompletionTokens int `json:"max_completion_tokens"`
	ResponseFormat      *struct {
		Type       string         `json:"type"`
		JSONSchema map[string]any `json:"json_schema"`
	} `json:"response_format"`
}

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	config := openai.DefaultConfig("test-key")
	config.BaseURL = server.URL + "/v1"

	return &Provider{client: openai.NewClientWithConfig(config), model: DefaultModel}
}

func completion(content, finish string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1234567890,
		"model":   DefaultModel,
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": finish,
		}},
		"usage": map[string]any{"prompt_tokens": 40, "completion_tokens": 25, "total_tokens": 65},
	}
}

func TestProvider_Generate(t *testing.T) {
	var got sentRequest
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(completion("Photosynthesis converts light.", "stop"))
	})

	resp, err := p.Generate(context.Background(), oracle.Request{
		System:   "You are an expert STEM tutor.",
		Prompt:   "Explain photosynthesis",
		Sampling: oracle.ExplanationSampling(),
	})

	require.NoError(t, err)
	assert.Equal(t, "Photosynthesis converts light.", resp.Text)
	assert.False(t, resp.Blocked())
	assert.Equal(t, 40, resp.Usage.InputTokens)

	require.Len(t, got.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, got.Messages[0].Role)
	assert.Equal(t, "Explain photosynthesis", got.Messages[1].Content)
	assert.Equal(t, 2048, got.MaxCompletionTokens)
}

func TestProvider_ContentFilter(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(completion("", "content_filter"))
	})

	resp, err := p.Generate(context.Background(), oracle.Request{Prompt: "x"})

	require.NoError(t, err)
	assert.Equal(t, "CONTENT_FILTER", resp.BlockReason)
}

func TestProvider_SchemaResponseFormat(t *testing.T) {
	var got sentRequest
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(completion(`{"quizTitle":"t","questions":[]}`, "stop"))
	})

	_, err := p.Generate(context.Background(), oracle.Request{
		Prompt: "quiz",
		Schema: &oracle.Schema{Name: "quiz", Definition: map[string]any{"type": "object"}},
	})

	require.NoError(t, err)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, string(openai.ChatCompletionResponseFormatTypeJSONSchema), got.ResponseFormat.Type)
	assert.Equal(t, "quiz", got.ResponseFormat.JSONSchema["name"])
}

func TestProvider_APIError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "overloaded", "type": "server_error"},
		})
	})

	_, err := p.Generate(context.Background(), oracle.Request{Prompt: "x"})

	require.Error(t, err)
	assert.ErrorIs(t, err, oracle.ErrUnavailable)
}
