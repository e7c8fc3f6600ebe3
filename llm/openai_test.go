package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIClientComplete(t *testing.T) {
	var got openAIRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"hello back"}}]}`))
	}))
	defer server.Close()

	client := NewOpenAIClient(OpenAIConfig{BaseURL: server.URL, APIKey: "sk-test"})
	out, err := client.Complete(context.Background(), ChatRequest{
		Model:     "gpt-4o",
		System:    "be brief",
		User:      "hello",
		ForceJSON: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "hello back", out)

	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Equal(t, map[string]any{"type": "json_object"}, got.ResponseFormat)
}

func TestOpenAIClientServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewOpenAIClient(OpenAIConfig{BaseURL: server.URL, APIKey: "sk-test"})
	_, err := client.Complete(context.Background(), ChatRequest{Model: "gpt-4o", User: "hello"})
	require.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestAnthropicClientComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant", r.Header.Get("x-api-key"))
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"claude"},{"type":"text","text":" reply"}]}`))
	}))
	defer server.Close()

	client := NewAnthropicClient(AnthropicConfig{BaseURL: server.URL, APIKey: "sk-ant"})
	out, err := client.Complete(context.Background(), ChatRequest{Model: "claude-3-5-haiku-latest", User: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "claude reply", out)
}

func TestGeminiClientComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-2.0-flash:generateContent", r.URL.Path)
		assert.Equal(t, "g-key", r.URL.Query().Get("key"))
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"gemini reply"}]}}]}`))
	}))
	defer server.Close()

	client := NewGeminiClient(GeminiConfig{BaseURL: server.URL, APIKey: "g-key"})
	out, err := client.Complete(context.Background(), ChatRequest{Model: "gemini-2.0-flash", User: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "gemini reply", out)
}
