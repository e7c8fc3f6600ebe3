package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	provider Provider
	reply    string
	err      error
	lastReq  ChatRequest
}

func (f *fakeClient) Complete(_ context.Context, req ChatRequest) (string, error) {
	f.lastReq = req
	return f.reply, f.err
}

func (f *fakeClient) Provider() Provider { return f.provider }

func TestProviderForModel(t *testing.T) {
	cases := map[string]Provider{
		"gpt-4o":                   ProviderOpenAI,
		"claude-sonnet-4-20250514": ProviderAnthropic,
		"gemini-2.0-flash":         ProviderGemini,
		"deepseek-chat":            ProviderDeepSeek,
	}
	for model, want := range cases {
		got, ok := ProviderForModel(model)
		require.True(t, ok, model)
		assert.Equal(t, want, got)
	}

	_, ok := ProviderForModel("gpt-9000")
	assert.False(t, ok)
}

func TestRegistryRoutesToOwningProvider(t *testing.T) {
	openai := &fakeClient{provider: ProviderOpenAI, reply: "from openai"}
	anthropic := &fakeClient{provider: ProviderAnthropic, reply: "from anthropic"}
	registry := NewRegistryWithClients(openai, anthropic)

	out, err := registry.Complete(context.Background(), ChatRequest{Model: "claude-sonnet-4-20250514", User: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "from anthropic", out)
	assert.Equal(t, "hi", anthropic.lastReq.User)
	assert.Empty(t, openai.lastReq.User)
}

func TestRegistryRejectsUnknownModel(t *testing.T) {
	registry := NewRegistryWithClients(&fakeClient{provider: ProviderOpenAI})

	_, err := registry.Complete(context.Background(), ChatRequest{Model: "not-a-model"})
	require.ErrorIs(t, err, ErrUnsupportedModel)
}

func TestRegistryRejectsUnconfiguredProvider(t *testing.T) {
	registry := NewRegistryWithClients(&fakeClient{provider: ProviderOpenAI})

	_, err := registry.Complete(context.Background(), ChatRequest{Model: "gemini-2.0-flash"})
	require.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestNewRegistrySkipsMissingKeys(t *testing.T) {
	registry := NewRegistry(RegistryConfig{OpenAIKey: "sk-test"})

	_, err := registry.ClientFor("gpt-4o")
	require.NoError(t, err)

	_, err = registry.ClientFor("deepseek-chat")
	require.ErrorIs(t, err, ErrProviderUnavailable)
}
