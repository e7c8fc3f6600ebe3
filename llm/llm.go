package llm

import (
	"context"
	"errors"
)

var (
	// ErrProviderUnavailable reports a provider that could not be reached or
	// answered with a non-success status.
	ErrProviderUnavailable = errors.New("llm: provider unavailable")
	// ErrUnsupportedModel reports a model string outside the catalog.
	ErrUnsupportedModel = errors.New("llm: unsupported model")
)

// Provider identifies one of the supported LLM vendors.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
	ProviderDeepSeek  Provider = "deepseek"
)

// Providers returns the closed set of supported vendors.
func Providers() []Provider {
	return []Provider{ProviderOpenAI, ProviderAnthropic, ProviderGemini, ProviderDeepSeek}
}

// ChatRequest is a single completion exchange: one system prompt, one user
// prompt, one assistant reply.
type ChatRequest struct {
	Model       string
	System      string
	User        string
	MaxTokens   int
	Temperature float64
	// ForceJSON asks the provider for a JSON-only response where the vendor
	// API supports it; otherwise the system prompt carries the instruction.
	ForceJSON bool
}

// Client completes a chat exchange with one provider.
type Client interface {
	Complete(ctx context.Context, req ChatRequest) (string, error)
	Provider() Provider
}
