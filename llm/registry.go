package llm

import (
	"context"
	"fmt"
	"os"
	"time"
)

// RegistryConfig holds the per-vendor credentials. A provider with an empty
// key is considered unconfigured and unavailable.
type RegistryConfig struct {
	OpenAIKey     string
	OpenAIBaseURL string

	AnthropicKey     string
	AnthropicBaseURL string

	GeminiKey     string
	GeminiBaseURL string

	DeepSeekKey     string
	DeepSeekBaseURL string

	Timeout time.Duration
}

// RegistryConfigFromEnv reads the standard vendor key variables.
func RegistryConfigFromEnv() RegistryConfig {
	return RegistryConfig{
		OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:    os.Getenv("OPENAI_BASE_URL"),
		AnthropicKey:     os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicBaseURL: os.Getenv("ANTHROPIC_BASE_URL"),
		GeminiKey:        os.Getenv("GEMINI_API_KEY"),
		GeminiBaseURL:    os.Getenv("GEMINI_BASE_URL"),
		DeepSeekKey:      os.Getenv("DEEPSEEK_API_KEY"),
		DeepSeekBaseURL:  os.Getenv("DEEPSEEK_BASE_URL"),
	}
}

// Registry resolves model names to vendor clients.
type Registry struct {
	clients map[Provider]Client
}

// NewRegistry builds one client per configured vendor.
func NewRegistry(cfg RegistryConfig) *Registry {
	clients := make(map[Provider]Client, 4)
	if cfg.OpenAIKey != "" {
		clients[ProviderOpenAI] = NewOpenAIClient(OpenAIConfig{
			BaseURL: cfg.OpenAIBaseURL,
			APIKey:  cfg.OpenAIKey,
			Timeout: cfg.Timeout,
			Vendor:  ProviderOpenAI,
		})
	}
	if cfg.AnthropicKey != "" {
		clients[ProviderAnthropic] = NewAnthropicClient(AnthropicConfig{
			BaseURL: cfg.AnthropicBaseURL,
			APIKey:  cfg.AnthropicKey,
			Timeout: cfg.Timeout,
		})
	}
	if cfg.GeminiKey != "" {
		clients[ProviderGemini] = NewGeminiClient(GeminiConfig{
			BaseURL: cfg.GeminiBaseURL,
			APIKey:  cfg.GeminiKey,
			Timeout: cfg.Timeout,
		})
	}
	if cfg.DeepSeekKey != "" {
		base := cfg.DeepSeekBaseURL
		if base == "" {
			base = "https://api.deepseek.com/v1"
		}
		// DeepSeek speaks the OpenAI chat completions dialect.
		clients[ProviderDeepSeek] = NewOpenAIClient(OpenAIConfig{
			BaseURL: base,
			APIKey:  cfg.DeepSeekKey,
			Timeout: cfg.Timeout,
			Vendor:  ProviderDeepSeek,
		})
	}
	return &Registry{clients: clients}
}

// NewRegistryWithClients builds a registry over pre-built clients. Used by
// tests and anywhere a vendor client needs replacing.
func NewRegistryWithClients(clients ...Client) *Registry {
	m := make(map[Provider]Client, len(clients))
	for _, c := range clients {
		m[c.Provider()] = c
	}
	return &Registry{clients: m}
}

// ClientFor resolves the client responsible for a model name. A model
// outside the catalog fails with ErrUnsupportedModel; a cataloged model
// whose vendor has no credentials fails with ErrProviderUnavailable.
func (r *Registry) ClientFor(model string) (Client, error) {
	provider, ok := ProviderForModel(model)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedModel, model)
	}
	client, ok := r.clients[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s is not configured", ErrProviderUnavailable, provider)
	}
	return client, nil
}

// Complete routes the request to the vendor owning req.Model.
func (r *Registry) Complete(ctx context.Context, req ChatRequest) (string, error) {
	client, err := r.ClientFor(req.Model)
	if err != nil {
		return "", err
	}
	return client.Complete(ctx, req)
}
