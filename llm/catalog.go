package llm

import "strings"

// modelCatalog maps every supported model name to its provider. Model
// strings outside this table are rejected with ErrUnsupportedModel.
var modelCatalog = map[string]Provider{
	"gpt-4o":                   ProviderOpenAI,
	"gpt-4o-mini":              ProviderOpenAI,
	"gpt-4.1":                  ProviderOpenAI,
	"gpt-4.1-mini":             ProviderOpenAI,
	"o3-mini":                  ProviderOpenAI,
	"claude-sonnet-4-20250514": ProviderAnthropic,
	"claude-3-5-haiku-latest":  ProviderAnthropic,
	"claude-opus-4-20250514":   ProviderAnthropic,
	"gemini-2.0-flash":         ProviderGemini,
	"gemini-2.5-pro":           ProviderGemini,
	"gemini-2.5-flash":         ProviderGemini,
	"deepseek-chat":            ProviderDeepSeek,
	"deepseek-reasoner":        ProviderDeepSeek,
}

// ProviderForModel resolves the vendor owning a model name.
func ProviderForModel(model string) (Provider, bool) {
	p, ok := modelCatalog[strings.TrimSpace(model)]
	return p, ok
}

// ModelsForProvider lists catalog models belonging to one vendor.
func ModelsForProvider(provider Provider) []string {
	var models []string
	for model, p := range modelCatalog {
		if p == provider {
			models = append(models, model)
		}
	}
	return models
}
