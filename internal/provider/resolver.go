package provider

import (
	"fmt"
	"strings"

	"github.com/pawzhub/pawd/internal/config"
)

// ParseModelString splits a "provider/model" string into provider ID
// and model name. For OpenRouter the model part keeps its own slash
// ("openrouter/vendor/model").
func ParseModelString(s string) (providerID, modelName string) {
	s = strings.TrimSpace(s)
	parts := strings.SplitN(s, "/", 2)
	if len(parts) < 2 {
		return "", s
	}
	return strings.ToLower(parts[0]), parts[1]
}

// Resolve creates the ChatProvider for the configured model string.
// A bare model name resolves against the openai provider entry.
func Resolve(cfg *config.Config) (ChatProvider, error) {
	provID, model := ParseModelString(cfg.Model.Name)
	if provID == "" {
		return NewOpenAIProvider(cfg.Providers.OpenAI.APIKey, cfg.Providers.OpenAI.APIBase, model), nil
	}
	return buildProvider(cfg, provID, model)
}

// buildProvider constructs a provider from its canonical ID and model name.
func buildProvider(cfg *config.Config, providerID, model string) (ChatProvider, error) {
	switch providerID {
	case "openai":
		key := cfg.Providers.OpenAI.APIKey
		if key == "" {
			return nil, &ProviderError{Provider: "openai", Hint: "set providers.openai.apiKey in config or PAWD_OPENAI_API_KEY"}
		}
		return NewOpenAIProvider(key, cfg.Providers.OpenAI.APIBase, model), nil

	case "openrouter":
		key := cfg.Providers.OpenRouter.APIKey
		base := cfg.Providers.OpenRouter.APIBase
		if key == "" {
			return nil, &ProviderError{Provider: "openrouter", Hint: "set providers.openrouter.apiKey in config or PAWD_OPENROUTER_API_KEY"}
		}
		if base == "" {
			base = "https://openrouter.ai/api/v1"
		}
		return NewOpenAIProvider(key, base, model), nil

	case "deepseek":
		key := cfg.Providers.DeepSeek.APIKey
		base := cfg.Providers.DeepSeek.APIBase
		if key == "" {
			return nil, &ProviderError{Provider: "deepseek", Hint: "set providers.deepseek.apiKey in config or PAWD_DEEPSEEK_API_KEY"}
		}
		if base == "" {
			base = "https://api.deepseek.com/v1"
		}
		return NewOpenAIProvider(key, base, model), nil

	case "groq":
		key := cfg.Providers.Groq.APIKey
		base := cfg.Providers.Groq.APIBase
		if key == "" {
			return nil, &ProviderError{Provider: "groq", Hint: "set providers.groq.apiKey in config or PAWD_GROQ_API_KEY"}
		}
		if base == "" {
			base = "https://api.groq.com/openai/v1"
		}
		return NewOpenAIProvider(key, base, model), nil

	case "vllm":
		base := cfg.Providers.VLLM.APIBase
		if base == "" {
			return nil, &ProviderError{Provider: "vllm", Hint: "set providers.vllm.apiBase in config (e.g. http://localhost:8000/v1)"}
		}
		return NewOpenAIProvider(cfg.Providers.VLLM.APIKey, base, model), nil

	default:
		return nil, &ProviderError{Provider: providerID, Hint: fmt.Sprintf("unknown provider ID %q — supported: openai, openrouter, deepseek, groq, vllm", providerID)}
	}
}

// ProviderError is returned when a provider cannot be constructed.
type ProviderError struct {
	Provider string
	Hint     string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %q: %s", e.Provider, e.Hint)
}
