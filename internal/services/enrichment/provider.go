// Package enrichment is the single choke point for external language-model
// calls: caching, retry, validation, clamping and fallback all live here.
package enrichment

import (
	"fmt"
	"strings"

	"github.com/finsignal/finsignal/internal/interfaces"
)

// Provider names for the closed provider set. Adding a provider means adding
// an implementation of interfaces.LLMProvider and a branch here, nowhere else.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// ProviderFor resolves a model id to its provider name. Pure function;
// unknown families are a configuration error, never retried.
func ProviderFor(modelID string) (string, error) {
	switch {
	case strings.HasPrefix(modelID, "gpt-"), strings.HasPrefix(modelID, "o1"), strings.HasPrefix(modelID, "o3"):
		return ProviderOpenAI, nil
	case strings.HasPrefix(modelID, "claude-"):
		return ProviderAnthropic, nil
	default:
		return "", fmt.Errorf("%w: %q", interfaces.ErrUnsupportedModel, modelID)
	}
}

// resolveProvider looks the model's provider up in the configured set.
func resolveProvider(providers map[string]interfaces.LLMProvider, modelID string) (interfaces.LLMProvider, error) {
	name, err := ProviderFor(modelID)
	if err != nil {
		return nil, err
	}
	provider, ok := providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: provider %q is not configured", interfaces.ErrUnsupportedModel, name)
	}
	return provider, nil
}
