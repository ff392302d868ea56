package interfaces

import (
	"context"
	"errors"
)

// ErrUnsupportedModel is returned when a model id maps to no configured
// provider. It is a configuration error and is never retried.
var ErrUnsupportedModel = errors.New("unsupported model")

// LLMProvider is the single capability every model backend implements.
// Implementations wrap one vendor SDK; retry, caching, validation and
// fallback all live above this interface in the enrichment gateway.
type LLMProvider interface {
	// Call sends a prompt to the given model and returns the raw text
	// completion. Transport errors are transient from the gateway's view.
	Call(ctx context.Context, prompt string, model string, temperature float64) (string, error)

	// Name identifies the provider ("openai", "anthropic") for logging.
	Name() string
}
