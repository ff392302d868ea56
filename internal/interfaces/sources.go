package interfaces

import (
	"context"
	"net/http"

	"github.com/finsignal/finsignal/internal/models"
)

// RateLimiter gates outbound requests per origin (network authority).
type RateLimiter interface {
	// Admit blocks until a request to the origin is safe to send, or until
	// the context is cancelled.
	Admit(ctx context.Context, origin string) error
}

// SourceAdapter is one scraping strategy. Adapters convert whatever the
// remote site serves into normalized articles; failures surface as an empty
// result plus an error, never as fabricated data.
type SourceAdapter interface {
	// ID is the stable source identifier recorded on emitted articles.
	ID() string

	// FetchItems retrieves the source's current listing. Every network
	// request must pass through the rate limiter first.
	FetchItems(ctx context.Context, transport *http.Client, limiter RateLimiter) ([]*models.Article, error)

	// FetchContent retrieves the full body for one article URL, or ""
	// when the page yields nothing usable.
	FetchContent(ctx context.Context, transport *http.Client, url string, limiter RateLimiter) (string, error)
}
