// Package sources contains the pluggable scraping strategies that turn
// remote listings into normalized articles. Every outbound request is gated
// by the shared rate limiter, keyed on the target origin.
package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// originOf extracts the network authority a URL targets. The origin is the
// unit of rate limiting.
func originOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}

// fetcher issues rate-limited GET requests on behalf of adapters.
type fetcher struct {
	userAgent string
}

// get admits through the limiter, then fetches the URL body. Non-200
// responses are errors; callers convert them to empty results.
func (f fetcher) get(ctx context.Context, transport *http.Client, limiter limiterFunc, rawURL string) ([]byte, error) {
	if err := limiter(ctx, originOf(rawURL)); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := transport.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body %s: %w", rawURL, err)
	}
	return body, nil
}

// limiterFunc adapts interfaces.RateLimiter for the fetch helper.
type limiterFunc func(ctx context.Context, origin string) error
