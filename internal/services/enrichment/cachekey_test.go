package enrichment

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/finsignal/finsignal/internal/models"
)

func TestCacheKeyOrderIndependence(t *testing.T) {
	a := HeadlinePayload([]string{"alpha", "beta", "gamma"})
	b := HeadlinePayload([]string{"gamma", "alpha", "beta"})
	assert.Equal(t,
		CacheKey(models.AnalysisKindHeadlineFilter, "gpt-4o-mini", a),
		CacheKey(models.AnalysisKindHeadlineFilter, "gpt-4o-mini", b),
		"the same headline set in a different order must share a key")
}

func TestCacheKeyVariesWithInputs(t *testing.T) {
	payload := HeadlinePayload([]string{"alpha", "beta"})

	base := CacheKey(models.AnalysisKindHeadlineFilter, "gpt-4o-mini", payload)
	assert.NotEqual(t, base,
		CacheKey(models.AnalysisKindSentiment, "gpt-4o-mini", payload),
		"kind participates in the key")
	assert.NotEqual(t, base,
		CacheKey(models.AnalysisKindHeadlineFilter, "claude-sonnet-4-5", payload),
		"model id participates in the key")
	assert.NotEqual(t, base,
		CacheKey(models.AnalysisKindHeadlineFilter, "gpt-4o-mini", HeadlinePayload([]string{"alpha"})),
		"payload participates in the key")
}

func TestSummaryPayloadKeyOrderIndependence(t *testing.T) {
	first := []*models.EnrichmentResult{
		{Ticker: "AAPL", ArticleURL: "https://example.com/1"},
		{Ticker: "MSFT", ArticleURL: "https://example.com/2"},
	}
	second := []*models.EnrichmentResult{
		{Ticker: "MSFT", ArticleURL: "https://example.com/2"},
		{Ticker: "AAPL", ArticleURL: "https://example.com/1"},
	}
	assert.Equal(t, SummaryPayloadKey(first), SummaryPayloadKey(second))
}

func TestArticlePayloadTrimsWhitespace(t *testing.T) {
	assert.Equal(t,
		ArticlePayload("Title", "Body"),
		ArticlePayload("  Title  ", "\nBody\n"))
}
