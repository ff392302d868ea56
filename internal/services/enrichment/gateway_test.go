package enrichment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsignal/finsignal/internal/common"
	"github.com/finsignal/finsignal/internal/interfaces"
	"github.com/finsignal/finsignal/internal/models"
)

type fakeProvider struct {
	calls     int
	responses []string
	err       error
}

func (p *fakeProvider) Call(ctx context.Context, prompt, model string, temperature float64) (string, error) {
	p.calls++
	if p.err != nil {
		return "", p.err
	}
	response := p.responses[0]
	if len(p.responses) > 1 {
		p.responses = p.responses[1:]
	}
	return response, nil
}

func (p *fakeProvider) Name() string { return ProviderOpenAI }

type memoryCache struct {
	entries map[string]*models.CacheEntry
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]*models.CacheEntry)}
}

func (c *memoryCache) Get(ctx context.Context, key string) (*models.CacheEntry, error) {
	entry, ok := c.entries[key]
	if !ok || entry.Expired(time.Now()) {
		return nil, interfaces.ErrNotFound
	}
	return entry, nil
}

func (c *memoryCache) Set(ctx context.Context, entry *models.CacheEntry) error {
	c.entries[entry.Key] = entry
	return nil
}

func (c *memoryCache) Delete(ctx context.Context, key string) error {
	delete(c.entries, key)
	return nil
}

func (c *memoryCache) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	removed := 0
	for key, entry := range c.entries {
		if entry.Expired(now) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed, nil
}

func newTestGateway(provider *fakeProvider, cache interfaces.CacheStorage) *Gateway {
	return NewGateway(
		map[string]interfaces.LLMProvider{ProviderOpenAI: provider},
		cache,
		common.LLMConfig{MaxAttempts: 3, BaseBackoff: time.Millisecond},
		common.CacheConfig{
			FilterTTL:    24 * time.Hour,
			SentimentTTL: 24 * time.Hour,
			SummaryTTL:   2 * time.Hour,
		},
		nil,
		common.GetLogger(),
	)
}

const testModel = "gpt-4o-mini"

func testArticles(titles ...string) []*models.Article {
	articles := make([]*models.Article, len(titles))
	for i, title := range titles {
		articles[i] = &models.Article{
			ID:    title,
			URL:   "https://example.com/" + title,
			Title: title,
		}
	}
	return articles
}

func TestFilterHeadlinesCacheHitSkipsProvider(t *testing.T) {
	provider := &fakeProvider{responses: []string{`{"relevant_indices": [0, 2]}`}}
	g := newTestGateway(provider, newMemoryCache())
	articles := testArticles("a", "b", "c")

	first := g.FilterHeadlines(context.Background(), articles, testModel, 10)
	require.Len(t, first, 2)
	assert.Equal(t, 1, provider.calls)

	second := g.FilterHeadlines(context.Background(), articles, testModel, 10)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, provider.calls, "identical input must be served from cache")
}

func TestFilterHeadlinesPermutedArrivalKeepsSameSelection(t *testing.T) {
	provider := &fakeProvider{responses: []string{`{"relevant_indices": [0]}`}}
	g := newTestGateway(provider, newMemoryCache())

	first := g.FilterHeadlines(context.Background(), testArticles("alpha", "beta"), testModel, 10)
	require.Len(t, first, 1)
	assert.Equal(t, "alpha", first[0].Title)

	// The same headline set in a different order hits the cache and must
	// keep the same titles, not whatever sits at the cached positions.
	second := g.FilterHeadlines(context.Background(), testArticles("beta", "alpha"), testModel, 10)
	assert.Equal(t, 1, provider.calls)
	require.Len(t, second, 1)
	assert.Equal(t, "alpha", second[0].Title)
}

func TestFilterHeadlinesExpiredEntryRefetches(t *testing.T) {
	provider := &fakeProvider{responses: []string{`{"relevant_indices": [0]}`}}
	g := NewGateway(
		map[string]interfaces.LLMProvider{ProviderOpenAI: provider},
		newMemoryCache(),
		common.LLMConfig{MaxAttempts: 1, BaseBackoff: time.Millisecond},
		// Entries are born expired, so every lookup is a miss.
		common.CacheConfig{FilterTTL: -time.Second, SentimentTTL: -time.Second, SummaryTTL: -time.Second},
		nil,
		common.GetLogger(),
	)
	articles := testArticles("a", "b")

	g.FilterHeadlines(context.Background(), articles, testModel, 10)
	g.FilterHeadlines(context.Background(), articles, testModel, 10)
	assert.Equal(t, 2, provider.calls, "expired entries are not served")
}

func TestFilterHeadlinesIgnoresOutOfRangeIndices(t *testing.T) {
	provider := &fakeProvider{responses: []string{`{"relevant_indices": [1, 99, -3]}`}}
	g := newTestGateway(provider, newMemoryCache())

	kept := g.FilterHeadlines(context.Background(), testArticles("a", "b"), testModel, 10)
	require.Len(t, kept, 1)
	assert.Equal(t, "b", kept[0].Title)
}

func TestFilterHeadlinesFallbackKeepsFirstN(t *testing.T) {
	provider := &fakeProvider{err: errors.New("connection refused")}
	g := newTestGateway(provider, newMemoryCache())

	kept := g.FilterHeadlines(context.Background(), testArticles("a", "b", "c", "d"), testModel, 2)
	require.Len(t, kept, 2)
	assert.Equal(t, "a", kept[0].Title)
	assert.Equal(t, "b", kept[1].Title)
	assert.Equal(t, 3, provider.calls, "transport failure is retried before falling back")
}

func TestAnalyzeArticleClampsOutOfRange(t *testing.T) {
	provider := &fakeProvider{responses: []string{
		`{"ticker": "AAPL", "sentiment_score": 3.5, "confidence": 1.7, "reasoning": "euphoric model"}`,
	}}
	g := newTestGateway(provider, newMemoryCache())

	result := g.AnalyzeArticle(context.Background(), "session-1", testArticles("a")[0], testModel)
	assert.Equal(t, 1.0, result.Sentiment)
	assert.Equal(t, 1.0, result.Confidence)
	assert.Equal(t, "AAPL", result.Ticker)
}

func TestAnalyzeArticleFallbackOnPersistentFailure(t *testing.T) {
	provider := &fakeProvider{err: errors.New("connection refused")}
	g := newTestGateway(provider, newMemoryCache())

	article := testArticles("a")[0]
	article.TickerHint = "TSLA"

	result := g.AnalyzeArticle(context.Background(), "session-1", article, testModel)
	assert.Equal(t, 3, provider.calls)
	assert.Equal(t, "TSLA", result.Ticker, "fallback keeps the ticker hint")
	assert.Equal(t, 0.0, result.Sentiment)
	assert.Equal(t, 0.1, result.Confidence)
	assert.Equal(t, FallbackModelID, result.ModelID)
	assert.Contains(t, result.Reasoning, "analysis unavailable")
}

func TestAnalyzeArticleFallbackWithoutHintIsUnknown(t *testing.T) {
	provider := &fakeProvider{err: errors.New("connection refused")}
	g := newTestGateway(provider, newMemoryCache())

	result := g.AnalyzeArticle(context.Background(), "session-1", testArticles("a")[0], testModel)
	assert.Equal(t, models.TickerUnknown, result.Ticker)
}

func TestAnalyzeArticleInvalidResponseNotRetried(t *testing.T) {
	provider := &fakeProvider{responses: []string{"the market looks great today"}}
	g := newTestGateway(provider, newMemoryCache())

	result := g.AnalyzeArticle(context.Background(), "session-1", testArticles("a")[0], testModel)
	assert.Equal(t, 1, provider.calls, "unusable output is permanent, not retried")
	assert.Equal(t, FallbackModelID, result.ModelID)
}

func TestAnalyzeArticleUnsupportedModel(t *testing.T) {
	provider := &fakeProvider{responses: []string{"unused"}}
	g := newTestGateway(provider, newMemoryCache())

	result := g.AnalyzeArticle(context.Background(), "session-1", testArticles("a")[0], "mystery-9000")
	assert.Equal(t, 0, provider.calls)
	assert.Equal(t, FallbackModelID, result.ModelID)
}

func TestGenerateSummaryReportsFallback(t *testing.T) {
	provider := &fakeProvider{err: errors.New("connection refused")}
	g := newTestGateway(provider, newMemoryCache())

	_, fromModel := g.GenerateSummary(context.Background(), []*models.EnrichmentResult{
		{Ticker: "AAPL", ArticleURL: "https://example.com/a"},
	}, nil, testModel)
	assert.False(t, fromModel)
}

func TestGenerateSummarySuccess(t *testing.T) {
	provider := &fakeProvider{responses: []string{
		`{"overall_sentiment": "positive", "summary": "tech rally", "stocks_to_watch": ["AAPL"]}`,
	}}
	g := newTestGateway(provider, newMemoryCache())

	payload, fromModel := g.GenerateSummary(context.Background(), []*models.EnrichmentResult{
		{Ticker: "AAPL", ArticleURL: "https://example.com/a"},
	}, nil, testModel)
	require.True(t, fromModel)
	assert.Equal(t, "positive", payload.OverallSentiment)
	assert.Equal(t, []string{"AAPL"}, payload.StocksToWatch)
}

func TestProviderFor(t *testing.T) {
	tests := []struct {
		modelID string
		want    string
		wantErr bool
	}{
		{"gpt-4o-mini", ProviderOpenAI, false},
		{"o1-preview", ProviderOpenAI, false},
		{"claude-sonnet-4-5", ProviderAnthropic, false},
		{"gemini-pro", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.modelID, func(t *testing.T) {
			got, err := ProviderFor(tt.modelID)
			if tt.wantErr {
				assert.ErrorIs(t, err, interfaces.ErrUnsupportedModel)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
