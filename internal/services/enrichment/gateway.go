package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/finsignal/finsignal/internal/common"
	"github.com/finsignal/finsignal/internal/interfaces"
	"github.com/finsignal/finsignal/internal/models"
)

// FallbackModelID marks results produced without a model call.
const FallbackModelID = "fallback"

// Call-kind temperatures. Classification wants determinism, prose less so.
var kindTemperature = map[models.AnalysisKind]float64{
	models.AnalysisKindHeadlineFilter: 0.1,
	models.AnalysisKindSentiment:      0.2,
	models.AnalysisKindMarketSummary:  0.4,
}

// Gateway is the single entry point for language-model enrichment. It owns
// caching, bounded retry, response validation, clamping and the fallback
// policy; callers always get a usable result.
type Gateway struct {
	providers map[string]interfaces.LLMProvider
	cache     interfaces.CacheStorage
	cfg       common.LLMConfig
	ttl       common.CacheConfig
	observer  interfaces.GatewayObserver
	logger    arbor.ILogger

	now func() time.Time
}

// NewGateway creates an enrichment gateway. The observer receives cache and
// call observations; pass nil to disable.
func NewGateway(
	providers map[string]interfaces.LLMProvider,
	cache interfaces.CacheStorage,
	cfg common.LLMConfig,
	ttl common.CacheConfig,
	observer interfaces.GatewayObserver,
	logger arbor.ILogger,
) *Gateway {
	return &Gateway{
		providers: providers,
		cache:     cache,
		cfg:       cfg,
		ttl:       ttl,
		observer:  observer,
		logger:    logger,
		now:       time.Now,
	}
}

// FilterHeadlines asks the model which articles matter for trading. On
// permanent failure it falls back to the first limit items unfiltered, so
// the pipeline never stalls here.
func (g *Gateway) FilterHeadlines(ctx context.Context, articles []*models.Article, modelID string, limit int) []*models.Article {
	if len(articles) == 0 {
		return nil
	}

	titles := make([]string, len(articles))
	for i, a := range articles {
		titles[i] = a.Title
	}

	// The cache key is order-independent, so the prompt and the cached
	// indices must address the sorted title list. A hit on a permuted
	// arrival of the same headline set then reproduces the same selection.
	sorted := make([]string, len(titles))
	copy(sorted, titles)
	sort.Strings(sorted)

	var raw rawFilterResponse
	err := g.callValidated(ctx, models.AnalysisKindHeadlineFilter, modelID,
		HeadlinePayload(titles), buildFilterPrompt(sorted, limit), &raw)
	if err != nil {
		g.observe("filter_fallback", map[string]interface{}{"error": err.Error()})
		g.logger.Warn().Err(err).Msg("Headline filter failed, keeping first items unfiltered")
		if len(articles) <= limit {
			return articles
		}
		return articles[:limit]
	}

	selected := make(map[string]int, len(raw.RelevantIndices))
	seenIdx := make(map[int]bool, len(raw.RelevantIndices))
	for _, idx := range raw.RelevantIndices {
		if idx >= 0 && idx < len(sorted) && !seenIdx[idx] {
			seenIdx[idx] = true
			selected[sorted[idx]]++
		}
	}

	var kept []*models.Article
	for _, a := range articles {
		if selected[a.Title] > 0 {
			selected[a.Title]--
			kept = append(kept, a)
		}
	}
	if limit > 0 && len(kept) > limit {
		kept = kept[:limit]
	}
	return kept
}

// AnalyzeArticle produces the sentiment result for one article. On permanent
// failure the result is neutral (score 0, confidence 0.1), tagged with the
// ticker hint when known, with the error carried in the reasoning.
func (g *Gateway) AnalyzeArticle(ctx context.Context, sessionID string, article *models.Article, modelID string) *models.EnrichmentResult {
	result := &models.EnrichmentResult{
		ID:         uuid.New().String(),
		ArticleID:  article.ID,
		ArticleURL: article.URL,
		SessionID:  sessionID,
		ModelID:    modelID,
		CreatedAt:  g.now(),
	}

	body := article.Content
	if body == "" {
		body = article.Summary
	}

	var raw rawSentimentResponse
	err := g.callValidated(ctx, models.AnalysisKindSentiment, modelID,
		ArticlePayload(article.Title, body), buildSentimentPrompt(article), &raw)
	if err != nil {
		g.observe("sentiment_fallback", map[string]interface{}{
			"article_url": article.URL,
			"error":       err.Error(),
		})
		result.Ticker = article.TickerHint
		if result.Ticker == "" {
			result.Ticker = models.TickerUnknown
		}
		result.Sentiment = 0
		result.Confidence = 0.1
		result.Reasoning = fmt.Sprintf("analysis unavailable: %v", err)
		result.ModelID = FallbackModelID
		return result
	}

	result.Ticker = raw.Ticker
	if result.Ticker == "" {
		result.Ticker = models.TickerUnknown
	}
	result.Sentiment = clamp(*raw.Sentiment, -1, 1)
	result.Confidence = clamp(*raw.Confidence, 0, 1)
	result.Catalysts = toCatalysts(raw.Catalysts)
	result.Reasoning = raw.Reasoning
	return result
}

// GenerateSummary produces the session market summary. On permanent failure
// it returns the deterministic aggregation instead; the bool reports whether
// the model produced the payload.
func (g *Gateway) GenerateSummary(ctx context.Context, results []*models.EnrichmentResult, positions []*models.Position, modelID string) (models.SummaryPayload, bool) {
	var raw rawSummaryResponse
	err := g.callValidated(ctx, models.AnalysisKindMarketSummary, modelID,
		SummaryPayloadKey(results), buildSummaryPrompt(results, positions), &raw)
	if err != nil {
		g.observe("summary_fallback", map[string]interface{}{"error": err.Error()})
		g.logger.Warn().Err(err).Msg("Summary generation failed, using deterministic fallback")
		return models.SummaryPayload{}, false
	}

	return models.SummaryPayload{
		OverallSentiment: raw.OverallSentiment,
		Summary:          raw.Summary,
		StocksToWatch:    raw.StocksToWatch,
		KeyCatalysts:     raw.KeyCatalysts,
		RiskFactors:      raw.RiskFactors,
	}, true
}

// callValidated runs the full gateway sequence for one call: cache lookup,
// provider resolution, bounded retry with exponential backoff on transport
// failure, shape validation, cache store. Validation failure is permanent
// and is not retried.
func (g *Gateway) callValidated(ctx context.Context, kind models.AnalysisKind, modelID, payload, prompt string, target interface{}) error {
	key := CacheKey(kind, modelID, payload)

	if entry, err := g.cache.Get(ctx, key); err == nil {
		if err := json.Unmarshal(entry.Value, target); err == nil {
			g.observe("cache_hit", map[string]interface{}{"kind": string(kind), "key": key})
			return nil
		}
		// Undecodable entry: treat as a miss and overwrite below.
		g.logger.Warn().Str("key", key).Msg("Discarding undecodable cache entry")
	} else if !errors.Is(err, interfaces.ErrNotFound) {
		g.logger.Warn().Err(err).Str("key", key).Msg("Cache lookup failed")
	}
	g.observe("cache_miss", map[string]interface{}{"kind": string(kind), "key": key})

	provider, err := resolveProvider(g.providers, modelID)
	if err != nil {
		return err
	}

	response, err := g.callWithRetry(ctx, provider, prompt, modelID, kindTemperature[kind])
	if err != nil {
		return err
	}

	if err := parseResponse(response, target); err != nil {
		return fmt.Errorf("invalid %s response: %w", kind, err)
	}

	value, err := json.Marshal(target)
	if err == nil {
		now := g.now()
		entry := &models.CacheEntry{
			Key:       key,
			Kind:      kind,
			ModelID:   modelID,
			Value:     value,
			CreatedAt: now,
			ExpiresAt: now.Add(g.ttlFor(kind)),
		}
		if err := g.cache.Set(ctx, entry); err != nil {
			g.logger.Warn().Err(err).Str("key", key).Msg("Failed to store cache entry")
		}
	}

	return nil
}

// callWithRetry attempts the provider call up to MaxAttempts times, backing
// off exponentially between attempts. Only transport-level failures retry.
func (g *Gateway) callWithRetry(ctx context.Context, provider interfaces.LLMProvider, prompt, modelID string, temperature float64) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= g.cfg.MaxAttempts; attempt++ {
		response, err := provider.Call(ctx, prompt, modelID, temperature)
		if err == nil {
			return response, nil
		}
		lastErr = err

		g.observe("provider_retry", map[string]interface{}{
			"provider": provider.Name(),
			"attempt":  attempt,
			"error":    err.Error(),
		})
		g.logger.Warn().
			Err(err).
			Str("provider", provider.Name()).
			Str("model", modelID).
			Int("attempt", attempt).
			Msg("Provider call failed")

		if attempt == g.cfg.MaxAttempts {
			break
		}

		backoff := g.cfg.BaseBackoff * time.Duration(1<<(attempt-1))
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}
	return "", fmt.Errorf("provider call failed after %d attempts: %w", g.cfg.MaxAttempts, lastErr)
}

func (g *Gateway) ttlFor(kind models.AnalysisKind) time.Duration {
	switch kind {
	case models.AnalysisKindMarketSummary:
		return g.ttl.SummaryTTL
	case models.AnalysisKindHeadlineFilter:
		return g.ttl.FilterTTL
	default:
		return g.ttl.SentimentTTL
	}
}

func (g *Gateway) observe(action string, details map[string]interface{}) {
	if g.observer != nil {
		g.observer(action, details)
	}
}
