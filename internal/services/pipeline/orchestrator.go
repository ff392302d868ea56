// Package pipeline drives one analysis session end to end: scrape, dedupe,
// filter, fetch content, store, analyze, derive positions, summarize. The
// orchestrator is the only writer of session stage.
package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/finsignal/finsignal/internal/common"
	"github.com/finsignal/finsignal/internal/interfaces"
	"github.com/finsignal/finsignal/internal/models"
	"github.com/finsignal/finsignal/internal/services/aggregate"
	"github.com/finsignal/finsignal/internal/services/dedup"
	"github.com/finsignal/finsignal/internal/services/enrichment"
)

// Worker bounds for the fan-out stages.
const (
	contentWorkers  = 4
	analysisWorkers = 4
)

// Orchestrator runs analysis sessions through their stages.
type Orchestrator struct {
	adapters    map[string]interfaces.SourceAdapter
	limiter     interfaces.RateLimiter
	transport   *http.Client
	dedup       *dedup.Service
	gateway     *enrichment.Gateway
	storage     interfaces.StorageManager
	broadcaster interfaces.Broadcaster
	cfg         common.PipelineConfig
	logger      arbor.ILogger

	// Throttles per-item progress events. Stage transitions always go out.
	progress *rate.Limiter
}

// NewOrchestrator wires a session orchestrator.
func NewOrchestrator(
	adapters map[string]interfaces.SourceAdapter,
	limiter interfaces.RateLimiter,
	transport *http.Client,
	dedupSvc *dedup.Service,
	gateway *enrichment.Gateway,
	storage interfaces.StorageManager,
	broadcaster interfaces.Broadcaster,
	cfg common.PipelineConfig,
	progressInterval time.Duration,
	logger arbor.ILogger,
) *Orchestrator {
	if progressInterval <= 0 {
		progressInterval = time.Second
	}
	return &Orchestrator{
		adapters:    adapters,
		limiter:     limiter,
		transport:   transport,
		dedup:       dedupSvc,
		gateway:     gateway,
		storage:     storage,
		broadcaster: broadcaster,
		cfg:         cfg,
		logger:      logger,
		progress:    rate.NewLimiter(rate.Every(progressInterval), 1),
	}
}

// Run executes the full stage sequence for one session. The session must
// already be persisted in the pending stage. Run never returns a partial
// session: it always lands on completed or error.
func (o *Orchestrator) Run(ctx context.Context, session *models.AnalysisSession) {
	articles, counts, err := o.scrape(ctx, session)
	if err != nil {
		o.fail(ctx, session, err)
		return
	}

	articles = o.dedup.Dedupe(articles)
	if len(articles) == 0 {
		o.fail(ctx, session, fmt.Errorf("no articles scraped from configured sources"))
		return
	}

	o.setStage(ctx, session, models.StageFiltering,
		fmt.Sprintf("Filtering %d headlines", len(articles)),
		map[string]interface{}{"articles": len(articles)})
	articles = o.gateway.FilterHeadlines(ctx, articles, session.ModelID, o.cfg.HeadlineLimit)
	if len(articles) == 0 {
		// A valid "nothing relevant" verdict. The session still runs to
		// completion with empty analyses and the deterministic summary.
		o.logger.Warn().Str("session_id", session.ID).Msg("No headlines survived filtering")
		o.audit(ctx, session.ID, "warn", "filtering", "filter_empty",
			"No headlines survived filtering", nil)
	}

	if !session.HeadlineOnly {
		o.setStage(ctx, session, models.StageContentScraping,
			fmt.Sprintf("Fetching content for %d articles", len(articles)),
			map[string]interface{}{"articles": len(articles)})
		o.fetchContent(ctx, session, articles)
	}

	o.setStage(ctx, session, models.StageStoring,
		fmt.Sprintf("Storing %d articles", len(articles)),
		map[string]interface{}{"articles": len(articles)})
	articles = o.store(ctx, session, articles)

	o.setStage(ctx, session, models.StageAnalyzing,
		fmt.Sprintf("Analyzing %d articles", len(articles)),
		map[string]interface{}{"articles": len(articles)})
	results := o.analyze(ctx, session, articles)

	o.setStage(ctx, session, models.StageGenerating,
		"Deriving positions", nil)
	positions := aggregate.Aggregate(results, session.MaxPositions, session.MinConfidence)
	for _, position := range positions {
		position.SessionID = session.ID
		if err := o.storage.PositionStorage().SavePosition(ctx, position); err != nil {
			o.logger.Warn().Err(err).Str("ticker", position.Ticker).Msg("Failed to save position")
		}
	}

	o.setStage(ctx, session, models.StageSummarizing,
		"Generating market summary", map[string]interface{}{"positions": len(positions)})
	o.summarize(ctx, session, results, positions, counts)

	now := time.Now()
	session.Stage = models.StageCompleted
	session.FinishedAt = &now
	if err := o.storage.SessionStorage().UpdateSession(ctx, session); err != nil {
		o.logger.Error().Err(err).Str("session_id", session.ID).Msg("Failed to persist completed session")
	}
	o.broadcaster.Broadcast(session.ID, models.NewStatusEvent(session.ID, models.StageCompleted,
		"Analysis complete", map[string]interface{}{
			"articles":  len(articles),
			"positions": len(positions),
		}))
	o.audit(ctx, session.ID, "info", "pipeline", "session_completed",
		fmt.Sprintf("Session completed with %d positions", len(positions)), nil)
}

// scrape fans out over the session's sources concurrently and recombines
// the batches in sorted source order, so identical inputs always yield the
// same article sequence.
func (o *Orchestrator) scrape(ctx context.Context, session *models.AnalysisSession) ([]*models.Article, map[string]int, error) {
	sourceIDs := make([]string, 0, len(session.Sources))
	for _, id := range session.Sources {
		if _, ok := o.adapters[id]; !ok {
			return nil, nil, fmt.Errorf("unknown source %q", id)
		}
		sourceIDs = append(sourceIDs, id)
	}
	sort.Strings(sourceIDs)

	o.setStage(ctx, session, models.StageScraping,
		fmt.Sprintf("Scraping %d sources", len(sourceIDs)),
		map[string]interface{}{"sources": sourceIDs})

	type batch struct {
		items []*models.Article
		err   error
	}
	batches := make(map[string]*batch, len(sourceIDs))

	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, id := range sourceIDs {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			items, err := o.adapters[id].FetchItems(ctx, o.transport, o.limiter)
			mu.Lock()
			batches[id] = &batch{items: items, err: err}
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	var combined []*models.Article
	counts := make(map[string]int, len(sourceIDs))
	failures := 0
	for _, id := range sourceIDs {
		b := batches[id]
		if b.err != nil {
			failures++
			o.logger.Warn().Err(b.err).Str("source", id).Msg("Source scrape failed")
			o.audit(ctx, session.ID, "warn", "scraping", "source_failed",
				fmt.Sprintf("Source %s failed: %v", id, b.err), map[string]interface{}{"source": id})
			continue
		}
		counts[id] = len(b.items)
		if len(b.items) == 0 {
			o.audit(ctx, session.ID, "warn", "scraping", "source_empty",
				fmt.Sprintf("Source %s yielded nothing", id), map[string]interface{}{"source": id})
		}
		combined = append(combined, b.items...)
	}

	if failures == len(sourceIDs) {
		return nil, nil, fmt.Errorf("all %d sources failed", len(sourceIDs))
	}
	return combined, counts, nil
}

// fetchContent fills in article bodies with a bounded worker pool. A failed
// fetch leaves the article with its summary; it is not fatal.
func (o *Orchestrator) fetchContent(ctx context.Context, session *models.AnalysisSession, articles []*models.Article) {
	sem := make(chan struct{}, contentWorkers)
	var wg sync.WaitGroup
	var done int64
	var mu sync.Mutex

	for _, article := range articles {
		wg.Add(1)
		sem <- struct{}{}
		go func(article *models.Article) {
			defer wg.Done()
			defer func() { <-sem }()

			adapter, ok := o.adapters[article.SourceID]
			if !ok {
				return
			}
			content, err := adapter.FetchContent(ctx, o.transport, article.URL, o.limiter)
			if err != nil {
				o.logger.Debug().Err(err).Str("url", article.URL).Msg("Content fetch failed, keeping summary")
			} else if content != "" {
				article.Content = content
			}

			mu.Lock()
			done++
			current := done
			mu.Unlock()
			o.progressEvent(session, models.StageContentScraping,
				fmt.Sprintf("Fetched %d of %d articles", current, len(articles)),
				map[string]interface{}{"done": current, "total": len(articles)})
		}(article)
	}
	wg.Wait()
}

// store commits the batch through duplicate detection and returns the stored
// instances in batch order. Items that duplicate an already stored article
// continue under the stored instance.
func (o *Orchestrator) store(ctx context.Context, session *models.AnalysisSession, articles []*models.Article) []*models.Article {
	stored := make([]*models.Article, 0, len(articles))
	seen := make(map[string]bool, len(articles))
	for _, article := range articles {
		result, created, err := o.storage.ArticleStorage().FindOrCreate(ctx, article)
		if err != nil {
			o.logger.Warn().Err(err).Str("url", article.URL).Msg("Failed to store article")
			continue
		}
		if seen[result.URL] {
			continue
		}
		seen[result.URL] = true
		if !created && article.Content != "" && result.Content == "" {
			result.Content = article.Content
			if err := o.storage.ArticleStorage().SaveArticle(ctx, result); err != nil {
				o.logger.Debug().Err(err).Str("url", result.URL).Msg("Failed to backfill article content")
			}
		}
		stored = append(stored, result)
	}
	return stored
}

// analyze runs per-article enrichment with a bounded worker pool. Results
// recombine by input index, so output order matches article order no matter
// which call finishes first.
func (o *Orchestrator) analyze(ctx context.Context, session *models.AnalysisSession, articles []*models.Article) []*models.EnrichmentResult {
	results := make([]*models.EnrichmentResult, len(articles))
	sem := make(chan struct{}, analysisWorkers)
	var wg sync.WaitGroup
	var done int64
	var mu sync.Mutex

	for i, article := range articles {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, article *models.Article) {
			defer wg.Done()
			defer func() { <-sem }()

			results[i] = o.gateway.AnalyzeArticle(ctx, session.ID, article, session.ModelID)

			mu.Lock()
			done++
			current := done
			mu.Unlock()
			o.progressEvent(session, models.StageAnalyzing,
				fmt.Sprintf("Analyzed %d of %d articles", current, len(articles)),
				map[string]interface{}{"done": current, "total": len(articles)})
		}(i, article)
	}
	wg.Wait()

	for _, result := range results {
		if err := o.storage.AnalysisStorage().SaveAnalysis(ctx, result); err != nil {
			o.logger.Warn().Err(err).Str("ticker", result.Ticker).Msg("Failed to save analysis result")
		}
	}
	return results
}

// summarize produces and stores the session market summary, falling back to
// the deterministic aggregation when the model cannot. A storage failure is
// logged, never propagated.
func (o *Orchestrator) summarize(ctx context.Context, session *models.AnalysisSession, results []*models.EnrichmentResult, positions []*models.Position, counts map[string]int) {
	var payload models.SummaryPayload
	fromModel := false
	if len(results) > 0 {
		payload, fromModel = o.gateway.GenerateSummary(ctx, results, positions, session.ModelID)
	}
	modelID := session.ModelID
	if !fromModel {
		payload = aggregate.FallbackSummary(results, positions, session.MaxPositions)
		modelID = enrichment.FallbackModelID
	}

	summary := &models.MarketSummary{
		SessionID:        session.ID,
		Payload:          payload,
		ModelID:          modelID,
		DataSourceCounts: counts,
		HeadlineOnly:     session.HeadlineOnly,
	}
	if err := o.storage.SummaryStorage().SaveSummary(ctx, summary); err != nil {
		o.logger.Error().Err(err).Str("session_id", session.ID).Msg("Failed to save market summary")
	}
}

// setStage advances the session, persists it and broadcasts the transition.
func (o *Orchestrator) setStage(ctx context.Context, session *models.AnalysisSession, stage models.SessionStage, message string, data map[string]interface{}) {
	session.Stage = stage
	if err := o.storage.SessionStorage().UpdateSession(ctx, session); err != nil {
		o.logger.Error().Err(err).
			Str("session_id", session.ID).
			Str("stage", string(stage)).
			Msg("Failed to persist session stage")
	}
	o.broadcaster.Broadcast(session.ID, models.NewStatusEvent(session.ID, stage, message, data))
	o.audit(ctx, session.ID, "info", "pipeline", "stage_"+string(stage), message, data)
}

// progressEvent emits a throttled per-item update on the current stage.
func (o *Orchestrator) progressEvent(session *models.AnalysisSession, stage models.SessionStage, message string, data map[string]interface{}) {
	if !o.progress.Allow() {
		return
	}
	o.broadcaster.Broadcast(session.ID, models.NewStatusEvent(session.ID, stage, message, data))
}

// fail lands the session in the error stage.
func (o *Orchestrator) fail(ctx context.Context, session *models.AnalysisSession, cause error) {
	o.logger.Error().Err(cause).Str("session_id", session.ID).Msg("Session failed")

	now := time.Now()
	session.Stage = models.StageError
	session.Error = cause.Error()
	session.FinishedAt = &now
	if err := o.storage.SessionStorage().UpdateSession(ctx, session); err != nil {
		o.logger.Error().Err(err).Str("session_id", session.ID).Msg("Failed to persist failed session")
	}
	o.broadcaster.Broadcast(session.ID, models.NewStatusEvent(session.ID, models.StageError,
		cause.Error(), nil))
	o.audit(ctx, session.ID, "error", "pipeline", "session_failed", cause.Error(), nil)
}

// audit appends to the activity trail; failures are logged and swallowed.
func (o *Orchestrator) audit(ctx context.Context, sessionID, level, category, action, message string, details map[string]interface{}) {
	entry := &models.ActivityLog{
		Level:     level,
		Category:  category,
		Action:    action,
		Message:   message,
		Details:   details,
		SessionID: sessionID,
	}
	if err := o.storage.ActivityStorage().Append(ctx, entry); err != nil {
		o.logger.Debug().Err(err).Str("action", action).Msg("Failed to append activity entry")
	}
}
