package pipeline

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsignal/finsignal/internal/common"
	"github.com/finsignal/finsignal/internal/interfaces"
	"github.com/finsignal/finsignal/internal/models"
	"github.com/finsignal/finsignal/internal/services/dedup"
	"github.com/finsignal/finsignal/internal/services/enrichment"
)

// ---- in-memory doubles ----

type memStorage struct {
	mu        sync.Mutex
	articles  map[string]*models.Article
	analyses  []*models.EnrichmentResult
	positions []*models.Position
	summaries map[string]*models.MarketSummary
	sessions  map[string]*models.AnalysisSession
	activity  []*models.ActivityLog
	cache     map[string]*models.CacheEntry

	positionErr error
	summaryErr  error
}

func newMemStorage() *memStorage {
	return &memStorage{
		articles:  make(map[string]*models.Article),
		summaries: make(map[string]*models.MarketSummary),
		sessions:  make(map[string]*models.AnalysisSession),
		cache:     make(map[string]*models.CacheEntry),
	}
}

func (m *memStorage) ArticleStorage() interfaces.ArticleStorage   { return m }
func (m *memStorage) AnalysisStorage() interfaces.AnalysisStorage { return m }
func (m *memStorage) PositionStorage() interfaces.PositionStorage { return m }
func (m *memStorage) SummaryStorage() interfaces.SummaryStorage   { return m }
func (m *memStorage) SessionStorage() interfaces.SessionStorage   { return m }
func (m *memStorage) ActivityStorage() interfaces.ActivityStorage { return m }
func (m *memStorage) CacheStorage() interfaces.CacheStorage       { return m }
func (m *memStorage) Close() error                                { return nil }

func (m *memStorage) SaveArticle(ctx context.Context, article *models.Article) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.articles[article.URL] = article
	return nil
}

func (m *memStorage) GetArticleByURL(ctx context.Context, url string) (*models.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.articles[url]; ok {
		return a, nil
	}
	return nil, interfaces.ErrNotFound
}

func (m *memStorage) FindOrCreate(ctx context.Context, article *models.Article) (*models.Article, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.articles[article.URL]; ok {
		return existing, false, nil
	}
	m.articles[article.URL] = article
	return article, true, nil
}

func (m *memStorage) ListArticles(ctx context.Context, limit int) ([]*models.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Article
	for _, a := range m.articles {
		out = append(out, a)
	}
	return out, nil
}

func (m *memStorage) SaveAnalysis(ctx context.Context, result *models.EnrichmentResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.analyses = append(m.analyses, result)
	return nil
}

func (m *memStorage) ListAnalysesBySession(ctx context.Context, sessionID string) ([]*models.EnrichmentResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.EnrichmentResult
	for _, r := range m.analyses {
		if r.SessionID == sessionID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStorage) SavePosition(ctx context.Context, position *models.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.positionErr != nil {
		return m.positionErr
	}
	m.positions = append(m.positions, position)
	return nil
}

func (m *memStorage) ListPositionsBySession(ctx context.Context, sessionID string) ([]*models.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Position
	for _, p := range m.positions {
		if p.SessionID == sessionID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStorage) SaveSummary(ctx context.Context, summary *models.MarketSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.summaryErr != nil {
		return m.summaryErr
	}
	m.summaries[summary.SessionID] = summary
	return nil
}

func (m *memStorage) GetSummaryBySession(ctx context.Context, sessionID string) (*models.MarketSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.summaries[sessionID]; ok {
		return s, nil
	}
	return nil, interfaces.ErrNotFound
}

func (m *memStorage) SaveSession(ctx context.Context, session *models.AnalysisSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = session
	return nil
}

func (m *memStorage) GetSession(ctx context.Context, id string) (*models.AnalysisSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	return nil, interfaces.ErrNotFound
}

func (m *memStorage) UpdateSession(ctx context.Context, session *models.AnalysisSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = session
	return nil
}

func (m *memStorage) Append(ctx context.Context, entry *models.ActivityLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activity = append(m.activity, entry)
	return nil
}

func (m *memStorage) ListBySession(ctx context.Context, sessionID string, limit int) ([]*models.ActivityLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.ActivityLog
	for _, e := range m.activity {
		if e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStorage) Get(ctx context.Context, key string) (*models.CacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.cache[key]; ok && !e.Expired(time.Now()) {
		return e, nil
	}
	return nil, interfaces.ErrNotFound
}

func (m *memStorage) Set(ctx context.Context, entry *models.CacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[entry.Key] = entry
	return nil
}

func (m *memStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, key)
	return nil
}

func (m *memStorage) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}

type fakeAdapter struct {
	id            string
	items         []*models.Article
	err           error
	mu            sync.Mutex
	contentCalls  int
	contentResult string
}

func (a *fakeAdapter) ID() string { return a.id }

func (a *fakeAdapter) FetchItems(ctx context.Context, transport *http.Client, limiter interfaces.RateLimiter) ([]*models.Article, error) {
	if a.err != nil {
		return nil, a.err
	}
	return a.items, nil
}

func (a *fakeAdapter) FetchContent(ctx context.Context, transport *http.Client, url string, limiter interfaces.RateLimiter) (string, error) {
	a.mu.Lock()
	a.contentCalls++
	a.mu.Unlock()
	return a.contentResult, nil
}

func (a *fakeAdapter) fetchCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.contentCalls
}

type noopLimiter struct{}

func (noopLimiter) Admit(ctx context.Context, origin string) error { return nil }

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []models.StatusEvent
}

func (b *recordingBroadcaster) Broadcast(sessionID string, event models.StatusEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *recordingBroadcaster) stages() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, e := range b.events {
		if len(out) == 0 || out[len(out)-1] != e.Status {
			out = append(out, e.Status)
		}
	}
	return out
}

// promptProvider answers by prompt shape, so concurrent calls in any order
// get the right kind of response.
type promptProvider struct {
	mu             sync.Mutex
	calls          int
	err            error
	filterResponse string
}

func (p *promptProvider) Call(ctx context.Context, prompt, model string, temperature float64) (string, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	switch {
	case strings.Contains(prompt, "relevant_indices"):
		if p.filterResponse != "" {
			return p.filterResponse, nil
		}
		return `{"relevant_indices": [0, 1]}`, nil
	case strings.Contains(prompt, "overall_sentiment"):
		return `{"overall_sentiment": "positive", "summary": "tech leads a broad rally"}`, nil
	default:
		return `{"ticker": "AAPL", "sentiment_score": 0.8, "confidence": 0.9, "reasoning": "strong results"}`, nil
	}
}

func (p *promptProvider) Name() string { return enrichment.ProviderOpenAI }

func (p *promptProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// ---- fixtures ----

func testGateway(storage *memStorage, provider interfaces.LLMProvider) *enrichment.Gateway {
	return enrichment.NewGateway(
		map[string]interfaces.LLMProvider{enrichment.ProviderOpenAI: provider},
		storage,
		common.LLMConfig{MaxAttempts: 2, BaseBackoff: time.Millisecond},
		common.CacheConfig{FilterTTL: time.Hour, SentimentTTL: time.Hour, SummaryTTL: time.Hour},
		nil,
		common.GetLogger(),
	)
}

func testOrchestrator(storage *memStorage, adapters map[string]interfaces.SourceAdapter, provider interfaces.LLMProvider, broadcaster interfaces.Broadcaster) *Orchestrator {
	return NewOrchestrator(
		adapters,
		noopLimiter{},
		&http.Client{Timeout: time.Second},
		dedup.NewService(common.GetLogger()),
		testGateway(storage, provider),
		storage,
		broadcaster,
		common.PipelineConfig{MaxPositions: 5, MinConfidence: 0.5, HeadlineLimit: 20},
		time.Millisecond,
		common.GetLogger(),
	)
}

func newSession(headlineOnly bool, sources ...string) *models.AnalysisSession {
	return &models.AnalysisSession{
		ID:            "session-1",
		Sources:       sources,
		ModelID:       "gpt-4o-mini",
		MaxPositions:  5,
		MinConfidence: 0.5,
		HeadlineOnly:  headlineOnly,
		Stage:         models.StagePending,
		StartedAt:     time.Now(),
	}
}

func feedArticles(sourceID string, titles ...string) []*models.Article {
	day := time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)
	out := make([]*models.Article, len(titles))
	for i, title := range titles {
		out[i] = &models.Article{
			SourceID:    sourceID,
			URL:         "https://example.com/" + sourceID + "/" + title,
			Title:       title,
			Summary:     "summary of " + title,
			PublishedAt: day,
		}
	}
	return out
}

// ---- tests ----

func TestRunCompletesFullPipeline(t *testing.T) {
	storage := newMemStorage()
	broadcaster := &recordingBroadcaster{}
	adapter := &fakeAdapter{
		id:            "feed_a",
		items:         feedArticles("feed_a", "Apple beats expectations", "Tesla misses deliveries"),
		contentResult: strings.Repeat("Full article body with plenty of detail. ", 20),
	}
	o := testOrchestrator(storage, map[string]interfaces.SourceAdapter{"feed_a": adapter}, &promptProvider{}, broadcaster)

	session := newSession(false, "feed_a")
	require.NoError(t, storage.SaveSession(context.Background(), session))

	o.Run(context.Background(), session)

	assert.Equal(t, models.StageCompleted, session.Stage)
	assert.Empty(t, session.Error)
	require.NotNil(t, session.FinishedAt)

	assert.Equal(t, 2, adapter.fetchCount(), "every article body is fetched")

	results, err := storage.ListAnalysesBySession(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	positions, err := storage.ListPositionsBySession(context.Background(), session.ID)
	require.NoError(t, err)
	require.Len(t, positions, 1, "both results share a ticker and fold into one position")
	assert.Equal(t, "AAPL", positions[0].Ticker)
	assert.Equal(t, models.PositionStrongBuy, positions[0].Type)

	summary, err := storage.GetSummaryBySession(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, "positive", summary.Payload.OverallSentiment)
	assert.Equal(t, "gpt-4o-mini", summary.ModelID)
	assert.Equal(t, map[string]int{"feed_a": 2}, summary.DataSourceCounts)

	stages := broadcaster.stages()
	assert.Equal(t, []string{
		"scraping", "filtering", "content_scraping", "storing",
		"analyzing", "generating", "summarizing", "completed",
	}, stages)
}

func TestRunHeadlineOnlySkipsContentScraping(t *testing.T) {
	storage := newMemStorage()
	broadcaster := &recordingBroadcaster{}
	adapter := &fakeAdapter{
		id:    "feed_a",
		items: feedArticles("feed_a", "Apple beats expectations"),
	}
	o := testOrchestrator(storage, map[string]interfaces.SourceAdapter{"feed_a": adapter}, &promptProvider{}, broadcaster)

	session := newSession(true, "feed_a")
	require.NoError(t, storage.SaveSession(context.Background(), session))

	o.Run(context.Background(), session)

	assert.Equal(t, models.StageCompleted, session.Stage)
	assert.Equal(t, 0, adapter.fetchCount(), "headline-only sessions never fetch bodies")
	assert.NotContains(t, broadcaster.stages(), "content_scraping")

	summary, err := storage.GetSummaryBySession(context.Background(), session.ID)
	require.NoError(t, err)
	assert.True(t, summary.HeadlineOnly)
}

func TestRunZeroItemsFailsSession(t *testing.T) {
	storage := newMemStorage()
	broadcaster := &recordingBroadcaster{}
	adapter := &fakeAdapter{id: "feed_a", items: nil}
	o := testOrchestrator(storage, map[string]interfaces.SourceAdapter{"feed_a": adapter}, &promptProvider{}, broadcaster)

	session := newSession(false, "feed_a")
	require.NoError(t, storage.SaveSession(context.Background(), session))

	o.Run(context.Background(), session)

	assert.Equal(t, models.StageError, session.Stage)
	assert.NotEmpty(t, session.Error)
	require.NotNil(t, session.FinishedAt)

	stages := broadcaster.stages()
	assert.Equal(t, "error", stages[len(stages)-1])
}

func TestRunAllSourcesFailedFailsSession(t *testing.T) {
	storage := newMemStorage()
	broadcaster := &recordingBroadcaster{}
	adapter := &fakeAdapter{id: "feed_a", err: errors.New("remote unreachable")}
	o := testOrchestrator(storage, map[string]interfaces.SourceAdapter{"feed_a": adapter}, &promptProvider{}, broadcaster)

	session := newSession(false, "feed_a")
	require.NoError(t, storage.SaveSession(context.Background(), session))

	o.Run(context.Background(), session)
	assert.Equal(t, models.StageError, session.Stage)
}

func TestRunPartialSourceFailureContinues(t *testing.T) {
	storage := newMemStorage()
	broadcaster := &recordingBroadcaster{}
	good := &fakeAdapter{id: "feed_a", items: feedArticles("feed_a", "Apple beats expectations")}
	bad := &fakeAdapter{id: "feed_b", err: errors.New("remote unreachable")}
	o := testOrchestrator(storage, map[string]interfaces.SourceAdapter{
		"feed_a": good,
		"feed_b": bad,
	}, &promptProvider{}, broadcaster)

	session := newSession(true, "feed_a", "feed_b")
	require.NoError(t, storage.SaveSession(context.Background(), session))

	o.Run(context.Background(), session)

	assert.Equal(t, models.StageCompleted, session.Stage)
	summary, err := storage.GetSummaryBySession(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"feed_a": 1}, summary.DataSourceCounts)
}

func TestRunUnknownSourceFailsSession(t *testing.T) {
	storage := newMemStorage()
	o := testOrchestrator(storage, map[string]interfaces.SourceAdapter{}, &promptProvider{}, &recordingBroadcaster{})

	session := newSession(false, "nope")
	require.NoError(t, storage.SaveSession(context.Background(), session))

	o.Run(context.Background(), session)
	assert.Equal(t, models.StageError, session.Stage)
	assert.Contains(t, session.Error, "nope")
}

func TestRunProviderFailureStillCompletes(t *testing.T) {
	storage := newMemStorage()
	broadcaster := &recordingBroadcaster{}
	adapter := &fakeAdapter{id: "feed_a", items: feedArticles("feed_a", "Apple beats expectations")}
	provider := &promptProvider{err: errors.New("connection refused")}
	o := testOrchestrator(storage, map[string]interfaces.SourceAdapter{"feed_a": adapter}, provider, broadcaster)

	session := newSession(true, "feed_a")
	require.NoError(t, storage.SaveSession(context.Background(), session))

	o.Run(context.Background(), session)

	// Every model call falls back, but the session still terminates cleanly
	// with neutral analyses and a deterministic summary.
	assert.Equal(t, models.StageCompleted, session.Stage)

	results, err := storage.ListAnalysesBySession(context.Background(), session.ID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, enrichment.FallbackModelID, results[0].ModelID)
	assert.Equal(t, 0.1, results[0].Confidence)

	summary, err := storage.GetSummaryBySession(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, enrichment.FallbackModelID, summary.ModelID)
	assert.NotEmpty(t, summary.Payload.Summary)
}

func TestRunEmptyFilterVerdictCompletesWithFallbackSummary(t *testing.T) {
	storage := newMemStorage()
	broadcaster := &recordingBroadcaster{}
	adapter := &fakeAdapter{id: "feed_a", items: feedArticles("feed_a", "Apple beats expectations")}
	provider := &promptProvider{filterResponse: `{"relevant_indices": []}`}
	o := testOrchestrator(storage, map[string]interfaces.SourceAdapter{"feed_a": adapter}, provider, broadcaster)

	session := newSession(true, "feed_a")
	require.NoError(t, storage.SaveSession(context.Background(), session))

	o.Run(context.Background(), session)

	// The model judged nothing relevant. That is a valid verdict, not a
	// failure: the session completes with no analyses or positions and the
	// deterministic summary.
	assert.Equal(t, models.StageCompleted, session.Stage)
	assert.Empty(t, session.Error)

	results, err := storage.ListAnalysesBySession(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Empty(t, results)

	positions, err := storage.ListPositionsBySession(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Empty(t, positions)

	summary, err := storage.GetSummaryBySession(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, enrichment.FallbackModelID, summary.ModelID)
	assert.Equal(t, "mixed", summary.Payload.OverallSentiment)

	assert.Equal(t, 1, provider.callCount(), "only the filter call reaches the model")
}

func TestRunSinkFailuresDoNotFailSession(t *testing.T) {
	storage := newMemStorage()
	storage.positionErr = errors.New("disk full")
	storage.summaryErr = errors.New("disk full")
	adapter := &fakeAdapter{id: "feed_a", items: feedArticles("feed_a", "Apple beats expectations")}
	o := testOrchestrator(storage, map[string]interfaces.SourceAdapter{"feed_a": adapter}, &promptProvider{}, &recordingBroadcaster{})

	session := newSession(true, "feed_a")
	require.NoError(t, storage.SaveSession(context.Background(), session))

	o.Run(context.Background(), session)

	// Store failures downstream of enrichment are logged and swallowed.
	assert.Equal(t, models.StageCompleted, session.Stage)
	assert.Empty(t, session.Error)

	_, err := storage.GetSummaryBySession(context.Background(), session.ID)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestRunDeduplicatesAcrossSources(t *testing.T) {
	storage := newMemStorage()
	a := &fakeAdapter{id: "feed_a", items: feedArticles("feed_a", "Apple beats expectations in Q3")}
	b := &fakeAdapter{id: "feed_b", items: feedArticles("feed_b", "Apple beats expectations in Q3.")}
	o := testOrchestrator(storage, map[string]interfaces.SourceAdapter{
		"feed_a": a,
		"feed_b": b,
	}, &promptProvider{}, &recordingBroadcaster{})

	session := newSession(true, "feed_a", "feed_b")
	require.NoError(t, storage.SaveSession(context.Background(), session))

	o.Run(context.Background(), session)

	assert.Equal(t, models.StageCompleted, session.Stage)
	results, err := storage.ListAnalysesBySession(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Len(t, results, 1, "the syndicated copy collapses into one analysis")
}
