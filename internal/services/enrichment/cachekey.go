package enrichment

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/finsignal/finsignal/internal/models"
)

// CacheKey derives the content-addressed key for one gateway call. Keys are
// pure functions of the canonical payload: callers that present the same
// semantic input in a different order must land on the same entry, so
// collection payloads are sorted before hashing. A full SHA-256 digest is
// used; truncating it would make distinct inputs collide.
func CacheKey(kind models.AnalysisKind, modelID string, payload string) string {
	sum := sha256.Sum256([]byte(payload))
	return string(kind) + ":" + modelID + ":" + hex.EncodeToString(sum[:])
}

// HeadlinePayload canonicalizes a headline set: sorted by title, joined with
// an unambiguous separator.
func HeadlinePayload(titles []string) string {
	sorted := make([]string, len(titles))
	copy(sorted, titles)
	sort.Strings(sorted)
	return strings.Join(sorted, "\x1f")
}

// ArticlePayload canonicalizes one article for sentiment analysis. Title and
// body together identify the semantic input; the URL is deliberately
// excluded so syndicated copies of the same text share an entry.
func ArticlePayload(title, content string) string {
	return strings.TrimSpace(title) + "\x1f" + strings.TrimSpace(content)
}

// SummaryPayloadKey canonicalizes the inputs of a market-summary call:
// the analyzed tickers with their scores, sorted.
func SummaryPayloadKey(results []*models.EnrichmentResult) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, r.Ticker+"\x1e"+r.ArticleURL)
	}
	sort.Strings(parts)
	return strings.Join(parts, "\x1f")
}
