package enrichment

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/finsignal/finsignal/internal/models"
)

var validate = validator.New()

// Raw response shapes as the providers return them, before clamping.
// Validation failure on any of these is a permanent error for the attempt
// cycle: the model produced output, it is just unusable, and asking again
// with the same prompt rarely changes that.

// An empty index list is a valid answer: the model judged nothing relevant.
type rawFilterResponse struct {
	RelevantIndices []int `json:"relevant_indices"`
}

type rawCatalyst struct {
	Type         string `json:"type" validate:"required"`
	Description  string `json:"description"`
	Impact       string `json:"impact"`
	Significance string `json:"significance"`
}

type rawSentimentResponse struct {
	Ticker     string        `json:"ticker" validate:"required"`
	Sentiment  *float64      `json:"sentiment_score" validate:"required"`
	Confidence *float64      `json:"confidence" validate:"required"`
	Catalysts  []rawCatalyst `json:"catalysts"`
	Reasoning  string        `json:"reasoning" validate:"required"`
}

type rawSummaryResponse struct {
	OverallSentiment string   `json:"overall_sentiment" validate:"required,oneof=positive negative mixed"`
	Summary          string   `json:"summary" validate:"required"`
	StocksToWatch    []string `json:"stocks_to_watch"`
	KeyCatalysts     []string `json:"key_catalysts"`
	RiskFactors      []string `json:"risk_factors"`
}

// stripCodeFence removes a surrounding markdown code fence, which models add
// even when told not to.
func stripCodeFence(response string) string {
	response = strings.TrimSpace(response)
	if !strings.HasPrefix(response, "```") {
		return response
	}
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(strings.TrimSpace(response), "```")
	return strings.TrimSpace(response)
}

// parseResponse decodes and shape-validates a raw completion into target.
func parseResponse(response string, target interface{}) error {
	cleaned := stripCodeFence(response)
	if cleaned == "" {
		return fmt.Errorf("empty response")
	}
	if err := json.Unmarshal([]byte(cleaned), target); err != nil {
		return fmt.Errorf("response is not valid JSON: %w", err)
	}
	if err := validate.Struct(target); err != nil {
		return fmt.Errorf("response missing required fields: %w", err)
	}
	return nil
}

// clamp bounds v into [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// toCatalysts converts raw catalysts into the model type.
func toCatalysts(raw []rawCatalyst) []models.Catalyst {
	if len(raw) == 0 {
		return nil
	}
	catalysts := make([]models.Catalyst, 0, len(raw))
	for _, c := range raw {
		catalysts = append(catalysts, models.Catalyst{
			Type:         c.Type,
			Description:  c.Description,
			Impact:       c.Impact,
			Significance: c.Significance,
		})
	}
	return catalysts
}
