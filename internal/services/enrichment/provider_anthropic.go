package enrichment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"

	"github.com/finsignal/finsignal/internal/common"
	"github.com/finsignal/finsignal/internal/interfaces"
)

// AnthropicProvider implements the LLMProvider interface over the Anthropic
// Messages API.
type AnthropicProvider struct {
	client    anthropic.Client
	logger    arbor.ILogger
	timeout   time.Duration
	maxTokens int
}

var _ interfaces.LLMProvider = (*AnthropicProvider)(nil)

// NewAnthropicProvider creates an Anthropic-backed provider.
func NewAnthropicProvider(cfg common.ProviderConfig, logger arbor.ILogger) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required (set ANTHROPIC_API_KEY or llm.claude.api_key)")
	}

	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout duration '%s': %w", cfg.Timeout, err)
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	client := anthropic.NewClient(
		option.WithAPIKey(cfg.APIKey),
	)

	logger.Debug().
		Dur("timeout", timeout).
		Int("max_tokens", maxTokens).
		Msg("Anthropic provider initialized")

	return &AnthropicProvider{
		client:    client,
		logger:    logger,
		timeout:   timeout,
		maxTokens: maxTokens,
	}, nil
}

// Name implements LLMProvider.
func (p *AnthropicProvider) Name() string {
	return ProviderAnthropic
}

// Call sends a single-turn prompt and returns the raw text completion.
func (p *AnthropicProvider) Call(ctx context.Context, prompt string, model string, temperature float64) (string, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(p.maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if temperature > 0 {
		params.Temperature = anthropic.Float(temperature)
	}

	resp, err := p.client.Messages.New(timeoutCtx, params)
	if err != nil {
		return "", fmt.Errorf("Anthropic API call failed: %w", err)
	}

	var response strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			response.WriteString(block.Text)
		}
	}

	if response.Len() == 0 {
		return "", fmt.Errorf("no response generated from Anthropic API")
	}
	return response.String(), nil
}
