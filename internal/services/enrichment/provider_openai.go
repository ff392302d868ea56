package enrichment

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/ternarybob/arbor"

	"github.com/finsignal/finsignal/internal/common"
	"github.com/finsignal/finsignal/internal/interfaces"
)

// OpenAIProvider implements the LLMProvider interface over the OpenAI chat
// completions API.
type OpenAIProvider struct {
	client    *openai.Client
	logger    arbor.ILogger
	timeout   time.Duration
	maxTokens int
}

var _ interfaces.LLMProvider = (*OpenAIProvider)(nil)

// NewOpenAIProvider creates an OpenAI-backed provider.
func NewOpenAIProvider(cfg common.ProviderConfig, logger arbor.ILogger) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required (set OPENAI_API_KEY or llm.openai.api_key)")
	}

	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout duration '%s': %w", cfg.Timeout, err)
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	logger.Debug().
		Dur("timeout", timeout).
		Int("max_tokens", maxTokens).
		Msg("OpenAI provider initialized")

	return &OpenAIProvider{
		client:    openai.NewClient(cfg.APIKey),
		logger:    logger,
		timeout:   timeout,
		maxTokens: maxTokens,
	}, nil
}

// Name implements LLMProvider.
func (p *OpenAIProvider) Name() string {
	return ProviderOpenAI
}

// Call sends a single-turn prompt and returns the raw text completion.
func (p *OpenAIProvider) Call(ctx context.Context, prompt string, model string, temperature float64) (string, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.client.CreateChatCompletion(timeoutCtx, openai.ChatCompletionRequest{
		Model:       model,
		MaxTokens:   p.maxTokens,
		Temperature: float32(temperature),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI API call failed: %w", err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("no response generated from OpenAI API")
	}
	return resp.Choices[0].Message.Content, nil
}
