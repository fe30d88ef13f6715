package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"

	"github.com/aidjobs/harvester/internal/common"
	"github.com/aidjobs/harvester/internal/interfaces"
)

const claudeMaxTokens = 4096

// ClaudeService implements LLMService using the Anthropic API directly.
type ClaudeService struct {
	client  anthropic.Client
	model   string
	timeout time.Duration
	temp    float64
	logger  arbor.ILogger
}

// NewClaudeService creates a Claude-backed LLM service.
func NewClaudeService(cfg common.LLMConfig, logger arbor.ILogger) (*ClaudeService, error) {
	if cfg.AnthropicAPIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required (set ANTHROPIC_API_KEY)")
	}

	model := cfg.Model
	if model == "" || strings.Contains(model, "/") {
		model = "claude-3-5-haiku-latest"
	}

	service := &ClaudeService{
		client:  anthropic.NewClient(option.WithAPIKey(cfg.AnthropicAPIKey)),
		model:   model,
		timeout: cfg.Timeout,
		temp:    cfg.Temperature,
		logger:  logger,
	}

	logger.Debug().
		Str("model", model).
		Dur("timeout", cfg.Timeout).
		Msg("Claude LLM service initialized")
	return service, nil
}

// ProviderName identifies this provider in logs and run summaries.
func (s *ClaudeService) ProviderName() string { return "claude" }

// Chat sends the conversation to Claude and returns the assistant text.
// System messages map to the API's system parameter.
func (s *ClaudeService) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("messages cannot be empty for chat completion")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var system string
	params := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			if system == "" {
				system = msg.Content
			}
		case "assistant":
			params = append(params, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			params = append(params, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	if len(params) == 0 {
		return "", fmt.Errorf("at least one user message is required")
	}

	req := anthropic.MessageNewParams{
		Model:       anthropic.Model(s.model),
		MaxTokens:   claudeMaxTokens,
		Messages:    params,
		Temperature: anthropic.Float(s.temp),
	}
	if system != "" {
		req.System = []anthropic.TextBlockParam{{Text: system}}
	}

	start := time.Now()
	resp, err := s.client.Messages.New(ctx, req)
	if err != nil {
		return "", fmt.Errorf("Claude chat completion failed: %w", err)
	}

	var out strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}

	s.logger.Debug().
		Str("model", s.model).
		Dur("duration", time.Since(start)).
		Int("response_chars", out.Len()).
		Msg("Claude chat completion succeeded")

	return out.String(), nil
}
