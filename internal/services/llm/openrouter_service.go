package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/aidjobs/harvester/internal/common"
	"github.com/aidjobs/harvester/internal/interfaces"
)

const openRouterEndpoint = "https://openrouter.ai/api/v1/chat/completions"

// OpenRouterService implements LLMService over OpenRouter's
// OpenAI-compatible chat completions API.
type OpenRouterService struct {
	httpClient *http.Client
	apiKey     string
	model      string
	temp       float64
	logger     arbor.ILogger
}

type chatRequest struct {
	Model       string               `json:"model"`
	Messages    []interfaces.Message `json:"messages"`
	Temperature float64              `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewOpenRouterService creates an OpenRouter-backed LLM service.
func NewOpenRouterService(cfg common.LLMConfig, logger arbor.ILogger) (*OpenRouterService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenRouter API key is required (set OPENROUTER_API_KEY)")
	}
	model := cfg.Model
	if model == "" {
		model = "anthropic/claude-3.5-haiku"
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	service := &OpenRouterService{
		httpClient: &http.Client{Timeout: timeout},
		apiKey:     cfg.APIKey,
		model:      model,
		temp:       cfg.Temperature,
		logger:     logger,
	}

	logger.Debug().
		Str("model", model).
		Dur("timeout", timeout).
		Msg("OpenRouter LLM service initialized")
	return service, nil
}

// ProviderName identifies this provider in logs and run summaries.
func (s *OpenRouterService) ProviderName() string { return "openrouter" }

// Chat posts the conversation to OpenRouter and returns the first choice.
func (s *OpenRouterService) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("messages cannot be empty for chat completion")
	}

	payload, err := json.Marshal(chatRequest{
		Model:       s.model,
		Messages:    messages,
		Temperature: s.temp,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, openRouterEndpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build chat request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("OpenRouter request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return "", fmt.Errorf("failed to read OpenRouter response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("OpenRouter returned HTTP %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode OpenRouter response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("OpenRouter error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("OpenRouter returned no choices")
	}

	s.logger.Debug().
		Str("model", s.model).
		Dur("duration", time.Since(start)).
		Msg("OpenRouter chat completion succeeded")

	return parsed.Choices[0].Message.Content, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
