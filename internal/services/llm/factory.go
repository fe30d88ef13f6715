// Package llm provides the chat-completion providers used by the AI
// extraction fallback and the enrichment service, plus the circuit
// breaker that guards them.
package llm

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/aidjobs/harvester/internal/common"
	"github.com/aidjobs/harvester/internal/interfaces"
)

// NewLLMService creates the configured provider wrapped in the circuit
// breaker. Provider selection follows config; openrouter is the default.
func NewLLMService(cfg *common.Config, logger arbor.ILogger) (interfaces.LLMService, error) {
	var (
		inner interfaces.LLMService
		err   error
	)

	switch cfg.LLM.Provider {
	case "claude":
		inner, err = NewClaudeService(cfg.LLM, logger)
	case "openrouter", "":
		inner, err = NewOpenRouterService(cfg.LLM, logger)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLM.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM service: %w", err)
	}

	logger.Info().Str("provider", inner.ProviderName()).Msg("LLM service ready")
	return NewCircuitBreaker(inner, logger), nil
}
