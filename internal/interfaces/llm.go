package interfaces

import "context"

// Message is one turn in an LLM conversation.
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// LLMService generates completions. Implementations wrap a single
// provider; selection happens in the factory.
type LLMService interface {
	Chat(ctx context.Context, messages []Message) (string, error)
	ProviderName() string
}
