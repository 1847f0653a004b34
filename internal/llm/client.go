// Package llm provides the chat-completion client.
package llm

import "context"

// Client is the interface the conversation layer depends on. The only
// production implementation is [OllamaClient]; tests substitute fakes.
type Client interface {
	// Chat sends a chat completion request and returns the full response.
	Chat(ctx context.Context, model string, messages []Message) (*ChatResponse, error)

	// ChatStream sends a streaming chat request. If callback is non-nil,
	// content deltas are forwarded to it as they arrive.
	ChatStream(ctx context.Context, model string, messages []Message, callback StreamCallback) (*ChatResponse, error)

	// Ping checks if the provider is reachable.
	Ping(ctx context.Context) error
}

// Roles for chat messages. The first transcript message is always
// RoleSystem; user and assistant messages alternate after the seed.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a chat message for the LLM.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
