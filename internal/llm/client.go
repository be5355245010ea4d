package llm

import "context"

// Client is the interface the completion provider must implement.
type Client interface {
	// Chat sends a chat completion request and returns the response.
	// Tool definitions use the OpenAI function-call shape; providers
	// convert at their wire boundary.
	Chat(ctx context.Context, model string, messages []Message, tools []map[string]any) (*ChatResponse, error)

	// Ping checks if the provider is reachable.
	Ping(ctx context.Context) error
}
