// Package llm provides an abstraction for text generation clients.
package llm

import "context"

// LLMClient defines the interface for text generation.
type LLMClient interface {
	// CreateChatCompletion sends a single non-streaming completion request.
	CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error)
}

// Ensure implementations satisfy LLMClient.
var (
	_ LLMClient = (*OpenAIClient)(nil)
	_ LLMClient = (*GeminiClient)(nil)
	_ LLMClient = (*MockClient)(nil)
)
