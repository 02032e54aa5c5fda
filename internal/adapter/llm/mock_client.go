package llm

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// MockReply is the default mock completion. It is deliberately not JSON.
const MockReply = "[MOCK] Simulated panel unavailable; no structured answers were generated."

var mockSeq atomic.Int64

// MockClient returns a fixed reply and records every request.
type MockClient struct {
	// Reply overrides MockReply when non-empty.
	Reply string
	// Err, when set, is returned instead of a reply.
	Err error

	mu       sync.Mutex
	requests []ChatCompletionRequest
}

// NewMockClient creates a mock LLM client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// CreateChatCompletion returns the configured reply.
func (m *MockClient) CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, *req)
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.Err != nil {
		return nil, m.Err
	}

	content := m.Reply
	if content == "" {
		content = MockReply
	}
	prompt := estimateTokens(req.Messages)
	completion := len(content) / 4
	return &ChatCompletionResponse{
		ID:    fmt.Sprintf("mock-%d", mockSeq.Add(1)),
		Model: req.Model,
		Choices: []Choice{{
			Message:      &ChatMessage{Role: RoleAssistant, Content: content},
			FinishReason: "stop",
		}},
		Usage: &Usage{
			PromptTokens:     prompt,
			CompletionTokens: completion,
			TotalTokens:      prompt + completion,
		},
	}, nil
}

// Requests returns a copy of the requests received so far.
func (m *MockClient) Requests() []ChatCompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ChatCompletionRequest(nil), m.requests...)
}

func estimateTokens(msgs []ChatMessage) int {
	total := 0
	for _, msg := range msgs {
		total += len(msg.Content) / 4
	}
	return total
}
