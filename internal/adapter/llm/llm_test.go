package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

func float64Ptr(v float64) *float64 { return &v }
func intPtr(v int) *int             { return &v }

func TestOpenAIClientCreateChatCompletion(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "[]"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15}
		}`))
	}))
	defer srv.Close()

	client := NewOpenAIClient(srv.URL+"/", "sk-test", 0)
	resp, err := client.CreateChatCompletion(context.Background(), &ChatCompletionRequest{
		Model: "gpt-4o-mini",
		Messages: []ChatMessage{
			{Role: RoleSystem, Content: "sys"},
			{Role: RoleUser, Content: "hi"},
		},
		Temperature: float64Ptr(0.8),
		MaxTokens:   intPtr(4096),
	})
	require.NoError(t, err)

	assert.Equal(t, "[]", resp.Content())
	assert.Equal(t, "stop", resp.Choices[0].FinishReason)
	assert.Equal(t, &Usage{PromptTokens: 12, CompletionTokens: 3, TotalTokens: 15}, resp.Usage)

	assert.Equal(t, "gpt-4o-mini", got["model"])
	assert.InDelta(t, 0.8, got["temperature"], 1e-6)
	assert.Equal(t, float64(4096), got["max_tokens"])
	msgs := got["messages"].([]interface{})
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]interface{})["role"])
}

func TestOpenAIClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": {"message": "boom", "type": "server_error"}}`))
	}))
	defer srv.Close()

	_, err := NewOpenAIClient(srv.URL, "k", 0).CreateChatCompletion(context.Background(), &ChatCompletionRequest{Model: "m"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestMockClientDefaultReply(t *testing.T) {
	m := NewMockClient()
	resp, err := m.CreateChatCompletion(context.Background(), &ChatCompletionRequest{
		Model:    "x",
		Messages: []ChatMessage{{Role: RoleUser, Content: "hello world!"}},
	})
	require.NoError(t, err)
	assert.Equal(t, MockReply, resp.Content())
	assert.Equal(t, 3, resp.Usage.PromptTokens)
	assert.False(t, json.Valid([]byte(resp.Content())))
	require.Len(t, m.Requests(), 1)
	assert.Equal(t, "x", m.Requests()[0].Model)
}

func TestMockClientScripted(t *testing.T) {
	m := &MockClient{Reply: `[{"respondent_id":"R1","answers":{}}]`}
	resp, err := m.CreateChatCompletion(context.Background(), &ChatCompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, m.Reply, resp.Content())

	boom := errors.New("unavailable")
	m = &MockClient{Err: boom}
	_, err = m.CreateChatCompletion(context.Background(), &ChatCompletionRequest{})
	assert.ErrorIs(t, err, boom)
}

func TestContentWithoutChoices(t *testing.T) {
	var resp *ChatCompletionResponse
	assert.Equal(t, "", resp.Content())
	assert.Equal(t, "", (&ChatCompletionResponse{}).Content())
}

func TestToGeminiContents(t *testing.T) {
	system, contents := toGeminiContents([]ChatMessage{
		{Role: RoleSystem, Content: "a"},
		{Role: RoleUser, Content: "question"},
		{Role: RoleSystem, Content: "b"},
		{Role: RoleAssistant, Content: "answer"},
	})
	assert.Equal(t, "a\n\nb", system)
	require.Len(t, contents, 2)
	assert.Equal(t, string(genai.RoleUser), string(contents[0].Role))
	assert.Equal(t, string(genai.RoleModel), string(contents[1].Role))
	assert.Equal(t, "answer", contents[1].Parts[0].Text)
}

func TestNewLLMClient(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()

	c, err := NewLLMClient(ctx, Options{Provider: "openai", APIKey: "k"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, c)

	c, err = NewLLMClient(ctx, Options{Provider: "MOCK"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &MockClient{}, c)

	_, err = NewLLMClient(ctx, Options{Provider: "gemini"}, logger)
	assert.Error(t, err)

	_, err = NewLLMClient(ctx, Options{Provider: "nope"}, logger)
	assert.Error(t, err)

	t.Setenv(EnvMode, ModeMock)
	c, err = NewLLMClient(ctx, Options{Provider: "openai"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &MockClient{}, c)
}
