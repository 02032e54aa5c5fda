package llm

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"google.golang.org/genai"
)

// GeminiClient generates text with the Gemini API.
type GeminiClient struct {
	client *genai.Client
}

// NewGeminiClient creates a Gemini API client. baseURL overrides the API
// endpoint when set.
func NewGeminiClient(ctx context.Context, baseURL, apiKey string, timeout time.Duration) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, eris.New("gemini API key is required")
	}
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cfg.HTTPOptions.BaseURL = baseURL
	}
	if timeout > 0 {
		cfg.HTTPOptions.Timeout = &timeout
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "create gemini client")
	}
	return &GeminiClient{client: client}, nil
}

// CreateChatCompletion maps system messages to the system instruction and
// the rest to conversation turns.
func (c *GeminiClient) CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	system, contents := toGeminiContents(req.Messages)

	gcfg := &genai.GenerateContentConfig{}
	if system != "" {
		gcfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if req.Temperature != nil {
		gcfg.Temperature = genai.Ptr(float32(*req.Temperature))
	}
	if req.MaxTokens != nil {
		gcfg.MaxOutputTokens = int32(*req.MaxTokens)
	}

	resp, err := c.client.Models.GenerateContent(ctx, req.Model, contents, gcfg)
	if err != nil {
		return nil, eris.Wrap(err, "gemini generate content")
	}

	out := &ChatCompletionResponse{
		Model: req.Model,
		Choices: []Choice{{
			Message: &ChatMessage{Role: RoleAssistant, Content: resp.Text()},
		}},
	}
	if len(resp.Candidates) > 0 {
		out.Choices[0].FinishReason = string(resp.Candidates[0].FinishReason)
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = &Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}

func toGeminiContents(msgs []ChatMessage) (string, []*genai.Content) {
	system, rest := splitSystem(msgs)
	contents := make([]*genai.Content, 0, len(rest))
	for _, m := range rest {
		role := genai.Role(genai.RoleUser)
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	return system, contents
}
