package llm

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const (
	// EnvMode is the environment variable name for mode selection.
	EnvMode = "PANELSIM_MODE"
	// ModeMock forces the mock client.
	ModeMock = "MOCK"
)

// Providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderMock   = "mock"
)

// Options selects and configures a provider.
type Options struct {
	Provider string
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
}

// NewLLMClient creates a client for opts.Provider. PANELSIM_MODE=MOCK
// overrides the provider with the mock.
func NewLLMClient(ctx context.Context, opts Options, logger *zap.Logger) (LLMClient, error) {
	if strings.EqualFold(os.Getenv(EnvMode), ModeMock) {
		logger.Info("PANELSIM_MODE=MOCK detected, using mock LLM client")
		return NewMockClient(), nil
	}

	switch strings.ToLower(opts.Provider) {
	case "", ProviderOpenAI:
		return NewOpenAIClient(opts.BaseURL, opts.APIKey, opts.Timeout), nil
	case ProviderGemini:
		return NewGeminiClient(ctx, opts.BaseURL, opts.APIKey, opts.Timeout)
	case ProviderMock:
		return NewMockClient(), nil
	default:
		return nil, eris.Errorf("unknown llm provider %q", opts.Provider)
	}
}
