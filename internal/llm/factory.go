package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/agenthands/cobalt/internal/config"
)

// NewClient builds the provider client named by cfg and wraps it with the
// configured retry policy.
func NewClient(ctx context.Context, cfg config.LLMConfig) (LLMClient, error) {
	var client LLMClient

	switch provider := strings.ToLower(cfg.Provider); provider {
	case "openai":
		client = NewOpenAIClient(cfg.APIKey, cfg.Model, cfg.BaseURL)

	case "gemini":
		c, err := NewGeminiClient(ctx, cfg.APIKey, cfg.Model)
		if err != nil {
			return nil, err
		}
		client = c

	case "claude":
		client = NewClaudeClient(cfg.APIKey, cfg.Model, cfg.BaseURL)

	case "ollama":
		// Ollama speaks the OpenAI chat API under /v1.
		baseURL := strings.TrimRight(cfg.BaseURL, "/")
		if !strings.HasSuffix(baseURL, "/v1") {
			baseURL += "/v1"
		}
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = "ollama" // required by the client, ignored by the server
		}
		client = NewOpenAIClient(apiKey, cfg.Model, baseURL)

	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}

	if cfg.MaxRetries > 0 {
		client = WithRetry(client, cfg.MaxRetries)
	}
	return client, nil
}
