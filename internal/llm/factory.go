package llm

import (
	"context"
	"fmt"

	"code-review-orchestrator/internal/config"
)

// Backend names accepted in configuration.
const (
	BackendOpenAI    = "openai"
	BackendLangChain = "langchain"
	BackendGemini    = "gemini"
)

// NewClient creates the configured LLM backend. The returned client is safe
// for concurrent use and should be created once at startup.
func NewClient(ctx context.Context, cfg config.LLMConfig) (Client, error) {
	switch cfg.Backend {
	case BackendOpenAI, "":
		return NewOpenAIClient(cfg), nil
	case BackendLangChain:
		return NewLangChainClient(cfg)
	case BackendGemini:
		return NewGeminiClient(ctx, cfg)
	}
	return nil, fmt.Errorf("unknown llm backend %q", cfg.Backend)
}
