package llm

import (
	"fmt"

	"voxelgpt/internal/config"
	"voxelgpt/internal/logging"
)

// NewClientFromConfig creates an LLM client based on configuration.
// The client is constructed once at startup and shared read-only.
func NewClientFromConfig(cfg *config.Config) (Client, error) {
	logging.Get(logging.CategoryBoot).Info("Creating LLM client: provider=%s model=%s", cfg.LLM.Provider, cfg.LLM.Model)

	switch cfg.LLM.Provider {
	case "gemini":
		return NewGeminiClientWithConfig(GeminiConfig{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
			Timeout: cfg.LLMTimeout(),
		}), nil
	case "openai":
		return NewOpenAIClientWithConfig(OpenAIConfig{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
			Timeout: cfg.LLMTimeout(),
		}), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s (use 'gemini' or 'openai')", cfg.LLM.Provider)
	}
}
