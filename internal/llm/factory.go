package llm

import (
	"fmt"
	"time"

	"github.com/scrypster/recall/internal/config"
)

// NewClientFromConfig builds the provider named in cfg.LLM.Provider.
// Supported providers: "openai" (and compatible endpoints), "ollama".
func NewClientFromConfig(cfg *config.Config) (Client, error) {
	timeout := time.Duration(cfg.LLM.TimeoutSeconds) * time.Second

	switch cfg.LLM.Provider {
	case "openai":
		if cfg.LLM.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai provider requires an API key")
		}
		return NewOpenAIClient(OpenAIConfig{
			BaseURL:         cfg.LLM.OpenAIBaseURL,
			APIKey:          cfg.LLM.OpenAIAPIKey,
			EmbeddingModel:  cfg.Embedding.Model,
			ExtractionModel: cfg.LLM.ExtractionModel,
			Dimensions:      cfg.Embedding.Dimensions,
			BatchSize:       cfg.Embedding.BatchSize,
			Timeout:         timeout,
		}), nil
	case "ollama":
		return NewOllamaClient(OllamaConfig{
			BaseURL:         cfg.LLM.OllamaURL,
			EmbeddingModel:  cfg.Embedding.Model,
			ExtractionModel: cfg.LLM.ExtractionModel,
			Dimensions:      cfg.Embedding.Dimensions,
			Timeout:         timeout,
		}), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %q", cfg.LLM.Provider)
	}
}
