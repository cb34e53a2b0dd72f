// Package config provides configuration management for Recall.
// It loads settings from environment variables with the RECALL_ prefix
// and provides sensible defaults for all configuration options.
//
// An optional YAML file (RECALL_CONFIG or LoadConfigFile) can override the
// defaults; environment variables always take precedence over the file.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration settings for the Recall memory layer.
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	LLM       LLMConfig       `yaml:"llm"`
	Splitter  SplitterConfig  `yaml:"splitter"`
	Search    SearchConfig    `yaml:"search"`
	Context   ContextConfig   `yaml:"context"`
	Embedding EmbeddingConfig `yaml:"embedding"`
}

// StorageConfig contains database and storage configuration.
type StorageConfig struct {
	// Engine selects the storage backend: sqlite or postgres (default: sqlite).
	Engine string `yaml:"engine"`

	// DataPath is the directory for SQLite data files (default: ./data).
	DataPath string `yaml:"data_path"`

	// PostgresDSN is the connection string used when Engine is postgres.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// LLMConfig contains embedding/extraction provider configuration.
type LLMConfig struct {
	// Provider selects the backend: openai or ollama (default: openai).
	Provider string `yaml:"provider"`

	// OpenAIAPIKey authenticates requests to the OpenAI API.
	OpenAIAPIKey string `yaml:"openai_api_key"`

	// OpenAIBaseURL overrides the API endpoint (default: https://api.openai.com/v1).
	OpenAIBaseURL string `yaml:"openai_base_url"`

	// OllamaURL is the Ollama API URL (default: http://localhost:11434).
	OllamaURL string `yaml:"ollama_url"`

	// ExtractionModel is the model used for entity extraction (default: gpt-4o-mini).
	ExtractionModel string `yaml:"extraction_model"`

	// TimeoutSeconds bounds each external call (default: 30).
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// SplitterConfig contains text splitter tuning.
type SplitterConfig struct {
	// MaxChunkSize is the maximum characters per chunk (default: 800).
	MaxChunkSize int `yaml:"max_chunk_size"`

	// OverlapFraction is the chunk overlap as a fraction of MaxChunkSize
	// (default: 0.15).
	OverlapFraction float64 `yaml:"overlap_fraction"`
}

// SearchConfig contains similarity search tuning.
type SearchConfig struct {
	// Threshold is the minimum cosine similarity for a match (default: 0.7).
	Threshold float64 `yaml:"threshold"`

	// TimeWindowDays restricts candidates to the last N days; 0 means
	// unbounded (default: 0).
	TimeWindowDays int `yaml:"time_window_days"`

	// TopKPerChunk is how many matches each query chunk contributes
	// (default: 5).
	TopKPerChunk int `yaml:"top_k_per_chunk"`

	// MaxSimilarChunks caps the merged result set per analysis run
	// (default: 10).
	MaxSimilarChunks int `yaml:"max_similar_chunks"`
}

// ContextConfig contains context builder tuning.
type ContextConfig struct {
	// RecentMessagesLimit is how many prior messages the context bundle
	// carries (default: 10).
	RecentMessagesLimit int `yaml:"recent_messages_limit"`
}

// EmbeddingConfig contains embedding model configuration.
type EmbeddingConfig struct {
	// Model is the embedding model name (default: text-embedding-3-small).
	Model string `yaml:"model"`

	// Dimensions is the vector dimensionality (default: 1536).
	Dimensions int `yaml:"dimensions"`

	// BatchSize is the maximum texts per embedding API call (default: 100).
	BatchSize int `yaml:"batch_size"`

	// CacheSize is the LRU cache capacity for repeated texts (default: 4096).
	CacheSize int `yaml:"cache_size"`
}

// LoadConfig loads configuration from environment variables with sensible
// defaults. If RECALL_CONFIG points at a YAML file, that file is applied
// between the defaults and the environment.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	if path := os.Getenv("RECALL_CONFIG"); path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigFile loads configuration with an explicit YAML file path.
// Environment variables still take precedence over file values.
func LoadConfigFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := applyFile(cfg, path); err != nil {
		return nil, err
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that the per-field defaults cannot.
func (c *Config) Validate() error {
	if c.Splitter.MaxChunkSize < 1 {
		return fmt.Errorf("config: max_chunk_size must be >= 1, got %d", c.Splitter.MaxChunkSize)
	}
	if c.Splitter.OverlapFraction < 0 || c.Splitter.OverlapFraction >= 1 {
		return fmt.Errorf("config: overlap_fraction must be in [0, 1), got %f", c.Splitter.OverlapFraction)
	}
	if c.Search.Threshold < -1 || c.Search.Threshold > 1 {
		return fmt.Errorf("config: threshold must be in [-1, 1], got %f", c.Search.Threshold)
	}
	if c.Embedding.Dimensions < 1 {
		return fmt.Errorf("config: embedding dimensions must be >= 1, got %d", c.Embedding.Dimensions)
	}
	if c.Embedding.BatchSize < 1 {
		return fmt.Errorf("config: embedding batch_size must be >= 1, got %d", c.Embedding.BatchSize)
	}
	return nil
}

// DefaultConfig constructs a Config carrying only defaults.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Engine:   "sqlite",
			DataPath: "./data",
		},
		LLM: LLMConfig{
			Provider:        "openai",
			OpenAIBaseURL:   "https://api.openai.com/v1",
			OllamaURL:       "http://localhost:11434",
			ExtractionModel: "gpt-4o-mini",
			TimeoutSeconds:  30,
		},
		Splitter: SplitterConfig{
			MaxChunkSize:    800,
			OverlapFraction: 0.15,
		},
		Search: SearchConfig{
			Threshold:        0.7,
			TimeWindowDays:   0,
			TopKPerChunk:     5,
			MaxSimilarChunks: 10,
		},
		Context: ContextConfig{
			RecentMessagesLimit: 10,
		},
		Embedding: EmbeddingConfig{
			Model:      "text-embedding-3-small",
			Dimensions: 1536,
			BatchSize:  100,
			CacheSize:  4096,
		},
	}
}

// applyFile overlays values from a YAML file onto cfg.
func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays RECALL_-prefixed environment variables onto cfg.
func applyEnv(cfg *Config) {
	cfg.Storage.Engine = getEnv("RECALL_STORAGE_ENGINE", cfg.Storage.Engine)
	cfg.Storage.DataPath = getEnv("RECALL_DATA_PATH", cfg.Storage.DataPath)
	cfg.Storage.PostgresDSN = getEnv("RECALL_POSTGRES_DSN", cfg.Storage.PostgresDSN)

	cfg.LLM.Provider = getEnv("RECALL_LLM_PROVIDER", cfg.LLM.Provider)
	cfg.LLM.OpenAIAPIKey = getEnv("RECALL_OPENAI_API_KEY", cfg.LLM.OpenAIAPIKey)
	cfg.LLM.OpenAIBaseURL = getEnv("RECALL_OPENAI_BASE_URL", cfg.LLM.OpenAIBaseURL)
	cfg.LLM.OllamaURL = getEnv("RECALL_OLLAMA_URL", cfg.LLM.OllamaURL)
	cfg.LLM.ExtractionModel = getEnv("RECALL_EXTRACTION_MODEL", cfg.LLM.ExtractionModel)
	cfg.LLM.TimeoutSeconds = getEnvInt("RECALL_LLM_TIMEOUT_SECONDS", cfg.LLM.TimeoutSeconds)

	cfg.Splitter.MaxChunkSize = getEnvInt("RECALL_CHUNK_SIZE", cfg.Splitter.MaxChunkSize)
	cfg.Splitter.OverlapFraction = getEnvFloat("RECALL_CHUNK_OVERLAP", cfg.Splitter.OverlapFraction)

	cfg.Search.Threshold = getEnvFloat("RECALL_SIMILARITY_THRESHOLD", cfg.Search.Threshold)
	cfg.Search.TimeWindowDays = getEnvInt("RECALL_TIME_WINDOW_DAYS", cfg.Search.TimeWindowDays)
	cfg.Search.TopKPerChunk = getEnvInt("RECALL_TOP_K_PER_CHUNK", cfg.Search.TopKPerChunk)
	cfg.Search.MaxSimilarChunks = getEnvInt("RECALL_MAX_SIMILAR_CHUNKS", cfg.Search.MaxSimilarChunks)

	cfg.Context.RecentMessagesLimit = getEnvInt("RECALL_RECENT_MESSAGES_LIMIT", cfg.Context.RecentMessagesLimit)

	cfg.Embedding.Model = getEnv("RECALL_EMBEDDING_MODEL", cfg.Embedding.Model)
	cfg.Embedding.Dimensions = getEnvInt("RECALL_EMBEDDING_DIMENSIONS", cfg.Embedding.Dimensions)
	cfg.Embedding.BatchSize = getEnvInt("RECALL_EMBEDDING_BATCH_SIZE", cfg.Embedding.BatchSize)
	cfg.Embedding.CacheSize = getEnvInt("RECALL_EMBEDDING_CACHE_SIZE", cfg.Embedding.CacheSize)
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value.
// If the environment variable exists but cannot be parsed as an integer,
// it returns the default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a default value.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
