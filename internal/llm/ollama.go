package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/scrypster/recall/pkg/types"
)

// OllamaClient talks to a local Ollama server. Useful for fully offline
// operation; quality depends on the local models configured.
type OllamaClient struct {
	baseURL         string
	embeddingModel  string
	extractionModel string
	dimensions      int
	httpClient      *http.Client
	breaker         *CircuitBreaker
}

// OllamaConfig configures an OllamaClient.
type OllamaConfig struct {
	BaseURL         string
	EmbeddingModel  string
	ExtractionModel string
	Dimensions      int
	Timeout         time.Duration
}

// NewOllamaClient creates a client for a local Ollama server.
func NewOllamaClient(cfg OllamaConfig) *OllamaClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "nomic-embed-text"
	}
	if cfg.ExtractionModel == "" {
		cfg.ExtractionModel = "llama3.2"
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = 768
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	return &OllamaClient{
		baseURL:         cfg.BaseURL,
		embeddingModel:  cfg.EmbeddingModel,
		extractionModel: cfg.ExtractionModel,
		dimensions:      cfg.Dimensions,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		breaker: NewCircuitBreaker(),
	}
}

// Model returns the embedding model identifier.
func (c *OllamaClient) Model() string { return c.embeddingModel }

// Dimensions returns the embedding vector dimensionality.
func (c *OllamaClient) Dimensions() int { return c.dimensions }

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// EmbedBatch embeds texts in a single Ollama request.
func (c *OllamaClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	req := ollamaEmbedRequest{Model: c.embeddingModel, Input: texts}

	result, err := c.breaker.Execute(ctx, func() (interface{}, error) {
		var resp ollamaEmbedResponse
		if err := c.post(ctx, "/api/embed", req, &resp); err != nil {
			return nil, err
		}
		return &resp, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}

	resp := result.(*ollamaEmbedResponse)
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d inputs", ErrEmbedding, len(resp.Embeddings), len(texts))
	}
	return resp.Embeddings, nil
}

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	Format string `json:"format,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

// ExtractEntities asks the local extraction model for entities in text.
// Blank input yields no entities without an API call.
func (c *OllamaClient) ExtractEntities(ctx context.Context, text string) ([]types.ExtractedEntity, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	req := ollamaGenerateRequest{
		Model:  c.extractionModel,
		Prompt: buildExtractionPrompt(text),
		Stream: false,
		Format: "json",
	}

	result, err := c.breaker.Execute(ctx, func() (interface{}, error) {
		var resp ollamaGenerateResponse
		if err := c.post(ctx, "/api/generate", req, &resp); err != nil {
			return nil, err
		}
		return &resp, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}

	entities, err := ParseEntityResponse(result.(*ollamaGenerateResponse).Response)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	return entities, nil
}

// HealthCheck verifies the Ollama server is reachable.
func (c *OllamaClient) HealthCheck(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *OllamaClient) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(data))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

var _ Client = (*OllamaClient)(nil)
