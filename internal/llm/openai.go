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

	"golang.org/x/time/rate"

	"github.com/scrypster/recall/pkg/types"
)

// OpenAIClient talks to an OpenAI-compatible API for embeddings and entity
// extraction. All requests go through a shared circuit breaker, and batch
// embedding calls are paced by a rate limiter to stay under provider limits.
type OpenAIClient struct {
	baseURL         string
	apiKey          string
	embeddingModel  string
	extractionModel string
	dimensions      int
	batchSize       int
	httpClient      *http.Client
	breaker         *CircuitBreaker
	limiter         *rate.Limiter
}

// OpenAIConfig configures an OpenAIClient.
type OpenAIConfig struct {
	BaseURL         string
	APIKey          string
	EmbeddingModel  string
	ExtractionModel string
	Dimensions      int
	BatchSize       int
	Timeout         time.Duration
}

// NewOpenAIClient creates a client for an OpenAI-compatible endpoint.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.ExtractionModel == "" {
		cfg.ExtractionModel = "gpt-4o-mini"
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = 1536
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &OpenAIClient{
		baseURL:         cfg.BaseURL,
		apiKey:          cfg.APIKey,
		embeddingModel:  cfg.EmbeddingModel,
		extractionModel: cfg.ExtractionModel,
		dimensions:      cfg.Dimensions,
		batchSize:       cfg.BatchSize,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		breaker: NewCircuitBreaker(),
		// 5 requests/sec with a burst of 5 keeps large backfills under
		// provider rate limits.
		limiter: rate.NewLimiter(rate.Limit(5), 5),
	}
}

// Model returns the embedding model identifier.
func (c *OpenAIClient) Model() string { return c.embeddingModel }

// Dimensions returns the embedding vector dimensionality.
func (c *OpenAIClient) Dimensions() int { return c.dimensions }

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// EmbedBatch embeds texts in order, partitioning the input into API-sized
// batches. Each batch is all-or-nothing; a failed batch fails the call.
func (c *OpenAIClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := start + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
		}

		batch, err := c.embedOnce(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

func (c *OpenAIClient) embedOnce(ctx context.Context, texts []string) ([][]float32, error) {
	req := embeddingRequest{
		Model:      c.embeddingModel,
		Input:      texts,
		Dimensions: c.dimensions,
	}

	result, err := c.breaker.Execute(ctx, func() (interface{}, error) {
		var resp embeddingResponse
		if err := c.post(ctx, "/embeddings", req, &resp); err != nil {
			return nil, err
		}
		return &resp, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}

	resp := result.(*embeddingResponse)
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d inputs", ErrEmbedding, len(resp.Data), len(texts))
	}

	// The API may return entries out of order; place by index.
	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("%w: embedding index %d out of range", ErrEmbedding, d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ExtractEntities asks the extraction model for entities in text. Blank
// input yields no entities without an API call. Invalid entries in the
// response are skipped, not failed.
func (c *OpenAIClient) ExtractEntities(ctx context.Context, text string) ([]types.ExtractedEntity, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	req := chatRequest{
		Model: c.extractionModel,
		Messages: []chatMessage{
			{Role: "user", Content: buildExtractionPrompt(text)},
		},
		Temperature: 0,
		ResponseFormat: &struct {
			Type string `json:"type"`
		}{Type: "json_object"},
	}

	result, err := c.breaker.Execute(ctx, func() (interface{}, error) {
		var resp chatResponse
		if err := c.post(ctx, "/chat/completions", req, &resp); err != nil {
			return nil, err
		}
		return &resp, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}

	resp := result.(*chatResponse)
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty completion", ErrExtraction)
	}

	entities, err := ParseEntityResponse(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	return entities, nil
}

// HealthCheck verifies the API is reachable by listing models.
func (c *OpenAIClient) HealthCheck(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
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

// post sends a JSON request and decodes a JSON response.
func (c *OpenAIClient) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("api returned status %d: %s", resp.StatusCode, string(data))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

var _ Client = (*OpenAIClient)(nil)
