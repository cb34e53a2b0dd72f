// Package llm provides clients for the embedding and entity-extraction
// models behind the memory layer, with circuit breaking and JSON response
// parsing shared across providers.
package llm

import (
	"context"
	"errors"

	"github.com/scrypster/recall/pkg/types"
)

// ErrEmbedding indicates the embedding provider could not produce vectors.
var ErrEmbedding = errors.New("embedding request failed")

// ErrExtraction indicates the extraction model could not produce entities.
var ErrExtraction = errors.New("entity extraction failed")

// EmbeddingClient produces dense vectors for text.
type EmbeddingClient interface {
	// EmbedBatch embeds texts in order. The result has one vector per input,
	// all of the same dimensionality. Errors wrap ErrEmbedding.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Model returns the embedding model identifier.
	Model() string

	// Dimensions returns the vector dimensionality this client produces.
	Dimensions() int
}

// ExtractionClient identifies named entities in text.
type ExtractionClient interface {
	// ExtractEntities returns the entities mentioned in text. A text with no
	// recognizable entities yields an empty slice, not an error. Errors wrap
	// ErrExtraction.
	ExtractEntities(ctx context.Context, text string) ([]types.ExtractedEntity, error)
}

// Client combines both model roles, the shape most providers implement.
type Client interface {
	EmbeddingClient
	ExtractionClient

	// HealthCheck verifies the provider is reachable.
	HealthCheck(ctx context.Context) error
}
