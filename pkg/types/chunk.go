package types

import "time"

// Chunk is a semantically bounded slice of a message's text, the unit of
// embedding and similarity search. Chunks are produced by the splitter,
// embedded in place, persisted, and never mutated again except for
// invalidation, which sets InvalidAt instead of deleting the row.
type Chunk struct {
	// Core identification fields
	ID        string    `json:"id"`         // Unique identifier
	Content   string    `json:"content"`    // Chunk text
	Position  int       `json:"position"`   // 0-based order within the parent message
	CharStart int       `json:"char_start"` // Offset of the chunk in the parent text
	CharEnd   int       `json:"char_end"`   // End offset (exclusive)
	Type      ChunkType `json:"chunk_type"`

	// Temporal validity interval [valid_at, invalid_at)
	CreatedAt time.Time  `json:"created_at"`
	ValidAt   time.Time  `json:"valid_at"`
	InvalidAt *time.Time `json:"invalid_at,omitempty"` // nil = still valid

	// Embedding fields (nil until embedded)
	Embedding      []float32  `json:"embedding,omitempty"`
	EmbeddingModel string     `json:"embedding_model,omitempty"`
	EmbeddedAt     *time.Time `json:"embedded_at,omitempty"`

	// MessageID references the parent message (empty for orphan chunks).
	MessageID string `json:"message_id,omitempty"`
}

// HasEmbedding reports whether the chunk carries a non-empty vector.
func (c *Chunk) HasEmbedding() bool {
	return len(c.Embedding) > 0
}

// SimilarChunk is a transient search result: a chunk plus its cosine
// similarity to the query vector. Scores below the searcher threshold are
// never returned, so in practice Similarity is within [threshold, 1.0].
type SimilarChunk struct {
	Chunk      Chunk   `json:"chunk"`
	Similarity float64 `json:"similarity"`
}
