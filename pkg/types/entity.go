package types

import "time"

// ExtractedEntity is the raw extraction-model output for a single entity.
// It exists only during extraction and is converted to an Entity (with a
// canonical name) before anything is persisted.
type ExtractedEntity struct {
	Name       string  `json:"name"`       // Exact text from the input
	Type       string  `json:"type"`       // One of the entity type constants
	Confidence float64 `json:"confidence"` // 0.0-1.0
	Context    string  `json:"context"`    // Surrounding words for disambiguation
}

// Entity is a canonical, deduplicated concept observed across messages.
// The uniqueness key is (CanonicalName, Type); repeat observations update
// the existing record rather than creating a new one.
type Entity struct {
	// Core identification fields
	ID            string `json:"id"`
	Name          string `json:"name"`           // Original surface form
	CanonicalName string `json:"canonical_name"` // Normalized, alias-resolved dedup key
	Type          string `json:"type"`

	// Temporal fields
	FirstSeen time.Time  `json:"first_seen"`
	LastSeen  time.Time  `json:"last_seen"`
	ValidAt   time.Time  `json:"valid_at"`
	InvalidAt *time.Time `json:"invalid_at,omitempty"`

	// Embedding for entity similarity (optional)
	Embedding      []float32 `json:"embedding,omitempty"`
	EmbeddingModel string    `json:"embedding_model,omitempty"`

	// Statistics. MentionCount is >= 1; Confidence is a running average:
	// on each repeat observation it becomes (old + new) / 2.
	MentionCount int     `json:"mention_count"`
	Confidence   float64 `json:"confidence"`
}
