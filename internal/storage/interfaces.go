// Package storage defines the persistence interfaces for messages, chunks,
// entities, and similarity edges. Backends live in subpackages (sqlite,
// postgres) and must honor the sentinel errors declared here.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/scrypster/recall/pkg/types"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrInvalidInput is returned when a write is rejected before touching the
// database (empty required fields, bad ranges).
var ErrInvalidInput = errors.New("invalid input")

// MessageStore persists chat messages.
type MessageStore interface {
	// SaveMessage stores a message. The ID must be set by the caller.
	SaveMessage(ctx context.Context, msg *types.ChatMessage) error

	// GetMessage retrieves a message by ID.
	GetMessage(ctx context.Context, id string) (*types.ChatMessage, error)

	// RecentMessages returns up to limit messages with timestamps strictly
	// before the cutoff, newest first, across all sessions.
	RecentMessages(ctx context.Context, before time.Time, limit int) ([]types.ChatMessage, error)
}

// ChunkStore persists message chunks and their embeddings.
type ChunkStore interface {
	// SaveChunks stores chunks for a message in one transaction.
	SaveChunks(ctx context.Context, chunks []types.Chunk) error

	// ChunksWithEmbeddings returns every chunk that has an embedding and is
	// still valid (invalid_at is null). This is the similarity search corpus.
	// A non-zero since restricts the corpus to chunks created at or after it.
	ChunksWithEmbeddings(ctx context.Context, since time.Time) ([]types.Chunk, error)

	// ChunksForMessage returns a message's chunks ordered by position.
	ChunksForMessage(ctx context.Context, messageID string) ([]types.Chunk, error)

	// InvalidateChunk marks a chunk as no longer valid without deleting it.
	InvalidateChunk(ctx context.Context, id string, at time.Time) error
}

// EntityStore persists canonical entities.
type EntityStore interface {
	// UpsertEntity inserts a new entity or merges into the existing record
	// keyed by (canonical_name, type): mention_count increments, confidence
	// becomes the running average of old and new, last_seen advances. It
	// returns the stored record.
	UpsertEntity(ctx context.Context, entity *types.Entity) (*types.Entity, error)

	// GetEntity retrieves an entity by canonical name and type.
	GetEntity(ctx context.Context, canonicalName, entityType string) (*types.Entity, error)

	// EntitiesByNames returns all entities whose canonical name is in names,
	// any type.
	EntitiesByNames(ctx context.Context, names []string) ([]types.Entity, error)
}

// SimilarityEdgeStore records which prior chunks a message was found similar
// to, preserving the analysis result for later inspection.
type SimilarityEdgeStore interface {
	// SaveEdges stores similarity edges from a message to prior chunks.
	SaveEdges(ctx context.Context, messageID string, similar []types.SimilarChunk) error

	// EdgesForMessage returns the stored edges for a message, strongest first.
	EdgesForMessage(ctx context.Context, messageID string) ([]types.SimilarChunk, error)
}

// Store combines all persistence roles. Both backends implement it.
type Store interface {
	MessageStore
	ChunkStore
	EntityStore
	SimilarityEdgeStore

	// Close releases the underlying database handle.
	Close() error
}
