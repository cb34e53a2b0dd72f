package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/scrypster/recall/pkg/types"
)

// EmbeddingService wraps an EmbeddingClient with an in-memory LRU cache so
// repeated text (overlap regions, re-analyzed messages) does not hit the
// provider twice. Safe for concurrent use; the cache is keyed by a digest of
// model and text.
type EmbeddingService struct {
	client EmbeddingClient
	cache  *lru.Cache[string, []float32]
}

// NewEmbeddingService creates an embedding service with a cache of the given
// size. cacheSize must be positive; 4096 entries is a reasonable default.
func NewEmbeddingService(client EmbeddingClient, cacheSize int) (*EmbeddingService, error) {
	if cacheSize < 1 {
		cacheSize = 4096
	}
	cache, err := lru.New[string, []float32](cacheSize)
	if err != nil {
		return nil, err
	}
	return &EmbeddingService{
		client: client,
		cache:  cache,
	}, nil
}

// Model returns the underlying embedding model identifier.
func (s *EmbeddingService) Model() string { return s.client.Model() }

// Dimensions returns the underlying vector dimensionality.
func (s *EmbeddingService) Dimensions() int { return s.client.Dimensions() }

// EmbedTexts embeds texts in order, serving cached vectors where possible and
// requesting only the misses from the provider.
func (s *EmbeddingService) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int

	for i, text := range texts {
		if v, ok := s.cache.Get(s.cacheKey(text)); ok {
			vectors[i] = v
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) > 0 {
		fresh, err := s.client.EmbedBatch(ctx, missTexts)
		if err != nil {
			return nil, err
		}
		for j, v := range fresh {
			i := missIdx[j]
			vectors[i] = v
			s.cache.Add(s.cacheKey(texts[i]), v)
		}
	}

	return vectors, nil
}

// EmbedChunks embeds every chunk's content and attaches the vectors in place,
// stamping model and timestamp. The batch is all-or-nothing: on error no
// chunk is modified.
func (s *EmbeddingService) EmbedChunks(ctx context.Context, chunks []types.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vectors, err := s.EmbedTexts(ctx, texts)
	if err != nil {
		return err
	}

	now := time.Now()
	model := s.client.Model()
	for i := range chunks {
		chunks[i].Embedding = vectors[i]
		chunks[i].EmbeddingModel = model
		chunks[i].EmbeddedAt = &now
	}
	return nil
}

// CacheLen returns the number of cached vectors, for tests and diagnostics.
func (s *EmbeddingService) CacheLen() int { return s.cache.Len() }

func (s *EmbeddingService) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(s.client.Model() + "\x00" + text))
	return hex.EncodeToString(sum[:])
}
