// Package engine contains the memory pipeline: similarity search over prior
// chunks, entity canonicalization, context assembly, and the analyzer that
// ties them to storage and the model clients.
package engine

import (
	"math"
	"sort"
	"time"

	"github.com/scrypster/recall/pkg/types"
)

// SearchOptions tunes a similarity search.
type SearchOptions struct {
	// Threshold is the minimum cosine similarity for a match. Default 0.7.
	Threshold float64

	// TopKPerChunk caps matches per query chunk. Default 5.
	TopKPerChunk int

	// MaxSimilarChunks caps the merged result across all query chunks.
	// Default 10.
	MaxSimilarChunks int

	// TimeWindowDays restricts matches to chunks created within this many
	// days of the reference time. Zero means no time restriction.
	TimeWindowDays int
}

// DefaultSearchOptions returns the standard search tuning.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{
		Threshold:        0.7,
		TopKPerChunk:     5,
		MaxSimilarChunks: 10,
	}
}

// SimilaritySearcher ranks prior chunks against query chunks by cosine
// similarity. It is stateless apart from its options and safe for
// concurrent use.
type SimilaritySearcher struct {
	opts SearchOptions
}

// NewSearcher creates a searcher. Zero-valued option fields fall back to
// defaults.
func NewSearcher(opts SearchOptions) *SimilaritySearcher {
	def := DefaultSearchOptions()
	if opts.Threshold == 0 {
		opts.Threshold = def.Threshold
	}
	if opts.TopKPerChunk < 1 {
		opts.TopKPerChunk = def.TopKPerChunk
	}
	if opts.MaxSimilarChunks < 1 {
		opts.MaxSimilarChunks = def.MaxSimilarChunks
	}
	return &SimilaritySearcher{opts: opts}
}

// FindSimilar returns corpus chunks similar to the query chunk, strongest
// first, at most TopKPerChunk. Chunks without embeddings, chunks from
// excludeMessageID, and chunks outside the time window are skipped. Ties
// break by corpus order, so results are deterministic.
func (s *SimilaritySearcher) FindSimilar(query types.Chunk, corpus []types.Chunk, excludeMessageID string, now time.Time) []types.SimilarChunk {
	if !query.HasEmbedding() {
		return nil
	}

	var cutoff time.Time
	if s.opts.TimeWindowDays > 0 {
		cutoff = now.AddDate(0, 0, -s.opts.TimeWindowDays)
	}

	var matches []types.SimilarChunk
	for _, candidate := range corpus {
		if !candidate.HasEmbedding() {
			continue
		}
		if candidate.MessageID == excludeMessageID {
			continue
		}
		if !cutoff.IsZero() && candidate.CreatedAt.Before(cutoff) {
			continue
		}

		score := cosineSimilarity(query.Embedding, candidate.Embedding)
		if score < s.opts.Threshold {
			continue
		}
		matches = append(matches, types.SimilarChunk{Chunk: candidate, Similarity: score})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})

	if len(matches) > s.opts.TopKPerChunk {
		matches = matches[:s.opts.TopKPerChunk]
	}
	return matches
}

// FindSimilarForMultiple runs FindSimilar for every query chunk and merges
// the results by chunk ID, keeping the maximum score when the same chunk
// matches several queries. The merged list is strongest first, capped at
// MaxSimilarChunks.
func (s *SimilaritySearcher) FindSimilarForMultiple(queries []types.Chunk, corpus []types.Chunk, excludeMessageID string, now time.Time) []types.SimilarChunk {
	best := make(map[string]types.SimilarChunk)
	var order []string

	for _, query := range queries {
		for _, match := range s.FindSimilar(query, corpus, excludeMessageID, now) {
			existing, seen := best[match.Chunk.ID]
			if !seen {
				best[match.Chunk.ID] = match
				order = append(order, match.Chunk.ID)
				continue
			}
			if match.Similarity > existing.Similarity {
				best[match.Chunk.ID] = match
			}
		}
	}

	merged := make([]types.SimilarChunk, 0, len(order))
	for _, id := range order {
		merged = append(merged, best[id])
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Similarity > merged[j].Similarity
	})

	if len(merged) > s.opts.MaxSimilarChunks {
		merged = merged[:s.opts.MaxSimilarChunks]
	}
	return merged
}

// cosineSimilarity computes cos(a, b). Mismatched lengths or a zero vector
// yield 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
