package engine

import (
	"testing"
	"time"

	"github.com/scrypster/recall/pkg/types"
)

func embeddedChunk(id, messageID string, vec []float32, createdAt time.Time) types.Chunk {
	return types.Chunk{
		ID:        id,
		MessageID: messageID,
		Content:   "content of " + id,
		Embedding: vec,
		CreatedAt: createdAt,
		ValidAt:   createdAt,
	}
}

func TestCosineSimilarity(t *testing.T) {
	cases := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := cosineSimilarity(tc.a, tc.b)
			if diff := got - tc.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("cosineSimilarity = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestFindSimilarThresholdAndOrder(t *testing.T) {
	s := NewSearcher(SearchOptions{Threshold: 0.7, TopKPerChunk: 5, MaxSimilarChunks: 10})
	now := time.Now()

	query := embeddedChunk("q", "msg-new", []float32{1, 0, 0}, now)
	corpus := []types.Chunk{
		embeddedChunk("exact", "msg-a", []float32{1, 0, 0}, now),                // 1.0
		embeddedChunk("close", "msg-b", []float32{0.9, 0.4, 0}, now),           // ~0.91
		embeddedChunk("below", "msg-c", []float32{0.5, 0.9, 0}, now),           // ~0.49
		embeddedChunk("orthogonal", "msg-d", []float32{0, 1, 0}, now),          // 0
		embeddedChunk("own-message", "msg-new", []float32{1, 0, 0}, now),       // excluded
		{ID: "no-embedding", MessageID: "msg-e", Content: "x", CreatedAt: now}, // skipped
	}

	got := s.FindSimilar(query, corpus, "msg-new", now)
	if len(got) != 2 {
		t.Fatalf("got %d matches, want 2", len(got))
	}
	if got[0].Chunk.ID != "exact" || got[1].Chunk.ID != "close" {
		t.Errorf("order = [%s, %s], want [exact, close]", got[0].Chunk.ID, got[1].Chunk.ID)
	}
	if got[0].Similarity < got[1].Similarity {
		t.Error("results not sorted by similarity")
	}
}

func TestFindSimilarTopK(t *testing.T) {
	s := NewSearcher(SearchOptions{Threshold: 0.5, TopKPerChunk: 2, MaxSimilarChunks: 10})
	now := time.Now()

	query := embeddedChunk("q", "msg-new", []float32{1, 0}, now)
	corpus := []types.Chunk{
		embeddedChunk("a", "m1", []float32{1, 0}, now),
		embeddedChunk("b", "m2", []float32{0.95, 0.1}, now),
		embeddedChunk("c", "m3", []float32{0.9, 0.2}, now),
	}

	got := s.FindSimilar(query, corpus, "msg-new", now)
	if len(got) != 2 {
		t.Fatalf("got %d matches, want top 2", len(got))
	}
}

func TestFindSimilarTimeWindow(t *testing.T) {
	s := NewSearcher(SearchOptions{Threshold: 0.7, TopKPerChunk: 5, MaxSimilarChunks: 10, TimeWindowDays: 7})
	now := time.Now()

	query := embeddedChunk("q", "msg-new", []float32{1, 0}, now)
	corpus := []types.Chunk{
		embeddedChunk("recent", "m1", []float32{1, 0}, now.AddDate(0, 0, -3)),
		embeddedChunk("ancient", "m2", []float32{1, 0}, now.AddDate(0, 0, -30)),
	}

	got := s.FindSimilar(query, corpus, "msg-new", now)
	if len(got) != 1 || got[0].Chunk.ID != "recent" {
		t.Fatalf("time window not enforced: %+v", got)
	}
}

func TestFindSimilarQueryWithoutEmbedding(t *testing.T) {
	s := NewSearcher(DefaultSearchOptions())
	now := time.Now()

	query := types.Chunk{ID: "q", MessageID: "msg-new", Content: "no vector"}
	corpus := []types.Chunk{embeddedChunk("a", "m1", []float32{1, 0}, now)}

	if got := s.FindSimilar(query, corpus, "msg-new", now); got != nil {
		t.Fatalf("expected nil for unembedded query, got %+v", got)
	}
}

func TestFindSimilarForMultipleMergesByMaxScore(t *testing.T) {
	s := NewSearcher(SearchOptions{Threshold: 0.5, TopKPerChunk: 5, MaxSimilarChunks: 10})
	now := time.Now()

	// Both queries match the shared chunk, with different scores.
	q1 := embeddedChunk("q1", "msg-new", []float32{1, 0}, now)
	q2 := embeddedChunk("q2", "msg-new", []float32{0.8, 0.6}, now)
	shared := embeddedChunk("shared", "m1", []float32{1, 0}, now)
	only2 := embeddedChunk("only2", "m2", []float32{0.8, 0.6}, now)

	got := s.FindSimilarForMultiple([]types.Chunk{q1, q2}, []types.Chunk{shared, only2}, "msg-new", now)
	if len(got) != 2 {
		t.Fatalf("got %d merged matches, want 2", len(got))
	}

	byID := make(map[string]float64)
	for _, sc := range got {
		if _, dup := byID[sc.Chunk.ID]; dup {
			t.Fatalf("chunk %s appears twice in merged results", sc.Chunk.ID)
		}
		byID[sc.Chunk.ID] = sc.Similarity
	}

	// q1 matches "shared" exactly, so the merged score must be the max.
	if sim := byID["shared"]; sim < 0.999 {
		t.Errorf("shared chunk merged score = %v, want max score 1.0", sim)
	}
}

func TestFindSimilarForMultipleCap(t *testing.T) {
	s := NewSearcher(SearchOptions{Threshold: 0.5, TopKPerChunk: 10, MaxSimilarChunks: 3})
	now := time.Now()

	query := embeddedChunk("q", "msg-new", []float32{1, 0}, now)
	var corpus []types.Chunk
	for i := 0; i < 8; i++ {
		corpus = append(corpus, embeddedChunk(string(rune('a'+i)), "m", []float32{1, 0}, now))
	}

	got := s.FindSimilarForMultiple([]types.Chunk{query}, corpus, "msg-new", now)
	if len(got) != 3 {
		t.Fatalf("got %d matches, want cap of 3", len(got))
	}
}
