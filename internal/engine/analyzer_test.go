package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/recall/internal/config"
	"github.com/scrypster/recall/internal/llm"
	"github.com/scrypster/recall/internal/storage/sqlite"
	"github.com/scrypster/recall/pkg/types"
)

// keywordEmbedder produces deterministic vectors from keyword hits so tests
// can steer which chunks look similar.
type keywordEmbedder struct {
	fail bool
}

func (e *keywordEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if e.fail {
		return nil, llm.ErrEmbedding
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		lower := strings.ToLower(text)
		vec := []float32{0.05, 0.05, 1}
		switch {
		case strings.Contains(lower, "database"):
			vec = []float32{1, 0, 0.1}
		case strings.Contains(lower, "deploy"):
			vec = []float32{0, 1, 0.1}
		}
		out[i] = vec
	}
	return out, nil
}

func (e *keywordEmbedder) Model() string   { return "keyword-embed" }
func (e *keywordEmbedder) Dimensions() int { return 3 }

// scriptedExtractor returns a fixed entity list, or fails on demand.
type scriptedExtractor struct {
	entities []types.ExtractedEntity
	fail     bool
}

func (e *scriptedExtractor) ExtractEntities(_ context.Context, _ string) ([]types.ExtractedEntity, error) {
	if e.fail {
		return nil, llm.ErrExtraction
	}
	return e.entities, nil
}

func newAnalyzer(t *testing.T, embedClient llm.EmbeddingClient, extractor llm.ExtractionClient) *Analyzer {
	t.Helper()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	embedder, err := llm.NewEmbeddingService(embedClient, 64)
	require.NoError(t, err)

	return NewAnalyzer(store, embedder, extractor, config.DefaultConfig())
}

func userMessage(content string, ts time.Time) *types.ChatMessage {
	return &types.ChatMessage{
		ID:        uuid.NewString(),
		Content:   content,
		Role:      types.RoleUser,
		Timestamp: ts,
		SessionID: "session-1",
	}
}

func TestAnalyzeFirstMessageHasNoSimilarContent(t *testing.T) {
	a := newAnalyzer(t, &keywordEmbedder{}, &scriptedExtractor{})
	ctx := context.Background()

	analysis, err := a.AnalyzeMessage(ctx, userMessage("Thinking about the database migration.", time.Now()))
	require.NoError(t, err)

	assert.Empty(t, analysis.SimilarChunks)
	assert.Empty(t, analysis.RecentMessages)
	assert.Equal(t, 1, analysis.TotalChunksAnalyzed)
	assert.Greater(t, analysis.ProcessingTimeMs, 0.0)
}

func TestAnalyzeSurfacesRelatedPriorContent(t *testing.T) {
	a := newAnalyzer(t, &keywordEmbedder{}, &scriptedExtractor{})
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	first := userMessage("The database schema needs a new index.", base)
	_, err := a.AnalyzeMessage(ctx, first)
	require.NoError(t, err)

	// Unrelated filler in between.
	_, err = a.AnalyzeMessage(ctx, userMessage("Lunch at noon works for me.", base.Add(time.Minute)))
	require.NoError(t, err)

	analysis, err := a.AnalyzeMessage(ctx, userMessage("Back to the database index question.", base.Add(2*time.Minute)))
	require.NoError(t, err)

	require.NotEmpty(t, analysis.SimilarChunks, "related prior chunk should surface")
	assert.Equal(t, first.ID, analysis.SimilarChunks[0].Chunk.MessageID)
	assert.GreaterOrEqual(t, analysis.SimilarChunks[0].Similarity, 0.7)

	require.NotEmpty(t, analysis.SimilarMessages)
	assert.Equal(t, first.ID, analysis.SimilarMessages[0].ID)

	// Recent messages are strictly older and newest first.
	require.Len(t, analysis.RecentMessages, 2)
	assert.Equal(t, "Lunch at noon works for me.", analysis.RecentMessages[0].Content)

	assert.Greater(t, analysis.ConversationContinuity, 0.0)
}

func TestAnalyzeNeverMatchesOwnChunks(t *testing.T) {
	a := newAnalyzer(t, &keywordEmbedder{}, &scriptedExtractor{})
	ctx := context.Background()

	// A long message splits into several chunks with identical vectors; none
	// of them may match each other.
	content := strings.Repeat("The database keeps growing and the database team is worried. ", 20)
	analysis, err := a.AnalyzeMessage(ctx, userMessage(content, time.Now()))
	require.NoError(t, err)

	assert.Greater(t, analysis.TotalChunksAnalyzed, 1)
	assert.Empty(t, analysis.SimilarChunks)
}

func TestAnalyzeAccumulatesEntities(t *testing.T) {
	extractor := &scriptedExtractor{entities: []types.ExtractedEntity{
		{Name: "PostgreSQL", Type: types.EntityTypeTech, Confidence: 0.9, Context: "tuning PostgreSQL"},
	}}
	a := newAnalyzer(t, &keywordEmbedder{}, extractor)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	first, err := a.AnalyzeMessage(ctx, userMessage("Tuning PostgreSQL today.", base))
	require.NoError(t, err)
	require.Len(t, first.MentionedEntities, 1)
	require.Len(t, first.RelatedEntities, 1)
	assert.Equal(t, 1, first.RelatedEntities[0].MentionCount)

	extractor.entities[0].Confidence = 0.7
	second, err := a.AnalyzeMessage(ctx, userMessage("Still tuning PostgreSQL.", base.Add(time.Minute)))
	require.NoError(t, err)

	require.Len(t, second.RelatedEntities, 1)
	assert.Equal(t, 2, second.RelatedEntities[0].MentionCount)
	assert.InDelta(t, 0.8, second.RelatedEntities[0].Confidence, 1e-9, "confidence is the running average")

	assert.Equal(t, []string{"postgresql"}, second.Topics)
	require.Contains(t, second.EntityContext, "postgresql")
}

func TestAnalyzeExtractionFailureDegrades(t *testing.T) {
	a := newAnalyzer(t, &keywordEmbedder{}, &scriptedExtractor{fail: true})
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	_, err := a.AnalyzeMessage(ctx, userMessage("The database design review.", base))
	require.NoError(t, err)

	analysis, err := a.AnalyzeMessage(ctx, userMessage("More database design talk.", base.Add(time.Minute)))
	require.NoError(t, err)

	// Entities are absent but similarity search still works.
	assert.Empty(t, analysis.MentionedEntities)
	assert.Empty(t, analysis.Topics)
	assert.NotEmpty(t, analysis.SimilarChunks)
	assert.Equal(t, 0, analysis.TotalEntitiesExtracted)
}

func TestAnalyzeEmbeddingFailureFallsBackToRecency(t *testing.T) {
	embedClient := &keywordEmbedder{}
	a := newAnalyzer(t, embedClient, &scriptedExtractor{})
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	_, err := a.AnalyzeMessage(ctx, userMessage("Earlier context message.", base))
	require.NoError(t, err)

	embedClient.fail = true
	analysis, err := a.AnalyzeMessage(ctx, userMessage("This one cannot be embedded.", base.Add(time.Minute)))
	require.NoError(t, err)

	assert.Empty(t, analysis.SimilarChunks)
	assert.Empty(t, analysis.MentionedEntities)
	require.Len(t, analysis.RecentMessages, 1)
	assert.Equal(t, "Earlier context message.", analysis.RecentMessages[0].Content)
	assert.InDelta(t, 0.5, analysis.Confidence, 1e-9)
	assert.Equal(t, 1, analysis.TotalChunksAnalyzed)

	// The failed message is still recorded and shows up as recency context
	// for the next one.
	embedClient.fail = false
	next, err := a.AnalyzeMessage(ctx, userMessage("And moving on.", base.Add(2*time.Minute)))
	require.NoError(t, err)
	require.Len(t, next.RecentMessages, 2)
	assert.Equal(t, "This one cannot be embedded.", next.RecentMessages[0].Content)
}

func TestAnalyzeAssignsMessageDefaults(t *testing.T) {
	a := newAnalyzer(t, &keywordEmbedder{}, &scriptedExtractor{})

	msg := &types.ChatMessage{Content: "No id or timestamp set.", Role: types.RoleUser}
	_, err := a.AnalyzeMessage(context.Background(), msg)
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.Timestamp.IsZero())
}
