package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/recall/pkg/types"
)

// fakeEmbedder returns deterministic vectors and counts provider calls.
type fakeEmbedder struct {
	calls   int
	batches [][]string
	fail    bool
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	f.batches = append(f.batches, texts)
	if f.fail {
		return nil, ErrEmbedding
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1, 0}
	}
	return out, nil
}

func (f *fakeEmbedder) Model() string   { return "fake-embed" }
func (f *fakeEmbedder) Dimensions() int { return 3 }

func TestEmbedTextsCachesRepeats(t *testing.T) {
	fake := &fakeEmbedder{}
	svc, err := NewEmbeddingService(fake, 16)
	require.NoError(t, err)

	ctx := context.Background()

	first, err := svc.EmbedTexts(ctx, []string{"alpha", "beta"})
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, 1, fake.calls)

	// Second call with one cached and one new text only requests the miss.
	second, err := svc.EmbedTexts(ctx, []string{"alpha", "gamma"})
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, 2, fake.calls)
	assert.Equal(t, []string{"gamma"}, fake.batches[1])
	assert.Equal(t, first[0], second[0])
}

func TestEmbedTextsAllCached(t *testing.T) {
	fake := &fakeEmbedder{}
	svc, err := NewEmbeddingService(fake, 16)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = svc.EmbedTexts(ctx, []string{"alpha"})
	require.NoError(t, err)

	_, err = svc.EmbedTexts(ctx, []string{"alpha"})
	require.NoError(t, err)
	assert.Equal(t, 1, fake.calls, "fully cached request should not hit the provider")
}

func TestEmbedChunksAttachesVectors(t *testing.T) {
	fake := &fakeEmbedder{}
	svc, err := NewEmbeddingService(fake, 16)
	require.NoError(t, err)

	chunks := []types.Chunk{
		{ID: "c1", Content: "first chunk"},
		{ID: "c2", Content: "second chunk"},
	}

	require.NoError(t, svc.EmbedChunks(context.Background(), chunks))

	for i, c := range chunks {
		assert.True(t, c.HasEmbedding(), "chunk %d missing embedding", i)
		assert.Equal(t, "fake-embed", c.EmbeddingModel)
		require.NotNil(t, c.EmbeddedAt)
	}
}

func TestEmbedChunksFailureLeavesChunksUntouched(t *testing.T) {
	fake := &fakeEmbedder{fail: true}
	svc, err := NewEmbeddingService(fake, 16)
	require.NoError(t, err)

	chunks := []types.Chunk{{ID: "c1", Content: "first chunk"}}

	err = svc.EmbedChunks(context.Background(), chunks)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmbedding))
	assert.False(t, chunks[0].HasEmbedding())
	assert.Empty(t, chunks[0].EmbeddingModel)
}
