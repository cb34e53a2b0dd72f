package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/scrypster/recall/internal/config"
	"github.com/scrypster/recall/internal/llm"
	"github.com/scrypster/recall/internal/splitter"
	"github.com/scrypster/recall/internal/storage"
	"github.com/scrypster/recall/pkg/types"
)

// Analyzer runs the full memory pipeline for an incoming message: split,
// embed, extract, search prior content, persist, and assemble the context
// bundle. Model failures degrade the result instead of failing the call:
// without extraction the analysis simply carries no entities, and without
// embeddings it falls back to recency-only context.
type Analyzer struct {
	store          storage.Store
	embedder       *llm.EmbeddingService
	extractor      llm.ExtractionClient
	splitter       *splitter.Splitter
	searcher       *SimilaritySearcher
	builder        *ContextBuilder
	recentLimit    int
	timeWindowDays int
}

// NewAnalyzer wires the pipeline from its parts.
func NewAnalyzer(store storage.Store, embedder *llm.EmbeddingService, extractor llm.ExtractionClient, cfg *config.Config) *Analyzer {
	return &Analyzer{
		store:     store,
		embedder:  embedder,
		extractor: extractor,
		splitter:  splitter.New(cfg.Splitter.MaxChunkSize, cfg.Splitter.OverlapFraction),
		searcher: NewSearcher(SearchOptions{
			Threshold:        cfg.Search.Threshold,
			TopKPerChunk:     cfg.Search.TopKPerChunk,
			MaxSimilarChunks: cfg.Search.MaxSimilarChunks,
			TimeWindowDays:   cfg.Search.TimeWindowDays,
		}),
		builder:        NewContextBuilder(store, store),
		recentLimit:    cfg.Context.RecentMessagesLimit,
		timeWindowDays: cfg.Search.TimeWindowDays,
	}
}

// AnalyzeMessage records msg and returns the context bundle relating it to
// prior conversation. The message is persisted even when analysis degrades.
func (a *Analyzer) AnalyzeMessage(ctx context.Context, msg *types.ChatMessage) (*types.ContextAnalysis, error) {
	started := time.Now()

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = started
	}

	if err := a.store.SaveMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to record message: %w", err)
	}

	chunks := a.splitter.Split(msg.Content, msg.ID)
	if len(chunks) == 0 {
		// Whitespace-heavy content the splitter rejects still becomes one
		// chunk so the message participates in future searches.
		chunks = []types.Chunk{{
			ID:        uuid.NewString(),
			Content:   msg.Content,
			Type:      types.ChunkTypeParagraph,
			CreatedAt: started,
			ValidAt:   started,
			CharEnd:   len(msg.Content),
			MessageID: msg.ID,
		}}
	}

	// Embedding and extraction are independent model calls; run them
	// concurrently.
	var embedErr, extractErr error
	var extracted []types.ExtractedEntity

	done := make(chan struct{})
	go func() {
		defer close(done)
		extracted, extractErr = a.extractor.ExtractEntities(ctx, msg.Content)
	}()
	embedErr = a.embedder.EmbedChunks(ctx, chunks)
	<-done

	if extractErr != nil {
		log.Printf("analyzer: entity extraction failed, continuing without entities: %v", extractErr)
		extracted = nil
	}

	if embedErr != nil {
		log.Printf("analyzer: embedding failed, falling back to recency-only context: %v", embedErr)
		if err := a.store.SaveChunks(ctx, chunks); err != nil {
			return nil, fmt.Errorf("failed to save chunks: %w", err)
		}
		return a.recencyOnlyAnalysis(ctx, msg, len(chunks), started)
	}

	var since time.Time
	if a.timeWindowDays > 0 {
		since = msg.Timestamp.AddDate(0, 0, -a.timeWindowDays)
	}
	corpus, err := a.store.ChunksWithEmbeddings(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load search corpus: %w", err)
	}
	similar := a.searcher.FindSimilarForMultiple(chunks, corpus, msg.ID, msg.Timestamp)

	mentioned, related, entityContext, err := a.recordEntities(ctx, extracted, msg.Timestamp)
	if err != nil {
		return nil, err
	}

	recent, err := a.store.RecentMessages(ctx, msg.Timestamp, a.recentLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent messages: %w", err)
	}

	if err := a.store.SaveChunks(ctx, chunks); err != nil {
		return nil, fmt.Errorf("failed to save chunks: %w", err)
	}
	if err := a.store.SaveEdges(ctx, msg.ID, similar); err != nil {
		return nil, fmt.Errorf("failed to save similarity edges: %w", err)
	}

	return a.builder.BuildContext(ctx, BuildInput{
		Message:        msg,
		SimilarChunks:  similar,
		Mentioned:      mentioned,
		Related:        related,
		EntityContext:  entityContext,
		RecentMessages: recent,
		ChunksAnalyzed: len(chunks),
		StartedAt:      started,
	})
}

// recordEntities canonicalizes and upserts the extraction results. It
// returns the entities as mentioned in this message, the merged records
// from storage, and the per-entity context phrases.
func (a *Analyzer) recordEntities(ctx context.Context, extracted []types.ExtractedEntity, now time.Time) ([]types.Entity, []types.Entity, map[string][]string, error) {
	if len(extracted) == 0 {
		return nil, nil, nil, nil
	}

	mentioned := make([]types.Entity, 0, len(extracted))
	entityContext := make(map[string][]string)
	var names []string
	seenNames := make(map[string]bool)

	for _, ex := range extracted {
		entity := ToEntity(ex, now)

		stored, err := a.store.UpsertEntity(ctx, &entity)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to upsert entity %q: %w", entity.CanonicalName, err)
		}

		mentioned = append(mentioned, entity)
		if ex.Context != "" {
			entityContext[entity.CanonicalName] = append(entityContext[entity.CanonicalName], ex.Context)
		}
		if !seenNames[stored.CanonicalName] {
			seenNames[stored.CanonicalName] = true
			names = append(names, stored.CanonicalName)
		}
	}

	related, err := a.store.EntitiesByNames(ctx, names)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load related entities: %w", err)
	}

	return mentioned, related, entityContext, nil
}

// recencyOnlyAnalysis produces the degraded bundle used when embeddings are
// unavailable: recent messages only, neutral confidence.
func (a *Analyzer) recencyOnlyAnalysis(ctx context.Context, msg *types.ChatMessage, chunkCount int, started time.Time) (*types.ContextAnalysis, error) {
	analysis := types.EmptyContextAnalysis()

	recent, err := a.store.RecentMessages(ctx, msg.Timestamp, a.recentLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent messages: %w", err)
	}
	for i := range recent {
		analysis.RecentMessages = append(analysis.RecentMessages, recent[i].Summarize())
	}

	analysis.TotalChunksAnalyzed = chunkCount
	analysis.ProcessingTimeMs = float64(time.Since(started).Microseconds()) / 1000.0
	return analysis, nil
}
