package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/scrypster/recall/internal/storage"
	"github.com/scrypster/recall/pkg/types"
)

// continuityWeights is the positional decay applied to the strongest
// similar chunks when scoring conversation continuity. The best match
// counts fully, deeper matches progressively less.
var continuityWeights = []float64{1.0, 0.8, 0.6, 0.4, 0.2}

const (
	// maxSimilarMessages caps how many distinct parent messages are surfaced.
	maxSimilarMessages = 5

	// maxTechTopics and maxConceptTopics cap the topic list composition.
	maxTechTopics    = 5
	maxConceptTopics = 3

	// newTopicLookback is how many recent messages are scanned when
	// deciding whether the current topics are new to the conversation.
	newTopicLookback = 3
)

// BuildInput carries everything the builder folds into a ContextAnalysis.
type BuildInput struct {
	Message        *types.ChatMessage
	SimilarChunks  []types.SimilarChunk
	Mentioned      []types.Entity
	Related        []types.Entity
	EntityContext  map[string][]string
	RecentMessages []types.ChatMessage
	ChunksAnalyzed int
	StartedAt      time.Time
}

// ContextBuilder assembles a ContextAnalysis from search and extraction
// results. It reads messages and chunks to resolve the parents of similar
// chunks but never writes.
type ContextBuilder struct {
	messages storage.MessageStore
	chunks   storage.ChunkStore
}

// NewContextBuilder creates a builder backed by the given stores.
func NewContextBuilder(messages storage.MessageStore, chunks storage.ChunkStore) *ContextBuilder {
	return &ContextBuilder{messages: messages, chunks: chunks}
}

// BuildContext folds the input into a complete analysis. Missing parent
// messages are skipped rather than failing the whole build.
func (b *ContextBuilder) BuildContext(ctx context.Context, in BuildInput) (*types.ContextAnalysis, error) {
	analysis := types.EmptyContextAnalysis()

	for i := range in.RecentMessages {
		analysis.RecentMessages = append(analysis.RecentMessages, in.RecentMessages[i].Summarize())
	}

	analysis.SimilarChunks = truncateChunks(in.SimilarChunks)

	similarMessages, err := b.resolveParents(ctx, in.SimilarChunks)
	if err != nil {
		return nil, err
	}
	analysis.SimilarMessages = similarMessages

	analysis.MentionedEntities = in.Mentioned
	analysis.RelatedEntities = in.Related
	if in.EntityContext != nil {
		analysis.EntityContext = in.EntityContext
	}

	analysis.Topics = buildTopics(in.Mentioned)
	analysis.IsNewTopic = isNewTopic(analysis.Topics, in.RecentMessages)
	analysis.ConversationContinuity = continuityScore(in.SimilarChunks)

	if oldest := oldestChunkTime(in.SimilarChunks); oldest != nil {
		analysis.OldestRelevantMessage = oldest
		ref := in.Message.Timestamp
		if ref.IsZero() {
			ref = time.Now()
		}
		if days := int(ref.Sub(*oldest).Hours() / 24); days > 0 {
			analysis.TimeSpanDays = days
		}
	}

	analysis.TotalChunksAnalyzed = in.ChunksAnalyzed
	analysis.TotalEntitiesExtracted = len(in.Mentioned)
	analysis.Confidence = confidenceScore(in.SimilarChunks, in.Mentioned)
	if !in.StartedAt.IsZero() {
		analysis.ProcessingTimeMs = float64(time.Since(in.StartedAt).Microseconds()) / 1000.0
	}

	return analysis, nil
}

// resolveParents returns summaries for the first maxSimilarMessages distinct
// parent messages of the similar chunks, in match-strength order.
func (b *ContextBuilder) resolveParents(ctx context.Context, similar []types.SimilarChunk) ([]types.MessageSummary, error) {
	seen := make(map[string]bool)
	var summaries []types.MessageSummary

	for _, sc := range similar {
		if len(summaries) >= maxSimilarMessages {
			break
		}
		id := sc.Chunk.MessageID
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		msg, err := b.messages.GetMessage(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}

		summary := msg.Summarize()
		if content, err := b.rebuildContent(ctx, id); err != nil {
			return nil, err
		} else if content != "" {
			summary.Content = types.TruncateContent(content)
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// rebuildContent reassembles a message's text from its stored chunks. The
// chunk view is authoritative here: invalidated chunks drop out of the
// rebuilt content even though the raw message still carries them.
func (b *ContextBuilder) rebuildContent(ctx context.Context, messageID string) (string, error) {
	chunks, err := b.chunks.ChunksForMessage(ctx, messageID)
	if err != nil {
		return "", err
	}

	var parts []string
	for _, c := range chunks {
		if c.InvalidAt != nil {
			continue
		}
		parts = append(parts, c.Content)
	}
	return strings.Join(parts, " "), nil
}

// truncateChunks copies the similar chunks with their content capped for
// display, leaving the originals untouched.
func truncateChunks(similar []types.SimilarChunk) []types.SimilarChunk {
	out := make([]types.SimilarChunk, len(similar))
	for i, sc := range similar {
		sc.Chunk.Content = types.TruncateContent(sc.Chunk.Content)
		out[i] = sc
	}
	return out
}

// buildTopics derives the topic list from mentioned entities: up to
// maxTechTopics technologies followed by up to maxConceptTopics concepts,
// deduplicated by canonical name.
func buildTopics(mentioned []types.Entity) []string {
	var topics []string
	seen := make(map[string]bool)

	tech, concepts := 0, 0
	for _, e := range mentioned {
		if e.Type != types.EntityTypeTech || tech >= maxTechTopics {
			continue
		}
		if seen[e.CanonicalName] {
			continue
		}
		seen[e.CanonicalName] = true
		topics = append(topics, e.CanonicalName)
		tech++
	}
	for _, e := range mentioned {
		if e.Type != types.EntityTypeConcept || concepts >= maxConceptTopics {
			continue
		}
		if seen[e.CanonicalName] {
			continue
		}
		seen[e.CanonicalName] = true
		topics = append(topics, e.CanonicalName)
		concepts++
	}
	return topics
}

// isNewTopic reports whether none of the topics appears in the most recent
// messages. No topics means nothing new to report.
func isNewTopic(topics []string, recent []types.ChatMessage) bool {
	if len(topics) == 0 {
		return false
	}

	lookback := recent
	if len(lookback) > newTopicLookback {
		lookback = lookback[:newTopicLookback]
	}

	for _, topic := range topics {
		for _, msg := range lookback {
			if strings.Contains(strings.ToLower(msg.Content), topic) {
				return false
			}
		}
	}
	return true
}

// continuityScore computes the weighted average similarity of the strongest
// matches under the positional decay weights.
func continuityScore(similar []types.SimilarChunk) float64 {
	if len(similar) == 0 {
		return 0
	}

	n := len(similar)
	if n > len(continuityWeights) {
		n = len(continuityWeights)
	}

	var weighted, total float64
	for i := 0; i < n; i++ {
		weighted += continuityWeights[i] * similar[i].Similarity
		total += continuityWeights[i]
	}
	return weighted / total
}

// confidenceScore averages the analysis signals: mean chunk similarity and
// mean entity confidence. A missing signal contributes the neutral 0.5.
func confidenceScore(similar []types.SimilarChunk, mentioned []types.Entity) float64 {
	simSignal := 0.5
	if len(similar) > 0 {
		var sum float64
		for _, sc := range similar {
			sum += sc.Similarity
		}
		simSignal = sum / float64(len(similar))
	}

	entitySignal := 0.5
	if len(mentioned) > 0 {
		var sum float64
		for _, e := range mentioned {
			sum += e.Confidence
		}
		entitySignal = sum / float64(len(mentioned))
	}

	return (simSignal + entitySignal) / 2
}

// oldestChunkTime returns the earliest creation time among similar chunks.
func oldestChunkTime(similar []types.SimilarChunk) *time.Time {
	var oldest *time.Time
	for i := range similar {
		t := similar[i].Chunk.CreatedAt
		if t.IsZero() {
			continue
		}
		if oldest == nil || t.Before(*oldest) {
			oldest = &t
		}
	}
	return oldest
}
