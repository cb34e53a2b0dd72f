package types

import "time"

// ContextAnalysis is the pipeline's output artifact: everything the
// downstream response agent needs to know about a message's relationship to
// prior conversation. It is constructed fresh per analyzed message and never
// mutated after construction.
type ContextAnalysis struct {
	// Recent temporal context: messages strictly older than the analyzed
	// message, across all sessions. Memory recall is deliberately global.
	RecentMessages []MessageSummary `json:"recent_messages"`

	// Semantic matches
	SimilarChunks   []SimilarChunk   `json:"similar_chunks"`
	SimilarMessages []MessageSummary `json:"similar_messages"`

	// Entities
	MentionedEntities []Entity            `json:"mentioned_entities"`
	RelatedEntities   []Entity            `json:"related_entities"`
	EntityContext     map[string][]string `json:"entity_context,omitempty"`

	// Topic signals
	Topics                 []string `json:"topics"`
	IsNewTopic             bool     `json:"is_new_topic"`
	ConversationContinuity float64  `json:"conversation_continuity"` // 0.0-1.0

	// Temporal insights over the similar-messages set
	TimeSpanDays          int        `json:"time_span_days"`
	OldestRelevantMessage *time.Time `json:"oldest_relevant_message,omitempty"`

	// Run metadata
	TotalChunksAnalyzed    int     `json:"total_chunks_analyzed"`
	TotalEntitiesExtracted int     `json:"total_entities_extracted"`
	ProcessingTimeMs       float64 `json:"processing_time_ms"`
	Confidence             float64 `json:"confidence"`
}

// EmptyContextAnalysis returns the minimal valid analysis used when the
// pipeline degrades. Confidence sits at the neutral 0.5 default so callers
// can tell a degraded run from a confident empty one.
func EmptyContextAnalysis() *ContextAnalysis {
	return &ContextAnalysis{
		RecentMessages:    []MessageSummary{},
		SimilarChunks:     []SimilarChunk{},
		SimilarMessages:   []MessageSummary{},
		MentionedEntities: []Entity{},
		RelatedEntities:   []Entity{},
		Topics:            []string{},
		Confidence:        0.5,
	}
}
