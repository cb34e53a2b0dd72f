package types

import "time"

// ChatMessage is a single recorded message in a conversation.
type ChatMessage struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Role      string    `json:"role"` // user, assistant, system
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id,omitempty"`
}

// MessageSummary is a truncated view of a message used inside a context
// bundle. Content is capped at 200 characters with a trailing ellipsis.
type MessageSummary struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Role      string    `json:"role,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// summaryMaxContent is the content cap applied to context payloads.
const summaryMaxContent = 200

// Summarize builds a MessageSummary with the content truncated for context
// payloads.
func (m *ChatMessage) Summarize() MessageSummary {
	return MessageSummary{
		ID:        m.ID,
		Content:   TruncateContent(m.Content),
		Role:      m.Role,
		Timestamp: m.Timestamp,
	}
}

// TruncateContent caps content at 200 characters, appending "..." when
// anything was cut.
func TruncateContent(content string) string {
	if len(content) <= summaryMaxContent {
		return content
	}
	return content[:summaryMaxContent] + "..."
}
