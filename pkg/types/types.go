// Package types defines the core data structures for the Recall memory layer.
// These types represent chat messages, semantic chunks, extracted entities,
// and the context bundle assembled for the downstream response agent.
package types

// ChunkType classifies the semantic shape of a chunk.
type ChunkType string

// Chunk type constants
const (
	// ChunkTypeParagraph is the default chunk classification.
	ChunkTypeParagraph ChunkType = "paragraph"

	// ChunkTypeSentence marks a short single-line chunk.
	ChunkTypeSentence ChunkType = "sentence"

	// ChunkTypeCode marks a fenced or indented code block.
	ChunkTypeCode ChunkType = "code"

	// ChunkTypeHeading marks a markdown heading.
	ChunkTypeHeading ChunkType = "heading"
)

// Entity type constants - the six categories the extraction model recognizes.
const (
	EntityTypePerson   = "PERSON"
	EntityTypeOrg      = "ORG"
	EntityTypeLocation = "LOCATION"
	EntityTypeTech     = "TECH"
	EntityTypeConcept  = "CONCEPT"
	EntityTypeEvent    = "EVENT"
)

// ValidEntityTypes is a slice of all valid entity types for validation
var ValidEntityTypes = []string{
	EntityTypePerson,
	EntityTypeOrg,
	EntityTypeLocation,
	EntityTypeTech,
	EntityTypeConcept,
	EntityTypeEvent,
}

// IsValidEntityType checks if the given entity type is valid
func IsValidEntityType(entityType string) bool {
	for _, validType := range ValidEntityTypes {
		if validType == entityType {
			return true
		}
	}
	return false
}

// Message role constants
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)
