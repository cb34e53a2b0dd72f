package llm

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/scrypster/recall/pkg/types"
)

// EntityResponse represents a single entity extracted from a model response.
type EntityResponse struct {
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
	Context    string  `json:"context,omitempty"`
}

// EntityExtractionResponse represents the complete entity extraction response.
type EntityExtractionResponse struct {
	Entities []EntityResponse `json:"entities"`
}

// extractJSON extracts the first valid JSON object from a string that may contain extra text.
// This handles cases where models add explanations before/after the JSON despite instructions.
func extractJSON(text string) string {
	// Remove common markdown code block markers
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	if start == -1 {
		return text // No JSON found, return as-is and let parser fail
	}

	// Find the matching closing brace
	braceCount := 0
	inString := false
	escape := false

	for i := start; i < len(text); i++ {
		char := text[i]

		if escape {
			escape = false
			continue
		}
		if char == '\\' {
			escape = true
			continue
		}

		if char == '"' {
			inString = !inString
			continue
		}

		// Only count braces outside of strings
		if !inString {
			switch char {
			case '{':
				braceCount++
			case '}':
				braceCount--
				if braceCount == 0 {
					return text[start : i+1]
				}
			}
		}
	}

	return text // No complete JSON found, return as-is
}

// ParseEntityResponse parses entity extraction JSON and filters out invalid
// entries. Unknown entity types or out-of-range confidence scores are skipped
// rather than failing the entire batch. Only returns an error if the JSON
// itself is malformed.
func ParseEntityResponse(jsonStr string) ([]types.ExtractedEntity, error) {
	cleanJSON := extractJSON(jsonStr)

	var response EntityExtractionResponse
	if err := json.Unmarshal([]byte(cleanJSON), &response); err != nil {
		return nil, fmt.Errorf("failed to parse entity JSON: %w", err)
	}

	var valid []types.ExtractedEntity
	for _, entity := range response.Entities {
		entityType := strings.ToUpper(strings.TrimSpace(entity.Type))
		if !types.IsValidEntityType(entityType) {
			log.Printf("response_parser: skipping entity %q with unknown type %q", entity.Name, entity.Type)
			continue
		}
		if strings.TrimSpace(entity.Name) == "" {
			continue
		}
		if entity.Confidence < 0.0 || entity.Confidence > 1.0 {
			log.Printf("response_parser: skipping entity %q with invalid confidence %f", entity.Name, entity.Confidence)
			continue
		}
		valid = append(valid, types.ExtractedEntity{
			Name:       strings.TrimSpace(entity.Name),
			Type:       entityType,
			Confidence: entity.Confidence,
			Context:    entity.Context,
		})
	}
	return valid, nil
}
