package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "clean json",
			input: `{"entities": []}`,
			want:  `{"entities": []}`,
		},
		{
			name:  "markdown fenced",
			input: "```json\n{\"entities\": []}\n```",
			want:  `{"entities": []}`,
		},
		{
			name:  "prose around json",
			input: `Here are the results: {"entities": [{"name": "Go", "type": "TECH", "confidence": 0.9}]} Hope that helps!`,
			want:  `{"entities": [{"name": "Go", "type": "TECH", "confidence": 0.9}]}`,
		},
		{
			name:  "braces inside strings",
			input: `{"entities": [{"name": "f{x}", "type": "CONCEPT", "confidence": 0.5}]}`,
			want:  `{"entities": [{"name": "f{x}", "type": "CONCEPT", "confidence": 0.5}]}`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, extractJSON(tc.input))
		})
	}
}

func TestParseEntityResponseSkipsInvalid(t *testing.T) {
	jsonStr := `{"entities": [
		{"name": "Alice", "type": "PERSON", "confidence": 0.9},
		{"name": "Widget", "type": "GADGET", "confidence": 0.9},
		{"name": "Bob", "type": "PERSON", "confidence": 1.5},
		{"name": "", "type": "PERSON", "confidence": 0.8},
		{"name": "kubernetes", "type": "tech", "confidence": 0.85}
	]}`

	entities, err := ParseEntityResponse(jsonStr)
	require.NoError(t, err)
	require.Len(t, entities, 2)

	assert.Equal(t, "Alice", entities[0].Name)
	assert.Equal(t, "PERSON", entities[0].Type)

	// Lowercase types are normalized, not rejected.
	assert.Equal(t, "kubernetes", entities[1].Name)
	assert.Equal(t, "TECH", entities[1].Type)
}

func TestParseEntityResponseEmptyList(t *testing.T) {
	entities, err := ParseEntityResponse(`{"entities": []}`)
	require.NoError(t, err)
	assert.Empty(t, entities)
}

func TestParseEntityResponseMalformed(t *testing.T) {
	_, err := ParseEntityResponse(`not json at all`)
	assert.Error(t, err)
}
