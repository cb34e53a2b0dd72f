// Package splitter implements semantic text chunking. Text is split along a
// hierarchy of separators (paragraphs first, single spaces last) so chunk
// boundaries land on natural breaks, with a configurable overlap carried
// between adjacent chunks to preserve local context.
package splitter

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/scrypster/recall/pkg/types"
)

// separators is the split hierarchy, coarsest first. If none of these occur
// in an oversized block the splitter falls back to fixed-size cuts.
var separators = []string{
	"\n\n", // paragraphs
	"\n",   // lines
	". ",   // sentences
	"! ",
	"? ",
	"; ",
	": ",
	", ",
	" ", // words
}

// Splitter splits raw message text into bounded, typed chunks. It is pure
// configuration and safe for concurrent use.
type Splitter struct {
	maxChunkSize int
	overlapSize  int
}

// New creates a Splitter. maxChunkSize is the chunk character cap;
// overlapFraction (0.0-1.0) sets the overlap carried between adjacent chunks
// as a fraction of maxChunkSize.
func New(maxChunkSize int, overlapFraction float64) *Splitter {
	if maxChunkSize < 1 {
		maxChunkSize = 800
	}
	overlap := int(float64(maxChunkSize) * overlapFraction)
	if overlap < 0 {
		overlap = 0
	}
	return &Splitter{
		maxChunkSize: maxChunkSize,
		overlapSize:  overlap,
	}
}

// MaxChunkSize returns the configured chunk character cap.
func (s *Splitter) MaxChunkSize() int { return s.maxChunkSize }

// OverlapSize returns the configured overlap in characters.
func (s *Splitter) OverlapSize() int { return s.overlapSize }

// Split breaks text into ordered chunks. Empty or whitespace-only input
// yields no chunks. The result is deterministic for a given input and
// configuration; Split never fails.
func (s *Splitter) Split(text, messageID string) []types.Chunk {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	parts := s.recursiveSplit(trimmed, 0)

	now := time.Now()
	chunks := make([]types.Chunk, 0, len(parts))
	searchFrom := 0

	for i, part := range parts {
		// Locate the fragment in the original text, searching forward from
		// the previous fragment's start. Overlap text duplicates content, so
		// this is an approximation: if the search misses we fall back to
		// cumulative-length arithmetic.
		start := strings.Index(text[searchFrom:], part)
		if start >= 0 {
			start += searchFrom
		} else {
			start = 0
			for _, prev := range parts[:i] {
				start += len(prev)
			}
		}

		chunks = append(chunks, types.Chunk{
			ID:        uuid.NewString(),
			Content:   part,
			Position:  i,
			CharStart: start,
			CharEnd:   start + len(part),
			Type:      detectChunkType(part),
			CreatedAt: now,
			ValidAt:   now,
			MessageID: messageID,
		})

		searchFrom = start + len(part)
		if searchFrom > len(text) {
			searchFrom = len(text)
		}
	}

	return chunks
}

// recursiveSplit splits text using the separator hierarchy starting at
// sepIndex, greedily packing fragments up to the chunk cap and seeding each
// new chunk with the tail of the previous one.
func (s *Splitter) recursiveSplit(text string, sepIndex int) []string {
	if len(text) <= s.maxChunkSize {
		if text == "" {
			return nil
		}
		return []string{text}
	}

	if sepIndex >= len(separators) {
		return s.forceSplit(text)
	}

	sep := separators[sepIndex]
	parts := strings.Split(text, sep)
	if len(parts) == 1 {
		// Separator absent, try a finer one.
		return s.recursiveSplit(text, sepIndex+1)
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() == 0 {
			return
		}
		chunkText := current.String()
		if len(chunkText) > s.maxChunkSize {
			// Still oversized at this level, recurse at the next one.
			chunks = append(chunks, s.recursiveSplit(chunkText, sepIndex+1)...)
		} else {
			chunks = append(chunks, chunkText)
		}
		current.Reset()
	}

	for i, part := range parts {
		fragment := part
		if i < len(parts)-1 {
			fragment += sep
		}

		if current.Len()+len(fragment) > s.maxChunkSize && current.Len() > 0 {
			flush()
			// Seed the new chunk with the tail of the previous one.
			if len(chunks) > 0 && s.overlapSize > 0 {
				prev := chunks[len(chunks)-1]
				if len(prev) > s.overlapSize {
					current.WriteString(prev[len(prev)-s.overlapSize:])
				} else {
					current.WriteString(prev)
				}
			}
		}
		current.WriteString(fragment)
	}
	flush()

	return chunks
}

// forceSplit cuts text at fixed character boundaries. Last resort for text
// with no usable separators.
func (s *Splitter) forceSplit(text string) []string {
	step := s.maxChunkSize - s.overlapSize
	if step < 1 {
		step = s.maxChunkSize
	}
	var chunks []string
	for i := 0; i < len(text); i += step {
		end := i + s.maxChunkSize
		if end > len(text) {
			end = len(text)
		}
		if end > i {
			chunks = append(chunks, text[i:end])
		}
	}
	return chunks
}

// detectChunkType classifies a finished chunk with a cheap heuristic.
func detectChunkType(text string) types.ChunkType {
	trimmed := strings.TrimSpace(text)

	if isHeading(trimmed) {
		return types.ChunkTypeHeading
	}
	if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(text, "    ") {
		return types.ChunkTypeCode
	}
	if !strings.Contains(trimmed, "\n") && len(trimmed) < 200 {
		return types.ChunkTypeSentence
	}
	return types.ChunkTypeParagraph
}

// isHeading reports whether text starts with a markdown heading marker
// (1-6 '#' characters followed by a space).
func isHeading(text string) bool {
	hashes := 0
	for hashes < len(text) && text[hashes] == '#' {
		hashes++
	}
	if hashes < 1 || hashes > 6 || hashes >= len(text) {
		return false
	}
	return text[hashes] == ' ' || text[hashes] == '\t'
}
