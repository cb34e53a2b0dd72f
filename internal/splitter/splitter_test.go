package splitter

import (
	"strings"
	"testing"

	"github.com/scrypster/recall/pkg/types"
)

func TestSplitEmptyInput(t *testing.T) {
	s := New(800, 0.15)

	for _, input := range []string{"", "   ", "\n\n\t"} {
		if got := s.Split(input, "msg-1"); len(got) != 0 {
			t.Errorf("Split(%q) = %d chunks, want 0", input, len(got))
		}
	}
}

func TestSplitShortTextSingleChunk(t *testing.T) {
	s := New(800, 0.15)
	text := "Just a short message about nothing in particular."

	chunks := s.Split(text, "msg-1")
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	c := chunks[0]
	if c.Content != text {
		t.Errorf("content = %q, want %q", c.Content, text)
	}
	if c.Position != 0 {
		t.Errorf("position = %d, want 0", c.Position)
	}
	if c.Type != types.ChunkTypeSentence {
		t.Errorf("type = %q, want sentence", c.Type)
	}
	if c.MessageID != "msg-1" {
		t.Errorf("message id = %q, want msg-1", c.MessageID)
	}
	if c.ID == "" {
		t.Error("chunk id not assigned")
	}
}

func TestSplitLongTextProducesOverlappingChunks(t *testing.T) {
	s := New(800, 0.15)

	// 2000 chars of paragraph-separated prose.
	para := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 8)
	text := strings.TrimSpace(para + "\n\n" + para + "\n\n" + para + "\n\n" + para + "\n\n" + para)
	if len(text) < 1500 {
		t.Fatalf("test input too short: %d", len(text))
	}

	chunks := s.Split(text, "msg-1")
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want several", len(chunks))
	}

	for i, c := range chunks {
		if len(c.Content) > 800 {
			t.Errorf("chunk %d exceeds cap: %d chars", i, len(c.Content))
		}
		if c.Position != i {
			t.Errorf("chunk %d position = %d", i, c.Position)
		}
	}

	// Adjacent chunks share the configured overlap tail.
	overlap := s.OverlapSize()
	if overlap != 120 {
		t.Fatalf("overlap = %d, want 120", overlap)
	}
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1].Content
		tail := prev
		if len(prev) > overlap {
			tail = prev[len(prev)-overlap:]
		}
		if !strings.HasPrefix(chunks[i].Content, tail) {
			t.Errorf("chunk %d does not start with tail of chunk %d", i, i-1)
		}
	}
}

func TestSplitTwoThousandCharsThreeChunks(t *testing.T) {
	s := New(800, 0.15)

	// Uniform 46-char sentences, about 2000 chars total.
	text := strings.TrimSpace(strings.Repeat("The quick brown fox jumps over the lazy dog. ", 43))

	chunks := s.Split(text, "msg-1")
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}

	for i, c := range chunks {
		if len(c.Content) > 800 {
			t.Errorf("chunk %d exceeds cap: %d chars", i, len(c.Content))
		}
	}

	overlap := s.OverlapSize()
	for i := 1; i < 3; i++ {
		prev := chunks[i-1].Content
		if chunks[i].Content[:overlap] != prev[len(prev)-overlap:] {
			t.Errorf("chunk %d does not begin with chunk %d's last %d chars", i, i-1, overlap)
		}
	}
}

func TestSplitCoversAllContent(t *testing.T) {
	s := New(200, 0.1)
	text := strings.TrimSpace(strings.Repeat("Some sentences about distributed systems. Raft elects a leader. ", 20))

	chunks := s.Split(text, "msg-1")
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks", len(chunks))
	}

	// Every non-overlap portion of the original must appear in some chunk.
	var rebuilt strings.Builder
	rebuilt.WriteString(chunks[0].Content)
	for i := 1; i < len(chunks); i++ {
		c := chunks[i].Content
		// Drop the overlap prefix carried from the previous chunk.
		prev := chunks[i-1].Content
		tail := prev
		if len(prev) > s.OverlapSize() {
			tail = prev[len(prev)-s.OverlapSize():]
		}
		rebuilt.WriteString(strings.TrimPrefix(c, tail))
	}
	if rebuilt.String() != text {
		t.Error("concatenated chunks (minus overlap) do not reproduce input")
	}
}

func TestForceSplitNoSeparators(t *testing.T) {
	s := New(100, 0.1)
	text := strings.Repeat("x", 450)

	chunks := s.Split(text, "msg-1")
	if len(chunks) < 4 {
		t.Fatalf("got %d chunks, want at least 4", len(chunks))
	}
	for i, c := range chunks {
		if len(c.Content) > 100 {
			t.Errorf("chunk %d exceeds cap: %d", i, len(c.Content))
		}
	}
}

func TestDetectChunkType(t *testing.T) {
	cases := []struct {
		name string
		text string
		want types.ChunkType
	}{
		{"heading", "# Deployment notes", types.ChunkTypeHeading},
		{"subheading", "### Rollback", types.ChunkTypeHeading},
		{"not heading no space", "#tag in text", types.ChunkTypeSentence},
		{"code fence", "```go\nfunc main() {}\n```", types.ChunkTypeCode},
		{"indented code", "    x := compute()", types.ChunkTypeCode},
		{"short sentence", "Postgres is fine here.", types.ChunkTypeSentence},
		{"multiline paragraph", "First line of thought.\nSecond line continues it.", types.ChunkTypeParagraph},
		{"long single line", strings.Repeat("words and more words ", 15), types.ChunkTypeParagraph},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := detectChunkType(tc.text); got != tc.want {
				t.Errorf("detectChunkType(%q) = %q, want %q", tc.text, got, tc.want)
			}
		})
	}
}

func TestSplitOffsets(t *testing.T) {
	s := New(800, 0.15)
	text := "Short standalone statement."

	chunks := s.Split(text, "msg-1")
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks", len(chunks))
	}
	if chunks[0].CharStart != 0 || chunks[0].CharEnd != len(text) {
		t.Errorf("offsets = [%d, %d), want [0, %d)", chunks[0].CharStart, chunks[0].CharEnd, len(text))
	}
}
