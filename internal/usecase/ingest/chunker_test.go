package ingest

import (
	"strings"
	"testing"

	"github.com/kailas-cloud/phytodex/internal/domain"
)

func newTestChunker(size, overlap, minSize int) *Chunker {
	cfg := domain.DefaultKnowledgeConfig()
	cfg.ChunkSize = size
	cfg.ChunkOverlap = overlap
	cfg.MinChunkSize = minSize
	return NewChunker(cfg)
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "periods",
			text: "First sentence. Second sentence. Third.",
			want: []string{"First sentence.", "Second sentence.", "Third."},
		},
		{
			name: "mixed terminators",
			text: "Is it blight? Yes! Treat it now.",
			want: []string{"Is it blight?", "Yes!", "Treat it now."},
		},
		{
			name: "newline after period",
			text: "Paragraph one.\nParagraph two.",
			want: []string{"Paragraph one.", "Paragraph two."},
		},
		{
			name: "no terminator",
			text: "a fragment without punctuation",
			want: []string{"a fragment without punctuation"},
		},
		{
			name: "period not followed by space",
			text: "pH of 6.5 is fine.",
			want: []string{"pH of 6.5 is fine."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitSentences(tt.text)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d sentences %q, want %d", len(got), got, len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("sentence[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSplit_ShortTextSingleChunk(t *testing.T) {
	c := newTestChunker(1000, 150, 10)

	chunks := c.Split("Late blight is caused by Phytophthora infestans. It spreads fast.")
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d: %q", len(chunks), chunks)
	}
	if !strings.Contains(chunks[0], "Phytophthora infestans") {
		t.Errorf("chunk lost content: %q", chunks[0])
	}
}

func TestSplit_RespectsChunkSize(t *testing.T) {
	c := newTestChunker(100, 20, 10)

	var b strings.Builder
	for i := 0; i < 30; i++ {
		b.WriteString("This sentence fills the chunk with text. ")
	}

	chunks := c.Split(b.String())
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		// Only a single sentence longer than the size could exceed it here.
		if len(chunk) > 100+42 {
			t.Errorf("chunk[%d] len %d exceeds size+sentence bound", i, len(chunk))
		}
	}
}

func TestSplit_OverlapCarriesTail(t *testing.T) {
	c := newTestChunker(60, 20, 10)

	text := "Alpha beta gamma delta epsilon zeta. Eta theta iota kappa lambda mu. Nu xi omicron pi rho sigma."
	chunks := c.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d: %q", len(chunks), chunks)
	}

	tail := chunks[0][len(chunks[0])-10:]
	if !strings.Contains(chunks[1], tail) {
		t.Errorf("chunk[1] %q does not carry tail of chunk[0] %q", chunks[1], tail)
	}
}

func TestSplit_DropsBelowMinimum(t *testing.T) {
	c := newTestChunker(1000, 0, 80)

	chunks := c.Split("Too short.")
	if len(chunks) != 0 {
		t.Fatalf("expected no chunks below minimum, got %q", chunks)
	}
}

func TestSplit_EmptyInput(t *testing.T) {
	c := newTestChunker(1000, 150, 80)

	for _, text := range []string{"", "   ", "\n\n"} {
		if chunks := c.Split(text); len(chunks) != 0 {
			t.Errorf("Split(%q) = %q, want empty", text, chunks)
		}
	}
}

func TestOverlapTail_RuneBoundary(t *testing.T) {
	// "é" is 2 bytes; the tail must never start mid-rune.
	if got := overlapTail("abcdé", 3); got != "dé" {
		t.Errorf("got %q, want %q", got, "dé")
	}
	// A cut landing inside the 3-byte "€" drops the partial rune.
	if got := overlapTail("ab€", 2); got != "" {
		t.Errorf("got %q, want empty tail", got)
	}
}

func TestOverlapTail_Bounds(t *testing.T) {
	if got := overlapTail("abc", 0); got != "" {
		t.Errorf("zero overlap: got %q", got)
	}
	if got := overlapTail("abc", 10); got != "" {
		t.Errorf("overlap beyond length: got %q", got)
	}
	if got := overlapTail("abcdef", 3); got != "def" {
		t.Errorf("got %q, want %q", got, "def")
	}
}
