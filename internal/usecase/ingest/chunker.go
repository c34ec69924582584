package ingest

import (
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/phytodex/internal/domain"
)

// Chunker splits document text into overlapping, sentence-aligned chunks.
// Sentences are never split mid-way; a chunk closes once adding the next
// sentence would push it past the size bound.
type Chunker struct {
	size    int
	overlap int
	minSize int
}

// NewChunker creates a chunker from the knowledge config, falling back to
// the built-in defaults for non-positive values.
func NewChunker(cfg domain.KnowledgeConfig) *Chunker {
	def := domain.DefaultKnowledgeConfig()
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = def.ChunkSize
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = def.ChunkOverlap
	}
	if cfg.MinChunkSize <= 0 {
		cfg.MinChunkSize = def.MinChunkSize
	}
	return &Chunker{
		size:    cfg.ChunkSize,
		overlap: cfg.ChunkOverlap,
		minSize: cfg.MinChunkSize,
	}
}

// Split chunks text into sentence-aligned windows. Chunks shorter than the
// minimum are dropped; consecutive chunks share an overlap tail so context
// survives the cut.
func (c *Chunker) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var chunks []string
	var current strings.Builder

	for _, sentence := range splitSentences(text) {
		if current.Len()+len(sentence) > c.size {
			if current.Len() >= c.minSize {
				chunks = append(chunks, strings.TrimSpace(current.String()))
			}
			tail := overlapTail(current.String(), c.overlap)
			current.Reset()
			current.WriteString(tail)
		}
		current.WriteString(sentence)
		current.WriteByte(' ')
	}

	if current.Len() >= c.minSize {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}
	return chunks
}

// overlapTail returns the last n bytes of s aligned to a rune boundary.
func overlapTail(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return ""
	}
	start := len(s) - n
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	return s[start:]
}

// splitSentences cuts text after terminal punctuation followed by a space
// or newline. The trailing fragment without a terminator is kept as-is.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for i := 0; i+1 < len(text); i++ {
		if !isSentenceEnd(text[i]) {
			continue
		}
		if next := text[i+1]; next != ' ' && next != '\n' {
			continue
		}
		if s := strings.TrimSpace(text[start : i+1]); s != "" {
			sentences = append(sentences, s)
		}
		start = i + 2
	}
	if rest := strings.TrimSpace(text[start:]); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

func isSentenceEnd(b byte) bool {
	return b == '.' || b == '!' || b == '?'
}
