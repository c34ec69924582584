package domain

import "strings"

// Passage is a chunk of research text stored in the knowledge base.
type Passage struct {
	ID      string
	Title   string
	Source  string
	Crop    string
	Chunk   int
	Content string
	Score   float64 // similarity to the query, populated on retrieval only
}

// Answer is the result of a retrieval-augmented chat turn.
type Answer struct {
	Question string
	Answer   string
	Passages []Passage
}

// IngestResult reports what a document ingestion produced.
type IngestResult struct {
	DocumentID string
	PassageIDs []string
	Chunks     int
	Tokens     int
}

// KnowledgeStats describes the current state of the knowledge base.
type KnowledgeStats struct {
	Passages  int64
	IndexName string
	Model     string
}

// AnswerPrompt builds the single-turn chat input from the question and
// the retrieved passages. Passage contents are joined by blank lines;
// with no passages the context is empty and the model answers unaided.
func AnswerPrompt(question string, passages []Passage) string {
	contents := make([]string, len(passages))
	for i, p := range passages {
		contents[i] = p.Content
	}

	var b strings.Builder
	b.WriteString("You are an expert plant pathologist. Answer based on the research context.")
	b.WriteString("\n\nContext: ")
	b.WriteString(strings.Join(contents, "\n\n"))
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\n\nAnswer:")
	return b.String()
}
