package phytodex

import "time"

// Prediction is the diagnosis for one uploaded leaf image.
type Prediction struct {
	Disease          string             `json:"disease"`
	Confidence       float64            `json:"confidence"`
	AllProbabilities map[string]float64 `json:"all_probabilities"`
	Recommendation   string             `json:"recommendation"`

	// TokensUsed is the number of provider tokens the request consumed,
	// taken from the X-AI-Tokens response header.
	TokensUsed int `json:"-"`
}

// ChatRequest asks a question against the knowledge base.
type ChatRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k,omitempty"`
	Crop     string `json:"crop,omitempty"`
}

// Source is one retrieved passage that grounded an answer.
type Source struct {
	ID     string  `json:"id"`
	Title  string  `json:"title,omitempty"`
	Source string  `json:"source"`
	Crop   string  `json:"crop,omitempty"`
	Chunk  int     `json:"chunk"`
	Score  float64 `json:"score"`
}

// Answer is the model response to a chat question.
type Answer struct {
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Sources  []Source `json:"sources"`

	// TokensUsed is the number of provider tokens the request consumed,
	// taken from the X-AI-Tokens response header.
	TokensUsed int `json:"-"`
}

// Document is reference material to ingest into the knowledge base.
type Document struct {
	Title   string `json:"title"`
	Source  string `json:"source"`
	Crop    string `json:"crop"`
	Content string `json:"content"`
}

// IngestResult reports what a document ingest produced.
type IngestResult struct {
	DocumentID string   `json:"document_id"`
	PassageIDs []string `json:"passage_ids"`
	Chunks     int      `json:"chunks"`
	Tokens     int      `json:"tokens"`

	TokensUsed int `json:"-"`
}

// KnowledgeStats describes the current state of the knowledge base.
type KnowledgeStats struct {
	Passages int64  `json:"passages"`
	Index    string `json:"index"`
	Model    string `json:"model"`
}

// DeleteResult reports how many passages a document delete removed.
type DeleteResult struct {
	Source  string `json:"source"`
	Deleted int    `json:"deleted"`
}

// UsagePeriod selects the reporting window for Usage.
type UsagePeriod string

const (
	PeriodDay   UsagePeriod = "day"
	PeriodMonth UsagePeriod = "month"
	PeriodTotal UsagePeriod = "total"
)

// BudgetStatus describes the token budget of one provider.
type BudgetStatus struct {
	TokensLimit     int        `json:"tokens_limit"`
	TokensRemaining int        `json:"tokens_remaining"`
	IsExhausted     bool       `json:"is_exhausted"`
	ResetsAt        *time.Time `json:"resets_at,omitempty"`
}

// ProviderUsage is the consumption of one provider within the period.
type ProviderUsage struct {
	Provider string       `json:"provider"`
	Tokens   int          `json:"tokens"`
	Budget   BudgetStatus `json:"budget"`
}

// UsageReport is the token consumption report for a period.
type UsageReport struct {
	Period        string          `json:"period"`
	PeriodStartAt *time.Time      `json:"period_start_at,omitempty"`
	PeriodEndAt   *time.Time      `json:"period_end_at,omitempty"`
	Providers     []ProviderUsage `json:"providers"`
}

// Health is the dependency health report of the server.
type Health struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
