package domain

// Query is one retrieval request. ModelID empty means the configured default.
type Query struct {
	Text    string
	ModelID string
	K       int
	Service string // optional equality filter
}

// Candidate is a single hit from one retrieval leg (dense or lexical).
type Candidate struct {
	IssueKey string
	Score    float64
	Snippet  string
	Service  string
}

// Hit is one fused retrieval result with its component scores.
type Hit struct {
	IssueKey string  `json:"issue_key"`
	Score    float64 `json:"score"`
	Dense    float64 `json:"dense_score"`
	Lexical  float64 `json:"lexical_score"`
	Snippet  string  `json:"snippet,omitempty"`
	Service  string  `json:"service,omitempty"`
}

// RetrievalResult is ordered strictly by Score descending,
// ties broken by IssueKey ascending.
type RetrievalResult struct {
	Hits []Hit
}

// EvalCase pairs a query with the issue keys a perfect retriever would return.
type EvalCase struct {
	Query    string   `json:"query"`
	Expected []string `json:"expected"`
}
