package domain

import "time"

// KeyPrefix namespaces every key this application writes to the store.
const KeyPrefix = "recall:"

// Document is one indexed incident.
type Document struct {
	IssueKey  string
	Content   string // text that was embedded, post external anonymization
	Snippet   string
	Service   string
	IndexedAt time.Time
	Vector    []float32
}

// Index is a handle to one physical (model, dimensionality) index.
// The same issue key may live in several indexes, one per model.
type Index struct {
	Name   string // FT index name
	Prefix string // document key prefix
	Model  string
	Dim    int
}

// DocKey returns the storage key of an issue inside this index.
// Keys are deterministic, which is what makes upserts idempotent.
func (ix Index) DocKey(issueKey string) string {
	return ix.Prefix + issueKey
}
