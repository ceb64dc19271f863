package db

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	Vector       []float32
	K            int
	Service      string // optional TAG pre-filter on the service field
	ReturnFields []string
}

// TextQuery is the input for BM25 full-text search.
type TextQuery struct {
	IndexName    string
	Query        string
	TopK         int
	Service      string // optional TAG pre-filter on the service field
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
// For KNN queries Score is the cosine similarity in [0,1];
// for BM25 queries it is the raw BM25 relevance score.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
