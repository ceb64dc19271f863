// Package source provides readers for raw ticket data: the full anonymized
// dump used for reindexing, and the delta drop of newly arrived tickets.
package source

import "context"

// Record is one raw ticket as read from an external source.
type Record struct {
	IssueKey string
	Text     string
	Service  string
}

// DocumentSource enumerates every document available for a full reindex.
type DocumentSource interface {
	Load(ctx context.Context) ([]Record, error)
}

// DeltaSource enumerates only newly arrived tickets since the last run.
type DeltaSource interface {
	LoadNew(ctx context.Context) ([]Record, error)
}
