package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/incidentlab/recall/internal/db"
	"github.com/incidentlab/recall/internal/domain"
)

// returnFields is what both retrieval legs need back from FT.SEARCH.
// __vector_score comes implicitly with KNN queries.
var returnFields = []string{"issue_key", "service", "snippet", "__vector_score"}

// store is the consumer interface for search operations (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchBM25(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
}

// Repo runs the two retrieval legs against one physical index.
type Repo struct {
	store store
}

// New creates a search repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Dense returns the top-n nearest documents by vector distance, as bounded
// similarity scores. service, when non-empty, is a pre-filter: filtered-out
// documents never occupy a slot.
func (r *Repo) Dense(
	ctx context.Context, ix domain.Index, vector []float32, service string, n int,
) ([]domain.Candidate, error) {
	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    ix.Name,
		Vector:       vector,
		K:            n,
		Service:      service,
		ReturnFields: returnFields,
	})
	if err != nil {
		return nil, fmt.Errorf("dense search %s: %w", ix.Name, err)
	}
	return parseCandidates(sr, ix.Prefix), nil
}

// Lexical returns the top-n documents by BM25 relevance over the indexed text.
func (r *Repo) Lexical(
	ctx context.Context, ix domain.Index, query, service string, n int,
) ([]domain.Candidate, error) {
	sr, err := r.store.SearchBM25(ctx, &db.TextQuery{
		IndexName:    ix.Name,
		Query:        query,
		TopK:         n,
		Service:      service,
		ReturnFields: returnFields[:3], // no vector score on the lexical leg
	})
	if err != nil {
		return nil, fmt.Errorf("lexical search %s: %w", ix.Name, err)
	}
	return parseCandidates(sr, ix.Prefix), nil
}

func parseCandidates(sr *db.SearchResult, prefix string) []domain.Candidate {
	if sr == nil || len(sr.Entries) == 0 {
		return nil
	}

	out := make([]domain.Candidate, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		issueKey := entry.Fields["issue_key"]
		if issueKey == "" {
			// Older documents may lack the mirrored field; the key layout is authoritative.
			issueKey = strings.TrimPrefix(entry.Key, prefix)
		}
		out = append(out, domain.Candidate{
			IssueKey: issueKey,
			Score:    entry.Score,
			Snippet:  entry.Fields["snippet"],
			Service:  entry.Fields["service"],
		})
	}
	return out
}
