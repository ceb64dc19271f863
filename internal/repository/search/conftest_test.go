package search

import (
	"context"

	"github.com/incidentlab/recall/internal/db"
	"github.com/incidentlab/recall/internal/domain"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	knnFn  func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	bm25Fn func(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)

	knnCalls  []*db.KNNQuery
	bm25Calls []*db.TextQuery
}

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	m.knnCalls = append(m.knnCalls, q)
	if m.knnFn != nil {
		return m.knnFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) SearchBM25(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	m.bm25Calls = append(m.bm25Calls, q)
	if m.bm25Fn != nil {
		return m.bm25Fn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func testIndex() domain.Index {
	return domain.Index{
		Name:   "recall:docs_e5_small_4:idx",
		Prefix: "recall:docs_e5_small_4:",
		Model:  "e5-small",
		Dim:    4,
	}
}
