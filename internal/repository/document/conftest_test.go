package document

import (
	"context"
	"testing"
	"time"

	"github.com/incidentlab/recall/internal/db"
	"github.com/incidentlab/recall/internal/domain"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hsetFn        func(ctx context.Context, key string, fields map[string]string) error
	hsetMultiFn   func(ctx context.Context, items []db.HashSetItem) error
	existsMultiFn func(ctx context.Context, keys []string) ([]bool, error)
	searchCountFn func(ctx context.Context, index, query string) (int, error)

	hsetCalls      []string
	hsetMultiCalls [][]db.HashSetItem
}

func (m *mockStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	m.hsetCalls = append(m.hsetCalls, key)
	if m.hsetFn != nil {
		return m.hsetFn(ctx, key, fields)
	}
	return nil
}

func (m *mockStore) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	m.hsetMultiCalls = append(m.hsetMultiCalls, items)
	if m.hsetMultiFn != nil {
		return m.hsetMultiFn(ctx, items)
	}
	return nil
}

func (m *mockStore) ExistsMulti(ctx context.Context, keys []string) ([]bool, error) {
	if m.existsMultiFn != nil {
		return m.existsMultiFn(ctx, keys)
	}
	return make([]bool, len(keys)), nil
}

func (m *mockStore) SearchCount(ctx context.Context, index, query string) (int, error) {
	if m.searchCountFn != nil {
		return m.searchCountFn(ctx, index, query)
	}
	return 0, nil
}

func testIndex() domain.Index {
	return domain.Index{
		Name:   "recall:docs_e5_small_4:idx",
		Prefix: "recall:docs_e5_small_4:",
		Model:  "e5-small",
		Dim:    4,
	}
}

func testDocument(t *testing.T) domain.Document {
	t.Helper()
	return domain.Document{
		IssueKey:  "3967657",
		Content:   "ERR_AUTH_TIMEOUT при оплате",
		Snippet:   "ERR_AUTH_TIMEOUT при оплате",
		Service:   "payments",
		IndexedAt: time.UnixMilli(1700000000000),
		Vector:    []float32{0.1, 0.2, 0.3, 0.4},
	}
}
