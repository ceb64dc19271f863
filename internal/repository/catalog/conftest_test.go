package catalog

import (
	"context"

	"github.com/incidentlab/recall/internal/db"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	createFn func(ctx context.Context, def *db.IndexDefinition) error
	dropFn   func(ctx context.Context, name string) error
	existsFn func(ctx context.Context, name string) (bool, error)

	createCalls []*db.IndexDefinition
	dropCalls   []string
	existsCalls []string
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	m.createCalls = append(m.createCalls, def)
	if m.createFn != nil {
		return m.createFn(ctx, def)
	}
	return nil
}

func (m *mockStore) DropIndex(ctx context.Context, name string) error {
	m.dropCalls = append(m.dropCalls, name)
	if m.dropFn != nil {
		return m.dropFn(ctx, name)
	}
	return nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	m.existsCalls = append(m.existsCalls, name)
	if m.existsFn != nil {
		return m.existsFn(ctx, name)
	}
	return false, nil
}
