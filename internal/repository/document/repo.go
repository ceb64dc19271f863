package document

import (
	"context"
	"fmt"

	"github.com/incidentlab/recall/internal/db"
	"github.com/incidentlab/recall/internal/domain"
)

// store is the consumer interface for documents (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	ExistsMulti(ctx context.Context, keys []string) ([]bool, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// Repo stores incident documents as hashes keyed by issue key,
// which makes every write an idempotent upsert.
type Repo struct {
	store store
}

// New creates a document repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Upsert writes one document into the index. Re-running for the same
// issue key replaces the previous embedding (self-healing).
func (r *Repo) Upsert(ctx context.Context, ix domain.Index, doc *domain.Document) error {
	if len(doc.Vector) != ix.Dim {
		return &domain.DimMismatchError{IssueKey: doc.IssueKey, Want: ix.Dim, Got: len(doc.Vector)}
	}

	key := ix.DocKey(doc.IssueKey)
	if err := r.store.HSet(ctx, key, buildHashFields(doc)); err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

// BatchUpsert writes multiple documents in one pipelined round-trip.
// Dimension mismatches are rejected before anything is written.
func (r *Repo) BatchUpsert(ctx context.Context, ix domain.Index, docs []domain.Document) error {
	if len(docs) == 0 {
		return nil
	}

	items := make([]db.HashSetItem, len(docs))
	for i := range docs {
		if len(docs[i].Vector) != ix.Dim {
			return &domain.DimMismatchError{
				IssueKey: docs[i].IssueKey, Want: ix.Dim, Got: len(docs[i].Vector),
			}
		}
		items[i] = db.HashSetItem{
			Key:    ix.DocKey(docs[i].IssueKey),
			Fields: buildHashFields(&docs[i]),
		}
	}

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("batch upsert %s: %w", ix.Name, err)
	}
	return nil
}

// ExistingKeys returns the subset of issueKeys already present in the index.
// Document keys are deterministic, so a pipelined EXISTS replaces an index scan.
func (r *Repo) ExistingKeys(ctx context.Context, ix domain.Index, issueKeys []string) (map[string]bool, error) {
	if len(issueKeys) == 0 {
		return map[string]bool{}, nil
	}

	keys := make([]string, len(issueKeys))
	for i, ik := range issueKeys {
		keys[i] = ix.DocKey(ik)
	}

	found, err := r.store.ExistsMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("existing keys %s: %w", ix.Name, err)
	}

	present := make(map[string]bool, len(issueKeys))
	for i, ok := range found {
		if ok {
			present[issueKeys[i]] = true
		}
	}
	return present, nil
}

// Count returns the number of documents in the index.
func (r *Repo) Count(ctx context.Context, ix domain.Index) (int, error) {
	n, err := r.store.SearchCount(ctx, ix.Name, "*")
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", ix.Name, err)
	}
	return n, nil
}
