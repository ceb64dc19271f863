package indexing

import (
	"context"

	"github.com/incidentlab/recall/internal/domain"
	"github.com/incidentlab/recall/internal/source"
)

// Registry resolves model IDs to embedding providers.
type Registry interface {
	Resolve(modelID string) (domain.Provider, error)
}

// Provisioner creates the physical index for a model and hands back its handle.
type Provisioner interface {
	Ensure(ctx context.Context, modelID string, dim int) (domain.Index, error)
}

// DocumentWriter defines the storage contract for indexed documents.
type DocumentWriter interface {
	BatchUpsert(ctx context.Context, ix domain.Index, docs []domain.Document) error
	ExistingKeys(ctx context.Context, ix domain.Index, issueKeys []string) (map[string]bool, error)
	Count(ctx context.Context, ix domain.Index) (int, error)
}

// DocumentSource enumerates every document for a full reindex.
type DocumentSource = source.DocumentSource

// DeltaSource enumerates newly arrived tickets.
type DeltaSource = source.DeltaSource
