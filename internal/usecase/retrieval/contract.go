package retrieval

import (
	"context"

	"github.com/incidentlab/recall/internal/domain"
)

// Registry resolves model IDs to embedding providers.
type Registry interface {
	Resolve(modelID string) (domain.Provider, error)
}

// Catalog looks up already-provisioned index handles. Retrieval never
// auto-provisions: searching a missing index is a misconfiguration.
type Catalog interface {
	Lookup(ctx context.Context, modelID string, dim int) (domain.Index, error)
}

// Repository runs the two retrieval legs against one index.
type Repository interface {
	Dense(ctx context.Context, ix domain.Index, vector []float32, service string, n int) ([]domain.Candidate, error)
	Lexical(ctx context.Context, ix domain.Index, query, service string, n int) ([]domain.Candidate, error)
}

// Rephraser optionally rewrites the raw user query into a cleaner search
// query before embedding. Failures fall back to the original text.
type Rephraser interface {
	Rephrase(ctx context.Context, query string) (string, error)
}
