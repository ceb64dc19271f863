package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/incidentlab/recall/internal/db"
	"github.com/incidentlab/recall/internal/domain"
)

// store is the consumer interface for index provisioning (ISP).
type store interface {
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// HNSWConfig holds HNSW index parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo provisions and resolves one physical index per (model, dimensionality)
// pair. Handles are cached lazily; the cache is only a round-trip saver —
// idempotence comes from FT.CREATE semantics on the store side, so concurrent
// provisioning never duplicates schema.
type Repo struct {
	store store
	hnsw  HNSWConfig

	mu      sync.Mutex
	handles map[string]domain.Index
}

// New creates a catalog repository.
func New(s store) *Repo {
	return &Repo{
		store:   s,
		hnsw:    HNSWConfig{M: 32, EFConstruct: 400},
		handles: make(map[string]domain.Index),
	}
}

// WithHNSW configures HNSW index parameters.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	if cfg.M > 0 {
		r.hnsw.M = cfg.M
	}
	if cfg.EFConstruct > 0 {
		r.hnsw.EFConstruct = cfg.EFConstruct
	}
	return r
}

// IndexName derives the canonical index name from a model id and its
// dimensionality. Two models sharing a base name but differing in
// dimensionality map to different indexes.
func IndexName(modelID string, dim int) string {
	return fmt.Sprintf("docs_%s_%d", sanitizeModel(modelID), dim)
}

// Handle builds the index handle without touching the store.
func Handle(modelID string, dim int) domain.Index {
	name := IndexName(modelID, dim)
	return domain.Index{
		Name:   domain.KeyPrefix + name + ":idx",
		Prefix: domain.KeyPrefix + name + ":",
		Model:  modelID,
		Dim:    dim,
	}
}

// Ensure provisions the index for (modelID, dim), creating the vector and
// full-text schema if absent. Calling it twice never errors and never
// duplicates schema.
func (r *Repo) Ensure(ctx context.Context, modelID string, dim int) (domain.Index, error) {
	if dim <= 0 {
		return domain.Index{}, fmt.Errorf("model %s: dimensionality must be positive, got %d", modelID, dim)
	}

	ix := Handle(modelID, dim)

	r.mu.Lock()
	cached, ok := r.handles[ix.Name]
	r.mu.Unlock()
	if ok {
		return cached, nil
	}

	def, err := buildIndex(ix, r.hnsw)
	if err != nil {
		return domain.Index{}, fmt.Errorf("build index %s: %w", ix.Name, err)
	}

	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return domain.Index{}, fmt.Errorf("provision index %s: %w", ix.Name, err)
	}

	r.remember(ix)
	return ix, nil
}

// Lookup resolves the index for (modelID, dim) without provisioning.
// A missing index is a caller misconfiguration, not a backlog.
func (r *Repo) Lookup(ctx context.Context, modelID string, dim int) (domain.Index, error) {
	ix := Handle(modelID, dim)

	r.mu.Lock()
	cached, ok := r.handles[ix.Name]
	r.mu.Unlock()
	if ok {
		return cached, nil
	}

	exists, err := r.store.IndexExists(ctx, ix.Name)
	if err != nil {
		return domain.Index{}, fmt.Errorf("check index %s: %w", ix.Name, err)
	}
	if !exists {
		return domain.Index{}, fmt.Errorf("%w: %s", domain.ErrIndexNotFound, ix.Name)
	}

	r.remember(ix)
	return ix, nil
}

// Drop removes the index schema (administrative operation; documents keep
// their keys and are re-attached by a later Ensure).
func (r *Repo) Drop(ctx context.Context, modelID string, dim int) error {
	ix := Handle(modelID, dim)

	r.mu.Lock()
	delete(r.handles, ix.Name)
	r.mu.Unlock()

	if err := r.store.DropIndex(ctx, ix.Name); err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return fmt.Errorf("%w: %s", domain.ErrIndexNotFound, ix.Name)
		}
		return fmt.Errorf("drop index %s: %w", ix.Name, err)
	}
	return nil
}

func (r *Repo) remember(ix domain.Index) {
	r.mu.Lock()
	r.handles[ix.Name] = ix
	r.mu.Unlock()
}

// buildIndex defines the per-model FT schema: tag fields for exact filters,
// a TEXT field for BM25 and an HNSW vector field sized to the model.
// The vector field carries the "vector" alias that SearchKNN addresses.
func buildIndex(ix domain.Index, hnsw HNSWConfig) (*db.IndexDefinition, error) {
	return db.NewIndex(ix.Name).
		Prefix(ix.Prefix).
		Tag("issue_key").
		Tag("service").
		Numeric("indexed_at").
		Text("__content").
		VectorHNSW("__vector", "vector", ix.Dim, hnsw.M, hnsw.EFConstruct).
		Build()
}

// sanitizeModel lowercases a model id and folds every character outside
// [a-z0-9] into '_' so the result is a valid index identifier
// (e.g. "intfloat/multilingual-e5-small" → "intfloat_multilingual_e5_small").
func sanitizeModel(modelID string) string {
	var b strings.Builder
	b.Grow(len(modelID))
	for _, r := range strings.ToLower(modelID) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
