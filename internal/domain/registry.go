package domain

import (
	"fmt"
	"sort"
)

// ModelRegistry maps model ids to their configured embedding providers.
// Populated once at wiring time, read-only afterwards.
type ModelRegistry struct {
	providers map[string]Provider
	defaultID string
}

// NewModelRegistry creates a registry with the given default model id.
func NewModelRegistry(defaultID string) *ModelRegistry {
	return &ModelRegistry{
		providers: make(map[string]Provider),
		defaultID: defaultID,
	}
}

// Register binds a provider to a model id.
func (r *ModelRegistry) Register(modelID string, p Provider) {
	r.providers[modelID] = p
}

// Resolve returns the provider for a model id. An empty id resolves to the
// configured default. Unknown ids fail with ErrUnknownModel — there is no
// silent fallback on the retrieval path.
func (r *ModelRegistry) Resolve(modelID string) (Provider, error) {
	if modelID == "" {
		modelID = r.defaultID
	}
	p, ok := r.providers[modelID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, modelID)
	}
	return p, nil
}

// Default returns the default model id.
func (r *ModelRegistry) Default() string { return r.defaultID }

// Models returns all registered model ids, sorted.
func (r *ModelRegistry) Models() []string {
	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
