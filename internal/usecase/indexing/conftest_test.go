package indexing

import (
	"context"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/incidentlab/recall/internal/domain"
	"github.com/incidentlab/recall/internal/source"
)

// fakeProvider returns a fixed-dimension vector per text.
type fakeProvider struct {
	dim      int
	vecFn    func(text string) []float32
	embedErr func(text string) error
	batchErr error

	mu         sync.Mutex
	batchCalls int
}

func (p *fakeProvider) ModelID() string { return "e5-small" }
func (p *fakeProvider) Dimension() int  { return p.dim }

func (p *fakeProvider) vector(text string) []float32 {
	if p.vecFn != nil {
		return p.vecFn(text)
	}
	v := make([]float32, p.dim)
	for i := range v {
		v[i] = float32(len(text)%7) / 10
	}
	return v
}

func (p *fakeProvider) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	if p.embedErr != nil {
		if err := p.embedErr(text); err != nil {
			return domain.EmbeddingResult{}, err
		}
	}
	return domain.EmbeddingResult{Embedding: p.vector(text)}, nil
}

func (p *fakeProvider) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	p.mu.Lock()
	p.batchCalls++
	p.mu.Unlock()

	if p.batchErr != nil {
		return domain.BatchEmbeddingResult{}, p.batchErr
	}
	embeddings := make([][]float32, len(texts))
	for i, t := range texts {
		embeddings[i] = p.vector(t)
	}
	return domain.BatchEmbeddingResult{Embeddings: embeddings}, nil
}

// fakeCatalog hands out one fixed index handle.
type fakeCatalog struct {
	ix        domain.Index
	err       error
	ensureHit int
}

func (c *fakeCatalog) Ensure(_ context.Context, _ string, _ int) (domain.Index, error) {
	c.ensureHit++
	if c.err != nil {
		return domain.Index{}, c.err
	}
	return c.ix, nil
}

// fakeWriter keeps written documents in memory, so a second ingest run
// sees the keys from the first one.
type fakeWriter struct {
	mu        sync.Mutex
	docs      map[string]domain.Document
	upsertErr error
	existsErr error
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{docs: map[string]domain.Document{}}
}

func (w *fakeWriter) BatchUpsert(_ context.Context, _ domain.Index, docs []domain.Document) error {
	if w.upsertErr != nil {
		return w.upsertErr
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, d := range docs {
		w.docs[d.IssueKey] = d
	}
	return nil
}

func (w *fakeWriter) ExistingKeys(_ context.Context, _ domain.Index, issueKeys []string) (map[string]bool, error) {
	if w.existsErr != nil {
		return nil, w.existsErr
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	present := map[string]bool{}
	for _, k := range issueKeys {
		if _, ok := w.docs[k]; ok {
			present[k] = true
		}
	}
	return present, nil
}

func (w *fakeWriter) Count(_ context.Context, _ domain.Index) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.docs), nil
}

// staticSource serves a fixed record set for both full and delta loads.
type staticSource struct {
	records []source.Record
	err     error
}

func (s *staticSource) Load(_ context.Context) ([]source.Record, error)    { return s.records, s.err }
func (s *staticSource) LoadNew(_ context.Context) ([]source.Record, error) { return s.records, s.err }

func testIndex() domain.Index {
	return domain.Index{
		Name:   "recall:docs_e5_small_4:idx",
		Prefix: "recall:docs_e5_small_4:",
		Model:  "e5-small",
		Dim:    4,
	}
}

func newTestService(t *testing.T, prov *fakeProvider, w *fakeWriter) *Service {
	t.Helper()
	reg := domain.NewModelRegistry("e5-small")
	reg.Register("e5-small", prov)
	cat := &fakeCatalog{ix: testIndex()}
	return New(reg, cat, w, zap.NewNop())
}
