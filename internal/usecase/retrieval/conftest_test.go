package retrieval

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/incidentlab/recall/internal/domain"
)

type fakeProvider struct {
	embedErr error
}

func (p *fakeProvider) ModelID() string { return "e5-small" }
func (p *fakeProvider) Dimension() int  { return 4 }

func (p *fakeProvider) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	if p.embedErr != nil {
		return domain.EmbeddingResult{}, p.embedErr
	}
	return domain.EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3, 0.4}}, nil
}

func (p *fakeProvider) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	embeddings := make([][]float32, len(texts))
	for i := range texts {
		embeddings[i] = []float32{0.1, 0.2, 0.3, 0.4}
	}
	return domain.BatchEmbeddingResult{Embeddings: embeddings}, nil
}

type fakeCatalog struct {
	ix  domain.Index
	err error
}

func (c *fakeCatalog) Lookup(_ context.Context, _ string, _ int) (domain.Index, error) {
	if c.err != nil {
		return domain.Index{}, c.err
	}
	return c.ix, nil
}

type fakeRepo struct {
	dense   []domain.Candidate
	lexical []domain.Candidate

	denseErr   error
	lexicalErr error

	gotDenseN       int
	gotLexicalN     int
	gotDenseService string
	gotLexicalQuery string
}

func (r *fakeRepo) Dense(
	_ context.Context, _ domain.Index, _ []float32, service string, n int,
) ([]domain.Candidate, error) {
	r.gotDenseN = n
	r.gotDenseService = service
	return r.dense, r.denseErr
}

func (r *fakeRepo) Lexical(
	_ context.Context, _ domain.Index, query, _ string, n int,
) ([]domain.Candidate, error) {
	r.gotLexicalN = n
	r.gotLexicalQuery = query
	return r.lexical, r.lexicalErr
}

type fakeRephraser struct {
	out string
	err error
}

func (f *fakeRephraser) Rephrase(_ context.Context, _ string) (string, error) {
	return f.out, f.err
}

func testIndex() domain.Index {
	return domain.Index{
		Name:   "recall:docs_e5_small_4:idx",
		Prefix: "recall:docs_e5_small_4:",
		Model:  "e5-small",
		Dim:    4,
	}
}

func newTestService(t *testing.T, repo *fakeRepo) *Service {
	t.Helper()
	reg := domain.NewModelRegistry("e5-small")
	reg.Register("e5-small", &fakeProvider{})
	cat := &fakeCatalog{ix: testIndex()}
	return New(reg, cat, repo, &WeightedFuser{WDense: 0.5, WLexical: 0.5}, zap.NewNop())
}
