package catalog

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/incidentlab/recall/internal/db"
	"github.com/incidentlab/recall/internal/domain"
)

func TestIndexName_Sanitization(t *testing.T) {
	tests := []struct {
		model string
		dim   int
		want  string
	}{
		{"intfloat/multilingual-e5-small", 384, "docs_intfloat_multilingual_e5_small_384"},
		{"BAAI/bge-m3", 1024, "docs_baai_bge_m3_1024"},
		{"e5", 384, "docs_e5_384"},
		{"e5", 768, "docs_e5_768"},
	}
	for _, tt := range tests {
		if got := IndexName(tt.model, tt.dim); got != tt.want {
			t.Errorf("IndexName(%q, %d) = %q, want %q", tt.model, tt.dim, got, tt.want)
		}
	}
}

func TestIndexName_SameBaseDifferentDim(t *testing.T) {
	a := IndexName("e5-small", 384)
	b := IndexName("e5-small", 768)
	if a == b {
		t.Fatalf("indexes for different dims must differ, both %q", a)
	}
}

func TestHandle(t *testing.T) {
	ix := Handle("intfloat/multilingual-e5-small", 384)

	if ix.Name != "recall:docs_intfloat_multilingual_e5_small_384:idx" {
		t.Errorf("unexpected index name %q", ix.Name)
	}
	if ix.Prefix != "recall:docs_intfloat_multilingual_e5_small_384:" {
		t.Errorf("unexpected prefix %q", ix.Prefix)
	}
	if got := ix.DocKey("3967657"); got != "recall:docs_intfloat_multilingual_e5_small_384:3967657" {
		t.Errorf("unexpected doc key %q", got)
	}
}

func TestEnsure_CreatesSchema(t *testing.T) {
	ms := &mockStore{}
	repo := New(ms)

	ix, err := repo.Ensure(context.Background(), "e5-small", 384)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if ix.Dim != 384 {
		t.Errorf("dim = %d, want 384", ix.Dim)
	}
	if len(ms.createCalls) != 1 {
		t.Fatalf("expected 1 FT.CREATE, got %d", len(ms.createCalls))
	}

	def := ms.createCalls[0]
	if def.Name != ix.Name {
		t.Errorf("index def name %q != handle name %q", def.Name, ix.Name)
	}

	var hasText, hasVector bool
	for _, f := range def.Fields {
		switch {
		case f.Type == db.IndexFieldText && f.Name == "__content":
			hasText = true
		case f.Type == db.IndexFieldVector && f.Name == "__vector":
			hasVector = true
			if f.VectorDim != 384 {
				t.Errorf("vector dim = %d, want 384", f.VectorDim)
			}
			// KNN queries address @vector, so the schema must alias the field
			if f.Alias != "vector" {
				t.Errorf("vector alias = %q, want %q", f.Alias, "vector")
			}
		}
	}
	if !hasText || !hasVector {
		t.Errorf("schema must contain both the TEXT and the VECTOR field: %+v", def.Fields)
	}
}

func TestEnsure_Idempotent(t *testing.T) {
	ms := &mockStore{}
	repo := New(ms)
	ctx := context.Background()

	first, err := repo.Ensure(ctx, "e5-small", 384)
	if err != nil {
		t.Fatalf("first Ensure: %v", err)
	}
	second, err := repo.Ensure(ctx, "e5-small", 384)
	if err != nil {
		t.Fatalf("second Ensure: %v", err)
	}
	if first != second {
		t.Errorf("handles differ between calls: %+v vs %+v", first, second)
	}
	if len(ms.createCalls) != 1 {
		t.Errorf("second Ensure must be a cache hit, got %d FT.CREATE calls", len(ms.createCalls))
	}
}

func TestEnsure_ExistingIndexIsNotAnError(t *testing.T) {
	ms := &mockStore{
		createFn: func(_ context.Context, _ *db.IndexDefinition) error {
			return db.ErrIndexExists
		},
	}
	repo := New(ms)

	if _, err := repo.Ensure(context.Background(), "e5-small", 384); err != nil {
		t.Fatalf("Ensure over an existing index must succeed, got %v", err)
	}
}

func TestEnsure_CreateFailureCarriesIndexName(t *testing.T) {
	ms := &mockStore{
		createFn: func(_ context.Context, _ *db.IndexDefinition) error {
			return errors.New("NOPERM this user has no permissions")
		},
	}
	repo := New(ms)

	_, err := repo.Ensure(context.Background(), "e5-small", 384)
	if err == nil {
		t.Fatal("expected error")
	}
	want := IndexName("e5-small", 384)
	if !strings.Contains(err.Error(), want) {
		t.Errorf("error %q must name the target index %q", err, want)
	}
}

func TestLookup_MissingIndex(t *testing.T) {
	ms := &mockStore{}
	repo := New(ms)

	_, err := repo.Lookup(context.Background(), "e5-small", 384)
	if !errors.Is(err, domain.ErrIndexNotFound) {
		t.Fatalf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestLookup_ExistingIndex(t *testing.T) {
	ms := &mockStore{
		existsFn: func(_ context.Context, _ string) (bool, error) { return true, nil },
	}
	repo := New(ms)
	ctx := context.Background()

	if _, err := repo.Lookup(ctx, "e5-small", 384); err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	// Second call hits the handle cache.
	if _, err := repo.Lookup(ctx, "e5-small", 384); err != nil {
		t.Fatalf("second Lookup: %v", err)
	}
	if len(ms.existsCalls) != 1 {
		t.Errorf("expected 1 FT.INFO probe, got %d", len(ms.existsCalls))
	}
}

func TestDrop_EvictsHandleCache(t *testing.T) {
	ms := &mockStore{}
	repo := New(ms)
	ctx := context.Background()

	if _, err := repo.Ensure(ctx, "e5-small", 384); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if err := repo.Drop(ctx, "e5-small", 384); err != nil {
		t.Fatalf("Drop: %v", err)
	}
	if _, err := repo.Lookup(ctx, "e5-small", 384); !errors.Is(err, domain.ErrIndexNotFound) {
		t.Fatalf("Lookup after Drop must miss, got %v", err)
	}
}
