package document

import (
	"context"
	"errors"
	"testing"

	"github.com/incidentlab/recall/internal/db"
	"github.com/incidentlab/recall/internal/domain"
)

func TestUpsert_FieldMapping(t *testing.T) {
	var gotKey string
	var gotFields map[string]string
	ms := &mockStore{
		hsetFn: func(_ context.Context, key string, fields map[string]string) error {
			gotKey = key
			gotFields = fields
			return nil
		},
	}
	repo := New(ms)
	doc := testDocument(t)

	if err := repo.Upsert(context.Background(), testIndex(), &doc); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if gotKey != "recall:docs_e5_small_4:3967657" {
		t.Errorf("unexpected key %q", gotKey)
	}
	if gotFields["issue_key"] != "3967657" {
		t.Errorf("issue_key = %q", gotFields["issue_key"])
	}
	if gotFields["__content"] != "ERR_AUTH_TIMEOUT при оплате" {
		t.Errorf("__content = %q", gotFields["__content"])
	}
	if gotFields["service"] != "payments" {
		t.Errorf("service = %q", gotFields["service"])
	}
	if gotFields["indexed_at"] != "1700000000000" {
		t.Errorf("indexed_at = %q", gotFields["indexed_at"])
	}
	if len(gotFields["__vector"]) != 4*4 {
		t.Errorf("__vector has %d bytes, want 16", len(gotFields["__vector"]))
	}
}

func TestUpsert_RejectsDimMismatch(t *testing.T) {
	ms := &mockStore{}
	repo := New(ms)
	doc := testDocument(t)
	doc.Vector = []float32{0.1, 0.2} // index expects 4

	err := repo.Upsert(context.Background(), testIndex(), &doc)
	if !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("expected ErrVectorDimMismatch, got %v", err)
	}
	if len(ms.hsetCalls) != 0 {
		t.Error("nothing must be written on dimension mismatch")
	}
}

func TestBatchUpsert_RejectsMismatchBeforeWriting(t *testing.T) {
	ms := &mockStore{}
	repo := New(ms)
	good := testDocument(t)
	bad := testDocument(t)
	bad.IssueKey = "3957302"
	bad.Vector = []float32{1}

	err := repo.BatchUpsert(context.Background(), testIndex(), []domain.Document{good, bad})
	if !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("expected ErrVectorDimMismatch, got %v", err)
	}
	if len(ms.hsetMultiCalls) != 0 {
		t.Error("batch with a mismatched vector must not reach the store")
	}
}

func TestBatchUpsert_Pipelines(t *testing.T) {
	ms := &mockStore{}
	repo := New(ms)
	a := testDocument(t)
	b := testDocument(t)
	b.IssueKey = "3957302"

	if err := repo.BatchUpsert(context.Background(), testIndex(), []domain.Document{a, b}); err != nil {
		t.Fatalf("BatchUpsert: %v", err)
	}
	if len(ms.hsetMultiCalls) != 1 {
		t.Fatalf("expected one pipelined call, got %d", len(ms.hsetMultiCalls))
	}
	if len(ms.hsetMultiCalls[0]) != 2 {
		t.Errorf("expected 2 items in the pipeline, got %d", len(ms.hsetMultiCalls[0]))
	}
}

func TestExistingKeys(t *testing.T) {
	var gotKeys []string
	ms := &mockStore{
		existsMultiFn: func(_ context.Context, keys []string) ([]bool, error) {
			gotKeys = keys
			return []bool{true, false, true}, nil
		},
	}
	repo := New(ms)

	present, err := repo.ExistingKeys(
		context.Background(), testIndex(), []string{"3967657", "3957302", "3962104"},
	)
	if err != nil {
		t.Fatalf("ExistingKeys: %v", err)
	}

	if gotKeys[0] != "recall:docs_e5_small_4:3967657" {
		t.Errorf("store queried with %q", gotKeys[0])
	}
	if !present["3967657"] || present["3957302"] || !present["3962104"] {
		t.Errorf("unexpected presence map: %v", present)
	}
}

func TestExistingKeys_Empty(t *testing.T) {
	repo := New(&mockStore{})
	present, err := repo.ExistingKeys(context.Background(), testIndex(), nil)
	if err != nil {
		t.Fatalf("ExistingKeys: %v", err)
	}
	if len(present) != 0 {
		t.Errorf("expected empty map, got %v", present)
	}
}

func TestCount_PropagatesStoreError(t *testing.T) {
	ms := &mockStore{
		searchCountFn: func(_ context.Context, _, _ string) (int, error) {
			return 0, &db.Error{Op: db.OpSearch, Err: errors.New("connection refused")}
		},
	}
	repo := New(ms)

	_, err := repo.Count(context.Background(), testIndex())
	if err == nil {
		t.Fatal("expected error")
	}
}
