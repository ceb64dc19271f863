package retrieval

import (
	"testing"

	"github.com/incidentlab/recall/internal/domain"
)

func findHit(t *testing.T, hits []domain.Hit, key string) domain.Hit {
	t.Helper()
	for _, h := range hits {
		if h.IssueKey == key {
			return h
		}
	}
	t.Fatalf("hit %q not found in %v", key, hits)
	return domain.Hit{}
}

func TestWeightedFuser_MissingSideIsZero(t *testing.T) {
	f := &WeightedFuser{WDense: 0.5, WLexical: 0.5}

	hits := f.Fuse(
		[]domain.Candidate{{IssueKey: "dense-only", Score: 0.8}},
		[]domain.Candidate{{IssueKey: "lexical-only", Score: 3.0}},
	)

	d := findHit(t, hits, "dense-only")
	if d.Score != 0.5*0.8 {
		t.Errorf("dense-only score = %v, want %v", d.Score, 0.5*0.8)
	}
	if d.Lexical != 0 {
		t.Errorf("missing lexical score must be 0, got %v", d.Lexical)
	}

	// единственный лексический кандидат нормализуется к 1.0
	l := findHit(t, hits, "lexical-only")
	if l.Score != 0.5*1.0 {
		t.Errorf("lexical-only score = %v, want %v", l.Score, 0.5)
	}
}

func TestWeightedFuser_NormalizesLexicalByBatchMax(t *testing.T) {
	f := &WeightedFuser{WDense: 0.5, WLexical: 0.5}

	hits := f.Fuse(nil, []domain.Candidate{
		{IssueKey: "top", Score: 8.0},
		{IssueKey: "half", Score: 4.0},
	})

	if top := findHit(t, hits, "top"); top.Lexical != 1.0 {
		t.Errorf("batch max must normalize to 1.0, got %v", top.Lexical)
	}
	if half := findHit(t, hits, "half"); half.Lexical != 0.5 {
		t.Errorf("half of max must normalize to 0.5, got %v", half.Lexical)
	}
}

func TestWeightedFuser_BothLegsSum(t *testing.T) {
	f := &WeightedFuser{WDense: 0.7, WLexical: 0.3}

	hits := f.Fuse(
		[]domain.Candidate{{IssueKey: "both", Score: 0.9}},
		[]domain.Candidate{{IssueKey: "both", Score: 5.0}},
	)

	if len(hits) != 1 {
		t.Fatalf("expected one merged hit, got %d", len(hits))
	}
	want := 0.7*0.9 + 0.3*1.0
	if hits[0].Score != want {
		t.Errorf("fused score = %v, want %v", hits[0].Score, want)
	}
}

func TestWeightedFuser_Monotonic(t *testing.T) {
	f := &WeightedFuser{WDense: 0.5, WLexical: 0.5}

	hits := f.Fuse(
		[]domain.Candidate{
			{IssueKey: "a", Score: 0.9},
			{IssueKey: "b", Score: 0.4},
		},
		nil,
	)
	sortHits(hits)
	if hits[0].IssueKey != "a" {
		t.Errorf("higher dense score must rank higher, got %v", hits)
	}
}

func TestRRFFuser_OverlapWins(t *testing.T) {
	f := &RRFFuser{K: 60}

	// "both" стоит вторым в каждой ноге, но суммарно обгоняет лидеров одной ноги
	hits := f.Fuse(
		[]domain.Candidate{
			{IssueKey: "dense-top", Score: 0.99},
			{IssueKey: "both", Score: 0.5},
		},
		[]domain.Candidate{
			{IssueKey: "lex-top", Score: 9.0},
			{IssueKey: "both", Score: 1.0},
		},
	)
	sortHits(hits)
	if hits[0].IssueKey != "both" {
		t.Errorf("document in both legs must win RRF, got %v", hits)
	}
}

func TestRRFFuser_ScoreIsRankBased(t *testing.T) {
	f := &RRFFuser{K: 60}

	// абсолютные значения скores не важны — только порядок
	a := f.Fuse([]domain.Candidate{{IssueKey: "x", Score: 0.9}}, nil)
	b := f.Fuse([]domain.Candidate{{IssueKey: "x", Score: 0.1}}, nil)
	if a[0].Score != b[0].Score {
		t.Errorf("rank-based fusion must ignore raw scores: %v vs %v", a[0].Score, b[0].Score)
	}
	if a[0].Score != 1.0/61 {
		t.Errorf("rank 1 contribution = %v, want %v", a[0].Score, 1.0/61)
	}
}

func TestNewFuser(t *testing.T) {
	f, err := NewFuser("weighted", 0, 0, 0)
	if err != nil {
		t.Fatalf("NewFuser: %v", err)
	}
	wf, ok := f.(*WeightedFuser)
	if !ok {
		t.Fatalf("expected WeightedFuser, got %T", f)
	}
	if wf.WDense != DefaultWDense || wf.WLexical != DefaultWLexical {
		t.Errorf("zero weights must fall back to defaults: %+v", wf)
	}

	f, err = NewFuser("rrf", 0, 0, 0)
	if err != nil {
		t.Fatalf("NewFuser: %v", err)
	}
	rf, ok := f.(*RRFFuser)
	if !ok {
		t.Fatalf("expected RRFFuser, got %T", f)
	}
	if rf.K != DefaultRRFK {
		t.Errorf("zero k must fall back to %d, got %d", DefaultRRFK, rf.K)
	}

	if _, err := NewFuser("magic", 0, 0, 0); err == nil {
		t.Error("unknown algorithm must be rejected")
	}
}

func TestSortHits_TieBreaksOnIssueKey(t *testing.T) {
	hits := []domain.Hit{
		{IssueKey: "3967657", Score: 0.5},
		{IssueKey: "3957302", Score: 0.5},
		{IssueKey: "3962104", Score: 0.9},
	}
	sortHits(hits)

	if hits[0].IssueKey != "3962104" {
		t.Errorf("highest score first, got %v", hits[0])
	}
	if hits[1].IssueKey != "3957302" || hits[2].IssueKey != "3967657" {
		t.Errorf("equal scores must order by issue key ascending: %v", hits)
	}
}

func TestFuse_KeepsSnippetAndService(t *testing.T) {
	f := &WeightedFuser{WDense: 0.5, WLexical: 0.5}

	hits := f.Fuse(
		[]domain.Candidate{{IssueKey: "1", Score: 0.8, Snippet: "ERR_AUTH_TIMEOUT при оплате", Service: "payments"}},
		[]domain.Candidate{{IssueKey: "1", Score: 2.0}},
	)
	if hits[0].Snippet != "ERR_AUTH_TIMEOUT при оплате" || hits[0].Service != "payments" {
		t.Errorf("snippet/service lost in fusion: %+v", hits[0])
	}
}
