package retrieval

import (
	"fmt"
	"sort"

	"github.com/incidentlab/recall/internal/domain"
)

// Fusion algorithm names accepted in configuration.
const (
	FusionWeighted = "weighted"
	FusionRRF      = "rrf"
)

// Default fusion parameters.
const (
	DefaultWDense   = 0.5
	DefaultWLexical = 0.5
	DefaultRRFK     = 60
)

// Fuser merges the dense and lexical candidate lists into one scored list.
// The output is unsorted; the caller ranks it.
type Fuser interface {
	Fuse(dense, lexical []domain.Candidate) []domain.Hit
}

// NewFuser builds a fuser from configuration values. Zero weights/k fall
// back to the defaults.
func NewFuser(kind string, wDense, wLexical float64, rrfK int) (Fuser, error) {
	switch kind {
	case FusionWeighted, "":
		if wDense == 0 && wLexical == 0 {
			wDense, wLexical = DefaultWDense, DefaultWLexical
		}
		return &WeightedFuser{WDense: wDense, WLexical: wLexical}, nil
	case FusionRRF:
		if rrfK <= 0 {
			rrfK = DefaultRRFK
		}
		return &RRFFuser{K: rrfK}, nil
	default:
		return nil, fmt.Errorf("unknown fusion algorithm %q", kind)
	}
}

// WeightedFuser computes w_dense*dense + w_lexical*lexical per issue key.
// BM25 scores are unbounded, so the lexical leg is normalized by its batch
// maximum before weighting; a missing score from either side counts as 0.
type WeightedFuser struct {
	WDense   float64
	WLexical float64
}

func (f *WeightedFuser) Fuse(dense, lexical []domain.Candidate) []domain.Hit {
	var maxLex float64
	for _, c := range lexical {
		if c.Score > maxLex {
			maxLex = c.Score
		}
	}

	acc := map[string]*domain.Hit{}
	for _, c := range dense {
		h := hitFor(acc, c)
		h.Dense = c.Score
	}
	for _, c := range lexical {
		h := hitFor(acc, c)
		if maxLex > 0 {
			h.Lexical = c.Score / maxLex
		}
	}

	out := make([]domain.Hit, 0, len(acc))
	for _, h := range acc {
		h.Score = f.WDense*h.Dense + f.WLexical*h.Lexical
		out = append(out, *h)
	}
	return out
}

// RRFFuser implements reciprocal-rank fusion: 1/(k+rank) per leg, summed.
// Rank-based, so it is robust to the differing score scales of the two legs.
type RRFFuser struct {
	K int
}

func (f *RRFFuser) Fuse(dense, lexical []domain.Candidate) []domain.Hit {
	acc := map[string]*domain.Hit{}
	for rank, c := range rankByScore(dense) {
		h := hitFor(acc, c)
		h.Dense = 1.0 / float64(f.K+rank+1)
	}
	for rank, c := range rankByScore(lexical) {
		h := hitFor(acc, c)
		h.Lexical = 1.0 / float64(f.K+rank+1)
	}

	out := make([]domain.Hit, 0, len(acc))
	for _, h := range acc {
		h.Score = h.Dense + h.Lexical
		out = append(out, *h)
	}
	return out
}

// rankByScore orders one leg before assigning ranks. Ties break on issue
// key so ranks are stable across runs.
func rankByScore(cands []domain.Candidate) []domain.Candidate {
	sorted := make([]domain.Candidate, len(cands))
	copy(sorted, cands)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].IssueKey < sorted[j].IssueKey
	})
	return sorted
}

func hitFor(acc map[string]*domain.Hit, c domain.Candidate) *domain.Hit {
	h, ok := acc[c.IssueKey]
	if !ok {
		h = &domain.Hit{IssueKey: c.IssueKey, Snippet: c.Snippet, Service: c.Service}
		acc[c.IssueKey] = h
	}
	if h.Snippet == "" {
		h.Snippet = c.Snippet
	}
	if h.Service == "" {
		h.Service = c.Service
	}
	return h
}

// sortHits ranks fused hits: score descending, issue key ascending on ties,
// so equal inputs always produce the same ordering.
func sortHits(hits []domain.Hit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].IssueKey < hits[j].IssueKey
	})
}
