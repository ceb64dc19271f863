// Package eval measures retrieval quality against a fixed query set with
// known relevant issue keys.
package eval

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/incidentlab/recall/internal/domain"
)

// Searcher is the retrieval surface under evaluation.
type Searcher interface {
	Search(ctx context.Context, q domain.Query) (domain.RetrievalResult, error)
}

// CaseResult holds per-case quality numbers.
type CaseResult struct {
	Query     string
	Expected  []string
	Retrieved []string
	Recall    float64
	Precision float64
	RR        float64 // reciprocal rank of the first relevant hit
}

// Report aggregates a full evaluation run. Cases with an empty expected
// set have undefined recall and are excluded from the aggregates.
type Report struct {
	Model         string
	K             int
	Cases         []CaseResult
	MeanRecall    float64
	MeanPrecision float64
	MRR           float64
	Evaluated     int
	Skipped       int
}

// Service runs the evaluation harness.
type Service struct {
	searcher Searcher
	logger   *zap.Logger
}

func New(searcher Searcher, logger *zap.Logger) *Service {
	return &Service{searcher: searcher, logger: logger}
}

// Evaluate runs every case through search and reports recall@k, precision@k
// and MRR, aggregated by unweighted mean across evaluated cases.
func (s *Service) Evaluate(ctx context.Context, cases []domain.EvalCase, modelID string, k int) (Report, error) {
	if k <= 0 {
		return Report{}, fmt.Errorf("k must be positive, got %d", k)
	}

	report := Report{Model: modelID, K: k}
	var sumRecall, sumPrecision, sumRR float64

	for i, c := range cases {
		if len(c.Expected) == 0 {
			report.Skipped++
			s.logger.Warn("Skipping eval case without expected keys", zap.Int("case", i))
			continue
		}

		res, err := s.searcher.Search(ctx, domain.Query{Text: c.Query, ModelID: modelID, K: k})
		if err != nil {
			return Report{}, fmt.Errorf("eval case %d: %w", i, err)
		}

		retrieved := make([]string, len(res.Hits))
		for j, h := range res.Hits {
			retrieved[j] = h.IssueKey
		}

		cr := CaseResult{
			Query:     c.Query,
			Expected:  c.Expected,
			Retrieved: retrieved,
			Recall:    recallAtK(retrieved, c.Expected),
			Precision: precisionAtK(retrieved, c.Expected, k),
			RR:        reciprocalRank(retrieved, c.Expected),
		}
		report.Cases = append(report.Cases, cr)
		report.Evaluated++
		sumRecall += cr.Recall
		sumPrecision += cr.Precision
		sumRR += cr.RR
	}

	if report.Evaluated > 0 {
		n := float64(report.Evaluated)
		report.MeanRecall = sumRecall / n
		report.MeanPrecision = sumPrecision / n
		report.MRR = sumRR / n
	}

	s.logger.Info("Evaluation complete",
		zap.String("model", modelID),
		zap.Int("k", k),
		zap.Int("evaluated", report.Evaluated),
		zap.Int("skipped", report.Skipped),
		zap.Float64("mean_recall", report.MeanRecall),
		zap.Float64("mrr", report.MRR),
	)
	return report, nil
}

// recallAtK = |retrieved ∩ expected| / |expected|. The caller guarantees
// a non-empty expected set.
func recallAtK(retrieved, expected []string) float64 {
	exp := toSet(expected)
	hits := 0
	for _, key := range dedupe(retrieved) {
		if exp[key] {
			hits++
		}
	}
	return float64(hits) / float64(len(exp))
}

func precisionAtK(retrieved, expected []string, k int) float64 {
	res := dedupe(retrieved)
	if len(res) > k {
		res = res[:k]
	}
	if len(res) == 0 {
		return 0
	}
	exp := toSet(expected)
	hits := 0
	for _, key := range res {
		if exp[key] {
			hits++
		}
	}
	return float64(hits) / float64(len(res))
}

func reciprocalRank(retrieved, expected []string) float64 {
	exp := toSet(expected)
	for i, key := range dedupe(retrieved) {
		if exp[key] {
			return 1.0 / float64(i+1)
		}
	}
	return 0
}

func toSet(keys []string) map[string]bool {
	m := make(map[string]bool, len(keys))
	for _, k := range keys {
		m[k] = true
	}
	return m
}

// dedupe keeps the first occurrence of each key, preserving order.
func dedupe(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	out := keys[:0:0]
	for _, k := range keys {
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}
