package retrieval

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/incidentlab/recall/internal/domain"
	"github.com/incidentlab/recall/internal/metrics"
)

// Over-fetch defaults: each leg returns more than k candidates so fusion
// has material to reorder before the final cut.
const (
	DefaultOverfetchFactor = 4
	DefaultOverfetchMin    = 20
)

// Service runs hybrid search: dense and lexical legs over the same index,
// fused into one deterministic ranking.
type Service struct {
	registry  Registry
	catalog   Catalog
	repo      Repository
	fuser     Fuser
	rephraser Rephraser
	logger    *zap.Logger

	overfetchFactor int
	overfetchMin    int
}

// New creates a retrieval service.
func New(registry Registry, catalog Catalog, repo Repository, fuser Fuser, logger *zap.Logger) *Service {
	return &Service{
		registry:        registry,
		catalog:         catalog,
		repo:            repo,
		fuser:           fuser,
		logger:          logger,
		overfetchFactor: DefaultOverfetchFactor,
		overfetchMin:    DefaultOverfetchMin,
	}
}

// WithRephraser attaches an optional query rewriter.
func (s *Service) WithRephraser(r Rephraser) *Service {
	s.rephraser = r
	return s
}

// WithOverfetch configures how many candidates each leg returns per k.
func (s *Service) WithOverfetch(factor, minimum int) *Service {
	if factor > 0 {
		s.overfetchFactor = factor
	}
	if minimum > 0 {
		s.overfetchMin = minimum
	}
	return s
}

// HasRephraser reports whether a query rewriter is attached.
func (s *Service) HasRephraser() bool { return s.rephraser != nil }

// Search runs both retrieval legs and returns the top-k fused hits.
// An empty result is a valid outcome, not an error. Misconfiguration
// (unknown model, missing index) fails fast — no fallback to a default
// model inside the retrieval path.
func (s *Service) Search(ctx context.Context, q domain.Query) (domain.RetrievalResult, error) {
	if q.K <= 0 {
		return domain.RetrievalResult{}, fmt.Errorf("k must be positive, got %d", q.K)
	}

	prov, err := s.registry.Resolve(q.ModelID)
	if err != nil {
		return domain.RetrievalResult{}, err
	}

	start := time.Now()
	res, err := s.search(ctx, prov, q)
	if err != nil {
		metrics.RetrievalRequestsTotal.WithLabelValues(prov.ModelID(), "error").Inc()
		return domain.RetrievalResult{}, err
	}

	status := "ok"
	if len(res.Hits) == 0 {
		status = "empty"
	}
	metrics.RetrievalRequestsTotal.WithLabelValues(prov.ModelID(), status).Inc()
	metrics.RetrievalDuration.WithLabelValues(prov.ModelID()).Observe(time.Since(start).Seconds())

	return res, nil
}

func (s *Service) search(ctx context.Context, prov domain.Provider, q domain.Query) (domain.RetrievalResult, error) {
	ix, err := s.catalog.Lookup(ctx, prov.ModelID(), prov.Dimension())
	if err != nil {
		return domain.RetrievalResult{}, err
	}

	text := s.rephrase(ctx, q.Text)

	emb, err := prov.Embed(ctx, text)
	if err != nil {
		return domain.RetrievalResult{}, fmt.Errorf("embed query: %w", err)
	}

	n := max(q.K*s.overfetchFactor, s.overfetchMin)

	var dense, lexical []domain.Candidate
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		dense, err = s.repo.Dense(gctx, ix, emb.Embedding, q.Service, n)
		return err
	})
	g.Go(func() error {
		var err error
		lexical, err = s.repo.Lexical(gctx, ix, text, q.Service, n)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.RetrievalResult{}, err
	}

	hits := s.fuser.Fuse(dense, lexical)
	sortHits(hits)
	if len(hits) > q.K {
		hits = hits[:q.K]
	}

	s.logger.Debug("Hybrid search done",
		zap.String("model", prov.ModelID()),
		zap.Int("dense", len(dense)),
		zap.Int("lexical", len(lexical)),
		zap.Int("hits", len(hits)),
	)
	return domain.RetrievalResult{Hits: hits}, nil
}

// rephrase rewrites the query when a rephraser is attached. A rewrite
// failure falls back to the original text instead of failing the search.
func (s *Service) rephrase(ctx context.Context, text string) string {
	if s.rephraser == nil {
		return text
	}
	rewritten, err := s.rephraser.Rephrase(ctx, text)
	if err != nil || rewritten == "" {
		s.logger.Warn("Query rephrase failed, using original", zap.Error(err))
		return text
	}
	return rewritten
}
