package indexing

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/incidentlab/recall/internal/domain"
	"github.com/incidentlab/recall/internal/metrics"
	"github.com/incidentlab/recall/internal/source"
)

const (
	// DefaultBatchSize is how many texts go into one embedding API call.
	// Batching is a throughput knob, never a correctness one.
	DefaultBatchSize = 64

	// DefaultWorkers is the number of concurrent embedding batches.
	DefaultWorkers = 4

	// snippetLen caps the stored preview of a document.
	snippetLen = 220
)

// Service builds and maintains per-model document indexes.
type Service struct {
	registry  Registry
	catalog   Provisioner
	docs      DocumentWriter
	logger    *zap.Logger
	batchSize int
	workers   int
}

// New creates an indexing service.
func New(registry Registry, catalog Provisioner, docs DocumentWriter, logger *zap.Logger) *Service {
	return &Service{
		registry:  registry,
		catalog:   catalog,
		docs:      docs,
		logger:    logger,
		batchSize: DefaultBatchSize,
		workers:   DefaultWorkers,
	}
}

// WithBatchSize configures the embedding batch size.
func (s *Service) WithBatchSize(n int) *Service {
	if n > 0 {
		s.batchSize = n
	}
	return s
}

// WithWorkers configures the number of concurrent embedding batches.
func (s *Service) WithWorkers(n int) *Service {
	if n > 0 {
		s.workers = n
	}
	return s
}

// ReindexAll embeds every document from src into the model's index.
// Writes are upserts keyed by issue key, so re-running the same model
// is idempotent and corrects previously bad embeddings. Per-document
// embedding failures are logged and skipped; the count covers only
// documents actually written.
func (s *Service) ReindexAll(ctx context.Context, modelID string, src DocumentSource) (int, error) {
	prov, ix, err := s.prepare(ctx, modelID)
	if err != nil {
		return 0, err
	}

	records, err := src.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load documents: %w", err)
	}

	start := time.Now()
	written, err := s.indexRecords(ctx, prov, ix, records, "bulk")
	if err != nil {
		return written, err
	}
	metrics.IndexingDuration.WithLabelValues(prov.ModelID(), "bulk").Observe(time.Since(start).Seconds())

	s.logger.Info("Reindex complete",
		zap.String("model", prov.ModelID()),
		zap.String("index", ix.Name),
		zap.Int("source_records", len(records)),
		zap.Int("written", written),
		zap.Duration("took", time.Since(start)),
	)
	return written, nil
}

// IngestNew appends only tickets whose issue keys are not yet in the index.
// Safe to call repeatedly: a repeat run with no new input returns 0. A missing
// index is provisioned as a prerequisite, not treated as an error.
func (s *Service) IngestNew(ctx context.Context, modelID string, src DeltaSource) (int, error) {
	prov, ix, err := s.prepare(ctx, modelID)
	if err != nil {
		return 0, err
	}

	records, err := src.LoadNew(ctx)
	if err != nil {
		return 0, fmt.Errorf("load delta: %w", err)
	}
	if len(records) == 0 {
		return 0, nil
	}

	records = dedupeByKey(records)

	keys := make([]string, len(records))
	for i := range records {
		keys[i] = records[i].IssueKey
	}
	present, err := s.docs.ExistingKeys(ctx, ix, keys)
	if err != nil {
		return 0, fmt.Errorf("check existing keys: %w", err)
	}

	delta := records[:0:0]
	for _, rec := range records {
		if present[rec.IssueKey] {
			metrics.DocumentsSkippedTotal.WithLabelValues(prov.ModelID(), "already_indexed").Inc()
			continue
		}
		delta = append(delta, rec)
	}
	if len(delta) == 0 {
		s.logger.Info("No new tickets to ingest",
			zap.String("model", prov.ModelID()),
			zap.Int("candidates", len(records)),
		)
		return 0, nil
	}

	start := time.Now()
	written, err := s.indexRecords(ctx, prov, ix, delta, "delta")
	if err != nil {
		return written, err
	}
	metrics.IndexingDuration.WithLabelValues(prov.ModelID(), "delta").Observe(time.Since(start).Seconds())

	s.logger.Info("Ingest complete",
		zap.String("model", prov.ModelID()),
		zap.Int("candidates", len(records)),
		zap.Int("written", written),
	)
	return written, nil
}

// Count returns the number of documents currently in the model's index.
func (s *Service) Count(ctx context.Context, modelID string) (int, error) {
	prov, err := s.registry.Resolve(modelID)
	if err != nil {
		return 0, err
	}
	ix, err := s.catalog.Ensure(ctx, prov.ModelID(), prov.Dimension())
	if err != nil {
		return 0, err
	}
	return s.docs.Count(ctx, ix)
}

func (s *Service) prepare(ctx context.Context, modelID string) (domain.Provider, domain.Index, error) {
	prov, err := s.registry.Resolve(modelID)
	if err != nil {
		return nil, domain.Index{}, err
	}
	ix, err := s.catalog.Ensure(ctx, prov.ModelID(), prov.Dimension())
	if err != nil {
		return nil, domain.Index{}, fmt.Errorf("ensure index: %w", err)
	}
	return prov, ix, nil
}

// indexRecords embeds records in concurrent batches and upserts the results.
// One bad document never aborts the run: empty texts, per-item embedding
// failures and dimension mismatches are counted and skipped.
func (s *Service) indexRecords(
	ctx context.Context,
	prov domain.Provider,
	ix domain.Index,
	records []source.Record,
	mode string,
) (int, error) {
	usable := records[:0:0]
	for _, rec := range records {
		if strings.TrimSpace(rec.Text) == "" {
			metrics.DocumentsSkippedTotal.WithLabelValues(prov.ModelID(), "empty_text").Inc()
			continue
		}
		usable = append(usable, rec)
	}
	if len(usable) == 0 {
		return 0, nil
	}

	var written atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for start := 0; start < len(usable); start += s.batchSize {
		end := min(start+s.batchSize, len(usable))
		batch := usable[start:end]

		g.Go(func() error {
			n, err := s.indexBatch(gctx, prov, ix, batch, mode)
			if err != nil {
				return err
			}
			written.Add(int64(n))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return int(written.Load()), err
	}
	return int(written.Load()), nil
}

func (s *Service) indexBatch(
	ctx context.Context,
	prov domain.Provider,
	ix domain.Index,
	batch []source.Record,
	mode string,
) (int, error) {
	texts := make([]string, len(batch))
	for i := range batch {
		texts[i] = batch[i].Text
	}

	vectors, err := s.embedBatch(ctx, prov, texts)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	docs := make([]domain.Document, 0, len(batch))
	for i, rec := range batch {
		if vectors[i] == nil {
			continue // already counted as skipped
		}
		if len(vectors[i]) != ix.Dim {
			metrics.DocumentsSkippedTotal.WithLabelValues(prov.ModelID(), "dim_mismatch").Inc()
			s.logger.Warn("Embedding dimension mismatch",
				zap.String("issue_key", rec.IssueKey),
				zap.Int("want", ix.Dim),
				zap.Int("got", len(vectors[i])),
			)
			continue
		}
		docs = append(docs, domain.Document{
			IssueKey:  rec.IssueKey,
			Content:   rec.Text,
			Snippet:   makeSnippet(rec.Text),
			Service:   rec.Service,
			IndexedAt: now,
			Vector:    vectors[i],
		})
	}
	if len(docs) == 0 {
		return 0, nil
	}

	if err := s.docs.BatchUpsert(ctx, ix, docs); err != nil {
		return 0, fmt.Errorf("batch upsert: %w", err)
	}

	metrics.DocumentsIndexedTotal.WithLabelValues(prov.ModelID(), mode).Add(float64(len(docs)))
	return len(docs), nil
}

// embedBatch returns vectors aligned with texts. When the single batch call
// fails, it retries per item so one poisoned text costs one slot, not the
// whole batch; skipped slots are nil.
func (s *Service) embedBatch(
	ctx context.Context, prov domain.Provider, texts []string,
) ([][]float32, error) {
	res, err := prov.BatchEmbed(ctx, texts)
	if err == nil {
		if len(res.Embeddings) != len(texts) {
			return nil, fmt.Errorf("batch embed: got %d vectors for %d texts", len(res.Embeddings), len(texts))
		}
		return res.Embeddings, nil
	}

	s.logger.Warn("Batch embed failed, retrying per item", zap.Error(err))

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := prov.Embed(ctx, text)
		if err != nil {
			metrics.DocumentsSkippedTotal.WithLabelValues(prov.ModelID(), "embed_error").Inc()
			s.logger.Warn("Skipping document after embed failure",
				zap.Int("batch_index", i),
				zap.Error(err),
			)
			continue
		}
		vectors[i] = r.Embedding
	}
	return vectors, nil
}

// dedupeByKey keeps the first record per issue key, preserving order.
func dedupeByKey(records []source.Record) []source.Record {
	seen := make(map[string]bool, len(records))
	out := records[:0:0]
	for _, rec := range records {
		if seen[rec.IssueKey] {
			continue
		}
		seen[rec.IssueKey] = true
		out = append(out, rec)
	}
	return out
}

// makeSnippet collapses whitespace and truncates to snippetLen runes.
func makeSnippet(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= snippetLen {
		return s
	}
	return string(runes[:snippetLen])
}
