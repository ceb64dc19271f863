package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/incidentlab/recall/internal/config"
	"github.com/incidentlab/recall/internal/db"
	dbRedis "github.com/incidentlab/recall/internal/db/redis"
	"github.com/incidentlab/recall/internal/domain"
	logpkg "github.com/incidentlab/recall/internal/logger"
	"github.com/incidentlab/recall/internal/metrics"
	catalogrepo "github.com/incidentlab/recall/internal/repository/catalog"
	documentrepo "github.com/incidentlab/recall/internal/repository/document"
	"github.com/incidentlab/recall/internal/repository/embcache"
	searchrepo "github.com/incidentlab/recall/internal/repository/search"
	"github.com/incidentlab/recall/internal/source"
	openaiEmb "github.com/incidentlab/recall/internal/transport/openai"
	evaluc "github.com/incidentlab/recall/internal/usecase/eval"
	indexinguc "github.com/incidentlab/recall/internal/usecase/indexing"
	retrievaluc "github.com/incidentlab/recall/internal/usecase/retrieval"
	"github.com/incidentlab/recall/internal/version"
)

func usage() {
	fmt.Fprintf(os.Stderr, `recall — hybrid incident retrieval pipeline

Usage: recall <command> [flags]

Commands:
  reindex     embed the full ticket dump into a model's index
  ingest      append newly arrived tickets (idempotent)
  search      run a hybrid query against a model's index
  eval        measure recall@k against a fixture
  count       print the number of indexed documents
  drop-index  drop a model's index and its documents
`)
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	verb := os.Args[1]
	args := os.Args[2:]

	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting recall",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.String("command", verb),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Store not ready", zap.Error(err))
	}

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterIndexingMetrics()
	metrics.RegisterRetrievalMetrics()

	if cfg.Ops.MetricsPort > 0 {
		startOpsListener(cfg.Ops.MetricsPort, store, logger)
	}

	registry := buildRegistry(cfg, store, logger)

	catalog := catalogrepo.New(store).WithHNSW(catalogrepo.HNSWConfig{
		M:           cfg.Indexing.HNSWM,
		EFConstruct: cfg.Indexing.HNSWEFConstruct,
	})
	docRepo := documentrepo.New(store)
	searchRepo := searchrepo.New(store)

	fuser, err := retrievaluc.NewFuser(
		cfg.Retrieval.Fusion, cfg.Retrieval.WDense, cfg.Retrieval.WLexical, cfg.Retrieval.RRFK,
	)
	if err != nil {
		logger.Fatal("Invalid fusion config", zap.Error(err))
	}

	indexSvc := indexinguc.New(registry, catalog, docRepo, logger).
		WithBatchSize(cfg.Indexing.BatchSize).
		WithWorkers(cfg.Indexing.Workers)
	retrSvc := retrievaluc.New(registry, catalog, searchRepo, fuser, logger).
		WithOverfetch(cfg.Retrieval.OverfetchFactor, cfg.Retrieval.OverfetchMin)
	evalSvc := evaluc.New(retrSvc, logger)

	switch verb {
	case "reindex":
		fs := flag.NewFlagSet("reindex", flag.ExitOnError)
		model := fs.String("model", "", "model id (default: config default_model)")
		dir := fs.String("dir", cfg.Sources.DumpDir, "directory with *.json dump files")
		_ = fs.Parse(args)

		mustHealthy(ctx, registry, *model, logger)
		src := source.NewJSONDump(*dir, logger)
		n, err := indexSvc.ReindexAll(ctx, *model, src)
		if err != nil {
			logger.Fatal("Reindex failed", zap.Error(err), zap.Int("written", n))
		}
		fmt.Printf("indexed %d documents\n", n)

	case "ingest":
		fs := flag.NewFlagSet("ingest", flag.ExitOnError)
		model := fs.String("model", "", "model id (default: config default_model)")
		dir := fs.String("dir", cfg.Sources.NewTicketsDir, "directory with *.csv delta drops")
		_ = fs.Parse(args)

		mustHealthy(ctx, registry, *model, logger)
		src := source.NewCSVDelta(*dir, logger)
		n, err := indexSvc.IngestNew(ctx, *model, src)
		if err != nil {
			logger.Fatal("Ingest failed", zap.Error(err))
		}
		fmt.Printf("ingested %d new documents\n", n)

	case "search":
		fs := flag.NewFlagSet("search", flag.ExitOnError)
		model := fs.String("model", "", "model id (default: config default_model)")
		k := fs.Int("k", cfg.Retrieval.DefaultK, "number of results")
		service := fs.String("service", "", "optional service filter")
		_ = fs.Parse(args)
		if fs.NArg() == 0 {
			logger.Fatal("Usage: recall search [flags] <query text>")
		}

		res, err := retrSvc.Search(ctx, domain.Query{
			Text:    fs.Arg(0),
			ModelID: *model,
			K:       *k,
			Service: *service,
		})
		if err != nil {
			logger.Fatal("Search failed", zap.Error(err))
		}
		printJSON(res.Hits)

	case "eval":
		fs := flag.NewFlagSet("eval", flag.ExitOnError)
		model := fs.String("model", "", "model id (default: config default_model)")
		k := fs.Int("k", cfg.Eval.K, "cutoff for recall@k")
		fixture := fs.String("fixture", cfg.Eval.Fixture, "JSONL file with eval cases")
		_ = fs.Parse(args)

		cases, err := evaluc.LoadFixture(*fixture)
		if err != nil {
			logger.Fatal("Failed to load fixture", zap.Error(err))
		}
		report, err := evalSvc.Evaluate(ctx, cases, *model, *k)
		if err != nil {
			logger.Fatal("Evaluation failed", zap.Error(err))
		}
		printJSON(report)

	case "count":
		fs := flag.NewFlagSet("count", flag.ExitOnError)
		model := fs.String("model", "", "model id (default: config default_model)")
		_ = fs.Parse(args)

		n, err := indexSvc.Count(ctx, *model)
		if err != nil {
			logger.Fatal("Count failed", zap.Error(err))
		}
		fmt.Println(n)

	case "drop-index":
		fs := flag.NewFlagSet("drop-index", flag.ExitOnError)
		model := fs.String("model", "", "model id (default: config default_model)")
		_ = fs.Parse(args)

		prov, err := registry.Resolve(*model)
		if err != nil {
			logger.Fatal("Unknown model", zap.Error(err))
		}
		if err := catalog.Drop(ctx, prov.ModelID(), prov.Dimension()); err != nil {
			logger.Fatal("Drop failed", zap.Error(err))
		}
		fmt.Printf("dropped index for %s\n", prov.ModelID())

	default:
		usage()
	}
}

// buildRegistry assembles one provider per configured model:
// OpenAI-compatible transport, optionally wrapped in the embedding cache.
func buildRegistry(cfg config.Config, store db.Store, logger *zap.Logger) *domain.ModelRegistry {
	defaultID := cfg.Embedding.DefaultModel
	if defaultID == "" {
		ids := make([]string, 0, len(cfg.Embedding.Models))
		for id := range cfg.Embedding.Models {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		defaultID = ids[0]
	}

	registry := domain.NewModelRegistry(defaultID)
	for id, m := range cfg.Embedding.Models {
		provCfg := cfg.Embedding.Providers[m.Provider]

		base := openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     provCfg.APIKey,
			BaseURL:    provCfg.BaseURL,
			ModelID:    id,
			Model:      m.Model,
			Dimensions: m.Dimensions,
			Provider:   m.Provider,
			Logger:     logger,
		})

		var prov domain.Provider = base
		if cfg.Indexing.Cache.Enabled {
			ttl := time.Duration(cfg.Indexing.Cache.TTLSec) * time.Second
			prov = embcache.New(base, store, ttl, metrics.EmbeddingCacheTotal, logger)
		}
		registry.Register(id, prov)

		logger.Info("Registered embedding model",
			zap.String("model_id", id),
			zap.String("provider", m.Provider),
			zap.String("remote_model", m.Model),
			zap.Int("dimensions", m.Dimensions),
			zap.Bool("cached", cfg.Indexing.Cache.Enabled),
		)
	}
	return registry
}

// mustHealthy verifies the provider answers before a long run starts.
func mustHealthy(ctx context.Context, registry *domain.ModelRegistry, modelID string, logger *zap.Logger) {
	prov, err := registry.Resolve(modelID)
	if err != nil {
		logger.Fatal("Unknown model", zap.Error(err))
	}
	if hc, ok := prov.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			logger.Fatal("Embedding provider unavailable", zap.Error(err))
		}
	}
}

// startOpsListener serves /metrics and /healthz for long-running commands.
func startOpsListener(port int, store db.Store, logger *zap.Logger) {
	r := chi.NewRouter()
	r.Use(chiMiddleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(logpkg.ContextWithLogger(req.Context(), logger)))
		})
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := store.Ping(req.Context()); err != nil {
			logpkg.FromContext(req.Context()).Warn("Health check failed", zap.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("store unavailable"))
			return
		}
		_, _ = w.Write([]byte("ok"))
	})

	addr := fmt.Sprintf(":%d", port)
	go func() {
		logger.Info("Ops listener started", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, r); err != nil {
			logger.Error("Ops listener stopped", zap.Error(err))
		}
	}()
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		fmt.Fprintln(os.Stderr, "encode output:", err)
		os.Exit(1)
	}
}
