package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/Aman-CERP/docsmcp/internal/config"
	"github.com/Aman-CERP/docsmcp/internal/embed"
	docserrors "github.com/Aman-CERP/docsmcp/internal/errors"
	"github.com/Aman-CERP/docsmcp/internal/index"
	"github.com/Aman-CERP/docsmcp/internal/ingest"
	"github.com/Aman-CERP/docsmcp/internal/practices"
	"github.com/Aman-CERP/docsmcp/internal/search"
	"github.com/Aman-CERP/docsmcp/internal/source"
	"github.com/Aman-CERP/docsmcp/internal/store"
	"github.com/Aman-CERP/docsmcp/internal/telemetry"
)

// app is the wired component graph shared by the server and the CLI
// commands.
type app struct {
	cfg          *config.Config
	logger       *slog.Logger
	metrics      *telemetry.Metrics
	embedder     embed.Embedder
	index        *index.Manager
	engine       *search.Engine
	extractor    *source.Extractor
	orchestrator *ingest.Orchestrator
	practices    *practices.Library
}

// openApp wires the embedder, index manager, retrieval engine and ingestion
// orchestrator for cfg. metrics may be nil.
func openApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *telemetry.Metrics) (*app, error) {
	if logger == nil {
		logger = slog.Default()
	}
	emb, err := embed.NewEmbedder(ctx, embed.Options{
		Provider:  embed.ParseProvider(cfg.Embeddings.Provider),
		Model:     cfg.Embeddings.Model,
		Host:      cfg.Embeddings.OllamaHost,
		CacheSize: cfg.Embeddings.CacheSize,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, metrics: metrics, embedder: emb}

	opener := func(ctx context.Context) (store.VectorStore, error) {
		st, err := store.Open(ctx, cfg.StoreDir(), emb, store.Options{
			MaxBatchSize: cfg.Index.MaxBatchSize,
			Logger:       logger,
		})
		if err != nil {
			return nil, err
		}
		return st, nil
	}

	a.index, err = index.Open(ctx, opener, index.Options{
		StoreDir:             cfg.StoreDir(),
		BackupDir:            filepath.Join(cfg.DataDir, "vectors.bak"),
		LedgerPath:           cfg.LedgerPath(),
		LockPath:             filepath.Join(cfg.DataDir, "index.lock"),
		MinSectionSize:       cfg.Index.MinSectionSize,
		SkipBackupForPartial: cfg.Index.SkipBackupForPartial,
		Projects:             cfg.ProjectNames(),
		Logger:               logger,
		OnReindex:            a.observeReindex,
	})
	if err != nil {
		_ = emb.Close()
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	metrics.SetDegraded(a.index.Degraded())

	a.engine, err = search.NewEngine(a.index, emb, search.EngineConfig{
		MaxResults:      cfg.Search.MaxResults,
		OverFetch:       cfg.Search.OverFetch,
		MaxContentChars: cfg.Search.MaxContentChars,
	}, search.WithMetrics(metrics), search.WithLogger(logger))
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.extractor, err = source.NewExtractor(source.Options{
		ReposDir:        cfg.ReposDir,
		IndexPatterns:   cfg.IndexPatterns,
		ExcludePatterns: cfg.ExcludePatterns,
		Projects:        cfg.Projects,
		Retry:           docserrors.DefaultRetryConfig(),
		Logger:          logger,
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.practices = practices.New(cfg.BestPracticesDirs...)

	a.orchestrator, err = ingest.New(a.extractor, a.index, ingest.Options{
		Workers:        cfg.Ingest.Workers,
		AcquireTimeout: cfg.AcquireTimeout(),
		Logger:         logger,
		Metrics:        metrics,
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) observeReindex(r *index.Report, err error) {
	a.metrics.ObserveReindex(telemetry.ReindexEvent{
		Added:      r.Added,
		Updated:    r.Updated,
		Removed:    r.Removed,
		Unchanged:  r.Unchanged,
		Chunks:     r.Chunks,
		Duration:   r.Duration,
		RolledBack: r.RolledBack,
		Failed:     err != nil,
	})
	if a.index != nil {
		a.metrics.SetDegraded(a.index.Degraded())
	}
}

// Close releases the index and the embedder.
func (a *app) Close() error {
	var errs []error
	if a.index != nil {
		errs = append(errs, a.index.Close())
	}
	if a.embedder != nil {
		errs = append(errs, a.embedder.Close())
	}
	return errors.Join(errs...)
}
