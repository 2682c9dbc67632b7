package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/docsmcp/internal/index"
	"github.com/Aman-CERP/docsmcp/internal/mcp"
	"github.com/Aman-CERP/docsmcp/internal/telemetry"
	"github.com/Aman-CERP/docsmcp/internal/watcher"
)

type serveOptions struct {
	transport   string
	addr        string
	metricsAddr string
	watch       bool
	index       bool
}

func newServeCmd(g *globalOptions) *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the MCP server over stdio (default) or streamable HTTP.

The server exposes the search, get_document, get_reference_guide,
get_best_practices, list_best_practices, list_projects, reindex and
index_status tools. With --watch, changes to local projects are
reindexed automatically.`,
		Example: `  docsmcp serve
  docsmcp serve --transport http --addr 127.0.0.1:8765
  docsmcp serve --watch --metrics-addr 127.0.0.1:9464`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, g, cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.transport, "transport", "", "Transport: stdio or http (default from config)")
	cmd.Flags().StringVar(&opts.addr, "addr", "", "Listen address for the http transport")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Expose Prometheus metrics on this address")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "Reindex local projects when their files change")
	cmd.Flags().BoolVar(&opts.index, "index", false, "Run an ingestion pass in the background at startup")

	return cmd
}

func runServe(ctx context.Context, g *globalOptions, cmd *cobra.Command, opts serveOptions) error {
	cfg, logger, cleanup, err := g.load()
	if err != nil {
		return err
	}
	defer cleanup()

	// Flags override config.
	if !cmd.Flags().Changed("transport") {
		opts.transport = cfg.Server.Transport
	}
	if !cmd.Flags().Changed("addr") {
		opts.addr = cfg.Server.HTTPAddr
	}
	if !cmd.Flags().Changed("metrics-addr") {
		opts.metricsAddr = cfg.Server.MetricsAddr
	}
	if !cmd.Flags().Changed("watch") {
		opts.watch = cfg.Server.Watch
	}

	metrics := telemetry.New()
	a, err := openApp(ctx, cfg, logger, metrics)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	srv, err := mcp.NewServer(mcp.Options{
		Searcher:      a.engine,
		Index:         a.index,
		Reindexer:     a.orchestrator,
		BestPractices: a.practices,
		Embedder:      a.embedder,
		Metrics:       metrics,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	grp, gctx := errgroup.WithContext(ctx)

	grp.Go(func() error {
		defer cancel()
		return srv.Serve(gctx, opts.transport, opts.addr)
	})

	if opts.metricsAddr != "" {
		grp.Go(func() error {
			return metrics.Serve(gctx, opts.metricsAddr, logger)
		})
	}

	if opts.index {
		grp.Go(func() error {
			if _, err := a.orchestrator.Run(gctx, index.AllProjects()); err != nil && gctx.Err() == nil {
				logger.Error("startup_index_failed", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	if opts.watch {
		w, err := startWatcher(a)
		if err != nil {
			cancel()
			_ = grp.Wait()
			return err
		}
		grp.Go(func() error { return ignoreCanceled(w.Run(gctx)) })
		grp.Go(func() error { return watchLoop(gctx, w, a) })
	}

	return ignoreCanceled(grp.Wait())
}

// startWatcher watches every local project of the app's configuration.
// Git projects are only refreshed by the reindex tool.
func startWatcher(a *app) (*watcher.Watcher, error) {
	w, err := watcher.New(watcher.Options{
		DebounceWindow:  a.cfg.WatchDebounce(),
		IncludePatterns: a.cfg.IndexPatterns,
		IgnorePatterns:  a.cfg.ExcludePatterns,
		Logger:          a.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	for _, p := range a.cfg.Projects {
		if !p.IsLocal() {
			continue
		}
		if err := w.Add(p.Name, a.extractor.Root(p)); err != nil {
			_ = w.Stop()
			return nil, err
		}
		a.logger.Info("watching_project", slog.String("project", p.Name))
	}
	return w, nil
}

// watchLoop reindexes the projects touched by each debounced batch.
func watchLoop(ctx context.Context, w *watcher.Watcher, a *app) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case batch, ok := <-w.Events():
			if !ok {
				return nil
			}
			projects := watcher.Projects(batch)
			a.logger.Info("watch_reindex",
				slog.Any("projects", projects),
				slog.Int("events", len(batch)))
			if _, err := a.orchestrator.Run(ctx, index.ProjectScope(projects...)); err != nil && ctx.Err() == nil {
				a.logger.Warn("watch_reindex_failed", slog.String("error", err.Error()))
			}
		}
	}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
