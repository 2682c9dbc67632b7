package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docsmcp/internal/index"
	"github.com/Aman-CERP/docsmcp/internal/ingest"
	"github.com/Aman-CERP/docsmcp/internal/output"
)

func newIndexCmd(g *globalOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "index [project...]",
		Short: "Fetch projects and update the index",
		Long: `Acquire the named projects (all configured projects when none are
given), extract their documentation and apply the changes to the index.

Projects that fail to acquire keep their previously indexed documents.`,
		Example: `  docsmcp index
  docsmcp index panel hvplot`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runIndex(ctx, g, cmd, args, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the run result as JSON")

	return cmd
}

func runIndex(ctx context.Context, g *globalOptions, cmd *cobra.Command, projects []string, jsonOutput bool) error {
	cfg, logger, cleanup, err := g.load()
	if err != nil {
		return err
	}
	defer cleanup()

	if len(cfg.Projects) == 0 {
		return fmt.Errorf("no projects configured. Run 'docsmcp init' first")
	}

	a, err := openApp(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	scope := index.AllProjects()
	if len(projects) > 0 {
		scope = index.ProjectScope(projects...)
	}

	out := output.New(cmd.OutOrStdout())
	if !jsonOutput {
		if a.index.Degraded() {
			out.Warning("The index was reset after a storage failure; rebuilding from scratch.")
		}
		out.Statusf("📚", "Indexing %d project(s)...", len(scopeNames(scope, cfg.ProjectNames())))
	}

	start := time.Now()
	res, runErr := a.orchestrator.Run(ctx, scope)
	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
		return runErr
	}

	printRunResult(out, res, time.Since(start))
	if runErr != nil {
		return runErr
	}
	if failed := res.Failed(); len(failed) > 0 {
		return fmt.Errorf("%d project(s) failed: %v", len(failed), failed)
	}
	return nil
}

func scopeNames(scope index.Scope, configured []string) []string {
	if scope.IsAll() {
		return configured
	}
	return scope.Names()
}

func printRunResult(out *output.Writer, res *ingest.RunResult, elapsed time.Duration) {
	if res == nil {
		return
	}
	for _, o := range res.Outcomes {
		if o.Failed() {
			out.Errorf("%s: %s", o.Project, o.Error)
			continue
		}
		out.Successf("%s: %d documents (%s)", o.Project, o.Documents, o.Duration.Round(time.Millisecond))
	}
	out.Newline()
	if r := res.Report; r != nil {
		out.Successf("Added %d, updated %d, removed %d, unchanged %d (%d chunks written) in %s",
			r.Added, r.Updated, r.Removed, r.Unchanged, r.Chunks, elapsed.Round(time.Millisecond))
		if r.RolledBack {
			out.Warning("The write failed and the index was restored from its backup.")
		}
		return
	}
	out.Warning("Nothing was reindexed.")
}
