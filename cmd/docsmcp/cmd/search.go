package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docsmcp/internal/output"
	"github.com/Aman-CERP/docsmcp/internal/search"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	project  string
	limit    int
	content  string
	maxChars int
	format   string // "text", "json"
}

func newSearchCmd(g *globalOptions) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed documentation",
		Long: `Search the indexed documentation.

Exact title and path matches rank first, then keyword matches on the
extracted terms, then semantic matches. Each document appears once.`,
		Example: `  docsmcp search "Tabulator SelectEditor"
  docsmcp search scatter --project hvplot --limit 3
  docsmcp search "layout" --content full --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), g, cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.project, "project", "p", "", "Restrict results to one project")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default from config)")
	cmd.Flags().StringVar(&opts.content, "content", string(search.ContentTruncated), "Content mode: truncated, chunk, full, none")
	cmd.Flags().IntVar(&opts.maxChars, "max-chars", 0, "Character budget for truncated content (default from config)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runSearch(ctx context.Context, g *globalOptions, cmd *cobra.Command, query string, opts searchOptions) error {
	mode, err := search.ParseContentMode(opts.content)
	if err != nil {
		return err
	}
	if opts.format != "text" && opts.format != "json" {
		return fmt.Errorf("unknown format %q (supported: text, json)", opts.format)
	}

	cfg, logger, cleanup, err := g.load()
	if err != nil {
		return err
	}
	defer cleanup()

	a, err := openApp(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	logger.Info("search_started", slog.String("query", query), slog.String("project", opts.project))
	results, err := a.engine.Search(ctx, query, search.Options{
		Project:         opts.project,
		MaxResults:      opts.limit,
		ContentMode:     mode,
		MaxContentChars: opts.maxChars,
	})
	if err != nil {
		return err
	}

	if opts.format == "json" {
		return writeJSON(cmd.OutOrStdout(), results)
	}

	out := output.New(cmd.OutOrStdout())
	if note := a.engine.Note(); note != "" {
		out.Warning(note)
	}
	printResults(out, query, results)
	return nil
}

func printResults(out *output.Writer, query string, results []*search.Result) {
	if len(results) == 0 {
		out.Statusf("🔍", "No documentation found for %q", query)
		return
	}
	out.Statusf("🔍", "%d result(s) for %q", len(results), query)
	out.Newline()
	for i, r := range results {
		out.Heading(fmt.Sprintf("%d. %s", i+1, r.Title))
		out.Dim(fmt.Sprintf("%s/%s  [%s %.2f]", r.Project, r.SourcePath, r.Tier, r.Score))
		if r.URL != "" {
			out.Dim(r.URL)
		}
		if r.Content != "" {
			out.Code(r.Content)
		} else if r.Description != "" {
			out.Status("", r.Description)
		}
		out.Newline()
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
