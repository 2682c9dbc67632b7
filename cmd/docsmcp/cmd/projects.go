package cmd

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docsmcp/internal/output"
)

func newProjectsCmd(g *globalOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List indexed projects",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runProjects(cmd.Context(), g, cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runProjects(ctx context.Context, g *globalOptions, cmd *cobra.Command, jsonOutput bool) error {
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

	projects, err := a.engine.ListProjects(ctx)
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), projects)
	}

	out := output.New(cmd.OutOrStdout())
	if len(projects) == 0 {
		out.Warning("No projects are indexed. Run 'docsmcp index' first.")
		return nil
	}
	rows := make([][]string, 0, len(projects))
	for _, p := range projects {
		rows = append(rows, []string{
			p.Project,
			strconv.Itoa(p.Documents),
			strconv.Itoa(p.Chunks),
			strconv.Itoa(p.References),
		})
	}
	out.Table([]string{"PROJECT", "DOCUMENTS", "CHUNKS", "REFERENCE"}, rows)
	return nil
}
