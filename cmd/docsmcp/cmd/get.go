package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

func newGetCmd(g *globalOptions) *cobra.Command {
	var (
		project    string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "get <source-path>",
		Short: "Print a whole indexed document",
		Long: `Reassemble an indexed document from its chunks and print it.

The path is relative to the project repository, as shown by search.`,
		Example: `  docsmcp get doc/reference/Scatter.md --project hvplot`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd.Context(), g, cmd, args[0], project, jsonOutput)
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", "", "Project the document belongs to")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runGet(ctx context.Context, g *globalOptions, cmd *cobra.Command, sourcePath, project string, jsonOutput bool) error {
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

	doc, err := a.engine.GetDocument(ctx, sourcePath, project)
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), doc)
	}
	_, err = cmd.OutOrStdout().Write([]byte(doc.Content))
	return err
}
