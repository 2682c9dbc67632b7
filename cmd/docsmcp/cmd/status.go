package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docsmcp/internal/index"
	"github.com/Aman-CERP/docsmcp/internal/output"
)

// statusInfo is the JSON shape of the status command.
type statusInfo struct {
	*index.Status
	Projects   []string `json:"configured_projects"`
	DataDir    string   `json:"data_dir"`
	Model      string   `json:"embedding_model"`
	Dimensions int      `json:"embedding_dimensions"`
}

func newStatusCmd(g *globalOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index health and status",
		Long: `Display the state of the index: document and chunk counts, the
embedder in use, the outcome of the last reindex in this process and
whether the index is degraded after a storage failure.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), g, cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStatus(ctx context.Context, g *globalOptions, cmd *cobra.Command, jsonOutput bool) error {
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

	st, err := a.index.Status(ctx)
	if err != nil {
		return err
	}
	info := statusInfo{
		Status:     st,
		Projects:   cfg.ProjectNames(),
		DataDir:    cfg.DataDir,
		Model:      a.embedder.ModelName(),
		Dimensions: a.embedder.Dimensions(),
	}
	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), info)
	}

	out := output.New(cmd.OutOrStdout())
	out.Heading("docsmcp index")
	if st.Degraded {
		out.Errorf("Degraded: %s", st.DegradedReason)
	} else {
		out.Success("Healthy")
	}
	out.Newline()
	out.Table([]string{"ITEM", "VALUE"}, [][]string{
		{"Data directory", cfg.DataDir},
		{"Projects", fmt.Sprintf("%d configured", len(info.Projects))},
		{"Documents", fmt.Sprint(st.Documents)},
		{"Chunks", fmt.Sprint(st.Chunks)},
		{"Embeddings", fmt.Sprintf("%s (%d dims)", info.Model, info.Dimensions)},
	})
	if r := st.LastReindex; r != nil {
		out.Newline()
		out.Dim(fmt.Sprintf("Last reindex %s: +%d ~%d -%d in %s",
			r.RunID, r.Added, r.Updated, r.Removed, r.Duration.Round(time.Millisecond)))
	}
	return nil
}
