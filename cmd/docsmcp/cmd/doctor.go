package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docsmcp/internal/preflight"
)

// doctorReport is the JSON shape of 'docsmcp doctor --json'.
type doctorReport struct {
	Status string                  `json:"status"`
	Checks []preflight.CheckResult `json:"checks"`
}

var errDoctorFailed = errors.New("system check failed")

func newDoctorCmd(g *globalOptions) *cobra.Command {
	var (
		verbose    bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and environment",
		Long: `Run diagnostics before indexing or serving.

Checks:
  - Projects are configured and local paths exist
  - git is installed when a project uses a remote
  - The data directory is writable with 100MB free
  - File descriptor limit (1024 minimum, for --watch)
  - The embeddings backend answers

Embedder problems are warnings: search falls back to static embeddings.`,
		Example: `  docsmcp doctor
  docsmcp doctor --verbose
  docsmcp doctor --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, cleanup, err := g.load()
			if err != nil {
				return err
			}
			defer cleanup()

			checker := preflight.New(
				preflight.WithVerbose(verbose),
				preflight.WithOutput(cmd.OutOrStdout()),
			)
			results := checker.RunAll(cmd.Context(), cfg)

			if jsonOutput {
				if err := writeJSON(cmd.OutOrStdout(), doctorReport{
					Status: checker.SummaryStatus(results),
					Checks: results,
				}); err != nil {
					return err
				}
			} else {
				checker.PrintResults(results)
			}

			if checker.HasCriticalFailures(results) {
				return errDoctorFailed
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed diagnostic info")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
