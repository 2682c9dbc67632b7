package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docsmcp/internal/logging"
	"github.com/Aman-CERP/docsmcp/internal/output"
)

type logsOptions struct {
	follow  bool
	lines   int
	level   string
	filter  string
	noColor bool
	logFile string
}

func newLogsCmd() *cobra.Command {
	var opts logsOptions

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "View docsmcp logs",
		Long: `Show the last lines of the docsmcp log file, or follow it with -f.

The server logs to ~/.docsmcp/logs/server.log because stdout is reserved
for the MCP protocol.`,
		Example: `  docsmcp logs
  docsmcp logs -f --level warn
  docsmcp logs --filter reindex -n 200`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runLogs(ctx, cmd, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.follow, "follow", "f", false, "Follow log output (like tail -f)")
	cmd.Flags().IntVarP(&opts.lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().StringVar(&opts.level, "level", "", "Minimum level: debug, info, warn, error")
	cmd.Flags().StringVar(&opts.filter, "filter", "", "Only show lines matching this regular expression")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	cmd.Flags().StringVar(&opts.logFile, "file", "", "Log file path (default: ~/.docsmcp/logs/server.log)")

	return cmd
}

func runLogs(ctx context.Context, cmd *cobra.Command, opts logsOptions) error {
	var pattern *regexp.Regexp
	if opts.filter != "" {
		var err error
		if pattern, err = regexp.Compile(opts.filter); err != nil {
			return fmt.Errorf("invalid filter pattern: %w", err)
		}
	}

	path := opts.logFile
	if path == "" {
		path = logging.DefaultLogPath()
	}

	viewer := logging.NewViewer(logging.ViewerConfig{
		Level:   opts.level,
		Pattern: pattern,
		NoColor: opts.noColor || !output.IsTTY(cmd.OutOrStdout()),
	}, cmd.OutOrStdout())

	entries, err := viewer.Tail(path, opts.lines)
	if err != nil {
		return err
	}
	viewer.Print(entries)
	if !opts.follow {
		return nil
	}

	ch := make(chan logging.LogEntry, 100)
	errCh := make(chan error, 1)
	go func() { errCh <- viewer.Follow(ctx, path, ch) }()
	for {
		select {
		case entry := <-ch:
			viewer.Print([]logging.LogEntry{entry})
		case err := <-errCh:
			return err
		}
	}
}
