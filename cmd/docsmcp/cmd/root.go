// Package cmd provides the CLI commands for docsmcp.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docsmcp/internal/config"
	"github.com/Aman-CERP/docsmcp/internal/logging"
	"github.com/Aman-CERP/docsmcp/internal/profiling"
	"github.com/Aman-CERP/docsmcp/pkg/version"
)

// globalOptions holds the persistent flags shared by every subcommand.
type globalOptions struct {
	dir      string
	logLevel string
	debug    bool

	profile  profiling.Options
	profiler *profiling.Session
}

// NewRootCmd creates the root command for the docsmcp CLI.
func NewRootCmd() *cobra.Command {
	g := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "docsmcp",
		Short: "Documentation search server for AI assistants",
		Long: `docsmcp indexes the documentation of configured projects (git
repositories or local directories) and serves tiered search over it
through the Model Context Protocol.

Configure projects in .docsmcp.yaml ('docsmcp init'), build the index
with 'docsmcp index' and start the server with 'docsmcp serve'.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("docsmcp version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&g.dir, "dir", "C", "", "Directory holding .docsmcp.yaml (default: nearest project root)")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level: debug, info, warn, error (default from config)")
	cmd.PersistentFlags().BoolVar(&g.debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&g.profile.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&g.profile.Heap, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&g.profile.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = g.startProfiling
	cmd.PersistentPostRunE = g.stopProfiling

	cmd.AddCommand(newServeCmd(g))
	cmd.AddCommand(newIndexCmd(g))
	cmd.AddCommand(newSearchCmd(g))
	cmd.AddCommand(newGetCmd(g))
	cmd.AddCommand(newProjectsCmd(g))
	cmd.AddCommand(newStatusCmd(g))
	cmd.AddCommand(newInitCmd(g))
	cmd.AddCommand(newDoctorCmd(g))
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func (g *globalOptions) startProfiling(_ *cobra.Command, _ []string) error {
	if !g.profile.Enabled() {
		return nil
	}
	s, err := profiling.Start(g.profile)
	if err != nil {
		return err
	}
	g.profiler = s
	return nil
}

func (g *globalOptions) stopProfiling(_ *cobra.Command, _ []string) error {
	err := g.profiler.Stop()
	g.profiler = nil
	return err
}

// load resolves the configuration directory, loads the configuration and
// installs a file logger. stdout stays clean for the stdio transport.
func (g *globalOptions) load() (*config.Config, *slog.Logger, func(), error) {
	dir := g.dir
	if dir == "" {
		root, err := config.FindProjectRoot(".")
		if err != nil {
			return nil, nil, nil, err
		}
		dir = root
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return nil, nil, nil, err
	}

	level := cfg.Server.LogLevel
	if g.logLevel != "" {
		level = g.logLevel
	}
	if g.debug {
		level = "debug"
	}

	logger, cleanup, err := logging.Setup(logging.ServeConfig(level))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to setup logging: %w", err)
	}
	slog.SetDefault(logger)
	return cfg, logger, cleanup, nil
}
