package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docsmcp/configs"
	"github.com/Aman-CERP/docsmcp/internal/config"
	"github.com/Aman-CERP/docsmcp/internal/mcp"
	"github.com/Aman-CERP/docsmcp/internal/output"
)

// MCPServerConfig is one server entry in .mcp.json.
type MCPServerConfig struct {
	Type    string            `json:"type,omitempty"`
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Cwd     string            `json:"cwd,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// MCPConfig is the root .mcp.json structure.
type MCPConfig struct {
	MCPServers map[string]MCPServerConfig `json:"mcpServers"`
}

type initOptions struct {
	force     bool
	user      bool
	noMCPJSON bool
}

func newInitCmd(g *globalOptions) *cobra.Command {
	var opts initOptions

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a docsmcp configuration",
		Long: `Create a .docsmcp.yaml template listing the documentation projects to
index, and register the server in .mcp.json so MCP clients started in
this directory can reach it.

Existing files are preserved unless --force is given.`,
		Example: `  docsmcp init
  docsmcp init --user
  docsmcp init --force --no-mcp-json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			root := g.dir
			if root == "" {
				var err error
				if root, err = os.Getwd(); err != nil {
					return err
				}
			}
			return runInit(cmd, root, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.force, "force", false, "Overwrite existing configuration")
	cmd.Flags().BoolVar(&opts.user, "user", false, "Also create the user configuration file")
	cmd.Flags().BoolVar(&opts.noMCPJSON, "no-mcp-json", false, "Do not create or update .mcp.json")

	return cmd
}

func runInit(cmd *cobra.Command, root string, opts initOptions) error {
	out := output.New(cmd.OutOrStdout())
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	if err := writeTemplate(out, filepath.Join(absRoot, config.ProjectFileName), configs.ProjectConfigTemplate, opts.force); err != nil {
		return err
	}
	if opts.user {
		userPath := config.UserConfigPath()
		if err := os.MkdirAll(filepath.Dir(userPath), 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
		if err := writeTemplate(out, userPath, configs.UserConfigTemplate, opts.force); err != nil {
			return err
		}
	}
	if !opts.noMCPJSON {
		if err := configureMCPJSON(out, absRoot, opts.force); err != nil {
			return err
		}
	}

	out.Newline()
	out.Status("💡", "Edit "+config.ProjectFileName+" to list your projects, then run 'docsmcp index'.")
	return nil
}

// writeTemplate writes content to path unless the file exists and force
// is false.
func writeTemplate(out *output.Writer, path, content string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		out.Statusf("ℹ️ ", "Existing %s preserved", path)
		return nil
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	out.Statusf("📝", "Created %s", path)
	return nil
}

// configureMCPJSON creates or updates .mcp.json in projectRoot.
func configureMCPJSON(out *output.Writer, projectRoot string, force bool) error {
	mcpPath := filepath.Join(projectRoot, ".mcp.json")

	existing := MCPConfig{MCPServers: make(map[string]MCPServerConfig)}
	if data, err := os.ReadFile(mcpPath); err == nil {
		if err := json.Unmarshal(data, &existing); err != nil {
			return fmt.Errorf("failed to parse existing .mcp.json: %w", err)
		}
		if existing.MCPServers == nil {
			existing.MCPServers = make(map[string]MCPServerConfig)
		}
		if _, ok := existing.MCPServers[mcp.ServerName]; ok && !force {
			out.Status("ℹ️ ", "docsmcp already configured in .mcp.json")
			return nil
		}
	}

	binary, err := findBinary()
	if err != nil {
		return err
	}
	existing.MCPServers[mcp.ServerName] = MCPServerConfig{
		Type:    "stdio",
		Command: binary,
		Args:    []string{"serve"},
		Cwd:     projectRoot,
	}

	data, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal .mcp.json: %w", err)
	}
	if err := os.WriteFile(mcpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write .mcp.json: %w", err)
	}
	out.Statusf("📝", "Registered docsmcp in %s", mcpPath)
	return nil
}

// findBinary locates the docsmcp executable.
func findBinary() (string, error) {
	if execPath, err := os.Executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(execPath); err == nil {
			return resolved, nil
		}
		return execPath, nil
	}
	path, err := exec.LookPath("docsmcp")
	if err != nil {
		return "", fmt.Errorf("docsmcp not found in PATH: %w", err)
	}
	return path, nil
}
