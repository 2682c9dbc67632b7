package preflight

import (
	"fmt"
	"os"
	"strings"

	"github.com/Aman-CERP/docsmcp/internal/config"
)

// CheckProjects checks that projects are configured and that every local
// project path is a directory. A missing local path only fails that
// project's ingestion, so it warns.
func (c *Checker) CheckProjects(cfg *config.Config) CheckResult {
	result := CheckResult{
		Name:     "projects",
		Required: true,
	}
	if len(cfg.Projects) == 0 {
		result.Status = StatusFail
		result.Message = "no projects configured"
		result.Details = "Run 'docsmcp init' and edit " + config.ProjectFileName
		return result
	}

	var missing []string
	for _, p := range cfg.Projects {
		if !p.IsLocal() {
			continue
		}
		if info, err := os.Stat(p.Path); err != nil || !info.IsDir() {
			missing = append(missing, p.Name)
		}
	}
	if len(missing) > 0 {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("%d configured, local path missing for: %s",
			len(cfg.Projects), strings.Join(missing, ", "))
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%d configured", len(cfg.Projects))
	return result
}

// CheckGit checks that git is installed when any project is fetched from a
// remote.
func (c *Checker) CheckGit(cfg *config.Config) CheckResult {
	result := CheckResult{Name: "git"}

	var remote int
	for _, p := range cfg.Projects {
		if !p.IsLocal() {
			remote++
		}
	}
	if remote == 0 {
		result.Status = StatusPass
		result.Message = "not needed (local projects only)"
		return result
	}

	result.Required = true
	path, err := c.lookPath("git")
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("git not found, needed by %d project(s)", remote)
		result.Details = err.Error()
		return result
	}
	result.Status = StatusPass
	result.Message = path
	return result
}
