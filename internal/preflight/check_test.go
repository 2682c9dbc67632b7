package preflight

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docsmcp/internal/config"
	"github.com/Aman-CERP/docsmcp/internal/embed"
)

func TestCheckStatus_String(t *testing.T) {
	tests := []struct {
		status CheckStatus
		want   string
	}{
		{StatusPass, "PASS"},
		{StatusWarn, "WARN"},
		{StatusFail, "FAIL"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.String())
		})
	}
}

func TestCheckResult_JSONStatus(t *testing.T) {
	data, err := json.Marshal(CheckResult{Name: "git", Status: StatusWarn})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"status":"warn"`)

	var back CheckResult
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, StatusWarn, back.Status)
	require.Error(t, json.Unmarshal([]byte(`{"status":"maybe"}`), &back))
}

func TestCheckResult_IsCritical(t *testing.T) {
	tests := []struct {
		name     string
		result   CheckResult
		expected bool
	}{
		{"required pass is not critical", CheckResult{Status: StatusPass, Required: true}, false},
		{"required fail is critical", CheckResult{Status: StatusFail, Required: true}, true},
		{"optional fail is not critical", CheckResult{Status: StatusFail, Required: false}, false},
		{"required warn is not critical", CheckResult{Status: StatusWarn, Required: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.result.IsCritical())
		})
	}
}

func TestChecker_SummaryStatus(t *testing.T) {
	checker := New()

	tests := []struct {
		name     string
		results  []CheckResult
		expected string
	}{
		{"all pass", []CheckResult{{Status: StatusPass}, {Status: StatusPass}}, "ready"},
		{"with warnings", []CheckResult{{Status: StatusPass}, {Status: StatusWarn}}, "ready_with_warnings"},
		{"with critical failure", []CheckResult{{Status: StatusPass}, {Status: StatusFail, Required: true}}, "failed"},
		{"with optional failure", []CheckResult{{Status: StatusPass}, {Status: StatusFail}}, "ready_with_warnings"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, checker.SummaryStatus(tt.results))
			assert.Equal(t, tt.expected == "failed", checker.HasCriticalFailures(tt.results))
		})
	}
}

func TestChecker_CheckWritePermissions_CreatesDir(t *testing.T) {
	// Given: a data directory that does not exist yet
	dir := filepath.Join(t.TempDir(), "data", "nested")

	// When
	result := New().CheckWritePermissions(dir)

	// Then
	assert.Equal(t, StatusPass, result.Status)
	assert.True(t, result.Required)
	assert.DirExists(t, dir)
	assert.NoFileExists(t, filepath.Join(dir, ".docsmcp-preflight-test"))
}

func TestChecker_CheckWritePermissions_ReadOnly(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("Skipping read-only test when running as root")
	}

	readOnlyDir := filepath.Join(t.TempDir(), "readonly")
	require.NoError(t, os.Mkdir(readOnlyDir, 0o555))
	defer func() { _ = os.Chmod(readOnlyDir, 0o755) }()

	result := New().CheckWritePermissions(readOnlyDir)

	assert.Equal(t, StatusFail, result.Status)
	assert.Contains(t, result.Message, "permission denied")
}

func TestChecker_CheckProjects(t *testing.T) {
	existing := t.TempDir()

	tests := []struct {
		name     string
		projects []config.ProjectConfig
		want     CheckStatus
		message  string
	}{
		{"none", nil, StatusFail, "no projects configured"},
		{"local ok", []config.ProjectConfig{{Name: "panel", Path: existing}}, StatusPass, "1 configured"},
		{"remote only", []config.ProjectConfig{{Name: "hvplot", URL: "https://github.com/holoviz/hvplot.git"}}, StatusPass, "1 configured"},
		{"local missing", []config.ProjectConfig{
			{Name: "panel", Path: existing},
			{Name: "gone", Path: filepath.Join(existing, "missing")},
		}, StatusWarn, "gone"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.NewConfig()
			cfg.Projects = tt.projects

			result := New().CheckProjects(cfg)

			assert.Equal(t, tt.want, result.Status)
			assert.Contains(t, result.Message, tt.message)
		})
	}
}

func TestChecker_CheckGit(t *testing.T) {
	remote := []config.ProjectConfig{{Name: "hvplot", URL: "https://github.com/holoviz/hvplot.git"}}

	t.Run("local projects skip the lookup", func(t *testing.T) {
		c := New()
		c.lookPath = func(string) (string, error) { t.Fatal("lookPath called"); return "", nil }
		cfg := config.NewConfig()
		cfg.Projects = []config.ProjectConfig{{Name: "panel", Path: t.TempDir()}}

		result := c.CheckGit(cfg)

		assert.Equal(t, StatusPass, result.Status)
		assert.False(t, result.Required)
	})

	t.Run("missing git fails", func(t *testing.T) {
		c := New()
		c.lookPath = func(string) (string, error) { return "", errors.New("executable file not found in $PATH") }
		cfg := config.NewConfig()
		cfg.Projects = remote

		result := c.CheckGit(cfg)

		assert.True(t, result.IsCritical())
		assert.Contains(t, result.Message, "needed by 1 project(s)")
	})

	t.Run("git found", func(t *testing.T) {
		c := New()
		c.lookPath = func(string) (string, error) { return "/usr/bin/git", nil }
		cfg := config.NewConfig()
		cfg.Projects = remote

		result := c.CheckGit(cfg)

		assert.Equal(t, StatusPass, result.Status)
		assert.Equal(t, "/usr/bin/git", result.Message)
	})
}

func TestChecker_CheckEmbedder(t *testing.T) {
	ctx := context.Background()

	t.Run("static passes", func(t *testing.T) {
		cfg := config.NewConfig()
		cfg.Embeddings.Provider = "static"

		result := New().CheckEmbedder(ctx, cfg)

		assert.Equal(t, StatusPass, result.Status)
		assert.Equal(t, "static", result.Message)
	})

	t.Run("auto fallback warns", func(t *testing.T) {
		cfg := config.NewConfig()
		cfg.Embeddings.Provider = ""
		cfg.Embeddings.OllamaHost = "http://127.0.0.1:1"

		result := New().CheckEmbedder(ctx, cfg)

		assert.Equal(t, StatusWarn, result.Status)
		assert.False(t, result.Required)
		assert.Contains(t, result.Message, "static")
	})

	t.Run("construction error warns", func(t *testing.T) {
		c := New()
		c.embedder = func(context.Context, embed.Options) (embed.Embedder, error) {
			return nil, errors.New("connection refused")
		}
		cfg := config.NewConfig()
		cfg.Embeddings.Provider = "ollama"

		result := c.CheckEmbedder(ctx, cfg)

		assert.Equal(t, StatusWarn, result.Status)
		assert.Contains(t, result.Message, "ollama unavailable: connection refused")
	})
}

// TS01: a healthy local configuration is ready
func TestChecker_RunAll(t *testing.T) {
	// Given: one local project and a fresh data directory
	cfg := config.NewConfig()
	cfg.DataDir = filepath.Join(t.TempDir(), "data")
	cfg.Embeddings.Provider = "static"
	cfg.Projects = []config.ProjectConfig{{Name: "panel", Path: t.TempDir()}}

	// When
	results := New().RunAll(context.Background(), cfg)

	// Then: every check ran and none failed
	names := make(map[string]bool)
	for _, r := range results {
		names[r.Name] = true
		assert.NotEqual(t, StatusFail, r.Status, "%s: %s", r.Name, r.Message)
	}
	for _, want := range []string{"projects", "git", "write_permissions", "disk_space", "file_descriptors", "embedder"} {
		assert.True(t, names[want], "%s check missing", want)
	}
}

func TestChecker_PrintResults(t *testing.T) {
	results := []CheckResult{
		{Name: "disk_space", Status: StatusPass, Message: "50 GB free"},
		{Name: "embedder", Status: StatusWarn, Message: "ollama unreachable", Details: "start ollama"},
		{Name: "projects", Status: StatusFail, Message: "no projects configured", Required: true},
	}
	buf := &bytes.Buffer{}

	New(WithOutput(buf), WithVerbose(true)).PrintResults(results)

	out := buf.String()
	assert.Contains(t, out, "[PASS] disk_space: 50 GB free")
	assert.Contains(t, out, "[WARN] embedder")
	assert.Contains(t, out, "      start ollama")
	assert.Contains(t, out, "Status: FAILED")
	assert.Contains(t, out, "1 error(s):")
	assert.Contains(t, out, "1 warning(s):")
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 bytes", formatBytes(512))
	assert.Equal(t, "1.5 KB", formatBytes(1536))
	assert.Equal(t, "100.0 MB", formatBytes(MinDiskSpaceBytes))
	assert.Equal(t, "2.0 GB", formatBytes(2*1024*1024*1024))
}
