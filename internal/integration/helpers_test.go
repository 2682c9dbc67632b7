// Package integration exercises the ingestion pipeline, the index and the
// MCP surface together over documentation trees on disk.
package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docsmcp/internal/config"
	"github.com/Aman-CERP/docsmcp/internal/embed"
	"github.com/Aman-CERP/docsmcp/internal/index"
	"github.com/Aman-CERP/docsmcp/internal/ingest"
	server "github.com/Aman-CERP/docsmcp/internal/mcp"
	"github.com/Aman-CERP/docsmcp/internal/search"
	"github.com/Aman-CERP/docsmcp/internal/source"
	"github.com/Aman-CERP/docsmcp/internal/store"
	"github.com/Aman-CERP/docsmcp/internal/telemetry"
)

// env is a fully wired system over two local projects.
type env struct {
	root     string
	projects []config.ProjectConfig
	index    *index.Manager
	engine   *search.Engine
	orch     *ingest.Orchestrator
	metrics  *telemetry.Metrics
	client   *mcp.ClientSession
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// tabulatorPage is a long reference page with one SelectEditor section.
func tabulatorPage() string {
	var b strings.Builder
	b.WriteString("# Tabulator\n\nThe Tabulator widget renders a pandas DataFrame as an interactive table with sorting, filtering, pagination and editing support.\n\n")
	for i := 0; i < 30; i++ {
		if i == 20 {
			b.WriteString("## SelectEditor\n\nThe SelectEditor restricts a cell to a fixed list of options. Configure it per column through the editors parameter, passing the allowed values.\n\n")
			continue
		}
		fmt.Fprintf(&b, "## Feature %d\n\nSection %d covers layout, theming, frozen columns, row grouping and pagination behaviour of the table widget.\n\n", i, i)
	}
	return b.String()
}

// writeCorpus lays out a panel-like and an hvplot-like documentation tree.
func writeCorpus(t *testing.T, root string) {
	t.Helper()
	writeFile(t, filepath.Join(root, "panel", "reference", "widgets", "Tabulator.md"), tabulatorPage())
	writeFile(t, filepath.Join(root, "panel", "how_to", "editors.md"),
		"# Select editor\n\nSelect editor select editor. Editor select, select the editor.\n")
	writeFile(t, filepath.Join(root, "panel", "_build", "html", "index.md"), "# Build output\n")
	writeFile(t, filepath.Join(root, "hvplot", "reference", "Scatter.md"),
		"# Scatter\n\nDraws markers at x and y positions of two numeric columns.\n")
	writeFile(t, filepath.Join(root, "hvplot", "how_to", "scatter_plots.md"),
		"# Scatter plots\n\nScatter plots scatter points. Scatter markers, scatter scatter.\n")
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	root := t.TempDir()
	writeCorpus(t, root)

	cfg := config.NewConfig()
	projects := []config.ProjectConfig{
		{Name: "panel", Path: filepath.Join(root, "panel"), BaseURL: "https://panel.holoviz.org"},
		{Name: "hvplot", Path: filepath.Join(root, "hvplot"), BaseURL: "https://hvplot.holoviz.org"},
	}
	dataDir := filepath.Join(root, "data")
	embedder := embed.NewStaticEmbedder()

	metrics := telemetry.New()
	mgr, err := index.Open(ctx, storeOpener(dataDir), index.Options{
		StoreDir:   filepath.Join(dataDir, "vectors"),
		BackupDir:  filepath.Join(dataDir, "vectors.bak"),
		LedgerPath: filepath.Join(dataDir, "hash_ledger.json"),
		LockPath:   filepath.Join(dataDir, "index.lock"),
		Projects:   []string{"panel", "hvplot"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })

	engine, err := search.NewEngine(mgr, embedder, search.DefaultEngineConfig(), search.WithMetrics(metrics))
	require.NoError(t, err)

	extractor, err := source.NewExtractor(source.Options{
		ReposDir:        filepath.Join(root, "repos"),
		IndexPatterns:   cfg.IndexPatterns,
		ExcludePatterns: cfg.ExcludePatterns,
		Projects:        projects,
	})
	require.NoError(t, err)

	orch, err := ingest.New(extractor, mgr, ingest.Options{Metrics: metrics})
	require.NoError(t, err)

	srv, err := server.NewServer(server.Options{
		Searcher:  engine,
		Index:     mgr,
		Reindexer: orch,
		Embedder:  embedder,
		Metrics:   metrics,
	})
	require.NoError(t, err)

	return &env{
		root:     root,
		projects: projects,
		index:    mgr,
		engine:   engine,
		orch:     orch,
		metrics:  metrics,
		client:   connect(t, srv),
	}
}

// storeOpener opens the vector store under dataDir with the static embedder.
func storeOpener(dataDir string) index.StoreOpener {
	embedder := embed.NewStaticEmbedder()
	return func(ctx context.Context) (store.VectorStore, error) {
		st, err := store.Open(ctx, filepath.Join(dataDir, "vectors"), embedder, store.Options{})
		if err != nil {
			return nil, err
		}
		return st, nil
	}
}

func connect(t *testing.T, srv *server.Server) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	ss, err := srv.MCPServer().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "integration", Version: "1.0.0"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func (e *env) call(t *testing.T, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := e.client.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	return res
}

func decode[T any](t *testing.T, res *mcp.CallToolResult) T {
	t.Helper()
	require.False(t, res.IsError, "tool error: %v", res.Content)
	var out T
	data, err := json.Marshal(res.StructuredContent)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

// reindex runs the reindex tool and returns its structured output.
func (e *env) reindex(t *testing.T, projects ...string) server.ReindexOutput {
	t.Helper()
	args := map[string]any{}
	if len(projects) > 0 {
		args["projects"] = projects
	}
	return decode[server.ReindexOutput](t, e.call(t, "reindex", args))
}

func (e *env) search(t *testing.T, query string, extra map[string]any) []*search.Result {
	t.Helper()
	args := map[string]any{"query": query}
	for k, v := range extra {
		args[k] = v
	}
	return decode[server.SearchOutput](t, e.call(t, "search", args)).Results
}
