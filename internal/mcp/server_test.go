package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docsmcp/internal/embed"
	docserrors "github.com/Aman-CERP/docsmcp/internal/errors"
	"github.com/Aman-CERP/docsmcp/internal/index"
	"github.com/Aman-CERP/docsmcp/internal/ingest"
	"github.com/Aman-CERP/docsmcp/internal/practices"
	"github.com/Aman-CERP/docsmcp/internal/search"
	"github.com/Aman-CERP/docsmcp/internal/store"
	"github.com/Aman-CERP/docsmcp/internal/telemetry"
)

type fakeSearcher struct {
	results  []*search.Result
	docs     map[string]*search.Document // key: project + "/" + path
	projects []store.ProjectStats
	note     string
	err      error

	lastQuery string
	lastOpts  search.Options
}

func (f *fakeSearcher) Search(_ context.Context, query string, opts search.Options) ([]*search.Result, error) {
	f.lastQuery, f.lastOpts = query, opts
	return f.results, f.err
}

func (f *fakeSearcher) GetDocument(_ context.Context, sourcePath, project string) (*search.Document, error) {
	if d, ok := f.docs[project+"/"+sourcePath]; ok {
		return d, nil
	}
	return nil, docserrors.New(docserrors.ErrCodeDocumentNotFound, "no document "+sourcePath, nil)
}

func (f *fakeSearcher) ReferenceGuide(_ context.Context, component, project string, withContent bool) ([]*search.Result, error) {
	var out []*search.Result
	for _, r := range f.results {
		if r.IsReference && r.Title == component && (project == "" || r.Project == project) {
			c := *r
			if !withContent {
				c.Content = ""
			}
			out = append(out, &c)
		}
	}
	return out, nil
}

func (f *fakeSearcher) ListProjects(context.Context) ([]store.ProjectStats, error) {
	return f.projects, f.err
}

func (f *fakeSearcher) Note() string { return f.note }

type fakeStatus struct{ status *index.Status }

func (f *fakeStatus) Status(context.Context) (*index.Status, error) { return f.status, nil }

type fakeReindexer struct {
	scope index.Scope
	res   *ingest.RunResult
	err   error
}

func (f *fakeReindexer) Run(_ context.Context, scope index.Scope) (*ingest.RunResult, error) {
	f.scope = scope
	return f.res, f.err
}

func sampleSearcher() *fakeSearcher {
	return &fakeSearcher{
		results: []*search.Result{
			{
				DocumentID: "hvplot___doc___reference___Scatter_md", Project: "hvplot",
				SourcePath: "doc/reference/Scatter.md", Title: "Scatter", IsReference: true,
				Score: 0.91, Tier: search.TierMetadata, Content: "# Scatter\n\nScatter plots points.",
			},
			{
				DocumentID: "hvplot___doc___how_to___scatter_plots_md", Project: "hvplot",
				SourcePath: "doc/how_to/scatter_plots.md", Title: "Scatter Plots",
				Score: 0.7, Tier: search.TierSemantic,
			},
		},
		docs: map[string]*search.Document{
			"panel/doc/reference/widgets/Tabulator.md": {
				DocumentID: "panel___doc___reference___widgets___Tabulator_md", Project: "panel",
				SourcePath: "doc/reference/widgets/Tabulator.md", Title: "Tabulator",
				Chunks: 3, Content: "# Tabulator\n\nThe Tabulator widget.\n",
			},
		},
		projects: []store.ProjectStats{
			{Project: "hvplot", Documents: 2, Chunks: 5, References: 1},
			{Project: "panel", Documents: 1, Chunks: 3, References: 1},
		},
	}
}

func newTestServer(t *testing.T, s *fakeSearcher, opts ...func(*Options)) *Server {
	t.Helper()
	o := Options{
		Searcher: s,
		Index:    &fakeStatus{status: &index.Status{Documents: 3, Chunks: 8}},
	}
	for _, fn := range opts {
		fn(&o)
	}
	srv, err := NewServer(o)
	require.NoError(t, err)
	return srv
}

func connect(t *testing.T, srv *Server) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	ss, err := srv.MCPServer().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func callTool(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	return res
}

func decode[T any](t *testing.T, res *mcp.CallToolResult) T {
	t.Helper()
	var out T
	data, err := json.Marshal(res.StructuredContent)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func resultText(res *mcp.CallToolResult) string {
	for _, c := range res.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestNewServer_RequiresDependencies(t *testing.T) {
	_, err := NewServer(Options{Index: &fakeStatus{}})
	require.Error(t, err)

	_, err = NewServer(Options{Searcher: &fakeSearcher{}})
	require.Error(t, err)
}

func TestServer_ListTools(t *testing.T) {
	// Given: a connected client
	cs := connect(t, newTestServer(t, sampleSearcher()))

	// When: listing tools
	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)

	// Then: every documented tool is registered
	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t,
		[]string{"search", "get_document", "get_reference_guide", "get_best_practices", "list_best_practices",
			"list_projects", "reindex", "index_status"},
		names)
}

// TS01: search returns structured results and a markdown rendering
func TestServer_Search(t *testing.T) {
	// Given
	s := sampleSearcher()
	cs := connect(t, newTestServer(t, s))

	// When
	res := callTool(t, cs, "search", map[string]any{
		"query":        "Scatter",
		"project":      "hvplot",
		"max_results":  2,
		"content_mode": "chunk",
	})

	// Then
	require.False(t, res.IsError, resultText(res))
	out := decode[SearchOutput](t, res)
	require.Len(t, out.Results, 2)
	assert.Equal(t, "doc/reference/Scatter.md", out.Results[0].SourcePath)
	assert.Equal(t, search.TierMetadata, out.Results[0].Tier)
	assert.Contains(t, resultText(res), "## Documentation Results for \"Scatter\"")

	assert.Equal(t, "Scatter", s.lastQuery)
	assert.Equal(t, "hvplot", s.lastOpts.Project)
	assert.Equal(t, 2, s.lastOpts.MaxResults)
	assert.Equal(t, search.ContentChunk, s.lastOpts.ContentMode)
}

func TestServer_Search_DefaultContentMode(t *testing.T) {
	s := sampleSearcher()
	cs := connect(t, newTestServer(t, s))

	res := callTool(t, cs, "search", map[string]any{"query": "scatter"})

	require.False(t, res.IsError)
	assert.Equal(t, search.ContentTruncated, s.lastOpts.ContentMode)
}

func TestServer_Search_Errors(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"blank query", map[string]any{"query": "   "}, "query cannot be empty"},
		{"bad content mode", map[string]any{"query": "x", "content_mode": "everything"}, "unknown content mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs := connect(t, newTestServer(t, sampleSearcher()))

			res := callTool(t, cs, "search", tt.args)

			assert.True(t, res.IsError)
			assert.Contains(t, resultText(res), tt.want)
		})
	}
}

func TestServer_Search_DegradedNote(t *testing.T) {
	// Given: an index that was reset after a storage failure
	s := &fakeSearcher{note: search.DegradedNote}
	cs := connect(t, newTestServer(t, s))

	// When
	res := callTool(t, cs, "search", map[string]any{"query": "Tabulator"})

	// Then: no results but the note tells the client what to do
	require.False(t, res.IsError)
	out := decode[SearchOutput](t, res)
	assert.Empty(t, out.Results)
	assert.Equal(t, search.DegradedNote, out.Note)
	assert.Contains(t, resultText(res), "reindex")
}

func TestServer_GetDocument(t *testing.T) {
	cs := connect(t, newTestServer(t, sampleSearcher()))

	res := callTool(t, cs, "get_document", map[string]any{
		"project":     "panel",
		"source_path": "doc/reference/widgets/Tabulator.md",
	})

	require.False(t, res.IsError, resultText(res))
	doc := decode[search.Document](t, res)
	assert.Equal(t, "Tabulator", doc.Title)
	assert.Equal(t, 3, doc.Chunks)
	assert.Contains(t, resultText(res), "The Tabulator widget.")
}

func TestServer_GetDocument_NotFound(t *testing.T) {
	cs := connect(t, newTestServer(t, sampleSearcher()))

	res := callTool(t, cs, "get_document", map[string]any{"project": "panel", "source_path": "doc/missing.md"})

	assert.True(t, res.IsError)
	assert.Contains(t, resultText(res), "no document doc/missing.md")
}

func TestServer_ReferenceGuide(t *testing.T) {
	cs := connect(t, newTestServer(t, sampleSearcher()))

	res := callTool(t, cs, "get_reference_guide", map[string]any{"component": "Scatter", "include_content": true})

	require.False(t, res.IsError)
	out := decode[ReferenceGuideOutput](t, res)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "hvplot", out.Results[0].Project)
	assert.Contains(t, out.Results[0].Content, "Scatter plots points.")
}

func TestServer_ReferenceGuide_NoMatch(t *testing.T) {
	cs := connect(t, newTestServer(t, sampleSearcher()))

	res := callTool(t, cs, "get_reference_guide", map[string]any{"component": "Gauge"})

	require.False(t, res.IsError)
	assert.Empty(t, decode[ReferenceGuideOutput](t, res).Results)
	assert.Contains(t, resultText(res), "No reference page named \"Gauge\"")
}

func withGuides(t *testing.T, guides map[string]string) func(*Options) {
	t.Helper()
	user := filepath.Join(t.TempDir(), "user")
	defaults := t.TempDir()
	require.NoError(t, os.MkdirAll(user, 0o755))
	for name, body := range guides {
		dir := defaults
		if filepath.Dir(name) == "user" {
			dir, name = user, filepath.Base(name)
		}
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return func(o *Options) { o.BestPractices = practices.New(user, defaults) }
}

// TS02: best-practice guides resolve by normalized name with user precedence
func TestServer_BestPractices(t *testing.T) {
	// Given: a default guide shadowed by a user guide, plus a second package
	cs := connect(t, newTestServer(t, sampleSearcher(), withGuides(t, map[string]string{
		"panel.md":             "# Panel defaults\n",
		"user/panel.md":        "# Panel house rules\n",
		"panel-material-ui.md": "# Material UI\n",
	})))

	// When
	res := callTool(t, cs, "get_best_practices", map[string]any{"package": "panel"})

	// Then: the user guide wins
	require.False(t, res.IsError, resultText(res))
	guide := decode[practices.Guide](t, res)
	assert.Equal(t, "panel", guide.Package)
	assert.Equal(t, "# Panel house rules\n", resultText(res))

	// And: underscored names find hyphenated guides
	res = callTool(t, cs, "get_best_practices", map[string]any{"package": "panel_material_ui"})
	require.False(t, res.IsError, resultText(res))
	assert.Contains(t, resultText(res), "Material UI")

	// And: the listing holds each package once
	res = callTool(t, cs, "list_best_practices", map[string]any{})
	require.False(t, res.IsError)
	assert.Equal(t, []string{"panel", "panel-material-ui"}, decode[ListBestPracticesOutput](t, res).Packages)
	assert.Contains(t, resultText(res), "- panel-material-ui")
}

func TestServer_BestPractices_Errors(t *testing.T) {
	cs := connect(t, newTestServer(t, sampleSearcher(), withGuides(t, map[string]string{"hvplot.md": "# hvPlot\n"})))

	res := callTool(t, cs, "get_best_practices", map[string]any{"package": "holoviews"})
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(res), `no best practices for package "holoviews"`)
	assert.Contains(t, resultText(res), "available packages: hvplot")

	res = callTool(t, cs, "get_best_practices", map[string]any{"package": " "})
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(res), "package is required")
}

func TestServer_BestPractices_NoneConfigured(t *testing.T) {
	cs := connect(t, newTestServer(t, sampleSearcher()))

	res := callTool(t, cs, "list_best_practices", map[string]any{})

	require.False(t, res.IsError)
	assert.Empty(t, decode[ListBestPracticesOutput](t, res).Packages)
	assert.Contains(t, resultText(res), "No best-practice guides")
}

func TestServer_ListProjects(t *testing.T) {
	cs := connect(t, newTestServer(t, sampleSearcher()))

	res := callTool(t, cs, "list_projects", map[string]any{})

	require.False(t, res.IsError)
	out := decode[ListProjectsOutput](t, res)
	require.Len(t, out.Projects, 2)
	assert.Equal(t, "hvplot", out.Projects[0].Project)
	assert.Contains(t, resultText(res), "| panel | 1 | 3 | 1 |")
}

func TestServer_Reindex(t *testing.T) {
	// Given: an orchestrator where one project fails
	r := &fakeReindexer{res: &ingest.RunResult{
		Outcomes: []ingest.ProjectOutcome{
			{Project: "hvplot", Documents: 2},
			{Project: "panel", Err: errors.New("clone failed"), Error: "clone failed"},
		},
		Report: &index.Report{RunID: "run-1", Added: 2, Chunks: 5},
	}}
	cs := connect(t, newTestServer(t, sampleSearcher(), func(o *Options) { o.Reindexer = r }))

	// When: reindexing two projects
	res := callTool(t, cs, "reindex", map[string]any{"projects": []string{"panel", "hvplot"}})

	// Then: the scope is passed through and the failure is reported
	require.False(t, res.IsError, resultText(res))
	assert.Equal(t, []string{"hvplot", "panel"}, r.scope.Names())
	out := decode[ReindexOutput](t, res)
	assert.Equal(t, []string{"panel"}, out.Failed)
	require.NotNil(t, out.Report)
	assert.Equal(t, 2, out.Report.Added)
	assert.Contains(t, resultText(res), "panel: failed: clone failed")
}

func TestServer_Reindex_AllProjects(t *testing.T) {
	r := &fakeReindexer{res: &ingest.RunResult{}}
	cs := connect(t, newTestServer(t, sampleSearcher(), func(o *Options) { o.Reindexer = r }))

	res := callTool(t, cs, "reindex", map[string]any{})

	require.False(t, res.IsError)
	assert.True(t, r.scope.IsAll())
	assert.Contains(t, resultText(res), "Nothing was reindexed.")
}

func TestServer_Reindex_Unavailable(t *testing.T) {
	cs := connect(t, newTestServer(t, sampleSearcher()))

	res := callTool(t, cs, "reindex", map[string]any{})

	assert.True(t, res.IsError)
	assert.Contains(t, resultText(res), "docsmcp index")
}

func TestServer_IndexStatus(t *testing.T) {
	// Given: a server with a static embedder and query metrics
	m := telemetry.New()
	m.ObserveSearch(telemetry.QueryEvent{Query: "scatter", ResultCount: 0})
	emb := embed.NewStaticEmbedder()
	srv := newTestServer(t, sampleSearcher(), func(o *Options) {
		o.Embedder = emb
		o.Metrics = m
		o.Index = &fakeStatus{status: &index.Status{
			Documents:   3,
			Chunks:      8,
			LastReindex: &index.Report{RunID: "run-1", Added: 3},
		}}
	})
	cs := connect(t, srv)

	// When
	res := callTool(t, cs, "index_status", map[string]any{})

	// Then
	require.False(t, res.IsError, resultText(res))
	out := decode[IndexStatusOutput](t, res)
	assert.False(t, out.Degraded)
	assert.Equal(t, 3, out.Documents)
	assert.Equal(t, 8, out.Chunks)
	assert.Len(t, out.Projects, 2)
	assert.Equal(t, "static", out.Embeddings.Model)
	assert.True(t, out.Embeddings.IsFallbackActive)
	assert.Equal(t, embed.StaticDimensions, out.Embeddings.Dimensions)
	require.NotNil(t, out.LastReindex)
	assert.Equal(t, "run-1", out.LastReindex.RunID)
	require.NotNil(t, out.Queries)
	assert.Equal(t, int64(1), out.Queries.TotalQueries)
	assert.InDelta(t, 100.0, out.Queries.ZeroResultPct, 0.001)
}

func TestServer_IndexStatus_NoEmbedder(t *testing.T) {
	cs := connect(t, newTestServer(t, sampleSearcher()))

	res := callTool(t, cs, "index_status", map[string]any{})

	out := decode[IndexStatusOutput](t, res)
	assert.Equal(t, "none", out.Embeddings.Model)
	assert.Nil(t, out.Queries)
}

func TestServer_Serve_UnknownTransport(t *testing.T) {
	srv := newTestServer(t, sampleSearcher())

	err := srv.Serve(context.Background(), "sse", "")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown transport")
}

func TestServer_Info(t *testing.T) {
	name, ver := newTestServer(t, sampleSearcher()).Info()

	assert.Equal(t, "docsmcp", name)
	assert.NotEmpty(t, ver)
}
