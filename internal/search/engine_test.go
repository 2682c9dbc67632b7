package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docsmcp/internal/chunk"
	"github.com/Aman-CERP/docsmcp/internal/embed"
	docserrors "github.com/Aman-CERP/docsmcp/internal/errors"
	"github.com/Aman-CERP/docsmcp/internal/store"
	"github.com/Aman-CERP/docsmcp/internal/telemetry"
)

type fakeIndex struct {
	st       store.VectorStore
	degraded bool
}

func (f *fakeIndex) Store() store.VectorStore { return f.st }
func (f *fakeIndex) Degraded() bool           { return f.degraded }

// failingStore fails queries selected by fail.
type failingStore struct {
	store.VectorStore
	fail func(store.QueryRequest) bool
}

func (f *failingStore) Query(ctx context.Context, req store.QueryRequest) ([]*store.Hit, error) {
	if f.fail(req) {
		return nil, errors.New("backend unavailable")
	}
	return f.VectorStore.Query(ctx, req)
}

func testDoc(project, path, body string) *chunk.Document {
	d := chunk.NewDocument(project, path, body)
	d.Title = chunk.PathStem(path)
	d.IsReference = strings.HasPrefix(d.SourcePath, "reference/")
	d.URL = "https://" + project + ".example/" + strings.TrimSuffix(d.SourcePath, ".md") + ".html"
	return d
}

// tabulatorBody is a 50-section reference page with a SelectEditor section.
func tabulatorBody() string {
	var b strings.Builder
	b.WriteString("# Tabulator\n\nThe Tabulator widget renders a pandas DataFrame as an interactive table with sorting, filtering, pagination and editing support.\n\n")
	for i := 0; i < 49; i++ {
		if i == 30 {
			b.WriteString("## SelectEditor\n\nThe SelectEditor restricts a cell to a fixed list of options. Configure it per column through the editors parameter, passing the allowed values; the cell then renders a dropdown while the table is being edited by the user.\n\n")
			continue
		}
		fmt.Fprintf(&b, "## Feature %d\n\nSection %d describes table option number %d, covering layout, theming, frozen columns, row grouping and pagination behaviour of the widget in detail.\n\n", i, i, i)
	}
	return b.String()
}

func testCorpus() []*chunk.Document {
	return []*chunk.Document{
		testDoc("panel", "reference/widgets/Tabulator.md", tabulatorBody()),
		testDoc("panel", "how_to/editors.md", "# Select editor\n\nSelect editor select editor. Editor select, select the editor.\n"),
		testDoc("hvplot", "reference/Scatter.md", "# Scatter\n\nDraws markers at x and y positions.\n"),
		testDoc("hvplot", "how_to/scatter_plots.md", "# Scatter plots\n\nScatter plots scatter points. Scatter markers, scatter scatter.\n"),
		testDoc("panel", "reference/panes/Markdown.md", "# Markdown\n\nThe Markdown pane renders markdown text with syntax highlighting and tables.\n"),
	}
}

func newTestEngine(t *testing.T, opts ...EngineOption) (*Engine, *fakeIndex) {
	t.Helper()
	ctx := context.Background()
	embedder := embed.NewStaticEmbedder()
	st, err := store.Open(ctx, t.TempDir(), embedder, store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	chunker := chunk.NewMarkdownChunker()
	for _, d := range testCorpus() {
		chunks, err := chunker.Chunk(ctx, d)
		require.NoError(t, err)
		require.NoError(t, st.Upsert(ctx, chunks))
	}

	idx := &fakeIndex{st: st}
	e, err := NewEngine(idx, embedder, DefaultEngineConfig(), opts...)
	require.NoError(t, err)
	return e, idx
}

func assertUniqueDocuments(t *testing.T, results []*Result) {
	t.Helper()
	seen := make(map[string]bool)
	for _, r := range results {
		key := r.Project + "/" + r.SourcePath
		assert.False(t, seen[key], "duplicate document %s", key)
		seen[key] = true
	}
}

// TS01: A query naming a file stem returns that file first via Tier 0
func TestSearch_ScatterFirstViaMetadataTier(t *testing.T) {
	// Given
	e, _ := newTestEngine(t)

	// When
	results, err := e.Search(context.Background(), "Scatter", Options{})

	// Then
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "reference/Scatter.md", results[0].SourcePath)
	assert.Equal(t, "hvplot", results[0].Project)
	assert.Equal(t, TierMetadata, results[0].Tier)
	assertUniqueDocuments(t, results)
}

// TS02: An exact identifier beats a semantically closer page via Tier 1
func TestSearch_SelectEditorFindsTabulatorViaKeywordTier(t *testing.T) {
	e, idx := newTestEngine(t)
	ctx := context.Background()

	// Given: pure semantic ranking prefers an unrelated page
	semantic, err := idx.st.Query(ctx, store.QueryRequest{Text: "SelectEditor", K: 1})
	require.NoError(t, err)
	require.Len(t, semantic, 1)
	require.Equal(t, "how_to/editors.md", semantic[0].Chunk.SourcePath)

	// When
	results, err := e.Search(ctx, "SelectEditor", Options{MaxResults: 5})

	// Then: the Tabulator page leads, represented by its SelectEditor chunk
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "reference/widgets/Tabulator.md", results[0].SourcePath)
	assert.Equal(t, TierKeyword, results[0].Tier)
	assert.Contains(t, results[0].Chunk.DisplayText, "SelectEditor")
	assertUniqueDocuments(t, results)

	var paths []string
	for _, r := range results {
		paths = append(paths, r.SourcePath)
	}
	assert.Contains(t, paths, "how_to/editors.md")
}

// TS03: Many chunks of one document collapse to one result
func TestSearch_DeduplicatesByDocument(t *testing.T) {
	e, _ := newTestEngine(t)

	results, err := e.Search(context.Background(), "table option pagination frozen columns", Options{MaxResults: 10})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assertUniqueDocuments(t, results)
	assert.LessOrEqual(t, len(results), len(testCorpus()))
}

func TestSearch_ProjectFilter(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	results, err := e.Search(ctx, "Scatter", Options{Project: "panel"})
	require.NoError(t, err)
	for _, r := range results {
		assert.Equal(t, "panel", r.Project)
	}

	results, err = e.Search(ctx, "Scatter", Options{Project: "unknown"})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_HigherTierNeverEvicted(t *testing.T) {
	e, _ := newTestEngine(t)

	results, err := e.Search(context.Background(), "Scatter", Options{MaxResults: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "reference/Scatter.md", results[0].SourcePath)
}

// TS04: Content modes
func TestSearch_ContentModes(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	query := "SelectEditor"

	tests := []struct {
		mode  ContentMode
		check func(t *testing.T, r *Result)
	}{
		{ContentNone, func(t *testing.T, r *Result) { assert.Empty(t, r.Content) }},
		{ContentChunk, func(t *testing.T, r *Result) {
			assert.Equal(t, r.Chunk.DisplayText, r.Content)
			assert.True(t, strings.HasPrefix(r.Content, "## SelectEditor"))
		}},
		{ContentFull, func(t *testing.T, r *Result) { assert.Equal(t, tabulatorBody(), r.Content) }},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			results, err := e.Search(ctx, query, Options{ContentMode: tt.mode})
			require.NoError(t, err)
			require.NotEmpty(t, results)
			tt.check(t, results[0])
		})
	}
}

func TestSearch_TruncatedKeepsMatchedRegion(t *testing.T) {
	e, _ := newTestEngine(t)

	results, err := e.Search(context.Background(), "SelectEditor", Options{ContentMode: ContentTruncated, MaxContentChars: 200})
	require.NoError(t, err)
	require.NotEmpty(t, results)

	content := results[0].Content
	assert.Contains(t, content, "## SelectEditor")
	assert.True(t, strings.HasPrefix(content, TruncationMarker))
	assert.True(t, strings.HasSuffix(content, TruncationMarker))
	body := strings.TrimSuffix(strings.TrimPrefix(content, TruncationMarker+"\n"), "\n"+TruncationMarker)
	assert.Equal(t, 200, utf8.RuneCountInString(body))
}

func TestTruncateAround(t *testing.T) {
	chunks := []*chunk.Chunk{
		{ChunkIndex: 0, DisplayText: "aaaaaaaaaa"},
		{ChunkIndex: 1, DisplayText: "bbbb"},
		{ChunkIndex: 2, DisplayText: "cccccccccc"},
	}

	tests := []struct {
		name    string
		matched int
		limit   int
		want    string
	}{
		{"fits", 1, 100, "aaaaaaaaaabbbbcccccccccc"},
		{"centered", 1, 8, TruncationMarker + "\naabbbbcc\n" + TruncationMarker},
		{"start", 0, 5, "aaaaa\n" + TruncationMarker},
		{"end clamps", 2, 12, TruncationMarker + "\nbbcccccccccc"},
		{"unknown chunk starts at top", 9, 4, "aaaa\n" + TruncationMarker},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, truncateAround(chunks, tt.matched, tt.limit))
		})
	}
}

// TS05: get_document is the inverse of chunking
func TestGetDocument(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	doc, err := e.GetDocument(ctx, "/reference/widgets/Tabulator.md", "panel")
	require.NoError(t, err)
	assert.Equal(t, tabulatorBody(), doc.Content)
	assert.Equal(t, 50, doc.Chunks)
	assert.Equal(t, "Tabulator", doc.Title)
	assert.True(t, doc.IsReference)
	assert.Equal(t, chunk.DocumentID("panel", "reference/widgets/Tabulator.md"), doc.DocumentID)

	_, err = e.GetDocument(ctx, "reference/widgets/Tabulator.md", "hvplot")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDocumentNotFound))
	assert.Equal(t, docserrors.ErrCodeDocumentNotFound, docserrors.GetCode(err))

	_, err = e.GetDocument(ctx, "", "panel")
	assert.Equal(t, docserrors.ErrCodeInvalidInput, docserrors.GetCode(err))
}

func TestReferenceGuide(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	results, err := e.ReferenceGuide(ctx, "Tabulator", "", true)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, float32(1), results[0].Score)
	assert.Equal(t, tabulatorBody(), results[0].Content)

	results, err = e.ReferenceGuide(ctx, "Scatter", "panel", false)
	require.NoError(t, err)
	assert.Empty(t, results)

	// scatter_plots.md is not a reference page and its stem differs.
	results, err = e.ReferenceGuide(ctx, "Scatter", "hvplot", false)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Empty(t, results[0].Content)
}

func TestListProjects(t *testing.T) {
	e, idx := newTestEngine(t)
	ctx := context.Background()

	projects, err := e.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "hvplot", projects[0].Project)
	assert.Equal(t, 2, projects[1].References)

	idx.degraded = true
	projects, err = e.ListProjects(ctx)
	require.NoError(t, err)
	assert.Empty(t, projects)
}

// TS06: Degraded mode answers empty with a note
func TestSearch_Degraded(t *testing.T) {
	e, idx := newTestEngine(t)
	assert.Empty(t, e.Note())
	idx.degraded = true

	results, err := e.Search(context.Background(), "Scatter", Options{})
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, DegradedNote, e.Note())
}

func TestSearch_EmptyQuery(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.Search(context.Background(), "   ", Options{})
	assert.Equal(t, docserrors.ErrCodeQueryEmpty, docserrors.GetCode(err))
}

func TestSearch_TierFailures(t *testing.T) {
	e, idx := newTestEngine(t)
	ctx := context.Background()
	inner := idx.st

	// A failing keyword tier still leaves the other tiers.
	idx.st = &failingStore{VectorStore: inner, fail: func(r store.QueryRequest) bool { return r.Contains != "" }}
	results, err := e.Search(ctx, "Scatter", Options{})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "reference/Scatter.md", results[0].SourcePath)

	// Every tier failing is an error.
	idx.st = &failingStore{VectorStore: inner, fail: func(store.QueryRequest) bool { return true }}
	_, err = e.Search(ctx, "Scatter", Options{})
	require.Error(t, err)
	assert.Equal(t, docserrors.ErrCodeSearchFailed, docserrors.GetCode(err))
}

func TestSearch_CancelledContext(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Search(ctx, "Scatter", Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSearch_RecordsMetrics(t *testing.T) {
	m := telemetry.New()
	e, _ := newTestEngine(t, WithMetrics(m))

	_, err := e.Search(context.Background(), "Scatter", Options{})
	require.NoError(t, err)

	snap := m.Queries().Snapshot()
	assert.Equal(t, int64(1), snap.TotalQueries)
	assert.Positive(t, snap.TierResults[string(TierMetadata)])
}

func TestParseContentMode(t *testing.T) {
	m, err := ParseContentMode("")
	require.NoError(t, err)
	assert.Equal(t, ContentTruncated, m)

	m, err = ParseContentMode(" FULL ")
	require.NoError(t, err)
	assert.Equal(t, ContentFull, m)

	_, err = ParseContentMode("everything")
	assert.Equal(t, docserrors.ErrCodeInvalidInput, docserrors.GetCode(err))
}

func TestNewEngine_RequiresIndex(t *testing.T) {
	_, err := NewEngine(nil, nil, EngineConfig{})
	assert.ErrorIs(t, err, ErrNilDependency)
}
