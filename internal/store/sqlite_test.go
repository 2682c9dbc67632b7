package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docsmcp/internal/chunk"
	"github.com/Aman-CERP/docsmcp/internal/embed"
	docserrors "github.com/Aman-CERP/docsmcp/internal/errors"
)

func openTestStore(t *testing.T, dir string, opts Options) *SQLiteStore {
	t.Helper()
	s, err := Open(context.Background(), dir, embed.NewStaticEmbedder(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testChunk(project, path string, n int, text string) *chunk.Chunk {
	docID := chunk.DocumentID(project, path)
	title := chunk.PathStem(path)
	return &chunk.Chunk{
		ID:             chunk.ChunkID(docID, n),
		ParentID:       docID,
		ChunkIndex:     n,
		EmbeddingText:  chunk.EmbeddingText(title, text),
		DisplayText:    text,
		Project:        project,
		SourcePath:     path,
		SourcePathStem: chunk.PathStem(path),
		Title:          title,
		IsReference:    strings.Contains(path, "reference"),
	}
}

func seed(t *testing.T, s *SQLiteStore) {
	t.Helper()
	require.NoError(t, s.Upsert(context.Background(), []*chunk.Chunk{
		testChunk("panel", "reference/widgets/Tabulator.md", 0, "The Tabulator widget displays a DataFrame."),
		testChunk("panel", "reference/widgets/Tabulator.md", 1, "Use the SelectEditor to pick from options."),
		testChunk("panel", "how_to/layout.md", 0, "Arrange components in rows and columns."),
		testChunk("hvplot", "reference/Scatter.md", 0, "A scatter plot of points."),
	}))
}

// TS01: Upsert, GetWhere, Count and ProjectStats
func TestSQLiteStore_UpsertAndGet(t *testing.T) {
	// Given: a seeded store
	s := openTestStore(t, t.TempDir(), Options{})
	seed(t, s)
	ctx := context.Background()

	// When / Then: count and filtered reads
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	chunks, err := s.GetWhere(ctx, Filter{Project: "panel", SourcePath: "reference/widgets/Tabulator.md"})
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, 0, chunks[0].ChunkIndex)
	assert.Equal(t, 1, chunks[1].ChunkIndex)
	assert.True(t, chunks[0].IsReference)
	assert.Equal(t, "Tabulator", chunks[0].SourcePathStem)

	ref := true
	refs, err := s.GetWhere(ctx, Filter{IsReference: &ref})
	require.NoError(t, err)
	assert.Len(t, refs, 3)

	stats, err := s.ProjectStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, []ProjectStats{
		{Project: "hvplot", Documents: 1, Chunks: 1, References: 1},
		{Project: "panel", Documents: 2, Chunks: 3, References: 1},
	}, stats)
}

func TestSQLiteStore_UpsertReplaces(t *testing.T) {
	s := openTestStore(t, t.TempDir(), Options{})
	ctx := context.Background()
	c := testChunk("panel", "a.md", 0, "old")
	require.NoError(t, s.Upsert(ctx, []*chunk.Chunk{c}))

	c2 := testChunk("panel", "a.md", 0, "new")
	require.NoError(t, s.Upsert(ctx, []*chunk.Chunk{c2}))

	got, err := s.GetWhere(ctx, Filter{ParentID: c.ParentID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "new", got[0].DisplayText)
}

// TS02: Filtered and substring queries rank exactly
func TestSQLiteStore_QueryFilters(t *testing.T) {
	s := openTestStore(t, t.TempDir(), Options{})
	seed(t, s)
	ctx := context.Background()

	hits, err := s.Query(ctx, QueryRequest{Text: "scatter", K: 5, Where: Filter{SourcePathStem: "Scatter"}})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "hvplot", hits[0].Chunk.Project)

	hits, err = s.Query(ctx, QueryRequest{Text: "editor", K: 5, Contains: "SelectEditor"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, 1, hits[0].Chunk.ChunkIndex)

	hits, err = s.Query(ctx, QueryRequest{Text: "tabulator", K: 5, Where: Filter{Project: "hvplot"}, Contains: "Tabulator"})
	require.NoError(t, err)
	assert.Empty(t, hits)

	// Contains is case-sensitive.
	hits, err = s.Query(ctx, QueryRequest{Text: "editor", K: 5, Contains: "selecteditor"})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSQLiteStore_QueryOrdersByScore(t *testing.T) {
	s := openTestStore(t, t.TempDir(), Options{})
	seed(t, s)

	hits, err := s.Query(context.Background(), QueryRequest{Text: "A scatter plot of points.", K: 4})
	require.NoError(t, err)
	require.Len(t, hits, 4)
	assert.Equal(t, "reference/Scatter.md", hits[0].Chunk.SourcePath)
	for i := 1; i < len(hits); i++ {
		assert.GreaterOrEqual(t, hits[i-1].Score, hits[i].Score)
	}
}

// TS03: The HNSW path finds stored vectors
func TestSQLiteStore_QueryANN(t *testing.T) {
	// Given: a store that always answers unfiltered queries from the graph
	s := openTestStore(t, t.TempDir(), Options{ExactSearchLimit: -1})
	ctx := context.Background()

	var chunks []*chunk.Chunk
	for i := 0; i < 50; i++ {
		chunks = append(chunks, testChunk("p", fmt.Sprintf("doc%02d.md", i), 0, fmt.Sprintf("topic number %d about subject%d", i, i)))
	}
	require.NoError(t, s.Upsert(ctx, chunks))

	target := chunks[17]
	vec, err := embed.NewStaticEmbedder().Embed(ctx, target.EmbeddingText)
	require.NoError(t, err)

	// When
	hits, err := s.Query(ctx, QueryRequest{Vector: vec, K: 3})
	require.NoError(t, err)

	// Then: the stored vector ranks first and the ranking matches an exact scan
	require.Len(t, hits, 3)
	assert.Equal(t, target.ID, hits[0].Chunk.ID)
	assert.InDelta(t, 1.0, hits[0].Score, 0.001)

	query := append([]float32(nil), vec...)
	normalizeInPlace(query)
	exact, err := s.queryExact(ctx, query, QueryRequest{K: 3})
	require.NoError(t, err)
	require.Len(t, exact, len(hits))
	for i := range hits {
		assert.Equal(t, exact[i].Chunk.ID, hits[i].Chunk.ID)
		assert.InDelta(t, exact[i].Score, hits[i].Score, 1e-6)
	}

	// Deleted chunks never come back from the graph.
	require.NoError(t, s.Delete(ctx, []string{target.ID}))
	hits, err = s.Query(ctx, QueryRequest{Vector: vec, K: 3})
	require.NoError(t, err)
	for _, h := range hits {
		assert.NotEqual(t, target.ID, h.Chunk.ID)
	}
}

// TS03: Stores past the old exact-scan threshold still find stored vectors
func TestSQLiteStore_QueryLargeStoreDefaults(t *testing.T) {
	// Given: more than a thousand chunks under default options
	s := openTestStore(t, t.TempDir(), Options{})
	ctx := context.Background()

	var chunks []*chunk.Chunk
	for i := 0; i < 1200; i++ {
		chunks = append(chunks, testChunk("p", fmt.Sprintf("page%04d.md", i), 0, fmt.Sprintf("section %d covers option%d and widget%d", i, i, i%37)))
	}
	for start := 0; start < len(chunks); start += s.MaxBatchSize() {
		end := min(start+s.MaxBatchSize(), len(chunks))
		require.NoError(t, s.Upsert(ctx, chunks[start:end]))
	}

	// When / Then: querying with any stored vector returns that chunk first
	embedder := embed.NewStaticEmbedder()
	for _, i := range []int{0, 417, 999, 1000, 1199} {
		vec, err := embedder.Embed(ctx, chunks[i].EmbeddingText)
		require.NoError(t, err)

		hits, err := s.Query(ctx, QueryRequest{Vector: vec, K: 5})
		require.NoError(t, err)
		require.NotEmpty(t, hits)
		assert.Equal(t, chunks[i].ID, hits[0].Chunk.ID, "chunk %d", i)
		assert.InDelta(t, 1.0, hits[0].Score, 0.001)
	}
}

func TestSQLiteStore_ANNCompactsOrphans(t *testing.T) {
	// Given: a graph-backed store
	s := openTestStore(t, t.TempDir(), Options{ExactSearchLimit: -1})
	ctx := context.Background()

	var chunks []*chunk.Chunk
	for i := 0; i < 10; i++ {
		chunks = append(chunks, testChunk("p", fmt.Sprintf("doc%d.md", i), 0, fmt.Sprintf("body %d", i)))
	}

	// When: the same chunks are rewritten repeatedly
	for round := 0; round < 5; round++ {
		require.NoError(t, s.Upsert(ctx, chunks))

		// Then: replaced nodes never outnumber live ones
		assert.Equal(t, 10, s.ann.live())
		assert.LessOrEqual(t, s.ann.orphans(), s.ann.live(), "round %d", round)
	}

	vec, err := embed.NewStaticEmbedder().Embed(ctx, chunks[3].EmbeddingText)
	require.NoError(t, err)
	hits, err := s.Query(ctx, QueryRequest{Vector: vec, K: 1})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, chunks[3].ID, hits[0].Chunk.ID)

	// When: every chunk is deleted
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	require.NoError(t, s.Delete(ctx, ids))

	// Then: the graph is rebuilt empty
	assert.Equal(t, 0, s.ann.live())
	assert.Equal(t, 0, s.ann.graph.Len())
	hits, err = s.Query(ctx, QueryRequest{Vector: vec, K: 1})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSQLiteStore_BatchTooLarge(t *testing.T) {
	s := openTestStore(t, t.TempDir(), Options{MaxBatchSize: 2})
	chunks := []*chunk.Chunk{
		testChunk("p", "a.md", 0, "a"), testChunk("p", "a.md", 1, "b"), testChunk("p", "a.md", 2, "c"),
	}

	err := s.Upsert(context.Background(), chunks)
	require.Error(t, err)
	assert.Equal(t, docserrors.ErrCodeBatchTooLarge, docserrors.GetCode(err))
	assert.False(t, IsFatal(err))
	assert.Equal(t, 2, s.MaxBatchSize())
}

// TS04: Deletes by ID and by filter
func TestSQLiteStore_Delete(t *testing.T) {
	s := openTestStore(t, t.TempDir(), Options{})
	seed(t, s)
	ctx := context.Background()

	n, err := s.DeleteWhere(ctx, Filter{ParentID: chunk.DocumentID("panel", "reference/widgets/Tabulator.md")})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, s.Delete(ctx, []string{chunk.ChunkID(chunk.DocumentID("hvplot", "reference/Scatter.md"), 0), "missing"}))

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = s.DeleteWhere(ctx, Filter{})
	assert.Error(t, err)
}

// TS05: Snapshot and restore
func TestSQLiteStore_SnapshotRestore(t *testing.T) {
	root := t.TempDir()
	s := openTestStore(t, filepath.Join(root, "vectors"), Options{})
	seed(t, s)
	ctx := context.Background()
	backup := filepath.Join(root, "vectors.bak")

	// Given: a snapshot of four chunks
	require.NoError(t, s.Snapshot(ctx, backup))
	assert.FileExists(t, filepath.Join(backup, DBFileName))

	// When: the store is changed and then restored
	_, err := s.DeleteWhere(ctx, Filter{Project: "panel"})
	require.NoError(t, err)
	require.NoError(t, s.Restore(ctx, backup))

	// Then: the snapshot content is back and queryable
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	hits, err := s.Query(ctx, QueryRequest{Text: "layout", K: 1, Where: Filter{Project: "panel"}})
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestSQLiteStore_RestoreMissingBackup(t *testing.T) {
	s := openTestStore(t, t.TempDir(), Options{})
	err := s.Restore(context.Background(), filepath.Join(t.TempDir(), "nope"))
	assert.Equal(t, docserrors.ErrCodeRestoreFailed, docserrors.GetCode(err))
}

func TestSQLiteStore_Wipe(t *testing.T) {
	s := openTestStore(t, t.TempDir(), Options{})
	seed(t, s)
	ctx := context.Background()

	require.NoError(t, s.Wipe(ctx))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, s.Probe(ctx))
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(ctx, dir, embed.NewStaticEmbedder(), Options{})
	require.NoError(t, err)
	seed(t, s)
	require.NoError(t, s.Close())

	s2 := openTestStore(t, dir, Options{ExactSearchLimit: -1})
	require.NoError(t, s2.Probe(ctx))
	hits, err := s2.Query(ctx, QueryRequest{Text: "A scatter plot of points.", K: 1})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "reference/Scatter.md", hits[0].Chunk.SourcePath)
}

// TS06: Damaged and incompatible stores are fatal
func TestOpen_TruncatedFileIsFatal(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(ctx, dir, embed.NewStaticEmbedder(), Options{})
	require.NoError(t, err)
	seed(t, s)
	require.NoError(t, s.Close())

	dbPath := filepath.Join(dir, DBFileName)
	require.NoError(t, os.Truncate(dbPath, 10))
	_ = os.Remove(dbPath + "-wal")
	_ = os.Remove(dbPath + "-shm")

	_, err = Open(ctx, dir, embed.NewStaticEmbedder(), Options{})
	require.Error(t, err)
	assert.True(t, IsFatal(err), "got %v", err)
}

func TestOpen_DimensionMismatchIsFatal(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(ctx, dir, embed.NewStaticEmbedderWithDims(64), Options{})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Open(ctx, dir, embed.NewStaticEmbedderWithDims(128), Options{})
	require.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.Equal(t, docserrors.ErrCodeDimensionMismatch, docserrors.GetCode(err))
}

func TestIsFatal(t *testing.T) {
	assert.False(t, IsFatal(nil))
	assert.False(t, IsFatal(context.Canceled))
	assert.False(t, IsFatal(classify("x", context.DeadlineExceeded)))
	assert.True(t, IsFatal(classify("x", fmt.Errorf("database disk image is malformed"))))
	assert.True(t, IsFatal(classify("x", fmt.Errorf("database or disk is full"))))
	assert.False(t, IsFatal(classify("x", fmt.Errorf("database is locked"))))

	var err error
	func() {
		defer recoverFatal("op", &err)
		panic("boom")
	}()
	assert.True(t, IsFatal(err))
}

func TestClosedStore(t *testing.T) {
	s, err := Open(context.Background(), t.TempDir(), embed.NewStaticEmbedder(), Options{})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.Count(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSQLiteStore_ParentIDs(t *testing.T) {
	s := openTestStore(t, t.TempDir(), Options{})
	seed(t, s)

	ids, err := s.ParentIDs(context.Background())
	require.NoError(t, err)
	assert.Len(t, ids, 3)
	assert.Contains(t, ids, chunk.DocumentID("panel", "how_to/layout.md"))
}
