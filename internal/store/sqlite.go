package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // pure Go driver, registers "sqlite"

	"github.com/Aman-CERP/docsmcp/internal/chunk"
	"github.com/Aman-CERP/docsmcp/internal/embed"
	docserrors "github.com/Aman-CERP/docsmcp/internal/errors"
)

// Options configures a SQLiteStore.
type Options struct {
	// MaxBatchSize bounds Upsert. Zero uses DefaultMaxBatchSize.
	MaxBatchSize int

	// ExactSearchLimit is the live vector count up to which unfiltered
	// queries scan exactly. Zero uses DefaultExactSearchLimit; negative
	// always uses the HNSW graph.
	ExactSearchLimit int

	Logger *slog.Logger
}

// SQLiteStore keeps chunks and their embeddings in a SQLite database and
// mirrors the embeddings into an in-memory HNSW graph. Filtered queries
// select candidates in SQL and rank them exactly.
type SQLiteStore struct {
	dir      string
	embedder embed.Embedder
	opts     Options
	logger   *slog.Logger

	mu     sync.RWMutex
	db     *sql.DB
	ann    *annIndex
	closed bool
}

var _ VectorStore = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS chunks (
	id               TEXT PRIMARY KEY,
	parent_id        TEXT NOT NULL,
	chunk_index      INTEGER NOT NULL,
	project          TEXT NOT NULL,
	source_path      TEXT NOT NULL,
	source_path_stem TEXT NOT NULL,
	title            TEXT NOT NULL DEFAULT '',
	url              TEXT NOT NULL DEFAULT '',
	source_url       TEXT NOT NULL DEFAULT '',
	category         TEXT NOT NULL DEFAULT '',
	description      TEXT NOT NULL DEFAULT '',
	is_reference     INTEGER NOT NULL DEFAULT 0,
	embedding_text   TEXT NOT NULL,
	display_text     TEXT NOT NULL,
	embedding        BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_parent  ON chunks(parent_id);
CREATE INDEX IF NOT EXISTS idx_chunks_doc     ON chunks(project, source_path);
CREATE INDEX IF NOT EXISTS idx_chunks_stem    ON chunks(source_path_stem);
`

const chunkColumns = `id, parent_id, chunk_index, project, source_path, source_path_stem,
	title, url, source_url, category, description, is_reference, embedding_text, display_text`

// Open opens (creating if needed) the store in dir. Errors for which
// IsFatal is true mean the directory holds a damaged or incompatible
// store.
func Open(ctx context.Context, dir string, embedder embed.Embedder, opts Options) (s *SQLiteStore, err error) {
	if opts.MaxBatchSize <= 0 {
		opts.MaxBatchSize = DefaultMaxBatchSize
	}
	if opts.ExactSearchLimit == 0 {
		opts.ExactSearchLimit = DefaultExactSearchLimit
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s = &SQLiteStore{dir: dir, embedder: embedder, opts: opts, logger: opts.Logger}
	if err := s.open(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// open connects to the database file and rebuilds the graph. Callers hold
// the write lock or own s exclusively.
func (s *SQLiteStore) open(ctx context.Context) (err error) {
	defer recoverFatal("open store", &err)

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return docserrors.New(docserrors.ErrCodeStoreUnavailable, "create store directory", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(s.dir, DBFileName))
	if err != nil {
		return classify("open database", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	fail := func(op string, err error) error {
		_ = db.Close()
		return classify(op, err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fail("set pragma", err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fail("create schema", err)
	}
	if err := s.checkMeta(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	ann, err := loadANN(ctx, db, s.embedder.Dimensions())
	if err != nil {
		return fail("load vectors", err)
	}

	s.db = db
	s.ann = ann
	s.closed = false
	s.logger.Debug("store_opened",
		slog.String("dir", s.dir),
		slog.Int("vectors", ann.live()))
	return nil
}

// checkMeta records the embedding width on first use and rejects a store
// built with a different width.
func (s *SQLiteStore) checkMeta(ctx context.Context, db *sql.DB) error {
	dims := s.embedder.Dimensions()
	model := s.embedder.ModelName()

	var stored string
	err := db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, MetaKeyDimensions).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		for k, v := range map[string]string{
			MetaKeyDimensions: strconv.Itoa(dims),
			MetaKeyModel:      model,
			MetaKeySchema:     schemaVersion,
		} {
			if _, err := db.ExecContext(ctx, `INSERT OR REPLACE INTO meta(key, value) VALUES (?, ?)`, k, v); err != nil {
				return classify("write meta", err)
			}
		}
		return nil
	case err != nil:
		return classify("read meta", err)
	}

	if stored != strconv.Itoa(dims) {
		return docserrors.New(docserrors.ErrCodeDimensionMismatch,
			fmt.Sprintf("store has %s-dimension vectors, embedder produces %d", stored, dims), nil).
			WithSuggestion("reindex with the new embedding model")
	}

	var storedModel string
	if err := db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, MetaKeyModel).Scan(&storedModel); err == nil && storedModel != model {
		s.logger.Warn("embedding_model_changed",
			slog.String("stored", storedModel),
			slog.String("current", model))
	}
	return nil
}

func loadANN(ctx context.Context, db *sql.DB, dims int) (*annIndex, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, embedding FROM chunks ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	ann := newANNIndex()
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, err
		}
		vec, err := decodeVector(blob, dims)
		if err != nil {
			return nil, docserrors.New(docserrors.ErrCodeCorruptIndex, "bad embedding for "+id, err)
		}
		if !isZero(vec) {
			ann.add(id, vec)
		}
	}
	return ann, rows.Err()
}

// handle returns the open database under the read lock.
func (s *SQLiteStore) handle() (*sql.DB, func(), error) {
	s.mu.RLock()
	if s.closed || s.db == nil {
		s.mu.RUnlock()
		return nil, nil, ErrClosed
	}
	return s.db, s.mu.RUnlock, nil
}

// MaxBatchSize returns the largest accepted Upsert.
func (s *SQLiteStore) MaxBatchSize() int { return s.opts.MaxBatchSize }

// Upsert embeds and stores chunks, replacing chunks with the same ID.
func (s *SQLiteStore) Upsert(ctx context.Context, chunks []*chunk.Chunk) (err error) {
	if len(chunks) == 0 {
		return nil
	}
	if len(chunks) > s.opts.MaxBatchSize {
		return docserrors.New(docserrors.ErrCodeBatchTooLarge,
			fmt.Sprintf("batch of %d exceeds max %d", len(chunks), s.opts.MaxBatchSize), nil)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.EmbeddingText
	}
	vecs, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return docserrors.Wrap(docserrors.ErrCodeEmbeddingFailed, err)
	}
	dims := s.embedder.Dimensions()
	for i, v := range vecs {
		if len(v) != dims {
			return docserrors.New(docserrors.ErrCodeDimensionMismatch,
				fmt.Sprintf("chunk %s: got %d dimensions, want %d", chunks[i].ID, len(v), dims), nil)
		}
		normalizeInPlace(v)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.db == nil {
		return ErrClosed
	}
	defer recoverFatal("upsert", &err)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("begin upsert", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO chunks (`+chunkColumns+`, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return classify("prepare upsert", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, c := range chunks {
		if _, err := stmt.ExecContext(ctx,
			c.ID, c.ParentID, c.ChunkIndex, c.Project, c.SourcePath, c.SourcePathStem,
			c.Title, c.URL, c.SourceURL, c.Category, c.Description, boolToInt(c.IsReference),
			c.EmbeddingText, c.DisplayText, encodeVector(vecs[i]),
		); err != nil {
			return classify("upsert chunk", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return classify("commit upsert", err)
	}

	for i, c := range chunks {
		if isZero(vecs[i]) {
			s.ann.remove(c.ID)
			continue
		}
		s.ann.add(c.ID, vecs[i])
	}
	s.compactANN(ctx)
	return nil
}

// Delete removes chunks by ID. Unknown IDs are ignored.
func (s *SQLiteStore) Delete(ctx context.Context, ids []string) (err error) {
	if len(ids) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.db == nil {
		return ErrClosed
	}
	defer recoverFatal("delete", &err)
	return s.deleteLocked(ctx, ids)
}

func (s *SQLiteStore) deleteLocked(ctx context.Context, ids []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("begin delete", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `DELETE FROM chunks WHERE id = ?`)
	if err != nil {
		return classify("prepare delete", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return classify("delete chunk", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return classify("commit delete", err)
	}
	for _, id := range ids {
		s.ann.remove(id)
	}
	s.compactANN(ctx)
	return nil
}

// compactANN rebuilds the graph from the database once orphaned nodes
// outnumber live ones. Callers hold the write lock.
func (s *SQLiteStore) compactANN(ctx context.Context) {
	if s.ann.orphans() <= s.ann.live() {
		return
	}
	orphans := s.ann.orphans()
	ann, err := loadANN(ctx, s.db, s.embedder.Dimensions())
	if err != nil {
		s.logger.Warn("ann_rebuild_failed", slog.String("error", err.Error()))
		return
	}
	s.ann = ann
	s.logger.Debug("ann_rebuilt",
		slog.Int("vectors", ann.live()),
		slog.Int("orphans_dropped", orphans))
}

// DeleteWhere removes every chunk matching f and returns how many were
// removed. An empty filter is rejected.
func (s *SQLiteStore) DeleteWhere(ctx context.Context, f Filter) (n int, err error) {
	if f.IsZero() {
		return 0, docserrors.ValidationError("delete_where requires a filter", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.db == nil {
		return 0, ErrClosed
	}
	defer recoverFatal("delete_where", &err)

	where, args := f.where()
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM chunks`+where, args...)
	if err != nil {
		return 0, classify("select for delete", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return 0, classify("scan id", err)
		}
		ids = append(ids, id)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return 0, classify("select for delete", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	return len(ids), s.deleteLocked(ctx, ids)
}

// GetWhere returns the chunks matching f ordered by project, source path
// and chunk index.
func (s *SQLiteStore) GetWhere(ctx context.Context, f Filter) ([]*chunk.Chunk, error) {
	db, unlock, err := s.handle()
	if err != nil {
		return nil, err
	}
	defer unlock()

	where, args := f.where()
	rows, err := db.QueryContext(ctx,
		`SELECT `+chunkColumns+` FROM chunks`+where+` ORDER BY project, source_path, chunk_index`, args...)
	if err != nil {
		return nil, classify("get_where", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*chunk.Chunk
	for rows.Next() {
		c, err := scanChunk(rows, nil)
		if err != nil {
			return nil, classify("scan chunk", err)
		}
		out = append(out, c)
	}
	return out, classify("get_where", rows.Err())
}

// Query returns the K chunks nearest to the request vector among those
// matching Where and Contains, best first. Equal scores keep storage order.
func (s *SQLiteStore) Query(ctx context.Context, req QueryRequest) ([]*Hit, error) {
	if req.K <= 0 {
		return nil, nil
	}
	vec := req.Vector
	if vec == nil {
		v, err := s.embedder.Embed(ctx, req.Text)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, docserrors.Wrap(docserrors.ErrCodeEmbeddingFailed, err)
		}
		vec = v
	}
	if len(vec) != s.embedder.Dimensions() {
		return nil, docserrors.New(docserrors.ErrCodeDimensionMismatch,
			fmt.Sprintf("query has %d dimensions, store has %d", len(vec), s.embedder.Dimensions()), nil)
	}
	query := make([]float32, len(vec))
	copy(query, vec)
	normalizeInPlace(query)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed || s.db == nil {
		return nil, ErrClosed
	}

	useANN := req.Where.IsZero() && req.Contains == "" && !isZero(query) &&
		(s.opts.ExactSearchLimit < 0 || s.ann.live() > s.opts.ExactSearchLimit)
	if useANN {
		return s.queryANN(ctx, query, req.K)
	}
	return s.queryExact(ctx, query, req)
}

// queryANN uses the graph for candidate generation only. The candidates
// are scored exactly, so the graph affects recall but never ranking.
func (s *SQLiteStore) queryANN(ctx context.Context, query []float32, k int) ([]*Hit, error) {
	results := s.ann.search(query, max(k*annCandidateFactor, annMinCandidates))
	if len(results) == 0 {
		return nil, nil
	}

	ids := make([]any, len(results))
	placeholders := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
		placeholders[i] = "?"
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+chunkColumns+`, embedding FROM chunks WHERE id IN (`+strings.Join(placeholders, ",")+`) ORDER BY rowid`, ids...)
	if err != nil {
		return nil, classify("query", err)
	}
	defer func() { _ = rows.Close() }()

	hits := make([]*Hit, 0, len(results))
	for rows.Next() {
		var blob []byte
		c, err := scanChunk(rows, &blob)
		if err != nil {
			return nil, classify("scan chunk", err)
		}
		v, err := decodeVector(blob, len(query))
		if err != nil {
			return nil, docserrors.New(docserrors.ErrCodeCorruptIndex, "bad embedding for "+c.ID, err)
		}
		hits = append(hits, &Hit{Chunk: c, Score: cosineScore(query, v)})
	}
	if err := rows.Err(); err != nil {
		return nil, classify("query", err)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (s *SQLiteStore) queryExact(ctx context.Context, query []float32, req QueryRequest) ([]*Hit, error) {
	where, args := req.Where.where()
	if req.Contains != "" {
		if where == "" {
			where = " WHERE "
		} else {
			where += " AND "
		}
		where += "instr(display_text, ?) > 0"
		args = append(args, req.Contains)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+chunkColumns+`, embedding FROM chunks`+where+` ORDER BY rowid`, args...)
	if err != nil {
		return nil, classify("query", err)
	}
	defer func() { _ = rows.Close() }()

	var hits []*Hit
	for rows.Next() {
		var blob []byte
		c, err := scanChunk(rows, &blob)
		if err != nil {
			return nil, classify("scan chunk", err)
		}
		v, err := decodeVector(blob, len(query))
		if err != nil {
			return nil, docserrors.New(docserrors.ErrCodeCorruptIndex, "bad embedding for "+c.ID, err)
		}
		hits = append(hits, &Hit{Chunk: c, Score: cosineScore(query, v)})
	}
	if err := rows.Err(); err != nil {
		return nil, classify("query", err)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > req.K {
		hits = hits[:req.K]
	}
	return hits, nil
}

// Count returns the number of stored chunks.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	db, unlock, err := s.handle()
	if err != nil {
		return 0, err
	}
	defer unlock()

	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, classify("count", err)
	}
	return n, nil
}

// ParentIDs returns the distinct parent IDs of stored chunks.
func (s *SQLiteStore) ParentIDs(ctx context.Context) (map[string]struct{}, error) {
	db, unlock, err := s.handle()
	if err != nil {
		return nil, err
	}
	defer unlock()

	rows, err := db.QueryContext(ctx, `SELECT DISTINCT parent_id FROM chunks`)
	if err != nil {
		return nil, classify("parent ids", err)
	}
	defer func() { _ = rows.Close() }()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, classify("parent ids", err)
		}
		ids[id] = struct{}{}
	}
	return ids, classify("parent ids", rows.Err())
}

// ProjectStats returns per-project counts ordered by project name.
func (s *SQLiteStore) ProjectStats(ctx context.Context) ([]ProjectStats, error) {
	db, unlock, err := s.handle()
	if err != nil {
		return nil, err
	}
	defer unlock()

	rows, err := db.QueryContext(ctx, `
		SELECT project,
		       COUNT(DISTINCT parent_id),
		       COUNT(*),
		       COUNT(DISTINCT CASE WHEN is_reference = 1 THEN parent_id END)
		FROM chunks GROUP BY project ORDER BY project`)
	if err != nil {
		return nil, classify("project stats", err)
	}
	defer func() { _ = rows.Close() }()

	var out []ProjectStats
	for rows.Next() {
		var ps ProjectStats
		if err := rows.Scan(&ps.Project, &ps.Documents, &ps.Chunks, &ps.References); err != nil {
			return nil, classify("project stats", err)
		}
		out = append(out, ps)
	}
	return out, classify("project stats", rows.Err())
}

// Probe runs an integrity check, a count and a one-row query.
func (s *SQLiteStore) Probe(ctx context.Context) (err error) {
	db, unlock, err := s.handle()
	if err != nil {
		return err
	}
	defer unlock()
	defer recoverFatal("probe", &err)

	var result string
	if err := db.QueryRowContext(ctx, `PRAGMA quick_check`).Scan(&result); err != nil {
		return classify("integrity check", err)
	}
	if result != "ok" {
		return docserrors.New(docserrors.ErrCodeCorruptIndex, "integrity check: "+result, nil)
	}

	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return classify("probe count", err)
	}
	if n > 0 {
		var blob []byte
		if err := db.QueryRowContext(ctx, `SELECT embedding FROM chunks LIMIT 1`).Scan(&blob); err != nil {
			return classify("probe query", err)
		}
		if _, err := decodeVector(blob, s.embedder.Dimensions()); err != nil {
			return docserrors.New(docserrors.ErrCodeCorruptIndex, "probe query", err)
		}
	}
	return nil
}

// Snapshot writes a consistent copy of the database into dir.
func (s *SQLiteStore) Snapshot(ctx context.Context, dir string) error {
	db, unlock, err := s.handle()
	if err != nil {
		return err
	}
	defer unlock()

	if err := os.RemoveAll(dir); err != nil {
		return docserrors.New(docserrors.ErrCodeBackupFailed, "clear backup directory", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return docserrors.New(docserrors.ErrCodeBackupFailed, "create backup directory", err)
	}
	dst := filepath.Join(dir, DBFileName)
	if _, err := db.ExecContext(ctx, `VACUUM INTO ?`, dst); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return docserrors.New(docserrors.ErrCodeBackupFailed, "snapshot store", err)
	}
	return nil
}

// Restore closes the database, replaces it with the snapshot in dir and
// reopens it.
func (s *SQLiteStore) Restore(ctx context.Context, dir string) error {
	src := filepath.Join(dir, DBFileName)
	if _, err := os.Stat(src); err != nil {
		return docserrors.New(docserrors.ErrCodeRestoreFailed, "backup missing", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.closeLocked()
	if err := removeDBFiles(s.dir); err != nil {
		return docserrors.New(docserrors.ErrCodeRestoreFailed, "remove damaged store", err)
	}
	if err := copyFile(src, filepath.Join(s.dir, DBFileName)); err != nil {
		return docserrors.New(docserrors.ErrCodeRestoreFailed, "copy backup", err)
	}
	if err := s.open(ctx); err != nil {
		return docserrors.New(docserrors.ErrCodeRestoreFailed, "reopen restored store", err)
	}
	s.logger.Info("store_restored", slog.String("from", dir))
	return nil
}

// Wipe deletes the store directory and reopens an empty store.
func (s *SQLiteStore) Wipe(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closeLocked()
	if err := os.RemoveAll(s.dir); err != nil {
		return docserrors.New(docserrors.ErrCodeStoreUnavailable, "remove store directory", err)
	}
	if err := s.open(ctx); err != nil {
		return err
	}
	s.logger.Warn("store_wiped", slog.String("dir", s.dir))
	return nil
}

// Close closes the database. Further calls return ErrClosed.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

func (s *SQLiteStore) closeLocked() error {
	s.closed = true
	s.ann = newANNIndex()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Dir returns the store directory.
func (s *SQLiteStore) Dir() string { return s.dir }

type scanner interface {
	Scan(dest ...any) error
}

func scanChunk(row scanner, blob *[]byte) (*chunk.Chunk, error) {
	var c chunk.Chunk
	var isRef int
	dest := []any{
		&c.ID, &c.ParentID, &c.ChunkIndex, &c.Project, &c.SourcePath, &c.SourcePathStem,
		&c.Title, &c.URL, &c.SourceURL, &c.Category, &c.Description, &isRef,
		&c.EmbeddingText, &c.DisplayText,
	}
	if blob != nil {
		dest = append(dest, blob)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	c.IsReference = isRef == 1
	return &c, nil
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(b []byte, dims int) ([]float32, error) {
	if len(b) != 4*dims {
		return nil, fmt.Errorf("embedding has %d bytes, want %d", len(b), 4*dims)
	}
	v := make([]float32, dims)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

func removeDBFiles(dir string) error {
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if err := os.Remove(filepath.Join(dir, DBFileName+suffix)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
