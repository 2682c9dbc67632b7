// Package store persists chunks with their embeddings and answers
// nearest-neighbor queries, optionally filtered by metadata and by
// substring containment over chunk text.
package store

import (
	"context"
	"strings"

	"github.com/Aman-CERP/docsmcp/internal/chunk"
)

const (
	// DBFileName is the database file inside the store directory.
	DBFileName = "store.db"

	// DefaultMaxBatchSize bounds a single Upsert call.
	DefaultMaxBatchSize = 1000

	// DefaultExactSearchLimit is the live vector count up to which
	// unfiltered queries scan exactly instead of using the HNSW graph.
	// Documentation corpora rarely exceed it.
	DefaultExactSearchLimit = 50000

	// annCandidateFactor and annMinCandidates size the HNSW over-fetch.
	// Candidates are re-ranked against their stored embeddings.
	annCandidateFactor = 10
	annMinCandidates   = 200
)

// Meta keys.
const (
	MetaKeyDimensions = "embedding_dimensions"
	MetaKeyModel      = "embedding_model"
	MetaKeySchema     = "schema_version"

	schemaVersion = "1"
)

// Filter selects chunks by exact metadata match. Empty fields match
// anything.
type Filter struct {
	Project        string
	SourcePath     string
	SourcePathStem string
	ParentID       string
	IsReference    *bool
}

// IsZero reports whether the filter matches every chunk.
func (f Filter) IsZero() bool {
	return f.Project == "" && f.SourcePath == "" && f.SourcePathStem == "" &&
		f.ParentID == "" && f.IsReference == nil
}

func (f Filter) where() (string, []any) {
	var clauses []string
	var args []any
	add := func(col string, v any) {
		clauses = append(clauses, col+" = ?")
		args = append(args, v)
	}
	if f.Project != "" {
		add("project", f.Project)
	}
	if f.SourcePath != "" {
		add("source_path", f.SourcePath)
	}
	if f.SourcePathStem != "" {
		add("source_path_stem", f.SourcePathStem)
	}
	if f.ParentID != "" {
		add("parent_id", f.ParentID)
	}
	if f.IsReference != nil {
		add("is_reference", boolToInt(*f.IsReference))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// QueryRequest is a nearest-neighbor query. Exactly one of Vector and
// Text should be set; Text is embedded with the store's embedder.
type QueryRequest struct {
	Vector []float32
	Text   string
	K      int
	Where  Filter

	// Contains keeps only chunks whose display text contains this
	// substring (case-sensitive).
	Contains string
}

// Hit is one query result. Score is cosine similarity mapped to [0,1].
type Hit struct {
	Chunk *chunk.Chunk
	Score float32
}

// ProjectStats summarizes the indexed content of one project.
type ProjectStats struct {
	Project    string `json:"project"`
	Documents  int    `json:"documents"`
	Chunks     int    `json:"chunks"`
	References int    `json:"references"`
}

// VectorStore is the capability the index manager and retrieval engine
// consume. Errors for which IsFatal reports true mean the persisted state
// is unusable and must be wiped.
type VectorStore interface {
	Upsert(ctx context.Context, chunks []*chunk.Chunk) error
	Delete(ctx context.Context, ids []string) error
	DeleteWhere(ctx context.Context, f Filter) (int, error)
	GetWhere(ctx context.Context, f Filter) ([]*chunk.Chunk, error)
	Query(ctx context.Context, req QueryRequest) ([]*Hit, error)
	Count(ctx context.Context) (int, error)

	// ParentIDs returns the document IDs that have at least one chunk.
	ParentIDs(ctx context.Context) (map[string]struct{}, error)

	ProjectStats(ctx context.Context) ([]ProjectStats, error)
	MaxBatchSize() int

	// Probe verifies the store is reachable and minimally queryable.
	Probe(ctx context.Context) error

	// Snapshot copies the persisted state into dir, replacing it.
	Snapshot(ctx context.Context, dir string) error

	// Restore replaces the persisted state with the snapshot in dir.
	Restore(ctx context.Context, dir string) error

	// Wipe deletes the persisted state and reopens an empty store.
	Wipe(ctx context.Context) error

	Close() error
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
