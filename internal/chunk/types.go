package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"strings"
)

// DefaultMinSectionSize is the trimmed length below which a section is
// dropped instead of becoming its own chunk.
const DefaultMinSectionSize = 100

// Document is one source file (rendered markdown or notebook text) of a project.
type Document struct {
	ID             string
	Project        string
	SourcePath     string // relative to the repository root, slash separated
	SourcePathStem string // file name without extension
	Title          string
	URL            string
	SourceURL      string // link to the file in its repository
	Category       string
	Description    string
	IsReference    bool
	RawContent     string
	ContentHash    string
}

// Chunk is a contiguous section of a Document and the unit stored in the
// vector store. Chunks are never mutated; a changed document gets a new set.
type Chunk struct {
	ID         string // {document_id}::chunk{n}
	ParentID   string
	ChunkIndex int

	// EmbeddingText is the title-prefixed section used only for vectors.
	EmbeddingText string
	// DisplayText is the original section text returned to callers.
	DisplayText string

	Project        string
	SourcePath     string
	SourcePathStem string
	Title          string
	URL            string
	SourceURL      string
	Category       string
	Description    string
	IsReference    bool
}

// NewDocument creates a document with its derived fields (ID, stem, hash) set.
func NewDocument(project, sourcePath, raw string) *Document {
	sourcePath = NormalizePath(sourcePath)
	return &Document{
		ID:             DocumentID(project, sourcePath),
		Project:        project,
		SourcePath:     sourcePath,
		SourcePathStem: PathStem(sourcePath),
		RawContent:     raw,
		ContentHash:    ContentHash(raw),
	}
}

// NormalizePath converts sourcePath to the stored form: forward slashes,
// cleaned, without a leading slash.
func NormalizePath(sourcePath string) string {
	return strings.TrimPrefix(path.Clean(strings.ReplaceAll(sourcePath, "\\", "/")), "/")
}

// DocumentID derives the corpus-unique ID of a document:
// {project}___{path with "/" as "___" and "." as "_"}.
func DocumentID(project, sourcePath string) string {
	readable := strings.ReplaceAll(sourcePath, "/", "___")
	readable = strings.ReplaceAll(readable, ".", "_")
	return project + "___" + readable
}

// ChunkID returns the ID of the n-th chunk of a document.
func ChunkID(documentID string, n int) string {
	return fmt.Sprintf("%s::chunk%d", documentID, n)
}

// PathStem returns the file name of sourcePath without its extension.
func PathStem(sourcePath string) string {
	base := path.Base(strings.ReplaceAll(sourcePath, "\\", "/"))
	if ext := path.Ext(base); ext != "" && ext != base {
		return strings.TrimSuffix(base, ext)
	}
	return base
}

// ContentHash fingerprints raw document bytes.
func ContentHash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
