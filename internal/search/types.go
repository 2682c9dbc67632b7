// Package search answers documentation queries by merging three retrieval
// tiers: exact file-name matches, exact token matches and semantic
// neighbors. At most one result is returned per source document.
package search

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/docsmcp/internal/chunk"
	docserrors "github.com/Aman-CERP/docsmcp/internal/errors"
)

const (
	// DefaultMaxResults is the result count when none is requested.
	DefaultMaxResults = 5

	// MaxMaxResults caps a single request.
	MaxMaxResults = 50

	// DefaultOverFetch multiplies MaxResults for every tier query so that
	// several chunks of one document still leave enough distinct documents.
	DefaultOverFetch = 3

	// DefaultMaxContentChars bounds truncated content.
	DefaultMaxContentChars = 10000

	// DegradedNote is shown with empty results while the index is empty
	// after a recovery.
	DegradedNote = "The documentation index was reset after a storage failure and is empty. Run the reindex tool to rebuild it."
)

// ErrDocumentNotFound is returned by GetDocument when no chunk matches.
var ErrDocumentNotFound = docserrors.New(docserrors.ErrCodeDocumentNotFound, "document not found", nil)

// Tier names the retrieval tier that produced a result.
type Tier string

const (
	TierMetadata Tier = "metadata"
	TierKeyword  Tier = "keyword"
	TierSemantic Tier = "semantic"
)

// ContentMode selects how much text accompanies each result.
type ContentMode string

const (
	// ContentChunk returns the matched chunk only.
	ContentChunk ContentMode = "chunk"
	// ContentTruncated returns the whole document cut to MaxContentChars
	// around the matched chunk.
	ContentTruncated ContentMode = "truncated"
	// ContentFull returns the whole document.
	ContentFull ContentMode = "full"
	// ContentNone returns metadata only.
	ContentNone ContentMode = "none"
)

// ParseContentMode parses s. The empty string is ContentTruncated.
func ParseContentMode(s string) (ContentMode, error) {
	switch m := ContentMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ContentTruncated, nil
	case ContentChunk, ContentTruncated, ContentFull, ContentNone:
		return m, nil
	default:
		return "", docserrors.ValidationError(
			fmt.Sprintf("unknown content mode %q (want chunk, truncated, full or none)", s), nil)
	}
}

// Options configures one search.
type Options struct {
	// Project restricts every tier to one project.
	Project string

	MaxResults  int
	ContentMode ContentMode

	// MaxContentChars bounds ContentTruncated output.
	MaxContentChars int
}

// Result is one ranked document.
type Result struct {
	DocumentID  string  `json:"document_id"`
	Project     string  `json:"project"`
	SourcePath  string  `json:"source_path"`
	Title       string  `json:"title"`
	URL         string  `json:"url,omitempty"`
	SourceURL   string  `json:"source_url,omitempty"`
	Description string  `json:"description,omitempty"`
	Category    string  `json:"category,omitempty"`
	IsReference bool    `json:"is_reference"`
	Score       float32 `json:"score"`
	Tier        Tier    `json:"tier"`
	ChunkIndex  int     `json:"chunk_index"`
	Content     string  `json:"content,omitempty"`

	// Chunk is the matched chunk.
	Chunk *chunk.Chunk `json:"-"`
}

// Document is a whole document reassembled from its chunks.
type Document struct {
	DocumentID  string `json:"document_id"`
	Project     string `json:"project"`
	SourcePath  string `json:"source_path"`
	Title       string `json:"title"`
	URL         string `json:"url,omitempty"`
	SourceURL   string `json:"source_url,omitempty"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	IsReference bool   `json:"is_reference"`
	Chunks      int    `json:"chunks"`
	Content     string `json:"content"`
}

func newResult(c *chunk.Chunk, score float32, tier Tier) *Result {
	return &Result{
		DocumentID:  c.ParentID,
		Project:     c.Project,
		SourcePath:  c.SourcePath,
		Title:       c.Title,
		URL:         c.URL,
		SourceURL:   c.SourceURL,
		Description: c.Description,
		Category:    c.Category,
		IsReference: c.IsReference,
		Score:       score,
		Tier:        tier,
		ChunkIndex:  c.ChunkIndex,
		Chunk:       c,
	}
}
