package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Aman-CERP/docsmcp/internal/chunk"
	docserrors "github.com/Aman-CERP/docsmcp/internal/errors"
	"github.com/Aman-CERP/docsmcp/internal/store"
)

// TruncationMarker marks text cut from either end of truncated content.
const TruncationMarker = "[...]"

// expand fills Content according to the content mode.
func (e *Engine) expand(ctx context.Context, results []*Result, opts Options) error {
	if opts.ContentMode == ContentNone {
		return nil
	}
	for _, r := range results {
		if opts.ContentMode == ContentChunk {
			r.Content = r.Chunk.DisplayText
			continue
		}

		chunks, err := e.documentChunks(ctx, r.Project, r.SourcePath)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.logger.Warn("content_expand_failed",
				slog.String("document_id", r.DocumentID),
				slog.String("error", err.Error()))
			r.Content = r.Chunk.DisplayText
			continue
		}

		if opts.ContentMode == ContentFull {
			r.Content = joinChunks(chunks)
		} else {
			r.Content = truncateAround(chunks, r.ChunkIndex, opts.MaxContentChars)
		}
	}
	return nil
}

func (e *Engine) documentChunks(ctx context.Context, project, sourcePath string) ([]*chunk.Chunk, error) {
	chunks, err := e.index.Store().GetWhere(ctx, store.Filter{Project: project, SourcePath: sourcePath})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].ChunkIndex < chunks[j].ChunkIndex })
	return chunks, nil
}

// joinChunks reassembles a document. Display text carries no title
// prefix, so this is the inverse of chunking.
func joinChunks(chunks []*chunk.Chunk) string {
	var b strings.Builder
	for _, c := range chunks {
		b.WriteString(c.DisplayText)
	}
	return b.String()
}

// truncateAround returns the document cut to limit runes, keeping the window
// centered on the matched chunk. Cut ends are marked with TruncationMarker.
func truncateAround(chunks []*chunk.Chunk, matched, limit int) string {
	full := joinChunks(chunks)
	runes := []rune(full)
	if len(runes) <= limit {
		return full
	}

	offset, span := 0, 0
	for _, c := range chunks {
		n := utf8.RuneCountInString(c.DisplayText)
		if c.ChunkIndex == matched {
			span = n
			break
		}
		offset += n
	}
	if span == 0 {
		offset = 0
	}

	from := offset
	if span < limit {
		from = offset - (limit-span)/2
	}
	from = min(max(from, 0), len(runes)-limit)
	to := from + limit

	var b strings.Builder
	if from > 0 {
		b.WriteString(TruncationMarker + "\n")
	}
	b.WriteString(string(runes[from:to]))
	if to < len(runes) {
		b.WriteString("\n" + TruncationMarker)
	}
	return b.String()
}

// GetDocument reassembles the document at sourcePath in project from all
// its chunks in chunk order.
func (e *Engine) GetDocument(ctx context.Context, sourcePath, project string) (*Document, error) {
	if strings.TrimSpace(sourcePath) == "" || strings.TrimSpace(project) == "" {
		return nil, docserrors.ValidationError("source path and project are required", nil)
	}
	sourcePath = chunk.NormalizePath(sourcePath)

	chunks, err := e.documentChunks(ctx, project, sourcePath)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, docserrors.New(docserrors.ErrCodeDocumentNotFound,
			fmt.Sprintf("no document %q in project %q", sourcePath, project), nil).
			WithSuggestion("use search or list_projects to find indexed documents")
	}

	first := chunks[0]
	return &Document{
		DocumentID:  first.ParentID,
		Project:     first.Project,
		SourcePath:  first.SourcePath,
		Title:       first.Title,
		URL:         first.URL,
		SourceURL:   first.SourceURL,
		Description: first.Description,
		Category:    first.Category,
		IsReference: first.IsReference,
		Chunks:      len(chunks),
		Content:     joinChunks(chunks),
	}, nil
}

// ReferenceGuide returns the reference documents whose file stem is
// exactly component, optionally limited to project. Every match has
// score 1.
func (e *Engine) ReferenceGuide(ctx context.Context, component, project string, withContent bool) ([]*Result, error) {
	component = strings.TrimSpace(component)
	if component == "" {
		return nil, docserrors.ValidationError("component is required", nil)
	}

	ref := true
	chunks, err := e.index.Store().GetWhere(ctx, store.Filter{
		Project:        project,
		SourcePathStem: component,
		IsReference:    &ref,
	})
	if err != nil {
		return nil, err
	}

	var results []*Result
	byDoc := make(map[string]*Result)
	var parts map[string][]*chunk.Chunk
	if withContent {
		parts = make(map[string][]*chunk.Chunk)
	}
	for _, c := range chunks {
		if _, ok := byDoc[c.ParentID]; !ok {
			r := newResult(c, 1, TierMetadata)
			byDoc[c.ParentID] = r
			results = append(results, r)
		}
		if withContent {
			parts[c.ParentID] = append(parts[c.ParentID], c)
		}
	}
	for _, r := range results {
		if withContent {
			doc := parts[r.DocumentID]
			sort.SliceStable(doc, func(i, j int) bool { return doc[i].ChunkIndex < doc[j].ChunkIndex })
			r.Content = joinChunks(doc)
		}
		// Matches are whole documents.
		r.Chunk, r.ChunkIndex = nil, 0
	}
	return results, nil
}

// ListProjects summarizes indexed projects. It is empty while the index
// is degraded.
func (e *Engine) ListProjects(ctx context.Context) ([]store.ProjectStats, error) {
	if e.index.Degraded() {
		return []store.ProjectStats{}, nil
	}
	return e.index.Store().ProjectStats(ctx)
}
