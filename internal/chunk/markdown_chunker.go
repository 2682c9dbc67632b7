// Package chunk splits documents into header-delimited, title-prefixed
// sections.
package chunk

import (
	"context"
	"strings"
)

// MarkdownChunkerOptions configures the chunker.
type MarkdownChunkerOptions struct {
	// MinSectionSize drops sections shorter than this after trimming.
	// Zero uses DefaultMinSectionSize; negative keeps every section.
	MinSectionSize int
}

// MarkdownChunker splits a document before every level-1 or level-2 ATX
// heading that is not inside a fenced code block.
type MarkdownChunker struct {
	minSectionSize int
}

// NewMarkdownChunker creates a chunker with default options.
func NewMarkdownChunker() *MarkdownChunker {
	return NewMarkdownChunkerWithOptions(MarkdownChunkerOptions{})
}

// NewMarkdownChunkerWithOptions creates a chunker with custom options.
func NewMarkdownChunkerWithOptions(opts MarkdownChunkerOptions) *MarkdownChunker {
	size := opts.MinSectionSize
	switch {
	case size == 0:
		size = DefaultMinSectionSize
	case size < 0:
		size = 0
	}
	return &MarkdownChunker{minSectionSize: size}
}

// Chunk returns the ordered chunks of doc. Chunk indexes are contiguous
// from zero and concatenating DisplayText in order reproduces the body,
// minus sections dropped for being too short.
func (c *MarkdownChunker) Chunk(ctx context.Context, doc *Document) ([]*Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sections := splitSections(doc.RawContent)

	var kept []string
	if len(sections) > 1 {
		for _, s := range sections {
			if len(strings.TrimSpace(s)) < c.minSectionSize {
				continue
			}
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		kept = []string{doc.RawContent}
	}

	chunks := make([]*Chunk, len(kept))
	for i, text := range kept {
		chunks[i] = newChunk(doc, i, text)
	}
	return chunks, nil
}

func newChunk(doc *Document, n int, text string) *Chunk {
	return &Chunk{
		ID:             ChunkID(doc.ID, n),
		ParentID:       doc.ID,
		ChunkIndex:     n,
		EmbeddingText:  EmbeddingText(doc.Title, text),
		DisplayText:    text,
		Project:        doc.Project,
		SourcePath:     doc.SourcePath,
		SourcePathStem: doc.SourcePathStem,
		Title:          doc.Title,
		URL:            doc.URL,
		SourceURL:      doc.SourceURL,
		Category:       doc.Category,
		Description:    doc.Description,
		IsReference:    doc.IsReference,
	}
}

// EmbeddingText prefixes a section with its document title.
func EmbeddingText(title, section string) string {
	switch {
	case title == "":
		return section
	case section == "":
		return title
	default:
		return title + "\n\n" + section
	}
}

// splitSections cuts body at split-point lines. The text before the first
// split point is returned as the first section when non-empty. Lines keep
// their terminators so the sections concatenate back to body.
func splitSections(body string) []string {
	if body == "" {
		return nil
	}

	var (
		sections []string
		current  strings.Builder
		fence    fenceState
	)

	for _, line := range strings.SplitAfter(body, "\n") {
		if line == "" {
			continue
		}
		if fence.update(line) {
			current.WriteString(line)
			continue
		}
		if !fence.open && isSplitHeading(line) && current.Len() > 0 {
			sections = append(sections, current.String())
			current.Reset()
		}
		current.WriteString(line)
	}
	if current.Len() > 0 {
		sections = append(sections, current.String())
	}
	return sections
}

// fenceState tracks whether the scan is inside a fenced code block.
type fenceState struct {
	open   bool
	marker byte
	length int
}

// update consumes line and reports whether it was a fence delimiter.
// A fence closes only on the same marker with at least the opening length
// and nothing but whitespace after it.
func (f *fenceState) update(line string) bool {
	marker, length, rest, ok := fenceRun(line)
	if !ok {
		return false
	}
	if !f.open {
		// Backtick fences may not carry backticks in the info string.
		if marker == '`' && strings.ContainsRune(rest, '`') {
			return false
		}
		f.open, f.marker, f.length = true, marker, length
		return true
	}
	if marker == f.marker && length >= f.length && strings.TrimSpace(rest) == "" {
		f.open = false
		return true
	}
	return false
}

// fenceRun parses a run of three or more ` or ~ after at most three spaces.
func fenceRun(line string) (marker byte, length int, rest string, ok bool) {
	s := strings.TrimRight(line, "\r\n")
	indent := 0
	for indent < len(s) && indent < 4 && s[indent] == ' ' {
		indent++
	}
	if indent > 3 || indent >= len(s) {
		return 0, 0, "", false
	}
	marker = s[indent]
	if marker != '`' && marker != '~' {
		return 0, 0, "", false
	}
	i := indent
	for i < len(s) && s[i] == marker {
		i++
	}
	length = i - indent
	if length < 3 {
		return 0, 0, "", false
	}
	return marker, length, s[i:], true
}

// isSplitHeading matches "# Title" and "## Title" with up to three spaces
// of indentation. Deeper headings never split.
func isSplitHeading(line string) bool {
	s := strings.TrimRight(line, "\r\n")
	indent := 0
	for indent < len(s) && indent < 4 && s[indent] == ' ' {
		indent++
	}
	if indent > 3 {
		return false
	}
	s = s[indent:]

	level := 0
	for level < len(s) && s[level] == '#' {
		level++
	}
	if level < 1 || level > 2 || level == len(s) {
		return false
	}
	if s[level] != ' ' && s[level] != '\t' {
		return false
	}
	return strings.TrimSpace(s[level:]) != ""
}
