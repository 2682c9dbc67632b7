package mcp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Aman-CERP/docsmcp/internal/search"
	"github.com/Aman-CERP/docsmcp/internal/store"
)

func TestFormatSearchResults_Empty(t *testing.T) {
	got := FormatSearchResults("SelectEditor", nil, "")

	assert.Equal(t, `No documentation found for "SelectEditor"`, got)
}

func TestFormatSearchResults_RendersMetadataAndContent(t *testing.T) {
	// Given: one reference result with a URL and content
	results := []*search.Result{{
		Project:     "panel",
		SourcePath:  "examples/reference/widgets/Tabulator.ipynb",
		Title:       "Tabulator",
		URL:         "https://panel.holoviz.org/reference/widgets/Tabulator.html",
		Description: "The Tabulator widget displays tabular data.",
		IsReference: true,
		Score:       0.9,
		Tier:        search.TierKeyword,
		Content:     "## SelectEditor\n\nUse a select editor.",
	}}

	// When
	got := FormatSearchResults("SelectEditor", results, "")

	// Then
	assert.Contains(t, got, "Found 1 result\n")
	assert.Contains(t, got, "### 1. Tabulator")
	assert.Contains(t, got, "**Match:** keyword (0.90)")
	assert.Contains(t, got, "**URL:** https://panel.holoviz.org/reference/widgets/Tabulator.html")
	assert.Contains(t, got, "**Reference page**")
	assert.Contains(t, got, "Use a select editor.\n")
}

func TestFormatSearchResults_PluralAndNote(t *testing.T) {
	results := []*search.Result{{Title: "A"}, {Title: "B"}}

	got := FormatSearchResults("q", results, "index is warming up")

	assert.True(t, strings.HasPrefix(got, "> index is warming up\n\n"))
	assert.Contains(t, got, "Found 2 results")
	assert.Contains(t, got, "### 2. B")
}

func TestFormatSearchResults_NoteWithoutResults(t *testing.T) {
	got := FormatSearchResults("q", nil, search.DegradedNote)

	assert.Contains(t, got, search.DegradedNote)
	assert.Contains(t, got, `No documentation found for "q"`)
}

func TestFormatDocument(t *testing.T) {
	doc := &search.Document{
		Project:    "hvplot",
		SourcePath: "doc/reference/Scatter.md",
		Title:      "Scatter",
		SourceURL:  "https://github.com/holoviz/hvplot/blob/main/doc/reference/Scatter.md",
		Chunks:     2,
		Content:    "# Scatter\n\nbody\n",
	}

	got := FormatDocument(doc)

	assert.True(t, strings.HasPrefix(got, "# Scatter\n\n"))
	assert.Contains(t, got, "**Chunks:** 2")
	assert.Contains(t, got, "**Source:** https://github.com/holoviz/hvplot/blob/main/doc/reference/Scatter.md")
	assert.True(t, strings.HasSuffix(got, "# Scatter\n\nbody\n"))
	assert.NotContains(t, got, "**URL:**")
}

func TestFormatProjects(t *testing.T) {
	got := FormatProjects([]store.ProjectStats{{Project: "panel", Documents: 10, Chunks: 42, References: 3}}, "")

	assert.Contains(t, got, "| Project | Documents | Chunks | Reference pages |")
	assert.Contains(t, got, "| panel | 10 | 42 | 3 |")
}

func TestFormatProjects_Empty(t *testing.T) {
	assert.Equal(t, "No projects are indexed.", FormatProjects(nil, ""))
}

func TestFormatReindex(t *testing.T) {
	out := ReindexOutput{}

	assert.Contains(t, formatReindex(out), "Nothing was reindexed.")
}
