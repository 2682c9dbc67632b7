package mcp

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/docsmcp/internal/search"
	"github.com/Aman-CERP/docsmcp/internal/store"
)

// FormatSearchResults formats search results as markdown.
func FormatSearchResults(query string, results []*search.Result, note string) string {
	var sb strings.Builder
	if note != "" {
		sb.WriteString("> " + note + "\n\n")
	}
	if len(results) == 0 {
		sb.WriteString(fmt.Sprintf("No documentation found for \"%s\"", query))
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("## Documentation Results for \"%s\"\n\n", query))
	sb.WriteString(fmt.Sprintf("Found %d result", len(results)))
	if len(results) != 1 {
		sb.WriteString("s")
	}
	sb.WriteString("\n\n")

	for i, r := range results {
		formatResult(&sb, i+1, r)
	}
	return sb.String()
}

func formatResult(sb *strings.Builder, rank int, r *search.Result) {
	sb.WriteString(fmt.Sprintf("### %d. %s\n\n", rank, r.Title))
	sb.WriteString(fmt.Sprintf("**Project:** %s | **Path:** `%s` | **Match:** %s (%.2f)\n",
		r.Project, r.SourcePath, r.Tier, r.Score))
	if r.URL != "" {
		sb.WriteString(fmt.Sprintf("**URL:** %s\n", r.URL))
	}
	if r.IsReference {
		sb.WriteString("**Reference page**\n")
	}
	if r.Description != "" {
		sb.WriteString("\n" + r.Description + "\n")
	}
	if r.Content != "" {
		sb.WriteString("\n")
		sb.WriteString(r.Content)
		if !strings.HasSuffix(r.Content, "\n") {
			sb.WriteString("\n")
		}
	}
	sb.WriteString("\n---\n\n")
}

// FormatDocument formats a whole document with a metadata header.
func FormatDocument(doc *search.Document) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s\n\n", doc.Title))
	sb.WriteString(fmt.Sprintf("**Project:** %s | **Path:** `%s` | **Chunks:** %d\n", doc.Project, doc.SourcePath, doc.Chunks))
	if doc.URL != "" {
		sb.WriteString(fmt.Sprintf("**URL:** %s\n", doc.URL))
	}
	if doc.SourceURL != "" {
		sb.WriteString(fmt.Sprintf("**Source:** %s\n", doc.SourceURL))
	}
	sb.WriteString("\n---\n\n")
	sb.WriteString(doc.Content)
	return sb.String()
}

// FormatReferenceGuide formats reference lookups.
func FormatReferenceGuide(component string, results []*search.Result) string {
	if len(results) == 0 {
		return fmt.Sprintf("No reference page named \"%s\". Try search for related pages.", component)
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Reference pages for \"%s\"\n\n", component))
	for i, r := range results {
		formatResult(&sb, i+1, r)
	}
	return sb.String()
}

// FormatProjects formats per-project index statistics as a markdown table.
func FormatProjects(projects []store.ProjectStats, note string) string {
	var sb strings.Builder
	if note != "" {
		sb.WriteString("> " + note + "\n\n")
	}
	if len(projects) == 0 {
		sb.WriteString("No projects are indexed.")
		return sb.String()
	}
	sb.WriteString("| Project | Documents | Chunks | Reference pages |\n")
	sb.WriteString("|---|---|---|---|\n")
	for _, p := range projects {
		sb.WriteString(fmt.Sprintf("| %s | %d | %d | %d |\n", p.Project, p.Documents, p.Chunks, p.References))
	}
	return sb.String()
}

// FormatBestPractices lists the packages that have a guide.
func FormatBestPractices(packages []string) string {
	if len(packages) == 0 {
		return "No best-practice guides are installed."
	}
	var sb strings.Builder
	sb.WriteString("## Best-practice guides\n\n")
	for _, p := range packages {
		sb.WriteString("- " + p + "\n")
	}
	return sb.String()
}
