package mcp

import (
	"github.com/Aman-CERP/docsmcp/internal/index"
	"github.com/Aman-CERP/docsmcp/internal/ingest"
	"github.com/Aman-CERP/docsmcp/internal/search"
	"github.com/Aman-CERP/docsmcp/internal/store"
)

// SearchInput defines the input schema for the search tool.
type SearchInput struct {
	Query           string `json:"query" jsonschema:"the documentation search query; capitalized names such as Tabulator or SelectEditor are matched against file names and text"`
	Project         string `json:"project,omitempty" jsonschema:"restrict results to one project"`
	MaxResults      int    `json:"max_results,omitempty" jsonschema:"maximum number of documents, default 5, at most 50"`
	ContentMode     string `json:"content_mode,omitempty" jsonschema:"chunk, truncated (default), full or none"`
	MaxContentChars int    `json:"max_content_chars,omitempty" jsonschema:"character budget of truncated content, default 10000"`
}

// SearchOutput defines the output schema for the search tool.
type SearchOutput struct {
	Results []*search.Result `json:"results" jsonschema:"ranked documents, at most one per source file"`
	Note    string           `json:"note,omitempty" jsonschema:"set when the index cannot serve results"`
}

// GetDocumentInput defines the input schema for the get_document tool.
type GetDocumentInput struct {
	SourcePath string `json:"source_path" jsonschema:"path of the document relative to its repository, as returned by search"`
	Project    string `json:"project" jsonschema:"project the document belongs to"`
}

// GetReferenceGuideInput defines the input schema for the get_reference_guide tool.
type GetReferenceGuideInput struct {
	Component      string `json:"component" jsonschema:"exact component name, e.g. Button or Scatter"`
	Project        string `json:"project,omitempty" jsonschema:"restrict the lookup to one project"`
	IncludeContent bool   `json:"include_content,omitempty" jsonschema:"return the full reference page text"`
}

// ReferenceGuideOutput defines the output schema for the get_reference_guide tool.
type ReferenceGuideOutput struct {
	Results []*search.Result `json:"results"`
}

// GetBestPracticesInput defines the input schema for the get_best_practices tool.
type GetBestPracticesInput struct {
	Package string `json:"package" jsonschema:"package name; panel_material_ui and panel-material-ui are the same"`
}

// ListBestPracticesInput defines the input schema for the list_best_practices tool (no parameters).
type ListBestPracticesInput struct{}

// ListBestPracticesOutput defines the output schema for the list_best_practices tool.
type ListBestPracticesOutput struct {
	Packages []string `json:"packages"`
}

// ListProjectsInput defines the input schema for the list_projects tool (no parameters).
type ListProjectsInput struct{}

// ListProjectsOutput defines the output schema for the list_projects tool.
type ListProjectsOutput struct {
	Projects []store.ProjectStats `json:"projects"`
	Note     string               `json:"note,omitempty"`
}

// ReindexInput defines the input schema for the reindex tool.
type ReindexInput struct {
	Projects []string `json:"projects,omitempty" jsonschema:"projects to refresh; empty refreshes every configured project"`
}

// ReindexOutput defines the output schema for the reindex tool.
type ReindexOutput struct {
	Outcomes []ingest.ProjectOutcome `json:"outcomes"`
	Report   *index.Report           `json:"report,omitempty"`
	Failed   []string                `json:"failed,omitempty"`
}

// IndexStatusInput defines the input schema for the index_status tool (no parameters).
type IndexStatusInput struct{}

// IndexStatusOutput defines the output schema for the index_status tool.
type IndexStatusOutput struct {
	Degraded       bool                 `json:"degraded"`
	DegradedReason string               `json:"degraded_reason,omitempty"`
	Documents      int                  `json:"documents"`
	Chunks         int                  `json:"chunks"`
	Projects       []store.ProjectStats `json:"projects"`
	Embeddings     EmbeddingInfo        `json:"embeddings"`
	LastReindex    *index.Report        `json:"last_reindex,omitempty"`
	Queries        *QueryStats          `json:"queries,omitempty"`
}

// EmbeddingInfo describes the active embedder so clients can judge
// semantic result quality.
type EmbeddingInfo struct {
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
	Available  bool   `json:"available"`
	// IsFallbackActive is true when the hashed static embedder serves
	// vectors instead of a language model.
	IsFallbackActive bool `json:"is_fallback_active"`
}

// QueryStats summarizes searches served since startup.
type QueryStats struct {
	TotalQueries  int64            `json:"total_queries"`
	FailedQueries int64            `json:"failed_queries"`
	ZeroResultPct float64          `json:"zero_result_pct"`
	TierResults   map[string]int64 `json:"tier_results"`
}
