package mcp

import (
	"context"
	"encoding/json"
	"path"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// ProjectsURI lists indexed projects as JSON.
	ProjectsURI = "docsmcp://projects"

	// QueryMetricsURI exposes query telemetry as JSON.
	QueryMetricsURI = "docsmcp://query_metrics"

	// DocumentURIPrefix prefixes document resources:
	// docsmcp://docs/{project}/{source_path}.
	DocumentURIPrefix = "docsmcp://docs/"
)

// DocumentURI returns the resource URI of a document.
func DocumentURI(project, sourcePath string) string {
	return DocumentURIPrefix + project + "/" + strings.TrimPrefix(sourcePath, "/")
}

// ParseDocumentURI splits a document URI into project and source path.
func ParseDocumentURI(uri string) (project, sourcePath string, ok bool) {
	rest, found := strings.CutPrefix(uri, DocumentURIPrefix)
	if !found {
		return "", "", false
	}
	project, sourcePath, found = strings.Cut(rest, "/")
	if !found || project == "" || sourcePath == "" {
		return "", "", false
	}
	if !isValidPath(sourcePath) {
		return "", "", false
	}
	return project, sourcePath, true
}

// isValidPath rejects absolute paths and traversal.
func isValidPath(p string) bool {
	if p == "" || strings.HasPrefix(p, "/") {
		return false
	}
	if len(p) >= 2 && p[1] == ':' {
		return false
	}
	for _, part := range strings.Split(p, "/") {
		if part == ".." {
			return false
		}
	}
	return true
}

// MimeTypeForPath returns the MIME type documents at p are served with.
// Notebooks are converted to markdown at ingestion.
func MimeTypeForPath(p string) string {
	switch strings.ToLower(path.Ext(p)) {
	case ".md", ".markdown", ".ipynb":
		return "text/markdown"
	case ".rst":
		return "text/x-rst"
	default:
		return "text/plain"
	}
}

func (s *Server) registerResources() {
	s.mcp.AddResource(&mcp.Resource{
		Name:        "projects",
		URI:         ProjectsURI,
		Description: "Indexed documentation projects with document and chunk counts",
		MIMEType:    "application/json",
	}, s.readProjects)

	s.mcp.AddResourceTemplate(&mcp.ResourceTemplate{
		Name:        "document",
		URITemplate: DocumentURIPrefix + "{project}/{+path}",
		Description: "Full text of an indexed documentation page",
		MIMEType:    "text/markdown",
	}, s.readDocument)

	if s.opts.Metrics != nil {
		s.mcp.AddResource(&mcp.Resource{
			Name:        "query_metrics",
			URI:         QueryMetricsURI,
			Description: "Query pattern telemetry since the server started",
			MIMEType:    "application/json",
		}, s.readQueryMetrics)
	}
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	content, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, MapError(err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(content),
		}},
	}, nil
}

func (s *Server) readProjects(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	projects, err := s.listProjects(ctx)
	if err != nil {
		return nil, MapError(err)
	}
	return jsonResource(ProjectsURI, ListProjectsOutput{Projects: projects, Note: s.opts.Searcher.Note()})
}

func (s *Server) readDocument(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := req.Params.URI
	project, sourcePath, ok := ParseDocumentURI(uri)
	if !ok {
		return nil, NewResourceNotFoundError(uri)
	}
	doc, err := s.opts.Searcher.GetDocument(ctx, sourcePath, project)
	if err != nil {
		return nil, MapError(err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: MimeTypeForPath(doc.SourcePath),
			Text:     doc.Content,
		}},
	}, nil
}

func (s *Server) readQueryMetrics(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	q := s.opts.Metrics.Queries()
	if q == nil {
		return nil, NewResourceNotFoundError(QueryMetricsURI)
	}
	return jsonResource(QueryMetricsURI, q.Snapshot())
}
