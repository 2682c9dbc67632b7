// Package mcp serves the documentation index over the Model Context
// Protocol. Its tools search and read the index, serve best-practice
// guides and trigger reindexing. Read-only resources mirror the index.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/docsmcp/internal/embed"
	"github.com/Aman-CERP/docsmcp/internal/index"
	"github.com/Aman-CERP/docsmcp/internal/ingest"
	"github.com/Aman-CERP/docsmcp/internal/practices"
	"github.com/Aman-CERP/docsmcp/internal/search"
	"github.com/Aman-CERP/docsmcp/internal/store"
	"github.com/Aman-CERP/docsmcp/internal/telemetry"
	"github.com/Aman-CERP/docsmcp/pkg/version"
)

// ServerName is reported to clients during initialization.
const ServerName = "docsmcp"

// Searcher is the read side served by the query tools.
type Searcher interface {
	Search(ctx context.Context, query string, opts search.Options) ([]*search.Result, error)
	GetDocument(ctx context.Context, sourcePath, project string) (*search.Document, error)
	ReferenceGuide(ctx context.Context, component, project string, withContent bool) ([]*search.Result, error)
	ListProjects(ctx context.Context) ([]store.ProjectStats, error)
	Note() string
}

// StatusReporter reports the index state.
type StatusReporter interface {
	Status(ctx context.Context) (*index.Status, error)
}

// Reindexer runs an ingestion pass.
type Reindexer interface {
	Run(ctx context.Context, scope index.Scope) (*ingest.RunResult, error)
}

// BestPractices serves per-package guides.
type BestPractices interface {
	Get(pkg string) (*practices.Guide, error)
	List() ([]string, error)
}

// Options wires the server to the rest of the system. Searcher and Index
// are required.
type Options struct {
	Searcher Searcher
	Index    StatusReporter

	// Reindexer backs the reindex tool. Nil makes the tool fail.
	Reindexer Reindexer

	// BestPractices backs the best-practice tools. Nil serves no guides.
	BestPractices BestPractices

	// Embedder is reported by index_status.
	Embedder embed.Embedder

	// Metrics enables the query_metrics resource.
	Metrics *telemetry.Metrics

	Logger *slog.Logger
}

// Server is the MCP server for docsmcp.
type Server struct {
	mcp    *mcp.Server
	opts   Options
	logger *slog.Logger
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var tools = []ToolInfo{
	{
		Name:        "search",
		Description: "Search the indexed documentation. Component and API names in the query (Tabulator, SelectEditor) are matched exactly against page names and text before semantic matching, so include them verbatim. Returns at most one result per page.",
	},
	{
		Name:        "get_document",
		Description: "Fetch the complete text of one documentation page by project and source_path, as returned by search.",
	},
	{
		Name:        "get_reference_guide",
		Description: "Find the reference pages of a component by its exact name, e.g. Button or Scatter. Faster and more precise than search when the component name is known.",
	},
	{
		Name:        "get_best_practices",
		Description: "Get the best-practice guide for a package, e.g. panel or panel-material-ui. Read it before writing code with that package.",
	},
	{
		Name:        "list_best_practices",
		Description: "List the packages that have a best-practice guide.",
	},
	{
		Name:        "list_projects",
		Description: "List the indexed documentation projects with document and chunk counts.",
	},
	{
		Name:        "reindex",
		Description: "Fetch and reindex documentation projects. Only changed pages are rewritten. Omit projects to refresh everything.",
	},
	{
		Name:        "index_status",
		Description: "Report whether the index is healthy, how much it holds, the last reindex and which embedder is active.",
	},
}

// NewServer creates a server and registers its tools and resources.
func NewServer(opts Options) (*Server, error) {
	if opts.Searcher == nil {
		return nil, errors.New("searcher is required")
	}
	if opts.Index == nil {
		return nil, errors.New("index status reporter is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.BestPractices == nil {
		opts.BestPractices = practices.New()
	}

	s := &Server{
		opts:   opts,
		logger: opts.Logger,
		mcp: mcp.NewServer(&mcp.Implementation{
			Name:    ServerName,
			Version: version.Version,
		}, nil),
	}
	s.registerTools()
	s.registerResources()
	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return ServerName, version.Version
}

// ListTools returns the registered tools.
func (s *Server) ListTools() []ToolInfo {
	out := make([]ToolInfo, len(tools))
	copy(out, tools)
	return out
}

func describe(name string) string {
	for _, t := range tools {
		if t.Name == name {
			return t.Description
		}
	}
	return ""
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{Name: "search", Description: describe("search")}, s.handleSearch)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: "get_document", Description: describe("get_document")}, s.handleGetDocument)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: "get_reference_guide", Description: describe("get_reference_guide")}, s.handleReferenceGuide)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: "get_best_practices", Description: describe("get_best_practices")}, s.handleBestPractices)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: "list_best_practices", Description: describe("list_best_practices")}, s.handleListBestPractices)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: "list_projects", Description: describe("list_projects")}, s.handleListProjects)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: "reindex", Description: describe("reindex")}, s.handleReindex)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: "index_status", Description: describe("index_status")}, s.handleIndexStatus)
	s.logger.Debug("mcp_tools_registered", slog.Int("count", len(tools)))
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

// newRequestID creates a short ID for log correlation.
func newRequestID() string {
	return uuid.NewString()[:8]
}

// fail logs a failed tool call and converts err for the client.
func (s *Server) fail(tool, requestID string, start time.Time, err error) *MCPError {
	s.logger.Warn("tool_failed",
		slog.String("tool", tool),
		slog.String("request_id", requestID),
		slog.Duration("duration", time.Since(start)),
		slog.String("error", err.Error()))
	return MapError(err)
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, in SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	start := time.Now()
	requestID := newRequestID()

	if strings.TrimSpace(in.Query) == "" {
		return nil, SearchOutput{}, NewInvalidParamsError("query cannot be empty or whitespace only")
	}
	mode, err := search.ParseContentMode(in.ContentMode)
	if err != nil {
		return nil, SearchOutput{}, MapError(err)
	}

	results, err := s.opts.Searcher.Search(ctx, in.Query, search.Options{
		Project:         in.Project,
		MaxResults:      in.MaxResults,
		ContentMode:     mode,
		MaxContentChars: in.MaxContentChars,
	})
	if err != nil {
		return nil, SearchOutput{}, s.fail("search", requestID, start, err)
	}
	if results == nil {
		results = []*search.Result{}
	}

	out := SearchOutput{Results: results, Note: s.opts.Searcher.Note()}
	s.logger.Info("search_completed",
		slog.String("request_id", requestID),
		slog.String("query", in.Query),
		slog.String("project", in.Project),
		slog.Int("result_count", len(results)),
		slog.Duration("duration", time.Since(start)))
	return textResult(FormatSearchResults(in.Query, results, out.Note)), out, nil
}

func (s *Server) handleGetDocument(ctx context.Context, _ *mcp.CallToolRequest, in GetDocumentInput) (*mcp.CallToolResult, *search.Document, error) {
	start := time.Now()
	requestID := newRequestID()

	if strings.TrimSpace(in.SourcePath) == "" || strings.TrimSpace(in.Project) == "" {
		return nil, nil, NewInvalidParamsError("source_path and project are required")
	}
	doc, err := s.opts.Searcher.GetDocument(ctx, in.SourcePath, in.Project)
	if err != nil {
		return nil, nil, s.fail("get_document", requestID, start, err)
	}
	s.logger.Info("get_document_completed",
		slog.String("request_id", requestID),
		slog.String("document_id", doc.DocumentID),
		slog.Int("chunks", doc.Chunks))
	return textResult(FormatDocument(doc)), doc, nil
}

func (s *Server) handleReferenceGuide(ctx context.Context, _ *mcp.CallToolRequest, in GetReferenceGuideInput) (*mcp.CallToolResult, ReferenceGuideOutput, error) {
	start := time.Now()
	requestID := newRequestID()

	if strings.TrimSpace(in.Component) == "" {
		return nil, ReferenceGuideOutput{}, NewInvalidParamsError("component is required")
	}
	results, err := s.opts.Searcher.ReferenceGuide(ctx, in.Component, in.Project, in.IncludeContent)
	if err != nil {
		return nil, ReferenceGuideOutput{}, s.fail("get_reference_guide", requestID, start, err)
	}
	if results == nil {
		results = []*search.Result{}
	}
	return textResult(FormatReferenceGuide(in.Component, results)), ReferenceGuideOutput{Results: results}, nil
}

func (s *Server) handleBestPractices(_ context.Context, _ *mcp.CallToolRequest, in GetBestPracticesInput) (*mcp.CallToolResult, *practices.Guide, error) {
	start := time.Now()
	requestID := newRequestID()

	if strings.TrimSpace(in.Package) == "" {
		return nil, nil, NewInvalidParamsError("package is required")
	}
	guide, err := s.opts.BestPractices.Get(in.Package)
	if err != nil {
		return nil, nil, s.fail("get_best_practices", requestID, start, err)
	}
	s.logger.Info("get_best_practices_completed",
		slog.String("request_id", requestID),
		slog.String("package", guide.Package),
		slog.String("path", guide.Path))
	return textResult(guide.Content), guide, nil
}

func (s *Server) handleListBestPractices(_ context.Context, _ *mcp.CallToolRequest, _ ListBestPracticesInput) (*mcp.CallToolResult, ListBestPracticesOutput, error) {
	start := time.Now()
	requestID := newRequestID()

	names, err := s.opts.BestPractices.List()
	if err != nil {
		return nil, ListBestPracticesOutput{}, s.fail("list_best_practices", requestID, start, err)
	}
	if names == nil {
		names = []string{}
	}
	return textResult(FormatBestPractices(names)), ListBestPracticesOutput{Packages: names}, nil
}

func (s *Server) handleListProjects(ctx context.Context, _ *mcp.CallToolRequest, _ ListProjectsInput) (*mcp.CallToolResult, ListProjectsOutput, error) {
	start := time.Now()
	requestID := newRequestID()

	projects, err := s.listProjects(ctx)
	if err != nil {
		return nil, ListProjectsOutput{}, s.fail("list_projects", requestID, start, err)
	}
	out := ListProjectsOutput{Projects: projects, Note: s.opts.Searcher.Note()}
	return textResult(FormatProjects(projects, out.Note)), out, nil
}

func (s *Server) listProjects(ctx context.Context) ([]store.ProjectStats, error) {
	projects, err := s.opts.Searcher.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	if projects == nil {
		projects = []store.ProjectStats{}
	}
	return projects, nil
}

func (s *Server) handleReindex(ctx context.Context, _ *mcp.CallToolRequest, in ReindexInput) (*mcp.CallToolResult, ReindexOutput, error) {
	start := time.Now()
	requestID := newRequestID()

	if s.opts.Reindexer == nil {
		return nil, ReindexOutput{}, MapError(ErrReindexUnavailable)
	}
	scope := index.AllProjects()
	if len(in.Projects) > 0 {
		scope = index.ProjectScope(in.Projects...)
	}

	s.logger.Info("reindex_requested",
		slog.String("request_id", requestID),
		slog.Any("projects", scope.Names()))
	res, err := s.opts.Reindexer.Run(ctx, scope)
	if err != nil {
		return nil, ReindexOutput{}, s.fail("reindex", requestID, start, err)
	}

	out := ReindexOutput{Outcomes: res.Outcomes, Report: res.Report, Failed: res.Failed()}
	if out.Outcomes == nil {
		out.Outcomes = []ingest.ProjectOutcome{}
	}
	return textResult(formatReindex(out)), out, nil
}

func formatReindex(out ReindexOutput) string {
	var sb strings.Builder
	for _, o := range out.Outcomes {
		if o.Error != "" {
			sb.WriteString(fmt.Sprintf("- %s: failed: %s\n", o.Project, o.Error))
		} else {
			sb.WriteString(fmt.Sprintf("- %s: %d documents\n", o.Project, o.Documents))
		}
	}
	if r := out.Report; r != nil {
		sb.WriteString(fmt.Sprintf("\nAdded %d, updated %d, removed %d, unchanged %d (%d chunks written).\n",
			r.Added, r.Updated, r.Removed, r.Unchanged, r.Chunks))
	} else {
		sb.WriteString("\nNothing was reindexed.\n")
	}
	return sb.String()
}

func (s *Server) handleIndexStatus(ctx context.Context, _ *mcp.CallToolRequest, _ IndexStatusInput) (*mcp.CallToolResult, *IndexStatusOutput, error) {
	start := time.Now()
	requestID := newRequestID()

	st, err := s.opts.Index.Status(ctx)
	if err != nil {
		return nil, nil, s.fail("index_status", requestID, start, err)
	}
	projects, err := s.listProjects(ctx)
	if err != nil {
		return nil, nil, s.fail("index_status", requestID, start, err)
	}

	out := &IndexStatusOutput{
		Degraded:       st.Degraded,
		DegradedReason: st.DegradedReason,
		Documents:      st.Documents,
		Chunks:         st.Chunks,
		Projects:       projects,
		Embeddings:     s.embeddingInfo(ctx),
		LastReindex:    st.LastReindex,
	}
	if q := s.opts.Metrics.Queries(); q != nil {
		snap := q.Snapshot()
		out.Queries = &QueryStats{
			TotalQueries:  snap.TotalQueries,
			FailedQueries: snap.FailedQueries,
			ZeroResultPct: snap.ZeroResultPercentage(),
			TierResults:   snap.TierResults,
		}
	}
	return nil, out, nil
}

func (s *Server) embeddingInfo(ctx context.Context) EmbeddingInfo {
	e := s.opts.Embedder
	if e == nil {
		return EmbeddingInfo{Model: "none", IsFallbackActive: true}
	}
	model := e.ModelName()
	return EmbeddingInfo{
		Model:            model,
		Dimensions:       e.Dimensions(),
		Available:        e.Available(ctx),
		IsFallbackActive: strings.HasPrefix(model, "static"),
	}
}

// Serve runs the server on transport until ctx is done. addr is used by
// the http transport only.
func (s *Server) Serve(ctx context.Context, transport, addr string) error {
	s.logger.Info("mcp_server_starting",
		slog.String("transport", transport),
		slog.String("addr", addr))

	switch strings.ToLower(transport) {
	case "stdio", "":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("mcp_server_stopped", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("mcp_server_stopped")
		return nil
	case "http":
		return s.serveHTTP(ctx, addr)
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio, http)", transport)
	}
}

func (s *Server) serveHTTP(ctx context.Context, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcp
	}, nil)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		s.logger.Info("mcp_server_stopped")
		return nil
	}
	return err
}
