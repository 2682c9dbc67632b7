// Package source acquires documentation projects (git clones or local
// directories) and extracts their files as documents with metadata.
package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Aman-CERP/docsmcp/internal/chunk"
	"github.com/Aman-CERP/docsmcp/internal/config"
	docserrors "github.com/Aman-CERP/docsmcp/internal/errors"
)

// Options configures an Extractor.
type Options struct {
	ReposDir        string
	IndexPatterns   []string
	ExcludePatterns []string
	Projects        []config.ProjectConfig
	MaxFileSize     int64

	// Git runs git commands; nil uses ExecGit.
	Git   GitRunner
	Retry docserrors.RetryConfig

	Logger *slog.Logger
}

// Extractor turns a configured project into documents. Extract may be called
// concurrently for different projects.
type Extractor struct {
	opts     Options
	projects map[string]config.ProjectConfig
	scanner  *Scanner
	git      *GitFetcher
	logger   *slog.Logger
}

// NewExtractor creates an Extractor for opts.Projects.
func NewExtractor(opts Options) (*Extractor, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	sc, err := NewScanner()
	if err != nil {
		return nil, err
	}
	projects := make(map[string]config.ProjectConfig, len(opts.Projects))
	for _, p := range opts.Projects {
		projects[p.Name] = p
	}
	return &Extractor{
		opts:     opts,
		projects: projects,
		scanner:  sc,
		git: &GitFetcher{
			ReposDir: opts.ReposDir,
			Run:      opts.Git,
			Retry:    opts.Retry,
			Logger:   opts.Logger,
		},
		logger: opts.Logger,
	}, nil
}

// Projects returns the configured project names, sorted.
func (e *Extractor) Projects() []string {
	names := make([]string, 0, len(e.projects))
	for name := range e.projects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Project returns the configuration of name.
func (e *Extractor) Project(name string) (config.ProjectConfig, bool) {
	p, ok := e.projects[name]
	return p, ok
}

// Root returns the directory a project is read from.
func (e *Extractor) Root(p config.ProjectConfig) string {
	if p.Path != "" {
		return p.Path
	}
	return filepath.Join(e.opts.ReposDir, p.Name)
}

// Extract acquires project and returns its documents ordered by path.
// Unreadable or unconvertible files are logged and skipped.
func (e *Extractor) Extract(ctx context.Context, project string) ([]*chunk.Document, error) {
	p, ok := e.projects[project]
	if !ok {
		return nil, docserrors.New(docserrors.ErrCodeUnknownProject,
			fmt.Sprintf("project %q is not configured", project), nil)
	}

	root := p.Path
	if root == "" {
		var err error
		if root, err = e.git.Fetch(ctx, p); err != nil {
			return nil, err
		}
		e.scanner.InvalidateGitignoreCache()
	}

	folders := make([]string, 0, len(p.Folders))
	for name := range p.Folders {
		folders = append(folders, strings.Trim(name, "/"))
	}
	sort.Strings(folders)

	converter := NewNotebookConverter()
	var docs []*chunk.Document
	err := e.scanner.Scan(ctx, ScanOptions{
		RootDir:          root,
		Folders:          folders,
		IncludePatterns:  e.opts.IndexPatterns,
		ExcludePatterns:  e.opts.ExcludePatterns,
		RespectGitignore: true,
		MaxFileSize:      e.opts.MaxFileSize,
	}, func(f FileInfo) error {
		doc, err := e.readDocument(p, f, converter)
		if err != nil {
			e.logger.Warn("document_skipped",
				slog.String("project", p.Name),
				slog.String("path", f.Path),
				slog.String("error", err.Error()))
			return nil
		}
		if doc != nil {
			docs = append(docs, doc)
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, docserrors.New(docserrors.ErrCodeSourceExtract,
			fmt.Sprintf("extract project %q", p.Name), err)
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].SourcePath < docs[j].SourcePath })

	refs := 0
	for _, d := range docs {
		if d.IsReference {
			refs++
		}
	}
	e.logger.Info("project_extracted",
		slog.String("project", p.Name),
		slog.Int("documents", len(docs)),
		slog.Int("reference", refs))
	return docs, nil
}

// readDocument returns nil for unsupported file types.
func (e *Extractor) readDocument(p config.ProjectConfig, f FileInfo, converter *NotebookConverter) (*chunk.Document, error) {
	ext := strings.ToLower(path.Ext(f.Path))
	switch ext {
	case ".md", ".ipynb", ".rst", ".txt":
	default:
		return nil, nil
	}

	data, err := os.ReadFile(f.AbsPath)
	if err != nil {
		return nil, err
	}

	var content string
	if ext == ".ipynb" {
		if content, err = converter.Convert(data); err != nil {
			return nil, err
		}
	} else {
		content = string(data)
		if !utf8.ValidString(content) {
			content = strings.ToValidUTF8(content, "�")
		}
	}

	doc := chunk.NewDocument(p.Name, f.Path, content)
	doc.Title = ExtractTitle(content, path.Base(f.Path))
	doc.Description = ExtractDescription(content)
	doc.URL = DocURL(p, doc.SourcePath, f.Folder)
	doc.SourceURL = SourceURL(p, doc.SourcePath)
	doc.Category = Category(doc.SourcePath, f.Folder)
	doc.IsReference = IsReference(doc.SourcePath, p.ReferencePatterns)
	return doc, nil
}
