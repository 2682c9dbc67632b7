// Package ingest runs a full ingestion pass: every project in scope is
// acquired and extracted on a bounded worker pool, and the documents of the
// projects that succeeded are handed to the index manager in one reindex.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/Aman-CERP/docsmcp/internal/chunk"
	docserrors "github.com/Aman-CERP/docsmcp/internal/errors"
	"github.com/Aman-CERP/docsmcp/internal/index"
	"github.com/Aman-CERP/docsmcp/internal/telemetry"
)

const (
	// DefaultWorkers is the pool width cap.
	DefaultWorkers = 4

	// DefaultAcquireTimeout bounds one project's acquire-then-extract unit.
	DefaultAcquireTimeout = 5 * time.Minute
)

// ErrNilDependency is returned when a required collaborator is missing.
var ErrNilDependency = errors.New("ingest: nil dependency")

// Extractor acquires a project and returns its documents.
type Extractor interface {
	Extract(ctx context.Context, project string) ([]*chunk.Document, error)
	Projects() []string
}

// Reindexer commits documents for a scope. *index.Manager implements it.
type Reindexer interface {
	Reindex(ctx context.Context, docs []*chunk.Document, scope index.Scope) (*index.Report, error)
}

// Options configures an Orchestrator.
type Options struct {
	Workers        int
	AcquireTimeout time.Duration
	Logger         *slog.Logger
	Metrics        *telemetry.Metrics
}

// ProjectOutcome is the result of one project's unit of work.
type ProjectOutcome struct {
	Project   string        `json:"project"`
	Documents int           `json:"documents"`
	Err       error         `json:"-"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Failed reports whether the unit failed.
func (o ProjectOutcome) Failed() bool { return o.Err != nil }

// RunResult is the outcome of one ingestion pass. Report is nil when no
// reindex ran.
type RunResult struct {
	Outcomes []ProjectOutcome `json:"outcomes"`
	Report   *index.Report    `json:"report,omitempty"`
}

// Failed returns the names of the projects whose unit failed.
func (r *RunResult) Failed() []string {
	var names []string
	for _, o := range r.Outcomes {
		if o.Failed() {
			names = append(names, o.Project)
		}
	}
	return names
}

// Orchestrator runs ingestion passes. Concurrent Run calls are serialized
// by the reindexer.
type Orchestrator struct {
	extractor Extractor
	indexer   Reindexer
	opts      Options
	logger    *slog.Logger
}

// New creates an Orchestrator.
func New(extractor Extractor, indexer Reindexer, opts Options) (*Orchestrator, error) {
	if extractor == nil || indexer == nil {
		return nil, ErrNilDependency
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.AcquireTimeout <= 0 {
		opts.AcquireTimeout = DefaultAcquireTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Orchestrator{extractor: extractor, indexer: indexer, opts: opts, logger: opts.Logger}, nil
}

// Run ingests the projects of scope. Projects whose unit fails are left
// out of the reindex scope so their indexed documents survive. With the
// full scope and no failures, documents of projects no longer configured
// are removed too. Cancellation of ctx is returned with the partial result.
func (o *Orchestrator) Run(ctx context.Context, scope index.Scope) (*RunResult, error) {
	start := time.Now()
	projects, outcomes := o.resolve(scope)

	results, err := o.acquire(ctx, projects)
	if err != nil {
		return &RunResult{Outcomes: outcomes}, err
	}

	var docs []*chunk.Document
	var succeeded []string
	for _, r := range results {
		outcomes = append(outcomes, r.outcome)
		if r.outcome.Failed() {
			o.opts.Metrics.ObserveProjectFailure(r.outcome.Project)
			continue
		}
		succeeded = append(succeeded, r.outcome.Project)
		docs = append(docs, r.docs...)
	}
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].Project < outcomes[j].Project })
	result := &RunResult{Outcomes: outcomes}

	if err := ctx.Err(); err != nil {
		return result, err
	}

	reindexScope := index.ProjectScope(succeeded...)
	if scope.IsAll() && len(result.Failed()) == 0 {
		reindexScope = index.AllProjects()
	} else if len(succeeded) == 0 {
		o.logger.Warn("ingest_skipped_reindex",
			slog.Int("failed", len(result.Failed())))
		return result, nil
	}

	report, err := o.indexer.Reindex(ctx, docs, reindexScope)
	result.Report = report
	if err != nil {
		return result, err
	}

	o.logger.Info("ingest_complete",
		slog.Int("projects", len(succeeded)),
		slog.Int("failed", len(result.Failed())),
		slog.Int("documents", len(docs)),
		slog.Duration("duration", time.Since(start)))
	return result, nil
}

// resolve returns the configured projects of scope; scoped names that are
// not configured become failed outcomes.
func (o *Orchestrator) resolve(scope index.Scope) ([]string, []ProjectOutcome) {
	configured := o.extractor.Projects()
	if scope.IsAll() {
		return configured, nil
	}

	known := make(map[string]bool, len(configured))
	for _, p := range configured {
		known[p] = true
	}
	var projects []string
	var outcomes []ProjectOutcome
	for _, name := range scope.Names() {
		if known[name] {
			projects = append(projects, name)
			continue
		}
		err := docserrors.New(docserrors.ErrCodeUnknownProject,
			fmt.Sprintf("project %q is not configured", name), nil)
		outcomes = append(outcomes, ProjectOutcome{Project: name, Err: err, Error: err.Error()})
	}
	return projects, outcomes
}

type unitResult struct {
	outcome ProjectOutcome
	docs    []*chunk.Document
}

// acquire runs one unit per project on a pool of min(Workers, len(projects)).
func (o *Orchestrator) acquire(ctx context.Context, projects []string) ([]unitResult, error) {
	if len(projects) == 0 {
		return nil, nil
	}

	pool, err := ants.NewPool(min(o.opts.Workers, len(projects)))
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	results := make([]unitResult, len(projects))
	var wg sync.WaitGroup
	for i, project := range projects {
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			results[i] = o.unit(ctx, project)
		}); err != nil {
			wg.Done()
			results[i] = failed(project, fmt.Errorf("submit: %w", err), 0)
		}
	}
	wg.Wait()
	return results, nil
}

// unit acquires and extracts one project within AcquireTimeout. Panics are
// recovered into the outcome.
func (o *Orchestrator) unit(ctx context.Context, project string) (r unitResult) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			r = failed(project, docserrors.New(docserrors.ErrCodeInternal,
				fmt.Sprintf("panic extracting %q: %v", project, rec), nil), time.Since(start))
		}
		if r.outcome.Failed() {
			o.logger.Error("project_failed",
				slog.String("project", project),
				slog.String("error", r.outcome.Error),
				slog.Duration("duration", r.outcome.Duration))
		}
	}()

	unitCtx, cancel := context.WithTimeout(ctx, o.opts.AcquireTimeout)
	defer cancel()

	docs, err := o.extractor.Extract(unitCtx, project)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = docserrors.New(docserrors.ErrCodeNetworkTimeout,
				fmt.Sprintf("acquiring %q exceeded %s", project, o.opts.AcquireTimeout), err)
		}
		return failed(project, err, time.Since(start))
	}
	return unitResult{
		outcome: ProjectOutcome{Project: project, Documents: len(docs), Duration: time.Since(start)},
		docs:    docs,
	}
}

func failed(project string, err error, d time.Duration) unitResult {
	return unitResult{outcome: ProjectOutcome{Project: project, Err: err, Error: err.Error(), Duration: d}}
}
