package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/docsmcp/internal/embed"
	docserrors "github.com/Aman-CERP/docsmcp/internal/errors"
	"github.com/Aman-CERP/docsmcp/internal/store"
	"github.com/Aman-CERP/docsmcp/internal/telemetry"
	"github.com/Aman-CERP/docsmcp/internal/terms"
)

// Index is the read side of the index manager.
type Index interface {
	Store() store.VectorStore
	Degraded() bool
}

// EngineConfig holds engine-wide defaults.
type EngineConfig struct {
	MaxResults      int
	OverFetch       int
	MaxContentChars int
}

// DefaultEngineConfig returns the default configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MaxResults:      DefaultMaxResults,
		OverFetch:       DefaultOverFetch,
		MaxContentChars: DefaultMaxContentChars,
	}
}

// EngineOption configures the engine.
type EngineOption func(*Engine)

// WithMetrics records every search in m.
func WithMetrics(m *telemetry.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// Engine runs tiered searches against the index. It only reads and is
// safe for concurrent use.
type Engine struct {
	index    Index
	embedder embed.Embedder
	config   EngineConfig
	metrics  *telemetry.Metrics
	logger   *slog.Logger
}

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// NewEngine creates an engine. A nil embedder makes the store embed the
// query text itself for every tier query.
func NewEngine(index Index, embedder embed.Embedder, config EngineConfig, opts ...EngineOption) (*Engine, error) {
	if index == nil {
		return nil, fmt.Errorf("%w: index is required", ErrNilDependency)
	}
	def := DefaultEngineConfig()
	if config.MaxResults <= 0 {
		config.MaxResults = def.MaxResults
	}
	if config.OverFetch <= 0 {
		config.OverFetch = def.OverFetch
	}
	if config.MaxContentChars <= 0 {
		config.MaxContentChars = def.MaxContentChars
	}

	e := &Engine{index: index, embedder: embedder, config: config, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Note returns a message to show alongside results, or "".
func (e *Engine) Note() string {
	if e.index.Degraded() {
		return DegradedNote
	}
	return ""
}

// tierQuery is one store query belonging to a tier.
type tierQuery struct {
	tier Tier
	req  store.QueryRequest
	hits []*store.Hit
	err  error
}

// Search returns up to MaxResults documents for query. Tier 0 matches
// capitalized terms against file stems, Tier 1 matches compound and
// capitalized terms as substrings of chunk text, and Tier 2 is plain
// semantic search. Tiers are merged in that order and a document is
// represented by the first chunk that reaches it.
func (e *Engine) Search(ctx context.Context, query string, opts Options) (results []*Result, err error) {
	start := time.Now()
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, docserrors.New(docserrors.ErrCodeQueryEmpty, "query is empty", nil)
	}
	opts = e.applyDefaults(opts)

	defer func() {
		e.observe(query, opts.Project, results, err, time.Since(start))
	}()

	if e.index.Degraded() {
		return []*Result{}, nil
	}

	var vec []float32
	if e.embedder != nil {
		vec, err = e.embedder.Embed(ctx, query)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, docserrors.New(docserrors.ErrCodeEmbeddingFailed, "embed query", err)
		}
	}

	queries := e.plan(query, vec, opts)
	if err := e.run(ctx, queries); err != nil {
		return nil, err
	}

	failed := 0
	for _, q := range queries {
		if q.err != nil {
			failed++
			e.logger.Warn("search_tier_failed",
				slog.String("tier", string(q.tier)),
				slog.String("contains", q.req.Contains),
				slog.String("stem", q.req.Where.SourcePathStem),
				slog.String("error", q.err.Error()))
		}
	}
	if failed == len(queries) {
		return nil, docserrors.New(docserrors.ErrCodeSearchFailed, "every search tier failed", queries[0].err)
	}

	results = merge(queries, opts.MaxResults)
	if err := e.expand(ctx, results, opts); err != nil {
		return nil, err
	}

	e.logger.Debug("search_complete",
		slog.String("query", query),
		slog.String("project", opts.Project),
		slog.Int("results", len(results)),
		slog.Duration("duration", time.Since(start)))
	return results, nil
}

func (e *Engine) applyDefaults(opts Options) Options {
	if opts.MaxResults <= 0 {
		opts.MaxResults = e.config.MaxResults
	}
	if opts.MaxResults > MaxMaxResults {
		opts.MaxResults = MaxMaxResults
	}
	if opts.ContentMode == "" {
		opts.ContentMode = ContentTruncated
	}
	if opts.MaxContentChars <= 0 {
		opts.MaxContentChars = e.config.MaxContentChars
	}
	return opts
}

// plan builds the tier queries in merge order.
func (e *Engine) plan(query string, vec []float32, opts Options) []*tierQuery {
	k := opts.MaxResults * e.config.OverFetch
	base := store.QueryRequest{Vector: vec, K: k, Where: store.Filter{Project: opts.Project}}
	if vec == nil {
		base.Text = query
	}

	var queries []*tierQuery
	for _, term := range terms.ExtractCapitalizedTerms(query, opts.Project) {
		req := base
		req.Where.SourcePathStem = term
		queries = append(queries, &tierQuery{tier: TierMetadata, req: req})
	}
	for _, term := range terms.KeywordTerms(query, opts.Project) {
		req := base
		req.Contains = term
		queries = append(queries, &tierQuery{tier: TierKeyword, req: req})
	}
	queries = append(queries, &tierQuery{tier: TierSemantic, req: base})
	return queries
}

// run issues all tier queries concurrently. A failing query only empties
// its own slot; cancellation of ctx is returned.
func (e *Engine) run(ctx context.Context, queries []*tierQuery) error {
	st := e.index.Store()
	g, gctx := errgroup.WithContext(ctx)
	for _, q := range queries {
		g.Go(func() error {
			q.hits, q.err = st.Query(gctx, q.req)
			return nil
		})
	}
	_ = g.Wait()
	return ctx.Err()
}

// merge orders each tier by score (stable), concatenates tiers in order and
// keeps the first chunk per (project, source_path).
func merge(queries []*tierQuery, limit int) []*Result {
	type candidate struct {
		hit  *store.Hit
		tier Tier
	}

	var tiers [][]candidate
	var current []candidate
	for i, q := range queries {
		if i > 0 && q.tier != queries[i-1].tier {
			tiers = append(tiers, current)
			current = nil
		}
		for _, h := range q.hits {
			current = append(current, candidate{hit: h, tier: q.tier})
		}
	}
	tiers = append(tiers, current)

	type docKey struct{ project, path string }
	seen := make(map[docKey]struct{})
	results := make([]*Result, 0, limit)
	for _, tier := range tiers {
		sort.SliceStable(tier, func(i, j int) bool {
			return tier[i].hit.Score > tier[j].hit.Score
		})
		for _, c := range tier {
			key := docKey{c.hit.Chunk.Project, c.hit.Chunk.SourcePath}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			results = append(results, newResult(c.hit.Chunk, c.hit.Score, c.tier))
			if len(results) == limit {
				return results
			}
		}
	}
	return results
}

func (e *Engine) observe(query, project string, results []*Result, err error, d time.Duration) {
	if e.metrics == nil {
		return
	}
	tiers := make(map[string]int)
	for _, r := range results {
		tiers[string(r.Tier)]++
	}
	e.metrics.ObserveSearch(telemetry.QueryEvent{
		Query:       query,
		Project:     project,
		TierResults: tiers,
		ResultCount: len(results),
		Latency:     d,
		Failed:      err != nil,
	})
}
