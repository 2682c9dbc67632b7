// Package telemetry records search and reindex activity. Aggregates are
// kept in memory for the index_status tool and exported as Prometheus
// collectors when a metrics address is configured.
package telemetry

import (
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LatencyBucket is a coarse latency class for status displays.
type LatencyBucket string

const (
	BucketP10   LatencyBucket = "p10"   // <10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP500  LatencyBucket = "p500"  // 100-500ms
	BucketP1000 LatencyBucket = "p1000" // >=500ms
)

// LatencyToBucket converts a duration to its bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 10:
		return BucketP10
	case ms < 50:
		return BucketP50
	case ms < 100:
		return BucketP100
	case ms < 500:
		return BucketP500
	default:
		return BucketP1000
	}
}

// QueryEvent is one completed search.
type QueryEvent struct {
	Query   string
	Project string

	// TierResults counts returned results per tier name.
	TierResults map[string]int
	ResultCount int
	Latency     time.Duration
	Failed      bool
}

// IsZeroResult reports whether the search returned nothing.
func (e QueryEvent) IsZeroResult() bool {
	return e.ResultCount == 0
}

// TermCount is a query term and how often it was seen.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// QueryMetricsSnapshot is a copy of the aggregates.
type QueryMetricsSnapshot struct {
	TotalQueries        int64                   `json:"total_queries"`
	FailedQueries       int64                   `json:"failed_queries"`
	ZeroResultCount     int64                   `json:"zero_result_count"`
	TierResults         map[string]int64        `json:"tier_results"`
	TopTerms            []TermCount             `json:"top_terms"`
	ZeroResultQueries   []string                `json:"zero_result_queries"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	Since               time.Time               `json:"since"`
}

// ZeroResultPercentage returns the share of searches without results.
func (s *QueryMetricsSnapshot) ZeroResultPercentage() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.ZeroResultCount) / float64(s.TotalQueries) * 100
}

// QueryMetricsConfig bounds the in-memory aggregates.
type QueryMetricsConfig struct {
	TopTermsCapacity    int
	ZeroResultsCapacity int
}

// DefaultQueryMetricsConfig returns the default capacities.
func DefaultQueryMetricsConfig() QueryMetricsConfig {
	return QueryMetricsConfig{TopTermsCapacity: 100, ZeroResultsCapacity: 100}
}

// QueryMetrics aggregates search events. Safe for concurrent use.
type QueryMetrics struct {
	mu sync.Mutex

	totalQueries    int64
	failedQueries   int64
	zeroResultCount int64
	tierResults     map[string]int64
	latencies       map[LatencyBucket]int64
	topTerms        *lru.Cache[string, int64]
	zeroResults     *CircularBuffer[string]
	startTime       time.Time
}

// NewQueryMetrics creates a collector with cfg, using defaults for zero
// capacities.
func NewQueryMetrics(cfg QueryMetricsConfig) *QueryMetrics {
	def := DefaultQueryMetricsConfig()
	if cfg.TopTermsCapacity <= 0 {
		cfg.TopTermsCapacity = def.TopTermsCapacity
	}
	if cfg.ZeroResultsCapacity <= 0 {
		cfg.ZeroResultsCapacity = def.ZeroResultsCapacity
	}
	topTerms, _ := lru.New[string, int64](cfg.TopTermsCapacity)

	return &QueryMetrics{
		tierResults: make(map[string]int64),
		latencies:   make(map[LatencyBucket]int64),
		topTerms:    topTerms,
		zeroResults: NewCircularBuffer[string](cfg.ZeroResultsCapacity),
		startTime:   time.Now(),
	}
}

// Record adds one search event.
func (m *QueryMetrics) Record(event QueryEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalQueries++
	if event.Failed {
		m.failedQueries++
	}
	for tier, n := range event.TierResults {
		m.tierResults[tier] += int64(n)
	}
	for _, term := range ExtractTerms(event.Query) {
		count, _ := m.topTerms.Get(term)
		m.topTerms.Add(term, count+1)
	}
	if event.IsZeroResult() && !event.Failed {
		m.zeroResults.Add(event.Query)
		m.zeroResultCount++
	}
	m.latencies[LatencyToBucket(event.Latency)]++
}

// Snapshot returns a copy of the aggregates.
func (m *QueryMetrics) Snapshot() *QueryMetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	tiers := make(map[string]int64, len(m.tierResults))
	for k, v := range m.tierResults {
		tiers[k] = v
	}
	latencies := make(map[LatencyBucket]int64, len(m.latencies))
	for k, v := range m.latencies {
		latencies[k] = v
	}

	var top []TermCount
	for _, key := range m.topTerms.Keys() {
		if count, ok := m.topTerms.Peek(key); ok {
			top = append(top, TermCount{Term: key, Count: count})
		}
	}
	sort.SliceStable(top, func(i, j int) bool {
		if top[i].Count != top[j].Count {
			return top[i].Count > top[j].Count
		}
		return top[i].Term < top[j].Term
	})

	return &QueryMetricsSnapshot{
		TotalQueries:        m.totalQueries,
		FailedQueries:       m.failedQueries,
		ZeroResultCount:     m.zeroResultCount,
		TierResults:         tiers,
		TopTerms:            top,
		ZeroResultQueries:   m.zeroResults.Items(),
		LatencyDistribution: latencies,
		Since:               m.startTime,
	}
}

// ExtractTerms lowercases query and keeps words of three or more bytes.
func ExtractTerms(query string) []string {
	var terms []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if len(w) >= 3 {
			terms = append(terms, w)
		}
	}
	return terms
}
