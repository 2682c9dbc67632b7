package index

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/Aman-CERP/docsmcp/internal/ledger"
	"github.com/Aman-CERP/docsmcp/internal/store"
)

// InconsistencyType categorizes detected issues.
type InconsistencyType int

const (
	// InconsistencyOrphanChunks indicates chunks whose document has no
	// ledger entry.
	InconsistencyOrphanChunks InconsistencyType = iota
	// InconsistencyMissingChunks indicates a ledger entry whose document
	// has no chunks in the store.
	InconsistencyMissingChunks
)

// String returns a human-readable description of the inconsistency type.
func (t InconsistencyType) String() string {
	switch t {
	case InconsistencyOrphanChunks:
		return "orphan_chunks"
	case InconsistencyMissingChunks:
		return "missing_chunks"
	default:
		return "unknown"
	}
}

// Inconsistency represents one document the store and ledger disagree on.
type Inconsistency struct {
	Type       InconsistencyType
	DocumentID string
}

// CheckResult contains the outcome of a consistency check.
type CheckResult struct {
	// Checked is the number of distinct document IDs compared.
	Checked         int
	Inconsistencies []Inconsistency
	Duration        time.Duration
}

// ConsistencyChecker compares the hash ledger with the documents present
// in the store. The ledger says what was committed; the store says what
// is searchable.
type ConsistencyChecker struct {
	store  store.VectorStore
	ledger *ledger.Ledger
	logger *slog.Logger
}

// NewConsistencyChecker creates a checker over st and l.
func NewConsistencyChecker(st store.VectorStore, l *ledger.Ledger, logger *slog.Logger) *ConsistencyChecker {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsistencyChecker{store: st, ledger: l, logger: logger}
}

// Check lists documents present on only one side.
func (c *ConsistencyChecker) Check(ctx context.Context) (*CheckResult, error) {
	start := time.Now()

	stored, err := c.store.ParentIDs(ctx)
	if err != nil {
		return nil, err
	}
	recorded := c.ledger.AllIDs()

	var issues []Inconsistency
	for id := range stored {
		if _, ok := recorded[id]; !ok {
			issues = append(issues, Inconsistency{Type: InconsistencyOrphanChunks, DocumentID: id})
		}
	}
	for id := range recorded {
		if _, ok := stored[id]; !ok {
			issues = append(issues, Inconsistency{Type: InconsistencyMissingChunks, DocumentID: id})
		}
	}
	sort.Slice(issues, func(i, j int) bool {
		if issues[i].Type != issues[j].Type {
			return issues[i].Type < issues[j].Type
		}
		return issues[i].DocumentID < issues[j].DocumentID
	})

	checked := len(stored)
	for id := range recorded {
		if _, ok := stored[id]; !ok {
			checked++
		}
	}
	return &CheckResult{Checked: checked, Inconsistencies: issues, Duration: time.Since(start)}, nil
}

// Repair deletes orphan chunks and drops ledger entries without chunks so
// the next ingestion pass re-embeds those documents. The ledger is
// flushed when it changed.
func (c *ConsistencyChecker) Repair(ctx context.Context, issues []Inconsistency) error {
	var orphans, missing int
	for _, issue := range issues {
		switch issue.Type {
		case InconsistencyOrphanChunks:
			if _, err := c.store.DeleteWhere(ctx, store.Filter{ParentID: issue.DocumentID}); err != nil {
				return err
			}
			orphans++
		case InconsistencyMissingChunks:
			c.ledger.Remove(issue.DocumentID)
			missing++
		}
	}

	if missing > 0 {
		if err := c.ledger.Flush(); err != nil {
			return err
		}
	}
	if orphans+missing > 0 {
		c.logger.Info("index_reconciled",
			slog.Int("orphan_documents_deleted", orphans),
			slog.Int("ledger_entries_dropped", missing))
	}
	return nil
}

// QuickCheck compares only emptiness: an empty store with a non-empty
// ledger means the store was lost and every entry is stale.
func (c *ConsistencyChecker) QuickCheck(ctx context.Context) (bool, error) {
	n, err := c.store.Count(ctx)
	if err != nil {
		return false, err
	}
	consistent := !(n == 0 && c.ledger.Len() > 0)
	if !consistent {
		c.logger.Debug("index_counts_mismatch",
			slog.Int("chunks", n),
			slog.Int("ledger_entries", c.ledger.Len()))
	}
	return consistent, nil
}
