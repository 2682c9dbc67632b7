package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/Aman-CERP/docsmcp/internal/chunk"
	docserrors "github.com/Aman-CERP/docsmcp/internal/errors"
	"github.com/Aman-CERP/docsmcp/internal/store"
)

// plan is the diff of one Reindex call against the ledger.
type plan struct {
	added   []*chunk.Document
	updated []*chunk.Document
	removed []string
}

func (p *plan) changed() []*chunk.Document {
	out := make([]*chunk.Document, 0, len(p.added)+len(p.updated))
	out = append(out, p.added...)
	return append(out, p.updated...)
}

func (p *plan) empty() bool {
	return len(p.added)+len(p.updated)+len(p.removed) == 0
}

// Reindex brings the documents of scope in the store up to date with docs.
// Unchanged documents are skipped, changed and new ones are re-chunked
// and replaced, and ledger entries in scope without a document are
// deleted. A write failure restores the pre-write snapshot and leaves the
// ledger untouched; the returned Report is non-nil in every case.
func (m *Manager) Reindex(ctx context.Context, docs []*chunk.Document, scope Scope) (report *Report, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := time.Now()
	report = &Report{RunID: uuid.NewString(), Scope: scope.Names()}
	logger := m.logger.With(slog.String("run_id", report.RunID))
	defer func() {
		report.Duration = time.Since(start)
		m.stateMu.Lock()
		m.lastReport = report
		m.stateMu.Unlock()
		if m.opts.OnReindex != nil {
			m.opts.OnReindex(report, err)
		}
	}()

	lockCtx, cancel := context.WithTimeout(ctx, m.opts.LockTimeout)
	err = m.lock.LockContext(lockCtx, DefaultLockRetry)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		return report, err
	}
	defer func() { _ = m.lock.Unlock() }()

	p := m.plan(docs, scope, report)
	if p.empty() {
		if m.Degraded() && m.settles(ctx, scope) {
			m.degraded.Store(false)
		}
		logger.Info("reindex_complete",
			slog.Int("unchanged", report.Unchanged),
			slog.Int("errors", len(report.Errors)))
		return report, nil
	}

	st := m.Store()
	if !(m.opts.SkipBackupForPartial && scope.StrictSubsetOf(m.opts.Projects)) {
		if err := st.Snapshot(ctx, m.opts.BackupDir); err != nil {
			report.Errors = append(report.Errors, err.Error())
			return report, err
		}
		report.BackedUp = true
	}

	hashes, err := m.write(ctx, st, p, report)
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
		m.rollback(ctx, st, report, err)
		logger.Error("reindex_failed",
			slog.String("error", err.Error()),
			slog.Bool("rolled_back", report.RolledBack))
		return report, err
	}

	for _, d := range p.changed() {
		m.ledger.Set(d.ID, d.Project, hashes[d.ID])
	}
	for _, id := range p.removed {
		m.ledger.Remove(id)
	}
	if err := m.ledger.Flush(); err != nil {
		err = docserrors.New(docserrors.ErrCodeLedgerWrite, "flush ledger", err)
		report.Errors = append(report.Errors, err.Error())
		return report, err
	}

	m.degraded.Store(false)
	if report.BackedUp {
		if err := os.RemoveAll(m.opts.BackupDir); err != nil {
			logger.Warn("backup_cleanup_failed", slog.String("error", err.Error()))
		}
	}

	report.Added, report.Updated, report.Removed = len(p.added), len(p.updated), len(p.removed)
	logger.Info("reindex_complete",
		slog.Int("added", report.Added),
		slog.Int("updated", report.Updated),
		slog.Int("removed", report.Removed),
		slog.Int("unchanged", report.Unchanged),
		slog.Int("chunks", report.Chunks),
		slog.Int("errors", len(report.Errors)),
		slog.Duration("duration", time.Since(start)))
	return report, nil
}

// settles reports whether a pass that wrote nothing may clear degraded
// mode. A scoped pass over a still empty store leaves it set.
func (m *Manager) settles(ctx context.Context, scope Scope) bool {
	if scope.IsAll() {
		return true
	}
	n, err := m.Store().Count(ctx)
	return err == nil && n > 0
}

// plan diffs docs against the ledger. Invalid, out-of-scope and duplicate
// documents become report errors.
func (m *Manager) plan(docs []*chunk.Document, scope Scope, report *Report) *plan {
	p := &plan{}
	seen := make(map[string]struct{}, len(docs))

	for _, d := range docs {
		switch {
		case d == nil || d.ID == "" || d.Project == "":
			report.Errors = append(report.Errors, "document without id or project ignored")
			continue
		case !scope.Contains(d.Project):
			report.Errors = append(report.Errors,
				fmt.Sprintf("%s: project %q is outside the reindex scope", d.ID, d.Project))
			continue
		}
		if _, dup := seen[d.ID]; dup {
			report.Errors = append(report.Errors,
				docserrors.New(docserrors.ErrCodeDuplicateID, d.ID+": duplicate document id in batch", nil).Error())
			continue
		}
		seen[d.ID] = struct{}{}

		if d.ContentHash == "" {
			d.ContentHash = chunk.ContentHash(d.RawContent)
		}
		rec, ok := m.ledger.Get(d.ID)
		switch {
		case !ok:
			p.added = append(p.added, d)
		case rec.Hash != d.ContentHash:
			p.updated = append(p.updated, d)
		default:
			report.Unchanged++
		}
	}

	var projects map[string]struct{}
	if !scope.IsAll() {
		projects = scope
	}
	for _, id := range m.ledger.IDsForProjects(projects) {
		if _, ok := seen[id]; !ok {
			p.removed = append(p.removed, id)
		}
	}
	return p
}

// write applies p to st and returns the committed hash per document.
func (m *Manager) write(ctx context.Context, st store.VectorStore, p *plan, report *Report) (hashes map[string]string, err error) {
	defer recoverFatal("write store", &err)

	for _, id := range p.removed {
		if _, err := st.DeleteWhere(ctx, store.Filter{ParentID: id}); err != nil {
			return nil, err
		}
	}

	limit := st.MaxBatchSize()
	var batch []*chunk.Chunk
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := st.Upsert(ctx, batch)
		batch = nil
		return err
	}

	hashes = make(map[string]string, len(p.added)+len(p.updated))
	for _, d := range p.changed() {
		chunks, err := m.chunker.Chunk(ctx, d)
		if err != nil {
			return nil, err
		}
		if _, err := st.DeleteWhere(ctx, store.Filter{ParentID: d.ID}); err != nil {
			return nil, err
		}
		for _, c := range chunks {
			batch = append(batch, c)
			if len(batch) >= limit {
				if err := flush(); err != nil {
					return nil, err
				}
			}
		}
		report.Chunks += len(chunks)
		hashes[d.ID] = d.ContentHash
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return hashes, nil
}

// rollback restores the snapshot after a failed write. Cancellation of ctx
// does not stop it. A fatal write failure, or any failed restore, wipes
// the store and enters degraded mode: a failed restore may leave the
// store closed.
func (m *Manager) rollback(ctx context.Context, st store.VectorStore, report *Report, cause error) {
	rctx := context.WithoutCancel(ctx)

	var restoreErr error
	if report.BackedUp {
		restoreErr = func() (err error) {
			defer recoverFatal("restore store", &err)
			return st.Restore(rctx, m.opts.BackupDir)
		}()
		if restoreErr == nil {
			report.RolledBack = true
			m.logger.Info("store_rolled_back", slog.String("run_id", report.RunID))
			return
		}
		report.Errors = append(report.Errors, restoreErr.Error())
		m.logger.Error("store_restore_failed",
			slog.String("run_id", report.RunID),
			slog.String("error", restoreErr.Error()))
	}

	if restoreErr == nil && !store.IsFatal(cause) {
		// Partial writes are redone by the next pass: the ledger still
		// holds the old hashes.
		return
	}

	wiped, err := m.wipe(rctx, st)
	if err != nil {
		m.logger.Error("store_recreate_failed", slog.String("error", err.Error()))
		return
	}
	m.stateMu.Lock()
	m.st = wiped
	m.stateMu.Unlock()
	m.enterDegraded("store failed during a write and was recreated empty")
}
