// Package index maintains the searchable store from ingested documents.
// It diffs documents against the hash ledger, writes only what changed
// and protects every write with a snapshot it can roll back to.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Aman-CERP/docsmcp/internal/chunk"
	docserrors "github.com/Aman-CERP/docsmcp/internal/errors"
	"github.com/Aman-CERP/docsmcp/internal/ledger"
	"github.com/Aman-CERP/docsmcp/internal/store"
)

// DefaultLockTimeout bounds the wait for the cross-process writer lock.
const DefaultLockTimeout = 30 * time.Second

// StoreOpener opens the vector store. It is called again when the store
// has to be recreated from scratch.
type StoreOpener func(ctx context.Context) (store.VectorStore, error)

// Options configures a Manager.
type Options struct {
	// StoreDir is the primary store directory, removed when the store
	// cannot be opened at all.
	StoreDir string

	// BackupDir receives the pre-write snapshot.
	BackupDir string

	LedgerPath string
	LockPath   string

	// LockTimeout bounds the wait for LockPath. Zero uses DefaultLockTimeout.
	LockTimeout time.Duration

	// MinSectionSize is passed to the chunker.
	MinSectionSize int

	// SkipBackupForPartial skips the snapshot when a reindex covers a
	// strict subset of Projects. A failed write then cannot be rolled back.
	SkipBackupForPartial bool

	// Projects are the configured project names.
	Projects []string

	Logger *slog.Logger

	// OnReindex is called after every Reindex that reached the store.
	OnReindex func(*Report, error)
}

// Report describes one Reindex call.
type Report struct {
	RunID      string        `json:"run_id"`
	Scope      []string      `json:"scope,omitempty"`
	Added      int           `json:"added"`
	Updated    int           `json:"updated"`
	Removed    int           `json:"removed"`
	Unchanged  int           `json:"unchanged"`
	Chunks     int           `json:"chunks"`
	Errors     []string      `json:"errors,omitempty"`
	BackedUp   bool          `json:"backed_up"`
	RolledBack bool          `json:"rolled_back"`
	Duration   time.Duration `json:"duration"`
}

// Changed reports whether the run wrote anything.
func (r *Report) Changed() bool {
	return r.Added+r.Updated+r.Removed > 0
}

// Status summarizes the index for status displays.
type Status struct {
	Degraded       bool    `json:"degraded"`
	DegradedReason string  `json:"degraded_reason,omitempty"`
	Documents      int     `json:"documents"`
	Chunks         int     `json:"chunks"`
	LastReindex    *Report `json:"last_reindex,omitempty"`
}

// Manager is the only writer of the store and the ledger.
type Manager struct {
	opts    Options
	opener  StoreOpener
	logger  *slog.Logger
	chunker *chunk.MarkdownChunker
	ledger  *ledger.Ledger
	lock    *FileLock

	// mu serializes Reindex within the process; lock does so across
	// processes.
	mu sync.Mutex

	stateMu        sync.RWMutex
	st             store.VectorStore
	degradedReason string
	lastReport     *Report

	degraded atomic.Bool
}

// Open opens the store and ledger and runs the startup health check. A
// store that cannot be opened or probed is recreated empty and the
// manager starts degraded. Only context errors and a failure to recreate
// the store are returned.
func Open(ctx context.Context, opener StoreOpener, opts Options) (*Manager, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = DefaultLockTimeout
	}

	m := &Manager{
		opts:    opts,
		opener:  opener,
		logger:  opts.Logger,
		chunker: chunk.NewMarkdownChunkerWithOptions(chunk.MarkdownChunkerOptions{MinSectionSize: opts.MinSectionSize}),
		ledger:  ledger.Open(opts.LedgerPath, opts.Logger),
		lock:    NewFileLock(opts.LockPath),
	}

	st, err := m.healthCheck(ctx)
	if err != nil {
		return nil, err
	}
	m.st = st

	m.reconcile(ctx)
	return m, nil
}

func (m *Manager) healthCheck(ctx context.Context) (store.VectorStore, error) {
	st, err := m.safeOpen(ctx)
	if err != nil {
		if isContextErr(err) {
			return nil, err
		}
		openErr := err
		m.logger.Warn("store_open_failed_recreating",
			slog.String("dir", m.opts.StoreDir),
			slog.String("error", err.Error()))
		if err := os.RemoveAll(m.opts.StoreDir); err != nil {
			return nil, docserrors.New(docserrors.ErrCodeStoreUnavailable, "remove damaged store", err)
		}
		st, err = m.safeOpen(ctx)
		if err != nil {
			return nil, err
		}
		m.enterDegraded("store could not be opened and was recreated empty: " + openErr.Error())
		return st, nil
	}

	if err := safeProbe(ctx, st); err != nil {
		if isContextErr(err) {
			_ = st.Close()
			return nil, err
		}
		m.logger.Warn("store_probe_failed_wiping", slog.String("error", err.Error()))
		st, err = m.wipe(ctx, st)
		if err != nil {
			return nil, err
		}
		m.enterDegraded("store failed its health check and was recreated empty")
	}
	return st, nil
}

// safeOpen calls the opener, turning panics into fatal errors.
func (m *Manager) safeOpen(ctx context.Context) (st store.VectorStore, err error) {
	defer recoverFatal("open store", &err)
	return m.opener(ctx)
}

func safeProbe(ctx context.Context, st store.VectorStore) (err error) {
	defer recoverFatal("probe store", &err)
	return st.Probe(ctx)
}

// wipe empties st in place, falling back to removing the directory and
// opening a fresh handle.
func (m *Manager) wipe(ctx context.Context, st store.VectorStore) (store.VectorStore, error) {
	err := func() (err error) {
		defer recoverFatal("wipe store", &err)
		return st.Wipe(ctx)
	}()
	if err == nil {
		return st, nil
	}
	m.logger.Warn("store_wipe_failed_reopening", slog.String("error", err.Error()))
	_ = st.Close()
	if err := os.RemoveAll(m.opts.StoreDir); err != nil {
		return nil, docserrors.New(docserrors.ErrCodeStoreUnavailable, "remove damaged store", err)
	}
	return m.safeOpen(ctx)
}

// enterDegraded resets the ledger so every document is re-embedded by the
// next pass.
func (m *Manager) enterDegraded(reason string) {
	m.ledger.Reset()
	if err := m.ledger.Flush(); err != nil {
		m.logger.Error("ledger_reset_failed", slog.String("error", err.Error()))
	}
	m.stateMu.Lock()
	m.degradedReason = reason
	m.stateMu.Unlock()
	m.degraded.Store(true)
	m.logger.Warn("index_degraded", slog.String("reason", reason))
}

// reconcile repairs ledger and store drift left by an interrupted
// process. It is skipped while another process holds the writer lock.
func (m *Manager) reconcile(ctx context.Context) {
	acquired, err := m.lock.TryLock()
	if err != nil || !acquired {
		m.logger.Debug("reconcile_skipped_lock_busy")
		return
	}
	defer func() { _ = m.lock.Unlock() }()

	checker := NewConsistencyChecker(m.st, m.ledger, m.logger)
	ok, err := checker.QuickCheck(ctx)
	if err != nil {
		m.logger.Warn("reconcile_failed", slog.String("error", err.Error()))
		return
	}
	if !ok {
		m.logger.Warn("store_empty_resetting_ledger", slog.Int("entries", m.ledger.Len()))
		m.ledger.Reset()
		if err := m.ledger.Flush(); err != nil {
			m.logger.Error("ledger_reset_failed", slog.String("error", err.Error()))
		}
		return
	}

	result, err := checker.Check(ctx)
	if err != nil {
		m.logger.Warn("reconcile_failed", slog.String("error", err.Error()))
		return
	}
	if len(result.Inconsistencies) == 0 {
		return
	}
	if err := checker.Repair(ctx, result.Inconsistencies); err != nil {
		m.logger.Warn("reconcile_repair_failed", slog.String("error", err.Error()))
	}
}

// Store returns the store handle for readers.
func (m *Manager) Store() store.VectorStore {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.st
}

// Ledger returns the hash ledger.
func (m *Manager) Ledger() *ledger.Ledger { return m.ledger }

// Degraded reports whether the index was recreated empty and has not been
// successfully reindexed since.
func (m *Manager) Degraded() bool { return m.degraded.Load() }

// Projects summarizes indexed content per project, sorted by name.
func (m *Manager) Projects(ctx context.Context) ([]store.ProjectStats, error) {
	return m.Store().ProjectStats(ctx)
}

// Status reports the index state.
func (m *Manager) Status(ctx context.Context) (*Status, error) {
	n, err := m.Store().Count(ctx)
	if err != nil {
		return nil, err
	}
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return &Status{
		Degraded:       m.degraded.Load(),
		DegradedReason: m.degradedReason,
		Documents:      m.ledger.Len(),
		Chunks:         n,
		LastReindex:    m.lastReport,
	}, nil
}

// Close closes the store.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Store().Close()
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func recoverFatal(op string, err *error) {
	if r := recover(); r != nil {
		*err = docserrors.New(docserrors.ErrCodeCorruptIndex, fmt.Sprintf("%s: panic: %v", op, r), nil)
	}
}
