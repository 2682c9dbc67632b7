// Package ledger persists the content hash of every committed document so
// unchanged documents are skipped on the next ingestion pass.
package ledger

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const fileVersion = 1

// Record is the ledger entry of one committed document.
type Record struct {
	Hash      string    `json:"hash"`
	IndexedAt time.Time `json:"indexed_at"`
	Project   string    `json:"project"`
}

type fileFormat struct {
	Version int               `json:"version"`
	Entries map[string]Record `json:"entries"`
}

// Ledger is an in-memory map from document ID to Record, loaded fully at
// open and written back atomically by Flush. It is safe for concurrent use.
type Ledger struct {
	path   string
	logger *slog.Logger

	mu      sync.RWMutex
	entries map[string]Record
	dirty   bool
}

// Open loads the ledger at path. A missing or unreadable file yields an
// empty ledger; corruption is logged, never returned.
func Open(path string, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Ledger{path: path, logger: logger, entries: make(map[string]Record)}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return l
	case err != nil:
		logger.Warn("ledger_unreadable", slog.String("path", path), slog.String("error", err.Error()))
		return l
	}

	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil || f.Entries == nil {
		reason := "missing entries"
		if err != nil {
			reason = err.Error()
		}
		logger.Warn("ledger_corrupt_starting_empty",
			slog.String("path", path),
			slog.String("error", reason))
		return l
	}
	l.entries = f.Entries
	return l
}

// Path returns the ledger file path.
func (l *Ledger) Path() string { return l.path }

// Get returns the record of id.
func (l *Ledger) Get(id string) (Record, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, ok := l.entries[id]
	return r, ok
}

// Set records that id was committed with hash.
func (l *Ledger) Set(id, project, hash string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[id] = Record{Hash: hash, IndexedAt: time.Now().UTC(), Project: project}
	l.dirty = true
}

// Remove deletes the entry of id.
func (l *Ledger) Remove(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries[id]; ok {
		delete(l.entries, id)
		l.dirty = true
	}
}

// AllIDs returns every recorded document ID.
func (l *Ledger) AllIDs() map[string]struct{} {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := make(map[string]struct{}, len(l.entries))
	for id := range l.entries {
		ids[id] = struct{}{}
	}
	return ids
}

// IDsForProjects returns recorded IDs belonging to the given projects,
// sorted. A nil set means every project.
func (l *Ledger) IDsForProjects(projects map[string]struct{}) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var ids []string
	for id, r := range l.entries {
		if projects != nil {
			if _, ok := projects[r.Project]; !ok {
				continue
			}
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Reset drops every entry. The change is persisted by the next Flush.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make(map[string]Record)
	l.dirty = true
}

// Snapshot returns a copy of all entries.
func (l *Ledger) Snapshot() map[string]Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]Record, len(l.entries))
	for k, v := range l.entries {
		out[k] = v
	}
	return out
}

// Replace swaps in entries, typically a Snapshot taken before a failed write.
func (l *Ledger) Replace(entries map[string]Record) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = entries
	l.dirty = true
}

// Flush writes the ledger to disk with write-temp-then-rename. The file
// on disk is either the previous version or the new one, never partial.
func (l *Ledger) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.dirty {
		if _, err := os.Stat(l.path); err == nil {
			return nil
		}
	}

	data, err := json.MarshalIndent(fileFormat{Version: fileVersion, Entries: l.entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	if err := writeAtomic(l.path, data); err != nil {
		return err
	}
	l.dirty = false
	return nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create ledger directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp ledger: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return fmt.Errorf("rename ledger: %w", err)
	}
	return nil
}
