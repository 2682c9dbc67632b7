package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Aman-CERP/docsmcp/internal/gitignore"
)

type project struct {
	name    string
	root    string
	ignore  *gitignore.Matcher
	include *gitignore.Matcher
}

// Watcher watches the roots of local projects.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	debouncer *Debouncer
	opts      Options
	logger    *slog.Logger

	mu       sync.RWMutex
	projects []*project
	events   chan []FileEvent
	stopCh   chan struct{}
	stopped  bool
}

// New creates a Watcher. It fails when the platform offers no fsnotify
// backend.
func New(opts Options) (*Watcher, error) {
	opts = opts.WithDefaults()
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	return &Watcher{
		fsWatcher: fsw,
		debouncer: NewDebouncer(opts.DebounceWindow, opts.Logger),
		opts:      opts,
		logger:    opts.Logger,
		events:    make(chan []FileEvent, opts.EventBufferSize),
		stopCh:    make(chan struct{}),
	}, nil
}

// Add watches every non-ignored directory below root as project name.
func (w *Watcher) Add(name, root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve absolute path: %w", err)
	}
	p := &project{name: name, root: abs}
	w.loadIgnore(p)
	if len(w.opts.IncludePatterns) > 0 {
		p.include = gitignore.FromPatterns(w.opts.IncludePatterns...)
	}

	if err := w.addRecursive(p, abs); err != nil {
		return fmt.Errorf("watch %s: %w", name, err)
	}

	w.mu.Lock()
	w.projects = append(w.projects, p)
	w.mu.Unlock()
	return nil
}

// Run processes file system events until ctx is done or Stop is called.
func (w *Watcher) Run(ctx context.Context) error {
	go w.forward(ctx)
	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher_error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	p, rel := w.locate(event.Name)
	if p == nil {
		return
	}

	isDir := false
	if info, err := os.Stat(event.Name); err == nil {
		isDir = info.IsDir()
	}

	if filepath.Base(event.Name) == ".gitignore" {
		w.loadIgnore(p)
		return
	}
	if w.ignored(p, rel, isDir) {
		return
	}
	if isDir {
		if event.Op&fsnotify.Create != 0 {
			_ = w.addRecursive(p, event.Name)
		}
		return
	}
	if p.include != nil && !p.include.Match(rel, false) {
		return
	}

	var op Operation
	switch {
	case event.Op&fsnotify.Create != 0:
		op = OpCreate
	case event.Op&fsnotify.Write != 0:
		op = OpModify
	case event.Op&fsnotify.Remove != 0:
		op = OpDelete
	case event.Op&fsnotify.Rename != 0:
		op = OpRename
	default:
		return // chmod
	}

	w.debouncer.Add(FileEvent{Project: p.name, Path: rel, Operation: op, Timestamp: time.Now()})
}

// locate returns the project containing path and the slash-separated path
// relative to its root. The deepest root wins.
func (w *Watcher) locate(path string) (*project, string) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	var best *project
	var bestRel string
	for _, p := range w.projects {
		rel, err := filepath.Rel(p.root, path)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			continue
		}
		if best == nil || len(p.root) > len(best.root) {
			best, bestRel = p, filepath.ToSlash(rel)
		}
	}
	return best, bestRel
}

func (w *Watcher) forward(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case batch, ok := <-w.debouncer.Output():
			if !ok {
				return
			}
			w.emit(batch)
		}
	}
}

func (w *Watcher) emit(batch []FileEvent) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return
	}
	select {
	case w.events <- batch:
	default:
		w.logger.Warn("watch_batch_dropped", slog.Int("batch_size", len(batch)))
	}
}

func (w *Watcher) addRecursive(p *project, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		rel, _ := filepath.Rel(p.root, path)
		if rel != "." && w.ignored(p, filepath.ToSlash(rel), true) {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
}

func (w *Watcher) ignored(p *project, rel string, isDir bool) bool {
	if rel == ".git" || strings.HasPrefix(rel, ".git/") {
		return true
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return p.ignore.Match(rel, isDir)
}

// loadIgnore rebuilds the ignore matcher of p from the configured patterns
// and every .gitignore below its root.
func (w *Watcher) loadIgnore(p *project) {
	m := gitignore.FromPatterns(w.opts.IgnorePatterns...)
	_ = filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() != ".gitignore" {
			return nil
		}
		base, _ := filepath.Rel(p.root, filepath.Dir(path))
		if base == "." {
			base = ""
		}
		if err := m.AddFromFile(path, filepath.ToSlash(base)); err != nil {
			w.logger.Warn("gitignore_unreadable", slog.String("path", path), slog.String("error", err.Error()))
		}
		return nil
	})

	w.mu.Lock()
	p.ignore = m
	w.mu.Unlock()
}

// Events returns the channel of debounced batches. It is closed by Stop.
func (w *Watcher) Events() <-chan []FileEvent {
	return w.events
}

// Stop stops watching. Safe to call multiple times.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	w.debouncer.Stop()
	err := w.fsWatcher.Close()
	close(w.events)
	return err
}
