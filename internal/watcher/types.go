package watcher

import (
	"log/slog"
	"sort"
	"time"
)

// Operation represents a file system operation type.
type Operation int

const (
	// OpCreate indicates a new file was created.
	OpCreate Operation = iota
	// OpModify indicates an existing file was modified.
	OpModify
	// OpDelete indicates a file was deleted.
	OpDelete
	// OpRename indicates a file was renamed away.
	OpRename
)

// String returns a human-readable representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is a change to one documentation file.
type FileEvent struct {
	Project string
	// Path is relative to the project root, slash separated.
	Path      string
	Operation Operation
	Timestamp time.Time
}

// Projects returns the distinct projects of a batch, sorted.
func Projects(batch []FileEvent) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, e := range batch {
		if _, ok := seen[e.Project]; ok {
			continue
		}
		seen[e.Project] = struct{}{}
		out = append(out, e.Project)
	}
	sort.Strings(out)
	return out
}

// Options configures the watcher.
type Options struct {
	// DebounceWindow is the quiet time before a batch is emitted.
	// Default: 2s
	DebounceWindow time.Duration

	// EventBufferSize is the number of batches buffered for the consumer.
	// Default: 16
	EventBufferSize int

	// IncludePatterns select documentation files (gitignore syntax).
	// Empty watches every file.
	IncludePatterns []string

	// IgnorePatterns are ignored in addition to each project's .gitignore.
	IgnorePatterns []string

	Logger *slog.Logger
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		DebounceWindow:  2 * time.Second,
		EventBufferSize: 16,
	}
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.DebounceWindow == 0 {
		o.DebounceWindow = defaults.DebounceWindow
	}
	if o.EventBufferSize == 0 {
		o.EventBufferSize = defaults.EventBufferSize
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}
