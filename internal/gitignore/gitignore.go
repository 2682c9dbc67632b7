package gitignore

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Matcher is an ordered set of patterns. The last matching pattern decides,
// so a later negation re-includes a path. Safe for concurrent use.
type Matcher struct {
	mu       sync.RWMutex
	patterns []pattern
}

// New creates an empty Matcher.
func New() *Matcher {
	return &Matcher{}
}

// FromPatterns returns a matcher holding patterns, all relative to the root.
func FromPatterns(patterns ...string) *Matcher {
	m := New()
	for _, p := range patterns {
		m.AddPattern(p)
	}
	return m
}

// AddPattern adds a pattern relative to the root.
func (m *Matcher) AddPattern(line string) {
	m.AddPatternWithBase(line, "")
}

// AddPatternWithBase adds a pattern that only applies below base, a
// slash-separated directory relative to the root.
func (m *Matcher) AddPatternWithBase(line, base string) {
	p, ok := parsePattern(line, base)
	if !ok {
		return
	}
	m.mu.Lock()
	m.patterns = append(m.patterns, p)
	m.mu.Unlock()
}

// AddFromFile adds every pattern of a .gitignore file located in base.
func (m *Matcher) AddFromFile(path, base string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open gitignore file: %w", err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		m.AddPatternWithBase(scanner.Text(), base)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read gitignore file: %w", err)
	}
	return nil
}

// Len returns the number of patterns.
func (m *Matcher) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.patterns)
}

// Match reports whether rel is ignored.
func (m *Matcher) Match(rel string, isDir bool) bool {
	rel = filepath.ToSlash(rel)

	m.mu.RLock()
	defer m.mu.RUnlock()

	ignored := false
	for _, p := range m.patterns {
		if p.matches(rel, isDir) {
			ignored = !p.negate
		}
	}
	return ignored
}
