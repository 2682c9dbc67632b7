package index

import "sort"

// Scope is the set of projects a reindex covers. A nil Scope covers every
// project.
type Scope map[string]struct{}

// AllProjects returns the scope covering every project.
func AllProjects() Scope { return nil }

// ProjectScope returns a scope of the named projects.
func ProjectScope(names ...string) Scope {
	s := make(Scope, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// IsAll reports whether s covers every project.
func (s Scope) IsAll() bool { return s == nil }

// Contains reports whether project is in scope.
func (s Scope) Contains(project string) bool {
	if s == nil {
		return true
	}
	_, ok := s[project]
	return ok
}

// Names returns the scoped project names sorted, or nil for all.
func (s Scope) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// StrictSubsetOf reports whether s leaves out at least one of configured.
// With no configured projects any explicit scope counts as partial.
func (s Scope) StrictSubsetOf(configured []string) bool {
	if s == nil {
		return false
	}
	if len(configured) == 0 {
		return true
	}
	for _, p := range configured {
		if !s.Contains(p) {
			return true
		}
	}
	return false
}
