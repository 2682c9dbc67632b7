package gitignore

import (
	"path"
	"strings"
)

// pattern is one parsed gitignore line.
type pattern struct {
	text     string
	segments []string
	negate   bool
	dirOnly  bool
	// anchored patterns match from the base directory instead of at any
	// depth: a leading slash or an inner slash anchors.
	anchored bool
	base     string
}

// parsePattern parses line. ok is false for blank lines and comments.
func parsePattern(line, base string) (p pattern, ok bool) {
	escapedSpace := strings.HasSuffix(line, `\ `)
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return pattern{}, false
	}

	p.text, p.base = line, base
	switch {
	case strings.HasPrefix(line, `\#`), strings.HasPrefix(line, `\!`):
		line = line[1:]
		p.text = line
	case strings.HasPrefix(line, "!"):
		p.negate = true
		line = line[1:]
	}
	if escapedSpace && strings.HasSuffix(line, `\`) {
		line = strings.TrimSuffix(line, `\`) + " "
	}

	if strings.HasSuffix(line, "/") {
		p.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}
	if strings.HasPrefix(line, "/") {
		p.anchored = true
		line = strings.TrimPrefix(line, "/")
	}
	if strings.Contains(line, "/") && !strings.HasPrefix(line, "*") {
		p.anchored = true
	}

	for _, seg := range strings.Split(line, "/") {
		p.segments = append(p.segments, globSegment(seg))
	}
	return p, true
}

// globSegment rewrites gitignore syntax path.Match does not share.
func globSegment(seg string) string {
	if seg == "**" {
		return seg
	}
	seg = strings.ReplaceAll(seg, "**", "*")
	return strings.ReplaceAll(seg, "[!", "[^")
}

// matches reports whether rel, relative to the matcher root, is covered.
func (p pattern) matches(rel string, isDir bool) bool {
	if p.base != "" {
		switch {
		case rel == p.base:
			rel = path.Base(rel)
		case strings.HasPrefix(rel, p.base+"/"):
			rel = strings.TrimPrefix(rel, p.base+"/")
		default:
			return false
		}
	}
	parts := strings.Split(rel, "/")

	if p.anchored {
		if matchSegments(p.segments, parts) {
			return !p.dirOnly || isDir
		}
		if p.dirOnly {
			for i := 1; i < len(parts); i++ {
				if matchSegments(p.segments, parts[:i]) {
					return true
				}
			}
		}
		return false
	}

	if p.dirOnly {
		for i, part := range parts {
			if matchSegments(p.segments, []string{part}) {
				return i < len(parts)-1 || isDir
			}
		}
		return false
	}

	if matchSegments(p.segments, parts) {
		return true
	}
	for _, part := range parts {
		if matchSegments(p.segments, []string{part}) {
			return true
		}
	}
	return false
}

// matchSegments matches path segments against glob segments. "**" spans
// any number of segments; a trailing "**" needs at least one.
func matchSegments(globs, parts []string) bool {
	for len(globs) > 0 {
		if globs[0] == "**" {
			rest := globs[1:]
			if len(rest) == 0 {
				return len(parts) > 0
			}
			for i := 0; i <= len(parts); i++ {
				if matchSegments(rest, parts[i:]) {
					return true
				}
			}
			return false
		}
		if len(parts) == 0 {
			return false
		}
		if ok, err := path.Match(globs[0], parts[0]); err != nil || !ok {
			return false
		}
		globs, parts = globs[1:], parts[1:]
	}
	return len(parts) == 0
}
