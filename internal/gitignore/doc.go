// Package gitignore matches slash-separated paths against gitignore-style
// patterns (https://git-scm.com/docs/gitignore).
//
// The same matcher serves three callers: the include and exclude globs of
// the configuration, the .gitignore files found in documentation
// repositories, and the reference page patterns of a project.
//
//	m := gitignore.FromPatterns("**/_build/**", "*.ipynb", "!keep.ipynb")
//	m.Match("doc/_build/html/index.md", false) // true
//
// Patterns from a nested .gitignore apply below its directory:
//
//	_ = m.AddFromFile("/repo/doc/.gitignore", "doc")
package gitignore
