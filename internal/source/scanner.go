package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/docsmcp/internal/gitignore"
)

const (
	// gitignoreCacheSize bounds the cached per-directory matchers.
	gitignoreCacheSize = 1000

	// DefaultMaxFileSize skips files larger than 10MB.
	DefaultMaxFileSize = 10 * 1024 * 1024
)

// FileInfo is a discovered documentation file.
type FileInfo struct {
	// Path is relative to the repository root, slash separated.
	Path    string
	AbsPath string
	Size    int64
	// Folder is the configured documentation folder containing the file,
	// "" when the whole repository is scanned.
	Folder string
}

// ScanOptions configures one walk.
type ScanOptions struct {
	// RootDir is the repository root.
	RootDir string

	// Folders restricts the walk to these directories below RootDir.
	// Empty means RootDir itself.
	Folders []string

	// IncludePatterns select files, gitignore syntax, relative to RootDir.
	// Empty includes every file.
	IncludePatterns []string

	// ExcludePatterns prune files and directories.
	ExcludePatterns []string

	RespectGitignore bool

	// MaxFileSize in bytes (0 = DefaultMaxFileSize).
	MaxFileSize int64
}

// Scanner discovers documentation files.
type Scanner struct {
	gitignoreCache *lru.Cache[string, *gitignore.Matcher]
	cacheMu        sync.RWMutex
}

// NewScanner creates a Scanner.
func NewScanner() (*Scanner, error) {
	cache, err := lru.New[string, *gitignore.Matcher](gitignoreCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create gitignore cache: %w", err)
	}
	return &Scanner{gitignoreCache: cache}, nil
}

// Scan walks the configured folders and calls fn for every matching file in
// lexical order. A file reached through two overlapping folders is
// reported once, for the first folder. Missing folders are skipped.
func (s *Scanner) Scan(ctx context.Context, opts ScanOptions, fn func(FileInfo) error) error {
	absRoot, err := filepath.Abs(opts.RootDir)
	if err != nil {
		return fmt.Errorf("resolve root: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("root %s is not a directory", absRoot)
	}

	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	var include *gitignore.Matcher
	if len(opts.IncludePatterns) > 0 {
		include = gitignore.FromPatterns(opts.IncludePatterns...)
	}
	exclude := gitignore.FromPatterns(opts.ExcludePatterns...)

	folders := opts.Folders
	if len(folders) == 0 {
		folders = []string{""}
	}

	seen := make(map[string]struct{})
	for _, folder := range folders {
		start := filepath.Join(absRoot, filepath.FromSlash(folder))
		if _, err := os.Stat(start); errors.Is(err, fs.ErrNotExist) {
			continue
		}

		err := filepath.WalkDir(start, func(path string, d fs.DirEntry, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				return nil // Skip entries we can't access
			}

			rel, err := filepath.Rel(absRoot, path)
			if err != nil || rel == "." {
				return nil
			}
			rel = filepath.ToSlash(rel)

			if d.IsDir() {
				if exclude.Match(rel, true) || exclude.Match(rel+"/", true) ||
					(opts.RespectGitignore && s.isGitignored(rel, absRoot, true)) {
					return filepath.SkipDir
				}
				return nil
			}
			if d.Type()&fs.ModeSymlink != 0 {
				return nil
			}
			if _, dup := seen[rel]; dup {
				return nil
			}
			if (include != nil && !include.Match(rel, false)) || exclude.Match(rel, false) {
				return nil
			}
			if opts.RespectGitignore && s.isGitignored(rel, absRoot, false) {
				return nil
			}

			fi, err := d.Info()
			if err != nil || fi.Size() > maxSize || isBinaryFile(path) {
				return nil
			}

			seen[rel] = struct{}{}
			return fn(FileInfo{Path: rel, AbsPath: path, Size: fi.Size(), Folder: folder})
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// isBinaryFile looks for null bytes in the first 512 bytes. Notebooks are
// JSON and never contain them.
func isBinaryFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil {
		return false
	}
	return bytes.Contains(buf[:n], []byte{0})
}

// isGitignored applies the root .gitignore and every nested one on the way
// to relPath.
func (s *Scanner) isGitignored(relPath, absRoot string, isDir bool) bool {
	if m := s.getGitignoreMatcher(absRoot, ""); m != nil && m.Match(relPath, isDir) {
		return true
	}

	dir := relPath
	if !isDir {
		dir = filepath.ToSlash(filepath.Dir(relPath))
	}
	currentDir := absRoot
	currentBase := ""
	for _, part := range strings.Split(dir, "/") {
		if part == "." || part == "" {
			continue
		}
		currentDir = filepath.Join(currentDir, part)
		if currentBase == "" {
			currentBase = part
		} else {
			currentBase += "/" + part
		}
		if currentBase == relPath {
			break
		}
		if m := s.getGitignoreMatcher(currentDir, currentBase); m != nil && m.Match(relPath, isDir) {
			return true
		}
	}
	return false
}

func (s *Scanner) getGitignoreMatcher(dir, base string) *gitignore.Matcher {
	s.cacheMu.RLock()
	m, ok := s.gitignoreCache.Get(dir)
	s.cacheMu.RUnlock()
	if ok {
		return m
	}

	path := filepath.Join(dir, ".gitignore")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	m = gitignore.New()
	if err := m.AddFromFile(path, base); err != nil {
		return nil
	}

	s.cacheMu.Lock()
	s.gitignoreCache.Add(dir, m)
	s.cacheMu.Unlock()
	return m
}

// InvalidateGitignoreCache drops cached matchers, for example after a pull.
func (s *Scanner) InvalidateGitignoreCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.gitignoreCache.Purge()
}
