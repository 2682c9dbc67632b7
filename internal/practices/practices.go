// Package practices serves per-package best-practice guides. A guide is a
// markdown file named after its package, e.g. panel-material-ui.md,
// looked up across an ordered list of directories.
package practices

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	docserrors "github.com/Aman-CERP/docsmcp/internal/errors"
)

const guideExt = ".md"

// Guide is one best-practice document.
type Guide struct {
	Package string `json:"package"`
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Library looks guides up across dirs. A guide in an earlier directory
// shadows one of the same name in a later directory. Missing directories
// are skipped.
type Library struct {
	dirs []string
}

// New creates a library over dirs, highest precedence first.
func New(dirs ...string) *Library {
	kept := make([]string, 0, len(dirs))
	for _, d := range dirs {
		if d != "" {
			kept = append(kept, d)
		}
	}
	return &Library{dirs: kept}
}

// Dirs returns the searched directories in precedence order.
func (l *Library) Dirs() []string {
	out := make([]string, len(l.dirs))
	copy(out, l.dirs)
	return out
}

// Normalize maps a package name to its guide name. Underscored and
// hyphenated spellings name the same guide.
func Normalize(pkg string) string {
	return strings.ReplaceAll(strings.TrimSpace(pkg), "_", "-")
}

// Get returns the guide for pkg.
func (l *Library) Get(pkg string) (*Guide, error) {
	name := Normalize(pkg)
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return nil, docserrors.ValidationError(fmt.Sprintf("invalid package name %q", pkg), nil)
	}

	for _, dir := range l.dirs {
		path := filepath.Join(dir, name+guideExt)
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			return &Guide{Package: name, Path: path, Content: string(data)}, nil
		case errors.Is(err, fs.ErrNotExist):
			continue
		default:
			return nil, docserrors.New(docserrors.ErrCodeInternal, "read best practices "+path, err)
		}
	}

	available, err := l.List()
	if err != nil {
		return nil, err
	}
	listed := "none"
	if len(available) > 0 {
		listed = strings.Join(available, ", ")
	}
	return nil, docserrors.New(docserrors.ErrCodeBestPracticesNotFound,
		fmt.Sprintf("no best practices for package %q", pkg), nil).
		WithDetail("searched", strings.Join(l.dirs, string(os.PathListSeparator))).
		WithSuggestion("available packages: " + listed)
}

// List returns the sorted names of every available guide.
func (l *Library) List() ([]string, error) {
	seen := make(map[string]struct{})
	for _, dir := range l.dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, docserrors.New(docserrors.ErrCodeInternal, "list best practices "+dir, err)
		}
		for _, e := range entries {
			if e.IsDir() || filepath.Ext(e.Name()) != guideExt {
				continue
			}
			seen[strings.TrimSuffix(e.Name(), guideExt)] = struct{}{}
		}
	}

	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}
