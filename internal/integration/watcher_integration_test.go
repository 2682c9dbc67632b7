package integration

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docsmcp/internal/config"
	"github.com/Aman-CERP/docsmcp/internal/index"
	"github.com/Aman-CERP/docsmcp/internal/watcher"
)

// startWatching watches every project of e and reindexes the projects of
// each emitted batch until the test ends. It returns the scopes it ran.
func startWatching(t *testing.T, e *env) func() [][]string {
	t.Helper()
	cfg := config.NewConfig()
	w, err := watcher.New(watcher.Options{
		DebounceWindow:  100 * time.Millisecond,
		IncludePatterns: cfg.IndexPatterns,
		IgnorePatterns:  cfg.ExcludePatterns,
	})
	require.NoError(t, err)
	for _, p := range e.projects {
		require.NoError(t, w.Add(p.Name, p.Path))
	}

	ctx, cancel := context.WithCancel(context.Background())
	var (
		mu     sync.Mutex
		scopes [][]string
		wg     sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = w.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case batch, ok := <-w.Events():
				if !ok {
					return
				}
				projects := watcher.Projects(batch)
				_, _ = e.orch.Run(ctx, index.ProjectScope(projects...))
				mu.Lock()
				scopes = append(scopes, projects)
				mu.Unlock()
			}
		}
	}()
	t.Cleanup(func() {
		cancel()
		wg.Wait()
		_ = w.Stop()
	})
	time.Sleep(100 * time.Millisecond)

	return func() [][]string {
		mu.Lock()
		defer mu.Unlock()
		return append([][]string(nil), scopes...)
	}
}

func documentCount(t *testing.T, e *env) int {
	t.Helper()
	st, err := e.index.Status(context.Background())
	if err != nil {
		return -1
	}
	return st.Documents
}

func TestWatcher_NewPageIsIndexed(t *testing.T) {
	// Given: an indexed corpus under watch
	e := newEnv(t)
	e.reindex(t)
	scopes := startWatching(t, e)

	// When: a page is added to hvplot
	writeFile(t, filepath.Join(e.root, "hvplot", "reference", "Violin.md"),
		"# Violin\n\nViolin plots show the distribution of a numeric column per category.\n")

	// Then: only hvplot is reindexed and the page becomes searchable
	require.Eventually(t, func() bool { return documentCount(t, e) == 5 }, 10*time.Second, 50*time.Millisecond)
	for _, s := range scopes() {
		assert.Equal(t, []string{"hvplot"}, s)
	}

	results := e.search(t, "Violin", nil)
	require.NotEmpty(t, results)
	assert.Equal(t, "reference/Violin.md", results[0].SourcePath)
}

func TestWatcher_DeletedPageDisappears(t *testing.T) {
	e := newEnv(t)
	e.reindex(t)
	startWatching(t, e)

	require.NoError(t, os.Remove(filepath.Join(e.root, "panel", "how_to", "editors.md")))

	require.Eventually(t, func() bool { return documentCount(t, e) == 3 }, 10*time.Second, 50*time.Millisecond)
	res := e.call(t, "get_document", map[string]any{
		"source_path": "how_to/editors.md",
		"project":     "panel",
	})
	assert.True(t, res.IsError)
}

func TestWatcher_ExcludedChangesAreIgnored(t *testing.T) {
	e := newEnv(t)
	e.reindex(t)
	scopes := startWatching(t, e)

	// Given: writes that fall outside the indexed set
	writeFile(t, filepath.Join(e.root, "panel", "_build", "html", "extra.md"), "# Build\n")
	writeFile(t, filepath.Join(e.root, "panel", "notes.log"), "scratch\n")

	// Then: no batch is emitted
	time.Sleep(500 * time.Millisecond)
	assert.Empty(t, scopes())
	assert.Equal(t, 4, documentCount(t, e))
}
