package ledger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TS01: Entries survive a flush and reopen
func TestLedger_FlushAndReopen(t *testing.T) {
	// Given: a ledger with two entries
	path := filepath.Join(t.TempDir(), "hash_ledger.json")
	l := Open(path, nil)
	l.Set("panel___a_md", "panel", "h1")
	l.Set("hvplot___b_md", "hvplot", "h2")

	// When: flushed and reopened
	require.NoError(t, l.Flush())
	reopened := Open(path, nil)

	// Then
	r, ok := reopened.Get("panel___a_md")
	require.True(t, ok)
	assert.Equal(t, "h1", r.Hash)
	assert.Equal(t, "panel", r.Project)
	assert.False(t, r.IndexedAt.IsZero())
	assert.Equal(t, 2, reopened.Len())
}

// TS02: Missing or corrupt files are an empty ledger
func TestLedger_MissingOrCorrupt(t *testing.T) {
	dir := t.TempDir()

	missing := Open(filepath.Join(dir, "none.json"), nil)
	assert.Zero(t, missing.Len())

	for name, content := range map[string]string{
		"garbage.json":   "{not json",
		"truncated.json": `{"version":1,"entries":{"a":{"hash":"x"`,
		"empty.json":     "",
		"wrong.json":     `[1,2,3]`,
	} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		l := Open(path, nil)
		assert.Zero(t, l.Len(), name)
	}
}

func TestLedger_RemoveAndProjects(t *testing.T) {
	l := Open(filepath.Join(t.TempDir(), "l.json"), nil)
	l.Set("b", "panel", "1")
	l.Set("a", "panel", "1")
	l.Set("c", "hvplot", "1")

	assert.Equal(t, []string{"a", "b"}, l.IDsForProjects(map[string]struct{}{"panel": {}}))
	assert.Equal(t, []string{"a", "b", "c"}, l.IDsForProjects(nil))

	l.Remove("a")
	l.Remove("missing")
	_, ok := l.Get("a")
	assert.False(t, ok)
	assert.Len(t, l.AllIDs(), 2)
}

func TestLedger_SnapshotReplace(t *testing.T) {
	l := Open(filepath.Join(t.TempDir(), "l.json"), nil)
	l.Set("a", "p", "1")
	snap := l.Snapshot()

	l.Set("a", "p", "2")
	l.Set("b", "p", "3")
	l.Replace(snap)

	r, _ := l.Get("a")
	assert.Equal(t, "1", r.Hash)
	assert.Equal(t, 1, l.Len())
}

func TestLedger_FlushLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	l := Open(filepath.Join(dir, "hash_ledger.json"), nil)
	l.Set("a", "p", "1")
	require.NoError(t, l.Flush())
	l.Reset()
	require.NoError(t, l.Flush())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "hash_ledger.json", entries[0].Name())
	assert.Zero(t, Open(filepath.Join(dir, "hash_ledger.json"), nil).Len())
}
