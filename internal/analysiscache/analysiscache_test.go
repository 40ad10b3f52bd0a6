package analysiscache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadReturnsEmptyMapOnFirstRun(t *testing.T) {
	c := New(t.TempDir())
	m := c.Load()
	require.Empty(t, m)
}

func TestLoadReturnsEmptyMapOnCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "analysis.json"), []byte("not json"), 0o644))

	c := New(dir)
	m := c.Load()
	require.Empty(t, m)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	c := New(dir)
	hashes := map[string]string{"a.go": "h1", "b.go": "h2"}
	require.NoError(t, c.Save(hashes))

	reloaded := New(dir)
	require.Equal(t, hashes, reloaded.Load())
}

func TestGetChangedFilesEmptyOnFirstRun(t *testing.T) {
	c := New(t.TempDir())
	changed := c.GetChangedFiles(map[string]string{"a.go": "h1"})
	require.Empty(t, changed, "first run must not report every file as changed")
}

func TestGetChangedFilesDetectsModifiedAndNewFiles(t *testing.T) {
	dir := t.TempDir()
	c := New(dir)
	require.NoError(t, c.Save(map[string]string{"a.go": "h1", "b.go": "h2"}))

	reloaded := New(dir)
	reloaded.Load()
	changed := reloaded.GetChangedFiles(map[string]string{"a.go": "h1-new", "b.go": "h2", "c.go": "h3"})

	require.Equal(t, map[string]bool{"a.go": true, "c.go": true}, changed)
}

func TestIsIncrementalRequiresPriorRunAndPartialChange(t *testing.T) {
	dir := t.TempDir()
	c := New(dir)
	require.NoError(t, c.Save(map[string]string{"a.go": "h1", "b.go": "h2"}))

	reloaded := New(dir)
	reloaded.Load()
	current := map[string]string{"a.go": "h1-new", "b.go": "h2"}
	changed := reloaded.GetChangedFiles(current)

	require.True(t, reloaded.IsIncremental(current, changed))
}

func TestIsIncrementalFalseOnFirstRun(t *testing.T) {
	c := New(t.TempDir())
	current := map[string]string{"a.go": "h1"}
	changed := c.GetChangedFiles(current)

	require.False(t, c.IsIncremental(current, changed))
}
