// Package analysiscache persists the per-file content-hash map between
// runs so the pipeline can compute the changed-file set.
package analysiscache

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Cache is the incremental analysis cache: path -> content hash.
type Cache struct {
	path     string
	previous map[string]string
}

// New returns a Cache backed by <dir>/analysis.json.
func New(dir string) *Cache {
	return &Cache{path: filepath.Join(dir, "analysis.json")}
}

// Load reads the previous run's hash map, returning an empty map (not an
// error) on first run or on a corrupt file; an unreadable cache entry is
// treated as a miss.
func (c *Cache) Load() map[string]string {
	data, err := os.ReadFile(c.path)
	if err != nil {
		c.previous = map[string]string{}
		return c.previous
	}

	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil || m == nil {
		m = map[string]string{}
	}
	c.previous = m
	return m
}

// GetChangedFiles returns every path in currentHashes that is absent from
// the previous map or whose hash differs. On a genuine first run (the
// previous map is empty), it returns an empty set so the run is not
// mislabeled incremental.
func (c *Cache) GetChangedFiles(currentHashes map[string]string) map[string]bool {
	if c.previous == nil {
		c.Load()
	}

	changed := make(map[string]bool)
	if len(c.previous) == 0 {
		return changed
	}

	for path, hash := range currentHashes {
		if prev, ok := c.previous[path]; !ok || prev != hash {
			changed[path] = true
		}
	}
	return changed
}

// IsIncremental reports whether a prior run existed and only a proper
// subset of files changed.
func (c *Cache) IsIncremental(currentHashes map[string]string, changed map[string]bool) bool {
	return len(c.previous) > 0 && len(changed) < len(currentHashes)
}

// Save atomically writes currentHashes as the new persisted map.
func (c *Cache) Save(currentHashes map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(currentHashes, "", "  ")
	if err != nil {
		return err
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, c.path)
}
