// Package roundcache implements the content-hash round cache: an analysis
// fingerprint and a cascade round hash, one JSON entry per round on disk,
// with version-mismatch migration and an auto-maintained .gitignore
// entry.
package roundcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CurrentVersion is the on-disk CacheEntry format version. Bump this when
// the entry schema changes incompatibly; Get treats a mismatch as a miss
// and wipes the cache directory once.
const CurrentVersion = 1

// CacheEntry is the on-disk record for a single round's cached result.
type CacheEntry struct {
	ID         string          `json:"id"`
	Version    int             `json:"version"`
	Hash       string          `json:"hash"`
	RoundNumber int            `json:"roundNumber"`
	Model      string          `json:"model"`
	Result     json.RawMessage `json:"result"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// Cache reads and writes round-cache entries under a cache directory.
type Cache struct {
	dir             string
	repoRoot        string
	disableReads    bool
	migrationNeeded bool
}

// New returns a Cache rooted at dir (typically <repoRoot>/.handover/cache/rounds).
// When disableReads is true (the --no-cache flag), Get always misses but Set
// still writes, so the next normal run can hit cache.
func New(repoRoot, dir string, disableReads bool) *Cache {
	return &Cache{dir: dir, repoRoot: repoRoot, disableReads: disableReads}
}

// MigrationNeeded reports whether any Get on this Cache has encountered a
// version mismatch and wiped the cache directory; once set, it stays set.
func (c *Cache) MigrationNeeded() bool { return c.migrationNeeded }

func entryPath(dir string, round int) string {
	return filepath.Join(dir, fmt.Sprintf("round-%d.json", round))
}

// Get reports whether a cached result for (round, expectedHash) was found,
// decoding it into out (when non-nil) on a hit. An absent, hash-mismatched,
// unreadable or version-mismatched entry is a miss: (false, nil), never
// fatal.
func (c *Cache) Get(round int, expectedHash string, out interface{}) (bool, error) {
	if c.disableReads {
		return false, nil
	}

	data, err := os.ReadFile(entryPath(c.dir, round))
	if err != nil {
		return false, nil
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return false, nil
	}

	if entry.Version != CurrentVersion {
		c.migrationNeeded = true
		_ = os.RemoveAll(c.dir)
		return false, nil
	}

	if entry.Hash != expectedHash {
		return false, nil
	}

	if out != nil {
		if err := json.Unmarshal(entry.Result, out); err != nil {
			return false, nil
		}
	}

	return true, nil
}

// Set atomically writes a CacheEntry for the given round. The first
// successful write in a cache directory also ensures the repo's .gitignore
// covers the cache root.
func (c *Cache) Set(round int, hash string, result interface{}, model string) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}

	entry := CacheEntry{
		ID:          uuid.NewString(),
		Version:     CurrentVersion,
		Hash:        hash,
		RoundNumber: round,
		Model:       model,
		Result:      raw,
		CreatedAt:   time.Now().UTC(),
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return err
	}

	dest := entryPath(c.dir, round)
	tmp := dest + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, dest); err != nil {
		return err
	}

	return c.ensureGitignore()
}

func (c *Cache) ensureGitignore() error {
	if c.repoRoot == "" {
		return nil
	}
	relCacheRoot, err := filepath.Rel(c.repoRoot, filepath.Dir(filepath.Dir(c.dir)))
	if err != nil {
		relCacheRoot = ".handover/"
	}
	line := filepath.ToSlash(relCacheRoot)
	if !strings.HasSuffix(line, "/") {
		line += "/"
	}

	path := filepath.Join(c.repoRoot, ".gitignore")
	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	for _, l := range strings.Split(string(existing), "\n") {
		if strings.TrimSpace(l) == line {
			return nil
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if len(existing) > 0 && !strings.HasSuffix(string(existing), "\n") {
		if _, err := f.WriteString("\n"); err != nil {
			return err
		}
	}
	_, err = f.WriteString(line + "\n")
	return err
}

// FileContentHash maps a repository-relative path to the hex SHA-256 of its
// content.
type FileContentHash struct {
	Path string
	Hash string
}

// AnalysisFingerprint computes SHA-256 over a newline-joined, path-sorted
// listing of "{path}:{hex(sha256(content))}".
func AnalysisFingerprint(hashes []FileContentHash) string {
	sorted := append([]FileContentHash(nil), hashes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	var b strings.Builder
	for i, h := range sorted {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s:%s", h.Path, h.Hash)
	}
	return sha256Hex(b.String())
}

// roundHashInput is canonicalized before hashing: field order is fixed by
// struct tag order and json.Marshal's deterministic map-key sort, so the
// same logical input always serializes identically.
type roundHashInput struct {
	RoundNumber        int      `json:"roundNumber"`
	Model              string   `json:"model"`
	AnalysisFingerprint string  `json:"analysisFingerprint"`
	PriorRoundHashes   []string `json:"priorRoundHashes"`
}

// RoundHash computes SHA-256(canonical_json({roundNumber, model,
// analysisFingerprint, priorRoundHashes})).
func RoundHash(roundNumber int, model, analysisFingerprint string, priorRoundHashes []string) string {
	input := roundHashInput{
		RoundNumber:        roundNumber,
		Model:              model,
		AnalysisFingerprint: analysisFingerprint,
		PriorRoundHashes:   priorRoundHashes,
	}
	data, _ := json.Marshal(input)
	return sha256Hex(string(data))
}

// ComputeResultHash hashes a round's canonical JSON result, used to build
// priorRoundHashes for cascade sensitivity.
func ComputeResultHash(result interface{}) (string, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return "", err
	}
	return sha256Hex(string(data)), nil
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
