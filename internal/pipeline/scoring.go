package pipeline

import (
	"path"
	"strings"

	"github.com/handoverhq/handover/internal/analysis"
)

// importanceOf is the default file-importance heuristic. A richer scorer
// can be layered on upstream; this is a deterministic stand-in so the packer has
// something to rank by when no richer signal is wired in. Shallower paths,
// manifests, docs, entry points, and longer files score higher; test files
// score lower. Ties are broken by path, matching the packer's own
// stable-sort contract.
func importanceOf(entry analysis.FileEntry) float64 {
	score := 100.0

	depth := strings.Count(entry.Path, "/")
	score -= float64(depth) * 8

	base := path.Base(entry.Path)
	switch {
	case isManifestBase(base):
		score += 40
	case isDocBase(base):
		score += 25
	case base == "main.go", base == "index.ts", base == "index.js", base == "__init__.py", base == "app.py":
		score += 30
	}

	if isTestPath(entry.Path) {
		score -= 20
	}

	if entry.Lines > 0 {
		score += clampLog(entry.Lines)
	}

	return score
}

func isManifestBase(base string) bool {
	switch base {
	case "go.mod", "package.json", "requirements.txt", "Pipfile", "Cargo.toml", "pom.xml", "build.gradle", "Gemfile":
		return true
	}
	return false
}

func isDocBase(base string) bool {
	upper := strings.ToUpper(base)
	return strings.HasPrefix(upper, "README") || strings.HasPrefix(upper, "CONTRIBUTING") || strings.HasPrefix(upper, "CHANGELOG")
}

func isTestPath(p string) bool {
	lower := strings.ToLower(p)
	return strings.Contains(lower, "_test.") || strings.Contains(lower, "/test/") || strings.Contains(lower, ".test.") || strings.Contains(lower, ".spec.")
}

// clampLog gives larger files a small, bounded importance boost so
// substantial modules aren't drowned out by many tiny ones, without
// letting a single huge file dominate ordering.
func clampLog(lines int) float64 {
	v := 0.0
	n := lines
	for n > 1 {
		n /= 2
		v++
	}
	if v > 12 {
		v = 12
	}
	return v
}
