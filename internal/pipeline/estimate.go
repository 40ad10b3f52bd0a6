package pipeline

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/handoverhq/handover/internal/analysis"
	"github.com/handoverhq/handover/internal/config"
	"github.com/handoverhq/handover/internal/packer"
)

// PackSnapshot scores and packs snap's files under cfg's context-window
// settings. It performs no cache I/O, so it is safe to
// call from a read-only path (cmd/estimate.go) as well as from the
// pack-context pipeline step.
func PackSnapshot(rootDir string, cfg *config.Config, snap *analysis.Snapshot, changed map[string]bool) (*packer.PackedContext, error) {
	var scored []packer.ScoredFile
	for _, entry := range snap.FileTree.DirectoryTree {
		if entry.Type != analysis.EntryFile {
			continue
		}
		entry := entry
		scored = append(scored, packer.ScoredFile{
			Path:       entry.Path,
			Size:       entry.Size,
			Importance: importanceOf(entry),
			Changed:    changed[entry.Path],
			Fetch: func() ([]byte, error) {
				return os.ReadFile(filepath.Join(rootDir, entry.Path))
			},
		})
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Importance != scored[j].Importance {
			return scored[i].Importance > scored[j].Importance
		}
		return scored[i].Path < scored[j].Path
	})

	maxTokens := cfg.ContextWindow.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 150_000
	}
	boosted := boostFiles(scored, cfg.ContextWindow.Pin, cfg.ContextWindow.Boost)

	return packer.Pack(boosted, packer.Options{
		Budget:       packer.Budget{MaxTokens: maxTokens, ReserveForPrompt: 4000},
		ChangedFiles: changed,
		BuildSignature: func(path string, content []byte) (string, bool) {
			for _, f := range snap.AST.Files {
				if f.Path == path {
					return renderSignature(f), true
				}
			}
			return "", false
		},
	})
}

// EstimatedModuleCount is a rough pre-round-2 guess at how many modules
// round 5's fan-out will discover, used only to size a cost estimate
// before any round has actually run. One module per ~20 files, clamped to
// a sane range.
func EstimatedModuleCount(snap *analysis.Snapshot) int {
	n := snap.FileTree.TotalFiles / 20
	if n < 1 {
		n = 1
	}
	if n > 20 {
		n = 20
	}
	return n
}
