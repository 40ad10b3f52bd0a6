// Package packer implements the priority-tiered, budget-bounded context
// packer: given a scored file list and a token budget, it
// assigns each file a tier (full, signatures, skip) so the packed content
// fits the budget while preserving changed-file guarantees and producing
// byte-stable output across runs.
package packer

import (
	"fmt"
	"sort"
	"strings"
)

// Tier is the packing tier assigned to a file.
type Tier string

const (
	TierFull       Tier = "full"
	TierSignatures Tier = "signatures"
	TierSkip       Tier = "skip"
)

// OversizedThresholdTokens is the per-file token ceiling above which a file
// is never emitted at TierFull; it gets a signature summary instead.
const OversizedThresholdTokens = 6000

// Estimator estimates the token count of a string. Implementations are
// injected by the caller; packer never assumes a specific tokenizer.
type Estimator func(s string) int

// DefaultEstimator approximates 1 token per 4 characters, matching the
// provider layer's own rough estimate. The real estimator is injected by
// the caller; this is only the fallback when none is supplied.
func DefaultEstimator(s string) int {
	n := len(s) / 4
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// ContentFetcher lazily reads a file's full source content.
type ContentFetcher func() ([]byte, error)

// ScoredFile is one candidate for packing, pre-sorted by the caller by
// importance descending (ties broken by path).
type ScoredFile struct {
	Path       string
	Size       int64
	Importance float64
	Fetch      ContentFetcher
	Changed    bool
}

// Budget bounds the packer's output.
type Budget struct {
	MaxTokens        int
	ReserveForPrompt int
}

// Effective returns the usable token budget after reserving prompt headroom.
func (b Budget) Effective() int {
	n := b.MaxTokens - b.ReserveForPrompt
	if n < 0 {
		return 0
	}
	return n
}

// SignatureBuilder produces a deterministic signature summary for a file
// when an AST-aware summary is available. It returns ok=false when the
// caller has no AST summary for this path/language, in which case the
// packer falls back to synthesizing one from the raw source.
type SignatureBuilder func(path string, content []byte) (summary string, ok bool)

// PackedFile is one file's entry in the packed output.
type PackedFile struct {
	Path    string
	Tier    Tier
	Tokens  int
	Content string
}

// PackedMetadata carries summary counts about the packing decision.
type PackedMetadata struct {
	AnalyzedCount int
	IgnoredCount  int
}

// PackedContext is the packer's complete output.
type PackedContext struct {
	Files       []PackedFile
	TotalTokens int
	Metadata    PackedMetadata
}

// Options configures a single Pack call.
type Options struct {
	Budget        Budget
	Estimator     Estimator
	ChangedFiles  map[string]bool
	BuildSignature SignatureBuilder
}

// fileContent memoizes a fetched file's bytes so each candidate is read at
// most once across the fast-path check and the tiering passes.
type fileContent struct {
	bytes []byte
	err   error
	read  bool
}

// Pack assigns a tier to every file in `files` so the packed output fits
// within opts.Budget, honoring changed-file priority and the oversized-file
// policy, and returns a result with deterministic (path-sorted) ordering.
// One case exceeds the budget: a changed file whose signature summary does
// not fit the remaining budget is still emitted at signatures, so
// TotalTokens can then be larger than the budget.
func Pack(files []ScoredFile, opts Options) (*PackedContext, error) {
	estimator := opts.Estimator
	if estimator == nil {
		estimator = DefaultEstimator
	}
	budget := opts.Budget.Effective()

	cache := make(map[string]*fileContent, len(files))
	get := func(f ScoredFile) *fileContent {
		if c, ok := cache[f.Path]; ok {
			return c
		}
		c := &fileContent{}
		if f.Fetch != nil {
			c.bytes, c.err = f.Fetch()
		}
		c.read = true
		cache[f.Path] = c
		return c
	}

	fullTokens := make(map[string]int, len(files))
	for _, f := range files {
		c := get(f)
		if c.err != nil {
			fullTokens[f.Path] = 0
			continue
		}
		fullTokens[f.Path] = estimator(string(c.bytes))
	}

	// Fast path: everything fits as full and no file is oversized.
	sum := 0
	anyOversized := false
	for _, t := range fullTokens {
		sum += t
		if t > OversizedThresholdTokens {
			anyOversized = true
		}
	}
	if sum <= budget && !anyOversized {
		result := &PackedContext{Metadata: PackedMetadata{AnalyzedCount: len(files)}}
		for _, f := range files {
			c := get(f)
			result.Files = append(result.Files, PackedFile{
				Path: f.Path, Tier: TierFull, Tokens: fullTokens[f.Path], Content: string(c.bytes),
			})
		}
		result.TotalTokens = sum
		sortPacked(result.Files)
		return result, nil
	}

	assigned := make(map[string]PackedFile, len(files))
	remaining := budget

	// Changed-file priority: promote to full when it fits; otherwise it
	// still gets a pass at signatures below (never forced to skip).
	if len(opts.ChangedFiles) > 0 {
		for _, f := range files {
			if !opts.ChangedFiles[f.Path] {
				continue
			}
			tok := fullTokens[f.Path]
			if tok <= OversizedThresholdTokens && tok <= remaining {
				c := get(f)
				assigned[f.Path] = PackedFile{Path: f.Path, Tier: TierFull, Tokens: tok, Content: string(c.bytes)}
				remaining -= tok
			}
		}
	}

	// Greedy tier assignment in importance order.
	for _, f := range files {
		if _, done := assigned[f.Path]; done {
			continue
		}

		tok := fullTokens[f.Path]
		oversized := tok > OversizedThresholdTokens

		if !oversized && tok <= remaining {
			c := get(f)
			assigned[f.Path] = PackedFile{Path: f.Path, Tier: TierFull, Tokens: tok, Content: string(c.bytes)}
			remaining -= tok
			continue
		}

		sigContent := buildSignature(f, get(f), opts.BuildSignature)
		sigTokens := estimator(sigContent)
		if sigTokens <= remaining {
			assigned[f.Path] = PackedFile{Path: f.Path, Tier: TierSignatures, Tokens: sigTokens, Content: sigContent}
			remaining -= sigTokens
			continue
		}

		if opts.ChangedFiles[f.Path] {
			// Changed files never drop to skip, even under budget pressure:
			// keep signatures and let the total exceed budget by this file's
			// share rather than silently lose it.
			assigned[f.Path] = PackedFile{Path: f.Path, Tier: TierSignatures, Tokens: sigTokens, Content: sigContent}
			remaining -= sigTokens
			continue
		}

		assigned[f.Path] = PackedFile{Path: f.Path, Tier: TierSkip, Tokens: 0, Content: ""}
	}

	result := &PackedContext{}
	total := 0
	ignored := 0
	for _, f := range files {
		pf := assigned[f.Path]
		result.Files = append(result.Files, pf)
		total += pf.Tokens
		if pf.Tier == TierSkip {
			ignored++
		}
	}
	result.TotalTokens = total
	result.Metadata = PackedMetadata{AnalyzedCount: len(files), IgnoredCount: ignored}
	sortPacked(result.Files)
	return result, nil
}

func sortPacked(files []PackedFile) {
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
}

// sectionMarker makes an oversized file's signature block re-traceable to
// its source path even once concatenated into a larger prompt.
const sectionMarker = "// ==== signature:"

func buildSignature(f ScoredFile, content *fileContent, build SignatureBuilder) string {
	if content.err != nil || content.bytes == nil {
		return fmt.Sprintf("%s %s ====\n(content unavailable)", sectionMarker, f.Path)
	}

	if build != nil {
		if summary, ok := build(f.Path, content.bytes); ok {
			return fmt.Sprintf("%s %s ====\n%s", sectionMarker, f.Path, summary)
		}
	}

	return fmt.Sprintf("%s %s ====\n%s", sectionMarker, f.Path, synthesizeFromSource(content.bytes))
}

// synthesizeFromSource is the non-AST fallback: the file's first 20
// non-blank lines.
func synthesizeFromSource(content []byte) string {
	lines := strings.Split(string(content), "\n")
	var kept []string
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		kept = append(kept, l)
		if len(kept) == 20 {
			break
		}
	}
	return strings.Join(kept, "\n")
}
