package packer

import (
	"strings"
	"testing"
)

func charEstimator(s string) int { return len(s) }

func fetcher(content string) ContentFetcher {
	return func() ([]byte, error) { return []byte(content), nil }
}

func TestPackFastPathKeepsEverythingFullWhenUnderBudget(t *testing.T) {
	files := []ScoredFile{
		{Path: "a.go", Importance: 2, Fetch: fetcher("package a")},
		{Path: "b.go", Importance: 1, Fetch: fetcher("package b")},
	}
	result, err := Pack(files, Options{Budget: Budget{MaxTokens: 10_000}, Estimator: charEstimator})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, f := range result.Files {
		if f.Tier != TierFull {
			t.Errorf("expected %s to be full, got %s", f.Path, f.Tier)
		}
	}
	if result.Metadata.IgnoredCount != 0 {
		t.Errorf("expected nothing ignored, got %d", result.Metadata.IgnoredCount)
	}
}

func TestPackResultIsSortedByPath(t *testing.T) {
	files := []ScoredFile{
		{Path: "z.go", Importance: 1, Fetch: fetcher("z")},
		{Path: "a.go", Importance: 1, Fetch: fetcher("a")},
	}
	result, _ := Pack(files, Options{Budget: Budget{MaxTokens: 10_000}, Estimator: charEstimator})
	if result.Files[0].Path != "a.go" || result.Files[1].Path != "z.go" {
		t.Errorf("expected sorted output, got %v", result.Files)
	}
}

func TestPackFallsBackToSignaturesUnderBudgetPressure(t *testing.T) {
	files := []ScoredFile{
		{Path: "important.go", Importance: 2, Fetch: fetcher(strings.Repeat("x", 100))},
		{Path: "minor.go", Importance: 1, Fetch: fetcher(strings.Repeat("y\n", 50))},
	}
	// Budget fits the important file in full (100), leaving 80: too little
	// for minor.go in full (100) but enough for its 20-line signature (72).
	result, err := Pack(files, Options{
		Budget:    Budget{MaxTokens: 180},
		Estimator: charEstimator,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	byPath := map[string]PackedFile{}
	for _, f := range result.Files {
		byPath[f.Path] = f
	}
	if byPath["important.go"].Tier != TierFull {
		t.Errorf("expected important.go full, got %s", byPath["important.go"].Tier)
	}
	if byPath["minor.go"].Tier != TierSignatures {
		t.Errorf("expected minor.go demoted to signatures under budget pressure, got %s", byPath["minor.go"].Tier)
	}
}

func TestPackPromotesChangedFilesToFullWhenTheyFit(t *testing.T) {
	// Budget fits exactly one 60-char file in full. high-importance.go
	// outranks changed.go, but the changed-file priority pass runs first,
	// so changed.go must win the only full slot.
	files := []ScoredFile{
		{Path: "high-importance.go", Importance: 10, Fetch: fetcher(strings.Repeat("x", 60))},
		{Path: "changed.go", Importance: 1, Fetch: fetcher(strings.Repeat("y", 60)), Changed: true},
	}
	result, err := Pack(files, Options{
		Budget:       Budget{MaxTokens: 70},
		Estimator:    charEstimator,
		ChangedFiles: map[string]bool{"changed.go": true},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	byPath := map[string]PackedFile{}
	for _, f := range result.Files {
		byPath[f.Path] = f
	}
	if byPath["changed.go"].Tier != TierFull {
		t.Errorf("expected changed.go promoted to full despite lower importance, got %s", byPath["changed.go"].Tier)
	}
	if byPath["high-importance.go"].Tier == TierFull {
		t.Errorf("expected only one file to fit full under this budget, got high-importance.go also full")
	}
}

func TestPackNeverDropsChangedFilesToSkip(t *testing.T) {
	files := []ScoredFile{
		{Path: "a.go", Importance: 5, Fetch: fetcher(strings.Repeat("a", 1000))},
		{Path: "changed.go", Importance: 1, Fetch: fetcher(strings.Repeat("c", 1000)), Changed: true},
	}
	result, err := Pack(files, Options{
		Budget:       Budget{MaxTokens: 50},
		Estimator:    charEstimator,
		ChangedFiles: map[string]bool{"changed.go": true},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, f := range result.Files {
		if f.Path == "changed.go" && f.Tier == TierSkip {
			t.Error("changed.go must never be skipped, even under severe budget pressure")
		}
	}
}

func TestPackOversizedFileNeverGetsFullTier(t *testing.T) {
	// A budget smaller than the oversized file's own token count forces the
	// tiering pass (not the all-fits fast path).
	big := strings.Repeat("x", (OversizedThresholdTokens+1)*4)
	files := []ScoredFile{{Path: "huge.go", Importance: 1, Fetch: fetcher(big)}}
	result, err := Pack(files, Options{Budget: Budget{MaxTokens: OversizedThresholdTokens}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Files[0].Tier == TierFull {
		t.Error("expected oversized file to never be packed at full tier")
	}
}

func TestPackUsesSignatureBuilderWhenAvailable(t *testing.T) {
	files := []ScoredFile{
		{Path: "a.go", Importance: 1, Fetch: fetcher(strings.Repeat("a", 1000))},
	}
	result, err := Pack(files, Options{
		Budget:    Budget{MaxTokens: 60},
		Estimator: charEstimator,
		BuildSignature: func(path string, content []byte) (string, bool) {
			return "func A()", true
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result.Files[0].Content, "func A()") {
		t.Errorf("expected signature builder output embedded, got %q", result.Files[0].Content)
	}
}

func TestBudgetEffectiveClampsAtZero(t *testing.T) {
	b := Budget{MaxTokens: 100, ReserveForPrompt: 200}
	if b.Effective() != 0 {
		t.Errorf("expected 0, got %d", b.Effective())
	}
}

func TestDefaultEstimatorApproximatesFourCharsPerToken(t *testing.T) {
	if DefaultEstimator("") != 0 {
		t.Error("expected 0 tokens for empty string")
	}
	if DefaultEstimator("abc") != 1 {
		t.Error("expected at least 1 token for non-empty short string")
	}
	if DefaultEstimator(strings.Repeat("a", 400)) != 100 {
		t.Errorf("expected 100 tokens for 400 chars, got %d", DefaultEstimator(strings.Repeat("a", 400)))
	}
}
