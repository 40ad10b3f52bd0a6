package compressor

import (
	"testing"
)

func charEstimate(s string) int { return len(s) }

func TestCompressFitsWithinBudgetUntouched(t *testing.T) {
	out := RoundOutput{Modules: []string{"auth", "billing"}}
	rc := Compress(1, out, 10_000, charEstimate)

	if len(rc.Modules) != 2 {
		t.Fatalf("expected both modules kept, got %d", len(rc.Modules))
	}
}

func TestCompressDropsOpenQuestionsFirst(t *testing.T) {
	out := RoundOutput{
		Modules:       []string{"auth"},
		OpenQuestions: []string{"why does this exist"},
	}
	budget := charEstimate(render(RoundContext{RoundNumber: 1, Modules: out.Modules}))
	rc := Compress(1, out, budget, charEstimate)

	if len(rc.OpenQuestions) != 0 {
		t.Errorf("expected open questions dropped, got %v", rc.OpenQuestions)
	}
	if len(rc.Modules) != 1 {
		t.Errorf("expected modules kept, got %v", rc.Modules)
	}
}

func TestCompressKeepsAtLeastOneFinding(t *testing.T) {
	out := RoundOutput{
		Findings: []string{"finding one is quite long indeed", "finding two", "finding three"},
	}
	rc := Compress(1, out, 1, charEstimate)

	if len(rc.Findings) != 1 {
		t.Fatalf("expected exactly one finding retained by the minimum-one rule, got %d", len(rc.Findings))
	}
}

func TestCompressTrimsInFixedOrder(t *testing.T) {
	out := RoundOutput{
		Modules:       []string{"auth", "billing", "search"},
		Relationships: []string{"auth -> billing"},
		Findings:      []string{"one finding"},
		OpenQuestions: []string{"question one", "question two"},
	}

	// Budget large enough for everything except open questions.
	withoutOQ := render(RoundContext{RoundNumber: 1, Modules: out.Modules, Relationships: out.Relationships, Findings: out.Findings})
	rc := Compress(1, out, charEstimate(withoutOQ), charEstimate)

	if len(rc.OpenQuestions) != 0 {
		t.Errorf("expected open questions dropped under this budget, got %v", rc.OpenQuestions)
	}
	if len(rc.Relationships) != 1 || len(rc.Modules) != 3 {
		t.Errorf("expected relationships and modules untouched, got rel=%v mod=%v", rc.Relationships, rc.Modules)
	}
}

func TestRenderIsStableAndIncludesRoundNumber(t *testing.T) {
	rc := RoundContext{RoundNumber: 3, Modules: []string{"auth"}}
	s := Render(rc)
	if s != render(rc) {
		t.Error("Render must match the internal render output")
	}
	if len(s) == 0 {
		t.Error("expected non-empty rendered output")
	}
}
