// Package compressor condenses a round's structured output into a fixed
// token-budget RoundContext for consumption by downstream rounds.
package compressor

import (
	"fmt"
	"strings"
)

// Estimator estimates the token count of a string.
type Estimator func(s string) int

// RoundOutput is the subset of fields every round schema may expose; absent
// fields (nil slices) are simply ignored by Compress.
type RoundOutput struct {
	Modules       []string
	Findings      []string
	Relationships []string
	OpenQuestions []string
}

// RoundContext is the compressed projection of a RoundOutput.
type RoundContext struct {
	RoundNumber   int
	Modules       []string
	Findings      []string
	Relationships []string
	OpenQuestions []string
	TokenCount    int
}

// Compress builds a RoundContext bounded by budgetTokens, trimming in a
// fixed order: open questions fully, then findings down
// to a minimum of one, then relationships, then modules.
func Compress(roundNumber int, output RoundOutput, budgetTokens int, estimate Estimator) RoundContext {
	rc := RoundContext{
		RoundNumber:   roundNumber,
		Modules:       append([]string(nil), output.Modules...),
		Findings:      append([]string(nil), output.Findings...),
		Relationships: append([]string(nil), output.Relationships...),
		OpenQuestions: append([]string(nil), output.OpenQuestions...),
	}
	rc.TokenCount = estimate(render(rc))
	if rc.TokenCount <= budgetTokens {
		return rc
	}

	// 1. Drop open questions entirely.
	rc.OpenQuestions = nil
	rc.TokenCount = estimate(render(rc))
	if rc.TokenCount <= budgetTokens {
		return rc
	}

	// 2. Trim findings down to a minimum of one. If even one finding keeps
	// the block over budget, keep it anyway (minimum-one rule).
	for len(rc.Findings) > 1 {
		rc.Findings = rc.Findings[:len(rc.Findings)-1]
		rc.TokenCount = estimate(render(rc))
		if rc.TokenCount <= budgetTokens {
			return rc
		}
	}
	// 3. Trim relationships.
	for len(rc.Relationships) > 0 {
		rc.Relationships = rc.Relationships[:len(rc.Relationships)-1]
		rc.TokenCount = estimate(render(rc))
		if rc.TokenCount <= budgetTokens {
			return rc
		}
	}

	// 4. Trim modules.
	for len(rc.Modules) > 0 {
		rc.Modules = rc.Modules[:len(rc.Modules)-1]
		rc.TokenCount = estimate(render(rc))
		if rc.TokenCount <= budgetTokens {
			return rc
		}
	}

	return rc
}

// render builds the stable text representation used both for token
// estimation and as the actual downstream-prompt payload.
func render(rc RoundContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "round %d context\n", rc.RoundNumber)

	if len(rc.Modules) > 0 {
		b.WriteString("modules:\n")
		for _, m := range rc.Modules {
			b.WriteString("- ")
			b.WriteString(m)
			b.WriteString("\n")
		}
	}
	if len(rc.Findings) > 0 {
		b.WriteString("findings:\n")
		for _, f := range rc.Findings {
			b.WriteString("- ")
			b.WriteString(f)
			b.WriteString("\n")
		}
	}
	if len(rc.Relationships) > 0 {
		b.WriteString("relationships:\n")
		for _, r := range rc.Relationships {
			b.WriteString("- ")
			b.WriteString(r)
			b.WriteString("\n")
		}
	}
	if len(rc.OpenQuestions) > 0 {
		b.WriteString("open questions:\n")
		for _, q := range rc.OpenQuestions {
			b.WriteString("- ")
			b.WriteString(q)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Render exposes the stable string representation for callers that need to
// embed a RoundContext directly into a downstream prompt.
func Render(rc RoundContext) string {
	return render(rc)
}
