package rounds

// DefaultQualityScorer applies the generic rubric shared by every round
// unless a round supplies its own QualityScorer: the round must reference
// at least one file path across its modules/findings, report at least one
// finding or module, and keep dropRate from validation under 0.5 (a rubric
// distinct from the runner's own >0.3 retry threshold, which looks at
// dropRate alone).
func DefaultQualityScorer(out Output, validation ValidationResult) Quality {
	var reasons []string

	if len(out.Modules) == 0 && len(out.Findings) == 0 {
		reasons = append(reasons, "no modules or findings reported")
	}

	referencedFiles := 0
	for _, m := range out.Modules {
		referencedFiles += len(m.Paths)
	}
	for _, f := range out.Findings {
		referencedFiles += len(f.Files)
	}
	if referencedFiles == 0 {
		reasons = append(reasons, "no file paths referenced")
	}

	if validation.DropRate > 0.5 {
		reasons = append(reasons, "over half of claimed file paths were invalid")
	}

	return Quality{
		IsAcceptable: len(reasons) == 0,
		Reasons:      reasons,
	}
}

// OpenQuestionsQualityScorer accepts an output on the strength of its open
// questions alone, since the closing round reports neither modules nor
// findings.
func OpenQuestionsQualityScorer(out Output, validation ValidationResult) Quality {
	var reasons []string
	if len(out.OpenQuestions) == 0 {
		reasons = append(reasons, "no open questions reported")
	}
	if validation.DropRate > 0.5 {
		reasons = append(reasons, "over half of claimed file paths were invalid")
	}
	return Quality{IsAcceptable: len(reasons) == 0, Reasons: reasons}
}

// ModuleDocQualityScorer is used by round 5's fan-out, whose Output per
// sub-query carries a single rendered module document rather than the
// shared modules/findings shape.
func ModuleDocQualityScorer(out Output, _ ValidationResult) Quality {
	for _, body := range out.ModuleDocs {
		if len(body) >= 40 {
			return Quality{IsAcceptable: true}
		}
	}
	return Quality{IsAcceptable: false, Reasons: []string{"module document too short"}}
}
