package rounds

import (
	"strings"

	"github.com/handoverhq/handover/internal/analysis"
)

// normalizePath lower-cases nothing (path comparison is case-sensitive)
// but strips a leading "./" or "/" and normalizes backslashes, so
// claims from the provider compare cleanly against the analysis file tree.
func normalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.TrimPrefix(p, "./")
	p = strings.TrimPrefix(p, "/")
	return p
}

// validFilePaths indexes the analysis snapshot's directory tree once per
// validation pass.
func validFilePaths(snap *analysis.Snapshot) map[string]bool {
	valid := make(map[string]bool, len(snap.FileTree.DirectoryTree))
	for _, entry := range snap.FileTree.DirectoryTree {
		valid[normalizePath(entry.Path)] = true
	}
	return valid
}

// fileImports indexes each file's claimed imports from the AST summary.
func fileImports(snap *analysis.Snapshot) map[string]map[string]bool {
	imports := make(map[string]map[string]bool, len(snap.AST.Files))
	for _, f := range snap.AST.Files {
		set := make(map[string]bool, len(f.Imports))
		for _, imp := range f.Imports {
			set[imp] = true
		}
		imports[normalizePath(f.Path)] = set
	}
	return imports
}

// ValidateFileClaims keeps only paths present in the analysis file tree.
func ValidateFileClaims(paths []string, snap *analysis.Snapshot) (valid, dropped []string) {
	known := validFilePaths(snap)
	for _, p := range paths {
		norm := normalizePath(p)
		if known[norm] {
			valid = append(valid, norm)
		} else {
			dropped = append(dropped, p)
		}
	}
	return valid, dropped
}

// ImportClaim is a (sourceFile, importedSymbol) pair asserted by a round's
// output.
type ImportClaim struct {
	SourceFile     string
	ImportedSymbol string
}

// ValidateImportClaims keeps only claims whose sourceFile's AST-reported
// imports actually contain importedSymbol.
func ValidateImportClaims(claims []ImportClaim, snap *analysis.Snapshot) (valid, dropped []ImportClaim) {
	imports := fileImports(snap)
	for _, c := range claims {
		set, ok := imports[normalizePath(c.SourceFile)]
		if ok && set[c.ImportedSymbol] {
			valid = append(valid, c)
		} else {
			dropped = append(dropped, c)
		}
	}
	return valid, dropped
}

// validateRoundClaims runs file-path validation over every path a round's
// output references (module paths, finding files) and drops unknown ones,
// returning the cleaned output and a validation report. Output carries no
// import claims, so no import validation happens here; ValidateImportClaims
// is not called on a round's output.
func validateRoundClaims(out Output, snap *analysis.Snapshot) (Output, ValidationResult) {
	known := validFilePaths(snap)

	total := 0
	validated := 0
	corrected := 0

	cleanPaths := func(paths []string) []string {
		var kept []string
		for _, p := range paths {
			total++
			norm := normalizePath(p)
			if known[norm] {
				kept = append(kept, norm)
				validated++
			} else {
				corrected++
			}
		}
		return kept
	}

	cleaned := Output{
		OpenQuestions: out.OpenQuestions,
		ModuleDocs:    out.ModuleDocs,
	}

	for _, m := range out.Modules {
		m.Paths = cleanPaths(m.Paths)
		cleaned.Modules = append(cleaned.Modules, m)
	}
	for _, f := range out.Findings {
		f.Files = cleanPaths(f.Files)
		cleaned.Findings = append(cleaned.Findings, f)
	}
	cleaned.Relationships = out.Relationships

	result := ValidationResult{Total: total, Validated: validated, Corrected: corrected}
	if total > 0 {
		result.DropRate = float64(corrected) / float64(total)
	}
	return cleaned, result
}
