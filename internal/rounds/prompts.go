package rounds

import (
	"fmt"
	"strings"

	"github.com/handoverhq/handover/internal/analysis"
	"github.com/handoverhq/handover/internal/compressor"
	"github.com/handoverhq/handover/internal/llm"
)

// Names and round numbers for the six fixed rounds the pipeline assembler
// wires into the cascade.
const (
	Round1Overview     = 1
	Round2Modules      = 2
	Round3Relationships = 3
	Round4Findings     = 4
	Round5ModuleDocs   = 5
	Round6OpenQuestions = 6
)

// RoundName returns the display name for a fixed round number, used by
// the pipeline assembler and display state.
func RoundName(round int) string {
	switch round {
	case Round1Overview:
		return "Project Overview"
	case Round2Modules:
		return "Module Discovery"
	case Round3Relationships:
		return "Module Relationships"
	case Round4Findings:
		return "Findings & Quality Review"
	case Round5ModuleDocs:
		return "Per-Module Documentation"
	case Round6OpenQuestions:
		return "Open Questions & Onboarding"
	default:
		return fmt.Sprintf("Round %d", round)
	}
}

// analysisPreamble renders the shared, non-packed portion of the analysis
// snapshot every round's user prompt embeds: counts, manifests, git
// summary, TODOs, env vars, testing/doc coverage. The packed file content
// itself is appended by the caller (pipeline assembler) since it is the
// one piece that varies per run and is not owned by this package.
func analysisPreamble(snap *analysis.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Repository at %s, %d files analyzed in %dms.\n",
		snap.Metadata.RootDir, snap.Metadata.FileCount, snap.Metadata.ElapsedMs)
	fmt.Fprintf(&b, "File tree: %d files, %d bytes total.\n", snap.FileTree.TotalFiles, snap.FileTree.TotalSize)

	if len(snap.FileTree.FilesByExt) > 0 {
		b.WriteString("Extensions: ")
		first := true
		for ext, count := range snap.FileTree.FilesByExt {
			if !first {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%d", ext, count)
			first = false
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "AST: %d exported functions, %d exported classes, %d import edges across %d files.\n",
		snap.AST.TotalFunctions, snap.AST.TotalClasses, snap.AST.TotalImportEdges, len(snap.AST.Files))

	if len(snap.Manifests) > 0 {
		b.WriteString("Dependency manifests:\n")
		for _, m := range snap.Manifests {
			fmt.Fprintf(&b, "- [%s] %s %s\n", m.Manifest, m.Name, m.Version)
		}
	}

	if snap.Git.BranchPattern != "" || len(snap.Git.RecentCommits) > 0 {
		fmt.Fprintf(&b, "Git branch pattern: %s. Recent commits: %d.\n", snap.Git.BranchPattern, len(snap.Git.RecentCommits))
		for _, w := range snap.Git.Warnings {
			fmt.Fprintf(&b, "Git warning: %s\n", w)
		}
	}

	if len(snap.TODOs) > 0 {
		fmt.Fprintf(&b, "%d TODO/FIXME/HACK markers found.\n", len(snap.TODOs))
	}

	if len(snap.EnvVars) > 0 {
		fmt.Fprintf(&b, "%d distinct environment variables referenced.\n", len(snap.EnvVars))
	}

	fmt.Fprintf(&b, "Testing: %d test files (ratio %.2f to source), frameworks: %s.\n",
		snap.Testing.TestFileCount, snap.Testing.RatioToSource, strings.Join(snap.Testing.Frameworks, ", "))

	if len(snap.Docs.Files) > 0 {
		fmt.Fprintf(&b, "%d existing documentation files found.\n", len(snap.Docs.Files))
	}

	return b.String()
}

func priorContextBlock(label string, priors []compressor.RoundContext) string {
	if len(priors) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s:\n", label)
	for _, p := range priors {
		b.WriteString(compressor.Render(p))
		b.WriteString("\n")
	}
	return b.String()
}

const sharedOutputContract = `Respond with a single JSON object matching the provided schema. Every file path you reference must be a repository-relative path that actually appears in the analysis. Every import you claim must be one the analysis reports for that file. Omit a section entirely rather than fabricate an entry.`

// BuildRound1Prompt produces the project-overview round's prompt: no prior
// rounds, just the raw analysis and packed context.
func BuildRound1Prompt(snap *analysis.Snapshot, _ []compressor.RoundContext) (string, string) {
	system := "You are a senior engineer writing the opening overview section of a codebase handover document. Describe the project's apparent purpose, overall shape, and notable structural facts. " + sharedOutputContract
	user := analysisPreamble(snap) +
		"\nSummarize the project's purpose and overall architecture at a high level. Report findings about its structure; leave modules and relationships for later rounds if you are unsure."
	return system, user
}

// BuildRound2Prompt produces the module-discovery round's prompt, building
// on round 1's compressed context.
func BuildRound2Prompt(snap *analysis.Snapshot, priors []compressor.RoundContext) (string, string) {
	system := "You are identifying the architectural modules of a codebase for a handover document: cohesive units of related files, each with a name, its constituent paths, and a one-paragraph description. " + sharedOutputContract
	user := analysisPreamble(snap) +
		priorContextBlock("Prior round (project overview)", priors) +
		"\nIdentify the codebase's architectural modules. For each, list its name, the file paths that belong to it, and a description of its responsibility."
	return system, user
}

// BuildRound3Prompt produces the module-relationships round's prompt,
// building on rounds 1 and 2.
func BuildRound3Prompt(snap *analysis.Snapshot, priors []compressor.RoundContext) (string, string) {
	system := "You are mapping the relationships between a codebase's modules for a handover document: which modules call, depend on, or are data flows into one another. " + sharedOutputContract
	user := analysisPreamble(snap) +
		priorContextBlock("Prior rounds (overview, modules)", priors) +
		"\nDescribe the directed relationships between the modules identified in the prior round: which module depends on, calls, or is invoked by which other module."
	return system, user
}

// BuildRound4Prompt produces the findings/quality-review round's prompt,
// building on rounds 1, 2, and 3.
func BuildRound4Prompt(snap *analysis.Snapshot, priors []compressor.RoundContext) (string, string) {
	system := "You are reviewing a codebase for a handover document: notable risks, quality issues, architectural smells, and strengths worth calling out, each tied to specific files. " + sharedOutputContract
	user := analysisPreamble(snap) +
		priorContextBlock("Prior rounds (overview, modules, relationships)", priors) +
		"\nReport findings: risks, quality concerns, or notable strengths, each referencing the specific files it concerns and a severity (info, low, medium, high)."
	return system, user
}

// BuildRound6Prompt produces the open-questions/onboarding round's prompt,
// building on rounds 1 and 2 (per the fixed cascade wiring, it does not see
// round 3 or 4's output).
func BuildRound6Prompt(snap *analysis.Snapshot, priors []compressor.RoundContext) (string, string) {
	system := "You are closing out a codebase handover document: questions a new engineer should ask, gaps in documentation or tests, and anything left ambiguous by static analysis alone. " + sharedOutputContract
	user := analysisPreamble(snap) +
		priorContextBlock("Prior rounds (overview, modules)", priors) +
		"\nList open questions a new engineer joining this project would still need answered, and any gaps you noticed (missing tests, missing docs, unclear ownership)."
	return system, user
}

// BuildModuleDocPrompt builds one round-5 fan-out sub-query's prompt for a
// single module discovered in round 2. The rendered body is returned under
// Output.ModuleDocs[mod.Name].
func BuildModuleDocPrompt(mod Module, snap *analysis.Snapshot, priors []compressor.RoundContext) (string, string) {
	system := fmt.Sprintf("You are writing the detailed documentation section for one module ('%s') of a codebase handover document. "+
		"Respond with a single JSON object: {\"moduleDocs\": {\"%s\": \"<markdown body>\"}}. The markdown body should cover the module's "+
		"responsibility, its key files, and how it fits into the rest of the system. Ground every file reference in the analysis.", mod.Name, mod.Name)
	user := analysisPreamble(snap) +
		priorContextBlock("Prior rounds (overview, modules)", priors) +
		fmt.Sprintf("\nModule %q spans these paths: %s\n%s\nWrite its documentation section.",
			mod.Name, strings.Join(mod.Paths, ", "), mod.Description)
	return system, user
}

// schemaFields is shared between every fixed round's schema (modules,
// relationships, findings, openQuestions) — round-specific content lives in
// the prompt, not the schema shape, since every round shares Output's JSON
// tags.
var schemaFields = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"modules": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"name":        map[string]interface{}{"type": "string"},
					"paths":       map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
					"description": map[string]interface{}{"type": "string"},
				},
			},
		},
		"relationships": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"from":        map[string]interface{}{"type": "string"},
					"to":          map[string]interface{}{"type": "string"},
					"description": map[string]interface{}{"type": "string"},
				},
			},
		},
		"findings": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"title":    map[string]interface{}{"type": "string"},
					"detail":   map[string]interface{}{"type": "string"},
					"files":    map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
					"severity": map[string]interface{}{"type": "string"},
				},
			},
		},
		"openQuestions": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "string"},
		},
	},
}

// SchemaFor returns the response schema for a fixed round number.
func SchemaFor(round int) *llm.Schema {
	return &llm.Schema{
		Name:        fmt.Sprintf("round_%d_output", round),
		Description: RoundName(round) + " structured output",
		Raw:         schemaFields,
	}
}

// ModuleDocSchema is the response schema for a round-5 fan-out sub-query.
var ModuleDocSchema = &llm.Schema{
	Name:        "module_doc_output",
	Description: "Per-module documentation fan-out output",
	Raw: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"moduleDocs": map[string]interface{}{
				"type":                 "object",
				"additionalProperties": map[string]interface{}{"type": "string"},
			},
		},
	},
}
