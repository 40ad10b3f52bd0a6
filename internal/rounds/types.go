// Package rounds implements the round runner and validator:
// building a round's prompt, calling the provider, validating file/import
// claims against the analysis snapshot, scoring output quality, and
// retrying once on a poor first attempt.
package rounds

import (
	"github.com/handoverhq/handover/internal/analysis"
	"github.com/handoverhq/handover/internal/compressor"
	"github.com/handoverhq/handover/internal/llm"
)

// Status is the outcome of one ExecuteRound call.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusDegraded Status = "degraded"
	StatusRetried  Status = "retried"
	StatusFailed   Status = "failed"
)

// Module is one architectural unit a round may discover or describe.
type Module struct {
	Name        string   `json:"name"`
	Paths       []string `json:"paths"`
	Description string   `json:"description"`
}

// Relationship is a directed edge a round may draw between two modules.
type Relationship struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Description string `json:"description"`
}

// Finding is a single noteworthy observation (architectural note, risk,
// quality issue) a round may report.
type Finding struct {
	Title   string `json:"title"`
	Detail  string `json:"detail"`
	Files   []string `json:"files,omitempty"`
	Severity string `json:"severity,omitempty"`
}

// Output is the structured payload every round produces. Every fixed round
// is requested with the same response schema shape (SchemaFor varies only
// its name and description), made of these four optional sections for the
// compressor to extract; per-round schemas are not defined.
type Output struct {
	Modules       []Module       `json:"modules,omitempty"`
	Relationships []Relationship `json:"relationships,omitempty"`
	Findings      []Finding      `json:"findings,omitempty"`
	OpenQuestions []string       `json:"openQuestions,omitempty"`

	// ModuleDocs carries round 5's per-module fan-out output: module name
	// to rendered markdown body. Not part of the shared compressor shape.
	ModuleDocs map[string]string `json:"moduleDocs,omitempty"`
}

// ToCompressorOutput projects Output into the compressor's input shape,
// dropping fields (like ModuleDocs) the compressor does not know about.
func (o Output) ToCompressorOutput() compressor.RoundOutput {
	modules := make([]string, 0, len(o.Modules))
	for _, m := range o.Modules {
		modules = append(modules, m.Name+": "+m.Description)
	}
	relationships := make([]string, 0, len(o.Relationships))
	for _, r := range o.Relationships {
		relationships = append(relationships, r.From+" -> "+r.To+": "+r.Description)
	}
	findings := make([]string, 0, len(o.Findings))
	for _, f := range o.Findings {
		findings = append(findings, f.Title+": "+f.Detail)
	}
	return compressor.RoundOutput{
		Modules:       modules,
		Findings:      findings,
		Relationships: relationships,
		OpenQuestions: append([]string(nil), o.OpenQuestions...),
	}
}

// ValidationResult is the cleanup report from validateRoundClaims.
type ValidationResult struct {
	Total     int
	Validated int
	Corrected int
	DropRate  float64
}

// Quality is the round-specific acceptability verdict.
type Quality struct {
	IsAcceptable bool
	Reasons      []string
}

// Result is the settled outcome of one ExecuteRound call.
type Result struct {
	Status     Status
	Data       Output
	Usage      llm.Usage
	Validation ValidationResult
	Quality    Quality
}

// PromptBuilder constructs the system/user prompt for a round given the
// analysis snapshot and the compressed contexts of its upstream rounds.
type PromptBuilder func(snap *analysis.Snapshot, priors []compressor.RoundContext) (systemPrompt, userPrompt string)

// QualityScorer scores a round's cleaned output against round-specific
// rubric. Implementations never see the raw provider string, only the
// parsed-and-validated Output.
type QualityScorer func(out Output, validation ValidationResult) Quality

// Options configures one ExecuteRound invocation.
type Options struct {
	RoundNumber   int
	Name          string
	Provider      llm.Provider
	Model         string
	PromptBuilder PromptBuilder
	ResponseSchema *llm.Schema
	QualityScorer QualityScorer
	PriorContexts []compressor.RoundContext
	Analysis      *analysis.Snapshot
	OnToken       llm.TokenCallback

	// isRetry is set internally when ExecuteRound recurses for the retry
	// policy; callers always leave it false.
	isRetry bool
}
