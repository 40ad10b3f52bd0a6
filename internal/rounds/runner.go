package rounds

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/handoverhq/handover/internal/analysis"
	"github.com/handoverhq/handover/internal/compressor"
	"github.com/handoverhq/handover/internal/herrors"
	"github.com/handoverhq/handover/internal/llm"
	"github.com/handoverhq/handover/internal/tracker"
)

// Tracker is the subset of *tracker.Tracker the runner needs, so tests can
// substitute a fake.
type Tracker interface {
	RecordRound(round int, u tracker.Usage)
}

// ExecuteRound runs the full round protocol: build the prompt, call the
// provider, validate claims, score quality, and retry once on a poor
// first attempt.
func ExecuteRound(ctx context.Context, opts Options, trk Tracker) Result {
	scorer := opts.QualityScorer
	if scorer == nil {
		scorer = DefaultQualityScorer
	}

	systemPrompt, userPrompt := opts.PromptBuilder(opts.Analysis, opts.PriorContexts)

	resp, err := opts.Provider.Complete(ctx, llm.CompletionRequest{
		Model:          opts.Model,
		SystemPrompt:   systemPrompt,
		UserPrompt:     userPrompt,
		ResponseSchema: opts.ResponseSchema,
		OnToken:        opts.OnToken,
	})
	if err != nil {
		usage := llm.Usage{Model: opts.Model}
		trk.RecordRound(opts.RoundNumber, usage)
		return Result{
			Status:     StatusDegraded,
			Data:       fallbackOutput(),
			Usage:      usage,
			Validation: ValidationResult{},
			Quality:    Quality{IsAcceptable: false, Reasons: []string{"provider call failed: " + err.Error()}},
		}
	}

	trk.RecordRound(opts.RoundNumber, resp.Usage)

	out, parseErr := parseOutput(resp.Content)
	if parseErr != nil {
		schemaErr := herrors.ProviderSchemaError(
			fmt.Sprintf("round %d response did not parse as structured output", opts.RoundNumber),
			parseErr.Error(),
			"the provider likely ignored the JSON response format; this is treated as a provider failure",
			parseErr,
		)
		return Result{
			Status:     StatusDegraded,
			Data:       fallbackOutput(),
			Usage:      resp.Usage,
			Validation: ValidationResult{},
			Quality:    Quality{IsAcceptable: false, Reasons: []string{schemaErr.Error()}},
		}
	}

	cleaned, validation := validateRoundClaims(out, opts.Analysis)
	quality := scorer(cleaned, validation)

	needsRetry := (validation.DropRate > 0.3 || !quality.IsAcceptable) && !opts.isRetry
	if needsRetry {
		retryOpts := opts
		retryOpts.isRetry = true
		retryOpts.PromptBuilder = withGroundingAddendum(opts.PromptBuilder)
		retryResult := ExecuteRound(ctx, retryOpts, trk)
		if retryResult.Status != StatusDegraded && retryResult.Quality.IsAcceptable {
			retryResult.Status = StatusRetried
			return retryResult
		}
	}

	return Result{
		Status:     StatusSuccess,
		Data:       cleaned,
		Usage:      resp.Usage,
		Validation: validation,
		Quality:    quality,
	}
}

// groundingAddendum is appended to the retry attempt's user prompt: ask
// the model to ground every claim in the files it was actually given.
const groundingAddendum = "\n\nYour previous attempt referenced file paths or imports that do not exist in the provided analysis, or its output did not meet the quality bar. Ground every claim strictly in the files and imports listed in the analysis context below; do not invent paths, symbols, or imports."

// withGroundingAddendum wraps a PromptBuilder so the retry attempt's user
// prompt carries groundingAddendum.
func withGroundingAddendum(base PromptBuilder) PromptBuilder {
	return func(snap *analysis.Snapshot, priors []compressor.RoundContext) (string, string) {
		systemPrompt, userPrompt := base(snap, priors)
		return systemPrompt, userPrompt + groundingAddendum
	}
}

func fallbackOutput() Output {
	return Output{
		Modules:       []Module{},
		Relationships: []Relationship{},
		Findings:      []Finding{},
		OpenQuestions: []string{},
	}
}

func parseOutput(content string) (Output, error) {
	var out Output
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return Output{}, err
	}
	return out, nil
}
