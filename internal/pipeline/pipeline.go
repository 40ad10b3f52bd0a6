// Package pipeline assembles the DAG orchestrator's steps: static
// analysis, context packing, the six AI rounds wired per the fixed
// cascade table, and the final render step, threading the shared
// round-result map, display state, and incremental-cache bookkeeping
// through the run.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/handoverhq/handover/internal/analysis"
	"github.com/handoverhq/handover/internal/analysiscache"
	"github.com/handoverhq/handover/internal/compressor"
	"github.com/handoverhq/handover/internal/config"
	"github.com/handoverhq/handover/internal/display"
	"github.com/handoverhq/handover/internal/llm"
	"github.com/handoverhq/handover/internal/logging"
	"github.com/handoverhq/handover/internal/orchestrator"
	"github.com/handoverhq/handover/internal/packer"
	"github.com/handoverhq/handover/internal/render"
	"github.com/handoverhq/handover/internal/roundcache"
	"github.com/handoverhq/handover/internal/rounds"
	"github.com/handoverhq/handover/internal/tracker"
)

// priorContextBudgetTokens bounds each round's compressed view of an
// upstream round.
const priorContextBudgetTokens = 2000

// cascade is the fixed round-dependency wiring: each round consumes the
// compressed contexts (and cache hashes) of the rounds listed for it.
var cascade = map[int][]int{
	rounds.Round1Overview:      {},
	rounds.Round2Modules:       {rounds.Round1Overview},
	rounds.Round3Relationships: {rounds.Round1Overview, rounds.Round2Modules},
	rounds.Round4Findings:      {rounds.Round1Overview, rounds.Round2Modules, rounds.Round3Relationships},
	rounds.Round5ModuleDocs:    {rounds.Round1Overview, rounds.Round2Modules},
	rounds.Round6OpenQuestions: {rounds.Round1Overview, rounds.Round2Modules},
}

var allRounds = []int{
	rounds.Round1Overview, rounds.Round2Modules, rounds.Round3Relationships,
	rounds.Round4Findings, rounds.Round5ModuleDocs, rounds.Round6OpenQuestions,
}

// Options configures one pipeline Run.
type Options struct {
	RootDir string
	Config  *config.Config

	Provider llm.Provider
	Tracker  *tracker.Tracker
	Cache    *roundcache.Cache
	Analysis *analysiscache.Cache
	Display  *display.State
	Logger   *logging.Logger

	// OnToken, when set, is forwarded to the streaming callback of rounds
	// 1-4 and 6 alongside the display-state update the pipeline always
	// performs. Round 5's per-module sub-calls run without a streaming
	// callback, so OnToken is never called for round 5.
	OnToken func(round int, tokens int)
}

// Result is everything a caller (cmd/, tests) needs after a run settles.
type Result struct {
	Snapshot        *analysis.Snapshot
	Packed          *packer.PackedContext
	RoundResults    map[int]rounds.Result
	Documents       []render.Document
	IsEmptyRepo     bool
	IsIncremental   bool
	ParallelSavedMs int64
	MigrationNeeded bool
}

// packStepData is pack-context's step result payload.
type packStepData struct {
	snapshot            *analysis.Snapshot
	packed              *packer.PackedContext
	analysisFingerprint string
	changedFiles         map[string]bool
	isEmptyRepo          bool
}

// roundStepData is one round step's result payload.
type roundStepData struct {
	result     rounds.Result
	resultHash string
	cached     bool
}

// roundSpec describes one of the six fixed rounds' wiring to the
// pipeline assembler.
type roundSpec struct {
	number        int
	name          string
	promptBuilder rounds.PromptBuilder
	scorer        rounds.QualityScorer
}

var roundSpecs = []roundSpec{
	{rounds.Round1Overview, rounds.RoundName(rounds.Round1Overview), rounds.BuildRound1Prompt, nil},
	{rounds.Round2Modules, rounds.RoundName(rounds.Round2Modules), rounds.BuildRound2Prompt, nil},
	{rounds.Round3Relationships, rounds.RoundName(rounds.Round3Relationships), rounds.BuildRound3Prompt, nil},
	{rounds.Round4Findings, rounds.RoundName(rounds.Round4Findings), rounds.BuildRound4Prompt, nil},
	// Round 5 has no single PromptBuilder; it fans out per-module in runRound5.
	{rounds.Round5ModuleDocs, rounds.RoundName(rounds.Round5ModuleDocs), nil, nil},
	{rounds.Round6OpenQuestions, rounds.RoundName(rounds.Round6OpenQuestions), rounds.BuildRound6Prompt, rounds.OpenQuestionsQualityScorer},
}

func stepID(round int) string { return fmt.Sprintf("round-%d", round) }

// Run assembles and executes the full DAG: static-analysis, pack-context,
// the six rounds, and render. Honors cfg.Analysis.StaticOnly (skip all AI
// rounds, render with empty round data) and cfg.NoCache (reads disabled,
// writes still occur).
func Run(ctx context.Context, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	orch := orchestrator.New(orchestrator.Hooks{
		OnStepStart: func(id, name string) {
			logger.Debug("step started", logging.String("step", id), logging.String("name", name))
		},
		OnStepComplete: func(r *orchestrator.StepResult) {
			logger.Debug("step completed", logging.String("step", r.ID), logging.Duration("duration", r.Duration))
		},
		OnStepFail: func(r *orchestrator.StepResult) {
			logger.Warn("step failed", logging.String("step", r.ID), logging.ErrField(r.Err))
		},
		OnSkip: func(r *orchestrator.StepResult) {
			logger.Debug("step skipped", logging.String("step", r.ID))
		},
	})

	opts.Analysis.Load()

	if err := orch.AddStep(orchestrator.StepDef{
		ID:   "static-analysis",
		Name: "Static analysis",
		Execute: func(map[string]*orchestrator.StepResult) (interface{}, error) {
			return analysis.Run(opts.RootDir, opts.Config.Include, opts.Config.Exclude)
		},
	}); err != nil {
		return nil, err
	}

	if err := orch.AddStep(orchestrator.StepDef{
		ID:   "pack-context",
		Name: "Pack context",
		Deps: []string{"static-analysis"},
		Execute: func(deps map[string]*orchestrator.StepResult) (interface{}, error) {
			return packContextStep(opts, deps["static-analysis"].Data.(*analysis.Result))
		},
	}); err != nil {
		return nil, err
	}

	for _, spec := range roundSpecs {
		spec := spec
		deps := []string{"pack-context"}
		for _, prior := range cascade[spec.number] {
			deps = append(deps, stepID(prior))
		}
		if err := orch.AddStep(orchestrator.StepDef{
			ID:   stepID(spec.number),
			Name: spec.name,
			Deps: deps,
			Execute: func(stepDeps map[string]*orchestrator.StepResult) (interface{}, error) {
				return runRoundStep(ctx, opts, spec, stepDeps)
			},
		}); err != nil {
			return nil, err
		}
	}

	if err := orch.AddStep(orchestrator.StepDef{
		ID:   "render",
		Name: "Render",
		Deps: []string{stepID(rounds.Round1Overview), stepID(rounds.Round2Modules), stepID(rounds.Round3Relationships), stepID(rounds.Round4Findings), stepID(rounds.Round5ModuleDocs), stepID(rounds.Round6OpenQuestions)},
		Execute: func(deps map[string]*orchestrator.StepResult) (interface{}, error) {
			return renderStep(opts, deps)
		},
	}); err != nil {
		return nil, err
	}

	results, err := orch.Execute()
	if err != nil {
		return nil, err
	}

	return assembleResult(opts, results)
}

func packContextStep(opts Options, ares *analysis.Result) (*packStepData, error) {
	snap := ares.Snapshot
	if opts.Display != nil {
		opts.Display.IsEmptyRepo = snap.IsEmpty()
	}

	if snap.IsEmpty() {
		return &packStepData{snapshot: snap, isEmptyRepo: true}, nil
	}

	changed := opts.Analysis.GetChangedFiles(ares.FileHashes)
	isIncremental := opts.Analysis.IsIncremental(ares.FileHashes, changed)
	if opts.Display != nil {
		opts.Display.IsIncremental = isIncremental
	}

	packed, err := PackSnapshot(opts.RootDir, opts.Config, snap, changed)
	if err != nil {
		return nil, err
	}

	if opts.Display != nil {
		opts.Display.FileCoverage = packed.Metadata.AnalyzedCount
	}

	var hashes []roundcache.FileContentHash
	for path, hash := range ares.FileHashes {
		hashes = append(hashes, roundcache.FileContentHash{Path: path, Hash: hash})
	}
	fingerprint := roundcache.AnalysisFingerprint(hashes)

	if err := opts.Analysis.Save(ares.FileHashes); err != nil {
		logNonFatal(opts, "saving analysis cache", err)
	}

	return &packStepData{
		snapshot:             snap,
		packed:               packed,
		analysisFingerprint:  fingerprint,
		changedFiles:         changed,
	}, nil
}

// boostFiles raises the importance of contextWindow.boost entries and
// forces contextWindow.pin entries to the front of the order so they are
// the first candidates considered for the full tier.
func boostFiles(files []packer.ScoredFile, pin, boost []string) []packer.ScoredFile {
	pinSet := toSet(pin)
	boostSet := toSet(boost)
	out := make([]packer.ScoredFile, len(files))
	copy(out, files)
	for i := range out {
		if boostSet[out[i].Path] {
			out[i].Importance += 1000
		}
		if pinSet[out[i].Path] {
			out[i].Importance += 10000
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Importance != out[j].Importance {
			return out[i].Importance > out[j].Importance
		}
		return out[i].Path < out[j].Path
	})
	return out
}

func toSet(ss []string) map[string]bool {
	m := make(map[string]bool, len(ss))
	for _, s := range ss {
		m[s] = true
	}
	return m
}

func renderSignature(f analysis.FileAST) string {
	out := fmt.Sprintf("file: %s (%s)\n", f.Path, f.Language)
	for _, fn := range f.Functions {
		out += fmt.Sprintf("func %s(...)\n", fn.Name)
	}
	for _, c := range f.Classes {
		out += fmt.Sprintf("type %s\n", c.Name)
	}
	for _, c := range f.Constants {
		out += fmt.Sprintf("const %s\n", c.Name)
	}
	out += fmt.Sprintf("imports: %d\n", len(f.Imports))
	return out
}

// sharedPackedContent renders the packed context's file set once per round
// (it is identical across rounds since they share one pack-context step).
func sharedPackedContent(packed *packer.PackedContext) string {
	if packed == nil {
		return ""
	}
	out := ""
	for _, f := range packed.Files {
		if f.Tier == packer.TierSkip {
			continue
		}
		out += fmt.Sprintf("\n--- %s (%s) ---\n%s\n", f.Path, f.Tier, f.Content)
	}
	return out
}

func runRoundStep(ctx context.Context, opts Options, spec roundSpec, deps map[string]*orchestrator.StepResult) (*roundStepData, error) {
	pack := deps["pack-context"].Data.(*packStepData)
	if pack.isEmptyRepo || opts.Config.Analysis.StaticOnly {
		return nil, nil
	}

	var priorContexts []compressor.RoundContext
	var priorHashes []string
	for _, prior := range cascade[spec.number] {
		pd := deps[stepID(prior)].Data.(*roundStepData)
		priorHashes = append(priorHashes, pd.resultHash)
		priorContexts = append(priorContexts, compressor.Compress(prior, pd.result.Data.ToCompressorOutput(), priorContextBudgetTokens, llm.EstimateTokens))
	}

	roundHash := roundcache.RoundHash(spec.number, opts.Config.Model, pack.analysisFingerprint, priorHashes)

	if spec.number == rounds.Round5ModuleDocs {
		return runRound5(ctx, opts, pack, priorContexts, roundHash)
	}

	if !opts.Config.NoCache {
		var cached rounds.Output
		if ok, _ := opts.Cache.Get(spec.number, roundHash, &cached); ok {
			resultHash, _ := roundcache.ComputeResultHash(cached)
			if opts.Display != nil {
				savings := opts.Tracker.GetRoundCacheSavings(spec.number)
				tokens := 0
				if savings != nil {
					tokens = savings.TokensSaved
				}
				opts.Display.CompleteRound(spec.number, true, 0, tokens)
			}
			return &roundStepData{
				result:     rounds.Result{Status: rounds.StatusSuccess, Data: cached, Quality: rounds.Quality{IsAcceptable: true}},
				resultHash: resultHash,
				cached:     true,
			}, nil
		}
	}

	if opts.Display != nil {
		opts.Display.StartRound(spec.number, spec.name)
	}

	promptBuilder := withPackedContext(spec.promptBuilder, pack.packed)
	result := rounds.ExecuteRound(ctx, rounds.Options{
		RoundNumber:    spec.number,
		Name:           spec.name,
		Provider:       opts.Provider,
		Model:          opts.Config.Model,
		PromptBuilder:  promptBuilder,
		ResponseSchema: rounds.SchemaFor(spec.number),
		QualityScorer:  spec.scorer,
		PriorContexts:  priorContexts,
		Analysis:       pack.snapshot,
		OnToken: func(tokens int) {
			if opts.Display != nil {
				opts.Display.UpdateStreaming(spec.number, tokens)
			}
			if opts.OnToken != nil {
				opts.OnToken(spec.number, tokens)
			}
		},
	}, opts.Tracker)

	if result.Status != rounds.StatusDegraded {
		if err := opts.Cache.Set(spec.number, roundHash, result.Data, opts.Config.Model); err != nil {
			logNonFatal(opts, "writing round cache", err)
		}
	}

	if opts.Display != nil {
		if result.Status == rounds.StatusDegraded {
			opts.Display.FailRound(spec.number)
		} else {
			opts.Display.CompleteRound(spec.number, false, result.Usage.InputTokens+result.Usage.OutputTokens, 0)
		}
	}

	resultHash, _ := roundcache.ComputeResultHash(result.Data)
	return &roundStepData{result: result, resultHash: resultHash}, nil
}

// withPackedContext wraps a round's PromptBuilder so the shared packed
// file content (identical across rounds) is appended to its user prompt.
func withPackedContext(base rounds.PromptBuilder, packed *packer.PackedContext) rounds.PromptBuilder {
	return func(snap *analysis.Snapshot, priors []compressor.RoundContext) (string, string) {
		system, user := base(snap, priors)
		return system, user + "\n\nPacked file context:\n" + sharedPackedContent(packed)
	}
}

// runRound5 fans out one sub-query per module discovered by round 2:
// each sub-call runs independently and results are collected
// with all-settled semantics, failed slots left empty.
func runRound5(ctx context.Context, opts Options, pack *packStepData, priorContexts []compressor.RoundContext, roundHash string) (*roundStepData, error) {
	if !opts.Config.NoCache {
		var cached rounds.Output
		if ok, _ := opts.Cache.Get(rounds.Round5ModuleDocs, roundHash, &cached); ok {
			resultHash, _ := roundcache.ComputeResultHash(cached)
			if opts.Display != nil {
				opts.Display.CompleteRound(rounds.Round5ModuleDocs, true, 0, 0)
			}
			return &roundStepData{
				result:     rounds.Result{Status: rounds.StatusSuccess, Data: cached, Quality: rounds.Quality{IsAcceptable: true}},
				resultHash: resultHash,
				cached:     true,
			}, nil
		}
	}

	if opts.Display != nil {
		opts.Display.StartRound(rounds.Round5ModuleDocs, rounds.RoundName(rounds.Round5ModuleDocs))
	}

	modules := modulesFromPriorContext(priorContexts)
	moduleDocs := make(map[string]string, len(modules))
	var firstUsage *llm.Usage

	type subResult struct {
		name string
		body string
		usage llm.Usage
		ok   bool
	}
	results := make(chan subResult, len(modules))
	for _, m := range modules {
		m := m
		go func() {
			promptBuilder := func(snap *analysis.Snapshot, priors []compressor.RoundContext) (string, string) {
				system, user := rounds.BuildModuleDocPrompt(m, snap, priors)
				return system, user + "\n\nPacked file context:\n" + sharedPackedContent(pack.packed)
			}
			r := rounds.ExecuteRound(ctx, rounds.Options{
				RoundNumber:    rounds.Round5ModuleDocs,
				Name:           "Module doc: " + m.Name,
				Provider:       opts.Provider,
				Model:          opts.Config.Model,
				PromptBuilder:  promptBuilder,
				ResponseSchema: rounds.ModuleDocSchema,
				QualityScorer:  rounds.ModuleDocQualityScorer,
				PriorContexts:  priorContexts,
				Analysis:       pack.snapshot,
			}, opts.Tracker)
			if r.Status == rounds.StatusDegraded {
				results <- subResult{name: m.Name, ok: false}
				return
			}
			body := r.Data.ModuleDocs[m.Name]
			results <- subResult{name: m.Name, body: body, usage: r.Usage, ok: true}
		}()
	}

	totalTokens := 0
	for range modules {
		r := <-results
		if r.ok {
			moduleDocs[r.name] = r.body
			totalTokens += r.usage.InputTokens + r.usage.OutputTokens
			if firstUsage == nil {
				u := r.usage
				firstUsage = &u
			}
		} else {
			logNonFatal(opts, "module doc sub-query failed for "+r.name, nil)
		}
	}

	output := rounds.Output{ModuleDocs: moduleDocs}
	result := rounds.Result{
		Status:  rounds.StatusSuccess,
		Data:    output,
		Quality: rounds.Quality{IsAcceptable: len(moduleDocs) > 0},
	}
	if firstUsage != nil {
		result.Usage = *firstUsage
	}

	if err := opts.Cache.Set(rounds.Round5ModuleDocs, roundHash, output, opts.Config.Model); err != nil {
		logNonFatal(opts, "writing round 5 cache", err)
	}
	if opts.Display != nil {
		opts.Display.CompleteRound(rounds.Round5ModuleDocs, false, totalTokens, 0)
	}

	resultHash, _ := roundcache.ComputeResultHash(output)
	return &roundStepData{result: result, resultHash: resultHash}, nil
}

// modulesFromPriorContext recovers the module list round 5 fans out over
// from round 2's compressed RoundContext (the "modules" section, formatted
// as "name: description" by Output.ToCompressorOutput). Paths are not
// preserved by the compressor's string projection, so round 5's prompt
// grounds itself in the shared packed context instead of per-module paths.
func modulesFromPriorContext(priors []compressor.RoundContext) []rounds.Module {
	for _, p := range priors {
		if p.RoundNumber != rounds.Round2Modules {
			continue
		}
		var mods []rounds.Module
		for _, m := range p.Modules {
			name := m
			desc := ""
			if idx := indexOfColon(m); idx >= 0 {
				name = m[:idx]
				desc = m[idx+2:]
			}
			mods = append(mods, rounds.Module{Name: name, Description: desc})
		}
		return mods
	}
	return nil
}

func indexOfColon(s string) int {
	for i := 0; i+1 < len(s); i++ {
		if s[i] == ':' && s[i+1] == ' ' {
			return i
		}
	}
	return -1
}

func renderStep(opts Options, deps map[string]*orchestrator.StepResult) ([]render.Document, error) {
	pack := deps["pack-context"].Data.(*packStepData)
	if pack.isEmptyRepo {
		return render.Empty(pack.snapshot), nil
	}

	resultMap := make(map[int]rounds.Result, len(allRounds))
	for _, n := range allRounds {
		if d, ok := deps[stepID(n)].Data.(*roundStepData); ok && d != nil {
			resultMap[n] = d.result
		}
	}

	docs := render.Render(pack.snapshot, resultMap, opts.Config.Audience)

	outputDir := opts.Config.Output
	if outputDir != "" {
		if err := render.Write(outputDir, docs, func(path string, content []byte) error {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return err
			}
			return os.WriteFile(path, content, 0o644)
		}); err != nil {
			return docs, err
		}
		if opts.Display != nil {
			opts.Display.CompletionDocs = len(docs)
		}
	}

	return docs, nil
}

func assembleResult(opts Options, stepResults map[string]*orchestrator.StepResult) (*Result, error) {
	packRes, ok := stepResults["pack-context"]
	if !ok || packRes.Status != orchestrator.StatusCompleted {
		if packRes != nil && packRes.Err != nil {
			return nil, packRes.Err
		}
		return nil, fmt.Errorf("pipeline: pack-context step did not complete")
	}
	pack := packRes.Data.(*packStepData)

	result := &Result{
		Snapshot:    pack.snapshot,
		Packed:      pack.packed,
		IsEmptyRepo: pack.isEmptyRepo,
	}
	if opts.Display != nil {
		result.IsIncremental = opts.Display.IsIncremental
	}
	if opts.Cache != nil {
		result.MigrationNeeded = opts.Cache.MigrationNeeded()
	}

	result.RoundResults = make(map[int]rounds.Result, len(allRounds))
	var sumDuration time.Duration
	var criticalPath time.Duration
	for _, n := range allRounds {
		sr, ok := stepResults[stepID(n)]
		if !ok {
			continue
		}
		if d, ok := sr.Data.(*roundStepData); ok && d != nil {
			result.RoundResults[n] = d.result
		}
		sumDuration += sr.Duration
		if sr.Duration > criticalPath {
			criticalPath = sr.Duration
		}
	}
	saved := sumDuration - criticalPath
	if saved > 0 {
		result.ParallelSavedMs = saved.Milliseconds()
		if opts.Display != nil {
			opts.Display.ParallelSavedMs = result.ParallelSavedMs
		}
	}

	if renderRes, ok := stepResults["render"]; ok && renderRes.Status == orchestrator.StatusCompleted {
		if docs, ok := renderRes.Data.([]render.Document); ok {
			result.Documents = docs
		}
	} else if renderRes != nil && renderRes.Err != nil {
		return result, renderRes.Err
	}

	return result, nil
}

func logNonFatal(opts Options, action string, err error) {
	if opts.Logger == nil {
		return
	}
	opts.Logger.Warn("non-fatal pipeline step", logging.String("action", action), logging.ErrField(err))
}
