package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/handoverhq/handover/internal/analysiscache"
	"github.com/handoverhq/handover/internal/config"
	"github.com/handoverhq/handover/internal/display"
	"github.com/handoverhq/handover/internal/llm"
	"github.com/handoverhq/handover/internal/pipeline"
	"github.com/handoverhq/handover/internal/progress"
	"github.com/handoverhq/handover/internal/roundcache"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate documentation for the codebase in the current directory",
	Long:  `Runs static analysis and the six-round AI pipeline, then renders cross-referenced markdown documents under the configured output directory.`,
	RunE:  runGenerate,
}

func init() {
	generateCmd.Flags().String("provider", "", "override the configured LLM provider")
	generateCmd.Flags().String("model", "", "override the configured model")
	generateCmd.Flags().String("audience", "", "override the configured audience (human|ai)")
	generateCmd.Flags().Bool("static-only", false, "skip all AI rounds; render with empty round data")
	generateCmd.Flags().Bool("no-cache", false, "disable cache reads (writes still occur)")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	start := time.Now()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyGenerateFlags(cmd, cfg)

	rootDir, err := workingDir()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}

	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer logger.Sync()

	// static-only skips every AI round, so no provider call is ever
	// reached; avoid requiring an API key for it.
	var provider llm.Provider
	if !cfg.Analysis.StaticOnly {
		provider, err = createProvider(cfg)
		if err != nil {
			return err
		}
	}

	disp := display.New()
	disp.IsLocal = cfg.Provider == config.ProviderOllama
	disp.StartTicker()
	defer disp.StopTicker()

	cacheRoot := filepath.Join(rootDir, ".handover", "cache")
	trk := newTracker()
	opts := pipeline.Options{
		RootDir:  rootDir,
		Config:   cfg,
		Provider: provider,
		Tracker:  trk,
		Cache:    roundcache.New(rootDir, filepath.Join(cacheRoot, "rounds"), cfg.NoCache),
		Analysis: analysiscache.New(cacheRoot),
		Display:  disp,
		Logger:   logger,
	}

	reporter := progress.NewReporter()
	reporter.Start(6)
	opts.OnToken = func(round int, tokens int) {
		reporter.Update(round, fmt.Sprintf("round %d: %d tokens", round, tokens))
	}

	result, err := pipeline.Run(context.Background(), opts)
	reporter.Finish()
	if err != nil {
		return err
	}

	if result.MigrationNeeded {
		logger.Warn("round cache format changed; stale cache entries were discarded")
		fmt.Fprintln(os.Stderr, "Notice: round cache format changed, previous entries were discarded.")
	}

	cachedRounds := 0
	for _, e := range disp.Rounds() {
		if e.Status == display.RoundCached {
			cachedRounds++
		}
	}
	if cachedRounds == 6 {
		fmt.Println("All 6 rounds cached")
	}

	printGenerateSummary(result, trk, time.Since(start))
	return nil
}

// applyGenerateFlags overlays generate's own CLI flags on top of cfg, the
// topmost tier of the flags > env > YAML > defaults precedence.
func applyGenerateFlags(cmd *cobra.Command, cfg *config.Config) {
	if v, _ := cmd.Flags().GetString("provider"); v != "" {
		cfg.Provider = config.ProviderType(v)
	}
	if v, _ := cmd.Flags().GetString("model"); v != "" {
		cfg.Model = v
	}
	if v, _ := cmd.Flags().GetString("audience"); v != "" {
		cfg.Audience = config.Audience(v)
	}
	if v, _ := cmd.Flags().GetBool("static-only"); v {
		cfg.Analysis.StaticOnly = true
	}
	if v, _ := cmd.Flags().GetBool("no-cache"); v {
		cfg.NoCache = true
	}
	cfg.Verbose = verbose
}

func printGenerateSummary(result *pipeline.Result, trk interface{ TotalCost() float64 }, elapsed time.Duration) {
	bold := color.New(color.Bold)

	if result.IsEmptyRepo {
		fmt.Println("No source files found; wrote a placeholder index and overview.")
		return
	}

	bold.Println("Documentation generated.")
	if result.Packed != nil {
		fmt.Printf("  files analyzed:   %d\n", result.Packed.Metadata.AnalyzedCount)
	}
	fmt.Printf("  documents:        %d\n", len(result.Documents))
	fmt.Printf("  incremental:      %v\n", result.IsIncremental)
	if result.ParallelSavedMs > 0 {
		fmt.Printf("  parallel savings: %dms\n", result.ParallelSavedMs)
	}
	if cost := trk.TotalCost(); cost > 0 {
		fmt.Printf("  estimated cost:   $%.4f\n", cost)
	}
	fmt.Printf("  elapsed:          %s\n", elapsed.Round(time.Millisecond))
}
