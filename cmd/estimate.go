package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/handoverhq/handover/internal/analysis"
	"github.com/handoverhq/handover/internal/llm"
	"github.com/handoverhq/handover/internal/pipeline"
	"github.com/handoverhq/handover/internal/rounds"
)

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate cost and token usage without calling the provider",
	Long:  `Runs static analysis and context packing only, then prints a per-round token and dollar estimate against the configured model's pricing, without calling the provider.`,
	RunE:  runEstimate,
}

func init() {
	rootCmd.AddCommand(estimateCmd)
}

// roundOutputEstimateTokens is a rough per-round response size used for
// estimation purposes only; actual rounds vary with repository size and
// model verbosity.
const roundOutputEstimateTokens = 2000

func runEstimate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	rootDir, err := workingDir()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}

	ares, err := analysis.Run(rootDir, cfg.Include, cfg.Exclude)
	if err != nil {
		return err
	}

	if ares.Snapshot.IsEmpty() {
		fmt.Println("No source files found; nothing to estimate.")
		return nil
	}

	packed, err := pipeline.PackSnapshot(rootDir, cfg, ares.Snapshot, nil)
	if err != nil {
		return err
	}

	printEstimate(ares.Snapshot, packed.TotalTokens, cfg.Model)
	return nil
}

func printEstimate(snap *analysis.Snapshot, packedTokens int, model string) {
	bold := color.New(color.Bold)
	bold.Println("Cost estimate")
	fmt.Printf("  model:            %s\n", model)
	fmt.Printf("  packed tokens:    %d\n", packedTokens)

	modules := pipeline.EstimatedModuleCount(snap)
	fmt.Printf("  estimated modules (round 5 fan-out): %d\n", modules)

	var total float64
	fanout := map[int]int{
		rounds.Round1Overview:      1,
		rounds.Round2Modules:       1,
		rounds.Round3Relationships: 1,
		rounds.Round4Findings:      1,
		rounds.Round5ModuleDocs:    modules,
		rounds.Round6OpenQuestions: 1,
	}
	for _, n := range []int{1, 2, 3, 4, 5, 6} {
		calls := fanout[n]
		// Every round's prompt carries the full shared packed context
		// (pipeline.withPackedContext), so each call — including each
		// round-5 module sub-call — is costed against the same input size.
		cost := llm.EstimateCost(model, packedTokens, roundOutputEstimateTokens) * float64(calls)
		total += cost
		fmt.Printf("  round %d (%-24s): %d calls, ~$%.4f\n", n, rounds.RoundName(n), calls, cost)
	}
	bold.Printf("  estimated total:  ~$%.4f\n", total)
}
