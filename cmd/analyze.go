package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/handoverhq/handover/internal/analysis"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run static analysis only and print a summary",
	Long:  `Runs the static-analysis step in isolation (file tree, AST summary, git history, TODOs, env vars, testing/doc coverage) without invoking any AI round.`,
	RunE:  runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	rootDir, err := workingDir()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}

	result, err := analysis.Run(rootDir, cfg.Include, cfg.Exclude)
	if err != nil {
		return err
	}

	printAnalysisSummary(result.Snapshot)
	return nil
}

func printAnalysisSummary(snap *analysis.Snapshot) {
	bold := color.New(color.Bold)

	if snap.IsEmpty() {
		fmt.Println("No source files found in this repository.")
		return
	}

	bold.Println("Static analysis summary")
	fmt.Printf("  files:            %d\n", snap.FileTree.TotalFiles)
	fmt.Printf("  total size:       %d bytes\n", snap.FileTree.TotalSize)
	fmt.Printf("  functions:        %d\n", snap.AST.TotalFunctions)
	fmt.Printf("  classes/types:    %d\n", snap.AST.TotalClasses)
	fmt.Printf("  import edges:     %d\n", snap.AST.TotalImportEdges)
	fmt.Printf("  manifests:        %d\n", len(snap.Manifests))
	fmt.Printf("  TODOs:            %d\n", len(snap.TODOs))
	fmt.Printf("  env vars:         %d\n", len(snap.EnvVars))
	fmt.Printf("  test files:       %d\n", snap.Testing.TestFileCount)
	fmt.Printf("  doc files:        %d\n", len(snap.Docs.Files))
	if len(snap.Git.RecentCommits) > 0 {
		fmt.Printf("  recent commits:   %d\n", len(snap.Git.RecentCommits))
	}
	for _, w := range snap.Git.Warnings {
		fmt.Printf("  warning:          %s\n", w)
	}
	fmt.Printf("  elapsed:          %dms\n", snap.Metadata.ElapsedMs)
}
