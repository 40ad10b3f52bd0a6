package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
	noColor bool
	jsonOut bool
)

var rootCmd = &cobra.Command{
	Use:   "handover",
	Short: "Generate cross-referenced markdown documentation for a codebase",
	Long: `Handover reads a repository on disk, runs static analysis and a
chain of AI rounds against a configured language-model provider, and
produces a set of cross-referenced markdown documents describing the
code: an overview, module docs, an architecture map, findings, and open
questions. Results are cached by content hash so unchanged files are
never re-analyzed.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			os.Setenv("NO_COLOR", "1")
		}
	},
}

// Execute runs the root command and returns any error RunE produced, so
// main can format it through herrors.FatalError with the right exit code.
// cmd/generate.go, cmd/analyze.go, and cmd/estimate.go register their own
// subcommands via init().
func Execute() error {
	return rootCmd.Execute()
}

// JSONOutput reports whether --json was set, for main's error formatting.
func JSONOutput() bool {
	return jsonOut
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".handover.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored error output")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "emit machine-readable JSON for fatal errors")
}
