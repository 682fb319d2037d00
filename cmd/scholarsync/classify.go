package main

import (
	"github.com/matsen/scholarsync/internal/publication"
	"github.com/spf13/cobra"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <venue>...",
	Short: "Classify venue strings as journal, conference or preprint",
	Long: `Classify venue strings with the same keyword rules sync uses.

Examples:
  scholarsync classify "arXiv preprint arXiv:2401.00001"
  scholarsync classify "IEEE Conference on Decision and Control" "Water Research" --human`,
	Args: cobra.MinimumNArgs(1),
	Run:  runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}

func runClassify(cmd *cobra.Command, args []string) {
	results := make([]ClassifyResult, len(args))
	for i, venue := range args {
		results[i] = ClassifyResult{Venue: venue, Category: string(publication.Classify(venue))}
	}

	if humanOutput {
		for _, r := range results {
			outputHuman("%-10s  %s\n", r.Category, r.Venue)
		}
		return
	}
	outputJSON(results)
}
