package main

import (
	"github.com/matsen/scholarsync/internal/dedupe"
	"github.com/spf13/cobra"
)

var (
	dedupeBibliography []string
	dedupeStrategy     string
)

var dedupeCmd = &cobra.Command{
	Use:   "dedupe <title>",
	Short: "Check whether a title already appears in the bibliography document",
	Long: `Check a title against the first bibliography document found
(cv_draft.txt, CV.txt, vita.txt, faculty_vita.txt by default; PDFs are
read as text).

Strategies:
  overlap  80% of title words longer than 3 letters occur anywhere in the document
  strict   the same, but words must match whole words

Examples:
  scholarsync dedupe "Sensor fusion for autonomous tractors"
  scholarsync dedupe "Sensor fusion" --bib vita.pdf --strategy strict --human`,
	Args: cobra.ExactArgs(1),
	Run:  runDedupe,
}

func init() {
	dedupeCmd.Flags().StringSliceVar(&dedupeBibliography, "bib", nil, "Bibliography documents to check, first existing wins")
	dedupeCmd.Flags().StringVar(&dedupeStrategy, "strategy", "", "overlap or strict (default from config)")
	rootCmd.AddCommand(dedupeCmd)
}

func runDedupe(cmd *cobra.Command, args []string) {
	cfg := mustLoadConfig()
	if cmd.Flags().Changed("bib") {
		cfg.BibliographyFiles = dedupeBibliography
	}
	if cmd.Flags().Changed("strategy") {
		cfg.DedupeStrategy = dedupeStrategy
	}
	mustValidate(cfg)

	matcher, err := dedupe.ForStrategy(cfg.DedupeStrategy)
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	text, path := dedupe.LoadBibliography(cfg.BibliographyFiles, newLogger())

	resp := DedupeResponse{
		Title:        args[0],
		Duplicate:    matcher.IsDuplicate(args[0], text),
		Strategy:     cfg.DedupeStrategy,
		Bibliography: path,
	}

	if humanOutput {
		if path == "" {
			outputHuman("No bibliography document found\n")
		}
		if resp.Duplicate {
			outputHuman("Already in %s: %s\n", path, resp.Title)
		} else {
			outputHuman("New: %s\n", resp.Title)
		}
		return
	}
	outputJSON(resp)
}
