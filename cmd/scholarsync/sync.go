package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/matsen/scholarsync/internal/checkpoint"
	"github.com/matsen/scholarsync/internal/config"
	"github.com/matsen/scholarsync/internal/dedupe"
	"github.com/matsen/scholarsync/internal/harvest"
	"github.com/matsen/scholarsync/internal/probe"
	"github.com/matsen/scholarsync/internal/publication"
	"github.com/matsen/scholarsync/internal/publish"
	"github.com/matsen/scholarsync/internal/report"
	"github.com/matsen/scholarsync/internal/retry"
	"github.com/matsen/scholarsync/internal/scholar"
	"github.com/spf13/cobra"
)

var (
	syncScholarID       string
	syncCheckpoint      string
	syncMinDelay        time.Duration
	syncMaxDelay        time.Duration
	syncMaxRetries      int
	syncRenewInterval   int
	syncOutputJSON      string
	syncOutputText      string
	syncAppointment     string
	syncCVLastUpdate    string
	syncDedupe          string
	syncBibliography    []string
	syncSkipProbe       bool
	syncVerbatimAuthors bool
)

var syncCmd = &cobra.Command{
	Use:   "sync [scholar-id]",
	Short: "Fetch a Scholar profile and write the CV addendum",
	Long: `Fetch every publication on a Google Scholar profile, skip those already in
the bibliography document, and write the JSON record and CV addendum.

Steps:
  1. Probe the profile page, rotating Tor identities until it is not blocked
  2. Retrieve the publication list (exit 3 if retries are exhausted)
  3. Resume from the checkpoint when the publication count is unchanged
  4. Fetch, classify and deduplicate each publication, checkpointing after each
  5. Write the outputs, clear the checkpoint, and upload to S3 if configured

Scholar IDs may start with "-". Pass those with --id=<id> or after "--".

Examples:
  scholarsync sync --id=-rmRjqIAAAAJ
  scholarsync sync -- -rmRjqIAAAAJ
  scholarsync sync H7k2pQwAAAAJ
  scholarsync sync --checkpoint progress.db --human
  scholarsync sync --no-tor --min-delay 10s --max-delay 20s`,
	Args: cobra.MaximumNArgs(1),
	Run:  runSync,
}

func init() {
	f := syncCmd.Flags()
	f.StringVar(&syncScholarID, "id", "", "Google Scholar profile ID (use for IDs starting with -)")
	f.StringVar(&syncCheckpoint, "checkpoint", "", "Checkpoint path (.db/.sqlite for SQLite)")
	f.DurationVar(&syncMinDelay, "min-delay", 0, "Minimum pause after each new publication")
	f.DurationVar(&syncMaxDelay, "max-delay", 0, "Maximum pause after each new publication")
	f.IntVar(&syncMaxRetries, "max-retries", 0, "Attempts per request, including the first")
	f.IntVar(&syncRenewInterval, "renew-interval", 0, "Rotate identity every N publications (0 disables)")
	f.StringVar(&syncOutputJSON, "output-json", "", "JSON output path")
	f.StringVar(&syncOutputText, "output-text", "", "CV addendum output path")
	f.StringVar(&syncAppointment, "appointment", "", `Label for the "During <label> appointment" line`)
	f.StringVar(&syncCVLastUpdate, "cv-last-update", "", "Date of the CV being updated")
	f.StringVar(&syncDedupe, "dedupe", "", "Duplicate detection: overlap or strict")
	f.StringSliceVar(&syncBibliography, "bib", nil, "Bibliography documents to check, first existing wins")
	f.BoolVar(&syncSkipProbe, "no-probe", false, "Skip the reachability probe")
	f.BoolVar(&syncVerbatimAuthors, "verbatim-authors", false, "Keep author names as fetched instead of initials")
	rootCmd.AddCommand(syncCmd)
}

// applySyncFlags overlays the flags the user set on cfg.
func applySyncFlags(cmd *cobra.Command, args []string, cfg config.Config) config.Config {
	if id := scholarIDArg(cmd, args, syncScholarID); id != "" {
		cfg.ScholarID = id
	}
	f := cmd.Flags()
	if f.Changed("checkpoint") {
		cfg.CheckpointPath = syncCheckpoint
	}
	if f.Changed("min-delay") {
		cfg.MinDelay = syncMinDelay
	}
	if f.Changed("max-delay") {
		cfg.MaxDelay = syncMaxDelay
	}
	if f.Changed("max-retries") {
		cfg.MaxRetries = syncMaxRetries
	}
	if f.Changed("renew-interval") {
		cfg.CircuitRenewInterval = syncRenewInterval
	}
	if f.Changed("output-json") {
		cfg.OutputJSON = syncOutputJSON
	}
	if f.Changed("output-text") {
		cfg.OutputText = syncOutputText
	}
	if f.Changed("appointment") {
		cfg.AppointmentLabel = syncAppointment
	}
	if f.Changed("cv-last-update") {
		cfg.CVLastUpdate = syncCVLastUpdate
	}
	if f.Changed("dedupe") {
		cfg.DedupeStrategy = syncDedupe
	}
	if f.Changed("bib") {
		cfg.BibliographyFiles = syncBibliography
	}
	return cfg
}

func runSync(cmd *cobra.Command, args []string) {
	cfg := applySyncFlags(cmd, args, mustLoadConfig())
	mustValidate(cfg)
	if err := cfg.RequireScholarID(); err != nil {
		exitWithError(ExitConfigError, "%v (pass it as an argument or set %s)", err, config.EnvScholarID)
	}

	logger := newLogger()
	ctx, stop := signalContext()
	defer stop()

	hc := newHTTPClient(cfg)
	rotator := newRotator(cfg, logger)
	client := scholar.NewClient(
		scholar.WithHTTPClient(hc),
		scholar.WithRateLimit(cfg.RequestsPerSecond),
		scholar.WithLogger(logger),
	)

	var warnings []string

	if !syncSkipProbe && cfg.ProbeAttempts > 0 {
		p := probe.New(hc, rotator, client.ProfileURL(cfg.ScholarID), cfg.SettleWait, probe.WithLogger(logger))
		if !p.FindCleanPath(ctx, cfg.ProbeAttempts) {
			warnings = append(warnings, "no unblocked identity found during probe; continuing")
			logger.Warn("continuing without a verified clean path", "attempts", cfg.ProbeAttempts)
		}
	}

	existing, bibPath := dedupe.LoadBibliography(cfg.BibliographyFiles, logger)
	matcher, err := dedupe.ForStrategy(cfg.DedupeStrategy)
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}

	store, err := checkpoint.Open(cfg.CheckpointPath)
	if err != nil {
		exitWithError(ExitError, "opening checkpoint: %v", err)
	}
	defer store.Close()

	opts := []harvest.Option{
		harvest.WithLogger(logger),
		harvest.WithProgress(progressPrinter(os.Stderr)),
	}
	if rotator != nil {
		opts = append(opts, harvest.WithRotator(rotator))
	}
	runner := harvest.New(client, store, matcher, retry.NewPolicy(cfg.MaxRetries), harvest.OptionsFromConfig(cfg), opts...)

	res, err := runner.Run(ctx, cfg.ScholarID, existing)
	if err != nil {
		code, msg := runFailure(err, cfg.CheckpointPath)
		// os.Exit skips deferred calls.
		if cerr := store.Close(); cerr != nil {
			logger.Warn("closing checkpoint failed", "path", cfg.CheckpointPath, "error", cerr)
		}
		stop()
		exitWithError(code, "%s", msg)
	}

	doc := report.BuildDocument(report.Input{
		ScholarID:    cfg.ScholarID,
		CVLastUpdate: cfg.CVLastUpdate,
		Collection:   res.Collection,
		Stats:        res.Stats,
		Total:        res.Total,
		Elapsed:      res.Elapsed,
		Generated:    time.Now(),
	})
	textOpts := report.TextOptions{Style: publication.DefaultStyle, AppointmentLabel: cfg.AppointmentLabel}
	if syncVerbatimAuthors {
		textOpts.Style.Authors = publication.AuthorsVerbatim
	}

	resp := SyncResponse{
		ScholarID:      cfg.ScholarID,
		TotalFound:     res.Total,
		ResumedFrom:    res.Start,
		NewJournals:    doc.Statistics.NewJournals,
		NewConferences: doc.Statistics.NewConferences,
		NewPreprints:   doc.Statistics.NewPreprints,
		Skipped:        res.Stats.SkippedDuplicate + res.Stats.SkippedNoTitle,
		Failed:         res.Stats.Failed,
		ElapsedSeconds: math.Round(res.Elapsed.Seconds()*10) / 10,
		Bibliography:   bibPath,
	}

	// The checkpoint is only cleared once the outputs exist.
	if err := report.WriteFiles(doc, cfg.OutputJSON, cfg.OutputText, textOpts); err != nil {
		logger.Error("writing outputs failed; checkpoint kept", "error", err)
		warnings = append(warnings, fmt.Sprintf("writing outputs: %v", err))
	} else {
		resp.OutputJSON = cfg.OutputJSON
		resp.OutputText = cfg.OutputText
		if err := store.Clear(); err != nil {
			logger.Warn("clearing checkpoint failed", "path", cfg.CheckpointPath, "error", err)
		}
		resp.Published = publishOutputs(ctx, cfg, logger, nonEmpty(cfg.OutputJSON, cfg.OutputText))
	}
	resp.Warnings = warnings

	if humanOutput {
		printSyncSummary(resp)
	} else {
		outputJSON(resp)
	}
}

// runFailure maps a harvest error to the exit code and message for it.
func runFailure(err error, checkpointPath string) (int, string) {
	switch {
	case errors.Is(err, harvest.ErrProfileUnavailable):
		return ExitProfileUnavailable, err.Error()
	case errors.Is(err, context.Canceled):
		return ExitError, "interrupted; progress saved to " + checkpointPath
	default:
		return ExitError, err.Error()
	}
}

// publishOutputs uploads files when an S3 bucket is configured. Failures
// are logged and leave the local files in place.
func publishOutputs(ctx context.Context, cfg config.Config, logger *slog.Logger, files []string) []string {
	if cfg.S3Bucket == "" || len(files) == 0 {
		return nil
	}
	up, err := publish.NewUploader(cfg.S3Bucket, cfg.S3Prefix, cfg.S3Region, cfg.ScholarID)
	if err != nil {
		logger.Warn("S3 upload skipped", "error", err)
		return nil
	}
	keys, err := up.Upload(ctx, time.Now(), files...)
	if err != nil {
		logger.Warn("S3 upload failed", "bucket", cfg.S3Bucket, "error", err)
	}
	for i, k := range keys {
		keys[i] = "s3://" + cfg.S3Bucket + "/" + k
	}
	return keys
}

func nonEmpty(paths ...string) []string {
	var out []string
	for _, p := range paths {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// progressPrinter writes one line per finished item and per failed attempt.
func progressPrinter(w io.Writer) func(harvest.Event) {
	return func(e harvest.Event) {
		prefix := fmt.Sprintf("[%d/%d]", e.Index+1, e.Total)
		if !e.Done {
			fmt.Fprintf(w, "%s attempt %d/%d failed (%s), retrying\n", prefix, e.Attempt, e.MaxAttempts, scholar.KindOf(e.Err))
			return
		}
		switch e.Outcome {
		case harvest.Succeeded:
			fmt.Fprintf(w, "%s %s: %s (%s)\n", prefix, e.Category.Label(), truncateString(e.Record.Title, ProgressTitleMaxLen), yearOrNA(e.Record.Year))
		case harvest.SkippedDuplicate:
			fmt.Fprintf(w, "%s already in CV: %s\n", prefix, truncateString(e.Record.Title, ProgressTitleMaxLen))
		case harvest.SkippedNoTitle:
			fmt.Fprintf(w, "%s skipped: no title\n", prefix)
		case harvest.FailedExhausted:
			switch {
			case scholar.IsNotFound(e.Err):
				fmt.Fprintf(w, "%s not found on Scholar: %v\n", prefix, e.Err)
			case scholar.IsRateLimited(e.Err):
				fmt.Fprintf(w, "%s still blocked after %d attempts: %v\n", prefix, e.Attempt, e.Err)
			default:
				fmt.Fprintf(w, "%s failed after %d attempts: %v\n", prefix, e.Attempt, e.Err)
			}
		}
	}
}

func yearOrNA(y string) string {
	if y == "" {
		return "n.d."
	}
	return y
}

func printSyncSummary(r SyncResponse) {
	outputHuman("%s\n", rule())
	outputHuman("Sync complete for %s\n", r.ScholarID)
	outputHuman("%s\n", rule())
	outputHuman("Publications on profile: %d", r.TotalFound)
	if r.ResumedFrom > 0 {
		outputHuman(" (resumed at %d)", r.ResumedFrom)
	}
	outputHuman("\n")
	outputHuman("New journal papers:      %d\n", r.NewJournals)
	outputHuman("New conference papers:   %d\n", r.NewConferences)
	outputHuman("New preprints:           %d\n", r.NewPreprints)
	outputHuman("Skipped:                 %d\n", r.Skipped)
	outputHuman("Failed:                  %d\n", r.Failed)
	outputHuman("Time:                    %.1fs\n", r.ElapsedSeconds)
	if r.Bibliography != "" {
		outputHuman("Checked against:         %s\n", r.Bibliography)
	}
	if r.OutputText != "" || r.OutputJSON != "" {
		outputHuman("\nOutput files:\n")
		for _, p := range nonEmpty(r.OutputText, r.OutputJSON) {
			outputHuman("  %s\n", p)
		}
	}
	for _, k := range r.Published {
		outputHuman("  %s\n", k)
	}
	for _, w := range r.Warnings {
		outputHuman("\nwarning: %s\n", w)
	}
}
