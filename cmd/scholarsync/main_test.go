package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/matsen/scholarsync/internal/config"
	"github.com/matsen/scholarsync/internal/harvest"
	"github.com/matsen/scholarsync/internal/publication"
	"github.com/matsen/scholarsync/internal/scholar"
	"gopkg.in/yaml.v3"
)

func TestApplySyncFlags(t *testing.T) {
	if err := syncCmd.ParseFlags([]string{"--min-delay", "7s", "--max-retries", "2", "--bib", "a.txt,b.pdf"}); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}

	cfg := applySyncFlags(syncCmd, []string{"XYZ"}, config.Default())
	if cfg.ScholarID != "XYZ" {
		t.Errorf("ScholarID = %q, want XYZ", cfg.ScholarID)
	}
	if cfg.MinDelay != 7*time.Second || cfg.MaxRetries != 2 {
		t.Errorf("MinDelay = %v MaxRetries = %d", cfg.MinDelay, cfg.MaxRetries)
	}
	if strings.Join(cfg.BibliographyFiles, ",") != "a.txt,b.pdf" {
		t.Errorf("BibliographyFiles = %v", cfg.BibliographyFiles)
	}
	// Unset flags leave the config alone.
	if cfg.MaxDelay != config.Default().MaxDelay || cfg.CheckpointPath != config.Default().CheckpointPath {
		t.Errorf("unset flags changed config: %+v", cfg)
	}
}

func TestScholarIDStartingWithDash(t *testing.T) {
	const id = "-rmRjqIAAAAJ"

	// Without --id or "--" the leading dash reads as shorthand flags.
	if err := syncCmd.ParseFlags([]string{id}); err == nil {
		t.Error("ParseFlags accepted a bare dash-leading ID")
	}

	if err := syncCmd.ParseFlags([]string{"--id=" + id}); err != nil {
		t.Fatalf("ParseFlags(--id): %v", err)
	}
	if cfg := applySyncFlags(syncCmd, nil, config.Default()); cfg.ScholarID != id {
		t.Errorf("sync --id: ScholarID = %q, want %q", cfg.ScholarID, id)
	}

	if err := syncCmd.ParseFlags([]string{"--", id}); err != nil {
		t.Fatalf("ParseFlags(--): %v", err)
	}
	if cfg := applySyncFlags(syncCmd, syncCmd.Flags().Args(), config.Default()); cfg.ScholarID != id {
		t.Errorf("sync -- id: ScholarID = %q, want %q", cfg.ScholarID, id)
	}

	if err := probeCmd.ParseFlags([]string{"--id=" + id}); err != nil {
		t.Fatalf("probe ParseFlags(--id): %v", err)
	}
	if got := scholarIDArg(probeCmd, nil, probeScholarID); got != id {
		t.Errorf("probe --id: got %q, want %q", got, id)
	}
	if got := scholarIDArg(probeCmd, []string{"POSITIONAL"}, probeScholarID); got != "POSITIONAL" {
		t.Errorf("positional ID should win over --id, got %q", got)
	}
}

func TestRunFailure(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{"profile unavailable", fmt.Errorf("lookup: %w", harvest.ErrProfileUnavailable), ExitProfileUnavailable, "lookup: " + harvest.ErrProfileUnavailable.Error()},
		{"interrupted", fmt.Errorf("fetch: %w", context.Canceled), ExitError, "interrupted; progress saved to cp.json"},
		{"other", errors.New("disk full"), ExitError, "disk full"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, msg := runFailure(tt.err, "cp.json")
			if code != tt.wantCode || msg != tt.wantMsg {
				t.Errorf("runFailure() = (%d, %q), want (%d, %q)", code, msg, tt.wantCode, tt.wantMsg)
			}
		})
	}
}

func TestProgressPrinter(t *testing.T) {
	var buf bytes.Buffer
	emit := progressPrinter(&buf)

	emit(harvest.Event{Index: 0, Total: 3, Attempt: 1, MaxAttempts: 5, Err: &scholar.Error{Kind: scholar.KindRateLimited, Err: errors.New("429")}})
	emit(harvest.Event{Index: 0, Total: 3, Done: true, Outcome: harvest.Succeeded, Category: publication.Journal, Record: publication.Record{Title: "A Paper", Year: "2024"}})
	emit(harvest.Event{Index: 1, Total: 3, Done: true, Outcome: harvest.SkippedDuplicate, Record: publication.Record{Title: "Old Paper"}})
	emit(harvest.Event{Index: 2, Total: 3, Done: true, Outcome: harvest.FailedExhausted, Attempt: 5, Err: errors.New("gone")})
	emit(harvest.Event{Index: 2, Total: 3, Done: true, Outcome: harvest.FailedExhausted, Attempt: 1,
		Err: &scholar.Error{Kind: scholar.KindNotFound, Op: "fill_publication", StatusCode: 404}})
	emit(harvest.Event{Index: 2, Total: 3, Done: true, Outcome: harvest.FailedExhausted, Attempt: 5,
		Err: &scholar.Error{Kind: scholar.KindRateLimited, Op: "fill_publication", Err: errors.New("captcha page")}})

	want := []string{
		"[1/3] attempt 1/5 failed (rate_limited), retrying",
		"[1/3] JOURNAL: A Paper (2024)",
		"[2/3] already in CV: Old Paper",
		"[3/3] failed after 5 attempts: gone",
		"[3/3] not found on Scholar: scholar fill_publication: not_found (status 404)",
		"[3/3] still blocked after 5 attempts: scholar fill_publication: rate_limited: captcha page",
	}
	got := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(got) != len(want) {
		t.Fatalf("got %d lines:\n%s", len(got), buf.String())
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly ten", 11, "exactly ten"},
		{"a longer title here", 10, "a longe..."},
		{"héllo wörld", 8, "héllo..."},
		{"abc", 2, "ab"},
	}
	for _, tt := range tests {
		if got := truncateString(tt.in, tt.max); got != tt.want {
			t.Errorf("truncateString(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestConfigYAMLMasksPassword(t *testing.T) {
	cfg := config.Default()
	cfg.ControlPassword = "hunter2"

	data, err := configYAML(cfg)
	if err != nil {
		t.Fatalf("configYAML: %v", err)
	}
	if strings.Contains(string(data), "hunter2") {
		t.Error("password not masked")
	}

	var back config.Config
	if err := yaml.Unmarshal(data, &back); err != nil {
		t.Fatalf("output is not loadable config: %v", err)
	}
	if back.MinDelay != cfg.MinDelay || back.OutputText != cfg.OutputText {
		t.Errorf("round trip lost values: %+v", back)
	}
}

func TestNonEmpty(t *testing.T) {
	if got := nonEmpty("a", "", "b"); strings.Join(got, ",") != "a,b" {
		t.Errorf("nonEmpty = %v", got)
	}
	if got := nonEmpty("", ""); got != nil {
		t.Errorf("nonEmpty = %v, want nil", got)
	}
}
