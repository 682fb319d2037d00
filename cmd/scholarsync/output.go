package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Constants for output formatting.
const (
	ProgressTitleMaxLen = 60 // Used in per-item progress lines
	SummaryRuleWidth    = 70
)

// outputJSON writes a value as formatted JSON to stdout.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputHuman writes a human-readable string to stdout.
func outputHuman(format string, args ...interface{}) {
	fmt.Printf(format, args...)
}

// exitWithError outputs an error in the appropriate format (human or JSON) and exits.
func exitWithError(code int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if humanOutput {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	} else {
		outputJSON(ErrorResponse{Error: msg})
	}
	os.Exit(code)
}

// exitWithCode exits after a result has already been printed.
func exitWithCode(code int) {
	os.Exit(code)
}

// truncateString shortens s to maxLen runes, adding "..." when cut.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

func rule() string {
	return strings.Repeat("=", SummaryRuleWidth)
}

// ErrorResponse is the JSON error format.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusResponse is a generic response for commands that return status.
type StatusResponse struct {
	Status string `json:"status"`
	Path   string `json:"path,omitempty"`
}

// SyncResponse is the response for the sync command.
type SyncResponse struct {
	ScholarID      string   `json:"scholar_id"`
	TotalFound     int      `json:"total_found"`
	ResumedFrom    int      `json:"resumed_from"`
	NewJournals    int      `json:"new_journals"`
	NewConferences int      `json:"new_conferences"`
	NewPreprints   int      `json:"new_preprints"`
	Skipped        int      `json:"skipped"`
	Failed         int      `json:"failed"`
	ElapsedSeconds float64  `json:"elapsed_seconds"`
	Bibliography   string   `json:"bibliography,omitempty"`
	OutputJSON     string   `json:"output_json,omitempty"`
	OutputText     string   `json:"output_text,omitempty"`
	Published      []string `json:"published,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
}

// ProbeResponse is the response for the probe command.
type ProbeResponse struct {
	Reachable bool   `json:"reachable"`
	Target    string `json:"target"`
	IP        string `json:"ip,omitempty"`
	IsTor     bool   `json:"is_tor"`
}

// RotateResponse is the response for the rotate command.
type RotateResponse struct {
	Rotated bool   `json:"rotated"`
	Control string `json:"control"`
}

// ClassifyResult is one entry of the classify command output.
type ClassifyResult struct {
	Venue    string `json:"venue"`
	Category string `json:"category"`
}

// DedupeResponse is the response for the dedupe command.
type DedupeResponse struct {
	Title        string `json:"title"`
	Duplicate    bool   `json:"duplicate"`
	Strategy     string `json:"strategy"`
	Bibliography string `json:"bibliography,omitempty"`
}

// CheckpointResponse is the response for checkpoint show.
type CheckpointResponse struct {
	Path        string `json:"path"`
	Exists      bool   `json:"exists"`
	NextIdx     int    `json:"next_idx,omitempty"`
	Total       int    `json:"total,omitempty"`
	Journals    int    `json:"journal_papers,omitempty"`
	Conferences int    `json:"conference_papers,omitempty"`
	Preprints   int    `json:"preprints,omitempty"`
	SavedAt     string `json:"saved_at,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
}
