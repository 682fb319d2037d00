// Package report builds the two run outputs: a JSON document with the new
// publications and run statistics, and a plain-text CV addendum.
package report

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/matsen/scholarsync/internal/checkpoint"
	"github.com/matsen/scholarsync/internal/publication"
)

// Statistics summarizes a run.
type Statistics struct {
	TotalFound            int     `json:"total_found"`
	NewJournals           int     `json:"new_journals"`
	NewConferences        int     `json:"new_conferences"`
	NewPreprints          int     `json:"new_preprints"`
	SkippedDuplicates     int     `json:"skipped_duplicates"`
	SkippedNoTitle        int     `json:"skipped_no_title"`
	Failed                int     `json:"failed"`
	ProcessingTimeSeconds float64 `json:"processing_time_seconds"`
}

// Document is the JSON output of a run.
type Document struct {
	GeneratedDate time.Time `json:"generated_date"`
	CVLastUpdate  string    `json:"cv_last_update"`
	ScholarID     string    `json:"scholar_id"`
	publication.Collection
	Statistics Statistics `json:"statistics"`
}

// Input is what BuildDocument needs from a finished run.
type Input struct {
	ScholarID    string
	CVLastUpdate string
	Collection   publication.Collection
	Stats        checkpoint.Stats
	Total        int
	Elapsed      time.Duration
	Generated    time.Time
}

// BuildDocument sorts every group newest first and computes statistics.
func BuildDocument(in Input) Document {
	sorted := in.Collection.Sorted()
	for _, g := range []*[]publication.Record{&sorted.Journals, &sorted.Conferences, &sorted.Preprints} {
		if *g == nil {
			*g = []publication.Record{}
		}
	}

	return Document{
		GeneratedDate: in.Generated,
		CVLastUpdate:  in.CVLastUpdate,
		ScholarID:     in.ScholarID,
		Collection:    sorted,
		Statistics: Statistics{
			TotalFound:            in.Total,
			NewJournals:           len(sorted.Journals),
			NewConferences:        len(sorted.Conferences),
			NewPreprints:          len(sorted.Preprints),
			SkippedDuplicates:     in.Stats.SkippedDuplicate,
			SkippedNoTitle:        in.Stats.SkippedNoTitle,
			Failed:                in.Stats.Failed,
			ProcessingTimeSeconds: math.Round(in.Elapsed.Seconds()*100) / 100,
		},
	}
}

// EncodeJSON writes doc as indented JSON. Non-ASCII text and HTML
// characters are written as-is.
func EncodeJSON(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// Text layout of a section header.
var (
	rule = strings.Repeat("=", 70)

	sectionTitles = map[publication.Category][2]string{
		publication.Journal:    {"JOURNAL PAPERS", "Add to Section: II.A.1 - Articles in Peer-Reviewed Journals"},
		publication.Conference: {"CONFERENCE PAPERS", "Add to Section: II.A.3 - Peer-Reviewed Conference Proceedings"},
		publication.Preprint:   {"PREPRINTS (ArXiv, etc.)", ""},
	}
)

// ReviewChecklist is printed at the end of the addendum.
var ReviewChecklist = []string{
	"Mark graduate students with + after their names",
	"Mark undergraduate students with * after their names",
	"Verify all author names and initials",
	"Check volume and page numbers for accuracy",
	"Verify journal/conference names",
	"Add numbering to each section",
	"Update the CV date at the top of the document",
	"Note: Journal/conference names are in **bold** (use Word bold formatting)",
}

// TextOptions control the addendum layout.
type TextOptions struct {
	Style publication.Style
	// AppointmentLabel adds "During <label> appointment" under the journal
	// and conference headers when set.
	AppointmentLabel string
}

// RenderText writes the CV addendum. Empty groups get no section.
func RenderText(w io.Writer, doc Document, opts TextOptions) error {
	bw := bufio.NewWriter(w)
	line := func(format string, args ...any) {
		fmt.Fprintf(bw, format+"\n", args...)
	}

	line("%s", rule)
	line("NEW PUBLICATIONS TO ADD TO CV")
	line("%s", rule)
	line("Generated on: %s", doc.GeneratedDate.Format("2006-01-02 15:04:05"))
	line("From Google Scholar ID: %s", doc.ScholarID)
	line("")

	for _, cat := range publication.Categories {
		records := doc.Group(cat)
		if len(records) == 0 {
			continue
		}
		titles := sectionTitles[cat]
		line("")
		line("%s", rule)
		line("%s", titles[0])
		if titles[1] != "" {
			line("%s", titles[1])
		}
		line("%s", rule)
		if cat != publication.Preprint && opts.AppointmentLabel != "" {
			line("")
			line("During %s appointment", opts.AppointmentLabel)
		}
		line("")
		for _, r := range records {
			line("%s", opts.Style.Entry(r, cat))
			line("")
		}
	}

	line("")
	line("%s", rule)
	line("MANUAL REVIEW REQUIRED")
	line("%s", rule)
	line("")
	line("Before adding to your CV, please:")
	for i, item := range ReviewChecklist {
		line("%d. %s", i+1, item)
	}

	return bw.Flush()
}

// WriteFiles writes the JSON document to jsonPath and the text addendum to
// textPath. Either path may be empty to skip that output.
func WriteFiles(doc Document, jsonPath, textPath string, opts TextOptions) error {
	if jsonPath != "" {
		var buf bytes.Buffer
		if err := EncodeJSON(&buf, doc); err != nil {
			return fmt.Errorf("encoding JSON report: %w", err)
		}
		if err := os.WriteFile(jsonPath, buf.Bytes(), 0644); err != nil {
			return fmt.Errorf("writing %s: %w", jsonPath, err)
		}
	}

	if textPath != "" {
		var buf bytes.Buffer
		if err := RenderText(&buf, doc, opts); err != nil {
			return fmt.Errorf("rendering text report: %w", err)
		}
		if err := os.WriteFile(textPath, buf.Bytes(), 0644); err != nil {
			return fmt.Errorf("writing %s: %w", textPath, err)
		}
	}

	return nil
}
