package publication

import (
	"sort"
	"strings"
)

// AuthorMode selects how the author list is rendered in a citation.
type AuthorMode int

const (
	// AuthorsInitials abbreviates given names ("H. C. Croll, and K. Ikuma").
	AuthorsInitials AuthorMode = iota
	// AuthorsVerbatim keeps the author text exactly as fetched.
	AuthorsVerbatim
)

// Style holds the citation rendering rules.
type Style struct {
	Authors AuthorMode
}

// DefaultStyle is the CV style used for the text addendum.
var DefaultStyle = Style{Authors: AuthorsInitials}

func (s Style) authors(raw string) string {
	if s.Authors == AuthorsVerbatim {
		return strings.TrimSpace(raw)
	}
	return FormatAuthors(raw)
}

// Journal renders a journal citation:
//
//	Authors. "Title" **Journal** volume (year): pages.
//
// Empty volume, year or pages are left out together with their punctuation.
func (s Style) Journal(r Record) string {
	var b strings.Builder
	b.WriteString(s.head(r))
	if r.Volume != "" {
		b.WriteString(" " + r.Volume)
	}
	if r.Year != "" {
		b.WriteString(" (" + r.Year + ")")
	}
	if r.Pages != "" {
		b.WriteString(": " + r.Pages)
	}
	b.WriteString(".")
	return b.String()
}

// Conference renders a conference or preprint citation:
//
//	Authors. "Title" **Venue** (year).
func (s Style) Conference(r Record) string {
	var b strings.Builder
	b.WriteString(s.head(r))
	if r.Year != "" {
		b.WriteString(" (" + r.Year + ")")
	}
	b.WriteString(".")
	return b.String()
}

// Entry renders r with the rules for cat.
func (s Style) Entry(r Record, cat Category) string {
	if cat == Journal {
		return s.Journal(r)
	}
	return s.Conference(r)
}

func (s Style) head(r Record) string {
	return s.authors(r.Authors) + `. "` + r.Title + `" **` + r.Venue + `**`
}

// SortByYear returns a copy of records ordered by year text, newest first.
// Comparison is lexicographic on the text; records without a year sort
// after all dated ones. Ties keep their insertion order.
func SortByYear(records []Record) []Record {
	out := append([]Record(nil), records...)
	sort.SliceStable(out, func(i, j int) bool {
		yi, yj := out[i].Year, out[j].Year
		if yi == "" || yj == "" {
			return yi != "" && yj == ""
		}
		return yi > yj
	})
	return out
}
