// Package scholar retrieves author profiles and publication details from
// Google Scholar.
package scholar

import (
	"context"
	"strings"
)

// PubRef is a lightweight publication reference from a profile listing.
type PubRef struct {
	ID        string `json:"id"` // citation_for_view key, e.g. "-rmRjqIAAAAJ:u5HHmVD_uO8C"
	Title     string `json:"title"`
	Authors   string `json:"authors"`
	Citation  string `json:"citation"` // Venue line as shown in the listing
	Year      string `json:"year"`
	Citations int    `json:"citations"`
}

// Detail is the full record for one publication. Absent fields are empty.
type Detail struct {
	Title      string `json:"title"`
	Authors    string `json:"authors"` // Names joined with " and "
	Journal    string `json:"journal,omitempty"`
	Conference string `json:"conference,omitempty"`
	Book       string `json:"book,omitempty"`
	Source     string `json:"source,omitempty"`
	Citation   string `json:"citation,omitempty"`
	Year       string `json:"year"`
	Volume     string `json:"volume"`
	Issue      string `json:"issue,omitempty"`
	Pages      string `json:"pages"`
	Publisher  string `json:"publisher"`
	PubURL     string `json:"pub_url"`
	Citations  int    `json:"citations"`
}

// Venue returns the best available venue text: journal, conference, book,
// source, then the listing's citation line.
func (d Detail) Venue() string {
	for _, v := range []string{d.Journal, d.Conference, d.Book, d.Source, d.Citation} {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// Source provides an author's ordered publication list and per-item details.
type Source interface {
	// LookupAuthor returns the publications of the profile, in the order
	// the profile lists them.
	LookupAuthor(ctx context.Context, scholarID string) ([]PubRef, error)

	// FillPublication fetches full details for one reference.
	FillPublication(ctx context.Context, ref PubRef) (*Detail, error)
}

// IDs returns the reference IDs in order.
func IDs(refs []PubRef) []string {
	ids := make([]string, len(refs))
	for i, r := range refs {
		ids[i] = r.ID
	}
	return ids
}
