// Package publication defines publication records, venue classification,
// and CV citation formatting.
package publication

// Record is one accepted publication, as written to the JSON outputs and
// the checkpoint.
type Record struct {
	Title      string `json:"title"`
	Authors    string `json:"authors"` // Raw free-text list, names separated by "and"
	Venue      string `json:"venue"`
	Year       string `json:"year"`
	Volume     string `json:"volume"`
	Pages      string `json:"pages"`
	Publisher  string `json:"publisher"`
	ScholarURL string `json:"scholar_url"`
	Citations  int    `json:"citations"`
}

// Category is the CV section a publication belongs to.
type Category string

const (
	Journal    Category = "journal"
	Conference Category = "conference"
	Preprint   Category = "preprint"
)

// Categories lists the categories in output section order.
var Categories = []Category{Journal, Conference, Preprint}

// Label returns the upper-case label used in progress output.
func (c Category) Label() string {
	switch c {
	case Conference:
		return "CONFERENCE"
	case Preprint:
		return "PREPRINT"
	default:
		return "JOURNAL"
	}
}

// Collection accumulates records grouped by category, in insertion order.
type Collection struct {
	Journals    []Record `json:"journal_papers"`
	Conferences []Record `json:"conference_papers"`
	Preprints   []Record `json:"preprints"`
}

// Add appends rec to the group for cat.
func (c *Collection) Add(rec Record, cat Category) {
	switch cat {
	case Preprint:
		c.Preprints = append(c.Preprints, rec)
	case Conference:
		c.Conferences = append(c.Conferences, rec)
	default:
		c.Journals = append(c.Journals, rec)
	}
}

// Group returns the records for cat.
func (c *Collection) Group(cat Category) []Record {
	switch cat {
	case Preprint:
		return c.Preprints
	case Conference:
		return c.Conferences
	default:
		return c.Journals
	}
}

// Len returns the total number of records across all groups.
func (c *Collection) Len() int {
	return len(c.Journals) + len(c.Conferences) + len(c.Preprints)
}

// Sorted returns a copy with every group sorted by year, newest first.
// The receiver is not modified.
func (c *Collection) Sorted() Collection {
	return Collection{
		Journals:    SortByYear(c.Journals),
		Conferences: SortByYear(c.Conferences),
		Preprints:   SortByYear(c.Preprints),
	}
}

// Clone returns a deep copy of the collection's slices.
func (c *Collection) Clone() Collection {
	return Collection{
		Journals:    append([]Record(nil), c.Journals...),
		Conferences: append([]Record(nil), c.Conferences...),
		Preprints:   append([]Record(nil), c.Preprints...),
	}
}
