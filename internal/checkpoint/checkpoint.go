// Package checkpoint persists fetch-loop progress so an interrupted run can
// resume without refetching completed publications.
package checkpoint

import (
	"encoding/hex"
	"strings"
	"time"

	"github.com/matsen/scholarsync/internal/publication"
	"golang.org/x/crypto/blake2b"
)

// Stats counts items that produced no record.
type Stats struct {
	SkippedDuplicate int `json:"skipped_duplicates"`
	SkippedNoTitle   int `json:"skipped_no_title"`
	Failed           int `json:"failed"`
}

// State is the persisted progress of a run.
type State struct {
	NextIdx int `json:"next_idx"` // 0-based index of the next item to process
	Total   int `json:"total"`    // publication count when the state was saved
	publication.Collection
	SavedAt     time.Time `json:"saved_at"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	Stats       Stats     `json:"stats"`
}

// Store loads, saves and clears a single checkpoint.
type Store interface {
	// Load returns the stored state, or nil when none exists.
	Load() (*State, error)
	// Save overwrites the stored state.
	Save(State) error
	// Clear removes the stored state. Clearing an absent state is not an error.
	Clear() error
	// Close releases resources held by the store.
	Close() error
}

// Open returns the store for path: SQLite for .db, .sqlite and .sqlite3
// files, a JSON file otherwise.
func Open(path string) (Store, error) {
	lower := strings.ToLower(path)
	for _, ext := range []string{".db", ".sqlite", ".sqlite3"} {
		if strings.HasSuffix(lower, ext) {
			return OpenSQLite(path)
		}
	}
	return NewFileStore(path), nil
}

// Fingerprint hashes the ordered publication IDs. Two listings with the same
// IDs in the same order share a fingerprint.
func Fingerprint(ids []string) string {
	h, _ := blake2b.New256(nil)
	for _, id := range ids {
		h.Write([]byte(id))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Resumption is the starting point chosen from a stored state.
type Resumption struct {
	Start      int
	Collection publication.Collection
	Stats      Stats
	Resumed    bool
	// Reason explains why a stored state was discarded, or why resumption
	// is suspect. Empty when there was nothing to report.
	Reason string
}

// Resume decides where a run starts given the stored state and the freshly
// observed listing. The state is used only when its total equals total;
// otherwise the run starts over at 0 with nothing accumulated.
//
// The count is the only guard. A differing fingerprint at equal count is
// reported in Reason but does not discard the state.
func Resume(s *State, total int, fingerprint string) Resumption {
	if s == nil {
		return Resumption{}
	}
	if s.Total != total {
		return Resumption{Reason: "publication count changed"}
	}
	if s.NextIdx < 0 || s.NextIdx > total {
		return Resumption{Reason: "next index out of range"}
	}

	r := Resumption{
		Start:      s.NextIdx,
		Collection: s.Collection.Clone(),
		Stats:      s.Stats,
		Resumed:    true,
	}
	if s.Fingerprint != "" && fingerprint != "" && s.Fingerprint != fingerprint {
		r.Reason = "publication order changed at equal count"
	}
	return r
}
