package publication

import "strings"

// PreprintKeywords mark a venue as a preprint server. Checked first.
var PreprintKeywords = []string{"arxiv", "preprint", "biorxiv", "medrxiv", "ssrn"}

// ConferenceKeywords mark a venue as a conference or workshop.
var ConferenceKeywords = []string{
	"conference", "proceedings", "workshop", "symposium", "meeting",
	"nips", "neurips", "icml", "cvpr", "iccv", "eccv", "aaai", "ijcai",
	"iclr", "acm", "ieee", "iccps", "acc", "cdc", "dscc", "mecc",
	"allerton", "siam", "asilomar", "hpec",
}

// Classify maps free-text venue to a category using case-insensitive
// substring tests. Preprint markers win over conference markers; anything
// else, including the empty string, is a journal.
func Classify(venue string) Category {
	v := strings.ToLower(venue)
	if containsAny(v, PreprintKeywords) {
		return Preprint
	}
	if containsAny(v, ConferenceKeywords) {
		return Conference
	}
	return Journal
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
