package publication

import (
	"regexp"
	"strings"
)

// authorSeparator matches the word "and" between names.
var authorSeparator = regexp.MustCompile(`\s+and\s+`)

// SplitAuthors splits a free-text author list on the separator "and".
// Empty names are dropped.
func SplitAuthors(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var names []string
	for _, n := range authorSeparator.Split(raw, -1) {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	return names
}

// Abbreviate shortens every token but the last to its first letter plus a
// period: "Henry C Croll" → "H. C. Croll". Single-token names are kept.
func Abbreviate(name string) string {
	parts := strings.Fields(name)
	if len(parts) <= 1 {
		return strings.Join(parts, "")
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts[:len(parts)-1] {
		r := []rune(p)
		out = append(out, string(r[0])+".")
	}
	out = append(out, parts[len(parts)-1])
	return strings.Join(out, " ")
}

// FormatAuthors renders a raw author list in CV style.
//
// Examples:
//   - "Henry C Croll and Kaoru Ikuma" → "H. C. Croll, and K. Ikuma"
//   - "A B and C D and E F"           → "A. B, C. D, and E. F"
//   - "Plato"                         → "Plato"
func FormatAuthors(raw string) string {
	return joinAuthors(SplitAuthors(raw), Abbreviate)
}

func joinAuthors(names []string, format func(string) string) string {
	if len(names) == 0 {
		return ""
	}
	formatted := make([]string, len(names))
	for i, n := range names {
		formatted[i] = format(n)
	}
	if len(formatted) == 1 {
		return formatted[0]
	}
	return strings.Join(formatted[:len(formatted)-1], ", ") + ", and " + formatted[len(formatted)-1]
}
