// Package dedupe decides whether a fetched publication already appears in
// an existing CV or bibliography document.
//
// Matching is heuristic: the document is treated as an opaque blob of text,
// never parsed into entries.
package dedupe

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MatchThreshold is the fraction of title words that must be found in the
// document for the title to count as present.
const MatchThreshold = 0.8

// MinWordLen is the length a title word must exceed to be counted.
const MinWordLen = 3

// Matcher reports whether a title already appears in existing text.
type Matcher interface {
	IsDuplicate(title, existing string) bool
}

// Strategy names accepted by ForStrategy.
const (
	StrategyOverlap = "overlap"
	StrategyStrict  = "strict"
)

// ForStrategy returns the matcher registered under name. An empty name
// selects the best-effort overlap matcher.
func ForStrategy(name string) (Matcher, error) {
	switch name {
	case "", StrategyOverlap:
		return WordOverlap{}, nil
	case StrategyStrict:
		return WordBoundary{}, nil
	default:
		return nil, fmt.Errorf("unknown dedupe strategy: %s (valid: %s, %s)", name, StrategyOverlap, StrategyStrict)
	}
}

// WordOverlap is the best-effort matcher. A title word counts when it is
// longer than MinWordLen and occurs anywhere in the cleaned document as a
// substring, so short fragments can produce false positives.
type WordOverlap struct{}

// IsDuplicate implements Matcher.
func (WordOverlap) IsDuplicate(title, existing string) bool {
	if existing == "" {
		return false
	}
	doc := clean(existing)
	return overlapRatio(title, func(w string) bool {
		return strings.Contains(doc, w)
	}) > MatchThreshold
}

// WordBoundary is a stricter matcher: a title word counts only when it is a
// whole word of the document.
type WordBoundary struct{}

// IsDuplicate implements Matcher.
func (WordBoundary) IsDuplicate(title, existing string) bool {
	if existing == "" {
		return false
	}
	words := make(map[string]struct{})
	for _, w := range strings.Fields(clean(existing)) {
		words[w] = struct{}{}
	}
	return overlapRatio(title, func(w string) bool {
		_, ok := words[w]
		return ok
	}) > MatchThreshold
}

// overlapRatio returns the fraction of distinct title words that are long
// enough and satisfy found.
func overlapRatio(title string, found func(string) bool) float64 {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(clean(title)) {
		set[w] = struct{}{}
	}
	if len(set) == 0 {
		return 0
	}

	matches := 0
	for w := range set {
		if utf8.RuneCountInString(w) > MinWordLen && found(w) {
			matches++
		}
	}
	return float64(matches) / float64(len(set))
}

// clean lower-cases s and drops everything but letters, digits, underscores
// and whitespace.
func clean(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_', unicode.IsSpace(r):
			return unicode.ToLower(r)
		default:
			return -1
		}
	}, s)
}
