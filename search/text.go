package search

import (
	"strings"
	"unicode"
)

// Stop words filtered out of both stored postings and queries
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true, "shall": true, "may": true, "must": true,
}

// splitTerms breaks a whitespace-delimited word into lowercase runs of
// letters and digits. Any other rune ends the current run, so "9:00" yields
// "9" and "00" and no punctuation ever reaches a term. Posting keys embed
// terms between ':' separators and rely on this.
func splitTerms(word string) []string {
	var terms []string
	var run strings.Builder
	for _, r := range word {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			run.WriteRune(unicode.ToLower(r))
			continue
		}
		if run.Len() > 0 {
			terms = append(terms, run.String())
			run.Reset()
		}
	}
	if run.Len() > 0 {
		terms = append(terms, run.String())
	}
	return terms
}

// Tokenize splits text into lowercase letter and digit terms with stop words
// removed, returning per-term frequencies. Ingestion builds postings with it
// and query scoring reuses it, so the two sides agree on term identity.
func Tokenize(text string) map[string]int {
	terms := make(map[string]int)
	for _, word := range strings.Fields(text) {
		for _, term := range splitTerms(word) {
			if !stopWords[term] {
				terms[term]++
			}
		}
	}
	return terms
}

// tokenizeAndFilter splits text into terms preserving document order.
func tokenizeAndFilter(text string) []string {
	var filtered []string
	for _, word := range strings.Fields(text) {
		for _, term := range splitTerms(word) {
			if !stopWords[term] {
				filtered = append(filtered, term)
			}
		}
	}
	return filtered
}
