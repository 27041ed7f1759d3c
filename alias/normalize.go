package alias

import (
	"strings"
	"unicode"
)

// NormKey reduces a surface form to its normalized key: case-folded,
// whitespace-collapsed, punctuation and abbreviation periods stripped,
// stopword tokens removed.
func NormKey(surface string, stopwords map[string]bool) string {
	var b strings.Builder
	b.Grow(len(surface))
	for _, r := range surface {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '/':
			b.WriteByte(' ')
		}
		// Periods, commas, quotes and other punctuation are dropped, which
		// collapses abbreviation variants ("O.S.B." / "OSB").
	}

	fields := strings.Fields(b.String())
	if len(stopwords) > 0 {
		kept := fields[:0]
		for _, f := range fields {
			if !stopwords[f] {
				kept = append(kept, f)
			}
		}
		fields = kept
	}
	return strings.Join(fields, " ")
}
