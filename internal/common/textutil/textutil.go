// Package textutil normalizes user text before matching.
package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Normalize applies NFKC, lower-cases, replaces punctuation with spaces and
// collapses whitespace. Apostrophes and hyphens inside words and decimal
// points inside numbers are kept; thousands separators are dropped.
func Normalize(s string) string {
	s = Lower(norm.NFKC.String(s))

	var b strings.Builder
	b.Grow(len(s))
	runes := []rune(s)
	for i, r := range runes {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case (r == '-' || r == '\'') && between(runes, i, isWordRune):
			b.WriteRune(r)
		case r == '.' && between(runes, i, unicode.IsDigit):
			b.WriteRune(r)
		case r == ',' && between(runes, i, unicode.IsDigit):
		default:
			b.WriteByte(' ')
		}
	}
	return CollapseSpaces(b.String())
}

// StripPunctuation removes the sentence punctuation FAQ matching ignores
// (?!.,;:) and collapses whitespace, leaving case untouched.
func StripPunctuation(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '?', '!', '.', ',', ';', ':':
			return -1
		}
		return r
	}, s)
	return CollapseSpaces(s)
}

// CollapseSpaces trims and squeezes runs of whitespace to one space.
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Casers hold state, so each call builds its own.

// Lower lower-cases s with Unicode-aware casing.
func Lower(s string) string { return cases.Lower(language.Und).String(s) }

// Title capitalizes the first letter of every word.
func Title(s string) string { return cases.Title(language.Und).String(s) }

// Upper upper-cases s.
func Upper(s string) string { return cases.Upper(language.Und).String(s) }

// Tokens splits normalized text into words.
func Tokens(s string) []string {
	return strings.Fields(s)
}

func between(runes []rune, i int, pred func(rune) bool) bool {
	return i > 0 && i < len(runes)-1 && pred(runes[i-1]) && pred(runes[i+1])
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
