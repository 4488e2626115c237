// Package normalize provides the canonical string forms used for song
// identity and table lookups.
package normalize

import (
	"strings"
	"unicode"
)

// Text lowercases s, strips punctuation, and collapses runs of whitespace to
// a single space. Two strings that differ only in case, punctuation, or
// spacing normalize to the same value.
func Text(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	lastSpace := true
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}

	return strings.TrimRight(b.String(), " ")
}

// Pair returns the normalized (title, artist) identity key.
func Pair(title, artist string) string {
	return Text(title) + "|" + Text(artist)
}
