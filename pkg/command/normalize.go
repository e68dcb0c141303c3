package command

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Normalize lowercases raw, removes punctuation and symbols, collapses runs of
// whitespace into a single space and trims the ends.
//
// Letters, digits and combining marks are word characters. Whitespace separates
// words. Anything else is dropped without inserting a space, so "can't" becomes
// "cant". Input is composed to NFC first so that decomposed accents survive as
// part of their letter.
//
// Normalize is idempotent and returns "" for empty or punctuation-only input.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}

	// cases.Caser keeps state, one per call keeps Normalize goroutine safe.
	lowered := cases.Lower(language.Und).String(norm.NFC.String(raw))

	var b strings.Builder
	b.Grow(len(lowered))
	pendingSpace := false
	for _, r := range lowered {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r):
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
		case unicode.IsSpace(r):
			pendingSpace = true
		}
	}
	// Dropping punctuation can leave a mark next to a letter it composes with.
	return norm.NFC.String(b.String())
}

// hasPhrase reports whether phrase occurs in normalized text on word boundaries.
func hasPhrase(text, phrase string) bool {
	if text == "" || phrase == "" {
		return false
	}
	return strings.Contains(" "+text+" ", " "+phrase+" ")
}

// hasAnyPhrase reports whether any of phrases occurs in text on word boundaries.
func hasAnyPhrase(text string, phrases []string) bool {
	for _, p := range phrases {
		if hasPhrase(text, p) {
			return true
		}
	}
	return false
}
