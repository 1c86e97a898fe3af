package embed

import (
	"strings"
	"unicode"
)

// normalizeText strips control characters, collapses whitespace runs to
// a single space, and lowercases.
func normalizeText(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	lastSpace := true // swallow leading whitespace
	for _, r := range text {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			continue
		}
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
			continue
		}
		b.WriteRune(unicode.ToLower(r))
		lastSpace = false
	}

	return strings.TrimRight(b.String(), " ")
}

// isPunct classifies a rune as punctuation for pre-tokenization: the
// ASCII punctuation ranges plus the Unicode punctuation and symbol
// categories.
func isPunct(r rune) bool {
	if (r >= '!' && r <= '/') || (r >= ':' && r <= '@') ||
		(r >= '[' && r <= '`') || (r >= '{' && r <= '~') {
		return true
	}
	return unicode.IsPunct(r) || unicode.IsSymbol(r)
}

// preTokenize splits normalized text into maximal runs of
// non-whitespace, non-punctuation runes, plus one token per punctuation
// mark.
func preTokenize(text string) []string {
	var tokens []string
	var current []rune

	flush := func() {
		if len(current) > 0 {
			tokens = append(tokens, string(current))
			current = current[:0]
		}
	}

	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			flush()
		case isPunct(r):
			flush()
			tokens = append(tokens, string(r))
		default:
			current = append(current, r)
		}
	}
	flush()

	return tokens
}
