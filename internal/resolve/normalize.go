package resolve

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize folds case, removes diacritics and collapses whitespace, so
// that "  Café  de la Paix" and "cafe de la paix" compare equal.
func Normalize(s string) string {
	// Transformers carry state; build a fresh chain per call.
	strip := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(strip, s)
	if err != nil {
		out = s
	}
	out = cases.Fold().String(out)
	return strings.Join(strings.Fields(out), " ")
}

// nameMatch reports whether two normalized names denote the same entity:
// equal, or one contained in the other when the shorter one has at least
// minLen runes.
func nameMatch(a, b string, minLen int) (match, exact bool) {
	if a == "" || b == "" {
		return false, false
	}
	if a == b {
		return true, true
	}
	short, long := a, b
	if utf8.RuneCountInString(short) > utf8.RuneCountInString(long) {
		short, long = long, short
	}
	if utf8.RuneCountInString(short) < minLen {
		return false, false
	}
	return strings.Contains(long, short), false
}
