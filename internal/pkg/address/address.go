// Package address normalizes place names and postal addresses.
package address

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Letters NFKD cannot decompose into an ASCII base.
var foldReplacer = strings.NewReplacer(
	"ß", "ss",
	"æ", "ae", "Æ", "AE",
	"œ", "oe", "Œ", "OE",
	"ø", "o", "Ø", "O",
	"đ", "d", "Đ", "D",
	"ł", "l", "Ł", "L",
	"þ", "th", "Þ", "TH",
	"ı", "i",
)

// Fold strips diacritics and maps common ligatures to ASCII.
func Fold(s string) string {
	// transform.Chain keeps state, so build one per call.
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return foldReplacer.Replace(folded)
}

// Slugify turns a name into a lowercase ASCII slug: diacritics stripped,
// runs of anything other than [a-z0-9] collapsed to one hyphen, no leading
// or trailing hyphen. Slugify(Slugify(s)) == Slugify(s).
func Slugify(name string) string {
	folded := strings.ToLower(Fold(name))

	var b strings.Builder
	b.Grow(len(folded))
	pendingHyphen := false
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}
	return b.String()
}

// AssembleAddressString returns the trimmed raw address when present,
// otherwise the non-empty parts joined with ", ".
func AssembleAddressString(raw string, parts ...string) string {
	if r := strings.TrimSpace(raw); r != "" {
		return r
	}
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}

// NormalizeQuery lowercases s and collapses whitespace.
func NormalizeQuery(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Tokenize splits a normalized query on whitespace.
func Tokenize(s string) []string {
	return strings.Fields(strings.ToLower(s))
}
