package util

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonAlnum = regexp.MustCompile("[^a-z0-9]+")

// Slugify lowercases s, strips accents and collapses everything that is not
// a letter or digit into single underscores. Slugs are used as MQTT topic
// levels and discovery object ids, so "Büro Tür" becomes "buro_tur".
func Slugify(s string) string {
	s = strings.ToLower(Normalize(s))

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, _ = transform.String(t, s)

	s = nonAlnum.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// Normalize removes NULL padding and surrounding whitespace from names read
// off the panel.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	return strings.TrimSpace(s)
}
