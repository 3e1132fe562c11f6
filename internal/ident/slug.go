package ident

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxSlugLength is the longest slug Slugify will return.
const MaxSlugLength = 100

var (
	// disallowed matches anything that cannot appear in a slug.
	disallowed = regexp.MustCompile(`[^a-z0-9-]+`)
	// multiHyphen collapses runs of hyphens into one.
	multiHyphen = regexp.MustCompile(`-{2,}`)
)

// asciiFolds covers letters that have no canonical decomposition.
var asciiFolds = strings.NewReplacer(
	"ß", "ss",
	"æ", "ae", "Æ", "ae",
	"œ", "oe", "Œ", "oe",
	"ø", "o", "Ø", "o",
	"ł", "l", "Ł", "l",
	"đ", "d", "Đ", "d",
	"þ", "th", "Þ", "th",
	"ı", "i",
)

// Slugify converts arbitrary text into a filesystem and URL safe name.
//
// The pipeline is:
//  1. NFD-decompose and drop combining marks ("é" -> "e").
//  2. Fold the remaining non-decomposable letters to ASCII and lowercase.
//  3. Map whitespace and underscores to hyphens.
//  4. Drop everything outside [a-z0-9-], collapse and trim hyphens.
//  5. Truncate to MaxSlugLength without leaving a trailing hyphen.
//
// Slugify is total and idempotent; empty input yields an empty string.
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, err := transform.String(t, s)
	if err != nil {
		result = s
	}

	result = strings.ToLower(asciiFolds.Replace(result))

	result = strings.Map(func(r rune) rune {
		if r == '_' || unicode.IsSpace(r) {
			return '-'
		}
		return r
	}, result)

	result = disallowed.ReplaceAllString(result, "")
	result = multiHyphen.ReplaceAllString(result, "-")
	result = strings.Trim(result, "-")

	if len(result) > MaxSlugLength {
		result = strings.TrimRight(result[:MaxSlugLength], "-")
	}
	return result
}
