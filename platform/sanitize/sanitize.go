// Package sanitize cleans user-provided text before storage and search.
package sanitize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	htmlTagRegex    = regexp.MustCompile(`<[^>]*>`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
)

// AccentFoldSQL is the translate() call that mirrors Fold on the database side.
const AccentFoldSQL = `translate(lower(%s), 'àâäáãåçéèêëíìîïñóòôöõúùûüýÿ', 'aaaaaaceeeeiiiinooooouuuuyy')`

// StripHTML removes tags and decodes the common entities.
func StripHTML(s string) string {
	result := htmlTagRegex.ReplaceAllString(s, "")
	result = strings.NewReplacer(
		"&lt;", "<",
		"&gt;", ">",
		"&amp;", "&",
		"&quot;", "\"",
		"&#39;", "'",
		"&nbsp;", " ",
	).Replace(result)
	result = htmlTagRegex.ReplaceAllString(result, "")
	return strings.TrimSpace(result)
}

// Text strips HTML from free text (comments, notes, contact messages).
func Text(s string) string {
	return StripHTML(s)
}

func TextPtr(s *string) *string {
	if s == nil {
		return nil
	}
	result := Text(*s)
	return &result
}

// Line strips HTML and collapses whitespace, for single-line fields like names.
func Line(s string) string {
	return whitespaceRegex.ReplaceAllString(StripHTML(s), " ")
}

// Email lowercases and trims an address.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Fold lowercases s and removes diacritics ("Hélène" -> "helene").
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.NewReplacer("œ", "oe", "æ", "ae", "Œ", "oe", "Æ", "ae").Replace(folded)
	return strings.ToLower(strings.TrimSpace(folded))
}

// SearchPattern turns a free-text query into an accent-insensitive LIKE
// pattern, or nil when the query is empty.
func SearchPattern(query string) *string {
	folded := Fold(query)
	if folded == "" {
		return nil
	}
	folded = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(folded)
	pattern := "%" + folded + "%"
	return &pattern
}
