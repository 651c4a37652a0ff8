package normalizer

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var reSpaces = regexp.MustCompile(`\s+`)

// StripDiacritics removes combining marks ("Curaçao" -> "Curacao").
func StripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, transform.RemoveFunc(isMn), norm.NFC)
	out, _, _ := transform.String(t, s)
	return out
}

func isMn(r rune) bool {
	return unicode.Is(unicode.Mn, r)
}

// RemoveAccentsAndLowercase strips diacritics, transliterates what is left
// outside ASCII and lowercases the result.
func RemoveAccentsAndLowercase(s string) string {
	noAccents := StripDiacritics(s)
	return strings.ToLower(unidecode.Unidecode(noAccents))
}

// CollapseSpaces trims s and folds every whitespace run into one space.
func CollapseSpaces(s string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(s, " "))
}

// NormalizeQuery turns free text typed into a search box into the form used
// as cache and search key: ASCII, lowercase, punctuation folded to spaces.
func NormalizeQuery(s string) string {
	s = RemoveAccentsAndLowercase(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, s)
	return CollapseSpaces(s)
}
