package normalizer

import (
	"strings"
	"unicode"
)

// FieldTokens splits a form field name into lowercase tokens.
// Separators (_, -, ., space, brackets) and camelCase humps both start a new token:
//   - "billing_house_number_suffix" -> [billing house number suffix]
//   - "houseNumberAddition"        -> [house number addition]
//   - "shipping-postcode"          -> [shipping postcode]
func FieldTokens(name string) []string {
	if name == "" {
		return nil
	}

	var tokens []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, strings.ToLower(current.String()))
			current.Reset()
		}
	}

	runes := []rune(name)
	for i, r := range runes {
		if isFieldSeparator(r) {
			flush()
			continue
		}
		if i > 0 && startsHump(runes, i) {
			flush()
		}
		current.WriteRune(r)
	}
	flush()

	return tokens
}

func isFieldSeparator(r rune) bool {
	switch r {
	case '_', '-', '.', ' ', '[', ']', '/', ':':
		return true
	}
	return false
}

// startsHump reports whether runes[i] begins a new camelCase word.
func startsHump(runes []rune, i int) bool {
	r, prev := runes[i], runes[i-1]

	if unicode.IsDigit(r) != unicode.IsDigit(prev) {
		return true
	}
	if !unicode.IsUpper(r) {
		return false
	}
	if unicode.IsLower(prev) {
		return true
	}
	// "HTTPServer": the S starts a word when followed by lowercase.
	return unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1])
}
