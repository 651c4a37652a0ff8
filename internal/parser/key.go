package parser

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/address-lookup/internal/normalizer"
)

// MinQueryLength is the shortest free-text query worth sending to the index.
const MinQueryLength = 3

// CanonicalKey identifies one postcode lookup. The zero value is the
// invalid key; keys are comparable with ==.
type CanonicalKey struct {
	Postcode    string
	HouseNumber int
	Addition    string
}

// Invalid is the key produced by input that does not parse.
var Invalid = CanonicalKey{}

// Valid reports whether k can be looked up.
func (k CanonicalKey) Valid() bool {
	return k.Postcode != "" && k.HouseNumber > 0
}

// HouseNumberText is "10" or "10 B".
func (k CanonicalKey) HouseNumberText() string {
	return strings.TrimSpace(strconv.Itoa(k.HouseNumber) + " " + k.Addition)
}

// WithAddition returns a copy of k asking for a specific addition.
func (k CanonicalKey) WithAddition(addition string) CanonicalKey {
	k.Addition = addition
	return k
}

// String is used as cache key.
func (k CanonicalKey) String() string {
	if !k.Valid() {
		return "invalid"
	}
	return "nl:" + k.Postcode + ":" + strconv.Itoa(k.HouseNumber) + ":" + k.Addition
}

// ParseCanonicalKey parses the String form of a key back.
func ParseCanonicalKey(s string) (CanonicalKey, bool) {
	parts := strings.Split(s, ":")
	if len(parts) != 4 || parts[0] != "nl" || parts[1] == "" {
		return Invalid, false
	}
	number, err := strconv.Atoi(parts[2])
	if err != nil || number < 1 || number > MaxHouseNumber {
		return Invalid, false
	}
	return CanonicalKey{Postcode: parts[1], HouseNumber: number, Addition: parts[3]}, true
}

// Query is a normalized free-text search key.
type Query string

// ParseQuery normalizes free text. Queries shorter than MinQueryLength
// after normalization are invalid.
func ParseQuery(raw string) (Query, bool) {
	q := normalizer.NormalizeQuery(raw)
	if utf8.RuneCountInString(q) < MinQueryLength {
		return "", false
	}
	return Query(q), true
}
