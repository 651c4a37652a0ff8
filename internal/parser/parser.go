// Package parser turns raw checkout input into canonical lookup keys.
//
// Nothing here touches the network or keeps state: a value that does not
// match its pattern is reported as invalid through the boolean result, never
// as an error.
package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/address-lookup/internal/normalizer"
)

// DefaultPostcodePattern matches Dutch postcodes: four digits, an optional
// space, two letters. Group 1 holds the digits, group 2 the letters.
const DefaultPostcodePattern = `^\s*(\d{4})\s?([A-Za-z]{2})\s*$`

// MaxHouseNumber is the largest house number the lookup API accepts.
const MaxHouseNumber = 99999

var reHouseNumber = regexp.MustCompile(`^\s*([1-9]\d{0,4})(?:\s*(\D.*?))?\s*$`)

// Locale carries the locale-specific postcode shape.
type Locale struct {
	Name            string
	PostcodePattern *regexp.Regexp
}

// NL is the default locale.
var NL = Locale{Name: "NL", PostcodePattern: regexp.MustCompile(DefaultPostcodePattern)}

// NewLocale compiles a postcode pattern. The pattern needs exactly two
// capture groups whose concatenation is the canonical postcode.
func NewLocale(name, pattern string) (Locale, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Locale{}, fmt.Errorf("compile postcode pattern for %s: %w", name, err)
	}
	if re.NumSubexp() != 2 {
		return Locale{}, fmt.Errorf("postcode pattern for %s needs 2 capture groups, has %d", name, re.NumSubexp())
	}
	return Locale{Name: name, PostcodePattern: re}, nil
}

// Input is what the user typed into the lookup section of a form.
type Input struct {
	Postcode    string
	HouseNumber string
	// Optional marks an address section the shopper may leave blank.
	Optional bool
}

// Parsed is the outcome of parsing one Input.
type Parsed struct {
	Key              CanonicalKey
	PostcodeValid    bool
	HouseNumberValid bool
}

// Parser validates input against a Locale.
type Parser struct {
	locale Locale
}

// New creates a Parser for the locale. A zero Locale falls back to NL.
func New(locale Locale) *Parser {
	if locale.PostcodePattern == nil {
		locale = NL
	}
	return &Parser{locale: locale}
}

// Locale returns the parser's locale.
func (p *Parser) Locale() Locale {
	return p.locale
}

// ParsePostcode returns the canonical postcode ("1234 ab" -> "1234AB").
func (p *Parser) ParsePostcode(raw string) (string, bool) {
	m := p.locale.PostcodePattern.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	return strings.ToUpper(m[1] + m[2]), true
}

// ParsePostcode parses raw with the NL locale.
func ParsePostcode(raw string) (string, bool) {
	return New(NL).ParsePostcode(raw)
}

// ParseHouseNumber splits "10 b", "10-2" or "10bis" into the number and a
// normalized addition ("B", "2", "BIS").
func ParseHouseNumber(raw string) (int, string, bool) {
	m := reHouseNumber.FindStringSubmatch(raw)
	if m == nil {
		return 0, "", false
	}
	number, err := strconv.Atoi(m[1])
	if err != nil || number < 1 || number > MaxHouseNumber {
		return 0, "", false
	}
	return number, normalizeAddition(m[2]), true
}

func normalizeAddition(s string) string {
	s = strings.TrimLeft(s, "-/ \t")
	return strings.ToUpper(normalizer.CollapseSpaces(s))
}

// Parse validates both fields. The key is only valid when both parse; an
// empty field of an optional section still counts as a valid field.
func (p *Parser) Parse(in Input) Parsed {
	var out Parsed

	postcode, postcodeOK := p.ParsePostcode(in.Postcode)
	number, addition, numberOK := ParseHouseNumber(in.HouseNumber)

	out.PostcodeValid = postcodeOK || (in.Optional && strings.TrimSpace(in.Postcode) == "")
	out.HouseNumberValid = numberOK || (in.Optional && strings.TrimSpace(in.HouseNumber) == "")

	if postcodeOK && numberOK {
		out.Key = CanonicalKey{Postcode: postcode, HouseNumber: number, Addition: addition}
	}
	return out
}
