package normalizer

import (
	"reflect"
	"testing"
)

func TestNormalizeQuery(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "Diacritics", input: "Curaçao  Plein", expected: "curacao plein"},
		{name: "Ligature", input: "Ĳsselstraat 4", expected: "ijsselstraat 4"},
		{name: "Sharp S", input: "Straße", expected: "strasse"},
		{name: "Punctuation", input: "'s-Hertogenbosch, Markt 1-a", expected: "s hertogenbosch markt 1 a"},
		{name: "Only Spaces", input: "  \t ", expected: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeQuery(tc.input); got != tc.expected {
				t.Errorf("NormalizeQuery(%q) = %q, want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestStripDiacritics_KeepsCase(t *testing.T) {
	if got := StripDiacritics("Zuid-Hollandsé Ëiland"); got != "Zuid-Hollandse Eiland" {
		t.Errorf("got %q", got)
	}
}

func TestFieldTokens(t *testing.T) {
	testCases := []struct {
		input    string
		expected []string
	}{
		{"billing_house_number_suffix", []string{"billing", "house", "number", "suffix"}},
		{"houseNumberAddition", []string{"house", "number", "addition"}},
		{"shipping-postcode", []string{"shipping", "postcode"}},
		{"billing[street]", []string{"billing", "street"}},
		{"address2", []string{"address", "2"}},
		{"HTTPServer", []string{"http", "server"}},
		{"", nil},
	}

	for _, tc := range testCases {
		if got := FieldTokens(tc.input); !reflect.DeepEqual(got, tc.expected) {
			t.Errorf("FieldTokens(%q) = %v, want %v", tc.input, got, tc.expected)
		}
	}
}
