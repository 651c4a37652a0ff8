package mapping

import (
	"slices"
	"strings"

	"github.com/address-lookup/internal/normalizer"
)

// FieldName is a destination field name prepared for rule matching.
type FieldName struct {
	Raw     string
	Compact string // lowercase, separators removed: "billing_address_1" -> "billingaddress1"
	Tokens  []string
}

// NewFieldName tokenizes name.
func NewFieldName(name string) FieldName {
	tokens := normalizer.FieldTokens(name)
	return FieldName{Raw: name, Compact: strings.Join(tokens, ""), Tokens: tokens}
}

// HasToken reports whether one of the tokens equals any of words.
func (f FieldName) HasToken(words ...string) bool {
	for _, tok := range f.Tokens {
		if slices.Contains(words, tok) {
			return true
		}
	}
	return false
}

// TokenContains reports whether one of the tokens contains any of parts.
// Compound words such as "huisnummertoevoeging" need substring matching.
func (f FieldName) TokenContains(parts ...string) bool {
	for _, tok := range f.Tokens {
		for _, p := range parts {
			if strings.Contains(tok, p) {
				return true
			}
		}
	}
	return false
}

// Rule maps field names it matches to Part.
type Rule struct {
	Name  string
	Match func(FieldName) bool
	Part  Part
}

var (
	houseWords    = []string{"house", "huis"}
	additionWords = []string{"suffix", "addition", "toevoeging"}
	streetWords   = []string{"street", "straat"}
)

// DefaultRules is evaluated top to bottom; the first matching rule wins.
var DefaultRules = []Rule{
	{
		Name:  "address line 1",
		Match: func(f FieldName) bool { return strings.Contains(f.Compact, "address1") },
		Part:  StreetAndHouseNumber,
	},
	{
		Name:  "address line 2",
		Match: func(f FieldName) bool { return strings.Contains(f.Compact, "address2") },
		Part:  Unmapped,
	},
	{
		Name: "house number addition",
		Match: func(f FieldName) bool {
			return (f.TokenContains(houseWords...) || f.HasToken("number", "nr", "no")) &&
				(f.TokenContains(additionWords...) || f.HasToken("ext", "extension"))
		},
		Part: HouseNumberAddition,
	},
	{
		Name:  "house number",
		Match: func(f FieldName) bool { return f.TokenContains(houseWords...) },
		Part:  HouseNumber,
	},
	{
		Name:  "street",
		Match: func(f FieldName) bool { return f.TokenContains(streetWords...) },
		Part:  Street,
	},
	{
		Name:  "postcode",
		Match: func(f FieldName) bool { return f.HasToken("postcode", "zip", "zipcode") },
		Part:  Postcode,
	},
	{
		Name:  "city",
		Match: func(f FieldName) bool { return f.HasToken("city", "town", "woonplaats", "plaats") },
		Part:  City,
	},
	{
		Name:  "province",
		Match: func(f FieldName) bool { return f.HasToken("state", "province", "provincie") },
		Part:  Province,
	},
}

// InferPart returns the part of the first rule matching name, or Unmapped.
func InferPart(rules []Rule, name string) Part {
	f := NewFieldName(name)
	for _, r := range rules {
		if r.Match(f) {
			return r.Part
		}
	}
	return Unmapped
}

// ComputeDefaults derives a mapping for fields using DefaultRules.
func ComputeDefaults(fields []string) FieldMapping {
	return ComputeDefaultsWith(DefaultRules, fields)
}

// ComputeDefaultsWith derives a mapping for fields using rules.
func ComputeDefaultsWith(rules []Rule, fields []string) FieldMapping {
	m := make(FieldMapping, len(fields))
	for _, field := range fields {
		m[field] = InferPart(rules, field)
	}
	return m
}

// Merge keeps every choice from existing, including explicit Unmapped, and
// falls back to defaults for the rest. The keys of the result are exactly
// the keys of defaults, which must come from ComputeDefaults over the live
// field set: entries of existing for fields that no longer exist are
// dropped. Existing entries holding an unknown part are treated as absent.
func Merge(defaults, existing FieldMapping) FieldMapping {
	merged := make(FieldMapping, len(defaults))
	for field, def := range defaults {
		if part, ok := existing[field]; ok && part.Known() {
			merged[field] = part
			continue
		}
		merged[field] = def
	}
	return merged
}

// Configuration is the persisted mapping together with the destination
// fields that were known when it was last computed.
type Configuration struct {
	Mapping FieldMapping `json:"mapping" bson:"mapping"`
	Fields  []string     `json:"fields" bson:"fields"`
}

// SameFields reports whether live holds the same set of fields as the
// snapshot, ignoring order and duplicates.
func (c Configuration) SameFields(live []string) bool {
	a, b := uniqueSorted(c.Fields), uniqueSorted(live)
	return slices.Equal(a, b)
}

// Refresh recomputes the mapping when the live field set differs from the
// snapshot. The second result reports whether anything changed and the
// configuration needs persisting.
func Refresh(cfg Configuration, live []string) (Configuration, bool) {
	return RefreshWith(DefaultRules, cfg, live)
}

// RefreshWith is Refresh with a custom rule table.
func RefreshWith(rules []Rule, cfg Configuration, live []string) (Configuration, bool) {
	if cfg.Mapping != nil && cfg.SameFields(live) {
		return cfg, false
	}

	fields := uniqueSorted(live)
	merged := Merge(ComputeDefaultsWith(rules, fields), cfg.Mapping)
	return Configuration{Mapping: merged, Fields: fields}, true
}

func uniqueSorted(fields []string) []string {
	out := slices.Clone(fields)
	slices.Sort(out)
	return slices.Compact(out)
}
