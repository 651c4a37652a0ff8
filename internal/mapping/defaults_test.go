package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInferPart(t *testing.T) {
	tests := []struct {
		field string
		want  Part
	}{
		{"address_1", StreetAndHouseNumber},
		{"billing_address_1", StreetAndHouseNumber},
		{"address_2", Unmapped},
		{"postcode", Postcode},
		{"shipping-postcode", Postcode},
		{"city", City},
		{"state", Province},
		{"street_name", Street},
		{"straatnaam", Street},
		{"house_number", HouseNumber},
		{"huisnummer", HouseNumber},
		{"house_number_suffix", HouseNumberAddition},
		{"houseNumberAddition", HouseNumberAddition},
		{"huisnummer_toevoeging", HouseNumberAddition},
		{"flora/house-number-addition", HouseNumberAddition},
		{"phone_number", Unmapped},
		{"company", Unmapped},
		{"", Unmapped},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.Equal(t, tt.want, InferPart(DefaultRules, tt.field))
		})
	}
}

func TestInferPart_FirstMatchWins(t *testing.T) {
	rules := []Rule{
		{Name: "anything with street", Match: func(f FieldName) bool { return f.TokenContains("street") }, Part: Street},
		{Name: "anything", Match: func(FieldName) bool { return true }, Part: City},
	}

	assert.Equal(t, Street, InferPart(rules, "street_and_city"))
	assert.Equal(t, City, InferPart(rules, "whatever"))
}

func TestComputeDefaults_StandardFields(t *testing.T) {
	got := ComputeDefaults(StandardFields)

	assert.Equal(t, FieldMapping{
		"address_1": StreetAndHouseNumber,
		"address_2": Unmapped,
		"postcode":  Postcode,
		"city":      City,
		"state":     Province,
	}, got)
}

func TestMerge_KeySetEqualsDestinationFields(t *testing.T) {
	fieldSets := [][]string{
		{},
		{"address_1"},
		{"address_1", "postcode", "house_number_suffix"},
		{"x", "y"},
	}
	existings := []FieldMapping{
		nil,
		{},
		{"address_1": Street},
		{"gone": City, "x": Postcode},
	}

	for _, fields := range fieldSets {
		for _, existing := range existings {
			merged := Merge(ComputeDefaults(fields), existing)

			require.Len(t, merged, len(fields))
			for _, f := range fields {
				assert.Contains(t, merged, f)
			}
		}
	}
}

func TestMerge_KeepsUserChoices(t *testing.T) {
	defaults := ComputeDefaults([]string{"address_1", "postcode", "city"})
	existing := FieldMapping{
		"address_1": Street,   // customized
		"postcode":  Unmapped, // explicitly unmapped
		"removed":   City,     // no longer on the form
	}

	merged := Merge(defaults, existing)

	assert.Equal(t, FieldMapping{
		"address_1": Street,
		"postcode":  Unmapped,
		"city":      City,
	}, merged)
}

func TestMerge_UnknownPartFallsBackToDefault(t *testing.T) {
	merged := Merge(FieldMapping{"city": City}, FieldMapping{"city": Part("town")})
	assert.Equal(t, City, merged["city"])
}

func TestRefresh_Scenario(t *testing.T) {
	saved := Configuration{
		Mapping: FieldMapping{"address_1": Street, "postcode": Postcode},
		Fields:  []string{"address_1", "postcode"},
	}

	got, changed := Refresh(saved, []string{"address_1", "postcode", "house_number_suffix"})

	require.True(t, changed)
	assert.Equal(t, FieldMapping{
		"address_1":           Street,
		"postcode":            Postcode,
		"house_number_suffix": HouseNumberAddition,
	}, got.Mapping)
	assert.ElementsMatch(t, []string{"address_1", "postcode", "house_number_suffix"}, got.Fields)
	assert.Len(t, saved.Mapping, 2, "Refresh must not modify the saved configuration")
}

func TestRefresh_UnchangedFieldSet(t *testing.T) {
	saved := Configuration{
		Mapping: FieldMapping{"postcode": Unmapped, "city": City},
		Fields:  []string{"postcode", "city"},
	}

	got, changed := Refresh(saved, []string{"city", "postcode", "city"})

	assert.False(t, changed)
	assert.Equal(t, saved, got)
}

func TestRefresh_FirstUse(t *testing.T) {
	got, changed := Refresh(Configuration{}, StandardFields)

	assert.True(t, changed)
	assert.Equal(t, ComputeDefaults(StandardFields), got.Mapping)
}

func TestRefresh_FieldRemoved(t *testing.T) {
	saved := Configuration{
		Mapping: FieldMapping{"address_1": Street, "house_number": HouseNumber},
		Fields:  []string{"address_1", "house_number"},
	}

	got, changed := Refresh(saved, []string{"address_1"})

	assert.True(t, changed)
	assert.Equal(t, FieldMapping{"address_1": Street}, got.Mapping)
}
