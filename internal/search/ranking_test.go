package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/address-lookup/internal/lookup"
)

func doc(street string, nr int, addition, postcode, city string) Document {
	addr := lookup.Address{Street: street, HouseNumber: nr, Postcode: postcode, City: city}
	if addition != "" {
		addr = addr.WithAddition(addition)
	}
	return NewDocument(addr)
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("Dorpsstraat", "dorpsstraat"))
	assert.Equal(t, 1.0, Similarity("Ĳsselstraat", "ijsselstraat"))
	assert.Equal(t, 0.0, Similarity("", "dorpsstraat"))

	near := Similarity("dorpstraat", "dorpsstraat")
	far := Similarity("kerkweg", "dorpsstraat")
	assert.Greater(t, near, 0.9)
	assert.Less(t, far, near)
}

func TestRank(t *testing.T) {
	docs := []Document{
		doc("Kerkweg", 10, "", "1234AB", "Utrecht"),
		doc("Dorpsstraat", 12, "", "1234AB", "Utrecht"),
		doc("Dorpsstraat", 10, "", "1234AB", "Utrecht"),
	}

	hits := Rank("dorpstraat 10", docs)

	require.Len(t, hits, 3)
	assert.Equal(t, "1234AB-10", hits[0].ID)
	assert.Equal(t, "Dorpsstraat", hits[0].Street)
	assert.Equal(t, "Kerkweg", hits[2].Street)
	assert.GreaterOrEqual(t, hits[0].Score, hits[1].Score)
	assert.GreaterOrEqual(t, hits[1].Score, hits[2].Score)
}

func TestDocument(t *testing.T) {
	d := doc("Dorpsstraat", 10, "b/2", "1234 ab", "Utrecht")

	assert.Equal(t, "1234AB-10-b_2", d.ID)
	assert.Equal(t, "Dorpsstraat 10 b/2 1234AB Utrecht", d.Line())
	assert.Equal(t, "dorpsstraat 10 b 2 1234ab utrecht", d.Text)

	addr := d.Address()
	require.NotNil(t, addr.HouseNumberAddition)
	assert.Equal(t, "b/2", *addr.HouseNumberAddition)
	assert.Nil(t, addr.Province)
}

func TestClosestAddition(t *testing.T) {
	tests := []struct {
		typed      string
		candidates []string
		want       string
		ok         bool
	}{
		{"b", []string{"", "A", "B"}, "B", true},
		{"2h", []string{"1H", "3"}, "1H", true},
		{"bis", []string{"A", "B"}, "", false},
		{"", []string{"A"}, "", false},
		{"A", []string{""}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.typed, func(t *testing.T) {
			got, ok := ClosestAddition(tt.typed, tt.candidates)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
