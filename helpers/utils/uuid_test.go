package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateUUID(t *testing.T) {
	a, b := GenerateUUID(), GenerateUUID()
	assert.NotEqual(t, a, b)
	assert.True(t, IsUUID(a))
	assert.Len(t, GenerateShortID(), 8)
	assert.False(t, IsUUID("not-a-uuid"))
}
