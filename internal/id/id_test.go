package id

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUUID(t *testing.T) {
	a := UUID()
	b := UUID()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
	assert.True(t, IsValid(a))
}

func TestShort(t *testing.T) {
	a := Short()
	assert.Len(t, a, 16)
	assert.NotEqual(t, a, Short())
	assert.True(t, IsValid(a))
}

func TestPrefixedIDs(t *testing.T) {
	tests := []struct {
		name   string
		id     string
		prefix string
	}{
		{"mock", Mock(), "mock_"},
		{"scenario", Scenario(), "scn_"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, tt.id, tt.prefix)
			assert.True(t, IsValid(tt.id))
		})
	}
}

func TestIsValidRejectsJunk(t *testing.T) {
	assert.False(t, IsValid(""))
	assert.False(t, IsValid("not-an-id"))
	assert.False(t, IsValid("mock_zzzz"))
}
