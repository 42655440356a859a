package types

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHash_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		input Hash
		want  bool
	}{
		{name: "SHA-1 (40 chars)", input: Hash(strings.Repeat("a", 40)), want: true},
		{name: "SHA-256 (64 chars)", input: Hash(strings.Repeat("0", 64)), want: true},
		{name: "Too Short", input: Hash("abc"), want: false},
		{name: "Empty", input: Hash(""), want: false},
		{name: "Between lengths", input: Hash(strings.Repeat("a", 50)), want: false},
		{name: "Uppercase", input: Hash(strings.Repeat("A", 40)), want: false},
		{name: "Not hex", input: Hash(strings.Repeat("g", 40)), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.input.IsValid())
		})
	}
}

func TestHash_String(t *testing.T) {
	s := "aabbccddeeff"
	h := Hash(s)
	assert.Equal(t, s, h.String())
	assert.Equal(t, "aabbccdd", h.Short())
	assert.False(t, h.IsZero())

	var zero Hash
	assert.True(t, zero.IsZero())
	assert.Equal(t, "", zero.Short())
}

func TestHashPrefix_String(t *testing.T) {
	assert.Equal(t, "00", HashPrefix("00").String())
}

func TestIsHex(t *testing.T) {
	assert.True(t, IsHex("deadBEEF09"))
	assert.False(t, IsHex(""))
	assert.False(t, IsHex("0x10"))
	assert.False(t, IsHex("12 3"))
}
