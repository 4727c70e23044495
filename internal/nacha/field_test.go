package nacha

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlphaField(t *testing.T) {
	assert.Equal(t, "ABC  ", alphaField("ABC", 5))
	assert.Equal(t, "ABCDE", alphaField("ABCDEFG", 5))
	assert.Equal(t, "   ", alphaField("", 3))
}

func TestNumField(t *testing.T) {
	got, err := numField(5000, 10)
	require.NoError(t, err)
	assert.Equal(t, "0000005000", got)

	_, err = numField(12345678901, 10)
	require.ErrorContains(t, err, "overflows")
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Jane Doe", "JANE DOE"},
		{"João Müller", "JOAO MULLER"},
		{"Renée O'Connor", "RENEE O'CONNOR"},
	}

	for _, tt := range tests {
		got, err := sanitizeName(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestSanitizeNameRejectsUnfoldable(t *testing.T) {
	_, err := sanitizeName("ACME \x07 CO")
	require.ErrorContains(t, err, "non-ASCII character")

	_, err = sanitizeName("商社")
	require.ErrorContains(t, err, "non-ASCII character")
}
