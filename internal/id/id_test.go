package id

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatDeclarationID(t *testing.T) {
	tests := []struct {
		prefix string
		seq    int
		want   string
	}{
		{"720", 1, "7200000000001"},
		{"720", 123, "7200000000123"},
		{"600", 9999999999, "6009999999999"},
		{"7202023", 42, "7202023000042"},
	}
	for _, tt := range tests {
		got, err := FormatDeclarationID(tt.prefix, tt.seq)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
		assert.Len(t, got, Width)
	}
}

func TestFormatDeclarationID_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		seq    int
	}{
		{"empty prefix", "", 1},
		{"letters", "D6", 1},
		{"zero seq", "720", 0},
		{"overflow", "720", 10000000000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FormatDeclarationID(tt.prefix, tt.seq)
			assert.Error(t, err)
		})
	}
}

func TestParseDeclarationID(t *testing.T) {
	seq, err := ParseDeclarationID("7200000000123", "720")
	require.NoError(t, err)
	assert.Equal(t, 123, seq)

	for _, bad := range []string{"720000000012", "6000000000123", "720000000012a", "7200000000000"} {
		_, err := ParseDeclarationID(bad, "720")
		assert.Error(t, err, bad)
	}
}

func TestRoundTrip(t *testing.T) {
	for _, seq := range []int{1, 7, 2023, 9999999999} {
		s, err := FormatDeclarationID("720", seq)
		require.NoError(t, err)
		got, err := ParseDeclarationID(s, "720")
		require.NoError(t, err)
		assert.Equal(t, seq, got)
	}
}
