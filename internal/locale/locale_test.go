package locale

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDecimal_Spanish(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1.234,56", "1234.56"},
		{"1.742,90", "1742.9"},
		{"-0,50", "-0.5"},
		{"10", "10"},
		{"1.234", "1234"},
		{"1.234.567,1", "1234567.1"},
		{" 25 ", "25"},
		{"+3,5", "3.5"},
	}
	for _, tt := range tests {
		got, err := Spanish.ParseDecimal(tt.in)
		require.NoError(t, err, "ParseDecimal(%q)", tt.in)
		assert.Equal(t, tt.want, got.String(), "ParseDecimal(%q)", tt.in)
	}
}

func TestParseDecimal_English(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1,234.56", "1234.56"},
		{"192.53", "192.53"},
		{"-1502", "-1502"},
		{"1,000", "1000"},
	}
	for _, tt := range tests {
		got, err := English.ParseDecimal(tt.in)
		require.NoError(t, err, "ParseDecimal(%q)", tt.in)
		assert.Equal(t, tt.want, got.String(), "ParseDecimal(%q)", tt.in)
	}
}

func TestParseDecimal_RejectsAmbiguous(t *testing.T) {
	tests := []struct {
		loc Locale
		in  string
	}{
		{Spanish, ""},
		{Spanish, "12.5"},       // dot-decimal in a comma locale
		{Spanish, "1,234.56"},   // English layout
		{Spanish, "1,2,3"},      // two decimal marks
		{Spanish, "1.23,4"},     // uneven group
		{Spanish, "1.2345"},     // uneven group
		{Spanish, ",5"},         // no integer digits
		{Spanish, "1,"},         // no fractional digits
		{Spanish, "12a"},        // garbage
		{English, "1,5"},        // comma-decimal in a dot locale
		{English, "1.234,56"},   // Spanish layout
		{English, "1,234.5.6"},  // two decimal marks
		{English, "EUR 10"},     // currency prefix
		{English, "1 234.00"},   // space grouping
		{English, "1234.56,00"}, // group after decimal
	}
	for _, tt := range tests {
		_, err := tt.loc.ParseDecimal(tt.in)
		assert.Error(t, err, "%s.ParseDecimal(%q)", tt.loc.Name, tt.in)
	}
}

func TestParseDate(t *testing.T) {
	got, err := Spanish.ParseDate("31/12/2023")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), got)

	got, err = Spanish.ParseDate("05-01-2024")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), got)

	got, err = English.ParseDate("2023-03-15, 10:30:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 3, 15, 0, 0, 0, 0, time.UTC), got)

	_, err = Spanish.ParseDate("2023-12-31")
	assert.Error(t, err)
}

func TestParseTimestamp(t *testing.T) {
	got, err := Spanish.ParseTimestamp("05/01/2024 10:15")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 5, 10, 15, 0, 0, time.UTC), got)
}

func TestParseCurrency(t *testing.T) {
	got, err := ParseCurrency("usd")
	require.NoError(t, err)
	assert.Equal(t, "USD", got)

	_, err = ParseCurrency("XXY")
	assert.Error(t, err)
	_, err = ParseCurrency("EURO")
	assert.Error(t, err)
}
