package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"9988", "HK.09988"},
		{"09988.HK", "HK.09988"},
		{"HK.09988", "HK.09988"},
		{"hk.9988", "HK.09988"},
		{"HK9988", "HK.09988"},
		{"9988hk", "HK.09988"},
		{"700", "HK.00700"},
		{" 00700.hk ", "HK.00700"},
		{"HK.TCH240830P80000", "HK.TCH240830P80000"},
		{"AAPL", "US.AAPL"},
		{"aapl.us", "US.AAPL"},
		{"US.BRK.B", "US.BRK.B"},
		{"BRK.B", "US.BRK.B"},
		{"SHOP", "US.SHOP"},
		{"600519", "SH.600519"},
		{"000001", "SZ.000001"},
		{"sz.300750", "SZ.300750"},
		{"600519.SH", "SH.600519"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Normalize(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			again, err := Normalize(got)
			require.NoError(t, err)
			assert.Equal(t, got, again, "normalize must be idempotent")
		})
	}
}

func TestNormalize_SixDigitZeroPrefixedCodes(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"009988", "SZ.009988"},
		{"HK.009988", "HK.09988"},
		{"009988.HK", "HK.09988"},
		{"09988", "HK.09988"},
		{"00700", "HK.00700"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Normalize(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize_Invalid(t *testing.T) {
	for _, input := range []string{"", "   ", "XX.123", "HK.", "SH.1234", "12$4", "HK.1234567"} {
		t.Run(input, func(t *testing.T) {
			_, err := Normalize(input)
			assert.ErrorIs(t, err, ErrInvalidSymbol)
		})
	}
}

func TestFromProvider(t *testing.T) {
	got, err := FromProvider(ProviderHK, "9988")
	require.NoError(t, err)
	assert.Equal(t, "HK.09988", got)

	got, err = FromProvider(ProviderUS, "tsla")
	require.NoError(t, err)
	assert.Equal(t, "US.TSLA", got)

	_, err = FromProvider(99, "9988")
	assert.ErrorIs(t, err, ErrInvalidSymbol)

	assert.Equal(t, ProviderSZ, ProviderID(SZ))
}

func TestSplit(t *testing.T) {
	m, code, err := Split("09988.hk")
	require.NoError(t, err)
	assert.Equal(t, HK, m)
	assert.Equal(t, "09988", code)
}

func TestIsTradingHours(t *testing.T) {
	hk := Location(HK)
	ny := Location(US)

	// 2024-03-04 is a Monday
	assert.True(t, IsTradingHours(HK, time.Date(2024, 3, 4, 10, 0, 0, 0, hk)))
	assert.False(t, IsTradingHours(HK, time.Date(2024, 3, 4, 12, 30, 0, 0, hk)), "lunch break")
	assert.True(t, IsTradingHours(HK, time.Date(2024, 3, 4, 15, 59, 0, 0, hk)))
	assert.False(t, IsTradingHours(HK, time.Date(2024, 3, 4, 16, 0, 0, 0, hk)))
	assert.False(t, IsTradingHours(HK, time.Date(2024, 3, 9, 10, 0, 0, 0, hk)), "saturday")

	assert.True(t, IsTradingHours(US, time.Date(2024, 3, 4, 9, 30, 0, 0, ny)))
	assert.False(t, IsTradingHours(US, time.Date(2024, 3, 4, 9, 29, 0, 0, ny)))

	assert.True(t, IsSymbolTrading("9988", time.Date(2024, 3, 4, 2, 0, 0, 0, time.UTC)), "10:00 in Hong Kong")
	assert.False(t, IsSymbolTrading("not a symbol!", time.Now()))
}
