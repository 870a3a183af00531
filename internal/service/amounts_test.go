package service

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmountOrZero(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
		want  string
	}{
		{"nil", nil, "0"},
		{"string", "123.45", "123.45"},
		{"string with spaces", "  10.5 ", "10.5"},
		{"garbage string", "abc", "0"},
		{"json number", json.Number("99.99"), "99.99"},
		{"float64", 2.5, "2.5"},
		{"nan", math.NaN(), "0"},
		{"positive infinity", math.Inf(1), "0"},
		{"int", 7, "7"},
		{"int64", int64(-3), "-3"},
		{"decimal passthrough", dec("8.8888"), "8.8888"},
		{"unknown type", struct{}{}, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseAmountOrZero(tt.input)
			assert.True(t, got.Equal(dec(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestNormalizePaymentAmountsEgpPassthrough(t *testing.T) {
	normalized, err := NormalizePaymentAmounts("EGP", dec("1234.567"), nil)
	require.NoError(t, err)
	assert.True(t, normalized.AmountEgp.Equal(dec("1234.57")))
	assert.Nil(t, normalized.RateToEgp)
}

func TestNormalizePaymentAmountsRmbConversion(t *testing.T) {
	rate := dec("6.95")
	normalized, err := NormalizePaymentAmounts("RMB", dec("1000"), &rate)
	require.NoError(t, err)
	assert.True(t, normalized.AmountEgp.Equal(dec("6950.00")), "got %s", normalized.AmountEgp)
	require.NotNil(t, normalized.RateToEgp)
	assert.True(t, normalized.RateToEgp.Equal(dec("6.95")))
}

func TestNormalizePaymentAmountsRmbRequiresRate(t *testing.T) {
	_, err := NormalizePaymentAmounts("RMB", dec("1000"), nil)
	assert.ErrorIs(t, err, ErrPaymentRateMissing)

	zero := decimal.Zero
	_, err = NormalizePaymentAmounts("RMB", dec("1000"), &zero)
	assert.ErrorIs(t, err, ErrPaymentRateMissing)
}

func TestNormalizePaymentAmountsRejectsUnknownCurrency(t *testing.T) {
	_, err := NormalizePaymentAmounts("USD", dec("100"), nil)
	assert.ErrorIs(t, err, ErrCurrencyUnsupported)
}
