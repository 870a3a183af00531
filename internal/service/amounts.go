package service

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Monetary rounding happens only at the persistence boundary: EGP amounts to
// 2 decimal places, stored RMB rates to 4. All intermediate arithmetic stays
// at full precision.
const (
	egpScale  = 2
	rateScale = 4
)

// ParseAmountOrZero accepts a number, numeric string, nil, or json.Number and
// returns a defined decimal. Anything non-finite or unparseable yields zero;
// it never fails.
func ParseAmountOrZero(value interface{}) decimal.Decimal {
	switch v := value.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return v
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return decimal.Zero
		}
		return d
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return decimal.Zero
		}
		return d
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Zero
		}
		return decimal.NewFromFloat(v)
	case float32:
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return decimal.Zero
		}
		return decimal.NewFromFloat(f)
	case int:
		return decimal.NewFromInt(int64(v))
	case int64:
		return decimal.NewFromInt(v)
	default:
		return decimal.Zero
	}
}

// RoundEgp rounds an EGP amount for persistence.
func RoundEgp(d decimal.Decimal) decimal.Decimal {
	return d.Round(egpScale)
}

// RoundRate rounds an RMB->EGP rate for persistence.
func RoundRate(d decimal.Decimal) decimal.Decimal {
	return d.Round(rateScale)
}

// NormalizedAmounts is the persistable view of a payment's money fields.
type NormalizedAmounts struct {
	AmountOriginal decimal.Decimal
	AmountEgp      decimal.Decimal
	RateToEgp      *decimal.Decimal
}

// NormalizePaymentAmounts derives the EGP amount for a payment. EGP payments
// pass through; RMB payments require a positive rate (supplied or resolved by
// the caller); any other currency is rejected.
func NormalizePaymentAmounts(currency string, amountOriginal decimal.Decimal, rateToEgp *decimal.Decimal) (NormalizedAmounts, error) {
	switch currency {
	case "EGP":
		return NormalizedAmounts{
			AmountOriginal: RoundEgp(amountOriginal),
			AmountEgp:      RoundEgp(amountOriginal),
		}, nil
	case "RMB":
		if rateToEgp == nil || !rateToEgp.IsPositive() {
			return NormalizedAmounts{}, ErrPaymentRateMissing
		}
		rate := RoundRate(*rateToEgp)
		return NormalizedAmounts{
			AmountOriginal: amountOriginal,
			AmountEgp:      RoundEgp(amountOriginal.Mul(rate)),
			RateToEgp:      &rate,
		}, nil
	default:
		return NormalizedAmounts{}, ErrCurrencyUnsupported.WithDetails(map[string]interface{}{
			"currency": currency,
		})
	}
}
