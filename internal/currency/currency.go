package currency

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Currencies the processor treats as having no minor-unit subdivision.
// This is authoritative data from the processor docs, not derivable logic.
var zeroDecimal = map[string]struct{}{
	"BIF": {},
	"CLP": {},
	"DJF": {},
	"GNF": {},
	"JPY": {},
	"KMF": {},
	"KRW": {},
	"MGA": {},
	"PYG": {},
	"RWF": {},
	"UGX": {},
	"VND": {},
	"VUV": {},
	"XAF": {},
	"XOF": {},
	"XPF": {},
}

var hundred = decimal.NewFromInt(100)

// IsZeroDecimal reports whether the currency already counts in whole units.
func IsZeroDecimal(code string) bool {
	_, ok := zeroDecimal[strings.ToUpper(strings.TrimSpace(code))]
	return ok
}

// ToMinorUnits converts a domain amount to the processor's integer
// representation. Non-zero-decimal currencies are scaled by 100 and rounded
// half-even; any currency outside the zero-decimal set is treated as
// 2-decimal, unknown codes included.
func ToMinorUnits(amount decimal.Decimal, code string) int64 {
	if IsZeroDecimal(code) {
		return amount.RoundBank(0).IntPart()
	}
	return amount.Mul(hundred).RoundBank(0).IntPart()
}

// FromMinorUnits is the inverse of ToMinorUnits. Division is exact in
// decimal arithmetic, then rounded half-even to 2 places so stored amounts
// never pick up float artifacts.
func FromMinorUnits(amount int64, code string) decimal.Decimal {
	value := decimal.NewFromInt(amount)
	if IsZeroDecimal(code) {
		return value
	}
	return value.Div(hundred).RoundBank(2)
}
