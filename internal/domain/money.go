package domain

import "github.com/shopspring/decimal"

// MaxMoney is the largest amount accepted for a total or a unit price.
var MaxMoney = decimal.New(1, 12)

const moneyPlaces = 2

// ValidMoney reports whether d is a non-negative amount no larger than
// MaxMoney with at most two decimal places. The exponent is checked first so
// values like 1e20000000 are rejected without being expanded.
func ValidMoney(d decimal.Decimal) bool {
	if d.IsNegative() {
		return false
	}
	if exp := d.Exponent(); exp > 12 || exp < -18 {
		return false
	}
	if d.GreaterThan(MaxMoney) {
		return false
	}
	return d.Equal(d.Truncate(moneyPlaces))
}
