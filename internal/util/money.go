package util

import "github.com/shopspring/decimal"

// RoundMoney rounds to cents, half to even
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(2)
}

// Float converts a decimal for metric sinks that only take float64
func Float(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
