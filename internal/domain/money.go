package domain

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Round2 rounds a dollar amount to cents, half away from zero, on the
// shortest decimal form of v. This differs from rounding the binary value
// half toward +Inf: 1.005 rounds to 1.01 and -0.125 to -0.13 here.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// AddMoney adds b to a without binary floating point drift.
func AddMoney(a, b float64) float64 {
	return decimal.NewFromFloat(a).Add(decimal.NewFromFloat(b)).InexactFloat64()
}

// WithinFraction reports whether amount <= total*fraction. An amount exactly
// on the limit is within it.
func WithinFraction(amount, total, fraction float64) bool {
	return decimal.NewFromFloat(amount).LessThanOrEqual(FractionOf(total, fraction))
}

// FractionOf returns total*fraction as an exact decimal.
func FractionOf(total, fraction float64) decimal.Decimal {
	return decimal.NewFromFloat(total).Mul(decimal.NewFromFloat(fraction))
}

// DeclineAtLeastPct reports whether value sits at least pct percent below
// base, i.e. (base-value)/base*100 >= pct. A non-positive base counts as a
// 0% decline.
func DeclineAtLeastPct(base, value, pct float64) bool {
	diff := decimal.NewFromFloat(base).Sub(decimal.NewFromFloat(value))
	return shareCmp(diff, base, pct) >= 0
}

// GainAtLeastPct reports whether value sits at least pct percent above base,
// i.e. (value-base)/base*100 >= pct. A non-positive base counts as a 0% gain.
func GainAtLeastPct(base, value, pct float64) bool {
	diff := decimal.NewFromFloat(value).Sub(decimal.NewFromFloat(base))
	return shareCmp(diff, base, pct) >= 0
}

// ShareAtMostPct reports whether part/whole*100 <= pct. A non-positive whole
// counts as a 0% share.
func ShareAtMostPct(part, whole, pct float64) bool {
	return shareCmp(decimal.NewFromFloat(part), whole, pct) <= 0
}

// shareCmp compares part/whole*100 with pct by cross-multiplying, so no
// division happens.
func shareCmp(part decimal.Decimal, whole, pct float64) int {
	p := decimal.NewFromFloat(pct)
	if whole <= 0 {
		return decimal.Zero.Cmp(p)
	}
	return part.Mul(hundred).Cmp(p.Mul(decimal.NewFromFloat(whole)))
}
