// Package money holds the decimal helpers shared by the ledgers: parsing of
// export amounts, cent rounding, tolerance checks and BRL formatting.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// Tolerance is the rounding slack accepted between two amounts (R$0.02).
	Tolerance = decimal.New(2, -2)
	// ValidationTolerance is the slack used by the operational sanity checks (R$1).
	ValidationTolerance = decimal.NewFromInt(1)

	hundred = decimal.NewFromInt(100)
)

// Parse converts an export amount into a decimal. It accepts "1234.56",
// "1234,56" and "1.234,56". The boolean is false when the value could not be
// parsed, in which case zero is returned.
func Parse(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "R$")
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		return decimal.Zero, false
	}

	if strings.Contains(s, ",") {
		if strings.Contains(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
		}
		s = strings.ReplaceAll(s, ",", ".")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// Round rounds to cents.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Within reports whether |a-b| <= tol.
func Within(a, b, tol decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tol)
}

// Sum adds all values.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// PercentOf returns part/whole*100, or zero when whole is not positive.
func PercentOf(part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred)
}

// Format renders an amount the way Brazilian statements do: "R$ 1.234,56".
func Format(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	fixed := d.StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return sign + "R$ " + b.String() + "," + frac
}
