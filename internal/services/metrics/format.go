package metrics

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatEuro renders d with two decimals, comma thousands separators and a
// trailing euro sign: "1,234.56 €"
func FormatEuro(d decimal.Decimal) string {
	s := d.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	if d.IsNegative() && !d.Round(2).IsZero() {
		b.WriteByte('-')
	}
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	b.WriteString(" €")
	return b.String()
}
