// Package money converts between integer minor-unit amounts (centavos) and
// decimal major-unit values (reais). Amounts persisted by the backend are
// always minor units; conversion happens only at input and presentation
// boundaries.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ReaisToCents converts a major-unit value to integer centavos, rounding
// half away from zero.
func ReaisToCents(reais decimal.Decimal) int64 {
	return reais.Mul(hundred).Round(0).IntPart()
}

// CentsToReais converts integer centavos to a major-unit decimal value.
func CentsToReais(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Div(hundred)
}

// ParseCurrencyToCents parses a pt-BR formatted currency string such as
// "R$ 1.234,56" or "1234,56" into centavos. Dots are thousands separators
// and the comma is the decimal mark. Unparseable input yields 0.
func ParseCurrencyToCents(s string) int64 {
	clean := strings.NewReplacer("R$", "", " ", "", " ", "", ".", "").Replace(s)
	clean = strings.ReplaceAll(clean, ",", ".")

	value, err := decimal.NewFromString(clean)
	if err != nil {
		return 0
	}
	return ReaisToCents(value)
}

// FormatCents renders centavos as a pt-BR currency string, e.g. 123456
// becomes "R$ 1.234,56".
func FormatCents(cents int64) string {
	negative := cents < 0
	if negative {
		cents = -cents
	}

	whole := cents / 100
	frac := cents % 100

	digits := decimal.NewFromInt(whole).String()
	var grouped strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(d)
	}

	out := "R$ " + grouped.String() + "," + twoDigits(frac)
	if negative {
		out = "-" + out
	}
	return out
}

func twoDigits(n int64) string {
	return string([]byte{byte('0' + n/10), byte('0' + n%10)})
}
