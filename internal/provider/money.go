package provider

import (
	"strings"

	"github.com/shopspring/decimal"
)

// fromMinor converts integer minor currency units (cents) to major units.
func fromMinor(v int64) decimal.Decimal {
	return decimal.New(v, -2)
}

// moneyValue is the nested cost object used by some providers.
type moneyValue struct {
	Currency   string `json:"currency"`
	Value      int64  `json:"value"`
	MajorValue string `json:"major_value"`
	Display    string `json:"display"`
}

// Major returns the amount in major units, preferring major_value and
// falling back to the minor value.  A nil cost is zero.
func (m *moneyValue) Major() decimal.Decimal {
	if m == nil {
		return decimal.Zero
	}
	if s := strings.TrimSpace(m.MajorValue); s != "" {
		if d, err := decimal.NewFromString(s); err == nil {
			return d
		}
	}
	return fromMinor(m.Value)
}

func decimalInt(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n))
}
