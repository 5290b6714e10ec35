package money

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/vendorpay-backend/pkg/enums"
)

// ToMajorString formats a minor-unit amount as the decimal major-unit string
// provider APIs expect, e.g. 1050 USD -> "10.50", 1050 JPY -> "1050".
func ToMajorString(amountMinor int64, currency enums.Currency) string {
	return decimal.NewFromInt(amountMinor).Shift(int32(-currency.Exponent())).StringFixed(int32(currency.Exponent()))
}

// FromMajorString converts a provider decimal major-unit amount into minor
// units. Amounts with more precision than the currency carries are rejected
// rather than rounded; a provider never legitimately reports sub-minor units.
func FromMajorString(value string, currency enums.Currency) (int64, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	return fromMajor(d, currency)
}

// FromMajorFloat converts a JSON-number major-unit amount into minor units.
func FromMajorFloat(value float64, currency enums.Currency) (int64, error) {
	return fromMajor(decimal.NewFromFloat(value), currency)
}

func fromMajor(d decimal.Decimal, currency enums.Currency) (int64, error) {
	shifted := d.Shift(int32(currency.Exponent()))
	if !shifted.IsInteger() {
		return 0, fmt.Errorf("amount %s has sub-minor precision for %s", d.String(), currency)
	}
	return shifted.IntPart(), nil
}
