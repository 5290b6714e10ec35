package enums

import (
	"fmt"
	"strings"
)

// Currency is an ISO 4217 alphabetic code. The platform accepts any
// well-formed code; the exponent table below covers conversion from
// provider major-unit amounts into minor units.
type Currency string

// zeroDecimalCurrencies have no minor unit (exponent 0).
var zeroDecimalCurrencies = map[Currency]struct{}{
	"JPY": {}, "KRW": {}, "VND": {}, "CLP": {}, "PYG": {}, "XOF": {}, "XAF": {},
}

// threeDecimalCurrencies use an exponent of 3.
var threeDecimalCurrencies = map[Currency]struct{}{
	"BHD": {}, "KWD": {}, "OMR": {}, "TND": {}, "JOD": {},
}

// String implements fmt.Stringer.
func (c Currency) String() string {
	return string(c)
}

// IsValid reports whether the code is well-formed (three ASCII letters).
func (c Currency) IsValid() bool {
	if len(c) != 3 {
		return false
	}
	for _, r := range c {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// Exponent returns the number of minor-unit digits for the currency.
func (c Currency) Exponent() int {
	if _, ok := zeroDecimalCurrencies[c]; ok {
		return 0
	}
	if _, ok := threeDecimalCurrencies[c]; ok {
		return 3
	}
	return 2
}

// ParseCurrency normalizes and validates a raw currency code.
func ParseCurrency(value string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(value)))
	if !c.IsValid() {
		return "", fmt.Errorf("invalid currency %q", value)
	}
	return c, nil
}
