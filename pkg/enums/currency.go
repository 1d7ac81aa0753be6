package enums

import "fmt"

// Currency is the ISO-4217 code a wallet is denominated in. XAF is a
// zero-decimal currency, so amounts are stored as whole francs.
type Currency string

const (
	CurrencyXAF Currency = "XAF"
)

var validCurrencies = []Currency{
	CurrencyXAF,
}

// String implements fmt.Stringer.
func (c Currency) String() string {
	return string(c)
}

// IsValid reports whether the value is known.
func (c Currency) IsValid() bool {
	for _, candidate := range validCurrencies {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCurrency converts raw input into a Currency.
func ParseCurrency(value string) (Currency, error) {
	for _, candidate := range validCurrencies {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid currency %q", value)
}
