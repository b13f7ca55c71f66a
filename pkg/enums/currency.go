package enums

import (
	"fmt"
	"strings"
)

// Currency is an ISO 4217 code the payment gateway settles in. Only rupees
// are accepted today.
type Currency string

const CurrencyINR Currency = "INR"

func (c Currency) String() string {
	return string(c)
}

func (c Currency) IsValid() bool {
	return c == CurrencyINR
}

// ParseCurrency accepts a code in any case; gateways are not consistent about
// echoing it back upper-cased.
func ParseCurrency(value string) (Currency, error) {
	switch c := Currency(strings.ToUpper(strings.TrimSpace(value))); c {
	case CurrencyINR:
		return c, nil
	default:
		return "", fmt.Errorf("unsupported currency %q", value)
	}
}
