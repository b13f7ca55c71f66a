package types

import "github.com/shopspring/decimal"

var paisePerRupee = decimal.NewFromInt(100)

// RupeesFromPaise converts minor units to a two decimal rupee amount.
func RupeesFromPaise(paise int64) decimal.Decimal {
	return decimal.NewFromInt(paise).Div(paisePerRupee).Round(2)
}

// PaiseFromRupees converts a rupee amount to minor units, rounding half away from zero.
func PaiseFromRupees(rupees decimal.Decimal) int64 {
	return rupees.Mul(paisePerRupee).Round(0).IntPart()
}

// FormatRupees renders a paise amount as a display string such as "₹1,299.00".
func FormatRupees(paise int64) string {
	value := RupeesFromPaise(paise)
	sign := ""
	if value.IsNegative() {
		sign = "-"
		value = value.Neg()
	}
	whole := value.Truncate(0).String()
	frac := value.Sub(value.Truncate(0)).Mul(paisePerRupee).Round(0).IntPart()
	return sign + "₹" + groupThousands(whole) + "." + twoDigits(frac)
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	head := digits[:len(digits)-3]
	tail := digits[len(digits)-3:]
	return groupThousands(head) + "," + tail
}

func twoDigits(n int64) string {
	if n < 10 {
		return "0" + decimal.NewFromInt(n).String()
	}
	return decimal.NewFromInt(n).String()
}
