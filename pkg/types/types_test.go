package types

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormatRupees(t *testing.T) {
	assert.Equal(t, "₹0.00", FormatRupees(0))
	assert.Equal(t, "₹9.05", FormatRupees(905))
	assert.Equal(t, "₹1,299.00", FormatRupees(129900))
	assert.Equal(t, "₹1,234,567.89", FormatRupees(123456789))
	assert.Equal(t, "-₹5.50", FormatRupees(-550))
}

func TestPaiseConversions(t *testing.T) {
	assert.Equal(t, int64(129950), PaiseFromRupees(decimal.RequireFromString("1299.495")))
	assert.True(t, RupeesFromPaise(1050).Equal(decimal.RequireFromString("10.5")))
}

func TestOrderItemsSubtotal(t *testing.T) {
	items := OrderItems{
		{Quantity: 2, UnitPricePaise: 500, LineTotalPaise: 1000},
		{Quantity: 1, UnitPricePaise: 250, LineTotalPaise: 250},
	}
	assert.Equal(t, int64(1250), items.SubtotalPaise())
}

func TestAddressOneLineSkipsBlanks(t *testing.T) {
	addr := AddressSnapshot{StreetLine1: "12 MG Road", City: "Bengaluru", State: "Karnataka", PostalCode: "560001"}
	assert.Equal(t, "12 MG Road, Bengaluru, Karnataka, 560001", addr.OneLine())
}
