package types

import (
	"strings"

	"github.com/google/uuid"
)

// AddressSnapshot is the shipping address copied into an order at placement.
// Later edits to the address book never reach it.
type AddressSnapshot struct {
	RecipientName string `json:"recipient_name"`
	Phone         string `json:"phone"`
	StreetLine1   string `json:"street_line1"`
	StreetLine2   string `json:"street_line2,omitempty"`
	City          string `json:"city"`
	State         string `json:"state"`
	PostalCode    string `json:"postal_code"`
}

// OneLine renders the address for receipts and admin listings.
func (a AddressSnapshot) OneLine() string {
	parts := []string{a.StreetLine1, a.StreetLine2, a.City, a.State, a.PostalCode}
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}

// OrderItemSnapshot is a purchased line copied by value into an order.
type OrderItemSnapshot struct {
	ProductID      uuid.UUID `json:"product_id"`
	Title          string    `json:"title"`
	SizeLabel      string    `json:"size_label"`
	Quantity       int       `json:"quantity"`
	UnitPricePaise int64     `json:"unit_price_paise"`
	LineTotalPaise int64     `json:"line_total_paise"`
	Image          string    `json:"image,omitempty"`
}

// OrderItems is the jsonb column type for order line snapshots.
type OrderItems []OrderItemSnapshot

// SubtotalPaise sums the line totals.
func (items OrderItems) SubtotalPaise() int64 {
	var sum int64
	for _, item := range items {
		sum += item.LineTotalPaise
	}
	return sum
}
