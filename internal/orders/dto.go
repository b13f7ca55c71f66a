package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-checkout/internal/pricing"
	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	"github.com/angelmondragon/storefront-checkout/pkg/types"
)

// LineRequest names a product size to buy.
type LineRequest struct {
	ProductID uuid.UUID
	Size      string
	Quantity  int
}

// PlaceOrderInput carries a checkout request. When Items is empty the
// user's session cart is used.
type PlaceOrderInput struct {
	UserID     uuid.UUID
	Items      []LineRequest
	AddressID  uuid.UUID
	CouponCode string
}

// OrderHandle is what the client needs to open the gateway checkout.
type OrderHandle struct {
	OrderID        uuid.UUID         `json:"order_id"`
	GatewayOrderID string            `json:"gateway_order_id"`
	AmountPaise    int64             `json:"amount"`
	Currency       enums.Currency    `json:"currency"`
	KeyID          string            `json:"key_id"`
	Breakdown      pricing.Breakdown `json:"breakdown"`
}

// ListParams filter order listings.
type ListParams struct {
	Status        *enums.OrderStatus
	PaymentStatus *enums.PaymentStatus
	Limit         int
	Cursor        string
}

// Summary is an order row in a listing.
type Summary struct {
	ID            uuid.UUID           `json:"id"`
	UserID        uuid.UUID           `json:"user_id"`
	CreatedAt     time.Time           `json:"created_at"`
	TotalPaise    int64               `json:"total_paise"`
	DiscountPaise int64               `json:"discount_paise"`
	TotalItems    int                 `json:"total_items"`
	Status        enums.OrderStatus   `json:"status"`
	StatusLabel   string              `json:"status_label"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	ShipTo        string              `json:"ship_to"`
}

// List wraps a page of summaries plus the next page cursor.
type List struct {
	Orders     []Summary `json:"orders"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

// Detail is the full order view.
type Detail struct {
	ID              uuid.UUID             `json:"id"`
	UserID          uuid.UUID             `json:"user_id"`
	Items           types.OrderItems      `json:"items"`
	ShippingAddress types.AddressSnapshot `json:"shipping_address"`
	Breakdown       pricing.Breakdown     `json:"breakdown"`
	Currency        enums.Currency        `json:"currency"`
	CouponCode      *string               `json:"coupon_code,omitempty"`
	Status          enums.OrderStatus     `json:"status"`
	StatusLabel     string                `json:"status_label"`
	PaymentStatus   enums.PaymentStatus   `json:"payment_status"`
	GatewayOrderID  string                `json:"gateway_order_id"`
	TransactionID   *string               `json:"transaction_id,omitempty"`
	FailureReason   *string               `json:"failure_reason,omitempty"`
	PaidAt          *time.Time            `json:"paid_at,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
}

func newSummary(o models.Order) Summary {
	items := 0
	for _, item := range o.Items {
		items += item.Quantity
	}
	return Summary{
		ID:            o.ID,
		UserID:        o.UserID,
		CreatedAt:     o.CreatedAt,
		TotalPaise:    o.TotalPaise,
		DiscountPaise: o.DiscountPaise,
		TotalItems:    items,
		Status:        o.Status,
		StatusLabel:   o.Status.Label(),
		PaymentStatus: o.PaymentStatus,
		ShipTo:        o.ShippingAddress.OneLine(),
	}
}

// NewDetail renders o for clients.
func NewDetail(o *models.Order) *Detail {
	return &Detail{
		ID:              o.ID,
		UserID:          o.UserID,
		Items:           o.Items,
		ShippingAddress: o.ShippingAddress,
		Breakdown: pricing.Breakdown{
			SubtotalPaise: o.SubtotalPaise,
			DiscountPaise: o.DiscountPaise,
			ShippingPaise: o.ShippingPaise,
			TaxPaise:      o.TaxPaise,
			TotalPaise:    o.TotalPaise,
		},
		Currency:       o.Currency,
		CouponCode:     o.CouponCode,
		Status:         o.Status,
		StatusLabel:    o.Status.Label(),
		PaymentStatus:  o.PaymentStatus,
		GatewayOrderID: o.GatewayOrderID,
		TransactionID:  o.TransactionID,
		FailureReason:  o.FailureReason,
		PaidAt:         o.PaidAt,
		CreatedAt:      o.CreatedAt,
	}
}
