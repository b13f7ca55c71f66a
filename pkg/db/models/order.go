package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	"github.com/angelmondragon/storefront-checkout/pkg/types"
)

// Order is a placed checkout. Items and shipping address are snapshots taken
// at placement.
type Order struct {
	ID              uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	UserID          uuid.UUID             `gorm:"column:user_id;type:uuid;not null;index"`
	Items           types.OrderItems      `gorm:"column:items;type:jsonb;serializer:json;not null"`
	ShippingAddress types.AddressSnapshot `gorm:"column:shipping_address;type:jsonb;serializer:json;not null"`
	SubtotalPaise   int64                 `gorm:"column:subtotal_paise;not null"`
	DiscountPaise   int64                 `gorm:"column:discount_paise;not null;default:0"`
	ShippingPaise   int64                 `gorm:"column:shipping_paise;not null;default:0"`
	TaxPaise        int64                 `gorm:"column:tax_paise;not null;default:0"`
	TotalPaise      int64                 `gorm:"column:total_paise;not null"`
	Currency        enums.Currency        `gorm:"column:currency;type:text;not null;default:'INR'"`
	CouponID        *uuid.UUID            `gorm:"column:coupon_id;type:uuid"`
	CouponCode      *string               `gorm:"column:coupon_code"`
	Status          enums.OrderStatus     `gorm:"column:status;type:text;not null;default:'pending'"`
	PaymentStatus   enums.PaymentStatus   `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	GatewayOrderID  string                `gorm:"column:gateway_order_id;not null;uniqueIndex"`
	TransactionID   *string               `gorm:"column:transaction_id"`
	FailureReason   *string               `gorm:"column:failure_reason"`
	PaidAt          *time.Time            `gorm:"column:paid_at"`
	CreatedAt       time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
