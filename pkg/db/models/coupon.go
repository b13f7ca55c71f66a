package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-checkout/pkg/enums"
)

// Coupon is a promotion code. DiscountValue holds percent points for
// percentage coupons and paise for fixed coupons.
type Coupon struct {
	ID                uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	Code              string             `gorm:"column:code;not null;uniqueIndex"`
	DiscountType      enums.DiscountType `gorm:"column:discount_type;type:text;not null"`
	DiscountValue     decimal.Decimal    `gorm:"column:discount_value;type:numeric(12,2);not null"`
	MaxDiscountPaise  *int64             `gorm:"column:max_discount_paise"`
	MinCartValuePaise *int64             `gorm:"column:min_cart_value_paise"`
	ValidFrom         time.Time          `gorm:"column:valid_from;not null"`
	ValidTo           time.Time          `gorm:"column:valid_to;not null"`
	UsageLimit        *int               `gorm:"column:usage_limit"`
	UsedCount         int                `gorm:"column:used_count;not null;default:0"`
	CreatedAt         time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// CouponRedemption records that an order consumed one coupon use.
// order_id is unique so a retried confirmation cannot count twice.
type CouponRedemption struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	CouponID      uuid.UUID `gorm:"column:coupon_id;type:uuid;not null"`
	OrderID       uuid.UUID `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	UserID        uuid.UUID `gorm:"column:user_id;type:uuid;not null"`
	DiscountPaise int64     `gorm:"column:discount_paise;not null"`
	RedeemedAt    time.Time `gorm:"column:redeemed_at;autoCreateTime"`
}

func (c *Coupon) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (r *CouponRedemption) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
