package cart

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-checkout/api/validators"
)

type lineRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Size      string `json:"size" validate:"required,max=32"`
	Quantity  int    `json:"quantity" validate:"required,min=1,max=99"`
}

type removeRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Size      string `json:"size" validate:"required,max=32"`
}

type quoteRequest struct {
	CouponCode string `json:"coupon_code" validate:"max=64"`
}

func (l lineRequest) productID() uuid.UUID { return uuid.MustParse(l.ProductID) }

func (l lineRequest) size() string { return validators.SanitizeString(l.Size, 32) }

func (l removeRequest) productID() uuid.UUID { return uuid.MustParse(l.ProductID) }

func (l removeRequest) size() string { return validators.SanitizeString(l.Size, 32) }
