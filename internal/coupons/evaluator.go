// Package coupons validates promotion codes and records their use.
package coupons

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
)

// Rejection reasons carried in error details.
const (
	ReasonInvalidCode    = "invalid_code"
	ReasonExpired        = "expired"
	ReasonBelowMinimum   = "below_minimum"
	ReasonUsageExhausted = "usage_exhausted"
)

var hundred = decimal.NewFromInt(100)

// Details is the client-facing description of an applied coupon.
type Details struct {
	Code              string             `json:"code"`
	DiscountType      enums.DiscountType `json:"discount_type"`
	DiscountValue     decimal.Decimal    `json:"discount_value"`
	MaxDiscountPaise  *int64             `json:"max_discount_paise,omitempty"`
	MinCartValuePaise *int64             `json:"min_cart_value_paise,omitempty"`
	ValidTo           time.Time          `json:"valid_to"`
}

// Evaluation is the outcome of validating a code against a subtotal.
type Evaluation struct {
	CouponID      uuid.UUID `json:"-"`
	DiscountPaise int64     `json:"discount_paise"`
	Coupon        Details   `json:"coupon"`
}

// Evaluator checks a coupon against a cart subtotal. It never mutates state.
type Evaluator interface {
	Validate(ctx context.Context, code string, subtotalPaise int64) (*Evaluation, error)
}

type evaluator struct {
	repo Repository
	now  func() time.Time
}

// NewEvaluator builds an Evaluator. now defaults to time.Now.
func NewEvaluator(repo Repository, now func() time.Time) (Evaluator, error) {
	if repo == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	if now == nil {
		now = time.Now
	}
	return &evaluator{repo: repo, now: now}, nil
}

func (e *evaluator) Validate(ctx context.Context, code string, subtotalPaise int64) (*Evaluation, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, pkgerrors.Field("code", "coupon code is required")
	}
	if subtotalPaise < 0 {
		return nil, pkgerrors.Field("cart_total", "cart total must not be negative")
	}

	coupon, err := e.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
	}
	if coupon == nil {
		return nil, pkgerrors.Reject(ReasonInvalidCode, "coupon code is not valid")
	}
	if err := Eligible(coupon, subtotalPaise, e.now()); err != nil {
		return nil, err
	}

	return &Evaluation{
		CouponID:      coupon.ID,
		DiscountPaise: Discount(coupon, subtotalPaise),
		Coupon:        DetailsOf(coupon),
	}, nil
}

// Eligible applies the window, minimum and usage rules in that order.
func Eligible(coupon *models.Coupon, subtotalPaise int64, now time.Time) error {
	if now.Before(coupon.ValidFrom) || now.After(coupon.ValidTo) {
		return pkgerrors.Reject(ReasonExpired, "coupon is not active")
	}
	if coupon.MinCartValuePaise != nil && subtotalPaise < *coupon.MinCartValuePaise {
		return pkgerrors.Reject(ReasonBelowMinimum, "cart total is below the coupon minimum").
			WithDetails(map[string]any{
				"reason":               ReasonBelowMinimum,
				"min_cart_value_paise": *coupon.MinCartValuePaise,
			})
	}
	if coupon.UsageLimit != nil && coupon.UsedCount >= *coupon.UsageLimit {
		return pkgerrors.Reject(ReasonUsageExhausted, "coupon usage limit reached")
	}
	return nil
}

// Discount computes the amount off subtotalPaise. The result is always
// within [0, subtotalPaise]; percentage discounts are floored to whole paise
// and capped at MaxDiscountPaise when set.
func Discount(coupon *models.Coupon, subtotalPaise int64) int64 {
	if subtotalPaise <= 0 || coupon.DiscountValue.IsNegative() {
		return 0
	}

	var discount int64
	switch coupon.DiscountType {
	case enums.DiscountTypePercentage:
		discount = decimal.NewFromInt(subtotalPaise).
			Mul(coupon.DiscountValue).
			Div(hundred).
			Floor().
			IntPart()
		if coupon.MaxDiscountPaise != nil && discount > *coupon.MaxDiscountPaise {
			discount = *coupon.MaxDiscountPaise
		}
	case enums.DiscountTypeFixed:
		discount = coupon.DiscountValue.Floor().IntPart()
	}

	if discount < 0 {
		return 0
	}
	if discount > subtotalPaise {
		return subtotalPaise
	}
	return discount
}

func DetailsOf(coupon *models.Coupon) Details {
	return Details{
		Code:              coupon.Code,
		DiscountType:      coupon.DiscountType,
		DiscountValue:     coupon.DiscountValue,
		MaxDiscountPaise:  coupon.MaxDiscountPaise,
		MinCartValuePaise: coupon.MinCartValuePaise,
		ValidTo:           coupon.ValidTo,
	}
}
