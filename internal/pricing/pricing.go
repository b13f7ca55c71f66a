// Package pricing turns a cart subtotal and an optional coupon into the
// payable breakdown.
package pricing

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-checkout/internal/coupons"
)

// Breakdown is the payable amount and its parts, all in paise.
type Breakdown struct {
	SubtotalPaise int64 `json:"subtotal_paise"`
	DiscountPaise int64 `json:"discount_paise"`
	ShippingPaise int64 `json:"shipping_paise"`
	TaxPaise      int64 `json:"tax_paise"`
	TotalPaise    int64 `json:"total_paise"`
}

// ComputeTotal returns max(0, subtotal-discount) + shipping + tax. The
// recorded discount is clamped to [0, subtotal] and negative shipping or tax
// count as zero, so the total is never negative.
func ComputeTotal(subtotal, discount, shipping, tax int64) Breakdown {
	if subtotal < 0 {
		subtotal = 0
	}
	if discount < 0 {
		discount = 0
	}
	if discount > subtotal {
		discount = subtotal
	}
	if shipping < 0 {
		shipping = 0
	}
	if tax < 0 {
		tax = 0
	}
	return Breakdown{
		SubtotalPaise: subtotal,
		DiscountPaise: discount,
		ShippingPaise: shipping,
		TaxPaise:      tax,
		TotalPaise:    subtotal - discount + shipping + tax,
	}
}

// ShippingRule prices delivery for the discounted subtotal.
type ShippingRule interface {
	Shipping(ctx context.Context, discountedPaise int64) int64
}

// TaxRule prices tax for the discounted subtotal.
type TaxRule interface {
	Tax(ctx context.Context, taxablePaise int64) int64
}

// FreeShipping charges nothing for delivery.
type FreeShipping struct{}

func (FreeShipping) Shipping(context.Context, int64) int64 { return 0 }

// NoTax charges no tax.
type NoTax struct{}

func (NoTax) Tax(context.Context, int64) int64 { return 0 }

// FlatShipping charges Paise unless the discounted subtotal reaches
// FreeAbovePaise (when set).
type FlatShipping struct {
	Paise          int64
	FreeAbovePaise int64
}

func (f FlatShipping) Shipping(_ context.Context, discounted int64) int64 {
	if f.FreeAbovePaise > 0 && discounted >= f.FreeAbovePaise {
		return 0
	}
	return f.Paise
}

// Quote is a priced cart, optionally with a coupon applied.
type Quote struct {
	Breakdown
	CouponID uuid.UUID        `json:"-"`
	Coupon   *coupons.Details `json:"coupon,omitempty"`
}

// HasCoupon reports whether a coupon contributed to the quote.
func (q *Quote) HasCoupon() bool {
	return q != nil && q.Coupon != nil
}

// Engine prices subtotals.
type Engine struct {
	coupons  coupons.Evaluator
	shipping ShippingRule
	tax      TaxRule
}

// Option configures an Engine.
type Option func(*Engine)

func WithShipping(rule ShippingRule) Option {
	return func(e *Engine) {
		if rule != nil {
			e.shipping = rule
		}
	}
}

func WithTax(rule TaxRule) Option {
	return func(e *Engine) {
		if rule != nil {
			e.tax = rule
		}
	}
}

// NewEngine builds an Engine with free shipping and no tax unless overridden.
func NewEngine(evaluator coupons.Evaluator, opts ...Option) (*Engine, error) {
	if evaluator == nil {
		return nil, fmt.Errorf("coupon evaluator required")
	}
	e := &Engine{coupons: evaluator, shipping: FreeShipping{}, tax: NoTax{}}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Quote prices subtotalPaise. A blank couponCode skips the evaluator; a
// rejected coupon is returned as the error and nothing is priced.
func (e *Engine) Quote(ctx context.Context, subtotalPaise int64, couponCode string) (*Quote, error) {
	quote := &Quote{}
	var discount int64
	if strings.TrimSpace(couponCode) != "" {
		eval, err := e.coupons.Validate(ctx, couponCode, subtotalPaise)
		if err != nil {
			return nil, err
		}
		discount = eval.DiscountPaise
		quote.CouponID = eval.CouponID
		details := eval.Coupon
		quote.Coupon = &details
	}

	discounted := subtotalPaise - discount
	if discounted < 0 {
		discounted = 0
	}
	shipping := e.shipping.Shipping(ctx, discounted)
	tax := e.tax.Tax(ctx, discounted)
	quote.Breakdown = ComputeTotal(subtotalPaise, discount, shipping, tax)
	return quote, nil
}
