package pricing

import (
	"context"
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-checkout/internal/coupons"
	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"

)

type stubEvaluator struct {
	coupon *models.Coupon
	err    error
}

func (s stubEvaluator) Validate(_ context.Context, code string, subtotal int64) (*coupons.Evaluation, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &coupons.Evaluation{
		CouponID:      s.coupon.ID,
		DiscountPaise: coupons.Discount(s.coupon, subtotal),
		Coupon:        coupons.DetailsOf(s.coupon),
	}, nil
}

type percentTax int64

func (p percentTax) Tax(_ context.Context, taxable int64) int64 {
	return taxable * int64(p) / 100
}

func TestComputeTotalNeverNegative(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 2000; i++ {
		subtotal := rng.Int63n(1_000_000)
		discount := rng.Int63n(2_000_000) - 500_000
		shipping := rng.Int63n(20_000)
		tax := rng.Int63n(20_000)

		b := ComputeTotal(subtotal, discount, shipping, tax)
		require.GreaterOrEqual(t, b.TotalPaise, int64(0))
		require.GreaterOrEqual(t, b.DiscountPaise, int64(0))
		require.LessOrEqual(t, b.DiscountPaise, b.SubtotalPaise)

		payable := subtotal - discount
		if payable < 0 {
			payable = 0
		}
		if payable > subtotal {
			payable = subtotal
		}
		require.Equal(t, payable+shipping+tax, b.TotalPaise)
	}
}

func TestQuoteFixedCouponExceedingSubtotal(t *testing.T) {
	coupon := &models.Coupon{ID: uuid.New(), Code: "FLAT500", DiscountType: enums.DiscountTypeFixed, DiscountValue: decimal.NewFromInt(50000)}
	engine, err := NewEngine(stubEvaluator{coupon: coupon})
	require.NoError(t, err)

	quote, err := engine.Quote(context.Background(), 20000, "FLAT500")
	require.NoError(t, err)
	assert.Equal(t, int64(20000), quote.DiscountPaise)
	assert.Equal(t, int64(0), quote.TotalPaise)
	assert.Equal(t, coupon.ID, quote.CouponID)
	assert.True(t, quote.HasCoupon())
}

func TestQuotePercentageWithCap(t *testing.T) {
	maxDiscount := int64(100000)
	coupon := &models.Coupon{ID: uuid.New(), Code: "TWENTY", DiscountType: enums.DiscountTypePercentage, DiscountValue: decimal.NewFromInt(20), MaxDiscountPaise: &maxDiscount}
	engine, err := NewEngine(stubEvaluator{coupon: coupon})
	require.NoError(t, err)

	quote, err := engine.Quote(context.Background(), 1000000, "TWENTY")
	require.NoError(t, err)
	assert.Equal(t, int64(100000), quote.DiscountPaise)
	assert.Equal(t, int64(900000), quote.TotalPaise)
}

func TestQuoteWithoutCouponAppliesRules(t *testing.T) {
	engine, err := NewEngine(stubEvaluator{err: pkgerrors.New(pkgerrors.CodeInternal, "should not be called")},
		WithShipping(FlatShipping{Paise: 4900, FreeAbovePaise: 99900}),
		WithTax(percentTax(18)),
	)
	require.NoError(t, err)

	quote, err := engine.Quote(context.Background(), 50000, "")
	require.NoError(t, err)
	assert.False(t, quote.HasCoupon())
	assert.Equal(t, int64(4900), quote.ShippingPaise)
	assert.Equal(t, int64(9000), quote.TaxPaise)
	assert.Equal(t, int64(63900), quote.TotalPaise)

	quote, err = engine.Quote(context.Background(), 100000, "")
	require.NoError(t, err)
	assert.Zero(t, quote.ShippingPaise)
}

func TestQuoteDefaultsToFreeShippingNoTax(t *testing.T) {
	engine, err := NewEngine(stubEvaluator{})
	require.NoError(t, err)
	quote, err := engine.Quote(context.Background(), 12345, "")
	require.NoError(t, err)
	assert.Equal(t, Breakdown{SubtotalPaise: 12345, TotalPaise: 12345}, quote.Breakdown)
}

func TestQuotePropagatesRejection(t *testing.T) {
	engine, err := NewEngine(stubEvaluator{err: pkgerrors.Reject(coupons.ReasonExpired, "coupon is not active")})
	require.NoError(t, err)

	quote, err := engine.Quote(context.Background(), 5000, "OLD")
	require.Nil(t, quote)
	assert.Equal(t, coupons.ReasonExpired, pkgerrors.Reason(err))
}
