package coupons

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/types"
)

type gormTx struct {
	db *gorm.DB
}

func (g gormTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return g.db.WithContext(ctx).Transaction(fn)
}

type ordersByID map[uuid.UUID]*models.Order

func (o ordersByID) FindForUser(_ context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	order, ok := o[orderID]
	if !ok || order.UserID != userID {
		return nil, nil
	}
	return order, nil
}

func newTestService(t *testing.T, orders ordersByID) (Service, Repository, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	repo := NewRepository(db)
	svc, err := NewService(repo, orders, gormTx{db: db}, nil)
	require.NoError(t, err)
	return svc, repo, db
}

func TestRedeemCountsOncePerOrder(t *testing.T) {
	svc, repo, db := newTestService(t, ordersByID{})
	ctx := context.Background()
	coupon := activeCoupon("ONCE", enums.DiscountTypeFixed, 100)
	require.NoError(t, repo.Create(ctx, coupon))
	orderID := uuid.New()

	for i := 0; i < 3; i++ {
		redeemed, err := svc.Redeem(ctx, db, RedeemInput{CouponID: coupon.ID, OrderID: orderID, UserID: uuid.New(), DiscountPaise: 100})
		require.NoError(t, err)
		assert.Equal(t, i == 0, redeemed)
	}

	stored, err := repo.FindByID(ctx, coupon.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.UsedCount)

	redeemed, err := svc.Redeem(ctx, db, RedeemInput{CouponID: coupon.ID, OrderID: uuid.New(), DiscountPaise: 100})
	require.NoError(t, err)
	assert.True(t, redeemed)
	stored, err = repo.FindByID(ctx, coupon.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.UsedCount)
}

func TestRedeemRollsBackWithTransaction(t *testing.T) {
	svc, repo, db := newTestService(t, ordersByID{})
	ctx := context.Background()
	coupon := activeCoupon("ROLLBACK", enums.DiscountTypeFixed, 100)
	require.NoError(t, repo.Create(ctx, coupon))

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := svc.Redeem(ctx, tx, RedeemInput{CouponID: coupon.ID, OrderID: uuid.New()})
		require.NoError(t, err)
		return pkgerrors.New(pkgerrors.CodeInternal, "abort")
	})
	require.Error(t, err)

	stored, err := repo.FindByID(ctx, coupon.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.UsedCount)
}

func TestUseRedeemsConfirmedOrder(t *testing.T) {
	userID := uuid.New()
	orderID := uuid.New()
	orders := ordersByID{}
	svc, repo, _ := newTestService(t, orders)
	ctx := context.Background()
	coupon := activeCoupon("WELCOME", enums.DiscountTypeFixed, 5000)
	require.NoError(t, repo.Create(ctx, coupon))

	orders[orderID] = &models.Order{
		ID:            orderID,
		UserID:        userID,
		Items:         types.OrderItems{},
		CouponID:      &coupon.ID,
		CouponCode:    ptr("WELCOME"),
		DiscountPaise: 5000,
		PaymentStatus: enums.PaymentStatusConfirmed,
	}

	result, err := svc.Use(ctx, UseInput{UserID: userID, Code: "welcome", OrderID: orderID})
	require.NoError(t, err)
	assert.True(t, result.Redeemed)
	assert.Equal(t, 1, result.UsedCount)

	result, err = svc.Use(ctx, UseInput{UserID: userID, Code: "WELCOME", OrderID: orderID})
	require.NoError(t, err)
	assert.False(t, result.Redeemed)
	assert.Equal(t, 1, result.UsedCount)
}

func TestUseRejections(t *testing.T) {
	userID := uuid.New()
	pendingID := uuid.New()
	plainID := uuid.New()
	couponID := uuid.New()
	orders := ordersByID{
		pendingID: {ID: pendingID, UserID: userID, CouponID: &couponID, CouponCode: ptr("WELCOME"), PaymentStatus: enums.PaymentStatusPending},
		plainID:   {ID: plainID, UserID: userID, PaymentStatus: enums.PaymentStatusConfirmed},
	}
	svc, _, _ := newTestService(t, orders)
	ctx := context.Background()

	_, err := svc.Use(ctx, UseInput{UserID: userID, Code: "", OrderID: pendingID})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Use(ctx, UseInput{UserID: uuid.New(), Code: "WELCOME", OrderID: pendingID})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = svc.Use(ctx, UseInput{UserID: userID, Code: "WELCOME", OrderID: plainID})
	require.Equal(t, ReasonInvalidCode, pkgerrors.Reason(err))

	_, err = svc.Use(ctx, UseInput{UserID: userID, Code: "WELCOME", OrderID: pendingID})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestRedeemStopsCountingAtUsageLimit(t *testing.T) {
	svc, repo, db := newTestService(t, ordersByID{})
	ctx := context.Background()
	limit := 1
	coupon := activeCoupon("LIMITED", enums.DiscountTypeFixed, 100)
	coupon.UsageLimit = &limit
	require.NoError(t, repo.Create(ctx, coupon))

	for i := 0; i < 2; i++ {
		redeemed, err := svc.Redeem(ctx, db, RedeemInput{CouponID: coupon.ID, OrderID: uuid.New(), DiscountPaise: 100})
		require.NoError(t, err)
		assert.True(t, redeemed, "a paid order keeps its redemption")
	}

	stored, err := repo.FindByID(ctx, coupon.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.UsedCount)

	var redemptions int64
	require.NoError(t, db.Model(&models.CouponRedemption{}).Where("coupon_id = ?", coupon.ID).Count(&redemptions).Error)
	assert.EqualValues(t, 2, redemptions)

	counted, err := repo.IncrementUsage(ctx, uuid.New())
	require.NoError(t, err)
	assert.False(t, counted)
}
