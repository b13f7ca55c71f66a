package coupons

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

// UseInput asks to record a coupon against a paid order.
type UseInput struct {
	UserID  uuid.UUID
	Code    string
	OrderID uuid.UUID
}

// UseResult reports the redemption outcome. Redeemed is false when the order
// had already been counted.
type UseResult struct {
	Code      string    `json:"code"`
	OrderID   uuid.UUID `json:"order_id"`
	Redeemed  bool      `json:"redeemed"`
	UsedCount int       `json:"used_count"`
}

// RedeemInput identifies one coupon use.
type RedeemInput struct {
	CouponID      uuid.UUID
	OrderID       uuid.UUID
	UserID        uuid.UUID
	DiscountPaise int64
}

// Service records coupon usage.
type Service interface {
	// Redeem counts one use inside tx. It is a no-op returning false when the
	// order was already counted.
	Redeem(ctx context.Context, tx *gorm.DB, input RedeemInput) (bool, error)
	Use(ctx context.Context, input UseInput) (*UseResult, error)
}

// orderReader returns (nil, nil) when the order does not exist or belongs to
// another user.
type orderReader interface {
	FindForUser(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo   Repository
	orders orderReader
	tx     txRunner
	logg   *logger.Logger
}

// NewService builds the coupon usage service. A nil logger discards.
func NewService(repo Repository, orders orderReader, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	if orders == nil {
		return nil, fmt.Errorf("order reader required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{repo: repo, orders: orders, tx: tx, logg: logg}, nil
}

func (s *service) Redeem(ctx context.Context, tx *gorm.DB, input RedeemInput) (bool, error) {
	if input.CouponID == uuid.Nil || input.OrderID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeInternal, "coupon and order ids required for redemption")
	}
	repo := s.repo.WithTx(tx)
	inserted, err := repo.InsertRedemption(ctx, &models.CouponRedemption{
		CouponID:      input.CouponID,
		OrderID:       input.OrderID,
		UserID:        input.UserID,
		DiscountPaise: input.DiscountPaise,
	})
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record coupon redemption")
	}
	if !inserted {
		return false, nil
	}
	counted, err := repo.IncrementUsage(ctx, input.CouponID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "increment coupon usage")
	}
	if !counted {
		// the order was priced while the coupon had uses left; keep the
		// redemption row and leave used_count at the limit
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"coupon_id":         input.CouponID.String(),
			logger.FieldOrderID: input.OrderID.String(),
		}), "coupon usage limit reached at redemption")
	}
	return true, nil
}

// Use backs the explicit POST /coupons/use call. Payment confirmation already
// redeems, so a repeat for the same order reports Redeemed=false.
func (s *service) Use(ctx context.Context, input UseInput) (*UseResult, error) {
	code := NormalizeCode(input.Code)
	if code == "" {
		return nil, pkgerrors.Field("coupon_code", "coupon code is required")
	}
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.Field("order_id", "order id is required")
	}

	order, err := s.orders.FindForUser(ctx, input.OrderID, input.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if order.CouponID == nil || order.CouponCode == nil || !strings.EqualFold(*order.CouponCode, code) {
		return nil, pkgerrors.Reject(ReasonInvalidCode, "coupon was not applied to this order")
	}
	if order.PaymentStatus != enums.PaymentStatusConfirmed {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order payment is not confirmed").
			WithDetails(map[string]any{"payment_status": order.PaymentStatus})
	}

	result := &UseResult{Code: code, OrderID: order.ID}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		redeemed, err := s.Redeem(ctx, tx, RedeemInput{
			CouponID:      *order.CouponID,
			OrderID:       order.ID,
			UserID:        order.UserID,
			DiscountPaise: order.DiscountPaise,
		})
		if err != nil {
			return err
		}
		result.Redeemed = redeemed

		coupon, err := s.repo.WithTx(tx).FindByID(ctx, *order.CouponID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload coupon")
		}
		if coupon != nil {
			result.UsedCount = coupon.UsedCount
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
