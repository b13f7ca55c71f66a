// Package payments reconciles gateway payment callbacks with pending orders.
package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-checkout/internal/catalog"
	"github.com/angelmondragon/storefront-checkout/internal/coupons"
	"github.com/angelmondragon/storefront-checkout/internal/orders"
	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/metrics"
)

const expiredReason = "payment window expired"

// VerifyInput is the success callback the client relays from the gateway.
type VerifyInput struct {
	UserID         uuid.UUID
	OrderID        uuid.UUID
	GatewayOrderID string
	PaymentID      string
	Signature      string
}

// FailureInput is a gateway-reported payment failure.
type FailureInput struct {
	UserID         uuid.UUID
	OrderID        uuid.UUID
	GatewayOrderID string
	PaymentID      string
	Reason         string
}

// Result is the order payment state after reconciliation. Duplicate is set
// when the callback had already been applied.
type Result struct {
	OrderID       uuid.UUID           `json:"order_id"`
	Status        enums.OrderStatus   `json:"status"`
	StatusLabel   string              `json:"status_label"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	TransactionID string              `json:"transaction_id,omitempty"`
	Duplicate     bool                `json:"duplicate"`
}

type verifier interface {
	VerifySignature(gatewayOrderID, paymentID, signature string) bool
}

type redeemer interface {
	Redeem(ctx context.Context, tx *gorm.DB, input coupons.RedeemInput) (bool, error)
}

type cartClearer interface {
	Clear(ctx context.Context, userID uuid.UUID) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Reconciler drives orders from pending to confirmed or failed. Both end
// states are terminal.
type Reconciler struct {
	orders   orders.Repository
	verifier verifier
	coupons  redeemer
	catalog  catalog.Service
	carts    cartClearer
	tx       txRunner
	guard    *Guard
	metrics  *metrics.CheckoutMetrics
	logg     *logger.Logger
	now      func() time.Time
}

// Params wires a Reconciler. Guard, Metrics and Logger are optional.
type Params struct {
	Orders   orders.Repository
	Verifier verifier
	Coupons  redeemer
	Catalog  catalog.Service
	Carts    cartClearer
	Tx       txRunner
	Guard    *Guard
	Metrics  *metrics.CheckoutMetrics
	Logger   *logger.Logger
	Now      func() time.Time
}

func NewReconciler(p Params) (*Reconciler, error) {
	switch {
	case p.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case p.Verifier == nil:
		return nil, fmt.Errorf("signature verifier required")
	case p.Coupons == nil:
		return nil, fmt.Errorf("coupon redeemer required")
	case p.Catalog == nil:
		return nil, fmt.Errorf("catalog service required")
	case p.Carts == nil:
		return nil, fmt.Errorf("cart clearer required")
	case p.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	}
	r := &Reconciler{
		orders:   p.Orders,
		verifier: p.Verifier,
		coupons:  p.Coupons,
		catalog:  p.Catalog,
		carts:    p.Carts,
		tx:       p.Tx,
		guard:    p.Guard,
		metrics:  p.Metrics,
		logg:     p.Logger,
		now:      p.Now,
	}
	if r.logg == nil {
		r.logg = logger.Nop()
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r, nil
}

// Verify checks the gateway signature and confirms the order. A bad
// signature marks a pending order failed and never confirms it.
func (r *Reconciler) Verify(ctx context.Context, input VerifyInput) (*Result, error) {
	if err := validateVerify(input); err != nil {
		return nil, err
	}
	ctx = r.logg.WithPayment(r.logg.WithOrderID(ctx, input.OrderID.String()), input.GatewayOrderID, input.PaymentID)

	order, err := r.load(ctx, input.OrderID, input.UserID)
	if err != nil {
		return nil, err
	}

	// The signature is checked against the stored gateway order id so a
	// callback cannot be replayed onto another order.
	if input.GatewayOrderID != order.GatewayOrderID ||
		!r.verifier.VerifySignature(order.GatewayOrderID, input.PaymentID, input.Signature) {
		return nil, r.rejectSignature(ctx, order)
	}

	if order.PaymentStatus.IsTerminal() {
		return r.settled(ctx, order, input.PaymentID)
	}

	if r.guard != nil {
		seen, err := r.guard.CheckAndMark(ctx, input.PaymentID)
		if err != nil {
			r.logg.Warn(ctx, "payment guard unavailable, relying on conditional update")
		} else if seen {
			return r.replay(ctx, input)
		}
	}

	paidAt := r.now().UTC()
	var confirmed bool
	err = r.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := r.orders.WithTx(tx)
		updated, err := repo.MarkConfirmed(ctx, order.ID, input.PaymentID, paidAt)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm order")
		}
		if !updated {
			return nil
		}
		confirmed = true

		if order.CouponID != nil {
			if _, err := r.coupons.Redeem(ctx, tx, coupons.RedeemInput{
				CouponID:      *order.CouponID,
				OrderID:       order.ID,
				UserID:        order.UserID,
				DiscountPaise: order.DiscountPaise,
			}); err != nil {
				return err
			}
		}

		short, err := r.catalog.Commit(ctx, tx, order.Items)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "commit stock")
		}
		for _, item := range short {
			r.logg.Warn(r.logg.WithFields(ctx, map[string]any{
				"product_id": item.ProductID.String(),
				"size":       item.SizeLabel,
				"quantity":   item.Quantity,
			}), "stock short for confirmed order")
		}
		return nil
	})
	if err != nil {
		r.releaseGuard(ctx, input.PaymentID)
		r.metrics.Verification(metrics.OutcomeError)
		r.logg.Error(ctx, "payment confirmation failed", err)
		return nil, err
	}

	if !confirmed {
		// lost a race with another callback or the expiry job
		return r.replay(ctx, input)
	}

	if err := r.carts.Clear(ctx, order.UserID); err != nil {
		r.logg.Warn(ctx, "clear cart after payment failed")
	}
	r.metrics.Verification(metrics.OutcomeConfirmed)
	r.logg.Info(ctx, "payment confirmed")

	return &Result{
		OrderID:       order.ID,
		Status:        enums.OrderStatusProcessing,
		StatusLabel:   enums.OrderStatusProcessing.Label(),
		PaymentStatus: enums.PaymentStatusConfirmed,
		TransactionID: input.PaymentID,
	}, nil
}

// ReportFailure records a gateway-reported failure on a pending order.
func (r *Reconciler) ReportFailure(ctx context.Context, input FailureInput) (*Result, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.Field("order_id", "order id is required")
	}
	if strings.TrimSpace(input.GatewayOrderID) == "" {
		return nil, pkgerrors.Field("gateway_order_id", "gateway order id is required")
	}
	ctx = r.logg.WithPayment(r.logg.WithOrderID(ctx, input.OrderID.String()), input.GatewayOrderID, "")

	order, err := r.load(ctx, input.OrderID, input.UserID)
	if err != nil {
		return nil, err
	}
	if order.GatewayOrderID != input.GatewayOrderID {
		return nil, pkgerrors.Field("gateway_order_id", "gateway order id does not match order")
	}

	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		reason = "payment failed at gateway"
	}
	updated, err := r.orders.MarkFailed(ctx, order.ID, reason)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order failed")
	}
	if !updated {
		order, err = r.load(ctx, input.OrderID, input.UserID)
		if err != nil {
			return nil, err
		}
		if order.PaymentStatus == enums.PaymentStatusConfirmed {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order payment already confirmed")
		}
		return resultOf(order, true), nil
	}

	r.logg.Warn(r.logg.WithField(ctx, "reason", reason), "payment reported failed")
	return &Result{
		OrderID:       order.ID,
		Status:        enums.OrderStatusFailed,
		StatusLabel:   enums.OrderStatusFailed.Label(),
		PaymentStatus: enums.PaymentStatusFailed,
	}, nil
}

// ExpireStale fails up to limit orders still awaiting payment that were
// created before cutoff and reports how many it changed. A failing row does
// not stop the batch.
func (r *Reconciler) ExpireStale(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	rows, err := r.orders.FindStalePending(ctx, cutoff, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find stale orders")
	}
	expired := 0
	var errs error
	for _, row := range rows {
		updated, err := r.orders.MarkFailed(ctx, row.ID, expiredReason)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("expire order %s: %w", row.ID, err))
			continue
		}
		if updated {
			expired++
		}
	}
	return expired, errs
}

func (r *Reconciler) load(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	var (
		order *models.Order
		err   error
	)
	if userID == uuid.Nil {
		order, err = r.orders.Find(ctx, orderID)
	} else {
		order, err = r.orders.FindForUser(ctx, orderID, userID)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (r *Reconciler) rejectSignature(ctx context.Context, order *models.Order) error {
	r.metrics.Verification(metrics.OutcomeMismatch)
	verr := pkgerrors.New(pkgerrors.CodeVerificationFailed, "payment signature mismatch").
		WithDetails(map[string]any{"order_id": order.ID.String()})
	r.logg.Error(ctx, "payment signature verification failed", verr)

	if order.PaymentStatus == enums.PaymentStatusPending {
		if _, err := r.orders.MarkFailed(ctx, order.ID, "signature verification failed"); err != nil {
			r.logg.Error(ctx, "mark order failed after signature mismatch", err)
		}
	}
	return verr
}

// settled answers a callback for an order that already left pending.
func (r *Reconciler) settled(ctx context.Context, order *models.Order, paymentID string) (*Result, error) {
	if order.PaymentStatus == enums.PaymentStatusConfirmed &&
		order.TransactionID != nil && *order.TransactionID == paymentID {
		r.metrics.Verification(metrics.OutcomeDuplicate)
		r.logg.Info(ctx, "duplicate payment callback ignored")
		return resultOf(order, true), nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order payment already settled").
		WithDetails(map[string]any{"payment_status": order.PaymentStatus})
}

func (r *Reconciler) replay(ctx context.Context, input VerifyInput) (*Result, error) {
	order, err := r.load(ctx, input.OrderID, input.UserID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus.IsTerminal() {
		return r.settled(ctx, order, input.PaymentID)
	}
	return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment verification already in progress")
}

func (r *Reconciler) releaseGuard(ctx context.Context, paymentID string) {
	if r.guard == nil {
		return
	}
	if err := r.guard.Release(ctx, paymentID); err != nil {
		r.logg.Warn(ctx, "release payment guard failed")
	}
}

func resultOf(order *models.Order, duplicate bool) *Result {
	res := &Result{
		OrderID:       order.ID,
		Status:        order.Status,
		StatusLabel:   order.Status.Label(),
		PaymentStatus: order.PaymentStatus,
		Duplicate:     duplicate,
	}
	if order.TransactionID != nil {
		res.TransactionID = *order.TransactionID
	}
	return res
}

func validateVerify(input VerifyInput) error {
	switch {
	case input.OrderID == uuid.Nil:
		return pkgerrors.Field("order_id", "order id is required")
	case strings.TrimSpace(input.GatewayOrderID) == "":
		return pkgerrors.Field("gateway_order_id", "gateway order id is required")
	case strings.TrimSpace(input.PaymentID) == "":
		return pkgerrors.Field("payment_id", "payment id is required")
	case strings.TrimSpace(input.Signature) == "":
		return pkgerrors.Field("signature", "signature is required")
	}
	return nil
}
