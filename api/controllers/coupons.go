package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-checkout/api/responses"
	"github.com/angelmondragon/storefront-checkout/api/validators"
	"github.com/angelmondragon/storefront-checkout/internal/coupons"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

type couponValidateRequest struct {
	Code           string `json:"code" validate:"required,max=64"`
	CartTotalPaise *int64 `json:"cart_total" validate:"required,min=0"`
}

type couponUseRequest struct {
	CouponCode string `json:"coupon_code" validate:"required,max=64"`
	OrderID    string `json:"order_id" validate:"required,uuid"`
}

type couponEvaluator interface {
	Validate(ctx context.Context, code string, subtotalPaise int64) (*coupons.Evaluation, error)
}

type couponUser interface {
	Use(ctx context.Context, input coupons.UseInput) (*coupons.UseResult, error)
}

// CouponValidate prices a code against a cart total without side effects.
func CouponValidate(evaluator couponEvaluator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req couponValidateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		eval, err := evaluator.Validate(r.Context(), validators.SanitizeString(req.Code, 64), *req.CartTotalPaise)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, eval)
	}
}

// CouponUse records a coupon against the caller's paid order.
func CouponUse(svc couponUser, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := UserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req couponUseRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Use(r.Context(), coupons.UseInput{
			UserID:  userID,
			Code:    validators.SanitizeString(req.CouponCode, 64),
			OrderID: uuid.MustParse(req.OrderID),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
