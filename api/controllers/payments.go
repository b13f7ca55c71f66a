package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-checkout/api/responses"
	"github.com/angelmondragon/storefront-checkout/api/validators"
	"github.com/angelmondragon/storefront-checkout/internal/payments"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

// paymentVerifyRequest uses the field names the gateway checkout widget
// hands back to the client.
type paymentVerifyRequest struct {
	OrderID           string `json:"order_id" validate:"required,uuid"`
	RazorpayPaymentID string `json:"razorpay_payment_id" validate:"required,max=64"`
	RazorpayOrderID   string `json:"razorpay_order_id" validate:"required,max=64"`
	RazorpaySignature string `json:"razorpay_signature" validate:"required,hexadecimal,max=128"`
}

type paymentFailureRequest struct {
	OrderID           string `json:"order_id" validate:"required,uuid"`
	RazorpayOrderID   string `json:"razorpay_order_id" validate:"max=64"`
	RazorpayPaymentID string `json:"razorpay_payment_id" validate:"max=64"`
	Reason            string `json:"reason" validate:"max=500"`
}

type paymentReconciler interface {
	Verify(ctx context.Context, input payments.VerifyInput) (*payments.Result, error)
	ReportFailure(ctx context.Context, input payments.FailureInput) (*payments.Result, error)
}

// PaymentVerify confirms the caller's order when the gateway signature checks
// out. A mismatch answers 400 and leaves the order failed.
func PaymentVerify(svc paymentReconciler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := UserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req paymentVerifyRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID := uuid.MustParse(req.OrderID)
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithOrderID(ctx, orderID.String())
		}
		result, err := svc.Verify(ctx, payments.VerifyInput{
			UserID:         userID,
			OrderID:        orderID,
			GatewayOrderID: req.RazorpayOrderID,
			PaymentID:      req.RazorpayPaymentID,
			Signature:      req.RazorpaySignature,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func PaymentFailure(svc paymentReconciler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := UserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req paymentFailureRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.ReportFailure(r.Context(), payments.FailureInput{
			UserID:         userID,
			OrderID:        uuid.MustParse(req.OrderID),
			GatewayOrderID: req.RazorpayOrderID,
			PaymentID:      req.RazorpayPaymentID,
			Reason:         validators.SanitizeString(req.Reason, 500),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
