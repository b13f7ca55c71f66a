// Package gateway adapts the Razorpay SDK to the checkout flow.
package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	razorpay "github.com/razorpay/razorpay-go"

	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/metrics"
	"github.com/angelmondragon/storefront-checkout/pkg/resilience"
)

// OrderRequest is what the storefront asks the gateway to collect.
type OrderRequest struct {
	AmountPaise int64
	Currency    string
	Receipt     string
	Notes       map[string]string
}

// Order is the gateway side order handle.
type Order struct {
	ID          string
	AmountPaise int64
	Currency    string
	Status      string
}

// orderCreator is the slice of the SDK used here; *resources.Order satisfies it.
type orderCreator interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// Razorpay creates gateway orders and checks payment signatures.
type Razorpay struct {
	keyID     string
	keySecret string
	orders    orderCreator
	policy    *resilience.Policy
	metrics   *metrics.CheckoutMetrics
}

// Params configure the Razorpay adapter.
type Params struct {
	KeyID     string
	KeySecret string
	Policy    *resilience.Policy
	Metrics   *metrics.CheckoutMetrics
}

// NewRazorpay builds the adapter on top of the official SDK client.
func NewRazorpay(params Params) (*Razorpay, error) {
	if strings.TrimSpace(params.KeyID) == "" || strings.TrimSpace(params.KeySecret) == "" {
		return nil, fmt.Errorf("razorpay key id and secret are required")
	}
	sdk := razorpay.NewClient(params.KeyID, params.KeySecret)
	return newRazorpay(params, sdk.Order), nil
}

func newRazorpay(params Params, orders orderCreator) *Razorpay {
	return &Razorpay{
		keyID:     params.KeyID,
		keySecret: params.KeySecret,
		orders:    orders,
		policy:    params.Policy,
		metrics:   params.Metrics,
	}
}

// KeyID is the publishable key the client needs to open checkout.
func (r *Razorpay) KeyID() string {
	return r.keyID
}

// CreateOrder registers an order with the gateway. The SDK call is not
// context aware, so it runs in a goroutine bounded by ctx.
func (r *Razorpay) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	if req.AmountPaise <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway amount must be positive")
	}
	payload := map[string]interface{}{
		"amount":   req.AmountPaise,
		"currency": req.Currency,
		"receipt":  req.Receipt,
	}
	if len(req.Notes) > 0 {
		notes := make(map[string]interface{}, len(req.Notes))
		for k, v := range req.Notes {
			notes[k] = v
		}
		payload["notes"] = notes
	}

	start := time.Now()
	defer func() { r.metrics.ObserveGateway("orders.create", time.Since(start)) }()

	return resilience.Do(ctx, r.policy, func(ctx context.Context) (*Order, error) {
		type result struct {
			body map[string]interface{}
			err  error
		}
		done := make(chan result, 1)
		go func() {
			body, err := r.orders.Create(payload, nil)
			done <- result{body: body, err: err}
		}()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-done:
			if res.err != nil {
				return nil, resilience.Retryable(pkgerrors.Wrap(pkgerrors.CodeDependency, res.err, "create gateway order"))
			}
			return parseOrder(res.body)
		}
	})
}

func parseOrder(body map[string]interface{}) (*Order, error) {
	id, _ := body["id"].(string)
	if id == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "gateway order response missing id")
	}
	order := &Order{ID: id}
	order.Currency, _ = body["currency"].(string)
	order.Status, _ = body["status"].(string)
	switch amount := body["amount"].(type) {
	case float64:
		order.AmountPaise = int64(amount)
	case int64:
		order.AmountPaise = amount
	case int:
		order.AmountPaise = int64(amount)
	}
	return order, nil
}

// Sign computes the signature the gateway attaches to a successful payment.
func Sign(secret, gatewayOrderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(gatewayOrderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature recomputes the payment signature and compares it in
// constant time. Any malformed input fails verification.
func (r *Razorpay) VerifySignature(gatewayOrderID, paymentID, signature string) bool {
	return VerifySignature(r.keySecret, gatewayOrderID, paymentID, signature)
}

// VerifySignature is the keyed form of Razorpay.VerifySignature.
func VerifySignature(secret, gatewayOrderID, paymentID, signature string) bool {
	if secret == "" || gatewayOrderID == "" || paymentID == "" || signature == "" {
		return false
	}
	provided, err := hex.DecodeString(strings.ToLower(strings.TrimSpace(signature)))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(gatewayOrderID + "|" + paymentID))
	return hmac.Equal(mac.Sum(nil), provided)
}
