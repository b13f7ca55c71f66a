// Package orders assembles checkouts into persisted orders and serves order
// history and the admin status workflow.
package orders

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-checkout/internal/cart"
	"github.com/angelmondragon/storefront-checkout/internal/catalog"
	"github.com/angelmondragon/storefront-checkout/internal/pricing"
	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/gateway"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/metrics"
	"github.com/angelmondragon/storefront-checkout/pkg/types"
)

// Rejection reasons for placement.
const (
	ReasonEmptyCart         = "empty_cart"
	ReasonNoAddressSelected = "no_address_selected"
)

// EmptyCart reports a checkout with nothing to pay for.
func EmptyCart() *pkgerrors.Error {
	return pkgerrors.Reject(ReasonEmptyCart, "cart is empty or has nothing to pay")
}

// NoAddressSelected reports a checkout without a shipping address.
func NoAddressSelected() *pkgerrors.Error {
	return pkgerrors.Reject(ReasonNoAddressSelected, "select a shipping address")
}

type orderGateway interface {
	CreateOrder(ctx context.Context, req gateway.OrderRequest) (*gateway.Order, error)
	KeyID() string
}

type addressBook interface {
	Get(ctx context.Context, userID, addressID uuid.UUID) (*models.Address, error)
}

type cartLoader interface {
	Load(ctx context.Context, userID uuid.UUID) (*cart.Cart, error)
}

type quoter interface {
	Quote(ctx context.Context, subtotalPaise int64, couponCode string) (*pricing.Quote, error)
}

// Assembler turns a checkout request into a pending order and a gateway
// handle.
type Assembler struct {
	repo      Repository
	catalog   catalog.Service
	pricing   quoter
	addresses addressBook
	carts     cartLoader
	gateway   orderGateway
	metrics   *metrics.CheckoutMetrics
	logg      *logger.Logger
}

// AssemblerParams wires an Assembler.
type AssemblerParams struct {
	Repo      Repository
	Catalog   catalog.Service
	Pricing   quoter
	Addresses addressBook
	Carts     cartLoader
	Gateway   orderGateway
	Metrics   *metrics.CheckoutMetrics
	Logger    *logger.Logger
}

func NewAssembler(p AssemblerParams) (*Assembler, error) {
	switch {
	case p.Repo == nil:
		return nil, fmt.Errorf("orders repository required")
	case p.Catalog == nil:
		return nil, fmt.Errorf("catalog service required")
	case p.Pricing == nil:
		return nil, fmt.Errorf("pricing engine required")
	case p.Addresses == nil:
		return nil, fmt.Errorf("address book required")
	case p.Carts == nil:
		return nil, fmt.Errorf("cart loader required")
	case p.Gateway == nil:
		return nil, fmt.Errorf("payment gateway required")
	}
	logg := p.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Assembler{
		repo:      p.Repo,
		catalog:   p.Catalog,
		pricing:   p.Pricing,
		addresses: p.Addresses,
		carts:     p.Carts,
		gateway:   p.Gateway,
		metrics:   p.Metrics,
		logg:      logg,
	}, nil
}

// PlaceOrder prices the checkout against the live catalog, opens a gateway
// order and stores the order as pending before handing it back. Nothing is
// persisted when any step before the gateway call fails.
func (a *Assembler) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*OrderHandle, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}

	lines, err := a.lines(ctx, input)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, EmptyCart()
	}
	if input.AddressID == uuid.Nil {
		return nil, NoAddressSelected()
	}

	addr, err := a.addresses.Get(ctx, input.UserID, input.AddressID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, NoAddressSelected()
		}
		return nil, err
	}

	items, err := a.price(ctx, lines)
	if err != nil {
		return nil, err
	}

	quote, err := a.pricing.Quote(ctx, items.SubtotalPaise(), input.CouponCode)
	if err != nil {
		return nil, err
	}
	if quote.TotalPaise <= 0 {
		return nil, EmptyCart()
	}

	order := &models.Order{
		ID:              uuid.New(),
		UserID:          input.UserID,
		Items:           items,
		ShippingAddress: addr.Snapshot(),
		SubtotalPaise:   quote.SubtotalPaise,
		DiscountPaise:   quote.DiscountPaise,
		ShippingPaise:   quote.ShippingPaise,
		TaxPaise:        quote.TaxPaise,
		TotalPaise:      quote.TotalPaise,
		Currency:        enums.CurrencyINR,
		Status:          enums.OrderStatusPending,
		PaymentStatus:   enums.PaymentStatusPending,
	}
	if quote.HasCoupon() {
		couponID := quote.CouponID
		code := quote.Coupon.Code
		order.CouponID = &couponID
		order.CouponCode = &code
	}

	ctx = a.logg.WithOrderID(ctx, order.ID.String())
	gwOrder, err := a.gateway.CreateOrder(ctx, gateway.OrderRequest{
		AmountPaise: order.TotalPaise,
		Currency:    order.Currency.String(),
		Receipt:     order.ID.String(),
		Notes:       map[string]string{"user_id": input.UserID.String()},
	})
	if err != nil {
		a.logg.Error(ctx, "gateway order creation failed", err)
		return nil, err
	}
	ctx = a.logg.WithPayment(ctx, gwOrder.ID, "")
	if err := matchGatewayOrder(order, gwOrder); err != nil {
		a.logg.Error(ctx, "gateway order does not match quote", err)
		return nil, err
	}
	order.GatewayOrderID = gwOrder.ID

	if err := a.repo.Create(ctx, order); err != nil {
		a.logg.Error(ctx, "persist order after gateway handoff", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist order")
	}

	a.metrics.OrderPlaced(order.TotalPaise)
	a.logg.Info(ctx, "order placed")

	return &OrderHandle{
		OrderID:        order.ID,
		GatewayOrderID: gwOrder.ID,
		AmountPaise:    order.TotalPaise,
		Currency:       order.Currency,
		KeyID:          a.gateway.KeyID(),
		Breakdown:      quote.Breakdown,
	}, nil
}

// matchGatewayOrder refuses a gateway order whose amount or currency differs
// from what was quoted; the customer would otherwise be charged a total the
// order does not record.
func matchGatewayOrder(order *models.Order, gw *gateway.Order) error {
	currency, err := enums.ParseCurrency(gw.Currency)
	if gw.ID == "" || gw.AmountPaise != order.TotalPaise || err != nil || currency != order.Currency {
		return pkgerrors.New(pkgerrors.CodeDependency, "gateway order mismatch").WithDetails(map[string]any{
			"gateway_amount":   gw.AmountPaise,
			"quoted_amount":    order.TotalPaise,
			"gateway_currency": gw.Currency,
		})
	}
	return nil
}

func (a *Assembler) lines(ctx context.Context, input PlaceOrderInput) ([]LineRequest, error) {
	if len(input.Items) > 0 {
		return input.Items, nil
	}
	c, err := a.carts.Load(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	lines := make([]LineRequest, 0, len(c.Lines))
	for _, line := range c.Lines {
		lines = append(lines, LineRequest{ProductID: line.ProductID, Size: line.SizeLabel, Quantity: line.Quantity})
	}
	return lines, nil
}

// price snapshots each line at the current catalog price, merging repeats
// of the same product size and re-checking stock.
func (a *Assembler) price(ctx context.Context, lines []LineRequest) (types.OrderItems, error) {
	priced := cart.New(uuid.Nil)
	for i, line := range lines {
		if line.ProductID == uuid.Nil {
			return nil, pkgerrors.Field(fmt.Sprintf("items[%d].product_id", i), "product id is required")
		}
		if strings.TrimSpace(line.Size) == "" {
			return nil, pkgerrors.Field(fmt.Sprintf("items[%d].size", i), "size is required")
		}
		item, err := a.catalog.Lookup(ctx, line.ProductID, line.Size)
		if err != nil {
			return nil, err
		}
		err = priced.AddItem(cart.Line{
			ProductID:      item.ProductID,
			SizeLabel:      item.SizeLabel,
			Title:          item.Title,
			Image:          item.Image,
			Quantity:       line.Quantity,
			UnitPricePaise: item.UnitPricePaise,
		}, item.Stock)
		if err != nil {
			return nil, err
		}
	}
	return priced.Snapshot(), nil
}
