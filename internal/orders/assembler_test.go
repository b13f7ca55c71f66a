package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-checkout/internal/cart"
	"github.com/angelmondragon/storefront-checkout/internal/catalog"
	"github.com/angelmondragon/storefront-checkout/internal/coupons"
	"github.com/angelmondragon/storefront-checkout/internal/pricing"
	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/gateway"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Product{}, &models.ProductSize{},
		&models.Coupon{}, &models.CouponRedemption{},
		&models.Order{},
	))
	return db
}

type fakeGateway struct {
	calls    int
	requests []gateway.OrderRequest
	err      error
	// amend lets a test tamper with what the gateway echoes back.
	amend func(*gateway.Order)
}

func (f *fakeGateway) CreateOrder(_ context.Context, req gateway.OrderRequest) (*gateway.Order, error) {
	f.calls++
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	order := &gateway.Order{ID: "order_" + req.Receipt[:8], AmountPaise: req.AmountPaise, Currency: req.Currency, Status: "created"}
	if f.amend != nil {
		f.amend(order)
	}
	return order, nil
}

func (f *fakeGateway) KeyID() string { return "rzp_test_key" }

type fakeAddressBook map[uuid.UUID]*models.Address

func (f fakeAddressBook) Get(_ context.Context, userID, addressID uuid.UUID) (*models.Address, error) {
	addr, ok := f[addressID]
	if !ok || addr.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
	}
	return addr, nil
}

type fakeCarts map[uuid.UUID]*cart.Cart

func (f fakeCarts) Load(_ context.Context, userID uuid.UUID) (*cart.Cart, error) {
	if c, ok := f[userID]; ok {
		return c, nil
	}
	return cart.New(userID), nil
}

type fixture struct {
	db        *gorm.DB
	repo      Repository
	assembler *Assembler
	gateway   *fakeGateway
	addresses fakeAddressBook
	carts     fakeCarts
	userID    uuid.UUID
	address   *models.Address
	product   models.Product
}

func newFixture(t *testing.T, stock int, pricePaise int64) *fixture {
	t.Helper()
	db := newTestDB(t)
	ctx := context.Background()

	product := models.Product{Title: "Kurta", Image: "kurta.jpg", IsActive: true, Sizes: []models.ProductSize{
		{Label: "M", PricePaise: pricePaise, Stock: stock},
	}}
	require.NoError(t, db.Create(&product).Error)

	couponRepo := coupons.NewRepository(db)
	now := time.Now()
	require.NoError(t, couponRepo.Create(ctx, &models.Coupon{
		Code: "FLAT500", DiscountType: enums.DiscountTypeFixed, DiscountValue: decimal.NewFromInt(50000),
		ValidFrom: now.Add(-time.Hour), ValidTo: now.Add(time.Hour),
	}))
	require.NoError(t, couponRepo.Create(ctx, &models.Coupon{
		Code: "TEN", DiscountType: enums.DiscountTypePercentage, DiscountValue: decimal.NewFromInt(10),
		ValidFrom: now.Add(-time.Hour), ValidTo: now.Add(time.Hour),
	}))
	evaluator, err := coupons.NewEvaluator(couponRepo, nil)
	require.NoError(t, err)
	engine, err := pricing.NewEngine(evaluator)
	require.NoError(t, err)
	catalogSvc, err := catalog.NewService(catalog.NewRepository(db), nil)
	require.NoError(t, err)

	userID := uuid.New()
	address := &models.Address{
		ID: uuid.New(), UserID: userID, RecipientName: "Asha Rao", Phone: "9876543210",
		StreetLine1: "12 MG Road", City: "Bangalore", State: "Karnataka", PostalCode: "560001",
	}
	f := &fixture{
		db:        db,
		repo:      NewRepository(db),
		gateway:   &fakeGateway{},
		addresses: fakeAddressBook{address.ID: address},
		carts:     fakeCarts{},
		userID:    userID,
		address:   address,
		product:   product,
	}
	f.assembler, err = NewAssembler(AssemblerParams{
		Repo:      f.repo,
		Catalog:   catalogSvc,
		Pricing:   engine,
		Addresses: f.addresses,
		Carts:     f.carts,
		Gateway:   f.gateway,
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) input(qty int, coupon string) PlaceOrderInput {
	return PlaceOrderInput{
		UserID:     f.userID,
		Items:      []LineRequest{{ProductID: f.product.ID, Size: "M", Quantity: qty}},
		AddressID:  f.address.ID,
		CouponCode: coupon,
	}
}

func TestPlaceOrderPersistsPendingOrderBeforeReturning(t *testing.T) {
	f := newFixture(t, 5, 49900)
	ctx := context.Background()

	handle, err := f.assembler.PlaceOrder(ctx, f.input(2, ""))
	require.NoError(t, err)
	assert.Equal(t, int64(99800), handle.AmountPaise)
	assert.Equal(t, enums.CurrencyINR, handle.Currency)
	assert.Equal(t, "rzp_test_key", handle.KeyID)
	require.Len(t, f.gateway.requests, 1)
	assert.Equal(t, handle.OrderID.String(), f.gateway.requests[0].Receipt)
	assert.Equal(t, int64(99800), f.gateway.requests[0].AmountPaise)

	stored, err := f.repo.FindByGatewayOrderID(ctx, handle.GatewayOrderID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, handle.OrderID, stored.ID)
	assert.Equal(t, enums.OrderStatusPending, stored.Status)
	assert.Equal(t, enums.PaymentStatusPending, stored.PaymentStatus)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, "Kurta", stored.Items[0].Title)
	assert.Equal(t, "Bangalore", stored.ShippingAddress.City)
}

func TestPlaceOrderSnapshotsByValue(t *testing.T) {
	f := newFixture(t, 5, 10000)
	ctx := context.Background()
	handle, err := f.assembler.PlaceOrder(ctx, f.input(1, ""))
	require.NoError(t, err)

	f.address.City = "Mysore"
	require.NoError(t, f.db.Model(&models.ProductSize{}).Where("product_id = ?", f.product.ID).Update("price_paise", 1).Error)

	stored, err := f.repo.Find(ctx, handle.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "Bangalore", stored.ShippingAddress.City)
	assert.Equal(t, int64(10000), stored.Items[0].UnitPricePaise)
}

func TestPlaceOrderFallsBackToSessionCart(t *testing.T) {
	f := newFixture(t, 5, 10000)
	c := cart.New(f.userID)
	require.NoError(t, c.AddItem(cart.Line{ProductID: f.product.ID, SizeLabel: "M", Quantity: 3, UnitPricePaise: 1}, 5))
	f.carts[f.userID] = c

	in := f.input(0, "TEN")
	in.Items = nil
	handle, err := f.assembler.PlaceOrder(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, int64(27000), handle.AmountPaise, "re-priced from catalog, 10% off")
	assert.Equal(t, int64(3000), handle.Breakdown.DiscountPaise)

	stored, err := f.repo.Find(context.Background(), handle.OrderID)
	require.NoError(t, err)
	require.NotNil(t, stored.CouponCode)
	assert.Equal(t, "TEN", *stored.CouponCode)
	assert.NotNil(t, stored.CouponID)
}

func TestPlaceOrderRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(f *fixture, in *PlaceOrderInput)
		check  func(t *testing.T, err error)
	}{
		{
			name:   "empty cart",
			mutate: func(_ *fixture, in *PlaceOrderInput) { in.Items = nil },
			check:  func(t *testing.T, err error) { assert.Equal(t, ReasonEmptyCart, pkgerrors.Reason(err)) },
		},
		{
			name:   "no address",
			mutate: func(_ *fixture, in *PlaceOrderInput) { in.AddressID = uuid.Nil },
			check:  func(t *testing.T, err error) { assert.Equal(t, ReasonNoAddressSelected, pkgerrors.Reason(err)) },
		},
		{
			name:   "foreign address",
			mutate: func(_ *fixture, in *PlaceOrderInput) { in.UserID = uuid.New() },
			check:  func(t *testing.T, err error) { assert.Equal(t, ReasonNoAddressSelected, pkgerrors.Reason(err)) },
		},
		{
			name:   "out of stock",
			mutate: func(_ *fixture, in *PlaceOrderInput) { in.Items[0].Quantity = 6 },
			check:  func(t *testing.T, err error) { assert.True(t, cart.IsOutOfStock(err)) },
		},
		{
			name:   "zero total",
			mutate: func(_ *fixture, in *PlaceOrderInput) { in.CouponCode = "flat500" },
			check:  func(t *testing.T, err error) { assert.Equal(t, ReasonEmptyCart, pkgerrors.Reason(err)) },
		},
		{
			name:   "unknown coupon",
			mutate: func(_ *fixture, in *PlaceOrderInput) { in.CouponCode = "NOPE" },
			check: func(t *testing.T, err error) {
				assert.Equal(t, coupons.ReasonInvalidCode, pkgerrors.Reason(err))
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, 5, 20000)
			in := f.input(1, "")
			tc.mutate(f, &in)

			handle, err := f.assembler.PlaceOrder(context.Background(), in)
			require.Nil(t, handle)
			require.Error(t, err)
			tc.check(t, err)
			assert.Zero(t, f.gateway.calls)

			var count int64
			require.NoError(t, f.db.Model(&models.Order{}).Count(&count).Error)
			assert.Zero(t, count)
		})
	}
}

func TestPlaceOrderGatewayFailureStoresNothing(t *testing.T) {
	f := newFixture(t, 5, 20000)
	f.gateway.err = pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("timeout"), "create razorpay order")

	_, err := f.assembler.PlaceOrder(context.Background(), f.input(1, ""))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	var count int64
	require.NoError(t, f.db.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestPlaceOrderRefusesMismatchedGatewayOrder(t *testing.T) {
	cases := map[string]func(*gateway.Order){
		"amount":   func(o *gateway.Order) { o.AmountPaise++ },
		"currency": func(o *gateway.Order) { o.Currency = "USD" },
	}
	for name, amend := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, 5, 20000)
			f.gateway.amend = amend

			_, err := f.assembler.PlaceOrder(context.Background(), f.input(1, ""))
			require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

			var count int64
			require.NoError(t, f.db.Model(&models.Order{}).Count(&count).Error)
			assert.Zero(t, count)
		})
	}

	f := newFixture(t, 5, 20000)
	f.gateway.amend = func(o *gateway.Order) { o.Currency = "inr" }
	_, err := f.assembler.PlaceOrder(context.Background(), f.input(1, ""))
	require.NoError(t, err, "currency case is not significant")
}
