package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/types"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:catalog_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Product{}, &models.ProductSize{}))
	return db
}

func seedProduct(t *testing.T, db *gorm.DB, active bool, sizes ...models.ProductSize) models.Product {
	t.Helper()
	product := models.Product{Title: "Linen Shirt", Image: "shirt.jpg", IsActive: true, Sizes: sizes}
	require.NoError(t, db.Create(&product).Error)
	if !active {
		require.NoError(t, db.Model(&product).Update("is_active", false).Error)
	}
	return product
}

func ptr[T any](v T) *T { return &v }

func TestLookupReturnsPricedItem(t *testing.T) {
	db := newTestDB(t)
	product := seedProduct(t, db, true, models.ProductSize{Label: "M", PricePaise: 149900, Stock: 4})
	svc, err := NewService(NewRepository(db), nil)
	require.NoError(t, err)

	item, err := svc.Lookup(context.Background(), product.ID, " M ")
	require.NoError(t, err)
	require.Equal(t, "Linen Shirt", item.Title)
	require.Equal(t, int64(149900), item.UnitPricePaise)
	require.Equal(t, 4, item.Stock)
}

func TestLookupErrors(t *testing.T) {
	db := newTestDB(t)
	active := seedProduct(t, db, true, models.ProductSize{Label: "M", PricePaise: 100, Stock: 1})
	inactive := seedProduct(t, db, false, models.ProductSize{Label: "M", PricePaise: 100, Stock: 1})
	svc, err := NewService(NewRepository(db), nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = svc.Lookup(ctx, uuid.New(), "M")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = svc.Lookup(ctx, active.ID, "XXL")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = svc.Lookup(ctx, inactive.ID, "M")
	require.Equal(t, "unavailable", pkgerrors.Reason(err))

	_, err = svc.Lookup(ctx, active.ID, "")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestEffectivePriceHonorsDealWindow(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	size := models.ProductSize{
		PricePaise:    79900,
		OldPricePaise: ptr(int64(99900)),
		DealStartsAt:  ptr(now.Add(-time.Hour)),
		DealEndsAt:    ptr(now.Add(time.Hour)),
	}
	require.Equal(t, int64(79900), EffectivePrice(size, now))
	require.Equal(t, int64(99900), EffectivePrice(size, now.Add(2*time.Hour)))
	require.Equal(t, int64(99900), EffectivePrice(size, now.Add(-2*time.Hour)))

	noWindow := models.ProductSize{PricePaise: 79900, OldPricePaise: ptr(int64(99900))}
	require.Equal(t, int64(79900), EffectivePrice(noWindow, now))
}

func TestCommitDecrementsStockAndReportsShortfall(t *testing.T) {
	db := newTestDB(t)
	product := seedProduct(t, db, true,
		models.ProductSize{Label: "M", PricePaise: 100, Stock: 3},
		models.ProductSize{Label: "L", PricePaise: 100, Stock: 1},
	)
	svc, err := NewService(NewRepository(db), nil)
	require.NoError(t, err)

	items := types.OrderItems{
		{ProductID: product.ID, SizeLabel: "M", Quantity: 2},
		{ProductID: product.ID, SizeLabel: "L", Quantity: 2},
	}
	var short []types.OrderItemSnapshot
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		var err error
		short, err = svc.Commit(context.Background(), tx, items)
		return err
	}))
	require.Len(t, short, 1)
	require.Equal(t, "L", short[0].SizeLabel)

	var m, l models.ProductSize
	require.NoError(t, db.First(&m, "product_id = ? AND label = ?", product.ID, "M").Error)
	require.NoError(t, db.First(&l, "product_id = ? AND label = ?", product.ID, "L").Error)
	require.Equal(t, 1, m.Stock)
	require.Equal(t, 1, l.Stock)
}

func TestLookupMatchesSizeLabelCaseInsensitively(t *testing.T) {
	db := newTestDB(t)
	product := seedProduct(t, db, true, models.ProductSize{Label: "XL", PricePaise: 99900, Stock: 2})
	svc, err := NewService(NewRepository(db), nil)
	require.NoError(t, err)

	item, err := svc.Lookup(context.Background(), product.ID, "xl")
	require.NoError(t, err)
	require.Equal(t, "XL", item.SizeLabel)

	short, err := svc.Commit(context.Background(), db, types.OrderItems{{ProductID: product.ID, SizeLabel: "Xl", Quantity: 1}})
	require.NoError(t, err)
	require.Empty(t, short)
}
