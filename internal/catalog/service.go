package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/types"
)

// Item is the priced, stock-annotated view of one product size.
type Item struct {
	ProductID      uuid.UUID
	SizeID         uuid.UUID
	Title          string
	Image          string
	SizeLabel      string
	UnitPricePaise int64
	Stock          int
}

// Service resolves product sizes to current prices and stock.
type Service interface {
	Lookup(ctx context.Context, productID uuid.UUID, sizeLabel string) (*Item, error)
	// Commit decrements stock for purchased lines inside tx. Lines that can no
	// longer be covered are returned rather than failing the transaction.
	Commit(ctx context.Context, tx *gorm.DB, items types.OrderItems) ([]types.OrderItemSnapshot, error)
}

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService builds the catalog service.
func NewService(repo Repository, now func() time.Time) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if now == nil {
		now = time.Now
	}
	return &service{repo: repo, now: now}, nil
}

func (s *service) Lookup(ctx context.Context, productID uuid.UUID, sizeLabel string) (*Item, error) {
	label := strings.TrimSpace(sizeLabel)
	if productID == uuid.Nil {
		return nil, pkgerrors.Field("product_id", "product id required")
	}
	if label == "" {
		return nil, pkgerrors.Field("size", "size required")
	}

	product, size, err := s.repo.FindSize(ctx, productID, label)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if product == nil || size == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product size not found")
	}
	if !product.IsActive {
		return nil, pkgerrors.Reject("unavailable", "product is no longer available")
	}

	return &Item{
		ProductID:      product.ID,
		SizeID:         size.ID,
		Title:          product.Title,
		Image:          product.Image,
		SizeLabel:      size.Label,
		UnitPricePaise: EffectivePrice(*size, s.now()),
		Stock:          size.Stock,
	}, nil
}

func (s *service) Commit(ctx context.Context, tx *gorm.DB, items types.OrderItems) ([]types.OrderItemSnapshot, error) {
	repo := s.repo.WithTx(tx)
	var short []types.OrderItemSnapshot
	for _, item := range items {
		_, size, err := repo.FindSize(ctx, item.ProductID, item.SizeLabel)
		if err != nil {
			return nil, err
		}
		if size == nil {
			short = append(short, item)
			continue
		}
		ok, err := repo.DecrementStock(ctx, size.ID, item.Quantity)
		if err != nil {
			return nil, err
		}
		if !ok {
			short = append(short, item)
		}
	}
	return short, nil
}

// EffectivePrice applies the deal window: inside the window (or when no
// window is set) the size sells at PricePaise, outside it at OldPricePaise.
func EffectivePrice(size models.ProductSize, now time.Time) int64 {
	if size.OldPricePaise == nil {
		return size.PricePaise
	}
	if size.DealStartsAt == nil && size.DealEndsAt == nil {
		return size.PricePaise
	}
	if size.DealStartsAt != nil && now.Before(*size.DealStartsAt) {
		return *size.OldPricePaise
	}
	if size.DealEndsAt != nil && now.After(*size.DealEndsAt) {
		return *size.OldPricePaise
	}
	return size.PricePaise
}
