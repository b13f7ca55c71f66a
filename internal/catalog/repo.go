package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
)

// Repository reads products and adjusts stock.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindSize(ctx context.Context, productID uuid.UUID, label string) (*models.Product, *models.ProductSize, error)
	DecrementStock(ctx context.Context, sizeID uuid.UUID, qty int) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a catalog repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// FindSize returns (nil, nil, nil) when the product or size does not exist.
// Labels match case-insensitively, as cart lines do.
func (r *repository) FindSize(ctx context.Context, productID uuid.UUID, label string) (*models.Product, *models.ProductSize, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, nil
		}
		return nil, nil, err
	}

	var size models.ProductSize
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND LOWER(label) = LOWER(?)", productID, strings.TrimSpace(label)).
		First(&size).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &product, nil, nil
		}
		return nil, nil, err
	}
	return &product, &size, nil
}

// DecrementStock takes qty units if available and reports whether it did.
func (r *repository) DecrementStock(ctx context.Context, sizeID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ProductSize{}).
		Where("id = ? AND stock >= ?", sizeID, qty).
		UpdateColumn("stock", gorm.Expr("stock - ?", qty))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
