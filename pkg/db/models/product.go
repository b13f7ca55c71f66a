package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product is a sellable catalog listing. Prices and stock live on its sizes.
type Product struct {
	ID        uuid.UUID     `gorm:"column:id;type:uuid;primaryKey"`
	Title     string        `gorm:"column:title;not null"`
	Image     string        `gorm:"column:image;not null;default:''"`
	IsActive  bool          `gorm:"column:is_active;not null;default:true"`
	Sizes     []ProductSize `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time     `gorm:"column:updated_at;autoUpdateTime"`
}

// ProductSize is one purchasable variant of a product.
type ProductSize struct {
	ID            uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	ProductID     uuid.UUID  `gorm:"column:product_id;type:uuid;not null"`
	Label         string     `gorm:"column:label;not null"`
	PricePaise    int64      `gorm:"column:price_paise;not null"`
	OldPricePaise *int64     `gorm:"column:old_price_paise"`
	Stock         int        `gorm:"column:stock;not null;default:0"`
	DealStartsAt  *time.Time `gorm:"column:deal_starts_at"`
	DealEndsAt    *time.Time `gorm:"column:deal_ends_at"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (s *ProductSize) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
