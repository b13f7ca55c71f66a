package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-checkout/pkg/types"
)

// Address is an entry in a user's address book.
type Address struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID        uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	RecipientName string    `gorm:"column:recipient_name;not null"`
	Phone         string    `gorm:"column:phone;not null"`
	StreetLine1   string    `gorm:"column:street_line1;not null"`
	StreetLine2   *string   `gorm:"column:street_line2"`
	City          string    `gorm:"column:city;not null"`
	State         string    `gorm:"column:state;not null"`
	PostalCode    string    `gorm:"column:postal_code;not null"`
	IsDefault     bool      `gorm:"column:is_default;not null;default:false"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (a *Address) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// Snapshot copies the address by value for embedding in an order.
func (a Address) Snapshot() types.AddressSnapshot {
	snap := types.AddressSnapshot{
		RecipientName: a.RecipientName,
		Phone:         a.Phone,
		StreetLine1:   a.StreetLine1,
		City:          a.City,
		State:         a.State,
		PostalCode:    a.PostalCode,
	}
	if a.StreetLine2 != nil {
		snap.StreetLine2 = *a.StreetLine2
	}
	return snap
}
