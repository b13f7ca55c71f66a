// Package cart holds the per-user session cart and the operations that
// mutate it.
package cart

import (
	"strings"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/types"
)

const reasonOutOfStock = "out_of_stock"

// Line is one (product, size) entry in a cart.
type Line struct {
	ProductID      uuid.UUID `json:"product_id"`
	SizeLabel      string    `json:"size_label"`
	Title          string    `json:"title"`
	Image          string    `json:"image,omitempty"`
	Quantity       int       `json:"quantity"`
	UnitPricePaise int64     `json:"unit_price_paise"`
}

// TotalPaise is quantity times unit price.
func (l Line) TotalPaise() int64 {
	return int64(l.Quantity) * l.UnitPricePaise
}

func (l Line) matches(productID uuid.UUID, size string) bool {
	return l.ProductID == productID && strings.EqualFold(l.SizeLabel, size)
}

// Cart is a user's session cart. It is owned by one session and is not
// safe for concurrent mutation.
type Cart struct {
	UserID    uuid.UUID `json:"user_id"`
	Lines     []Line    `json:"lines"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New returns an empty cart for userID.
func New(userID uuid.UUID) *Cart {
	return &Cart{UserID: userID, Lines: []Line{}}
}

// OutOfStock reports a request for more units than are available.
func OutOfStock(available int) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeRejected, "requested quantity exceeds available stock").
		WithDetails(map[string]any{"reason": reasonOutOfStock, "available": available})
}

// IsOutOfStock reports whether err came from OutOfStock.
func IsOutOfStock(err error) bool {
	return pkgerrors.Reason(err) == reasonOutOfStock
}

// AddItem adds line to the cart, merging with an existing (product, size)
// entry. available is the current stock for that size. On error the cart is
// unchanged.
func (c *Cart) AddItem(line Line, available int) error {
	if line.Quantity < 1 {
		return pkgerrors.Field("quantity", "quantity must be at least 1")
	}
	if line.UnitPricePaise < 0 {
		return pkgerrors.Field("unit_price", "unit price must not be negative")
	}

	idx := c.indexOf(line.ProductID, line.SizeLabel)
	wanted := line.Quantity
	if idx >= 0 {
		wanted += c.Lines[idx].Quantity
	}
	if wanted > available {
		return OutOfStock(available)
	}

	if idx >= 0 {
		existing := &c.Lines[idx]
		existing.Quantity = wanted
		existing.UnitPricePaise = line.UnitPricePaise
		if line.Title != "" {
			existing.Title = line.Title
		}
		if line.Image != "" {
			existing.Image = line.Image
		}
		return nil
	}
	c.Lines = append(c.Lines, line)
	return nil
}

// SetQuantity replaces the quantity of an existing line.
func (c *Cart) SetQuantity(productID uuid.UUID, size string, qty, available int) error {
	if qty < 1 {
		return pkgerrors.Field("quantity", "quantity must be at least 1")
	}
	idx := c.indexOf(productID, size)
	if idx < 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
	}
	if qty > available {
		return OutOfStock(available)
	}
	c.Lines[idx].Quantity = qty
	return nil
}

// RemoveItem drops a line and reports whether it existed.
func (c *Cart) RemoveItem(productID uuid.UUID, size string) bool {
	idx := c.indexOf(productID, size)
	if idx < 0 {
		return false
	}
	c.Lines = append(c.Lines[:idx], c.Lines[idx+1:]...)
	return true
}

// Find returns the line for (productID, size).
func (c *Cart) Find(productID uuid.UUID, size string) (Line, bool) {
	idx := c.indexOf(productID, size)
	if idx < 0 {
		return Line{}, false
	}
	return c.Lines[idx], true
}

// Subtotal is recomputed from the lines on every call.
func (c *Cart) Subtotal() int64 {
	var sum int64
	for _, line := range c.Lines {
		sum += line.TotalPaise()
	}
	return sum
}

// ItemCount is the total number of units in the cart.
func (c *Cart) ItemCount() int {
	count := 0
	for _, line := range c.Lines {
		count += line.Quantity
	}
	return count
}

func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

func (c *Cart) Clear() {
	c.Lines = []Line{}
}

// Snapshot copies the lines by value for an order.
func (c *Cart) Snapshot() types.OrderItems {
	items := make(types.OrderItems, 0, len(c.Lines))
	for _, line := range c.Lines {
		items = append(items, types.OrderItemSnapshot{
			ProductID:      line.ProductID,
			Title:          line.Title,
			SizeLabel:      line.SizeLabel,
			Quantity:       line.Quantity,
			UnitPricePaise: line.UnitPricePaise,
			LineTotalPaise: line.TotalPaise(),
			Image:          line.Image,
		})
	}
	return items
}

func (c *Cart) indexOf(productID uuid.UUID, size string) int {
	size = strings.TrimSpace(size)
	for i, line := range c.Lines {
		if line.matches(productID, size) {
			return i
		}
	}
	return -1
}
