package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-checkout/internal/catalog"
	"github.com/angelmondragon/storefront-checkout/internal/pricing"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
)

// AddItemInput is a request to put units of a product size in the cart.
type AddItemInput struct {
	ProductID uuid.UUID
	Size      string
	Quantity  int
}

// View is the cart as returned to clients.
type View struct {
	Lines         []LineView `json:"lines"`
	ItemCount     int        `json:"item_count"`
	SubtotalPaise int64      `json:"subtotal_paise"`
}

// LineView is one line of a View.
type LineView struct {
	Line
	LineTotalPaise int64 `json:"line_total_paise"`
}

// Service is the session cart facade used by the API.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*View, error)
	Load(ctx context.Context, userID uuid.UUID) (*Cart, error)
	AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (*View, error)
	SetQuantity(ctx context.Context, userID, productID uuid.UUID, size string, qty int) (*View, error)
	RemoveItem(ctx context.Context, userID, productID uuid.UUID, size string) (*View, error)
	Clear(ctx context.Context, userID uuid.UUID) error
	Quote(ctx context.Context, userID uuid.UUID, couponCode string) (*pricing.Quote, error)
}

type quoter interface {
	Quote(ctx context.Context, subtotalPaise int64, couponCode string) (*pricing.Quote, error)
}

type service struct {
	store   Store
	catalog catalog.Service
	pricing quoter
}

// NewService builds the cart service.
func NewService(store Store, catalogSvc catalog.Service, pricingEngine quoter) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if catalogSvc == nil {
		return nil, fmt.Errorf("catalog service required")
	}
	if pricingEngine == nil {
		return nil, fmt.Errorf("pricing engine required")
	}
	return &service{store: store, catalog: catalogSvc, pricing: pricingEngine}, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*View, error) {
	c, err := s.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return NewView(c), nil
}

func (s *service) Load(ctx context.Context, userID uuid.UUID) (*Cart, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	c, err := s.store.Load(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return c, nil
}

func (s *service) AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (*View, error) {
	c, err := s.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	item, err := s.catalog.Lookup(ctx, input.ProductID, input.Size)
	if err != nil {
		return nil, err
	}
	line := Line{
		ProductID:      item.ProductID,
		SizeLabel:      item.SizeLabel,
		Title:          item.Title,
		Image:          item.Image,
		Quantity:       input.Quantity,
		UnitPricePaise: item.UnitPricePaise,
	}
	if err := c.AddItem(line, item.Stock); err != nil {
		return nil, err
	}
	return s.save(ctx, c)
}

func (s *service) SetQuantity(ctx context.Context, userID, productID uuid.UUID, size string, qty int) (*View, error) {
	c, err := s.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, ok := c.Find(productID, size); !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
	}
	item, err := s.catalog.Lookup(ctx, productID, size)
	if err != nil {
		return nil, err
	}
	if err := c.SetQuantity(productID, size, qty, item.Stock); err != nil {
		return nil, err
	}
	return s.save(ctx, c)
}

func (s *service) RemoveItem(ctx context.Context, userID, productID uuid.UUID, size string) (*View, error) {
	c, err := s.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !c.RemoveItem(productID, size) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
	}
	return s.save(ctx, c)
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	if err := s.store.Delete(ctx, userID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

func (s *service) Quote(ctx context.Context, userID uuid.UUID, couponCode string) (*pricing.Quote, error) {
	c, err := s.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.pricing.Quote(ctx, c.Subtotal(), couponCode)
}

func (s *service) save(ctx context.Context, c *Cart) (*View, error) {
	if err := s.store.Save(ctx, c); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart")
	}
	return NewView(c), nil
}

// NewView renders c for clients.
func NewView(c *Cart) *View {
	view := &View{
		Lines:         make([]LineView, 0, len(c.Lines)),
		ItemCount:     c.ItemCount(),
		SubtotalPaise: c.Subtotal(),
	}
	for _, line := range c.Lines {
		view.Lines = append(view.Lines, LineView{Line: line, LineTotalPaise: line.TotalPaise()})
	}
	return view
}
