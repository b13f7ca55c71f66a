package orders

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/pagination"
)

// Service reads order history and drives the admin status workflow.
type Service interface {
	List(ctx context.Context, userID uuid.UUID, params ListParams) (*List, error)
	Get(ctx context.Context, userID, orderID uuid.UUID) (*Detail, error)
	AdminList(ctx context.Context, params ListParams) (*List, error)
	AdvanceStatus(ctx context.Context, orderID uuid.UUID, target enums.OrderStatus) (*Detail, error)
}

type service struct {
	repo Repository
	logg *logger.Logger
}

// NewService builds the order read/admin service.
func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{repo: repo, logg: logg}, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, params ListParams) (*List, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	return s.list(ctx, &userID, params)
}

func (s *service) AdminList(ctx context.Context, params ListParams) (*List, error) {
	return s.list(ctx, nil, params)
}

func (s *service) list(ctx context.Context, userID *uuid.UUID, params ListParams) (*List, error) {
	query := listParams{
		UserID:        userID,
		Status:        params.Status,
		PaymentStatus: params.PaymentStatus,
		Limit:         params.Limit,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}

	out := &List{Orders: make([]Summary, 0, len(rows))}
	for _, row := range rows {
		out.Orders = append(out.Orders, newSummary(row))
	}
	if next != nil {
		out.NextCursor = pagination.EncodeCursor(*next)
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, userID, orderID uuid.UUID) (*Detail, error) {
	order, err := s.repo.FindForUser(ctx, orderID, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return NewDetail(order), nil
}

// AdvanceStatus moves a paid order one step along
// processing -> shipping -> delivered.
func (s *service) AdvanceStatus(ctx context.Context, orderID uuid.UUID, target enums.OrderStatus) (*Detail, error) {
	if !target.IsValid() {
		return nil, pkgerrors.Field("status", "unknown order status")
	}
	order, err := s.repo.Find(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if order.PaymentStatus != enums.PaymentStatusConfirmed {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order payment is not confirmed").
			WithDetails(map[string]any{"payment_status": order.PaymentStatus})
	}
	if !order.Status.CanAdvanceTo(target) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "status transition not allowed").
			WithDetails(map[string]any{"from": order.Status, "to": target})
	}

	updated, err := s.repo.AdvanceStatus(ctx, orderID, order.Status, target)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	if !updated {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order changed concurrently")
	}

	ctx = s.logg.WithFields(s.logg.WithOrderID(ctx, orderID.String()), map[string]any{
		"from": order.Status.String(),
		"to":   target.String(),
	})
	s.logg.Info(ctx, "order status advanced")

	order.Status = target
	return NewDetail(order), nil
}
