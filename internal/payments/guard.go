package payments

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type guardStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	PaymentGuardKey(paymentID string) string
}

// Guard remembers gateway payment ids that have already been processed so
// retried callbacks short-circuit before touching the database.
type Guard struct {
	store guardStore
	ttl   time.Duration
}

func NewGuard(store guardStore, ttl time.Duration) (*Guard, error) {
	if store == nil {
		return nil, errors.New("guard store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Guard{store: store, ttl: ttl}, nil
}

// CheckAndMark claims paymentID and reports whether it had been claimed before.
func (g *Guard) CheckAndMark(ctx context.Context, paymentID string) (bool, error) {
	if paymentID == "" {
		return false, errors.New("payment id is required")
	}
	set, err := g.store.SetNX(ctx, g.store.PaymentGuardKey(paymentID), "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set payment guard: %w", err)
	}
	return !set, nil
}

// Release drops the claim so a failed attempt can be retried.
func (g *Guard) Release(ctx context.Context, paymentID string) error {
	if paymentID == "" {
		return errors.New("payment id is required")
	}
	return g.store.Del(ctx, g.store.PaymentGuardKey(paymentID))
}
