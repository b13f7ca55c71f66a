package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-checkout/pkg/redis"
)

// Store persists session carts.
type Store interface {
	Load(ctx context.Context, userID uuid.UUID) (*Cart, error)
	Save(ctx context.Context, cart *Cart) error
	Delete(ctx context.Context, userID uuid.UUID) error
}

type kv interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CartKey(userID string) string
}

type redisStore struct {
	client kv
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisStore keeps carts as JSON under a per-user key; the TTL is
// refreshed on every save.
func NewRedisStore(client kv, ttl time.Duration) (Store, error) {
	if client == nil {
		return nil, errors.New("redis client required for cart store")
	}
	return &redisStore{client: client, ttl: ttl, now: time.Now}, nil
}

func (s *redisStore) Load(ctx context.Context, userID uuid.UUID) (*Cart, error) {
	raw, err := s.client.Get(ctx, s.client.CartKey(userID.String()))
	if err != nil {
		if redis.IsNil(err) {
			return New(userID), nil
		}
		return nil, fmt.Errorf("load cart: %w", err)
	}
	var c Cart
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	c.UserID = userID
	if c.Lines == nil {
		c.Lines = []Line{}
	}
	return &c, nil
}

func (s *redisStore) Save(ctx context.Context, c *Cart) error {
	if c == nil || c.UserID == uuid.Nil {
		return errors.New("cart with user id required")
	}
	c.UpdatedAt = s.now().UTC()
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := s.client.Set(ctx, s.client.CartKey(c.UserID.String()), string(payload), s.ttl); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

func (s *redisStore) Delete(ctx context.Context, userID uuid.UUID) error {
	return s.client.Del(ctx, s.client.CartKey(userID.String()))
}
