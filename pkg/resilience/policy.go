// Package resilience wraps calls to external services with a per attempt
// timeout, a single retry and a circuit breaker.
package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/sony/gobreaker"

	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
)

const (
	defaultTimeout   = 5 * time.Second
	defaultBackoff   = 200 * time.Millisecond
	defaultThreshold = 5
	defaultCooldown  = 30 * time.Second
)

// Config tunes a Policy. Zero values fall back to defaults.
type Config struct {
	Name      string
	Timeout   time.Duration
	Backoff   time.Duration
	Threshold int
	Cooldown  time.Duration
}

// Policy guards one external dependency.
type Policy struct {
	name    string
	timeout time.Duration
	backoff time.Duration
	breaker *gobreaker.CircuitBreaker
}

// NewPolicy builds a policy whose breaker opens after Threshold consecutive
// dependency failures and probes again after Cooldown.
func NewPolicy(cfg Config) *Policy {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = defaultThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = defaultCooldown
	}
	threshold := uint32(cfg.Threshold)
	return &Policy{
		name:    cfg.Name,
		timeout: cfg.Timeout,
		backoff: cfg.Backoff,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        cfg.Name,
			MaxRequests: 1,
			Timeout:     cfg.Cooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			// only dependency failures count against the breaker
			IsSuccessful: func(err error) bool {
				return err == nil || !pkgerrors.IsCode(err, pkgerrors.CodeDependency)
			},
		}),
	}
}

// Retryable marks err as worth one more attempt.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return retry.RetryableError(err)
}

// Open reports whether the breaker currently rejects calls.
func (p *Policy) Open() bool {
	return p != nil && p.breaker.State() == gobreaker.StateOpen
}

// Do runs fn under the policy. Each attempt gets its own timeout; an attempt
// that returns a Retryable error is repeated once.
func Do[T any](ctx context.Context, p *Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if p == nil {
		return fn(ctx)
	}

	out, err := p.breaker.Execute(func() (interface{}, error) {
		var result T
		backoff := retry.WithMaxRetries(1, retry.NewConstant(p.backoff))
		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			attemptCtx, cancel := context.WithTimeout(ctx, p.timeout)
			defer cancel()

			value, err := fn(attemptCtx)
			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
					return retry.RetryableError(pkgerrors.Wrap(pkgerrors.CodeDependency, err, p.name+" timed out"))
				}
				return err
			}
			result = value
			return nil
		})
		return result, err
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, p.name+" unavailable")
		}
		return zero, err
	}
	value, _ := out.(T)
	return value, nil
}
