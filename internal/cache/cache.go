// Package cache holds the read-through balance cache used by the credits endpoint.
// The export decision never reads from it.
package cache

import (
	"context"
	"errors"

	"adstudio-backend-go/internal/models"
)

// ErrMiss is returned by Get when no balance is cached for the user.
var ErrMiss = errors.New("cache miss")

// BalanceCache defines the interface for caching account balances.
type BalanceCache interface {
	Get(ctx context.Context, userID string) (models.Balance, error)
	Set(ctx context.Context, userID string, balance models.Balance) error
	Invalidate(ctx context.Context, userID string) error
	Close() error
}

// NoopCache never stores anything. Used when Redis is not configured.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string) (models.Balance, error) {
	return models.Balance{}, ErrMiss
}
func (NoopCache) Set(context.Context, string, models.Balance) error { return nil }
func (NoopCache) Invalidate(context.Context, string) error          { return nil }
func (NoopCache) Close() error                                      { return nil }
