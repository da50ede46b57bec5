package cache

import (
	"context"
	"sync"

	"adstudio-backend-go/internal/models"
)

// MemoryCache is a map-backed BalanceCache without expiry, for tests and local runs.
type MemoryCache struct {
	mu       sync.Mutex
	balances map[string]models.Balance
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{balances: make(map[string]models.Balance)}
}

func (m *MemoryCache) Get(_ context.Context, userID string) (models.Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.balances[userID]
	if !ok {
		return models.Balance{}, ErrMiss
	}
	return b, nil
}

func (m *MemoryCache) Set(_ context.Context, userID string, balance models.Balance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[userID] = balance
	return nil
}

func (m *MemoryCache) Invalidate(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.balances, userID)
	return nil
}

func (m *MemoryCache) Close() error { return nil }
