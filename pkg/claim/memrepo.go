package claim

import (
	"context"
	"sync"

	"sftbazaar.io/pkg/money"
)

// MemRepository is an in-memory Repository, used by tests.
type MemRepository struct {
	mu       sync.RWMutex
	balances map[string]money.Amount
}

// NewMemRepository creates an empty in-memory claim repository.
func NewMemRepository() *MemRepository {
	return &MemRepository{balances: make(map[string]money.Amount)}
}

func (m *MemRepository) Get(_ context.Context, recipient string) (money.Amount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balances[recipient], nil
}

func (m *MemRepository) Set(_ context.Context, recipient string, amount money.Amount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[recipient] = amount
	return nil
}

var _ Repository = (*MemRepository)(nil)
