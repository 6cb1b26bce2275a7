// Package claim implements the claimable-balance store required by §7/§9:
// a (recipient -> amount) accrual for payouts whose direct transfer
// failed, withdrawable later via Withdraw. Not present in the teacher
// repo's fund package directly, but modeled on its balance-accrual
// pattern (fund.BalanceRepo.AddAvailable / Manager.Deposit): an additive
// credit keyed by recipient, guarded by a single mutex since claims are
// not scoped to any one position.
package claim

import (
	"context"
	"fmt"
	"sync"

	"sftbazaar.io/pkg/marketerr"
	"sftbazaar.io/pkg/money"
)

// Repository persists claimable balances. A GORM-backed implementation
// lives in pkg/store; MemRepository below backs tests.
type Repository interface {
	Get(ctx context.Context, recipient string) (money.Amount, error)
	Set(ctx context.Context, recipient string, amount money.Amount) error
}

// Store is the claimable-balance engine component.
type Store struct {
	mu   sync.Mutex
	repo Repository
}

// New creates a Store backed by repo.
func New(repo Repository) *Store {
	return &Store{repo: repo}
}

// Credit adds amount to recipient's claimable balance. Called by the
// Settlement Pipeline whenever a direct payout fails; never returns an
// error for a non-fatal accounting operation under normal repo behavior.
func (s *Store) Credit(ctx context.Context, recipient string, amount money.Amount) error {
	if amount.IsZero() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.repo.Get(ctx, recipient)
	if err != nil {
		return fmt.Errorf("claim: get %s: %w", recipient, err)
	}
	if err := s.repo.Set(ctx, recipient, money.Add(cur, amount)); err != nil {
		return fmt.Errorf("claim: set %s: %w", recipient, err)
	}
	return nil
}

// Balance returns recipient's current claimable balance.
func (s *Store) Balance(ctx context.Context, recipient string) (money.Amount, error) {
	return s.repo.Get(ctx, recipient)
}

// Withdraw zeroes recipient's claimable balance and returns the amount
// that was claimed, failing NotFound if there is nothing to claim. The
// caller (an admin surface or the recipient's own request path) is
// responsible for actually transferring the returned amount; Withdraw
// only debits the ledger.
func (s *Store) Withdraw(ctx context.Context, recipient string) (money.Amount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.repo.Get(ctx, recipient)
	if err != nil {
		return money.Zero(), fmt.Errorf("claim: get %s: %w", recipient, err)
	}
	if cur.IsZero() {
		return money.Zero(), fmt.Errorf("claim: %s: %w", recipient, marketerr.ErrNotFound)
	}
	if err := s.repo.Set(ctx, recipient, money.Zero()); err != nil {
		return money.Zero(), fmt.Errorf("claim: reset %s: %w", recipient, err)
	}
	return cur, nil
}
