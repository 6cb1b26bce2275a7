// Package ledgertest provides an in-memory ledger.Gateway fake for engine
// tests, so pkg/market and pkg/settlement tests don't require a real SFT
// ledger, MySQL, or network access — the teacher's convention of testing
// its engines against in-memory fakes rather than live dependencies
// wherever the dependency is an external collaborator.
package ledgertest

import (
	"context"
	"fmt"
	"sync"

	"sftbazaar.io/pkg/ledger"
	"sftbazaar.io/pkg/marketerr"
	"sftbazaar.io/pkg/money"
)

// Royalty configures a fake royalty policy for one token.
type Royalty struct {
	Receiver  string
	BPOfGross int64 // basis points of 10000
}

// Fake is an in-memory ledger.Gateway. All balances start at zero; call
// SetBalance to seed an owner's holdings before exercising an engine.
type Fake struct {
	mu         sync.Mutex
	balances   map[string]map[ledger.TokenID]int64 // owner -> tok -> units
	approvals  map[string]map[ledger.TokenID]bool
	royalties  map[ledger.TokenID]Royalty
	nativePaid map[string]money.Amount // recipient -> cumulative paid, for assertions
	failPay    map[string]bool         // recipients whose PayNative always fails
}

// New creates an empty fake ledger.
func New() *Fake {
	return &Fake{
		balances:   make(map[string]map[ledger.TokenID]int64),
		approvals:  make(map[string]map[ledger.TokenID]bool),
		royalties:  make(map[ledger.TokenID]Royalty),
		nativePaid: make(map[string]money.Amount),
		failPay:    make(map[string]bool),
	}
}

// SetBalance seeds owner's balance of tok.
func (f *Fake) SetBalance(owner string, tok ledger.TokenID, units int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balances[owner] == nil {
		f.balances[owner] = make(map[ledger.TokenID]int64)
	}
	f.balances[owner][tok] = units
}

// SetRoyalty configures a royalty policy for tok. An empty Receiver disables
// royalty support for the token entirely.
func (f *Fake) SetRoyalty(tok ledger.TokenID, r Royalty) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.royalties[tok] = r
}

// FailPaymentsTo makes PayNative fail for recipient, to exercise the
// settlement pipeline's failure-tolerant claimable-balance path.
func (f *Fake) FailPaymentsTo(recipient string, fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failPay[recipient] = fail
}

// PaidTo returns the cumulative amount successfully paid to recipient via
// PayNative.
func (f *Fake) PaidTo(recipient string) money.Amount {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nativePaid[recipient]
}

func (f *Fake) BalanceOf(_ context.Context, owner string, tok ledger.TokenID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[owner][tok], nil
}

func (f *Fake) ApproveOperator(_ context.Context, owner string, tok ledger.TokenID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.approvals[owner] == nil {
		f.approvals[owner] = make(map[ledger.TokenID]bool)
	}
	f.approvals[owner][tok] = true
	return nil
}

func (f *Fake) TransferFrom(_ context.Context, from, to string, tok ledger.TokenID, units int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if units <= 0 {
		return fmt.Errorf("ledgertest: %w: non-positive transfer", marketerr.ErrBadParameter)
	}
	if !f.approvals[from][tok] && from != to {
		return fmt.Errorf("ledgertest: operator not approved for %s", from)
	}
	have := f.balances[from][tok]
	if have < units {
		return fmt.Errorf("ledgertest: %w: have %d want %d", marketerr.ErrInsufficientBalance, have, units)
	}
	f.balances[from][tok] = have - units
	if f.balances[to] == nil {
		f.balances[to] = make(map[ledger.TokenID]int64)
	}
	f.balances[to][tok] += units
	return nil
}

func (f *Fake) SupportsRoyalty(_ context.Context, tok ledger.TokenID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.royalties[tok]
	return ok && r.Receiver != "", nil
}

func (f *Fake) RoyaltyInfo(_ context.Context, tok ledger.TokenID, gross money.Amount) (string, money.Amount, error) {
	f.mu.Lock()
	r, ok := f.royalties[tok]
	f.mu.Unlock()
	if !ok || r.Receiver == "" {
		return "", money.Zero(), nil
	}
	return r.Receiver, money.MulDivFloor(gross, r.BPOfGross, 10000), nil
}

func (f *Fake) PayNative(_ context.Context, recipient string, amount money.Amount) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPay[recipient] {
		return fmt.Errorf("ledgertest: simulated payout failure to %s", recipient)
	}
	f.nativePaid[recipient] = money.Add(f.nativePaid[recipient], amount)
	return nil
}

var _ ledger.Gateway = (*Fake)(nil)
