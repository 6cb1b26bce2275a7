// Package registry implements the Item Registry (component B): the
// mapping from (nftContract, tokenId) to an engine-assigned itemId, plus
// each item's creator and append-only sale history.
package registry

import (
	"context"
	"fmt"
	"sync"

	"sftbazaar.io/pkg/ledger"
	"sftbazaar.io/pkg/marketerr"
	"sftbazaar.io/pkg/money"
)

// Sale is one append-only entry in an item's sale history.
type Sale struct {
	Seller string
	Buyer  string
	Price  money.Amount
	Amount int64
}

// Item is the engine's identity record for one (nftContract, tokenId)
// pair. Created once on first createItem, never destroyed.
type Item struct {
	ItemID        int64
	NFTContract   string
	TokenID       string
	Creator       string
	PositionCount int64
	Sales         []Sale
}

// Key returns the item's ledger.TokenID.
func (it *Item) Key() ledger.TokenID {
	return ledger.TokenID{NFTContract: it.NFTContract, TokenID: it.TokenID}
}

// Repository persists Item records. A GORM-backed implementation lives in
// pkg/store; tests use the in-memory implementation below.
type Repository interface {
	Insert(ctx context.Context, it *Item) error
	Get(ctx context.Context, itemID int64) (*Item, error)
	Find(ctx context.Context, nftContract, tokenID string) (*Item, error)
	Update(ctx context.Context, it *Item) error
	ListByCreator(ctx context.Context, creator string) ([]*Item, error)
}

// Registry is the Item Registry engine component. It owns id assignment
// and enforces "at most one Item per (nftContract, tokenId)".
type Registry struct {
	mu       sync.Mutex
	repo     Repository
	ledger   ledger.Gateway
	nextID   func() int64
	byKey    map[ledger.TokenID]int64 // fast duplicate-check cache
	cacheMtx sync.RWMutex
}

// New creates a Registry backed by repo, consuming gw for the
// no-balance-at-creation check, and minting ids via nextID.
func New(repo Repository, gw ledger.Gateway, nextID func() int64) *Registry {
	return &Registry{
		repo:   repo,
		ledger: gw,
		nextID: nextID,
		byKey:  make(map[ledger.TokenID]int64),
	}
}

// CreateItem registers a new item for caller, the first holder of tok.
// Fails AlreadyExists on duplicate registration, NoBalance if caller holds
// zero units.
func (r *Registry) CreateItem(ctx context.Context, caller string, tok ledger.TokenID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, err := r.lookup(ctx, tok); err != nil {
		return 0, err
	} else if existing != nil {
		return 0, fmt.Errorf("registry: item for %+v: %w", tok, marketerr.ErrAlreadyExists)
	}

	units, err := r.ledger.BalanceOf(ctx, caller, tok)
	if err != nil {
		return 0, fmt.Errorf("registry: balance check: %w", err)
	}
	if units <= 0 {
		return 0, fmt.Errorf("registry: caller holds no units of %+v: %w", tok, marketerr.ErrNoBalance)
	}

	it := &Item{
		ItemID:      r.nextID(),
		NFTContract: tok.NFTContract,
		TokenID:     tok.TokenID,
		Creator:     caller,
	}
	if err := r.repo.Insert(ctx, it); err != nil {
		return 0, fmt.Errorf("registry: insert: %w", err)
	}

	r.cacheMtx.Lock()
	r.byKey[tok] = it.ItemID
	r.cacheMtx.Unlock()

	return it.ItemID, nil
}

// FetchItem returns the item by id, failing NotFound if absent.
func (r *Registry) FetchItem(ctx context.Context, itemID int64) (*Item, error) {
	it, err := r.repo.Get(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("registry: get %d: %w", itemID, err)
	}
	if it == nil {
		return nil, fmt.Errorf("registry: item %d: %w", itemID, marketerr.ErrNotFound)
	}
	return it, nil
}

// ListByCreator returns items created by creator, ascending id.
func (r *Registry) ListByCreator(ctx context.Context, creator string) ([]*Item, error) {
	return r.repo.ListByCreator(ctx, creator)
}

// AppendSale records a completed trade against itemID's history and bumps
// nothing else — position-count bookkeeping belongs to the Position Store.
func (r *Registry) AppendSale(ctx context.Context, itemID int64, s Sale) error {
	it, err := r.FetchItem(ctx, itemID)
	if err != nil {
		return err
	}
	it.Sales = append(it.Sales, s)
	return r.repo.Update(ctx, it)
}

// IncrementPositionCount adjusts itemID's PositionCount by delta (positive
// on position creation, negative on deletion).
func (r *Registry) IncrementPositionCount(ctx context.Context, itemID int64, delta int64) error {
	it, err := r.FetchItem(ctx, itemID)
	if err != nil {
		return err
	}
	it.PositionCount += delta
	if it.PositionCount < 0 {
		it.PositionCount = 0
	}
	return r.repo.Update(ctx, it)
}

func (r *Registry) lookup(ctx context.Context, tok ledger.TokenID) (*Item, error) {
	r.cacheMtx.RLock()
	id, ok := r.byKey[tok]
	r.cacheMtx.RUnlock()
	if ok {
		return r.repo.Get(ctx, id)
	}

	it, err := r.repo.Find(ctx, tok.NFTContract, tok.TokenID)
	if err != nil {
		return nil, fmt.Errorf("registry: find %+v: %w", tok, err)
	}
	if it != nil {
		r.cacheMtx.Lock()
		r.byKey[tok] = it.ItemID
		r.cacheMtx.Unlock()
	}
	return it, nil
}
