package position

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"sftbazaar.io/pkg/marketerr"
	"sftbazaar.io/pkg/money"
)

// Repository persists Position and sidecar state. A GORM-backed
// implementation lives in pkg/store; MemRepository below backs tests and
// no-database deployments.
type Repository interface {
	Save(ctx context.Context, p *Position) error
	Delete(ctx context.Context, positionID int64) error
	Get(ctx context.Context, positionID int64) (*Position, error)
	ListByState(ctx context.Context, state State) ([]*Position, error)
	ListByOwner(ctx context.Context, owner string) ([]*Position, error)

	SaveAuction(ctx context.Context, positionID int64, d *AuctionData) error
	SaveRaffle(ctx context.Context, positionID int64, d *RaffleData) error
	SaveLoan(ctx context.Context, positionID int64, d *LoanData) error
	GetAuction(ctx context.Context, positionID int64) (*AuctionData, error)
	GetRaffle(ctx context.Context, positionID int64) (*RaffleData, error)
	GetLoan(ctx context.Context, positionID int64) (*LoanData, error)
	ClearSidecar(ctx context.Context, positionID int64) error
}

// ItemCounter is the narrow slice of the Item Registry the Position Store
// needs: bumping an item's PositionCount as positions are created/deleted.
type ItemCounter interface {
	IncrementPositionCount(ctx context.Context, itemID int64, delta int64) error
}

// Store is the Position Store engine component. It is the authoritative,
// in-process view of every Position (sidecar data is read from and written
// to repo directly, with no in-process copy); repo is written
// through on every mutation so the in-memory view and persisted state never
// diverge within one operation.
type Store struct {
	repo    Repository
	counter ItemCounter
	nextID  func() int64

	mu    sync.RWMutex
	byID  map[int64]*Position
	avail map[availKey]int64 // (itemID, owner) -> positionID, Available only

	lockMu sync.Mutex
	locks  map[int64]*sync.Mutex
}

type availKey struct {
	itemID int64
	owner  string
}

// New creates a Store backed by repo, using counter to maintain per-item
// position counts, and nextID to mint position ids.
func New(repo Repository, counter ItemCounter, nextID func() int64) *Store {
	return &Store{
		repo:    repo,
		counter: counter,
		nextID:  nextID,
		byID:    make(map[int64]*Position),
		avail:   make(map[availKey]int64),
		locks:   make(map[int64]*sync.Mutex),
	}
}

// WithLock serializes every caller on the same positionID: the Mode
// Engines wrap their entire operation body in this so that state mutation
// (removing units from inventory) always completes before any outbound
// transfer is attempted, and so a hostile recipient re-entering the engine
// mid-transfer blocks on the same lock rather than double-spending (§5).
// The mutex is not reentrant: a second WithLock call for the same
// positionID from within fn would deadlock, which is the conservative
// failure mode the spec requires rather than a silent double-execution.
func (s *Store) WithLock(positionID int64, fn func() error) error {
	s.lockMu.Lock()
	l, ok := s.locks[positionID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[positionID] = l
	}
	s.lockMu.Unlock()

	l.Lock()
	defer l.Unlock()
	return fn()
}

func (s *Store) dropLock(positionID int64) {
	s.lockMu.Lock()
	delete(s.locks, positionID)
	s.lockMu.Unlock()
}

// Create inserts a new Position with the given fields, bumps the item's
// position count, and persists it. Returns the minted positionId.
func (s *Store) Create(ctx context.Context, itemID int64, owner string, amount int64, price money.Amount, feeSnapshotBP int64, state State) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("position: create: %w", marketerr.ErrBadParameter)
	}

	p := &Position{
		PositionID:        s.nextID(),
		ItemID:            itemID,
		Owner:             owner,
		Amount:            amount,
		Price:             price,
		MarketFeeSnapshot: feeSnapshotBP,
		State:             state,
	}

	if err := s.repo.Save(ctx, p); err != nil {
		return 0, fmt.Errorf("position: save: %w", err)
	}
	if err := s.counter.IncrementPositionCount(ctx, itemID, 1); err != nil {
		return 0, fmt.Errorf("position: increment count: %w", err)
	}

	s.mu.Lock()
	s.byID[p.PositionID] = p
	if state == Available {
		s.avail[availKey{itemID, owner}] = p.PositionID
	}
	s.mu.Unlock()

	return p.PositionID, nil
}

// Get returns a copy of the position, failing NotFound if absent.
func (s *Store) Get(ctx context.Context, positionID int64) (*Position, error) {
	s.mu.RLock()
	p, ok := s.byID[positionID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("position: %d: %w", positionID, marketerr.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

// RequireState fetches the position and checks it is in want state,
// returning WrongState otherwise. Every Mode Engine entry point calls this
// first.
func (s *Store) RequireState(ctx context.Context, positionID int64, want State) (*Position, error) {
	p, err := s.Get(ctx, positionID)
	if err != nil {
		return nil, err
	}
	if p.State != want {
		return nil, fmt.Errorf("position: %d in state %s, want %s: %w", positionID, p.State, want, marketerr.ErrWrongState)
	}
	return p, nil
}

// Save persists an in-place mutation made by a Mode Engine to an existing
// position's fields, such as its amount (used when the caller has already fetched
// and locked the position and wants to write back a modified copy).
func (s *Store) Save(ctx context.Context, p *Position) error {
	if err := s.repo.Save(ctx, p); err != nil {
		return fmt.Errorf("position: save: %w", err)
	}
	s.mu.Lock()
	cp := *p
	s.byID[p.PositionID] = &cp
	s.mu.Unlock()
	return nil
}

// Decrease subtracts units from the position's amount. If the remaining
// amount is zero, the position and its sidecar data are deleted and the
// item's position count is decremented. Returns the position as it stood
// immediately before the decrease (callers typically need owner/itemId
// after the call).
func (s *Store) Decrease(ctx context.Context, positionID int64, units int64) (*Position, error) {
	p, err := s.Get(ctx, positionID)
	if err != nil {
		return nil, err
	}
	if units <= 0 || units > p.Amount {
		return nil, fmt.Errorf("position: decrease %d by %d: %w", positionID, units, marketerr.ErrInsufficientBalance)
	}

	remaining := p.Amount - units
	if remaining == 0 {
		return p, s.delete(ctx, p)
	}

	before := *p
	p.Amount = remaining
	if err := s.Save(ctx, p); err != nil {
		return nil, err
	}
	return &before, nil
}

func (s *Store) delete(ctx context.Context, p *Position) error {
	if err := s.repo.Delete(ctx, p.PositionID); err != nil {
		return fmt.Errorf("position: delete: %w", err)
	}
	if err := s.repo.ClearSidecar(ctx, p.PositionID); err != nil {
		return fmt.Errorf("position: clear sidecar: %w", err)
	}
	if err := s.counter.IncrementPositionCount(ctx, p.ItemID, -1); err != nil {
		return fmt.Errorf("position: decrement count: %w", err)
	}

	s.mu.Lock()
	delete(s.byID, p.PositionID)
	if p.State == Available && s.avail[availKey{p.ItemID, p.Owner}] == p.PositionID {
		delete(s.avail, availKey{p.ItemID, p.Owner})
	}
	s.mu.Unlock()

	s.dropLock(p.PositionID)
	return nil
}

// Delete removes positionID outright (used when a Mode Engine has already
// fetched the position and just needs it gone, e.g. unlist/liquidate).
func (s *Store) Delete(ctx context.Context, positionID int64) error {
	p, err := s.Get(ctx, positionID)
	if err != nil {
		return err
	}
	return s.delete(ctx, p)
}

// MergeOrCreateAvailable re-syncs owner's Available position for itemID to
// ledgerBalance units: if one exists, its amount is overwritten (the
// ledger is authoritative for units held outside the engine); otherwise a
// new Available position is created. Invariant 3 (at most one Available
// position per (itemId, owner)) is enforced by construction.
func (s *Store) MergeOrCreateAvailable(ctx context.Context, itemID int64, owner string, ledgerBalance int64, feeSnapshotBP int64) (int64, error) {
	s.mu.RLock()
	existingID, ok := s.avail[availKey{itemID, owner}]
	s.mu.RUnlock()

	if ok {
		p, err := s.Get(ctx, existingID)
		if err != nil {
			return 0, err
		}
		if ledgerBalance <= 0 {
			return 0, s.delete(ctx, p)
		}
		p.Amount = ledgerBalance
		if err := s.Save(ctx, p); err != nil {
			return 0, err
		}
		return p.PositionID, nil
	}

	if ledgerBalance <= 0 {
		return 0, nil
	}
	return s.Create(ctx, itemID, owner, ledgerBalance, money.Zero(), feeSnapshotBP, Available)
}

// ListByState returns positions in state, ascending id.
func (s *Store) ListByState(ctx context.Context, state State) ([]*Position, error) {
	out, err := s.repo.ListByState(ctx, state)
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PositionID < out[j].PositionID })
	return out, nil
}

// ListByOwner returns positions held by owner, ascending id.
func (s *Store) ListByOwner(ctx context.Context, owner string) ([]*Position, error) {
	out, err := s.repo.ListByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PositionID < out[j].PositionID })
	return out, nil
}

// --- Sidecar accessors ---

func (s *Store) PutAuction(ctx context.Context, positionID int64, d *AuctionData) error {
	return s.repo.SaveAuction(ctx, positionID, d)
}

func (s *Store) GetAuctionData(ctx context.Context, positionID int64) (*AuctionData, error) {
	d, err := s.repo.GetAuction(ctx, positionID)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("position: auction data %d: %w", positionID, marketerr.ErrNotFound)
	}
	return d, nil
}

func (s *Store) PutRaffle(ctx context.Context, positionID int64, d *RaffleData) error {
	return s.repo.SaveRaffle(ctx, positionID, d)
}

func (s *Store) GetRaffleData(ctx context.Context, positionID int64) (*RaffleData, error) {
	d, err := s.repo.GetRaffle(ctx, positionID)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("position: raffle data %d: %w", positionID, marketerr.ErrNotFound)
	}
	return d, nil
}

func (s *Store) PutLoan(ctx context.Context, positionID int64, d *LoanData) error {
	return s.repo.SaveLoan(ctx, positionID, d)
}

func (s *Store) GetLoanData(ctx context.Context, positionID int64) (*LoanData, error) {
	d, err := s.repo.GetLoan(ctx, positionID)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("position: loan data %d: %w", positionID, marketerr.ErrNotFound)
	}
	return d, nil
}
