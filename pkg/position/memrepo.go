package position

import (
	"context"
	"sync"
)

// MemRepository is an in-memory Repository, used by tests and no-database
// deployments (the GORM-backed implementation lives in pkg/store).
type MemRepository struct {
	mu       sync.RWMutex
	byID     map[int64]*Position
	auctions map[int64]*AuctionData
	raffles  map[int64]*RaffleData
	loans    map[int64]*LoanData
}

// NewMemRepository creates an empty in-memory position repository.
func NewMemRepository() *MemRepository {
	return &MemRepository{
		byID:     make(map[int64]*Position),
		auctions: make(map[int64]*AuctionData),
		raffles:  make(map[int64]*RaffleData),
		loans:    make(map[int64]*LoanData),
	}
}

func (m *MemRepository) Save(_ context.Context, p *Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.byID[p.PositionID] = &cp
	return nil
}

func (m *MemRepository) Delete(_ context.Context, positionID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, positionID)
	return nil
}

func (m *MemRepository) Get(_ context.Context, positionID int64) (*Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.byID[positionID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *MemRepository) ListByState(_ context.Context, state State) ([]*Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Position
	for _, p := range m.byID {
		if p.State == state {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemRepository) ListByOwner(_ context.Context, owner string) ([]*Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Position
	for _, p := range m.byID {
		if p.Owner == owner {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemRepository) SaveAuction(_ context.Context, positionID int64, d *AuctionData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *d
	m.auctions[positionID] = &cp
	return nil
}

func (m *MemRepository) SaveRaffle(_ context.Context, positionID int64, d *RaffleData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *d
	cp.Entries = append([]RaffleEntry(nil), d.Entries...)
	m.raffles[positionID] = &cp
	return nil
}

func (m *MemRepository) SaveLoan(_ context.Context, positionID int64, d *LoanData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *d
	m.loans[positionID] = &cp
	return nil
}

func (m *MemRepository) GetAuction(_ context.Context, positionID int64) (*AuctionData, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.auctions[positionID]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (m *MemRepository) GetRaffle(_ context.Context, positionID int64) (*RaffleData, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.raffles[positionID]
	if !ok {
		return nil, nil
	}
	cp := *d
	cp.Entries = append([]RaffleEntry(nil), d.Entries...)
	return &cp, nil
}

func (m *MemRepository) GetLoan(_ context.Context, positionID int64) (*LoanData, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.loans[positionID]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (m *MemRepository) ClearSidecar(_ context.Context, positionID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.auctions, positionID)
	delete(m.raffles, positionID)
	delete(m.loans, positionID)
	return nil
}

var _ Repository = (*MemRepository)(nil)
