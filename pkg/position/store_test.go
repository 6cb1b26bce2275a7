package position

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sftbazaar.io/pkg/marketerr"
	"sftbazaar.io/pkg/money"
)

type fakeCounter struct {
	deltas map[int64]int64
}

func newFakeCounter() *fakeCounter { return &fakeCounter{deltas: make(map[int64]int64)} }

func (f *fakeCounter) IncrementPositionCount(_ context.Context, itemID int64, delta int64) error {
	f.deltas[itemID] += delta
	return nil
}

func newTestStore() (*Store, *fakeCounter) {
	counter := newFakeCounter()
	nextID := int64(0)
	s := New(NewMemRepository(), counter, func() int64 {
		nextID++
		return nextID
	})
	return s, counter
}

func TestCreateAndGet(t *testing.T) {
	s, counter := newTestStore()
	ctx := context.Background()

	id, err := s.Create(ctx, 1, "alice", 10, money.New(100), 250, RegularSale)
	require.NoError(t, err)

	p, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(10), p.Amount)
	assert.Equal(t, RegularSale, p.State)
	assert.Equal(t, int64(1), counter.deltas[1])
}

func TestCreateRejectsNonPositiveAmount(t *testing.T) {
	s, _ := newTestStore()
	_, err := s.Create(context.Background(), 1, "alice", 0, money.Zero(), 0, RegularSale)
	require.Error(t, err)
	assert.ErrorIs(t, err, marketerr.ErrBadParameter)
}

func TestRequireStateMismatch(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()
	id, err := s.Create(ctx, 1, "alice", 10, money.New(100), 0, RegularSale)
	require.NoError(t, err)

	_, err = s.RequireState(ctx, id, Auction)
	require.Error(t, err)
	assert.ErrorIs(t, err, marketerr.ErrWrongState)
}

func TestDecreasePartialLeavesPositionAlive(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()
	id, err := s.Create(ctx, 1, "alice", 10, money.New(100), 0, RegularSale)
	require.NoError(t, err)

	before, err := s.Decrease(ctx, id, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(10), before.Amount) // returns pre-decrease snapshot

	after, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(6), after.Amount)
}

func TestDecreaseToZeroDeletesPosition(t *testing.T) {
	s, counter := newTestStore()
	ctx := context.Background()
	id, err := s.Create(ctx, 1, "alice", 10, money.New(100), 0, RegularSale)
	require.NoError(t, err)

	_, err = s.Decrease(ctx, id, 10)
	require.NoError(t, err)

	_, err = s.Get(ctx, id)
	require.Error(t, err)
	assert.ErrorIs(t, err, marketerr.ErrNotFound)
	assert.Equal(t, int64(0), counter.deltas[1])
}

func TestDecreaseRejectsMoreThanAvailable(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()
	id, err := s.Create(ctx, 1, "alice", 5, money.New(100), 0, RegularSale)
	require.NoError(t, err)

	_, err = s.Decrease(ctx, id, 6)
	require.Error(t, err)
	assert.ErrorIs(t, err, marketerr.ErrInsufficientBalance)
}

func TestMergeOrCreateAvailableCreatesWhenAbsent(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	id, err := s.MergeOrCreateAvailable(ctx, 1, "alice", 7, 250)
	require.NoError(t, err)
	require.NotZero(t, id)

	p, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(7), p.Amount)
	assert.Equal(t, Available, p.State)
}

func TestMergeOrCreateAvailableOverwritesExisting(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	id, err := s.MergeOrCreateAvailable(ctx, 1, "alice", 7, 250)
	require.NoError(t, err)

	id2, err := s.MergeOrCreateAvailable(ctx, 1, "alice", 3, 250)
	require.NoError(t, err)
	assert.Equal(t, id, id2, "the same Available position is reused")

	p, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(3), p.Amount)
}

func TestMergeOrCreateAvailableDeletesWhenBalanceDrainedToZero(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	id, err := s.MergeOrCreateAvailable(ctx, 1, "alice", 7, 250)
	require.NoError(t, err)

	_, err = s.MergeOrCreateAvailable(ctx, 1, "alice", 0, 250)
	require.NoError(t, err)

	_, err = s.Get(ctx, id)
	require.Error(t, err)
	assert.ErrorIs(t, err, marketerr.ErrNotFound)
}

func TestMergeOrCreateAvailableNoOpOnZeroWithNoExisting(t *testing.T) {
	s, _ := newTestStore()
	id, err := s.MergeOrCreateAvailable(context.Background(), 1, "alice", 0, 250)
	require.NoError(t, err)
	assert.Zero(t, id)
}

func TestWithLockSerializesCallers(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()
	id, err := s.Create(ctx, 1, "alice", 10, money.New(100), 0, RegularSale)
	require.NoError(t, err)

	const n = 20
	done := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		go func() {
			_ = s.WithLock(id, func() error {
				p, err := s.Get(ctx, id)
				if err != nil {
					return err
				}
				p.Amount++
				return s.Save(ctx, p)
			})
			done <- struct{}{}
		}()
	}
	for i := 0; i < n; i++ {
		<-done
	}

	final, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(10+n), final.Amount)
}

func TestListByStateAndOwnerAreSortedByID(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()
	id1, err := s.Create(ctx, 1, "alice", 1, money.New(1), 0, Auction)
	require.NoError(t, err)
	id2, err := s.Create(ctx, 2, "alice", 1, money.New(1), 0, Auction)
	require.NoError(t, err)

	byState, err := s.ListByState(ctx, Auction)
	require.NoError(t, err)
	require.Len(t, byState, 2)
	assert.Equal(t, id1, byState[0].PositionID)
	assert.Equal(t, id2, byState[1].PositionID)

	byOwner, err := s.ListByOwner(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, byOwner, 2)
}

func TestSidecarAccessorsRoundTrip(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()
	id, err := s.Create(ctx, 1, "alice", 1, money.Zero(), 0, Auction)
	require.NoError(t, err)

	require.NoError(t, s.PutAuction(ctx, id, &AuctionData{Deadline: 100, MinBid: money.New(5)}))
	d, err := s.GetAuctionData(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(100), d.Deadline)

	_, err = s.GetRaffleData(ctx, id)
	require.Error(t, err)
	assert.ErrorIs(t, err, marketerr.ErrNotFound)
}
