package claim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sftbazaar.io/pkg/marketerr"
	"sftbazaar.io/pkg/money"
)

func TestCreditAccumulates(t *testing.T) {
	s := New(NewMemRepository())
	ctx := context.Background()

	require.NoError(t, s.Credit(ctx, "alice", money.New(10)))
	require.NoError(t, s.Credit(ctx, "alice", money.New(5)))

	bal, err := s.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "15", bal.String())
}

func TestCreditZeroIsNoOp(t *testing.T) {
	s := New(NewMemRepository())
	ctx := context.Background()

	require.NoError(t, s.Credit(ctx, "alice", money.Zero()))
	bal, err := s.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, bal.IsZero())
}

func TestWithdrawZeroesBalance(t *testing.T) {
	s := New(NewMemRepository())
	ctx := context.Background()
	require.NoError(t, s.Credit(ctx, "alice", money.New(20)))

	amt, err := s.Withdraw(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "20", amt.String())

	bal, err := s.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, bal.IsZero())
}

func TestWithdrawNothingFails(t *testing.T) {
	s := New(NewMemRepository())
	_, err := s.Withdraw(context.Background(), "alice")
	require.Error(t, err)
	assert.ErrorIs(t, err, marketerr.ErrNotFound)
}

func TestWithdrawTwiceFailsSecondTime(t *testing.T) {
	s := New(NewMemRepository())
	ctx := context.Background()
	require.NoError(t, s.Credit(ctx, "alice", money.New(1)))

	_, err := s.Withdraw(ctx, "alice")
	require.NoError(t, err)

	_, err = s.Withdraw(ctx, "alice")
	require.Error(t, err)
	assert.ErrorIs(t, err, marketerr.ErrNotFound)
}
