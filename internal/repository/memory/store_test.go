package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/fairtix/internal/domain"
	"github.com/kirinyoku/fairtix/internal/repository"
)

const (
	alice = domain.Identity("0x00000000000000000000000000000000000000a1")
	bob   = domain.Identity("0x00000000000000000000000000000000000000b0")
)

func TestRunTx_RollbackOnError(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.RunTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		_, err := tx.Events().Create(ctx, &domain.Event{Name: "gig"})
		require.NoError(t, err)
		require.NoError(t, tx.Ledger().Collect(ctx, alice, decimal.NewFromInt(10)))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	err = s.RunTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		_, err := tx.Events().Get(ctx, 1)
		assert.ErrorIs(t, err, repository.ErrNotFound)

		bal, err := tx.Ledger().Balance(ctx, domain.Treasury)
		require.NoError(t, err)
		assert.True(t, bal.IsZero())
		return nil
	})
	require.NoError(t, err)
}

func TestRunTx_CommitsAndAssignsSequentialIDs(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	var ids []int64
	for range 3 {
		err := s.RunTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			id, err := tx.Events().Create(ctx, &domain.Event{Name: "gig"})
			ids = append(ids, id)
			return err
		})
		require.NoError(t, err)
	}
	assert.Equal(t, []int64{1, 2, 3}, ids)
}

func TestRunTx_RejectsReentrantCall(t *testing.T) {
	s := NewStore()

	err := s.RunTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		return s.RunTx(ctx, func(context.Context, repository.Tx) error { return nil })
	})
	assert.ErrorIs(t, err, repository.ErrReentrant)
}

func TestRunTx_LockTimeout(t *testing.T) {
	s := NewStore(WithLockTimeout(20 * time.Millisecond))

	err := s.RunTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		// A fresh context escapes the re-entrancy marker and must wait for the lock.
		return s.RunTx(context.Background(), func(context.Context, repository.Tx) error { return nil })
	})
	assert.ErrorIs(t, err, repository.ErrBusy)
}

func TestRegistry_TransferRequiresHolder(t *testing.T) {
	s := NewStore()
	id := uuid.New()

	err := s.RunTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		require.NoError(t, tx.Registry().Mint(ctx, id, alice))
		assert.ErrorIs(t, tx.Registry().Transfer(ctx, id, bob, alice), repository.ErrNotHolder)
		require.NoError(t, tx.Registry().Transfer(ctx, id, alice, bob))

		h, err := tx.Registry().HolderOf(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, bob, h)

		require.NoError(t, tx.Registry().Burn(ctx, id, bob))
		_, err = tx.Registry().HolderOf(ctx, id)
		assert.ErrorIs(t, err, repository.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestLedger_PayNeverOverdraws(t *testing.T) {
	var hooked []domain.Identity
	s := NewStore(WithPayHook(func(_ context.Context, to domain.Identity, _ decimal.Decimal) {
		hooked = append(hooked, to)
	}))

	err := s.RunTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		require.NoError(t, tx.Ledger().Collect(ctx, alice, decimal.NewFromInt(5)))
		assert.ErrorIs(t, tx.Ledger().Pay(ctx, bob, decimal.NewFromInt(6)), repository.ErrInsufficientFunds)
		require.NoError(t, tx.Ledger().Pay(ctx, bob, decimal.NewFromInt(5)))

		bal, err := tx.Ledger().Balance(ctx, bob)
		require.NoError(t, err)
		assert.True(t, bal.Equal(decimal.NewFromInt(5)))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []domain.Identity{bob}, hooked)
}

func TestLotteryRepo_DuplicateApplicationAndClaim(t *testing.T) {
	s := NewStore()
	now := time.Now()

	err := s.RunTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		id, err := tx.Lotteries().Create(ctx, &domain.Lottery{EventID: 1})
		require.NoError(t, err)

		require.NoError(t, tx.Lotteries().AddApplicant(ctx, id, alice, now))
		assert.ErrorIs(t, tx.Lotteries().AddApplicant(ctx, id, alice, now), repository.ErrConflict)

		require.NoError(t, tx.Lotteries().SetWinners(ctx, id, []domain.Identity{alice}))
		require.NoError(t, tx.Lotteries().MarkClaimed(ctx, id, alice, uuid.New()))
		assert.ErrorIs(t, tx.Lotteries().MarkClaimed(ctx, id, alice, uuid.New()), repository.ErrConflict)

		_, err = tx.Lotteries().Winner(ctx, id, bob)
		assert.ErrorIs(t, err, repository.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}
