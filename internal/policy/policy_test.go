package policy_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/fairtix/internal/domain"
	"github.com/kirinyoku/fairtix/internal/policy"
	"github.com/kirinyoku/fairtix/internal/repository"
	"github.com/kirinyoku/fairtix/internal/repository/memory"
)

const (
	owner = domain.Identity("0x00000000000000000000000000000000000000aa")
	alice = domain.Identity("0x00000000000000000000000000000000000000a1")
	bob   = domain.Identity("0x00000000000000000000000000000000000000b0")
)

func seed(t *testing.T, fn func(ctx context.Context, tx repository.Tx) error) *memory.Store {
	t.Helper()

	s := memory.NewStore()
	require.NoError(t, s.RunTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		if err := tx.System().Update(ctx, &domain.SystemState{Owner: owner}); err != nil {
			return err
		}
		return fn(ctx, tx)
	}))
	return s
}

func run(t *testing.T, s *memory.Store, checks ...policy.Check) error {
	t.Helper()

	return s.RunTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		return policy.Run(ctx, tx, checks...)
	})
}

func TestRun_FirstFailureWins(t *testing.T) {
	s := seed(t, func(ctx context.Context, tx repository.Tx) error {
		return tx.System().Update(ctx, &domain.SystemState{Owner: owner, Paused: true})
	})

	err := run(t, s, policy.NotPaused(), policy.Participant(alice))
	require.ErrorIs(t, err, domain.ErrSystemPaused)

	err = run(t, s, policy.Participant(alice), policy.NotPaused())
	require.ErrorIs(t, err, domain.ErrNotVerified)
}

func TestParticipant(t *testing.T) {
	s := seed(t, func(ctx context.Context, tx repository.Tx) error {
		if err := tx.Users().Upsert(ctx, &domain.UserProfile{Identity: alice, IsVerified: true, Reputation: policy.DefaultReputation}); err != nil {
			return err
		}
		return tx.Users().Upsert(ctx, &domain.UserProfile{Identity: bob, IsVerified: true, Reputation: policy.MinReputation - 1})
	})

	require.NoError(t, run(t, s, policy.Participant(alice)))
	require.ErrorIs(t, run(t, s, policy.Participant(bob)), domain.ErrLowReputation)
	require.NoError(t, run(t, s, policy.Recipient(bob)))
	require.ErrorIs(t, run(t, s, policy.Participant(owner)), domain.ErrNotVerified)
}

func TestBannedIsAuthorizationError(t *testing.T) {
	s := seed(t, func(ctx context.Context, tx repository.Tx) error {
		return tx.Users().Upsert(ctx, &domain.UserProfile{Identity: alice, IsVerified: true, IsBanned: true, Reputation: 100})
	})

	err := run(t, s, policy.NotBanned(alice))
	require.ErrorIs(t, err, domain.ErrBanned)
	require.ErrorIs(t, err, domain.ErrAuthorization)
}

func TestAdminAndOrganizer(t *testing.T) {
	s := seed(t, func(ctx context.Context, tx repository.Tx) error {
		return tx.Users().Upsert(ctx, &domain.UserProfile{Identity: alice, IsOrganizer: true})
	})

	require.NoError(t, run(t, s, policy.Admin(owner)))
	require.ErrorIs(t, run(t, s, policy.Admin(alice)), domain.ErrNotAdmin)
	require.NoError(t, run(t, s, policy.Organizer(alice)))
	require.ErrorIs(t, run(t, s, policy.Organizer(bob)), domain.ErrNotOrganizer)
}

func TestRegionAllowed(t *testing.T) {
	s := seed(t, func(ctx context.Context, tx repository.Tx) error {
		return tx.Users().Upsert(ctx, &domain.UserProfile{Identity: alice, Region: "JP"})
	})

	open := &domain.Event{}
	restricted := &domain.Event{AllowedRegions: []string{"US", "JP"}}
	usOnly := &domain.Event{AllowedRegions: []string{"US"}}

	require.NoError(t, run(t, s, policy.RegionAllowed(open, bob)))
	require.NoError(t, run(t, s, policy.RegionAllowed(restricted, alice)))
	require.ErrorIs(t, run(t, s, policy.RegionAllowed(usOnly, alice)), domain.ErrRegionNotAllowed)
	require.ErrorIs(t, run(t, s, policy.RegionAllowed(restricted, bob)), domain.ErrRegionNotAllowed)
}

func TestPurchaseLimit(t *testing.T) {
	require.EqualValues(t, 2, policy.PurchaseLimit(&domain.UserProfile{}, 0))
	require.EqualValues(t, 4, policy.PurchaseLimit(&domain.UserProfile{}, 4))
	require.EqualValues(t, 7, policy.PurchaseLimit(&domain.UserProfile{PurchaseLimit: 7}, 4))
}
