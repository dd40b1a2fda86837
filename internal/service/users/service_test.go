package users_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/fairtix/internal/domain"
	"github.com/kirinyoku/fairtix/internal/policy"
	st "github.com/kirinyoku/fairtix/internal/service/servicetest"
)

func TestAdminOnly(t *testing.T) {
	env := st.New(t)
	svc := env.Svc.Users

	for name, err := range map[string]error{
		"verify":    svc.Verify(env.Ctx, st.Alice, st.Bob),
		"revoke":    svc.RevokeVerification(env.Ctx, st.Alice, st.Bob),
		"ban":       svc.Ban(env.Ctx, st.Alice, st.Bob, "spam"),
		"unban":     svc.Unban(env.Ctx, st.Alice, st.Bob),
		"limit":     svc.SetPurchaseLimit(env.Ctx, st.Alice, st.Bob, 3),
		"region":    svc.SetRegion(env.Ctx, st.Alice, st.Bob, "DE"),
		"organizer": svc.GrantOrganizer(env.Ctx, st.Org, st.Bob),
		"demote":    svc.RevokeOrganizer(env.Ctx, st.Alice, st.Org),
		"penalize":  svc.Penalize(env.Ctx, st.Alice, st.Bob, 5, ""),
	} {
		assert.ErrorIs(t, err, domain.ErrNotAdmin, name)
	}

	assert.False(t, env.Profile(st.Bob).IsVerified)
	assert.True(t, env.Profile(st.Org).IsOrganizer)
}

func TestVerifyGrantsDefaultReputation(t *testing.T) {
	env := st.New(t)

	assert.Equal(t, uint32(0), env.Profile(st.Alice).Reputation)

	require.NoError(t, env.Svc.Users.Verify(env.Ctx, st.Owner, st.Alice))
	p := env.Profile(st.Alice)
	assert.True(t, p.IsVerified)
	assert.Equal(t, st.Start, p.VerifiedAt)
	assert.Equal(t, uint32(policy.DefaultReputation), p.Reputation)
	require.Len(t, env.Notes.OfType(domain.NotifyUserWhitelisted), 1)

	require.NoError(t, env.Svc.Users.Penalize(env.Ctx, st.Owner, st.Alice, 30, "chargeback"))
	require.NoError(t, env.Svc.Users.RevokeVerification(env.Ctx, st.Owner, st.Alice))
	require.NoError(t, env.Svc.Users.Verify(env.Ctx, st.Owner, st.Alice))
	assert.Equal(t, uint32(70), env.Profile(st.Alice).Reputation)
}

func TestReverifyKeepsZeroReputation(t *testing.T) {
	env := st.New(t)
	env.Participant(st.Alice)

	require.NoError(t, env.Svc.Users.Penalize(env.Ctx, st.Owner, st.Alice, policy.MaxPenaltyPoints, "fraud"))
	require.Equal(t, uint32(0), env.Profile(st.Alice).Reputation)
	require.Zero(t, env.Profile(st.Alice).PurchaseCount)

	require.NoError(t, env.Svc.Users.RevokeVerification(env.Ctx, st.Owner, st.Alice))
	env.Clock.Advance(time.Hour)
	require.NoError(t, env.Svc.Users.Verify(env.Ctx, st.Owner, st.Alice))

	p := env.Profile(st.Alice)
	assert.True(t, p.IsVerified)
	assert.Equal(t, uint32(0), p.Reputation)
	assert.Equal(t, st.Start, p.VerifiedAt)
}

func TestBanAndUnban(t *testing.T) {
	env := st.New(t)
	env.Participant(st.Alice)

	require.NoError(t, env.Svc.Users.Penalize(env.Ctx, st.Owner, st.Alice, 50, "resale abuse"))
	require.NoError(t, env.Svc.Users.Ban(env.Ctx, st.Owner, st.Alice, "bot traffic"))

	p := env.Profile(st.Alice)
	assert.True(t, p.IsBanned)
	assert.Equal(t, "bot traffic", p.BanReason)

	banned := env.Notes.OfType(domain.NotifyUserBlacklisted)
	require.Len(t, banned, 1)
	assert.Equal(t, st.Alice, banned[0].Subject)

	require.NoError(t, env.Svc.Users.Unban(env.Ctx, st.Owner, st.Alice))
	p = env.Profile(st.Alice)
	assert.False(t, p.IsBanned)
	assert.Empty(t, p.BanReason)
	assert.Equal(t, uint32(policy.DefaultReputation), p.Reputation)
}

func TestPenalize(t *testing.T) {
	env := st.New(t)
	env.Participant(st.Alice)

	require.ErrorIs(t, env.Svc.Users.Penalize(env.Ctx, st.Owner, st.Alice, 0, ""), domain.ErrInvalidPenaltySize)
	require.ErrorIs(t, env.Svc.Users.Penalize(env.Ctx, st.Owner, st.Alice, policy.MaxPenaltyPoints+1, ""), domain.ErrInvalidPenaltySize)

	require.NoError(t, env.Svc.Users.Penalize(env.Ctx, st.Owner, st.Alice, policy.MaxPenaltyPoints, "fraud"))
	assert.Equal(t, uint32(0), env.Profile(st.Alice).Reputation)
}

func TestSetPurchaseLimitAndRegion(t *testing.T) {
	env := st.New(t)

	require.ErrorIs(t, env.Svc.Users.SetPurchaseLimit(env.Ctx, st.Owner, st.Alice, 0), domain.ErrInvalidCount)
	require.ErrorIs(t, env.Svc.Users.SetPurchaseLimit(env.Ctx, st.Owner, st.Alice, 11), domain.ErrInvalidCount)
	require.NoError(t, env.Svc.Users.SetPurchaseLimit(env.Ctx, st.Owner, st.Alice, 10))

	require.ErrorIs(t, env.Svc.Users.SetRegion(env.Ctx, st.Owner, st.Alice, "de"), domain.ErrInvalidRegion)
	require.NoError(t, env.Svc.Users.SetRegion(env.Ctx, st.Owner, st.Alice, "DE"))

	p := env.Profile(st.Alice)
	assert.Equal(t, uint32(10), p.PurchaseLimit)
	assert.Equal(t, "DE", p.Region)
	require.Len(t, env.Notes.OfType(domain.NotifyRegionUpdated), 1)
}

func TestOrganizerRole(t *testing.T) {
	env := st.New(t)
	env.Participant(st.Alice)

	require.NoError(t, env.Svc.Users.GrantOrganizer(env.Ctx, st.Owner, st.Alice))
	assert.True(t, env.Profile(st.Alice).IsOrganizer)

	require.NoError(t, env.Svc.Users.RevokeOrganizer(env.Ctx, st.Owner, st.Alice))
	assert.False(t, env.Profile(st.Alice).IsOrganizer)
}

func TestZeroTarget(t *testing.T) {
	env := st.New(t)

	require.ErrorIs(t, env.Svc.Users.Verify(env.Ctx, st.Owner, domain.ZeroIdentity), domain.ErrZeroIdentity)
}

func TestNotPauseGated(t *testing.T) {
	env := st.New(t)
	env.Pause()

	require.NoError(t, env.Svc.Users.Verify(env.Ctx, st.Owner, st.Alice))
	require.NoError(t, env.Svc.Users.Ban(env.Ctx, st.Owner, st.Bob, "spam"))
}
