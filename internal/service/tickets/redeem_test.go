package tickets_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/fairtix/internal/domain"
	st "github.com/kirinyoku/fairtix/internal/service/servicetest"
	"github.com/kirinyoku/fairtix/internal/signature"
)

// doorsOpen is one hour before the default event starts.
const doorsOpen = 30*24*time.Hour - time.Hour

func TestRedeem_SecretAcceptedOnce(t *testing.T) {
	env := st.New(t)
	key, holder := env.Signer()
	eventID := env.Event()
	first := env.Buy(holder, eventID)
	second := env.Buy(holder, eventID)
	env.Clock.Advance(doorsOpen)

	secret := []byte("S")
	envelope := signature.Sign(key, signature.RedemptionDigest(first, secret))

	require.NoError(t, env.Svc.Tickets.Redeem(env.Ctx, st.Org, first, secret, envelope))
	assert.True(t, env.Ticket(first).IsUsed)

	used := env.Notes.OfType(domain.NotifyTicketUsed)
	require.Len(t, used, 1)
	assert.Equal(t, holder, used[0].Subject)

	err := env.Svc.Tickets.Redeem(env.Ctx, st.Org, first, secret, envelope)
	require.ErrorIs(t, err, domain.ErrSecretReplay)
	require.ErrorIs(t, err, domain.ErrReplay)

	replayed := signature.Sign(key, signature.RedemptionDigest(second, secret))
	err = env.Svc.Tickets.Redeem(env.Ctx, st.Org, second, secret, replayed)
	require.ErrorIs(t, err, domain.ErrSecretReplay)
	assert.False(t, env.Ticket(second).IsUsed)

	fresh := []byte("S2")
	err = env.Svc.Tickets.Redeem(env.Ctx, st.Org, first, fresh, signature.Sign(key, signature.RedemptionDigest(first, fresh)))
	require.ErrorIs(t, err, domain.ErrAlreadyUsed)
}

func TestRedeem_Rules(t *testing.T) {
	env := st.New(t)
	key, holder := env.Signer()
	otherKey, _ := env.Signer()
	ticketID := env.Buy(holder, env.Event())

	secret := []byte("door-42")
	envelope := signature.Sign(key, signature.RedemptionDigest(ticketID, secret))

	err := env.Svc.Tickets.Redeem(env.Ctx, st.Org, ticketID, secret, envelope)
	require.ErrorIs(t, err, domain.ErrOutsideRedemptionWindow)

	env.Clock.Advance(doorsOpen)

	err = env.Svc.Tickets.Redeem(env.Ctx, st.Alice, ticketID, secret, envelope)
	require.ErrorIs(t, err, domain.ErrNotOrganizer)

	err = env.Svc.Tickets.Redeem(env.Ctx, st.Org, ticketID, nil, envelope)
	require.ErrorIs(t, err, domain.ErrEmptySecret)

	err = env.Svc.Tickets.Redeem(env.Ctx, st.Org, ticketID, secret, envelope[:10])
	require.ErrorIs(t, err, domain.ErrInvalidSignature)

	err = env.Svc.Tickets.Redeem(env.Ctx, st.Org, ticketID, []byte("other"), envelope)
	require.ErrorIs(t, err, domain.ErrInvalidSignature)

	forged := signature.Sign(otherKey, signature.RedemptionDigest(ticketID, secret))
	err = env.Svc.Tickets.Redeem(env.Ctx, st.Org, ticketID, secret, forged)
	require.ErrorIs(t, err, domain.ErrSignerNotHolder)

	assert.False(t, env.Ticket(ticketID).IsUsed)

	env.Clock.Advance(8 * time.Hour)
	err = env.Svc.Tickets.Redeem(env.Ctx, st.Org, ticketID, secret, envelope)
	require.ErrorIs(t, err, domain.ErrOutsideRedemptionWindow)
}

func TestRedeem_Paused(t *testing.T) {
	env := st.New(t)
	key, holder := env.Signer()
	ticketID := env.Buy(holder, env.Event())
	env.Clock.Advance(doorsOpen)
	env.Pause()

	secret := []byte("S")
	err := env.Svc.Tickets.Redeem(env.Ctx, st.Org, ticketID, secret, signature.Sign(key, signature.RedemptionDigest(ticketID, secret)))
	require.ErrorIs(t, err, domain.ErrSystemPaused)
}

type fixedSigner struct{ id domain.Identity }

func (f fixedSigner) RecoverSigner([]byte, []byte) (domain.Identity, error) { return f.id, nil }

func TestRedeem_CustomVerifier(t *testing.T) {
	env := st.New(t, st.WithVerifier(fixedSigner{id: st.Alice}))
	env.Participant(st.Alice, st.Bob)
	eventID := env.Event()
	mine := env.Buy(st.Alice, eventID)
	theirs := env.Buy(st.Bob, eventID)
	env.Clock.Advance(doorsOpen)

	require.NoError(t, env.Svc.Tickets.Redeem(env.Ctx, st.Org, mine, []byte("a"), []byte("opaque")))
	assert.True(t, env.Ticket(mine).IsUsed)

	err := env.Svc.Tickets.Redeem(env.Ctx, st.Org, theirs, []byte("b"), []byte("opaque"))
	require.ErrorIs(t, err, domain.ErrSignerNotHolder)
}
