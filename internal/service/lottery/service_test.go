package lottery_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/fairtix/internal/domain"
	"github.com/kirinyoku/fairtix/internal/service/catalog"
	"github.com/kirinyoku/fairtix/internal/service/lottery"
	st "github.com/kirinyoku/fairtix/internal/service/servicetest"
)

const day = 24 * time.Hour

// presale creates an event whose public sale opens after a lottery window.
func presale(env *st.Env) int64 {
	return env.Event(func(p *catalog.CreateEventParams) {
		p.SaleStart = st.Start.Add(5 * day)
		p.SaleEnd = st.Start.Add(10 * day)
	})
}

func params(eventID int64, maxWinners uint32) lottery.CreateParams {
	return lottery.CreateParams{
		EventID:          eventID,
		ApplicationStart: st.Start,
		ApplicationEnd:   st.Start.Add(2 * day),
		DrawTime:         st.Start.Add(3 * day),
		MaxWinners:       maxWinners,
	}
}

func open(t *testing.T, env *st.Env, maxWinners uint32) int64 {
	t.Helper()

	id, err := env.Svc.Lottery.Create(env.Ctx, st.Org, params(presale(env), maxWinners))
	require.NoError(t, err)

	return id
}

func TestLottery_DrawAndClaim(t *testing.T) {
	env := st.New(t)
	env.Participant(st.Alice, st.Bob, st.Carol)
	outsider := domain.Identity("0x00000000000000000000000000000000000000d0")
	env.Participant(outsider)

	lotteryID := open(t, env, 5)
	for _, id := range []domain.Identity{st.Alice, st.Bob, st.Carol} {
		require.NoError(t, env.Svc.Lottery.Apply(env.Ctx, id, lotteryID))
	}

	env.Clock.Advance(3 * day)
	winners, err := env.Svc.Lottery.Draw(env.Ctx, outsider, lotteryID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []domain.Identity{st.Alice, st.Bob, st.Carol}, winners)

	completed := env.Notes.OfType(domain.NotifyLotteryCompleted)
	require.Len(t, completed, 1)
	assert.Equal(t, "3", completed[0].Attrs["winners"])

	claimed := map[uuid.UUID]bool{}
	for _, w := range winners {
		ticketID, err := env.Svc.Lottery.Claim(env.Ctx, w, lotteryID, "L-1", st.Price)
		require.NoError(t, err)
		assert.Equal(t, w, env.Ticket(ticketID).Holder)
		claimed[ticketID] = true

		_, err = env.Svc.Lottery.Claim(env.Ctx, w, lotteryID, "L-1", st.Price)
		require.ErrorIs(t, err, domain.ErrAlreadyClaimed)
	}
	assert.Len(t, claimed, 3)

	_, err = env.Svc.Lottery.Claim(env.Ctx, outsider, lotteryID, "L-1", st.Price)
	require.ErrorIs(t, err, domain.ErrNotWinner)
	require.ErrorIs(t, err, domain.ErrAuthorization)

	view, err := env.Svc.Query.GetLottery(env.Ctx, lotteryID)
	require.NoError(t, err)
	assert.Equal(t, domain.LotteryDrawn, view.Phase)
	assert.Equal(t, uint32(3), view.WinnerCount)
	require.Len(t, view.Winners, 3)
	for _, w := range view.Winners {
		assert.True(t, w.Claimed)
		assert.True(t, claimed[w.TicketID])
	}
}

func TestLottery_WinnersAreDistinctAndCapped(t *testing.T) {
	env := st.New(t)

	lotteryID := open(t, env, 4)
	applicants := make([]domain.Identity, 0, 12)
	for i := range 12 {
		id := domain.IdentityFromBytes(append(make([]byte, 19), byte(0x10+i)))
		env.Participant(id)
		require.NoError(t, env.Svc.Lottery.Apply(env.Ctx, id, lotteryID))
		applicants = append(applicants, id)
	}

	env.Clock.Advance(3 * day)
	winners, err := env.Svc.Lottery.Draw(env.Ctx, st.Org, lotteryID)
	require.NoError(t, err)
	require.Len(t, winners, 4)

	seen := map[domain.Identity]bool{}
	for _, w := range winners {
		assert.Contains(t, applicants, w)
		assert.False(t, seen[w])
		seen[w] = true
	}

	_, err = env.Svc.Lottery.Draw(env.Ctx, st.Org, lotteryID)
	require.ErrorIs(t, err, domain.ErrAlreadyDrawn)
}

func TestLottery_FixedEntropyIsReproducible(t *testing.T) {
	draw := func() []domain.Identity {
		env := st.New(t, st.WithEntropy(st.FixedEntropy{42}))
		lotteryID := open(t, env, 3)
		for i := range 8 {
			id := domain.IdentityFromBytes(append(make([]byte, 19), byte(0x20+i)))
			env.Participant(id)
			require.NoError(t, env.Svc.Lottery.Apply(env.Ctx, id, lotteryID))
		}
		env.Clock.Advance(3 * day)
		winners, err := env.Svc.Lottery.Draw(env.Ctx, st.Alice, lotteryID)
		require.NoError(t, err)
		return winners
	}

	assert.Equal(t, draw(), draw())
}

func TestLottery_CreateRules(t *testing.T) {
	env := st.New(t)
	env.Organizer(st.Bob)
	eventID := presale(env)

	_, err := env.Svc.Lottery.Create(env.Ctx, st.Alice, params(eventID, 5))
	require.ErrorIs(t, err, domain.ErrNotOrganizer)

	_, err = env.Svc.Lottery.Create(env.Ctx, st.Bob, params(eventID, 5))
	require.ErrorIs(t, err, domain.ErrNotOrganizer)

	_, err = env.Svc.Lottery.Create(env.Ctx, st.Org, params(eventID, 0))
	require.ErrorIs(t, err, domain.ErrInvalidCount)

	bad := params(eventID, 5)
	bad.DrawTime = bad.ApplicationEnd.Add(-time.Hour)
	_, err = env.Svc.Lottery.Create(env.Ctx, st.Org, bad)
	require.ErrorIs(t, err, domain.ErrInvalidWindow)

	late := params(eventID, 5)
	late.ApplicationEnd = st.Start.Add(6 * day)
	late.DrawTime = st.Start.Add(6 * day)
	_, err = env.Svc.Lottery.Create(env.Ctx, st.Org, late)
	require.ErrorIs(t, err, domain.ErrLotteryAfterSale)

	_, err = env.Svc.Lottery.Create(env.Ctx, st.Org, params(404, 5))
	require.ErrorIs(t, err, domain.ErrEventNotFound)

	_, err = env.Svc.Lottery.Create(env.Ctx, st.Org, params(eventID, 5))
	require.NoError(t, err)
	require.Len(t, env.Notes.OfType(domain.NotifyLotteryCreated), 1)

	_, err = env.Svc.Lottery.Create(env.Ctx, st.Org, params(eventID, 5))
	require.ErrorIs(t, err, domain.ErrLotteryExists)
}

func TestLottery_ApplyRules(t *testing.T) {
	env := st.New(t)
	env.Participant(st.Alice)

	eventID := presale(env)
	p := params(eventID, 5)
	p.ApplicationStart = st.Start.Add(time.Hour)
	lotteryID, err := env.Svc.Lottery.Create(env.Ctx, st.Org, p)
	require.NoError(t, err)

	err = env.Svc.Lottery.Apply(env.Ctx, st.Alice, lotteryID)
	require.ErrorIs(t, err, domain.ErrApplicationsClosed)

	env.Clock.Advance(2 * time.Hour)

	err = env.Svc.Lottery.Apply(env.Ctx, st.Carol, lotteryID)
	require.ErrorIs(t, err, domain.ErrNotVerified)

	require.NoError(t, env.Svc.Lottery.Apply(env.Ctx, st.Alice, lotteryID))
	err = env.Svc.Lottery.Apply(env.Ctx, st.Alice, lotteryID)
	require.ErrorIs(t, err, domain.ErrAlreadyApplied)

	err = env.Svc.Lottery.Apply(env.Ctx, st.Alice, 404)
	require.ErrorIs(t, err, domain.ErrLotteryNotFound)

	view, err := env.Svc.Query.GetLottery(env.Ctx, lotteryID)
	require.NoError(t, err)
	assert.Equal(t, domain.LotteryApplicationsOpen, view.Phase)
	assert.Equal(t, uint32(1), view.ApplicantCount)

	env.Clock.Advance(2 * day)
	err = env.Svc.Lottery.Apply(env.Ctx, st.Bob, lotteryID)
	require.ErrorIs(t, err, domain.ErrApplicationsClosed)
}

func TestLottery_DrawRules(t *testing.T) {
	env := st.New(t)
	env.Participant(st.Alice)
	lotteryID := open(t, env, 5)

	_, err := env.Svc.Lottery.Claim(env.Ctx, st.Alice, lotteryID, "", st.Price)
	require.ErrorIs(t, err, domain.ErrNotDrawn)

	env.Clock.Advance(3*day - time.Second)
	_, err = env.Svc.Lottery.Draw(env.Ctx, st.Alice, lotteryID)
	require.ErrorIs(t, err, domain.ErrDrawTooEarly)

	env.Clock.Advance(time.Second)
	_, err = env.Svc.Lottery.Draw(env.Ctx, st.Alice, lotteryID)
	require.ErrorIs(t, err, domain.ErrNoApplicants)

	_, err = env.Svc.Lottery.Draw(env.Ctx, domain.ZeroIdentity, lotteryID)
	require.ErrorIs(t, err, domain.ErrZeroIdentity)
}

func TestLottery_ClaimKeepsPurchaseRules(t *testing.T) {
	env := st.New(t)
	env.Participant(st.Alice)
	lotteryID := open(t, env, 1)
	require.NoError(t, env.Svc.Lottery.Apply(env.Ctx, st.Alice, lotteryID))

	env.Clock.Advance(3 * day)
	_, err := env.Svc.Lottery.Draw(env.Ctx, st.Alice, lotteryID)
	require.NoError(t, err)

	_, err = env.Svc.Lottery.Claim(env.Ctx, st.Alice, lotteryID, "", decimal.NewFromInt(1))
	require.ErrorIs(t, err, domain.ErrIncorrectPayment)

	ticketID, err := env.Svc.Lottery.Claim(env.Ctx, st.Alice, lotteryID, "", st.Price)
	require.NoError(t, err)
	assert.Equal(t, st.Alice, env.Ticket(ticketID).Holder)
}

func TestLottery_Paused(t *testing.T) {
	env := st.New(t)
	env.Participant(st.Alice)
	lotteryID := open(t, env, 1)
	eventID := presale(env)
	env.Pause()

	err := env.Svc.Lottery.Apply(env.Ctx, st.Alice, lotteryID)
	require.ErrorIs(t, err, domain.ErrSystemPaused)

	_, err = env.Svc.Lottery.Create(env.Ctx, st.Org, params(eventID, 1))
	require.ErrorIs(t, err, domain.ErrSystemPaused)
}
