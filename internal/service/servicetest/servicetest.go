// Package servicetest wires the domain services over the in-memory store
// for tests.
package servicetest

import (
	"context"
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/fairtix/internal/clock"
	"github.com/kirinyoku/fairtix/internal/domain"
	"github.com/kirinyoku/fairtix/internal/notify"
	"github.com/kirinyoku/fairtix/internal/repository"
	"github.com/kirinyoku/fairtix/internal/repository/memory"
	"github.com/kirinyoku/fairtix/internal/service"
	"github.com/kirinyoku/fairtix/internal/service/catalog"
	"github.com/kirinyoku/fairtix/internal/service/common"
	"github.com/kirinyoku/fairtix/internal/service/emergency"
	"github.com/kirinyoku/fairtix/internal/service/lottery"
	"github.com/kirinyoku/fairtix/internal/service/query"
	"github.com/kirinyoku/fairtix/internal/service/tickets"
	"github.com/kirinyoku/fairtix/internal/signature"
)

const (
	Owner = domain.Identity("0x00000000000000000000000000000000000000aa")
	Fees  = domain.Identity("0x00000000000000000000000000000000000000fe")
	Org   = domain.Identity("0x00000000000000000000000000000000000000cc")
	Alice = domain.Identity("0x00000000000000000000000000000000000000a1")
	Bob   = domain.Identity("0x00000000000000000000000000000000000000b0")
	Carol = domain.Identity("0x00000000000000000000000000000000000000c1")
)

// Start is the fake clock origin.
var Start = time.Date(2030, time.January, 1, 12, 0, 0, 0, time.UTC)

// Price is the original price of events created by Env.Event.
var Price = decimal.NewFromInt(100)

type Env struct {
	T     *testing.T
	Ctx   context.Context
	Clock *clock.FakeClock
	Store *memory.Store
	Notes *notify.Recorder
	Svc   *service.Services
}

type options struct {
	storeOpts    []memory.Option
	entropy      lottery.Entropy
	limiter      tickets.Limiter
	verifier     signature.Verifier
	cfg          service.Config
	refundFeeBps uint32
}

type Option func(*options)

func WithStoreOptions(opts ...memory.Option) Option {
	return func(o *options) { o.storeOpts = append(o.storeOpts, opts...) }
}

func WithEntropy(e lottery.Entropy) Option {
	return func(o *options) { o.entropy = e }
}

func WithLimiter(l tickets.Limiter) Option {
	return func(o *options) { o.limiter = l }
}

func WithVerifier(v signature.Verifier) Option {
	return func(o *options) { o.verifier = v }
}

func WithPurchaseLimit(n uint32) Option {
	return func(o *options) { o.cfg.Tickets.PurchaseLimit = n }
}

func WithRefundFeeBps(bps uint32) Option {
	return func(o *options) { o.refundFeeBps = bps }
}

// New bootstraps a system owned by Owner whose fees go to Fees. Org is a
// verified organizer.
func New(t *testing.T, opts ...Option) *Env {
	t.Helper()

	o := options{refundFeeBps: emergency.DefaultRefundFeeBps}
	for _, fn := range opts {
		fn(&o)
	}

	clk := clock.Fake(Start)
	store := memory.NewStore(append([]memory.Option{memory.WithClock(clk)}, o.storeOpts...)...)
	notes := &notify.Recorder{}

	svc := service.NewServices(common.Deps{
		Store:     store,
		Clock:     clk,
		Publisher: notes,
	}, o.verifier, o.limiter, o.entropy, o.cfg)

	env := &Env{
		T:     t,
		Ctx:   context.Background(),
		Clock: clk,
		Store: store,
		Notes: notes,
		Svc:   svc,
	}

	require.NoError(t, svc.Emergency.Bootstrap(env.Ctx, emergency.BootstrapParams{
		Owner:        Owner,
		FeeRecipient: Fees,
		RefundFeeBps: o.refundFeeBps,
	}))

	env.Organizer(Org)
	notes.Reset()

	return env
}

// Participant verifies id.
func (e *Env) Participant(ids ...domain.Identity) {
	e.T.Helper()

	for _, id := range ids {
		require.NoError(e.T, e.Svc.Users.Verify(e.Ctx, Owner, id))
	}
}

// Organizer verifies id and grants it the organizer role.
func (e *Env) Organizer(id domain.Identity) {
	e.T.Helper()

	e.Participant(id)
	require.NoError(e.T, e.Svc.Users.GrantOrganizer(e.Ctx, Owner, id))
}

// EventParams returns a transferable, refundable event whose sale is open
// now and which takes place 30 days later.
func EventParams() catalog.CreateEventParams {
	return catalog.CreateEventParams{
		Name:           "Concert",
		OriginalPrice:  Price,
		MaxResalePrice: decimal.NewFromInt(110),
		MaxTickets:     100,
		SaleStart:      Start,
		SaleEnd:        Start.Add(10 * 24 * time.Hour),
		EventDate:      Start.Add(30 * 24 * time.Hour),
		Transferable:   true,
		Refundable:     true,
	}
}

// Event creates an event organized by Org from EventParams adjusted by mods.
func (e *Env) Event(mods ...func(p *catalog.CreateEventParams)) int64 {
	e.T.Helper()

	p := EventParams()
	for _, m := range mods {
		m(&p)
	}

	id, err := e.Svc.Catalog.CreateEvent(e.Ctx, Org, p)
	require.NoError(e.T, err)

	return id
}

// Buy purchases one ticket of eventID for buyer at Price.
func (e *Env) Buy(buyer domain.Identity, eventID int64) uuid.UUID {
	e.T.Helper()

	id, err := e.Svc.Tickets.Purchase(e.Ctx, buyer, eventID, "A-1", Price)
	require.NoError(e.T, err)

	return id
}

// Signer creates a verified participant backed by a fresh signing key.
func (e *Env) Signer() (ed25519.PrivateKey, domain.Identity) {
	e.T.Helper()

	priv, id, err := signature.GenerateKey()
	require.NoError(e.T, err)

	e.Participant(id)

	return priv, id
}

func (e *Env) Balance(id domain.Identity) decimal.Decimal {
	e.T.Helper()

	b, err := e.Svc.Query.Balance(e.Ctx, id)
	require.NoError(e.T, err)

	return b
}

func (e *Env) Ticket(id uuid.UUID) *query.TicketView {
	e.T.Helper()

	v, err := e.Svc.Query.GetTicket(e.Ctx, id)
	require.NoError(e.T, err)

	return v
}

func (e *Env) Profile(id domain.Identity) *domain.UserProfile {
	e.T.Helper()

	p, err := e.Svc.Query.Profile(e.Ctx, id)
	require.NoError(e.T, err)

	return p
}

func (e *Env) EventState(id int64) *domain.Event {
	e.T.Helper()

	ev, err := e.Svc.Query.GetEvent(e.Ctx, id)
	require.NoError(e.T, err)

	return ev
}

// Pause pauses the system as Owner.
func (e *Env) Pause() {
	e.T.Helper()

	require.NoError(e.T, e.Svc.Emergency.Pause(e.Ctx, Owner))
}

// RunTx exposes a raw transaction for arranging state directly.
func (e *Env) RunTx(fn func(ctx context.Context, tx repository.Tx) error) {
	e.T.Helper()

	require.NoError(e.T, e.Store.RunTx(e.Ctx, fn))
}

// FixedEntropy always returns the same seed.
type FixedEntropy [32]byte

func (f FixedEntropy) Seed() ([32]byte, error) { return f, nil }
