// Package memory is an in-process implementation of repository.Store.
//
// A transaction holds the store's exclusive lock for its whole duration and
// works on a private copy of the state, which replaces the committed state
// only when fn succeeds.
package memory

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kirinyoku/fairtix/internal/clock"
	"github.com/kirinyoku/fairtix/internal/domain"
	"github.com/kirinyoku/fairtix/internal/repository"
)

type countKey struct {
	eventID int64
	user    domain.Identity
}

type entryKey struct {
	lotteryID int64
	user      domain.Identity
}

type state struct {
	nextEventID   int64
	nextLotteryID int64

	events         map[int64]domain.Event
	purchaseCounts map[countKey]uint32

	tickets     map[uuid.UUID]domain.Ticket
	transfers   map[uuid.UUID][]domain.TransferRecord
	usedSecrets map[string]uuid.UUID

	users map[domain.Identity]domain.UserProfile

	lotteries  map[int64]domain.Lottery
	applicants map[int64][]domain.Identity
	applied    map[entryKey]struct{}
	winners    map[int64][]domain.Winner

	system domain.SystemState

	holders  map[uuid.UUID]domain.Identity
	balances map[domain.Identity]decimal.Decimal
	entries  []domain.LedgerEntry
}

func newState() *state {
	return &state{
		events:         map[int64]domain.Event{},
		purchaseCounts: map[countKey]uint32{},
		tickets:        map[uuid.UUID]domain.Ticket{},
		transfers:      map[uuid.UUID][]domain.TransferRecord{},
		usedSecrets:    map[string]uuid.UUID{},
		users:          map[domain.Identity]domain.UserProfile{},
		lotteries:      map[int64]domain.Lottery{},
		applicants:     map[int64][]domain.Identity{},
		applied:        map[entryKey]struct{}{},
		winners:        map[int64][]domain.Winner{},
		holders:        map[uuid.UUID]domain.Identity{},
		balances:       map[domain.Identity]decimal.Decimal{},
	}
}

// clone copies every map. Slices held in map values are never mutated in
// place, so sharing their backing arrays is safe.
func (s *state) clone() *state {
	return &state{
		nextEventID:    s.nextEventID,
		nextLotteryID:  s.nextLotteryID,
		events:         maps.Clone(s.events),
		purchaseCounts: maps.Clone(s.purchaseCounts),
		tickets:        maps.Clone(s.tickets),
		transfers:      maps.Clone(s.transfers),
		usedSecrets:    maps.Clone(s.usedSecrets),
		users:          maps.Clone(s.users),
		lotteries:      maps.Clone(s.lotteries),
		applicants:     maps.Clone(s.applicants),
		applied:        maps.Clone(s.applied),
		winners:        maps.Clone(s.winners),
		system:         s.system,
		holders:        maps.Clone(s.holders),
		balances:       maps.Clone(s.balances),
		entries:        s.entries,
	}
}

// PayHook observes every Ledger.Pay inside a transaction, the way a payee
// contract would observe an incoming payment.
type PayHook func(ctx context.Context, to domain.Identity, amount decimal.Decimal)

type Option func(*Store)

func WithClock(c clock.Clock) Option {
	return func(s *Store) { s.clock = c }
}

func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) { s.lockTimeout = d }
}

func WithPayHook(h PayHook) Option {
	return func(s *Store) { s.payHook = h }
}

type Store struct {
	sem         chan struct{}
	state       *state
	clock       clock.Clock
	lockTimeout time.Duration
	payHook     PayHook
}

type txKey struct{ s *Store }

func NewStore(opts ...Option) *Store {
	s := &Store{
		sem:         make(chan struct{}, 1),
		state:       newState(),
		clock:       clock.Real(),
		lockTimeout: 5 * time.Second,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) RunTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	const op = "memory.Store.RunTx"

	if ctx.Value(txKey{s}) != nil {
		return fmt.Errorf("%s:%w", op, repository.ErrReentrant)
	}

	timer := time.NewTimer(s.lockTimeout)
	defer timer.Stop()

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("%s:%w", op, ctx.Err())
	case <-timer.C:
		return fmt.Errorf("%s:%w", op, repository.ErrBusy)
	}
	defer func() { <-s.sem }()

	work := s.state.clone()
	tx := &txView{st: work, store: s}

	if err := fn(context.WithValue(ctx, txKey{s}, true), tx); err != nil {
		return err
	}

	s.state = work
	return nil
}

type txView struct {
	st    *state
	store *Store
}

func (t *txView) Events() repository.EventRepo       { return eventRepo{t} }
func (t *txView) Tickets() repository.TicketRepo     { return ticketRepo{t} }
func (t *txView) Users() repository.UserRepo         { return userRepo{t} }
func (t *txView) Lotteries() repository.LotteryRepo  { return lotteryRepo{t} }
func (t *txView) System() repository.SystemRepo      { return systemRepo{t} }
func (t *txView) Registry() repository.TokenRegistry { return registry{t} }
func (t *txView) Ledger() repository.Ledger          { return ledger{t} }
