package memory

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kirinyoku/fairtix/internal/domain"
	"github.com/kirinyoku/fairtix/internal/repository"
)

type eventRepo struct{ t *txView }

func (r eventRepo) Create(_ context.Context, e *domain.Event) (int64, error) {
	st := r.t.st
	st.nextEventID++
	cp := *e
	cp.ID = st.nextEventID
	cp.AllowedRegions = slices.Clone(e.AllowedRegions)
	st.events[cp.ID] = cp
	return cp.ID, nil
}

func (r eventRepo) Get(_ context.Context, id int64) (*domain.Event, error) {
	e, ok := r.t.st.events[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	e.AllowedRegions = slices.Clone(e.AllowedRegions)
	return &e, nil
}

func (r eventRepo) Lock(ctx context.Context, id int64) (*domain.Event, error) {
	return r.Get(ctx, id)
}

func (r eventRepo) Update(_ context.Context, e *domain.Event) error {
	if _, ok := r.t.st.events[e.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *e
	cp.AllowedRegions = slices.Clone(e.AllowedRegions)
	r.t.st.events[e.ID] = cp
	return nil
}

func (r eventRepo) PurchaseCount(_ context.Context, eventID int64, user domain.Identity) (uint32, error) {
	return r.t.st.purchaseCounts[countKey{eventID, user}], nil
}

func (r eventRepo) SetPurchaseCount(_ context.Context, eventID int64, user domain.Identity, n uint32) error {
	r.t.st.purchaseCounts[countKey{eventID, user}] = n
	return nil
}

type ticketRepo struct{ t *txView }

func (r ticketRepo) Insert(_ context.Context, tk *domain.Ticket) error {
	if _, ok := r.t.st.tickets[tk.ID]; ok {
		return repository.ErrConflict
	}
	r.t.st.tickets[tk.ID] = *tk
	return nil
}

func (r ticketRepo) Get(_ context.Context, id uuid.UUID) (*domain.Ticket, error) {
	tk, ok := r.t.st.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &tk, nil
}

func (r ticketRepo) Lock(ctx context.Context, id uuid.UUID) (*domain.Ticket, error) {
	return r.Get(ctx, id)
}

func (r ticketRepo) Update(_ context.Context, tk *domain.Ticket) error {
	if _, ok := r.t.st.tickets[tk.ID]; !ok {
		return repository.ErrNotFound
	}
	r.t.st.tickets[tk.ID] = *tk
	return nil
}

func (r ticketRepo) AppendTransfer(_ context.Context, ticketID uuid.UUID, rec domain.TransferRecord) error {
	r.t.st.transfers[ticketID] = append(slices.Clip(r.t.st.transfers[ticketID]), rec)
	return nil
}

func (r ticketRepo) Transfers(_ context.Context, ticketID uuid.UUID) ([]domain.TransferRecord, error) {
	return slices.Clone(r.t.st.transfers[ticketID]), nil
}

func (r ticketRepo) SecretUsed(_ context.Context, key string) (bool, error) {
	_, ok := r.t.st.usedSecrets[key]
	return ok, nil
}

func (r ticketRepo) MarkSecretUsed(_ context.Context, key string, ticketID uuid.UUID, _ time.Time) error {
	if _, ok := r.t.st.usedSecrets[key]; ok {
		return repository.ErrConflict
	}
	r.t.st.usedSecrets[key] = ticketID
	return nil
}

type userRepo struct{ t *txView }

func (r userRepo) Get(_ context.Context, id domain.Identity) (*domain.UserProfile, error) {
	p, ok := r.t.st.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r userRepo) Lock(ctx context.Context, id domain.Identity) (*domain.UserProfile, error) {
	return r.Get(ctx, id)
}

func (r userRepo) Upsert(_ context.Context, p *domain.UserProfile) error {
	r.t.st.users[p.Identity] = *p
	return nil
}

type lotteryRepo struct{ t *txView }

func (r lotteryRepo) Create(_ context.Context, l *domain.Lottery) (int64, error) {
	st := r.t.st
	st.nextLotteryID++
	cp := *l
	cp.ID = st.nextLotteryID
	st.lotteries[cp.ID] = cp
	return cp.ID, nil
}

func (r lotteryRepo) Get(_ context.Context, id int64) (*domain.Lottery, error) {
	l, ok := r.t.st.lotteries[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &l, nil
}

func (r lotteryRepo) Lock(ctx context.Context, id int64) (*domain.Lottery, error) {
	return r.Get(ctx, id)
}

func (r lotteryRepo) Update(_ context.Context, l *domain.Lottery) error {
	if _, ok := r.t.st.lotteries[l.ID]; !ok {
		return repository.ErrNotFound
	}
	r.t.st.lotteries[l.ID] = *l
	return nil
}

func (r lotteryRepo) HasUndrawn(_ context.Context, eventID int64) (bool, error) {
	for _, l := range r.t.st.lotteries {
		if l.EventID == eventID && !l.IsDrawn {
			return true, nil
		}
	}
	return false, nil
}

func (r lotteryRepo) AddApplicant(_ context.Context, lotteryID int64, id domain.Identity, _ time.Time) error {
	st := r.t.st
	k := entryKey{lotteryID, id}
	if _, ok := st.applied[k]; ok {
		return repository.ErrConflict
	}
	st.applied[k] = struct{}{}
	st.applicants[lotteryID] = append(slices.Clip(st.applicants[lotteryID]), id)
	return nil
}

func (r lotteryRepo) Applicants(_ context.Context, lotteryID int64) ([]domain.Identity, error) {
	return slices.Clone(r.t.st.applicants[lotteryID]), nil
}

func (r lotteryRepo) SetWinners(_ context.Context, lotteryID int64, winners []domain.Identity) error {
	if len(r.t.st.winners[lotteryID]) > 0 {
		return repository.ErrConflict
	}
	out := make([]domain.Winner, 0, len(winners))
	for _, w := range winners {
		out = append(out, domain.Winner{Identity: w})
	}
	r.t.st.winners[lotteryID] = out
	return nil
}

func (r lotteryRepo) Winners(_ context.Context, lotteryID int64) ([]domain.Winner, error) {
	return slices.Clone(r.t.st.winners[lotteryID]), nil
}

func (r lotteryRepo) Winner(_ context.Context, lotteryID int64, id domain.Identity) (*domain.Winner, error) {
	for _, w := range r.t.st.winners[lotteryID] {
		if w.Identity == id {
			return &w, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r lotteryRepo) MarkClaimed(_ context.Context, lotteryID int64, id domain.Identity, ticketID uuid.UUID) error {
	ws := slices.Clone(r.t.st.winners[lotteryID])
	for i := range ws {
		if ws[i].Identity != id {
			continue
		}
		if ws[i].Claimed {
			return repository.ErrConflict
		}
		ws[i].Claimed = true
		ws[i].TicketID = ticketID
		r.t.st.winners[lotteryID] = ws
		return nil
	}
	return repository.ErrNotFound
}

type systemRepo struct{ t *txView }

func (r systemRepo) Get(_ context.Context) (*domain.SystemState, error) {
	s := r.t.st.system
	return &s, nil
}

func (r systemRepo) Lock(ctx context.Context) (*domain.SystemState, error) {
	return r.Get(ctx)
}

func (r systemRepo) Update(_ context.Context, s *domain.SystemState) error {
	r.t.st.system = *s
	return nil
}

func (r systemRepo) NextNonce(_ context.Context) (uint64, error) {
	r.t.st.system.DrawNonce++
	return r.t.st.system.DrawNonce, nil
}

type registry struct{ t *txView }

func (r registry) HolderOf(_ context.Context, ticketID uuid.UUID) (domain.Identity, error) {
	h, ok := r.t.st.holders[ticketID]
	if !ok {
		return "", repository.ErrNotFound
	}
	return h, nil
}

func (r registry) Mint(_ context.Context, ticketID uuid.UUID, to domain.Identity) error {
	if _, ok := r.t.st.holders[ticketID]; ok {
		return repository.ErrConflict
	}
	r.t.st.holders[ticketID] = to
	return nil
}

func (r registry) Transfer(_ context.Context, ticketID uuid.UUID, from, to domain.Identity) error {
	h, ok := r.t.st.holders[ticketID]
	if !ok {
		return repository.ErrNotFound
	}
	if h != from {
		return repository.ErrNotHolder
	}
	r.t.st.holders[ticketID] = to
	return nil
}

func (r registry) Burn(_ context.Context, ticketID uuid.UUID, from domain.Identity) error {
	h, ok := r.t.st.holders[ticketID]
	if !ok {
		return repository.ErrNotFound
	}
	if h != from {
		return repository.ErrNotHolder
	}
	delete(r.t.st.holders, ticketID)
	return nil
}

func (r registry) TokensOf(_ context.Context, holder domain.Identity) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for id, h := range r.t.st.holders {
		if h == holder {
			out = append(out, id)
		}
	}
	slices.SortFunc(out, func(a, b uuid.UUID) int { return slices.Compare(a[:], b[:]) })
	return out, nil
}

type ledger struct{ t *txView }

func (l ledger) record(account domain.Identity, amount decimal.Decimal, kind string) {
	st := l.t.st
	st.entries = append(slices.Clip(st.entries), domain.LedgerEntry{
		Account:   account,
		Amount:    amount,
		Kind:      kind,
		CreatedAt: l.t.store.clock.Now(),
	})
}

func (l ledger) Collect(_ context.Context, from domain.Identity, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return repository.ErrConflict
	}
	st := l.t.st
	st.balances[domain.Treasury] = st.balances[domain.Treasury].Add(amount)
	l.record(from, amount, "collect")
	return nil
}

func (l ledger) Pay(ctx context.Context, to domain.Identity, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return repository.ErrConflict
	}
	st := l.t.st
	treasury := st.balances[domain.Treasury]
	if treasury.LessThan(amount) {
		return repository.ErrInsufficientFunds
	}
	st.balances[domain.Treasury] = treasury.Sub(amount)
	st.balances[to] = st.balances[to].Add(amount)
	l.record(to, amount, "pay")

	if h := l.t.store.payHook; h != nil {
		h(ctx, to, amount)
	}
	return nil
}

func (l ledger) Balance(_ context.Context, account domain.Identity) (decimal.Decimal, error) {
	return l.t.st.balances[account], nil
}
