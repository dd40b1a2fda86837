package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kirinyoku/fairtix/internal/domain"
)

// Store is the single authoritative state store. RunTx executes fn as one
// serializable, all-or-nothing unit: when fn returns an error nothing it
// wrote is observable. Calling RunTx again with a context that already
// carries an open transaction of the same store fails with ErrReentrant.
type Store interface {
	RunTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx exposes the repositories bound to one open transaction.
type Tx interface {
	Events() EventRepo
	Tickets() TicketRepo
	Users() UserRepo
	Lotteries() LotteryRepo
	System() SystemRepo
	Registry() TokenRegistry
	Ledger() Ledger
}

type EventRepo interface {
	Create(ctx context.Context, e *domain.Event) (int64, error)
	Get(ctx context.Context, id int64) (*domain.Event, error)
	// Lock returns the event and holds it exclusively until the transaction ends.
	Lock(ctx context.Context, id int64) (*domain.Event, error)
	Update(ctx context.Context, e *domain.Event) error
	PurchaseCount(ctx context.Context, eventID int64, user domain.Identity) (uint32, error)
	SetPurchaseCount(ctx context.Context, eventID int64, user domain.Identity, n uint32) error
}

type TicketRepo interface {
	Insert(ctx context.Context, t *domain.Ticket) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Ticket, error)
	Lock(ctx context.Context, id uuid.UUID) (*domain.Ticket, error)
	Update(ctx context.Context, t *domain.Ticket) error
	AppendTransfer(ctx context.Context, ticketID uuid.UUID, rec domain.TransferRecord) error
	Transfers(ctx context.Context, ticketID uuid.UUID) ([]domain.TransferRecord, error)
	SecretUsed(ctx context.Context, key string) (bool, error)
	// MarkSecretUsed fails with ErrConflict when key is already present.
	MarkSecretUsed(ctx context.Context, key string, ticketID uuid.UUID, at time.Time) error
}

type UserRepo interface {
	// Get fails with ErrNotFound for identities never seen before.
	Get(ctx context.Context, id domain.Identity) (*domain.UserProfile, error)
	Lock(ctx context.Context, id domain.Identity) (*domain.UserProfile, error)
	Upsert(ctx context.Context, p *domain.UserProfile) error
}

type LotteryRepo interface {
	Create(ctx context.Context, l *domain.Lottery) (int64, error)
	Get(ctx context.Context, id int64) (*domain.Lottery, error)
	Lock(ctx context.Context, id int64) (*domain.Lottery, error)
	Update(ctx context.Context, l *domain.Lottery) error
	HasUndrawn(ctx context.Context, eventID int64) (bool, error)
	// AddApplicant fails with ErrConflict on a duplicate application.
	AddApplicant(ctx context.Context, lotteryID int64, id domain.Identity, at time.Time) error
	Applicants(ctx context.Context, lotteryID int64) ([]domain.Identity, error)
	SetWinners(ctx context.Context, lotteryID int64, winners []domain.Identity) error
	Winners(ctx context.Context, lotteryID int64) ([]domain.Winner, error)
	// Winner fails with ErrNotFound when id did not win.
	Winner(ctx context.Context, lotteryID int64, id domain.Identity) (*domain.Winner, error)
	MarkClaimed(ctx context.Context, lotteryID int64, id domain.Identity, ticketID uuid.UUID) error
}

type SystemRepo interface {
	Get(ctx context.Context) (*domain.SystemState, error)
	Lock(ctx context.Context) (*domain.SystemState, error)
	Update(ctx context.Context, s *domain.SystemState) error
	// NextNonce increments and returns the draw nonce.
	NextNonce(ctx context.Context) (uint64, error)
}

// TokenRegistry tracks the current holder of every ticket token. Its writes
// commit with the enclosing transaction.
type TokenRegistry interface {
	HolderOf(ctx context.Context, ticketID uuid.UUID) (domain.Identity, error)
	Mint(ctx context.Context, ticketID uuid.UUID, to domain.Identity) error
	// Transfer fails with ErrNotHolder when from does not hold ticketID.
	Transfer(ctx context.Context, ticketID uuid.UUID, from, to domain.Identity) error
	Burn(ctx context.Context, ticketID uuid.UUID, from domain.Identity) error
	TokensOf(ctx context.Context, holder domain.Identity) ([]uuid.UUID, error)
}

// Ledger moves value between the treasury and accounts. A call either
// moves the full amount or fails.
type Ledger interface {
	// Collect credits the treasury with a payment made by from.
	Collect(ctx context.Context, from domain.Identity, amount decimal.Decimal) error
	// Pay moves amount from the treasury to to.
	Pay(ctx context.Context, to domain.Identity, amount decimal.Decimal) error
	Balance(ctx context.Context, account domain.Identity) (decimal.Decimal, error)
}
