// Package tickets runs the ticket lifecycle: issuance, capped resale,
// time-limited resale windows, signed redemption and refunds.
package tickets

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kirinyoku/fairtix/internal/domain"
	"github.com/kirinyoku/fairtix/internal/policy"
	"github.com/kirinyoku/fairtix/internal/repository"
	"github.com/kirinyoku/fairtix/internal/service/common"
	"github.com/kirinyoku/fairtix/internal/signature"
	"github.com/kirinyoku/fairtix/internal/uow"
	"github.com/kirinyoku/fairtix/internal/validation"
)

const (
	MaxTransfers       = 3
	TransferCooldown   = 24 * time.Hour
	PlatformFeeBps     = 250
	TransferPenaltyBps = 500
	MaxResaleWindow    = 7 * 24 * time.Hour
	RefundCutoff       = 48 * time.Hour
	RedeemOpensBefore  = 2 * time.Hour
	RedeemClosesAfter  = 6 * time.Hour

	secretSaltSize = 16
	maxSeatInfo    = 64
)

// Limiter throttles purchases per buyer.
type Limiter interface {
	Allow(ctx context.Context, suffix string) (bool, int64, time.Duration, error)
}

type Config struct {
	// PurchaseLimit is the per-event cap for users without an override.
	PurchaseLimit uint32
}

type Service struct {
	deps     common.Deps
	uow      *uow.UoW
	verifier signature.Verifier
	limiter  Limiter
	cfg      Config
}

func New(deps common.Deps, verifier signature.Verifier, limiter Limiter, cfg Config) *Service {
	deps = deps.WithDefaults()

	if verifier == nil {
		verifier = signature.Ed25519Verifier{}
	}

	if cfg.PurchaseLimit == 0 {
		cfg.PurchaseLimit = policy.DefaultPurchaseLimit
	}

	return &Service{
		deps:     deps,
		uow:      deps.UoW(),
		verifier: verifier,
		limiter:  limiter,
		cfg:      cfg,
	}
}

// IssueRequest describes a primary sale.
type IssueRequest struct {
	Buyer    domain.Identity
	EventID  int64
	SeatInfo string
	Paid     decimal.Decimal
	// WaiveSaleWindow lets lottery winners claim outside the public sale;
	// the event must still lie in the future.
	WaiveSaleWindow bool
}

// Purchase sells one ticket of eventID to buyer at the event's original
// price.
//
// Parameters:
//   - ctx: request-scoped context.
//   - buyer: identity paying for and receiving the ticket.
//   - eventID: ID of the event.
//   - seatInfo: free-form seat label.
//   - paid: amount paid; must equal the original price.
//
// Returns:
//   - uuid.UUID: the ID of the minted ticket.
//   - error: domain.ErrRateLimited if the buyer exceeded the request rate.
//   - error: domain.ErrSoldOut, domain.ErrSaleClosed, domain.ErrPurchaseLimit
//     and the other purchase policy violations.
func (s *Service) Purchase(
	ctx context.Context,
	buyer domain.Identity,
	eventID int64,
	seatInfo string,
	paid decimal.Decimal,
) (uuid.UUID, error) {
	const op = "service.tickets.Purchase"

	if s.limiter != nil {
		ok, _, retry, err := s.limiter.Allow(ctx, string(buyer))
		if err != nil {
			s.deps.Logger.Warn("rate limiter unavailable", "error", err)
		} else if !ok {
			return uuid.Nil, fmt.Errorf("%s: retry in %s: %w", op, retry, domain.ErrRateLimited)
		}
	}

	var ticketID uuid.UUID

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx repository.Tx,
		after func(uow.AfterCommit),
	) error {
		id, err := s.IssueInTx(ctx, tx, after, IssueRequest{
			Buyer:    buyer,
			EventID:  eventID,
			SeatInfo: seatInfo,
			Paid:     paid,
		})
		if err != nil {
			return err
		}

		ticketID = id

		return nil
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s:%w", op, err)
	}

	return ticketID, nil
}

// IssueInTx mints a ticket inside the caller's transaction. It evaluates
// the full purchase policy except where req waives it.
func (s *Service) IssueInTx(
	ctx context.Context,
	tx repository.Tx,
	after func(uow.AfterCommit),
	req IssueRequest,
) (uuid.UUID, error) {
	if err := policy.Run(ctx, tx,
		policy.NotPaused(),
		func(context.Context, repository.Tx) error { return validation.RequireIdentity(req.Buyer) },
		policy.Participant(req.Buyer),
	); err != nil {
		return uuid.Nil, err
	}

	if len(req.SeatInfo) > maxSeatInfo {
		return uuid.Nil, domain.ErrInvalidSeat
	}

	e, err := tx.Events().Lock(ctx, req.EventID)
	if err != nil {
		return uuid.Nil, common.NotFound(err, domain.ErrEventNotFound)
	}

	now := s.deps.Clock.Now()

	switch {
	case !e.IsActive:
		return uuid.Nil, domain.ErrEventInactive
	case req.WaiveSaleWindow && !now.Before(e.EventDate):
		return uuid.Nil, domain.ErrEventPassed
	case !req.WaiveSaleWindow && !e.SaleOpen(now):
		return uuid.Nil, domain.ErrSaleClosed
	}

	if err := policy.Run(ctx, tx, policy.RegionAllowed(e, req.Buyer)); err != nil {
		return uuid.Nil, err
	}

	if e.TicketsSold >= e.MaxTickets {
		return uuid.Nil, domain.ErrSoldOut
	}

	if !req.Paid.Equal(e.OriginalPrice) {
		return uuid.Nil, domain.ErrIncorrectPayment
	}

	profile, err := policy.LockProfile(ctx, tx, req.Buyer)
	if err != nil {
		return uuid.Nil, err
	}

	bought, err := tx.Events().PurchaseCount(ctx, e.ID, req.Buyer)
	if err != nil {
		return uuid.Nil, err
	}

	if bought >= policy.PurchaseLimit(profile, s.cfg.PurchaseLimit) {
		return uuid.Nil, domain.ErrPurchaseLimit
	}

	salt := make([]byte, secretSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return uuid.Nil, fmt.Errorf("reading secret salt: %w", err)
	}

	t := &domain.Ticket{
		ID:            uuid.New(),
		EventID:       e.ID,
		OriginalBuyer: req.Buyer,
		PurchasePrice: req.Paid,
		PurchaseTime:  now,
		SeatInfo:      req.SeatInfo,
	}
	t.RedemptionSecretHash = signature.SecretHash(t.ID, req.Buyer, now, salt)

	if err := tx.Tickets().Insert(ctx, t); err != nil {
		return uuid.Nil, err
	}

	if err := tx.Registry().Mint(ctx, t.ID, req.Buyer); err != nil {
		return uuid.Nil, err
	}

	e.TicketsSold++
	if err := tx.Events().Update(ctx, e); err != nil {
		return uuid.Nil, err
	}

	if err := tx.Events().SetPurchaseCount(ctx, e.ID, req.Buyer, bought+1); err != nil {
		return uuid.Nil, err
	}

	profile.PurchaseCount = validation.AddSat(profile.PurchaseCount, 1, math.MaxUint32)
	profile.LastPurchaseTime = now
	profile.Reputation = validation.AddSat(profile.Reputation, policy.PurchaseReward, policy.MaxReputation)
	if err := tx.Users().Upsert(ctx, profile); err != nil {
		return uuid.Nil, err
	}

	if err := tx.Ledger().Collect(ctx, req.Buyer, req.Paid); err != nil {
		return uuid.Nil, err
	}

	after(s.deps.InvalidateEvent(e.ID))
	after(s.deps.Emit(domain.Notification{
		Type:     domain.NotifyTicketMinted,
		EventID:  e.ID,
		TicketID: t.ID.String(),
		Subject:  req.Buyer,
		Attrs: map[string]string{
			"price":        req.Paid.String(),
			"seat":         req.SeatInfo,
			"tickets_sold": strconv.FormatUint(uint64(e.TicketsSold), 10),
		},
		At: now,
	}))

	return t.ID, nil
}

// lockHeld locks a live ticket and checks that caller currently holds it.
func lockHeld(ctx context.Context, tx repository.Tx, ticketID uuid.UUID, caller domain.Identity) (*domain.Ticket, error) {
	t, err := tx.Tickets().Lock(ctx, ticketID)
	if err != nil {
		return nil, common.NotFound(err, domain.ErrTicketNotFound)
	}

	if t.Burned {
		return nil, domain.ErrTicketNotFound
	}

	holder, err := tx.Registry().HolderOf(ctx, ticketID)
	if err != nil {
		return nil, common.NotFound(err, domain.ErrTicketNotFound)
	}

	if caller.IsZero() || holder != caller {
		return nil, domain.ErrNotCurrentHolder
	}

	return t, nil
}

// pay moves amount out of the treasury. A zero amount or an unset
// recipient is a no-op.
func pay(ctx context.Context, tx repository.Tx, to domain.Identity, amount decimal.Decimal) error {
	if to == "" || !amount.IsPositive() {
		return nil
	}

	err := tx.Ledger().Pay(ctx, to, amount)
	if errors.Is(err, repository.ErrInsufficientFunds) {
		return domain.ErrInsufficientFunds
	}

	return err
}
