// Package lottery allocates scarce inventory by lottery: organizers open an
// application window, verified users apply once, and a draw picks the
// winners who may then claim a ticket at the original price.
package lottery

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kirinyoku/fairtix/internal/domain"
	"github.com/kirinyoku/fairtix/internal/policy"
	"github.com/kirinyoku/fairtix/internal/repository"
	"github.com/kirinyoku/fairtix/internal/service/common"
	"github.com/kirinyoku/fairtix/internal/service/tickets"
	"github.com/kirinyoku/fairtix/internal/uow"
	"github.com/kirinyoku/fairtix/internal/validation"
)

type Service struct {
	deps    common.Deps
	uow     *uow.UoW
	tickets *tickets.Service
	entropy Entropy
}

func New(deps common.Deps, ticketSvc *tickets.Service, entropy Entropy) *Service {
	deps = deps.WithDefaults()

	if entropy == nil {
		entropy = CryptoEntropy{}
	}

	return &Service{
		deps:    deps,
		uow:     deps.UoW(),
		tickets: ticketSvc,
		entropy: entropy,
	}
}

type CreateParams struct {
	EventID          int64
	ApplicationStart time.Time
	ApplicationEnd   time.Time
	DrawTime         time.Time
	MaxWinners       uint32
}

// Create opens a lottery for an event owned by caller. The application
// window must close before the public sale opens.
func (s *Service) Create(ctx context.Context, caller domain.Identity, p CreateParams) (int64, error) {
	const op = "service.lottery.Create"

	var lotteryID int64

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx repository.Tx,
		after func(uow.AfterCommit),
	) error {
		if err := policy.Run(ctx, tx,
			policy.NotPaused(),
			policy.Organizer(caller),
		); err != nil {
			return err
		}

		if err := validation.RequireWindow(p.ApplicationStart, p.ApplicationEnd, p.DrawTime); err != nil {
			return err
		}

		if err := validation.RequireCount(uint64(p.MaxWinners), 1, validation.MaxWinners); err != nil {
			return err
		}

		e, err := tx.Events().Lock(ctx, p.EventID)
		if err != nil {
			return common.NotFound(err, domain.ErrEventNotFound)
		}

		switch {
		case e.Organizer != caller:
			return domain.ErrNotOrganizer
		case !e.IsActive:
			return domain.ErrEventInactive
		case !p.ApplicationEnd.Before(e.SaleStart):
			return domain.ErrLotteryAfterSale
		}

		undrawn, err := tx.Lotteries().HasUndrawn(ctx, e.ID)
		if err != nil {
			return err
		}

		if undrawn {
			return domain.ErrLotteryExists
		}

		id, err := tx.Lotteries().Create(ctx, &domain.Lottery{
			EventID:          e.ID,
			ApplicationStart: p.ApplicationStart.UTC(),
			ApplicationEnd:   p.ApplicationEnd.UTC(),
			DrawTime:         p.DrawTime.UTC(),
			MaxWinners:       p.MaxWinners,
		})
		if errors.Is(err, repository.ErrConflict) {
			return domain.ErrLotteryExists
		}
		if err != nil {
			return err
		}

		lotteryID = id

		after(s.deps.Emit(domain.Notification{
			Type:      domain.NotifyLotteryCreated,
			EventID:   e.ID,
			LotteryID: id,
			Subject:   caller,
			Attrs:     map[string]string{"max_winners": strconv.FormatUint(uint64(p.MaxWinners), 10)},
			At:        s.deps.Clock.Now(),
		}))

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, err)
	}

	return lotteryID, nil
}

// Apply enters applicant into an open lottery. Each identity applies once.
func (s *Service) Apply(ctx context.Context, applicant domain.Identity, lotteryID int64) error {
	const op = "service.lottery.Apply"

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx repository.Tx,
		after func(uow.AfterCommit),
	) error {
		if err := policy.Run(ctx, tx, policy.NotPaused()); err != nil {
			return err
		}

		l, err := tx.Lotteries().Lock(ctx, lotteryID)
		if err != nil {
			return common.NotFound(err, domain.ErrLotteryNotFound)
		}

		now := s.deps.Clock.Now()
		if l.Phase(now) != domain.LotteryApplicationsOpen {
			return domain.ErrApplicationsClosed
		}

		e, err := tx.Events().Get(ctx, l.EventID)
		if err != nil {
			return common.NotFound(err, domain.ErrEventNotFound)
		}

		if err := policy.Run(ctx, tx,
			policy.Participant(applicant),
			policy.RegionAllowed(e, applicant),
		); err != nil {
			return err
		}

		if err := tx.Lotteries().AddApplicant(ctx, l.ID, applicant, now); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return domain.ErrAlreadyApplied
			}
			return err
		}

		l.ApplicantCount++
		if err := tx.Lotteries().Update(ctx, l); err != nil {
			return err
		}

		after(s.deps.InvalidateLottery(l.ID))
		after(s.deps.Emit(domain.Notification{
			Type:      domain.NotifyLotteryEntered,
			EventID:   l.EventID,
			LotteryID: l.ID,
			Subject:   applicant,
			At:        now,
		}))

		return nil
	})
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

// Draw selects min(maxWinners, applicants) distinct winners and latches
// the lottery as drawn. Anyone may trigger the draw once its time has
// come; the outcome depends only on the entropy source.
func (s *Service) Draw(ctx context.Context, caller domain.Identity, lotteryID int64) ([]domain.Identity, error) {
	const op = "service.lottery.Draw"

	var winners []domain.Identity

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx repository.Tx,
		after func(uow.AfterCommit),
	) error {
		if err := policy.Run(ctx, tx, policy.NotPaused()); err != nil {
			return err
		}

		if err := validation.RequireIdentity(caller); err != nil {
			return err
		}

		l, err := tx.Lotteries().Lock(ctx, lotteryID)
		if err != nil {
			return common.NotFound(err, domain.ErrLotteryNotFound)
		}

		now := s.deps.Clock.Now()

		switch {
		case l.IsDrawn:
			return domain.ErrAlreadyDrawn
		case now.Before(l.DrawTime):
			return domain.ErrDrawTooEarly
		}

		applicants, err := tx.Lotteries().Applicants(ctx, l.ID)
		if err != nil {
			return err
		}

		if len(applicants) == 0 {
			return domain.ErrNoApplicants
		}

		nonce, err := tx.System().NextNonce(ctx)
		if err != nil {
			return err
		}

		seed, err := s.entropy.Seed()
		if err != nil {
			return err
		}

		stream, err := drawStream(seed, nonce, l.ID, caller)
		if err != nil {
			return err
		}

		picked, err := pickWinners(stream, applicants, int(l.MaxWinners))
		if err != nil {
			return err
		}

		if err := tx.Lotteries().SetWinners(ctx, l.ID, picked); err != nil {
			return err
		}

		l.IsDrawn = true
		l.WinnerCount = uint32(len(picked))
		if err := tx.Lotteries().Update(ctx, l); err != nil {
			return err
		}

		winners = picked

		after(s.deps.InvalidateLottery(l.ID))
		after(s.deps.Emit(domain.Notification{
			Type:      domain.NotifyLotteryCompleted,
			EventID:   l.EventID,
			LotteryID: l.ID,
			Subject:   caller,
			Attrs: map[string]string{
				"winners":    strconv.Itoa(len(picked)),
				"applicants": strconv.Itoa(len(applicants)),
			},
			At: now,
		}))

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return winners, nil
}

// Claim mints the ticket a winner is entitled to. The public sale window
// does not apply; payment of the original price and every other purchase
// rule do.
func (s *Service) Claim(
	ctx context.Context,
	winner domain.Identity,
	lotteryID int64,
	seatInfo string,
	paid decimal.Decimal,
) (uuid.UUID, error) {
	const op = "service.lottery.Claim"

	var ticketID uuid.UUID

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx repository.Tx,
		after func(uow.AfterCommit),
	) error {
		if err := policy.Run(ctx, tx, policy.NotPaused()); err != nil {
			return err
		}

		l, err := tx.Lotteries().Lock(ctx, lotteryID)
		if err != nil {
			return common.NotFound(err, domain.ErrLotteryNotFound)
		}

		if !l.IsDrawn {
			return domain.ErrNotDrawn
		}

		w, err := tx.Lotteries().Winner(ctx, l.ID, winner)
		if err != nil {
			return common.NotFound(err, domain.ErrNotWinner)
		}

		if w.Claimed {
			return domain.ErrAlreadyClaimed
		}

		id, err := s.tickets.IssueInTx(ctx, tx, after, tickets.IssueRequest{
			Buyer:           winner,
			EventID:         l.EventID,
			SeatInfo:        seatInfo,
			Paid:            paid,
			WaiveSaleWindow: true,
		})
		if err != nil {
			return err
		}

		if err := tx.Lotteries().MarkClaimed(ctx, l.ID, winner, id); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return domain.ErrAlreadyClaimed
			}
			return err
		}

		ticketID = id

		after(s.deps.InvalidateLottery(l.ID))

		return nil
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s:%w", op, err)
	}

	return ticketID, nil
}
