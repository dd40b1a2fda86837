package tickets

import (
	"context"
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
	"github.com/kirinyoku/fairtix/internal/uow"
	"github.com/kirinyoku/fairtix/internal/validation"
)

// Resell transfers ticketID from seller to the paying recipient to.
//
// Parameters:
//   - ctx: request-scoped context.
//   - seller: current holder of the ticket.
//   - ticketID: ID of the ticket.
//   - to: recipient; must be verified and not banned.
//   - price: agreed resale price, capped by the event's max resale price.
//   - paid: amount paid by the recipient; must equal price.
//
// Returns:
//   - error: domain.ErrNotCurrentHolder if seller does not hold the ticket.
//   - error: domain.ErrCooldownNotMet, domain.ErrPriceCapExceeded,
//     domain.ErrTransferLimit and the other resale policy violations.
func (s *Service) Resell(
	ctx context.Context,
	seller domain.Identity,
	ticketID uuid.UUID,
	to domain.Identity,
	price, paid decimal.Decimal,
) error {
	const op = "service.tickets.Resell"

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx repository.Tx,
		after func(uow.AfterCommit),
	) error {
		if err := policy.Run(ctx, tx, policy.NotPaused()); err != nil {
			return err
		}

		t, err := lockHeld(ctx, tx, ticketID, seller)
		if err != nil {
			return err
		}

		if err := validation.RequireIdentity(to); err != nil {
			return err
		}

		if to == seller {
			return domain.ErrSelfTransfer
		}

		if err := policy.Run(ctx, tx,
			policy.Recipient(to),
			policy.NotBanned(seller),
		); err != nil {
			return err
		}

		if err := validation.RequirePositive(price); err != nil {
			return err
		}

		if !paid.Equal(price) {
			return domain.ErrIncorrectPayment
		}

		e, err := tx.Events().Get(ctx, t.EventID)
		if err != nil {
			return common.NotFound(err, domain.ErrEventNotFound)
		}

		now := s.deps.Clock.Now()
		if err := checkResale(e, t, price, now); err != nil {
			return err
		}

		st, err := tx.System().Get(ctx)
		if err != nil {
			return err
		}

		fee := validation.Bps(price, PlatformFeeBps)
		proceeds := price.Sub(fee)

		if err := tx.Tickets().AppendTransfer(ctx, t.ID, domain.TransferRecord{
			From:      seller,
			To:        to,
			Price:     price,
			Timestamp: now,
		}); err != nil {
			return err
		}

		t.TransferCount++
		t.PurchasePrice = price
		t.PurchaseTime = now
		t.ResaleWindow = domain.ResaleWindow{}
		if err := tx.Tickets().Update(ctx, t); err != nil {
			return err
		}

		if err := tx.Registry().Transfer(ctx, t.ID, seller, to); err != nil {
			if errors.Is(err, repository.ErrNotHolder) {
				return domain.ErrNotCurrentHolder
			}
			return err
		}

		if err := tx.Ledger().Collect(ctx, to, price); err != nil {
			return err
		}

		if err := pay(ctx, tx, seller, proceeds); err != nil {
			return err
		}

		if err := pay(ctx, tx, st.FeeRecipient, fee); err != nil {
			return err
		}

		sp, err := policy.LockProfile(ctx, tx, seller)
		if err != nil {
			return err
		}

		sp.TransferCount = validation.AddSat(sp.TransferCount, 1, math.MaxUint32)
		sp.Reputation = validation.SubSat(sp.Reputation, policy.ResalePenalty)
		if err := tx.Users().Upsert(ctx, sp); err != nil {
			return err
		}

		after(s.deps.Emit(domain.Notification{
			Type:     domain.NotifyTicketTransferred,
			EventID:  t.EventID,
			TicketID: t.ID.String(),
			Subject:  to,
			Attrs: map[string]string{
				"from":           string(seller),
				"to":             string(to),
				"price":          price.String(),
				"fee":            fee.String(),
				"transfer_count": strconv.Itoa(int(t.TransferCount)),
			},
			At: now,
		}))

		return nil
	})
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

// checkResale applies the event and ticket rules of a resale in order.
func checkResale(e *domain.Event, t *domain.Ticket, price decimal.Decimal, now time.Time) error {
	switch {
	case !e.Transferable:
		return domain.ErrNotTransferable
	case t.IsUsed:
		return domain.ErrAlreadyUsed
	case !now.Before(e.EventDate):
		return domain.ErrEventPassed
	case now.Sub(t.PurchaseTime) < TransferCooldown:
		return domain.ErrCooldownNotMet
	case price.GreaterThan(e.MaxResalePrice):
		return domain.ErrPriceCapExceeded
	case t.TransferCount >= MaxTransfers:
		return domain.ErrTransferLimit
	case t.ResaleWindow.Enabled && now.After(t.ResaleWindow.EndTime):
		return domain.ErrOutsideResaleWindow
	case t.TransferCount > 0 && price.GreaterThan(t.PurchasePrice):
		return domain.ErrResaleMarkup
	}
	return nil
}

// EnableTimeLimitedResale opens a resale window of the given duration on a
// ticket held by caller. Resales outside the window are rejected until the
// next transfer clears it.
func (s *Service) EnableTimeLimitedResale(
	ctx context.Context,
	caller domain.Identity,
	ticketID uuid.UUID,
	duration time.Duration,
) (time.Time, error) {
	const op = "service.tickets.EnableTimeLimitedResale"

	var end time.Time

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx repository.Tx,
		after func(uow.AfterCommit),
	) error {
		if err := policy.Run(ctx, tx, policy.NotPaused()); err != nil {
			return err
		}

		t, err := lockHeld(ctx, tx, ticketID, caller)
		if err != nil {
			return err
		}

		if duration <= 0 || duration > MaxResaleWindow {
			return domain.ErrInvalidDuration
		}

		if t.IsUsed {
			return domain.ErrAlreadyUsed
		}

		e, err := tx.Events().Get(ctx, t.EventID)
		if err != nil {
			return common.NotFound(err, domain.ErrEventNotFound)
		}

		now := s.deps.Clock.Now()
		end = now.Add(duration)
		if !end.Before(e.EventDate) {
			return domain.ErrWindowPastEvent
		}

		t.ResaleWindow = domain.ResaleWindow{Enabled: true, EndTime: end}
		if err := tx.Tickets().Update(ctx, t); err != nil {
			return err
		}

		after(s.deps.Emit(domain.Notification{
			Type:     domain.NotifyTimeLimitedResaleEnabled,
			EventID:  t.EventID,
			TicketID: t.ID.String(),
			Subject:  caller,
			Attrs:    map[string]string{"end_time": end.Format(time.RFC3339)},
			At:       now,
		}))

		return nil
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("%s:%w", op, err)
	}

	return end, nil
}
