package tickets

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kirinyoku/fairtix/internal/domain"
	"github.com/kirinyoku/fairtix/internal/policy"
	"github.com/kirinyoku/fairtix/internal/repository"
	"github.com/kirinyoku/fairtix/internal/service/common"
	"github.com/kirinyoku/fairtix/internal/uow"
	"github.com/kirinyoku/fairtix/internal/validation"
)

// RefundQuote splits a refund of purchasePrice between the holder and the
// fee recipient.
type RefundQuote struct {
	Fee       decimal.Decimal `json:"fee"`
	Penalty   decimal.Decimal `json:"penalty"`
	Deduction decimal.Decimal `json:"deduction"`
	Payout    decimal.Decimal `json:"payout"`
}

// QuoteRefund applies the refund fee plus a per-transfer penalty, capping
// the total deduction at half of the purchase price.
func QuoteRefund(purchasePrice decimal.Decimal, refundFeeBps uint32, transfers uint8) RefundQuote {
	q := RefundQuote{
		Fee:     validation.Bps(purchasePrice, refundFeeBps),
		Penalty: validation.Bps(purchasePrice, TransferPenaltyBps*uint32(transfers)),
	}

	q.Deduction = decimal.Min(q.Fee.Add(q.Penalty), purchasePrice.Div(decimal.NewFromInt(2)))
	q.Payout = purchasePrice.Sub(q.Deduction)
	if q.Payout.IsNegative() {
		q.Payout = decimal.Zero
	}

	return q
}

// Refund burns ticketID and pays its holder the last purchase price minus
// the refund deduction.
//
// Parameters:
//   - ctx: request-scoped context.
//   - holder: current holder of the ticket.
//   - ticketID: ID of the ticket.
//
// Returns:
//   - RefundQuote: the amounts paid out.
//   - error: domain.ErrNotRefundable if the event does not allow refunds.
//   - error: domain.ErrRefundDeadlinePassed within 48h of the event.
func (s *Service) Refund(ctx context.Context, holder domain.Identity, ticketID uuid.UUID) (RefundQuote, error) {
	const op = "service.tickets.Refund"

	var quote RefundQuote

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx repository.Tx,
		after func(uow.AfterCommit),
	) error {
		if err := policy.Run(ctx, tx, policy.NotPaused()); err != nil {
			return err
		}

		t, err := lockHeld(ctx, tx, ticketID, holder)
		if err != nil {
			return err
		}

		e, err := tx.Events().Lock(ctx, t.EventID)
		if err != nil {
			return common.NotFound(err, domain.ErrEventNotFound)
		}

		now := s.deps.Clock.Now()

		switch {
		case !e.Refundable:
			return domain.ErrNotRefundable
		case t.IsUsed:
			return domain.ErrAlreadyUsed
		case now.After(e.EventDate.Add(-RefundCutoff)):
			return domain.ErrRefundDeadlinePassed
		}

		st, err := tx.System().Get(ctx)
		if err != nil {
			return err
		}

		quote = QuoteRefund(t.PurchasePrice, st.RefundFeeBps, t.TransferCount)

		t.Burned = true
		if err := tx.Tickets().Update(ctx, t); err != nil {
			return err
		}

		if err := tx.Registry().Burn(ctx, t.ID, holder); err != nil {
			return err
		}

		e.TicketsSold = validation.SubSat(e.TicketsSold, 1)
		if err := tx.Events().Update(ctx, e); err != nil {
			return err
		}

		bought, err := tx.Events().PurchaseCount(ctx, e.ID, holder)
		if err != nil {
			return err
		}

		if err := tx.Events().SetPurchaseCount(ctx, e.ID, holder, validation.SubSat(bought, 1)); err != nil {
			return err
		}

		if err := pay(ctx, tx, holder, quote.Payout); err != nil {
			return err
		}

		if err := pay(ctx, tx, st.FeeRecipient, quote.Deduction); err != nil {
			return err
		}

		p, err := policy.LockProfile(ctx, tx, holder)
		if err != nil {
			return err
		}

		p.Reputation = validation.SubSat(p.Reputation, policy.RefundPenalty)
		if err := tx.Users().Upsert(ctx, p); err != nil {
			return err
		}

		after(s.deps.InvalidateEvent(e.ID))
		after(s.deps.Emit(domain.Notification{
			Type:     domain.NotifyTicketRefunded,
			EventID:  e.ID,
			TicketID: t.ID.String(),
			Subject:  holder,
			Attrs: map[string]string{
				"payout":    quote.Payout.String(),
				"deduction": quote.Deduction.String(),
			},
			At: now,
		}))

		return nil
	})
	if err != nil {
		return RefundQuote{}, fmt.Errorf("%s:%w", op, err)
	}

	return quote, nil
}
