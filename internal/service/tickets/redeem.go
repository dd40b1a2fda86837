package tickets

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/kirinyoku/fairtix/internal/domain"
	"github.com/kirinyoku/fairtix/internal/policy"
	"github.com/kirinyoku/fairtix/internal/repository"
	"github.com/kirinyoku/fairtix/internal/service/common"
	"github.com/kirinyoku/fairtix/internal/signature"
	"github.com/kirinyoku/fairtix/internal/uow"
)

// Redeem marks ticketID used at the venue. The holder proves possession by
// signing signature.RedemptionDigest(ticketID, secret); each secret is
// accepted once across all tickets.
func (s *Service) Redeem(
	ctx context.Context,
	caller domain.Identity,
	ticketID uuid.UUID,
	secret, envelope []byte,
) error {
	const op = "service.tickets.Redeem"

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

		if len(secret) == 0 {
			return domain.ErrEmptySecret
		}

		t, err := tx.Tickets().Lock(ctx, ticketID)
		if err != nil {
			return common.NotFound(err, domain.ErrTicketNotFound)
		}

		if t.Burned {
			return domain.ErrTicketNotFound
		}

		key := signature.SecretKey(secret)
		used, err := tx.Tickets().SecretUsed(ctx, key)
		if err != nil {
			return err
		}

		if used {
			return domain.ErrSecretReplay
		}

		if t.IsUsed {
			return domain.ErrAlreadyUsed
		}

		e, err := tx.Events().Get(ctx, t.EventID)
		if err != nil {
			return common.NotFound(err, domain.ErrEventNotFound)
		}

		now := s.deps.Clock.Now()
		if now.Before(e.EventDate.Add(-RedeemOpensBefore)) || now.After(e.EventDate.Add(RedeemClosesAfter)) {
			return domain.ErrOutsideRedemptionWindow
		}

		signer, err := s.verifier.RecoverSigner(signature.RedemptionDigest(ticketID, secret), envelope)
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrInvalidSignature, err)
		}

		holder, err := tx.Registry().HolderOf(ctx, ticketID)
		if err != nil {
			return common.NotFound(err, domain.ErrTicketNotFound)
		}

		if signer != holder {
			return domain.ErrSignerNotHolder
		}

		t.IsUsed = true
		if err := tx.Tickets().Update(ctx, t); err != nil {
			return err
		}

		if err := tx.Tickets().MarkSecretUsed(ctx, key, ticketID, now); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return domain.ErrSecretReplay
			}
			return err
		}

		after(s.deps.Emit(domain.Notification{
			Type:     domain.NotifyTicketUsed,
			EventID:  t.EventID,
			TicketID: t.ID.String(),
			Subject:  holder,
			Attrs:    map[string]string{"redeemed_by": string(caller)},
			At:       now,
		}))

		return nil
	})
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}
