// Package emergency exposes the administrator's controls over the whole
// system: the global pause, fee settings and treasury withdrawals.
package emergency

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/kirinyoku/fairtix/internal/domain"
	"github.com/kirinyoku/fairtix/internal/policy"
	"github.com/kirinyoku/fairtix/internal/repository"
	"github.com/kirinyoku/fairtix/internal/service/common"
	"github.com/kirinyoku/fairtix/internal/uow"
	"github.com/kirinyoku/fairtix/internal/validation"
)

const DefaultRefundFeeBps = 500

type Service struct {
	deps common.Deps
	uow  *uow.UoW
}

func New(deps common.Deps) *Service {
	deps = deps.WithDefaults()

	return &Service{
		deps: deps,
		uow:  deps.UoW(),
	}
}

type BootstrapParams struct {
	Owner        domain.Identity
	FeeRecipient domain.Identity
	RefundFeeBps uint32
}

// Bootstrap installs the initial system state. It is a no-op once an owner
// exists, so restarts never override runtime changes.
func (s *Service) Bootstrap(ctx context.Context, p BootstrapParams) error {
	const op = "service.emergency.Bootstrap"

	if err := validation.RequireIdentity(p.Owner); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	if p.FeeRecipient == "" {
		p.FeeRecipient = p.Owner
	}

	if err := validation.RequireIdentity(p.FeeRecipient); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	if p.RefundFeeBps > validation.MaxRefundFeeBps {
		return fmt.Errorf("%s:%w", op, domain.ErrInvalidFeeRate)
	}

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx repository.Tx,
		_ func(uow.AfterCommit),
	) error {
		st, err := tx.System().Lock(ctx)
		if err != nil {
			return err
		}

		if st.Owner != "" {
			return nil
		}

		st.Owner = p.Owner
		st.FeeRecipient = p.FeeRecipient
		st.RefundFeeBps = p.RefundFeeBps

		if err := tx.System().Update(ctx, st); err != nil {
			return err
		}

		return tx.Users().Upsert(ctx, &domain.UserProfile{
			Identity:    p.Owner,
			IsVerified:  true,
			IsOrganizer: true,
			Reputation:  policy.DefaultReputation,
		})
	})
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

// admin runs fn on the locked system state after checking caller is the
// administrator, then stores the state.
func (s *Service) admin(
	ctx context.Context,
	op string,
	caller domain.Identity,
	fn func(ctx context.Context, tx repository.Tx, st *domain.SystemState, after func(uow.AfterCommit)) error,
) error {
	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx repository.Tx,
		after func(uow.AfterCommit),
	) error {
		if err := policy.Run(ctx, tx, policy.Admin(caller)); err != nil {
			return err
		}

		st, err := tx.System().Lock(ctx)
		if err != nil {
			return err
		}

		if err := fn(ctx, tx, st, after); err != nil {
			return err
		}

		return tx.System().Update(ctx, st)
	})
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

func (s *Service) Pause(ctx context.Context, caller domain.Identity) error {
	return s.setPaused(ctx, "service.emergency.Pause", caller, true, domain.NotifySystemPaused)
}

func (s *Service) Unpause(ctx context.Context, caller domain.Identity) error {
	return s.setPaused(ctx, "service.emergency.Unpause", caller, false, domain.NotifySystemUnpaused)
}

func (s *Service) setPaused(ctx context.Context, op string, caller domain.Identity, paused bool, typ domain.NotificationType) error {
	return s.admin(ctx, op, caller,
		func(_ context.Context, _ repository.Tx, st *domain.SystemState, after func(uow.AfterCommit)) error {
			if st.Paused == paused {
				return nil
			}
			st.Paused = paused
			after(s.deps.Emit(domain.Notification{
				Type:    typ,
				Subject: caller,
				At:      s.deps.Clock.Now(),
			}))
			return nil
		})
}

func (s *Service) SetFeeRecipient(ctx context.Context, caller, recipient domain.Identity) error {
	const op = "service.emergency.SetFeeRecipient"

	return s.admin(ctx, op, caller,
		func(_ context.Context, _ repository.Tx, st *domain.SystemState, _ func(uow.AfterCommit)) error {
			if err := validation.RequireIdentity(recipient); err != nil {
				return err
			}
			st.FeeRecipient = recipient
			return nil
		})
}

func (s *Service) SetRefundFeeRate(ctx context.Context, caller domain.Identity, bps uint32) error {
	const op = "service.emergency.SetRefundFeeRate"

	return s.admin(ctx, op, caller,
		func(_ context.Context, _ repository.Tx, st *domain.SystemState, _ func(uow.AfterCommit)) error {
			if bps > validation.MaxRefundFeeBps {
				return domain.ErrInvalidFeeRate
			}
			st.RefundFeeBps = bps
			return nil
		})
}

// Withdraw pays amount from the treasury to to during normal operation.
func (s *Service) Withdraw(ctx context.Context, caller, to domain.Identity, amount decimal.Decimal) error {
	const op = "service.emergency.Withdraw"

	return s.admin(ctx, op, caller,
		func(ctx context.Context, tx repository.Tx, st *domain.SystemState, _ func(uow.AfterCommit)) error {
			if st.Paused {
				return domain.ErrSystemPaused
			}
			if err := validation.RequireIdentity(to); err != nil {
				return err
			}
			if err := validation.RequirePositive(amount); err != nil {
				return err
			}
			return payOut(ctx, tx, to, amount)
		})
}

// EmergencyWithdraw drains the whole treasury to to. It is only available
// while the system is paused.
func (s *Service) EmergencyWithdraw(ctx context.Context, caller, to domain.Identity) (decimal.Decimal, error) {
	const op = "service.emergency.EmergencyWithdraw"

	var drained decimal.Decimal

	err := s.admin(ctx, op, caller,
		func(ctx context.Context, tx repository.Tx, st *domain.SystemState, after func(uow.AfterCommit)) error {
			if !st.Paused {
				return domain.ErrNotPaused
			}
			if err := validation.RequireIdentity(to); err != nil {
				return err
			}

			balance, err := tx.Ledger().Balance(ctx, domain.Treasury)
			if err != nil {
				return err
			}

			if balance.IsPositive() {
				if err := payOut(ctx, tx, to, balance); err != nil {
					return err
				}
			}

			drained = balance

			after(s.deps.Emit(domain.Notification{
				Type:    domain.NotifyEmergencyWithdraw,
				Subject: to,
				Attrs:   map[string]string{"amount": balance.String()},
				At:      s.deps.Clock.Now(),
			}))

			return nil
		})
	if err != nil {
		return decimal.Zero, err
	}

	return drained, nil
}

func payOut(ctx context.Context, tx repository.Tx, to domain.Identity, amount decimal.Decimal) error {
	err := tx.Ledger().Pay(ctx, to, amount)
	if errors.Is(err, repository.ErrInsufficientFunds) {
		return domain.ErrInsufficientFunds
	}
	return err
}

type Status struct {
	domain.SystemState
	Treasury decimal.Decimal `json:"treasury"`
}

func (s *Service) Status(ctx context.Context) (*Status, error) {
	const op = "service.emergency.Status"

	var out Status

	err := s.deps.Store.RunTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		st, err := tx.System().Get(ctx)
		if err != nil {
			return err
		}

		balance, err := tx.Ledger().Balance(ctx, domain.Treasury)
		if err != nil {
			return err
		}

		out = Status{SystemState: *st, Treasury: balance}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &out, nil
}
