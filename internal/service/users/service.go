// Package users administers the user directory: verification, bans,
// reputation, regions, purchase limits and the organizer role.
package users

import (
	"context"
	"fmt"

	"github.com/kirinyoku/fairtix/internal/domain"
	"github.com/kirinyoku/fairtix/internal/policy"
	"github.com/kirinyoku/fairtix/internal/repository"
	"github.com/kirinyoku/fairtix/internal/service/common"
	"github.com/kirinyoku/fairtix/internal/uow"
	"github.com/kirinyoku/fairtix/internal/validation"
)

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

// mutate applies fn to the locked profile of target on behalf of the
// administrator and stores the result. fn may queue notifications.
func (s *Service) mutate(
	ctx context.Context,
	op string,
	caller, target domain.Identity,
	fn func(p *domain.UserProfile, emit func(domain.Notification)) error,
) error {
	if err := validation.RequireIdentity(target); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx repository.Tx,
		after func(uow.AfterCommit),
	) error {
		if err := policy.Run(ctx, tx, policy.Admin(caller)); err != nil {
			return err
		}

		p, err := policy.LockProfile(ctx, tx, target)
		if err != nil {
			return err
		}

		emit := func(n domain.Notification) {
			n.Subject = target
			n.At = s.deps.Clock.Now()
			after(s.deps.Emit(n))
		}

		if err := fn(p, emit); err != nil {
			return err
		}

		return tx.Users().Upsert(ctx, p)
	})
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

// Verify admits target to purchases, resales and lotteries. Only the first
// verification grants the default reputation; re-verifying after a revoke
// keeps the score earned so far.
func (s *Service) Verify(ctx context.Context, caller, target domain.Identity) error {
	return s.mutate(ctx, "service.users.Verify", caller, target,
		func(p *domain.UserProfile, emit func(domain.Notification)) error {
			if p.VerifiedAt.IsZero() {
				p.Reputation = policy.DefaultReputation
				p.VerifiedAt = s.deps.Clock.Now()
			}
			p.IsVerified = true
			emit(domain.Notification{Type: domain.NotifyUserWhitelisted})
			return nil
		})
}

func (s *Service) RevokeVerification(ctx context.Context, caller, target domain.Identity) error {
	return s.mutate(ctx, "service.users.RevokeVerification", caller, target,
		func(p *domain.UserProfile, _ func(domain.Notification)) error {
			p.IsVerified = false
			return nil
		})
}

func (s *Service) Ban(ctx context.Context, caller, target domain.Identity, reason string) error {
	return s.mutate(ctx, "service.users.Ban", caller, target,
		func(p *domain.UserProfile, emit func(domain.Notification)) error {
			p.IsBanned = true
			p.BanReason = reason
			emit(domain.Notification{
				Type:  domain.NotifyUserBlacklisted,
				Attrs: map[string]string{"reason": reason},
			})
			return nil
		})
}

// Unban lifts a ban and restores the default reputation.
func (s *Service) Unban(ctx context.Context, caller, target domain.Identity) error {
	return s.mutate(ctx, "service.users.Unban", caller, target,
		func(p *domain.UserProfile, emit func(domain.Notification)) error {
			p.IsBanned = false
			p.BanReason = ""
			p.Reputation = policy.DefaultReputation
			emit(domain.Notification{Type: domain.NotifyUserWhitelisted})
			return nil
		})
}

func (s *Service) SetPurchaseLimit(ctx context.Context, caller, target domain.Identity, limit uint32) error {
	return s.mutate(ctx, "service.users.SetPurchaseLimit", caller, target,
		func(p *domain.UserProfile, _ func(domain.Notification)) error {
			if err := validation.RequireCount(uint64(limit), 1, validation.MaxPurchaseLimit); err != nil {
				return err
			}
			p.PurchaseLimit = limit
			return nil
		})
}

func (s *Service) SetRegion(ctx context.Context, caller, target domain.Identity, region string) error {
	return s.mutate(ctx, "service.users.SetRegion", caller, target,
		func(p *domain.UserProfile, emit func(domain.Notification)) error {
			if err := validation.RequireRegion(region); err != nil {
				return err
			}
			p.Region = region
			emit(domain.Notification{
				Type:  domain.NotifyRegionUpdated,
				Attrs: map[string]string{"region": region},
			})
			return nil
		})
}

func (s *Service) GrantOrganizer(ctx context.Context, caller, target domain.Identity) error {
	return s.mutate(ctx, "service.users.GrantOrganizer", caller, target,
		func(p *domain.UserProfile, _ func(domain.Notification)) error {
			p.IsOrganizer = true
			return nil
		})
}

func (s *Service) RevokeOrganizer(ctx context.Context, caller, target domain.Identity) error {
	return s.mutate(ctx, "service.users.RevokeOrganizer", caller, target,
		func(p *domain.UserProfile, _ func(domain.Notification)) error {
			p.IsOrganizer = false
			return nil
		})
}

// Penalize lowers the reputation of target, saturating at zero.
func (s *Service) Penalize(ctx context.Context, caller, target domain.Identity, points uint32, reason string) error {
	const op = "service.users.Penalize"

	err := s.mutate(ctx, op, caller, target,
		func(p *domain.UserProfile, _ func(domain.Notification)) error {
			if points == 0 || points > policy.MaxPenaltyPoints {
				return domain.ErrInvalidPenaltySize
			}
			p.Reputation = validation.SubSat(p.Reputation, points)
			return nil
		})
	if err == nil {
		s.deps.Logger.Info("user penalized",
			"identity", target,
			"points", points,
			"reason", reason,
		)
	}

	return err
}
