// Package policy evaluates the preconditions that guard every mutating
// operation. Checks run in the order given and the first failure wins, so
// callers control which rejection a request with several defects receives.
package policy

import (
	"context"
	"errors"
	"slices"

	"github.com/kirinyoku/fairtix/internal/domain"
	"github.com/kirinyoku/fairtix/internal/repository"
)

const (
	DefaultReputation = 100
	MaxReputation     = 1000
	MinReputation     = 10

	DefaultPurchaseLimit = 2

	PurchaseReward   = 1
	ResalePenalty    = 2
	RefundPenalty    = 5
	MaxPenaltyPoints = MaxReputation
)

// Check is a single precondition evaluated inside an open transaction.
type Check func(ctx context.Context, tx repository.Tx) error

func Run(ctx context.Context, tx repository.Tx, checks ...Check) error {
	for _, c := range checks {
		if err := c(ctx, tx); err != nil {
			return err
		}
	}
	return nil
}

func NotPaused() Check {
	return func(ctx context.Context, tx repository.Tx) error {
		st, err := tx.System().Get(ctx)
		if err != nil {
			return err
		}
		if st.Paused {
			return domain.ErrSystemPaused
		}
		return nil
	}
}

func Admin(caller domain.Identity) Check {
	return func(ctx context.Context, tx repository.Tx) error {
		st, err := tx.System().Get(ctx)
		if err != nil {
			return err
		}
		if caller.IsZero() || caller != st.Owner {
			return domain.ErrNotAdmin
		}
		return nil
	}
}

func Organizer(caller domain.Identity) Check {
	return func(ctx context.Context, tx repository.Tx) error {
		p, err := Profile(ctx, tx, caller)
		if err != nil {
			return err
		}
		if !p.IsOrganizer {
			return domain.ErrNotOrganizer
		}
		if p.IsBanned {
			return domain.ErrBanned
		}
		return nil
	}
}

// Participant admits verified, unbanned identities in good standing.
func Participant(id domain.Identity) Check {
	return func(ctx context.Context, tx repository.Tx) error {
		p, err := Profile(ctx, tx, id)
		if err != nil {
			return err
		}
		if !p.IsVerified {
			return domain.ErrNotVerified
		}
		if p.IsBanned {
			return domain.ErrBanned
		}
		if p.Reputation < MinReputation {
			return domain.ErrLowReputation
		}
		return nil
	}
}

// Recipient admits verified, unbanned identities regardless of reputation.
func Recipient(id domain.Identity) Check {
	return func(ctx context.Context, tx repository.Tx) error {
		p, err := Profile(ctx, tx, id)
		if err != nil {
			return err
		}
		if !p.IsVerified {
			return domain.ErrNotVerified
		}
		if p.IsBanned {
			return domain.ErrBanned
		}
		return nil
	}
}

func NotBanned(id domain.Identity) Check {
	return func(ctx context.Context, tx repository.Tx) error {
		p, err := Profile(ctx, tx, id)
		if err != nil {
			return err
		}
		if p.IsBanned {
			return domain.ErrBanned
		}
		return nil
	}
}

// RegionAllowed admits id to e when the event has no region restriction
// or the user's registered region is listed.
func RegionAllowed(e *domain.Event, id domain.Identity) Check {
	return func(ctx context.Context, tx repository.Tx) error {
		if len(e.AllowedRegions) == 0 {
			return nil
		}
		p, err := Profile(ctx, tx, id)
		if err != nil {
			return err
		}
		if p.Region == "" || !slices.Contains(e.AllowedRegions, p.Region) {
			return domain.ErrRegionNotAllowed
		}
		return nil
	}
}

// Profile returns the stored profile of id, or a blank unverified profile
// for identities the directory has never seen.
func Profile(ctx context.Context, tx repository.Tx, id domain.Identity) (*domain.UserProfile, error) {
	p, err := tx.Users().Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return &domain.UserProfile{Identity: id}, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// LockProfile is Profile under the row lock.
func LockProfile(ctx context.Context, tx repository.Tx, id domain.Identity) (*domain.UserProfile, error) {
	p, err := tx.Users().Lock(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return &domain.UserProfile{Identity: id}, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// PurchaseLimit is the per-event cap that applies to p.
func PurchaseLimit(p *domain.UserProfile, fallback uint32) uint32 {
	if p.PurchaseLimit > 0 {
		return p.PurchaseLimit
	}
	if fallback == 0 {
		return DefaultPurchaseLimit
	}
	return fallback
}
