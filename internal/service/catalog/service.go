package catalog

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

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

type CreateEventParams struct {
	Name           string
	OriginalPrice  decimal.Decimal
	MaxResalePrice decimal.Decimal
	MaxTickets     uint32
	SaleStart      time.Time
	SaleEnd        time.Time
	EventDate      time.Time
	Transferable   bool
	Refundable     bool
	AllowedRegions []string
}

// CreateEvent registers a new event owned by caller.
//
// Parameters:
//   - ctx: request-scoped context.
//   - caller: identity of the organizer creating the event.
//   - p: event parameters.
//
// Returns:
//   - int64: the ID of the created event.
//   - error: domain.ErrNotOrganizer if caller lacks the organizer role.
//   - error: domain.ErrInvalidSchedule if the sale window is inconsistent.
//   - error: domain.ErrInvalidPriceBound if the resale cap is out of bounds.
func (s *Service) CreateEvent(ctx context.Context, caller domain.Identity, p CreateEventParams) (int64, error) {
	const op = "service.catalog.CreateEvent"

	var eventID int64

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

		if err := validateEvent(p); err != nil {
			return err
		}

		now := s.deps.Clock.Now()
		e := &domain.Event{
			Organizer:      caller,
			Name:           p.Name,
			OriginalPrice:  p.OriginalPrice,
			MaxResalePrice: p.MaxResalePrice,
			MaxTickets:     p.MaxTickets,
			SaleStart:      p.SaleStart.UTC(),
			SaleEnd:        p.SaleEnd.UTC(),
			EventDate:      p.EventDate.UTC(),
			Transferable:   p.Transferable,
			Refundable:     p.Refundable,
			IsActive:       true,
			AllowedRegions: normalizeRegions(p.AllowedRegions),
			CreatedAt:      now,
		}

		id, err := tx.Events().Create(ctx, e)
		if err != nil {
			return err
		}

		eventID = id

		after(s.deps.Emit(domain.Notification{
			Type:    domain.NotifyEventCreated,
			EventID: id,
			Subject: caller,
			Attrs: map[string]string{
				"name":           p.Name,
				"original_price": p.OriginalPrice.String(),
				"max_tickets":    strconv.FormatUint(uint64(p.MaxTickets), 10),
			},
			At: now,
		}))

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, err)
	}

	return eventID, nil
}

func validateEvent(p CreateEventParams) error {
	if err := validation.RequireName(strings.TrimSpace(p.Name)); err != nil {
		return err
	}
	if err := validation.RequireCount(uint64(p.MaxTickets), 1, validation.MaxTicketsPerEvent); err != nil {
		return err
	}
	if err := validation.RequirePositive(p.OriginalPrice); err != nil {
		return err
	}
	if err := validation.RequireSchedule(p.SaleStart, p.SaleEnd, p.EventDate); err != nil {
		return err
	}
	if err := validation.RequirePriceBound(p.OriginalPrice, p.MaxResalePrice); err != nil {
		return err
	}
	return validation.RequireRegions(p.AllowedRegions)
}

// DeactivateEvent stops all further sales of an event. It is one-way.
func (s *Service) DeactivateEvent(ctx context.Context, caller domain.Identity, eventID int64) error {
	const op = "service.catalog.DeactivateEvent"

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx repository.Tx,
		after func(uow.AfterCommit),
	) error {
		e, err := s.ownedEvent(ctx, tx, caller, eventID)
		if err != nil {
			return err
		}

		if !e.IsActive {
			return domain.ErrEventInactive
		}

		e.IsActive = false
		if err := tx.Events().Update(ctx, e); err != nil {
			return err
		}

		after(s.deps.InvalidateEvent(eventID))
		after(s.deps.Emit(domain.Notification{
			Type:    domain.NotifyEventDeactivated,
			EventID: eventID,
			Subject: caller,
			At:      s.deps.Clock.Now(),
		}))

		return nil
	})
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

// SetEventRegions replaces the region allow-list of an event. An empty
// list lifts the restriction.
func (s *Service) SetEventRegions(ctx context.Context, caller domain.Identity, eventID int64, regions []string) error {
	const op = "service.catalog.SetEventRegions"

	if err := validation.RequireRegions(regions); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx repository.Tx,
		after func(uow.AfterCommit),
	) error {
		e, err := s.ownedEvent(ctx, tx, caller, eventID)
		if err != nil {
			return err
		}

		e.AllowedRegions = normalizeRegions(regions)
		if err := tx.Events().Update(ctx, e); err != nil {
			return err
		}

		after(s.deps.InvalidateEvent(eventID))
		after(s.deps.Emit(domain.Notification{
			Type:    domain.NotifyRegionUpdated,
			EventID: eventID,
			Subject: caller,
			Attrs:   map[string]string{"regions": strings.Join(e.AllowedRegions, ",")},
			At:      s.deps.Clock.Now(),
		}))

		return nil
	})
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

// ownedEvent locks eventID after checking caller is its organizer.
func (s *Service) ownedEvent(ctx context.Context, tx repository.Tx, caller domain.Identity, eventID int64) (*domain.Event, error) {
	if err := policy.Run(ctx, tx, policy.Organizer(caller)); err != nil {
		return nil, err
	}

	e, err := tx.Events().Lock(ctx, eventID)
	if err != nil {
		return nil, common.NotFound(err, domain.ErrEventNotFound)
	}

	if e.Organizer != caller {
		return nil, domain.ErrNotOrganizer
	}

	return e, nil
}

func normalizeRegions(regions []string) []string {
	if len(regions) == 0 {
		return nil
	}
	out := slices.Clone(regions)
	slices.Sort(out)
	return slices.Compact(out)
}
