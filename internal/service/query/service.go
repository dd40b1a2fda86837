package query

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kirinyoku/fairtix/internal/domain"
	"github.com/kirinyoku/fairtix/internal/policy"
	redisx "github.com/kirinyoku/fairtix/internal/redis"
	"github.com/kirinyoku/fairtix/internal/repository"
	redisrepo "github.com/kirinyoku/fairtix/internal/repository/redis"
	"github.com/kirinyoku/fairtix/internal/service/common"
)

type Config struct {
	EventSummaryTTL   time.Duration
	LotterySummaryTTL time.Duration
}

type Service struct {
	deps common.Deps
	cfg  Config
}

func New(deps common.Deps, cfg Config) *Service {
	if cfg.EventSummaryTTL <= 0 {
		cfg.EventSummaryTTL = 60 * time.Second
	}

	if cfg.LotterySummaryTTL <= 0 {
		cfg.LotterySummaryTTL = 15 * time.Second
	}

	return &Service{
		deps: deps.WithDefaults(),
		cfg:  cfg,
	}
}

// read runs fn in its own transaction.
func (s *Service) read(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	return s.deps.Store.RunTx(ctx, fn)
}

// GetEvent retrieves an event by its ID, utilizing a caching layer to improve performance.
//
// Parameters:
//   - ctx: request-scoped context.
//   - id: ID of the event to retrieve.
//
// Returns:
//   - *domain.Event: the retrieved event, or nil if not found.
//   - error: domain.ErrEventNotFound if the event is not found.
func (s *Service) GetEvent(ctx context.Context, id int64) (*domain.Event, error) {
	const op = "service.query.GetEvent"

	event, err := redisrepo.GetOrSetJSON(
		ctx,
		s.deps.Cache,
		redisx.KeyEventSummary(id),
		s.cfg.EventSummaryTTL,
		func(ctx context.Context) (domain.Event, error) {
			var out domain.Event
			err := s.read(ctx, func(ctx context.Context, tx repository.Tx) error {
				e, err := tx.Events().Get(ctx, id)
				if err != nil {
					return common.NotFound(err, domain.ErrEventNotFound)
				}
				out = *e
				return nil
			})
			return out, err
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &event, nil
}

type TicketView struct {
	domain.Ticket
	Holder domain.Identity `json:"holder,omitempty"`
}

// GetTicket returns a ticket with its current holder. Refunded tickets
// have no holder.
func (s *Service) GetTicket(ctx context.Context, id uuid.UUID) (*TicketView, error) {
	const op = "service.query.GetTicket"

	var out TicketView

	err := s.read(ctx, func(ctx context.Context, tx repository.Tx) error {
		t, err := tx.Tickets().Get(ctx, id)
		if err != nil {
			return common.NotFound(err, domain.ErrTicketNotFound)
		}

		out.Ticket = *t
		if t.Burned {
			return nil
		}

		holder, err := tx.Registry().HolderOf(ctx, id)
		if err != nil {
			return common.NotFound(err, domain.ErrTicketNotFound)
		}

		out.Holder = holder

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &out, nil
}

// TransferHistory returns the resale trail of a ticket, oldest first.
func (s *Service) TransferHistory(ctx context.Context, id uuid.UUID) ([]domain.TransferRecord, error) {
	const op = "service.query.TransferHistory"

	var out []domain.TransferRecord

	err := s.read(ctx, func(ctx context.Context, tx repository.Tx) error {
		if _, err := tx.Tickets().Get(ctx, id); err != nil {
			return common.NotFound(err, domain.ErrTicketNotFound)
		}

		records, err := tx.Tickets().Transfers(ctx, id)
		if err != nil {
			return err
		}

		out = records

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

type LotteryView struct {
	domain.Lottery
	Phase   domain.LotteryPhase `json:"phase"`
	Winners []domain.Winner     `json:"winners,omitempty"`
}

// GetLottery returns a lottery with its winners. The phase is derived at
// read time so a cached summary never reports a stale phase.
func (s *Service) GetLottery(ctx context.Context, id int64) (*LotteryView, error) {
	const op = "service.query.GetLottery"

	view, err := redisrepo.GetOrSetJSON(
		ctx,
		s.deps.Cache,
		redisx.KeyLotterySummary(id),
		s.cfg.LotterySummaryTTL,
		func(ctx context.Context) (LotteryView, error) {
			var out LotteryView
			err := s.read(ctx, func(ctx context.Context, tx repository.Tx) error {
				l, err := tx.Lotteries().Get(ctx, id)
				if err != nil {
					return common.NotFound(err, domain.ErrLotteryNotFound)
				}

				out.Lottery = *l

				winners, err := tx.Lotteries().Winners(ctx, id)
				if err != nil {
					return err
				}

				out.Winners = winners

				return nil
			})
			return out, err
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	view.Phase = view.Lottery.Phase(s.deps.Clock.Now())

	return &view, nil
}

// Profile returns the directory entry of id. Unknown identities get a
// blank, unverified profile.
func (s *Service) Profile(ctx context.Context, id domain.Identity) (*domain.UserProfile, error) {
	const op = "service.query.Profile"

	var out *domain.UserProfile

	err := s.read(ctx, func(ctx context.Context, tx repository.Tx) error {
		p, err := policy.Profile(ctx, tx, id)
		if err != nil {
			return err
		}

		out = p

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

func (s *Service) Balance(ctx context.Context, account domain.Identity) (decimal.Decimal, error) {
	const op = "service.query.Balance"

	var out decimal.Decimal

	err := s.read(ctx, func(ctx context.Context, tx repository.Tx) error {
		b, err := tx.Ledger().Balance(ctx, account)
		if err != nil {
			return err
		}

		out = b

		return nil
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

func (s *Service) TicketsOf(ctx context.Context, holder domain.Identity) ([]uuid.UUID, error) {
	const op = "service.query.TicketsOf"

	var out []uuid.UUID

	err := s.read(ctx, func(ctx context.Context, tx repository.Tx) error {
		ids, err := tx.Registry().TokensOf(ctx, holder)
		if err != nil {
			return err
		}

		out = ids

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}
