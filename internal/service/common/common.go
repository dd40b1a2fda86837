// Package common holds the dependencies and helpers shared by the domain
// services.
package common

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/kirinyoku/fairtix/internal/clock"
	"github.com/kirinyoku/fairtix/internal/domain"
	"github.com/kirinyoku/fairtix/internal/notify"
	"github.com/kirinyoku/fairtix/internal/repository"
	redisrepo "github.com/kirinyoku/fairtix/internal/repository/redis"
	"github.com/kirinyoku/fairtix/internal/uow"
)

type Deps struct {
	Store     repository.Store
	Clock     clock.Clock
	Cache     *redisrepo.Cache
	Publisher notify.Publisher
	Logger    *slog.Logger
}

// WithDefaults fills the optional dependencies.
func (d Deps) WithDefaults() Deps {
	if d.Clock == nil {
		d.Clock = clock.Real()
	}
	if d.Logger == nil {
		d.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return d
}

func (d Deps) UoW() *uow.UoW {
	return uow.NewUoW(d.Store)
}

func (d Deps) Emit(n domain.Notification) uow.AfterCommit {
	return notify.Emit(d.Publisher, d.Logger, n)
}

func (d Deps) InvalidateEvent(eventID int64) uow.AfterCommit {
	return func(ctx context.Context) {
		if err := d.Cache.InvalidateEvent(ctx, eventID); err != nil {
			d.Logger.Warn("failed to invalidate event cache", "event_id", eventID, "error", err)
		}
	}
}

func (d Deps) InvalidateLottery(lotteryID int64) uow.AfterCommit {
	return func(ctx context.Context) {
		if err := d.Cache.InvalidateLottery(ctx, lotteryID); err != nil {
			d.Logger.Warn("failed to invalidate lottery cache", "lottery_id", lotteryID, "error", err)
		}
	}
}

// NotFound replaces a repository miss with the domain error notFound.
func NotFound(err, notFound error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return notFound
	}
	return err
}
