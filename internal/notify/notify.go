// Package notify carries committed-operation notifications to observers.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/kirinyoku/fairtix/internal/domain"
	"github.com/kirinyoku/fairtix/internal/uow"
)

type Publisher interface {
	Publish(ctx context.Context, n domain.Notification) error
}

// Emit returns an after-commit hook publishing n. Publish failures are
// logged and never surface to the caller: the operation already committed.
func Emit(pub Publisher, logger *slog.Logger, n domain.Notification) uow.AfterCommit {
	return func(ctx context.Context) {
		if pub == nil {
			return
		}
		if err := pub.Publish(ctx, n); err != nil && logger != nil {
			logger.Warn("failed to publish notification",
				"type", n.Type,
				"error", err,
			)
		}
	}
}

// Fanout publishes to every non-nil publisher in order.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, n domain.Notification) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type Log struct {
	Logger *slog.Logger
}

func (l Log) Publish(_ context.Context, n domain.Notification) error {
	l.Logger.Info("notification",
		"type", n.Type,
		"event_id", n.EventID,
		"ticket_id", n.TicketID,
		"lottery_id", n.LotteryID,
		"subject", n.Subject,
	)
	return nil
}

// Recorder keeps every published notification in memory.
type Recorder struct {
	mu    sync.Mutex
	items []domain.Notification
}

func (r *Recorder) Publish(_ context.Context, n domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items = append(r.items, n)
	return nil
}

func (r *Recorder) All() []domain.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.items)
}

func (r *Recorder) OfType(t domain.NotificationType) []domain.Notification {
	var out []domain.Notification
	for _, n := range r.All() {
		if n.Type == t {
			out = append(out, n)
		}
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items = nil
}
