package uow

import (
	"context"
	"errors"
	"fmt"

	"github.com/kirinyoku/fairtix/internal/domain"
	"github.com/kirinyoku/fairtix/internal/repository"
)

// AfterCommit is a function that runs after a successful transaction commit.
type AfterCommit func(ctx context.Context)

// UoW represents a unit of work.
type UoW struct {
	store repository.Store
}

func NewUoW(store repository.Store) *UoW {
	return &UoW{store: store}
}

// Do runs fn inside the transaction. After a successful commit,
// it executes all after-commit hooks with the caller's context, outside
// the transaction. Lock timeouts and re-entrant calls are reported as
// domain conflicts.
func (u *UoW) Do(
	ctx context.Context,
	fn func(ctx context.Context, tx repository.Tx, after func(AfterCommit)) error,
) error {
	var hooks []AfterCommit

	err := u.store.RunTx(ctx, func(txCtx context.Context, tx repository.Tx) error {
		// The store may retry fn; only the committed attempt's hooks count.
		hooks = hooks[:0]
		return fn(txCtx, tx, func(h AfterCommit) {
			hooks = append(hooks, h)
		})
	})
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrBusy):
		return fmt.Errorf("%w: %w", domain.ErrBusy, err)
	case errors.Is(err, repository.ErrReentrant):
		return fmt.Errorf("%w: %w", domain.ErrReentrantCall, err)
	default:
		return err
	}

	for _, h := range hooks {
		h(ctx)
	}

	return nil
}
