package postgresrepo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kirinyoku/fairtix/internal/repository"
)

type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

const maxTxAttempts = 3

type Store struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

type txKey struct{ s *Store }

func NewStore(pool *pgxpool.Pool, lockTimeout time.Duration) *Store {
	if lockTimeout <= 0 {
		lockTimeout = 5 * time.Second
	}

	return &Store{
		pool:        pool,
		lockTimeout: lockTimeout,
	}
}

// RunTx runs fn in a Serializable transaction, retrying serialization
// failures and deadlocks. Row locks taken by the repositories' Lock methods
// wait at most lockTimeout.
func (s *Store) RunTx(
	ctx context.Context,
	fn func(ctx context.Context, tx repository.Tx) error,
) error {
	const op = "postgresrepo.Store.RunTx"

	if ctx.Value(txKey{s}) != nil {
		return fmt.Errorf("%s:%w", op, repository.ErrReentrant)
	}

	var err error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err = s.runOnce(ctx, fn)
		if err == nil || !IsRetryable(err) {
			break
		}
	}
	if err != nil && isLockTimeout(err) {
		return fmt.Errorf("%s:%w", op, repository.ErrBusy)
	}

	return err
}

func (s *Store) runOnce(
	ctx context.Context,
	fn func(ctx context.Context, tx repository.Tx) error,
) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.Serializable,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return err
	}

	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds()),
	); err != nil {
		return err
	}

	if err := fn(context.WithValue(ctx, txKey{s}, true), &txView{s: s, db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

func (s *Store) Close() { s.pool.Close() }

// Migrate applies the embedded schema. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	const op = "postgresrepo.Store.Migrate"

	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

func (s *Store) Events() *EventRepo      { return &EventRepo{db: s.pool} }
func (s *Store) Tickets() *TicketRepo    { return &TicketRepo{db: s.pool} }
func (s *Store) Users() *UserRepo        { return &UserRepo{db: s.pool} }
func (s *Store) Lotteries() *LotteryRepo { return &LotteryRepo{db: s.pool} }
func (s *Store) System() *SystemRepo     { return &SystemRepo{db: s.pool} }
func (s *Store) Registry() *RegistryRepo { return &RegistryRepo{db: s.pool} }
func (s *Store) Ledger() *LedgerRepo     { return &LedgerRepo{db: s.pool} }

type txView struct {
	s  *Store
	db DB
}

func (t *txView) Events() repository.EventRepo       { return t.s.Events().With(t.db) }
func (t *txView) Tickets() repository.TicketRepo     { return t.s.Tickets().With(t.db) }
func (t *txView) Users() repository.UserRepo         { return t.s.Users().With(t.db) }
func (t *txView) Lotteries() repository.LotteryRepo  { return t.s.Lotteries().With(t.db) }
func (t *txView) System() repository.SystemRepo      { return t.s.System().With(t.db) }
func (t *txView) Registry() repository.TokenRegistry { return t.s.Registry().With(t.db) }
func (t *txView) Ledger() repository.Ledger          { return t.s.Ledger().With(t.db) }
