package postgresrepo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/kirinyoku/fairtix/internal/domain"
	"github.com/kirinyoku/fairtix/internal/repository"
)

type LedgerRepo struct {
	db DB
}

func (r *LedgerRepo) With(db DB) *LedgerRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *LedgerRepo) credit(ctx context.Context, account domain.Identity, amount decimal.Decimal) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO ledger_balances(account, balance) VALUES ($1, $2)
		 ON CONFLICT (account) DO UPDATE SET balance = ledger_balances.balance + EXCLUDED.balance`,
		string(account), amount,
	)
	return err
}

func (r *LedgerRepo) record(ctx context.Context, account domain.Identity, amount decimal.Decimal, kind string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO ledger_entries(account, amount, kind) VALUES ($1, $2, $3)`,
		string(account), amount, kind,
	)
	return err
}

func (r *LedgerRepo) Collect(ctx context.Context, from domain.Identity, amount decimal.Decimal) error {
	const op = "postgresrepo.LedgerRepo.Collect"

	if amount.IsNegative() {
		return wrapDBErr(op, repository.ErrConflict)
	}

	if err := r.credit(ctx, domain.Treasury, amount); err != nil {
		return wrapDBErr(op, err)
	}

	if err := r.record(ctx, from, amount, "collect"); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *LedgerRepo) Pay(ctx context.Context, to domain.Identity, amount decimal.Decimal) error {
	const op = "postgresrepo.LedgerRepo.Pay"

	if amount.IsNegative() {
		return wrapDBErr(op, repository.ErrConflict)
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE ledger_balances SET balance = balance - $2
		 WHERE account = $1 AND balance >= $2`,
		string(domain.Treasury), amount,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 && !amount.IsZero() {
		return wrapDBErr(op, repository.ErrInsufficientFunds)
	}

	if err := r.credit(ctx, to, amount); err != nil {
		return wrapDBErr(op, err)
	}

	if err := r.record(ctx, to, amount, "pay"); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *LedgerRepo) Balance(ctx context.Context, account domain.Identity) (decimal.Decimal, error) {
	const op = "postgresrepo.LedgerRepo.Balance"

	var balance decimal.Decimal
	err := r.db.QueryRow(ctx,
		`SELECT balance FROM ledger_balances WHERE account = $1`, string(account),
	).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, wrapDBErr(op, err)
	}

	return balance, nil
}
