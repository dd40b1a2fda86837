package postgresrepo

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kirinyoku/fairtix/internal/domain"
	"github.com/kirinyoku/fairtix/internal/repository"
)

// RegistryRepo keeps token ownership in token_holders, one row per live
// ticket token.
type RegistryRepo struct {
	db DB
}

func (r *RegistryRepo) With(db DB) *RegistryRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *RegistryRepo) HolderOf(ctx context.Context, ticketID uuid.UUID) (domain.Identity, error) {
	const op = "postgresrepo.RegistryRepo.HolderOf"

	var holder string
	if err := r.db.QueryRow(ctx,
		`SELECT holder FROM token_holders WHERE ticket_id = $1`, ticketID,
	).Scan(&holder); err != nil {
		return "", wrapDBErr(op, err)
	}

	return domain.Identity(holder), nil
}

func (r *RegistryRepo) Mint(ctx context.Context, ticketID uuid.UUID, to domain.Identity) error {
	const op = "postgresrepo.RegistryRepo.Mint"

	if _, err := r.db.Exec(ctx,
		`INSERT INTO token_holders(ticket_id, holder) VALUES ($1, $2)`,
		ticketID, string(to),
	); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

// move is the conditional update shared by Transfer and Burn: it only
// touches the row when from is the current holder.
func (r *RegistryRepo) move(ctx context.Context, op string, ticketID uuid.UUID, exec func() (int64, error)) error {
	n, err := exec()
	if err != nil {
		return wrapDBErr(op, err)
	}
	if n > 0 {
		return nil
	}

	if _, err := r.HolderOf(ctx, ticketID); err != nil {
		return err
	}

	return wrapDBErr(op, repository.ErrNotHolder)
}

func (r *RegistryRepo) Transfer(ctx context.Context, ticketID uuid.UUID, from, to domain.Identity) error {
	const op = "postgresrepo.RegistryRepo.Transfer"

	return r.move(ctx, op, ticketID, func() (int64, error) {
		tag, err := r.db.Exec(ctx,
			`UPDATE token_holders SET holder = $3 WHERE ticket_id = $1 AND holder = $2`,
			ticketID, string(from), string(to),
		)
		return tag.RowsAffected(), err
	})
}

func (r *RegistryRepo) Burn(ctx context.Context, ticketID uuid.UUID, from domain.Identity) error {
	const op = "postgresrepo.RegistryRepo.Burn"

	return r.move(ctx, op, ticketID, func() (int64, error) {
		tag, err := r.db.Exec(ctx,
			`DELETE FROM token_holders WHERE ticket_id = $1 AND holder = $2`,
			ticketID, string(from),
		)
		return tag.RowsAffected(), err
	})
}

func (r *RegistryRepo) TokensOf(ctx context.Context, holder domain.Identity) ([]uuid.UUID, error) {
	const op = "postgresrepo.RegistryRepo.TokensOf"

	rows, err := r.db.Query(ctx,
		`SELECT ticket_id FROM token_holders WHERE holder = $1 ORDER BY ticket_id`,
		string(holder),
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return ids, nil
}
