package postgresrepo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/kirinyoku/fairtix/internal/domain"
)

type SystemRepo struct {
	db DB
}

func (r *SystemRepo) With(db DB) *SystemRepo {
	cp := *r
	cp.db = db
	return &cp
}

const systemColumns = `owner, fee_recipient, refund_fee_bps, paused, draw_nonce`

// scanSystem returns the zero state when the singleton row has not been
// written yet.
func scanSystem(row pgx.Row) (*domain.SystemState, error) {
	var (
		s                domain.SystemState
		owner, recipient string
		feeBps, nonce    int64
	)

	err := row.Scan(&owner, &recipient, &feeBps, &s.Paused, &nonce)
	if errors.Is(err, pgx.ErrNoRows) {
		return &s, nil
	}
	if err != nil {
		return nil, err
	}

	s.Owner = domain.Identity(owner)
	s.FeeRecipient = domain.Identity(recipient)
	s.RefundFeeBps = toUint32(feeBps)
	if nonce > 0 {
		s.DrawNonce = uint64(nonce)
	}

	return &s, nil
}

func (r *SystemRepo) Get(ctx context.Context) (*domain.SystemState, error) {
	const op = "postgresrepo.SystemRepo.Get"

	s, err := scanSystem(r.db.QueryRow(ctx,
		`SELECT `+systemColumns+` FROM system_state WHERE id = 1`))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return s, nil
}

func (r *SystemRepo) Lock(ctx context.Context) (*domain.SystemState, error) {
	const op = "postgresrepo.SystemRepo.Lock"

	s, err := scanSystem(r.db.QueryRow(ctx,
		`SELECT `+systemColumns+` FROM system_state WHERE id = 1 FOR UPDATE`))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return s, nil
}

func (r *SystemRepo) Update(ctx context.Context, s *domain.SystemState) error {
	const op = "postgresrepo.SystemRepo.Update"

	if _, err := r.db.Exec(ctx,
		`INSERT INTO system_state(id, `+systemColumns+`)
		 VALUES (1, $1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET
		     owner = EXCLUDED.owner,
		     fee_recipient = EXCLUDED.fee_recipient,
		     refund_fee_bps = EXCLUDED.refund_fee_bps,
		     paused = EXCLUDED.paused,
		     draw_nonce = EXCLUDED.draw_nonce`,
		string(s.Owner), string(s.FeeRecipient), int64(s.RefundFeeBps), s.Paused, int64(s.DrawNonce),
	); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *SystemRepo) NextNonce(ctx context.Context) (uint64, error) {
	const op = "postgresrepo.SystemRepo.NextNonce"

	var nonce int64
	if err := r.db.QueryRow(ctx,
		`INSERT INTO system_state(id, owner, fee_recipient, refund_fee_bps, draw_nonce)
		 VALUES (1, '', '', 0, 1)
		 ON CONFLICT (id) DO UPDATE SET draw_nonce = system_state.draw_nonce + 1
		 RETURNING draw_nonce`,
	).Scan(&nonce); err != nil {
		return 0, wrapDBErr(op, err)
	}

	return uint64(nonce), nil
}
