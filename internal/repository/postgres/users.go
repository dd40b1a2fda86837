package postgresrepo

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/kirinyoku/fairtix/internal/domain"
)

type UserRepo struct {
	db DB
}

func (r *UserRepo) With(db DB) *UserRepo {
	cp := *r
	cp.db = db
	return &cp
}

const userColumns = `identity, is_verified, is_banned, ban_reason, reputation,
	purchase_count, transfer_count, last_purchase_time, purchase_limit,
	region, is_organizer, verified_at`

func scanUser(row pgx.Row) (*domain.UserProfile, error) {
	var (
		p                                   domain.UserProfile
		identity                            string
		reputation, purchases, transfers, l int64
	)

	if err := row.Scan(
		&identity, &p.IsVerified, &p.IsBanned, &p.BanReason, &reputation,
		&purchases, &transfers, &p.LastPurchaseTime, &l,
		&p.Region, &p.IsOrganizer, &p.VerifiedAt,
	); err != nil {
		return nil, err
	}

	p.Identity = domain.Identity(identity)
	p.Reputation = toUint32(reputation)
	p.PurchaseCount = toUint32(purchases)
	p.TransferCount = toUint32(transfers)
	p.PurchaseLimit = toUint32(l)
	p.LastPurchaseTime = fromEpoch(p.LastPurchaseTime)
	p.VerifiedAt = fromEpoch(p.VerifiedAt)

	return &p, nil
}

func (r *UserRepo) Get(ctx context.Context, id domain.Identity) (*domain.UserProfile, error) {
	const op = "postgresrepo.UserRepo.Get"

	p, err := scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE identity = $1`, string(id)))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return p, nil
}

func (r *UserRepo) Lock(ctx context.Context, id domain.Identity) (*domain.UserProfile, error) {
	const op = "postgresrepo.UserRepo.Lock"

	p, err := scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE identity = $1 FOR UPDATE`, string(id)))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return p, nil
}

func (r *UserRepo) Upsert(ctx context.Context, p *domain.UserProfile) error {
	const op = "postgresrepo.UserRepo.Upsert"

	if _, err := r.db.Exec(ctx,
		`INSERT INTO users(`+userColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (identity) DO UPDATE SET
		     is_verified = EXCLUDED.is_verified,
		     is_banned = EXCLUDED.is_banned,
		     ban_reason = EXCLUDED.ban_reason,
		     reputation = EXCLUDED.reputation,
		     purchase_count = EXCLUDED.purchase_count,
		     transfer_count = EXCLUDED.transfer_count,
		     last_purchase_time = EXCLUDED.last_purchase_time,
		     purchase_limit = EXCLUDED.purchase_limit,
		     region = EXCLUDED.region,
		     is_organizer = EXCLUDED.is_organizer,
		     verified_at = EXCLUDED.verified_at`,
		string(p.Identity), p.IsVerified, p.IsBanned, p.BanReason, int64(p.Reputation),
		int64(p.PurchaseCount), int64(p.TransferCount), toEpoch(p.LastPurchaseTime), int64(p.PurchaseLimit),
		p.Region, p.IsOrganizer, toEpoch(p.VerifiedAt),
	); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}
