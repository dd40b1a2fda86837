package postgresrepo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kirinyoku/fairtix/internal/domain"
	"github.com/kirinyoku/fairtix/internal/repository"
)

type TicketRepo struct {
	db DB
}

func (r *TicketRepo) With(db DB) *TicketRepo {
	cp := *r
	cp.db = db
	return &cp
}

const ticketColumns = `id, event_id, original_buyer, purchase_price, purchase_time,
	is_used, seat_info, transfer_count, redemption_secret_hash,
	resale_window_enabled, resale_window_end, burned`

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		t        domain.Ticket
		buyer    string
		transfer int64
	)

	if err := row.Scan(
		&t.ID, &t.EventID, &buyer, &t.PurchasePrice, &t.PurchaseTime,
		&t.IsUsed, &t.SeatInfo, &transfer, &t.RedemptionSecretHash,
		&t.ResaleWindow.Enabled, &t.ResaleWindow.EndTime, &t.Burned,
	); err != nil {
		return nil, err
	}

	t.OriginalBuyer = domain.Identity(buyer)
	t.TransferCount = uint8(transfer)
	t.PurchaseTime = utc(t.PurchaseTime)
	if t.ResaleWindow.Enabled {
		t.ResaleWindow.EndTime = utc(t.ResaleWindow.EndTime)
	} else {
		t.ResaleWindow.EndTime = time.Time{}
	}

	return &t, nil
}

func windowEnd(t *domain.Ticket) time.Time {
	if !t.ResaleWindow.Enabled {
		return epoch
	}
	return t.ResaleWindow.EndTime
}

func (r *TicketRepo) Insert(ctx context.Context, t *domain.Ticket) error {
	const op = "postgresrepo.TicketRepo.Insert"

	if _, err := r.db.Exec(ctx,
		`INSERT INTO tickets(`+ticketColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		t.ID, t.EventID, string(t.OriginalBuyer), t.PurchasePrice, t.PurchaseTime,
		t.IsUsed, t.SeatInfo, int64(t.TransferCount), t.RedemptionSecretHash,
		t.ResaleWindow.Enabled, windowEnd(t), t.Burned,
	); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *TicketRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Ticket, error) {
	const op = "postgresrepo.TicketRepo.Get"

	t, err := scanTicket(r.db.QueryRow(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, id))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return t, nil
}

func (r *TicketRepo) Lock(ctx context.Context, id uuid.UUID) (*domain.Ticket, error) {
	const op = "postgresrepo.TicketRepo.Lock"

	t, err := scanTicket(r.db.QueryRow(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return t, nil
}

func (r *TicketRepo) Update(ctx context.Context, t *domain.Ticket) error {
	const op = "postgresrepo.TicketRepo.Update"

	tag, err := r.db.Exec(ctx,
		`UPDATE tickets
		 SET purchase_price = $2, purchase_time = $3, is_used = $4,
		     transfer_count = $5, resale_window_enabled = $6,
		     resale_window_end = $7, burned = $8
		 WHERE id = $1`,
		t.ID, t.PurchasePrice, t.PurchaseTime, t.IsUsed,
		int64(t.TransferCount), t.ResaleWindow.Enabled, windowEnd(t), t.Burned,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return wrapDBErr(op, pgx.ErrNoRows)
	}

	return nil
}

func (r *TicketRepo) AppendTransfer(ctx context.Context, ticketID uuid.UUID, rec domain.TransferRecord) error {
	const op = "postgresrepo.TicketRepo.AppendTransfer"

	if _, err := r.db.Exec(ctx,
		`INSERT INTO ticket_transfers(ticket_id, from_identity, to_identity, price, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		ticketID, string(rec.From), string(rec.To), rec.Price, rec.Timestamp,
	); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *TicketRepo) Transfers(ctx context.Context, ticketID uuid.UUID) ([]domain.TransferRecord, error) {
	const op = "postgresrepo.TicketRepo.Transfers"

	rows, err := r.db.Query(ctx,
		`SELECT from_identity, to_identity, price, created_at
		 FROM ticket_transfers
		 WHERE ticket_id = $1
		 ORDER BY id`,
		ticketID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.TransferRecord
	for rows.Next() {
		var (
			rec      domain.TransferRecord
			from, to string
		)
		if err := rows.Scan(&from, &to, &rec.Price, &rec.Timestamp); err != nil {
			return nil, wrapDBErr(op, err)
		}
		rec.From, rec.To = domain.Identity(from), domain.Identity(to)
		rec.Timestamp = utc(rec.Timestamp)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

func (r *TicketRepo) SecretUsed(ctx context.Context, key string) (bool, error) {
	const op = "postgresrepo.TicketRepo.SecretUsed"

	var used bool
	if err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM used_secrets WHERE secret_key = $1)`, key,
	).Scan(&used); err != nil {
		return false, wrapDBErr(op, err)
	}

	return used, nil
}

func (r *TicketRepo) MarkSecretUsed(ctx context.Context, key string, ticketID uuid.UUID, at time.Time) error {
	const op = "postgresrepo.TicketRepo.MarkSecretUsed"

	tag, err := r.db.Exec(ctx,
		`INSERT INTO used_secrets(secret_key, ticket_id, used_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (secret_key) DO NOTHING`,
		key, ticketID, at,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return wrapDBErr(op, repository.ErrConflict)
	}

	return nil
}
