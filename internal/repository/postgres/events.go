package postgresrepo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/kirinyoku/fairtix/internal/domain"
)

type EventRepo struct {
	db DB
}

func (r *EventRepo) With(db DB) *EventRepo {
	cp := *r
	cp.db = db
	return &cp
}

const eventColumns = `id, organizer, name, original_price, max_resale_price,
	max_tickets, tickets_sold, sale_start, sale_end, event_date,
	transferable, refundable, is_active, allowed_regions, created_at`

func scanEvent(row pgx.Row) (*domain.Event, error) {
	var (
		e                domain.Event
		maxTickets, sold int64
		organizer        string
		regions          []string
	)

	if err := row.Scan(
		&e.ID, &organizer, &e.Name, &e.OriginalPrice, &e.MaxResalePrice,
		&maxTickets, &sold, &e.SaleStart, &e.SaleEnd, &e.EventDate,
		&e.Transferable, &e.Refundable, &e.IsActive, &regions, &e.CreatedAt,
	); err != nil {
		return nil, err
	}

	e.Organizer = domain.Identity(organizer)
	e.MaxTickets = toUint32(maxTickets)
	e.TicketsSold = toUint32(sold)
	e.SaleStart, e.SaleEnd, e.EventDate = utc(e.SaleStart), utc(e.SaleEnd), utc(e.EventDate)
	e.CreatedAt = utc(e.CreatedAt)
	if len(regions) > 0 {
		e.AllowedRegions = regions
	}

	return &e, nil
}

func (r *EventRepo) Create(ctx context.Context, e *domain.Event) (int64, error) {
	const op = "postgresrepo.EventRepo.Create"

	regions := e.AllowedRegions
	if regions == nil {
		regions = []string{}
	}

	var id int64
	if err := r.db.QueryRow(ctx,
		`INSERT INTO events(organizer, name, original_price, max_resale_price,
			max_tickets, tickets_sold, sale_start, sale_end, event_date,
			transferable, refundable, is_active, allowed_regions, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 RETURNING id`,
		string(e.Organizer), e.Name, e.OriginalPrice, e.MaxResalePrice,
		int64(e.MaxTickets), int64(e.TicketsSold), e.SaleStart, e.SaleEnd, e.EventDate,
		e.Transferable, e.Refundable, e.IsActive, regions, e.CreatedAt,
	).Scan(&id); err != nil {
		return 0, wrapDBErr(op, err)
	}

	return id, nil
}

func (r *EventRepo) Get(ctx context.Context, id int64) (*domain.Event, error) {
	const op = "postgresrepo.EventRepo.Get"

	e, err := scanEvent(r.db.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return e, nil
}

func (r *EventRepo) Lock(ctx context.Context, id int64) (*domain.Event, error) {
	const op = "postgresrepo.EventRepo.Lock"

	e, err := scanEvent(r.db.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return e, nil
}

func (r *EventRepo) Update(ctx context.Context, e *domain.Event) error {
	const op = "postgresrepo.EventRepo.Update"

	regions := e.AllowedRegions
	if regions == nil {
		regions = []string{}
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE events
		 SET tickets_sold = $2, is_active = $3, allowed_regions = $4
		 WHERE id = $1`,
		e.ID, int64(e.TicketsSold), e.IsActive, regions,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return wrapDBErr(op, pgx.ErrNoRows)
	}

	return nil
}

func (r *EventRepo) PurchaseCount(ctx context.Context, eventID int64, user domain.Identity) (uint32, error) {
	const op = "postgresrepo.EventRepo.PurchaseCount"

	var n int64
	err := r.db.QueryRow(ctx,
		`SELECT count FROM event_purchase_counts
		 WHERE event_id = $1 AND identity = $2`,
		eventID, string(user),
	).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, wrapDBErr(op, err)
	}

	return toUint32(n), nil
}

func (r *EventRepo) SetPurchaseCount(ctx context.Context, eventID int64, user domain.Identity, n uint32) error {
	const op = "postgresrepo.EventRepo.SetPurchaseCount"

	if _, err := r.db.Exec(ctx,
		`INSERT INTO event_purchase_counts(event_id, identity, count)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (event_id, identity) DO UPDATE SET count = EXCLUDED.count`,
		eventID, string(user), int64(n),
	); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}
