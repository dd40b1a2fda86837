package postgresrepo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kirinyoku/fairtix/internal/domain"
	"github.com/kirinyoku/fairtix/internal/repository"
)

type LotteryRepo struct {
	db DB
}

func (r *LotteryRepo) With(db DB) *LotteryRepo {
	cp := *r
	cp.db = db
	return &cp
}

const lotteryColumns = `id, event_id, application_start, application_end, draw_time,
	max_winners, is_drawn, applicant_count, winner_count`

func scanLottery(row pgx.Row) (*domain.Lottery, error) {
	var (
		l                            domain.Lottery
		maxWinners, applicants, wins int64
	)

	if err := row.Scan(
		&l.ID, &l.EventID, &l.ApplicationStart, &l.ApplicationEnd, &l.DrawTime,
		&maxWinners, &l.IsDrawn, &applicants, &wins,
	); err != nil {
		return nil, err
	}

	l.ApplicationStart = utc(l.ApplicationStart)
	l.ApplicationEnd = utc(l.ApplicationEnd)
	l.DrawTime = utc(l.DrawTime)
	l.MaxWinners = toUint32(maxWinners)
	l.ApplicantCount = toUint32(applicants)
	l.WinnerCount = toUint32(wins)

	return &l, nil
}

func (r *LotteryRepo) Create(ctx context.Context, l *domain.Lottery) (int64, error) {
	const op = "postgresrepo.LotteryRepo.Create"

	var id int64
	if err := r.db.QueryRow(ctx,
		`INSERT INTO lotteries(event_id, application_start, application_end,
			draw_time, max_winners, is_drawn, applicant_count, winner_count)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		l.EventID, l.ApplicationStart, l.ApplicationEnd,
		l.DrawTime, int64(l.MaxWinners), l.IsDrawn, int64(l.ApplicantCount), int64(l.WinnerCount),
	).Scan(&id); err != nil {
		return 0, wrapDBErr(op, err)
	}

	return id, nil
}

func (r *LotteryRepo) Get(ctx context.Context, id int64) (*domain.Lottery, error) {
	const op = "postgresrepo.LotteryRepo.Get"

	l, err := scanLottery(r.db.QueryRow(ctx,
		`SELECT `+lotteryColumns+` FROM lotteries WHERE id = $1`, id))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return l, nil
}

func (r *LotteryRepo) Lock(ctx context.Context, id int64) (*domain.Lottery, error) {
	const op = "postgresrepo.LotteryRepo.Lock"

	l, err := scanLottery(r.db.QueryRow(ctx,
		`SELECT `+lotteryColumns+` FROM lotteries WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return l, nil
}

func (r *LotteryRepo) Update(ctx context.Context, l *domain.Lottery) error {
	const op = "postgresrepo.LotteryRepo.Update"

	tag, err := r.db.Exec(ctx,
		`UPDATE lotteries
		 SET is_drawn = $2, applicant_count = $3, winner_count = $4
		 WHERE id = $1`,
		l.ID, l.IsDrawn, int64(l.ApplicantCount), int64(l.WinnerCount),
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return wrapDBErr(op, pgx.ErrNoRows)
	}

	return nil
}

func (r *LotteryRepo) HasUndrawn(ctx context.Context, eventID int64) (bool, error) {
	const op = "postgresrepo.LotteryRepo.HasUndrawn"

	var exists bool
	if err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM lotteries WHERE event_id = $1 AND NOT is_drawn)`,
		eventID,
	).Scan(&exists); err != nil {
		return false, wrapDBErr(op, err)
	}

	return exists, nil
}

func (r *LotteryRepo) AddApplicant(ctx context.Context, lotteryID int64, id domain.Identity, at time.Time) error {
	const op = "postgresrepo.LotteryRepo.AddApplicant"

	if _, err := r.db.Exec(ctx,
		`INSERT INTO lottery_applicants(lottery_id, identity, applied_at)
		 VALUES ($1, $2, $3)`,
		lotteryID, string(id), at,
	); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *LotteryRepo) Applicants(ctx context.Context, lotteryID int64) ([]domain.Identity, error) {
	const op = "postgresrepo.LotteryRepo.Applicants"

	rows, err := r.db.Query(ctx,
		`SELECT identity FROM lottery_applicants WHERE lottery_id = $1 ORDER BY seq`,
		lotteryID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Identity, error) {
		var s string
		err := row.Scan(&s)
		return domain.Identity(s), err
	})
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

// SetWinners records the drawn winners in draw order with a single batch.
func (r *LotteryRepo) SetWinners(ctx context.Context, lotteryID int64, winners []domain.Identity) error {
	const op = "postgresrepo.LotteryRepo.SetWinners"

	batch := &pgx.Batch{}
	for i, w := range winners {
		batch.Queue(
			`INSERT INTO lottery_winners(lottery_id, identity, position)
			 VALUES ($1, $2, $3)`,
			lotteryID, string(w), i,
		)
	}

	br := r.db.SendBatch(ctx, batch)
	for range winners {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return wrapDBErr(op, err)
		}
	}

	if err := br.Close(); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func scanWinner(row pgx.CollectableRow) (domain.Winner, error) {
	var (
		w        domain.Winner
		identity string
		ticketID *uuid.UUID
	)

	if err := row.Scan(&identity, &w.Claimed, &ticketID); err != nil {
		return w, err
	}

	w.Identity = domain.Identity(identity)
	if ticketID != nil {
		w.TicketID = *ticketID
	}

	return w, nil
}

func (r *LotteryRepo) Winners(ctx context.Context, lotteryID int64) ([]domain.Winner, error) {
	const op = "postgresrepo.LotteryRepo.Winners"

	rows, err := r.db.Query(ctx,
		`SELECT identity, claimed, ticket_id
		 FROM lottery_winners
		 WHERE lottery_id = $1
		 ORDER BY position`,
		lotteryID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	out, err := pgx.CollectRows(rows, scanWinner)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

func (r *LotteryRepo) Winner(ctx context.Context, lotteryID int64, id domain.Identity) (*domain.Winner, error) {
	const op = "postgresrepo.LotteryRepo.Winner"

	rows, err := r.db.Query(ctx,
		`SELECT identity, claimed, ticket_id
		 FROM lottery_winners
		 WHERE lottery_id = $1 AND identity = $2`,
		lotteryID, string(id),
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	w, err := pgx.CollectExactlyOneRow(rows, scanWinner)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &w, nil
}

func (r *LotteryRepo) MarkClaimed(ctx context.Context, lotteryID int64, id domain.Identity, ticketID uuid.UUID) error {
	const op = "postgresrepo.LotteryRepo.MarkClaimed"

	tag, err := r.db.Exec(ctx,
		`UPDATE lottery_winners
		 SET claimed = true, ticket_id = $3
		 WHERE lottery_id = $1 AND identity = $2 AND NOT claimed`,
		lotteryID, string(id), ticketID,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return wrapDBErr(op, repository.ErrConflict)
	}

	return nil
}
