package postgresrepo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/salonq/internal/domain"
)

type QueryRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *QueryRepo) With(db DB) *QueryRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *QueryRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// ListSalonTickets returns the salon's tickets in the given statuses,
// ordered by queue position and then by creation time.
func (r *QueryRepo) ListSalonTickets(
	ctx context.Context,
	salonID uuid.UUID,
	statuses ...domain.TicketStatus,
) ([]domain.Ticket, error) {
	const op = "postgresrepo.QueryRepo.ListSalonTickets"

	rows, err := r.handle().Query(ctx,
		`SELECT `+ticketColumns+`
		 FROM tickets
		 WHERE salon_id = $1 AND status = ANY($2)
		 ORDER BY queue_position NULLS LAST, created_at`,
		salonID, statusStrings(statuses),
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	out, err := scanTickets(rows)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

// DayStats sums the salon's tickets completed since the given instant.
func (r *QueryRepo) DayStats(ctx context.Context, salonID uuid.UUID, since time.Time) (domain.DayStats, error) {
	const op = "postgresrepo.QueryRepo.DayStats"

	var ds domain.DayStats
	err := r.handle().QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(total_price), 0)
		 FROM tickets
		 WHERE salon_id = $1 AND status = 'completed' AND updated_at >= $2`,
		salonID, since,
	).Scan(&ds.Completed, &ds.Revenue)
	if err != nil {
		return domain.DayStats{}, wrapDBErr(op, err)
	}

	return ds, nil
}

// WaitingAhead counts the salon's waiting tickets with a lower position.
func (r *QueryRepo) WaitingAhead(ctx context.Context, salonID uuid.UUID, position int) (int64, error) {
	const op = "postgresrepo.QueryRepo.WaitingAhead"

	var n int64
	err := r.handle().QueryRow(ctx,
		`SELECT COUNT(*)
		 FROM tickets
		 WHERE salon_id = $1 AND status = 'waiting' AND queue_position < $2`,
		salonID, position,
	).Scan(&n)
	if err != nil {
		return 0, wrapDBErr(op, err)
	}

	return n, nil
}

// UserHistory lists the user's finished tickets, newest first.
func (r *QueryRepo) UserHistory(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Ticket, error) {
	const op = "postgresrepo.QueryRepo.UserHistory"

	return r.history(ctx, op, "user_id", userID, limit, offset)
}

// SalonHistory lists the salon's finished tickets, newest first.
func (r *QueryRepo) SalonHistory(ctx context.Context, salonID uuid.UUID, limit, offset int) ([]domain.Ticket, error) {
	const op = "postgresrepo.QueryRepo.SalonHistory"

	return r.history(ctx, op, "salon_id", salonID, limit, offset)
}

func (r *QueryRepo) history(ctx context.Context, op, column string, id uuid.UUID, limit, offset int) ([]domain.Ticket, error) {
	rows, err := r.handle().Query(ctx,
		`SELECT `+ticketColumns+`
		 FROM tickets
		 WHERE `+column+` = $1 AND NOT (status = ANY($2))
		 ORDER BY updated_at DESC, id
		 LIMIT $3 OFFSET $4`,
		id, statusStrings(domain.ActiveStatuses), limit, offset,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	out, err := scanTickets(rows)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

// ListSalons returns the public salon listing. The waiting count and the
// estimated time are aggregated from the live tickets in the same query.
func (r *QueryRepo) ListSalons(ctx context.Context, onlyOnline bool, limit, offset int) ([]domain.SalonListing, error) {
	const op = "postgresrepo.QueryRepo.ListSalons"

	rows, err := r.handle().Query(ctx,
		`SELECT s.id, s.name, s.is_online, s.is_verified, s.rating,
		 	COUNT(t.id) FILTER (WHERE t.status = 'waiting'),
		 	COALESCE(SUM(t.total_duration), 0)
		 FROM salons s
		 LEFT JOIN tickets t
		 	ON t.salon_id = s.id AND t.status IN ('waiting', 'serving')
		 WHERE NOT $1 OR s.is_online
		 GROUP BY s.id
		 ORDER BY s.is_online DESC, s.name, s.id
		 LIMIT $2 OFFSET $3`,
		onlyOnline, limit, offset,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	out := []domain.SalonListing{}
	for rows.Next() {
		var l domain.SalonListing
		if err := rows.Scan(&l.ID, &l.Name, &l.IsOnline, &l.IsVerified, &l.Rating, &l.Waiting, &l.EstTime); err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// AdminStats aggregates platform-wide figures. Daily figures cover tickets
// touched since the given instant.
func (r *QueryRepo) AdminStats(ctx context.Context, since time.Time) (domain.AdminStats, error) {
	const op = "postgresrepo.QueryRepo.AdminStats"

	db := r.handle()

	stats := domain.AdminStats{TicketsToday: map[domain.TicketStatus]int64{}}
	err := db.QueryRow(ctx,
		`SELECT
		 	COUNT(*),
		 	COUNT(*) FILTER (WHERE is_online),
		 	COUNT(*) FILTER (WHERE is_verified),
		 	COALESCE(SUM(revenue), 0)
		 FROM salons`,
	).Scan(&stats.Salons, &stats.OnlineSalons, &stats.VerifiedSalons, &stats.RevenueTotal)
	if err != nil {
		return domain.AdminStats{}, wrapDBErr(op, err)
	}

	rows, err := db.Query(ctx,
		`SELECT status, COUNT(*), COALESCE(SUM(total_price) FILTER (WHERE status = 'completed'), 0)
		 FROM tickets
		 WHERE updated_at >= $1
		 GROUP BY status`,
		since,
	)
	if err != nil {
		return domain.AdminStats{}, wrapDBErr(op, err)
	}

	defer rows.Close()

	for rows.Next() {
		var (
			status  string
			count   int64
			revenue int64
		)
		if err := rows.Scan(&status, &count, &revenue); err != nil {
			return domain.AdminStats{}, wrapDBErr(op, err)
		}
		stats.TicketsToday[domain.TicketStatus(status)] = count
		stats.RevenueToday += revenue
	}
	if err := rows.Err(); err != nil {
		return domain.AdminStats{}, fmt.Errorf("%s: %w", op, err)
	}

	return stats, nil
}
