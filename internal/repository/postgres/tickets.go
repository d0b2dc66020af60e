package postgresrepo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/salonq/internal/domain"
	"github.com/kirinyoku/salonq/internal/repository"
)

const ticketColumns = `id, salon_id, user_id, guest_name, guest_mobile, services,
	total_price, total_duration, queue_position, status, staff_name, chair_id,
	created_at, updated_at`

type TicketRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *TicketRepo) With(db DB) *TicketRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *TicketRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Create inserts a new ticket.
//
// Returns:
//   - error: repository.ErrConflict if the user already holds an active ticket.
//   - error: repository.ErrNotFound if the salon does not exist.
func (r *TicketRepo) Create(ctx context.Context, t *domain.Ticket) error {
	const op = "postgresrepo.TicketRepo.Create"

	services, err := json.Marshal(t.Services)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	_, err = r.handle().Exec(ctx,
		`INSERT INTO tickets(id, salon_id, user_id, guest_name, guest_mobile, services,
		 	total_price, total_duration, queue_position, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		t.ID, t.SalonID, t.UserID, nullIfEmpty(t.GuestName), nullIfEmpty(t.GuestMobile),
		services, t.TotalPrice, t.TotalDuration, t.QueuePosition, string(t.Status),
		t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

// Get retrieves a ticket by its ID.
//
// Returns:
//   - error: repository.ErrNotFound if the ticket does not exist.
func (r *TicketRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Ticket, error) {
	const op = "postgresrepo.TicketRepo.Get"

	t, err := scanTicket(r.handle().QueryRow(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE id = $1`,
		id,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return t, nil
}

// GetForUpdate is Get with a row lock held until the surrounding
// transaction ends. Outside a transaction the lock is released at once.
func (r *TicketRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Ticket, error) {
	const op = "postgresrepo.TicketRepo.GetForUpdate"

	t, err := scanTicket(r.handle().QueryRow(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE id = $1 FOR UPDATE`,
		id,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return t, nil
}

// Update writes the mutable fields of t. The write only happens while the
// stored status still equals expected.
//
// Returns:
//   - error: repository.ErrConflict if the ticket left the expected status.
//   - error: repository.ErrChairOccupied if another serving ticket holds the chair.
//   - error: repository.ErrStaffOccupied if the staff member is serving another ticket.
func (r *TicketRepo) Update(ctx context.Context, t *domain.Ticket, expected domain.TicketStatus) error {
	const op = "postgresrepo.TicketRepo.Update"

	tag, err := r.handle().Exec(ctx,
		`UPDATE tickets
		 SET status = $2, queue_position = $3, staff_name = $4, chair_id = $5,
		 	total_duration = $6, updated_at = $7
		 WHERE id = $1 AND status = $8`,
		t.ID, string(t.Status), t.QueuePosition, t.StaffName, t.ChairID,
		t.TotalDuration, t.UpdatedAt, string(expected),
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, repository.ErrConflict)
	}

	return nil
}

// ActiveByUser returns the user's pending, waiting or serving ticket.
//
// Returns:
//   - error: repository.ErrNotFound if the user has no active ticket.
func (r *TicketRepo) ActiveByUser(ctx context.Context, userID uuid.UUID) (*domain.Ticket, error) {
	const op = "postgresrepo.TicketRepo.ActiveByUser"

	t, err := scanTicket(r.handle().QueryRow(ctx,
		`SELECT `+ticketColumns+`
		 FROM tickets
		 WHERE user_id = $1 AND status = ANY($2)
		 ORDER BY created_at DESC
		 LIMIT 1`,
		userID, statusStrings(domain.ActiveStatuses),
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return t, nil
}

func (r *TicketRepo) ChairBusy(ctx context.Context, salonID uuid.UUID, chairID int) (bool, error) {
	const op = "postgresrepo.TicketRepo.ChairBusy"

	var busy bool
	err := r.handle().QueryRow(ctx,
		`SELECT EXISTS (
		 	SELECT 1 FROM tickets
		 	WHERE salon_id = $1 AND chair_id = $2 AND status = 'serving'
		 )`,
		salonID, chairID,
	).Scan(&busy)
	if err != nil {
		return false, wrapDBErr(op, err)
	}

	return busy, nil
}

func (r *TicketRepo) StaffBusy(ctx context.Context, salonID uuid.UUID, staffName string) (bool, error) {
	const op = "postgresrepo.TicketRepo.StaffBusy"

	var busy bool
	err := r.handle().QueryRow(ctx,
		`SELECT EXISTS (
		 	SELECT 1 FROM tickets
		 	WHERE salon_id = $1 AND staff_name = $2 AND status = 'serving'
		 )`,
		salonID, staffName,
	).Scan(&busy)
	if err != nil {
		return false, wrapDBErr(op, err)
	}

	return busy, nil
}

// NextPosition allocates the salon's next queue position. The counter row
// is upserted and incremented in one statement, so concurrent callers
// receive distinct consecutive values. It never resets.
func (r *TicketRepo) NextPosition(ctx context.Context, salonID uuid.UUID) (int, error) {
	const op = "postgresrepo.TicketRepo.NextPosition"

	var next int
	err := r.handle().QueryRow(ctx,
		`INSERT INTO queue_counters(salon_id, last_position)
		 VALUES ($1, 1)
		 ON CONFLICT (salon_id)
		 DO UPDATE SET last_position = queue_counters.last_position + 1
		 RETURNING last_position`,
		salonID,
	).Scan(&next)
	if err != nil {
		return 0, wrapDBErr(op, err)
	}

	return next, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (*domain.Ticket, error) {
	var (
		t           domain.Ticket
		userID      pgtype.UUID
		guestName   *string
		guestMobile *string
		services    []byte
		status      string
	)

	if err := row.Scan(
		&t.ID,
		&t.SalonID,
		&userID,
		&guestName,
		&guestMobile,
		&services,
		&t.TotalPrice,
		&t.TotalDuration,
		&t.QueuePosition,
		&status,
		&t.StaffName,
		&t.ChairID,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if userID.Valid {
		id := uuid.UUID(userID.Bytes)
		t.UserID = &id
	}
	if guestName != nil {
		t.GuestName = *guestName
	}
	if guestMobile != nil {
		t.GuestMobile = *guestMobile
	}
	if len(services) > 0 {
		if err := json.Unmarshal(services, &t.Services); err != nil {
			return nil, fmt.Errorf("decode services: %w", err)
		}
	}
	t.Status = domain.TicketStatus(status)

	return &t, nil
}

func scanTickets(rows interface {
	rowScanner
	Next() bool
	Err() error
	Close()
}) ([]domain.Ticket, error) {
	defer rows.Close()

	out := []domain.Ticket{}
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

func statusStrings(statuses []domain.TicketStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
