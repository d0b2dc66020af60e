package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/salonq/internal/domain"
)

type TicketRepository interface {
	// Create inserts t. Returns ErrConflict when the user already holds an
	// active ticket.
	Create(ctx context.Context, t *domain.Ticket) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Ticket, error)
	// GetForUpdate loads the ticket and locks it until the transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Ticket, error)
	// Update persists the mutable fields of t, guarded on the ticket still
	// being in status expected.
	Update(ctx context.Context, t *domain.Ticket, expected domain.TicketStatus) error
	ActiveByUser(ctx context.Context, userID uuid.UUID) (*domain.Ticket, error)
	ChairBusy(ctx context.Context, salonID uuid.UUID, chairID int) (bool, error)
	// StaffBusy reports whether the named staff member is serving a ticket.
	StaffBusy(ctx context.Context, salonID uuid.UUID, staffName string) (bool, error)
	// NextPosition atomically allocates the next queue position of the
	// salon. Positions grow monotonically and never restart.
	NextPosition(ctx context.Context, salonID uuid.UUID) (int, error)
}

type SalonRepository interface {
	Create(ctx context.Context, s *domain.Salon) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Salon, error)
	SetOnline(ctx context.Context, id uuid.UUID, online bool) error
	SetVerified(ctx context.Context, id uuid.UUID, verified bool) error
	ReplaceServices(ctx context.Context, id uuid.UUID, services []domain.SalonService) error
	ReplaceStaff(ctx context.Context, id uuid.UUID, staff []domain.Staff) error
	// AddCompletion adds amount to the salon revenue and bumps its
	// completed-service counter.
	AddCompletion(ctx context.Context, id uuid.UUID, amount int64) error
}

type QueryRepository interface {
	ListSalonTickets(ctx context.Context, salonID uuid.UUID, statuses ...domain.TicketStatus) ([]domain.Ticket, error)
	DayStats(ctx context.Context, salonID uuid.UUID, since time.Time) (domain.DayStats, error)
	WaitingAhead(ctx context.Context, salonID uuid.UUID, position int) (int64, error)
	UserHistory(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Ticket, error)
	SalonHistory(ctx context.Context, salonID uuid.UUID, limit, offset int) ([]domain.Ticket, error)
	ListSalons(ctx context.Context, onlyOnline bool, limit, offset int) ([]domain.SalonListing, error)
	AdminStats(ctx context.Context, since time.Time) (domain.AdminStats, error)
}

// Tx groups the repositories bound to one transaction.
type Tx struct {
	Tickets TicketRepository
	Salons  SalonRepository
}
