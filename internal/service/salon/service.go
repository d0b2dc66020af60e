package salon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/salonq/internal/domain"
	"github.com/kirinyoku/salonq/internal/repository"
	"github.com/kirinyoku/salonq/internal/uow"
)

type Transactor interface {
	Do(ctx context.Context, fn uow.Func) error
}

type Publisher interface {
	Publish(ctx context.Context, room, event string, payload any) error
}

type Invalidator interface {
	InvalidateSalon(ctx context.Context, salonID uuid.UUID) error
}

type Service struct {
	tx    Transactor
	pub   Publisher
	cache Invalidator
	log   *slog.Logger
	now   func() time.Time
}

func New(tx Transactor, pub Publisher, cache Invalidator, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}

	return &Service{
		tx:    tx,
		pub:   pub,
		cache: cache,
		log:   log.With(slog.String("component", "salon")),
		now:   time.Now,
	}
}

type CreateRequest struct {
	Name     string
	Chairs   int
	Services []domain.SalonService
	Staff    []domain.Staff
}

// Create registers a salon. New salons start offline and unverified.
//
// Returns:
//   - error: *salon.ValidationError if the roster or chair count is invalid.
//   - error: salon.ErrSalonConflict if a salon with the same name exists.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*domain.Salon, error) {
	const op = "service.salon.Create"

	if req.Name == "" {
		return nil, fmt.Errorf("%s: %w", op, &ValidationError{Field: "name", Reason: "required"})
	}
	if req.Chairs < 1 {
		return nil, fmt.Errorf("%s: %w", op, &ValidationError{Field: "chairs", Reason: "must be at least 1"})
	}
	if err := validateServices(req.Services); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := validateStaff(req.Staff); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now().UTC()
	salon := domain.Salon{
		ID:        uuid.New(),
		Name:      req.Name,
		Services:  nonNil(req.Services),
		Staff:     nonNil(req.Staff),
		Chairs:    req.Chairs,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.tx.Do(ctx, func(ctx context.Context, tx repository.Tx, after func(uow.AfterCommit)) error {
		if err := tx.Salons.Create(ctx, &salon); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return ErrSalonConflict
			}
			return err
		}

		after(func(ctx context.Context) {
			s.changed(ctx, salon.ID, false, false)
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &salon, nil
}

// SetOnline opens or closes the salon for new bookings.
func (s *Service) SetOnline(ctx context.Context, id uuid.UUID, online bool) (*domain.Salon, error) {
	return s.update(ctx, "service.salon.SetOnline", id, true, func(ctx context.Context, salons repository.SalonRepository) error {
		return salons.SetOnline(ctx, id, online)
	})
}

func (s *Service) SetVerified(ctx context.Context, id uuid.UUID, verified bool) (*domain.Salon, error) {
	return s.update(ctx, "service.salon.SetVerified", id, true, func(ctx context.Context, salons repository.SalonRepository) error {
		return salons.SetVerified(ctx, id, verified)
	})
}

// ReplaceServices swaps the whole service roster. Tickets already booked
// keep the prices they were booked at.
func (s *Service) ReplaceServices(ctx context.Context, id uuid.UUID, services []domain.SalonService) (*domain.Salon, error) {
	const op = "service.salon.ReplaceServices"

	if err := validateServices(services); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return s.update(ctx, op, id, false, func(ctx context.Context, salons repository.SalonRepository) error {
		return salons.ReplaceServices(ctx, id, nonNil(services))
	})
}

func (s *Service) ReplaceStaff(ctx context.Context, id uuid.UUID, staff []domain.Staff) (*domain.Salon, error) {
	const op = "service.salon.ReplaceStaff"

	if err := validateStaff(staff); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return s.update(ctx, op, id, false, func(ctx context.Context, salons repository.SalonRepository) error {
		return salons.ReplaceStaff(ctx, id, nonNil(staff))
	})
}

// update applies write to the salon and returns the stored result. When
// notify is set the admin room hears about the new flags.
func (s *Service) update(
	ctx context.Context,
	op string,
	id uuid.UUID,
	notify bool,
	write func(ctx context.Context, salons repository.SalonRepository) error,
) (*domain.Salon, error) {
	var salon *domain.Salon

	err := s.tx.Do(ctx, func(ctx context.Context, tx repository.Tx, after func(uow.AfterCommit)) error {
		if err := write(ctx, tx.Salons); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrSalonNotFound
			}
			return err
		}

		var err error
		salon, err = tx.Salons.Get(ctx, id)
		if err != nil {
			return err
		}

		updated := *salon
		after(func(ctx context.Context) {
			if notify {
				s.changed(ctx, updated.ID, updated.IsOnline, updated.IsVerified)
				return
			}
			s.invalidate(ctx, updated.ID)
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return salon, nil
}

func (s *Service) changed(ctx context.Context, id uuid.UUID, online, verified bool) {
	s.invalidate(ctx, id)

	if s.pub == nil {
		return
	}

	err := s.pub.Publish(ctx, domain.AdminRoom, domain.EventAdminStatsUpdate, domain.SalonChange{
		SalonID:    id,
		IsOnline:   online,
		IsVerified: verified,
	})
	if err != nil {
		s.log.WarnContext(ctx, "publish failed", slog.String("salon_id", id.String()), slog.Any("error", err))
	}
}

func (s *Service) invalidate(ctx context.Context, id uuid.UUID) {
	if s.cache == nil {
		return
	}

	if err := s.cache.InvalidateSalon(ctx, id); err != nil {
		s.log.WarnContext(ctx, "cache invalidation failed", slog.String("salon_id", id.String()), slog.Any("error", err))
	}
}

func validateServices(services []domain.SalonService) error {
	seen := make(map[string]struct{}, len(services))

	for i, svc := range services {
		field := fmt.Sprintf("services[%d]", i)
		switch {
		case svc.Name == "":
			return &ValidationError{Field: field + ".name", Reason: "required"}
		case svc.Price < 0:
			return &ValidationError{Field: field + ".price", Reason: "must not be negative"}
		case svc.Duration <= 0:
			return &ValidationError{Field: field + ".duration", Reason: "must be positive"}
		}

		if _, dup := seen[svc.Name]; dup {
			return &ValidationError{Field: field + ".name", Reason: "duplicate"}
		}
		seen[svc.Name] = struct{}{}
	}

	return nil
}

func validateStaff(staff []domain.Staff) error {
	seen := make(map[string]struct{}, len(staff))

	for i, st := range staff {
		field := fmt.Sprintf("staff[%d]", i)
		if st.Name == "" {
			return &ValidationError{Field: field + ".name", Reason: "required"}
		}

		switch st.Status {
		case domain.StaffAvailable, domain.StaffBusy, domain.StaffOff:
		default:
			return &ValidationError{Field: field + ".status", Reason: fmt.Sprintf("unknown status %q", st.Status)}
		}

		if _, dup := seen[st.Name]; dup {
			return &ValidationError{Field: field + ".name", Reason: "duplicate"}
		}
		seen[st.Name] = struct{}{}
	}

	return nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
