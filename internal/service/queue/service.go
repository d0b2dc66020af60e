package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/salonq/internal/domain"
	"github.com/kirinyoku/salonq/internal/repository"
	redisrepo "github.com/kirinyoku/salonq/internal/repository/redis"
	"github.com/kirinyoku/salonq/internal/uow"
)

// Transactor runs a unit of work over the ticket and salon repositories.
type Transactor interface {
	Do(ctx context.Context, fn uow.Func) error
}

// Publisher delivers a named event to every subscriber of a room.
type Publisher interface {
	Publish(ctx context.Context, room, event string, payload any) error
}

type Invalidator interface {
	InvalidateSalon(ctx context.Context, salonID uuid.UUID) error
}

type Limiter interface {
	Allow(ctx context.Context, id string) (redisrepo.Decision, error)
}

type Config struct {
	MaxExtendMinutes int
	Now              func() time.Time
}

type Service struct {
	tx      Transactor
	pub     Publisher
	cache   Invalidator
	limiter Limiter
	log     *slog.Logger
	cfg     Config
}

func New(
	tx Transactor,
	pub Publisher,
	cache Invalidator,
	limiter Limiter,
	log *slog.Logger,
	cfg Config,
) *Service {
	if cfg.MaxExtendMinutes <= 0 {
		cfg.MaxExtendMinutes = 120
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	if log == nil {
		log = slog.Default()
	}

	return &Service{
		tx:      tx,
		pub:     pub,
		cache:   cache,
		limiter: limiter,
		log:     log.With(slog.String("component", "queue")),
		cfg:     cfg,
	}
}

type JoinRequest struct {
	SalonID       uuid.UUID
	Services      []domain.ServiceItem
	TotalPrice    int64
	TotalDuration int
}

type WalkInRequest struct {
	GuestName   string
	GuestMobile string
	Services    []domain.ServiceItem
}

// Join books a pending ticket for the user at the salon.
//
// Returns:
//   - error: *RateLimitedError if the user joins too often.
//   - error: *ValidationError if the services or totals are not acceptable.
//   - error: queue.ErrSalonNotFound if the salon does not exist.
//   - error: queue.ErrSalonOffline if the salon is offline.
//   - error: queue.ErrActiveTicketExists if the user already holds an active ticket.
func (s *Service) Join(ctx context.Context, userID uuid.UUID, req JoinRequest) (*domain.Ticket, error) {
	const op = "service.queue.Join"

	if s.limiter != nil {
		d, err := s.limiter.Allow(ctx, userID.String())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if !d.Allowed {
			return nil, fmt.Errorf("%s: %w", op, &RateLimitedError{RetryAfter: d.RetryAfter})
		}
	}

	if err := validateItems(req.Services); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var ticket domain.Ticket

	err := s.tx.Do(ctx, func(ctx context.Context, tx repository.Tx, after func(uow.AfterCommit)) error {
		salon, err := s.getSalon(ctx, tx, req.SalonID)
		if err != nil {
			return err
		}

		if !salon.IsOnline {
			return ErrSalonOffline
		}

		items, price, duration, err := priceServices(salon, req.Services)
		if err != nil {
			return err
		}

		if req.TotalPrice != 0 && req.TotalPrice != price {
			return &ValidationError{Field: "total_price", Reason: fmt.Sprintf("expected %d", price)}
		}
		if req.TotalDuration != 0 && req.TotalDuration != duration {
			return &ValidationError{Field: "total_duration", Reason: fmt.Sprintf("expected %d", duration)}
		}

		if _, err := tx.Tickets.ActiveByUser(ctx, userID); err == nil {
			return ErrActiveTicketExists
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		now := s.now()
		ticket = domain.Ticket{
			ID:            uuid.New(),
			SalonID:       salon.ID,
			UserID:        &userID,
			Services:      items,
			TotalPrice:    price,
			TotalDuration: duration,
			Status:        domain.StatusPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		if err := tx.Tickets.Create(ctx, &ticket); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return ErrActiveTicketExists
			}
			return err
		}

		created := ticket
		after(func(ctx context.Context) {
			s.invalidate(ctx, created.SalonID)
			s.publish(ctx, domain.SalonRoom(created.SalonID), domain.EventNewRequest, created)
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &ticket, nil
}

// WalkIn registers a guest who is physically at the salon. The ticket
// skips the pending stage and takes the next queue position.
func (s *Service) WalkIn(ctx context.Context, salonID uuid.UUID, req WalkInRequest) (*domain.Ticket, error) {
	const op = "service.queue.WalkIn"

	if req.GuestName == "" {
		return nil, fmt.Errorf("%s: %w", op, &ValidationError{Field: "guest_name", Reason: "required"})
	}

	if err := validateItems(req.Services); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var ticket domain.Ticket

	err := s.tx.Do(ctx, func(ctx context.Context, tx repository.Tx, after func(uow.AfterCommit)) error {
		salon, err := s.getSalon(ctx, tx, salonID)
		if err != nil {
			return err
		}

		items, price, duration, err := priceServices(salon, req.Services)
		if err != nil {
			return err
		}

		now := s.now()
		pos, err := tx.Tickets.NextPosition(ctx, salon.ID)
		if err != nil {
			return err
		}

		ticket = domain.Ticket{
			ID:            uuid.New(),
			SalonID:       salon.ID,
			GuestName:     req.GuestName,
			GuestMobile:   req.GuestMobile,
			Services:      items,
			TotalPrice:    price,
			TotalDuration: duration,
			QueuePosition: &pos,
			Status:        domain.StatusWaiting,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		if err := tx.Tickets.Create(ctx, &ticket); err != nil {
			return err
		}

		created := ticket
		after(func(ctx context.Context) {
			s.invalidate(ctx, created.SalonID)
			s.publish(ctx, domain.SalonRoom(created.SalonID), domain.EventQueueUpdated, domain.QueueUpdate{
				SalonID:  created.SalonID,
				TicketID: created.ID,
				Status:   created.Status,
			})
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &ticket, nil
}

// Accept moves a pending ticket into the waiting line.
func (s *Service) Accept(ctx context.Context, salonID, ticketID uuid.UUID) (*domain.Ticket, error) {
	return s.transition(ctx, "service.queue.Accept", ticketID, change{
		action:    domain.ActionAccept,
		authorize: ownedBySalon(salonID),
		userEvent: domain.EventRequestAccepted,
		prepare: func(ctx context.Context, tx repository.Tx, t *domain.Ticket) error {
			pos, err := tx.Tickets.NextPosition(ctx, t.SalonID)
			if err != nil {
				return err
			}
			t.QueuePosition = &pos
			return nil
		},
	})
}

func (s *Service) Reject(ctx context.Context, salonID, ticketID uuid.UUID) (*domain.Ticket, error) {
	return s.transition(ctx, "service.queue.Reject", ticketID, change{
		action:    domain.ActionReject,
		authorize: ownedBySalon(salonID),
		userEvent: domain.EventStatusChange,
	})
}

// Start seats a waiting ticket on a chair with a staff member.
//
// Returns:
//   - error: *ValidationError if the chair or staff member cannot be used.
//   - error: queue.ErrChairBusy if another ticket is being served on the chair.
//   - error: queue.ErrStaffBusy if the staff member is serving another ticket.
func (s *Service) Start(ctx context.Context, salonID, ticketID uuid.UUID, chairID int, staffName string) (*domain.Ticket, error) {
	return s.transition(ctx, "service.queue.Start", ticketID, change{
		action:    domain.ActionStart,
		authorize: ownedBySalon(salonID),
		userEvent: domain.EventStatusChange,
		prepare: func(ctx context.Context, tx repository.Tx, t *domain.Ticket) error {
			salon, err := s.getSalon(ctx, tx, t.SalonID)
			if err != nil {
				return err
			}

			if chairID < 1 || chairID > salon.Chairs {
				return &ValidationError{Field: "chair_id", Reason: fmt.Sprintf("must be between 1 and %d", salon.Chairs)}
			}

			if staffName == "" {
				return &ValidationError{Field: "staff_name", Reason: "required"}
			}
			if len(salon.Staff) > 0 {
				member, ok := salon.FindStaff(staffName)
				if !ok {
					return &ValidationError{Field: "staff_name", Reason: "not on the staff list"}
				}
				if member.Status == domain.StaffOff {
					return &ValidationError{Field: "staff_name", Reason: "staff member is off"}
				}
			}

			busy, err := tx.Tickets.ChairBusy(ctx, t.SalonID, chairID)
			if err != nil {
				return err
			}
			if busy {
				return ErrChairBusy
			}

			busy, err = tx.Tickets.StaffBusy(ctx, t.SalonID, staffName)
			if err != nil {
				return err
			}
			if busy {
				return ErrStaffBusy
			}

			t.ChairID = &chairID
			t.StaffName = &staffName
			return nil
		},
	})
}

// Complete finishes a serving ticket and credits its price to the salon.
// The credit happens in the same transaction as the status change, so a
// ticket is counted exactly once.
func (s *Service) Complete(ctx context.Context, salonID, ticketID uuid.UUID) (*domain.Ticket, error) {
	return s.transition(ctx, "service.queue.Complete", ticketID, change{
		action:    domain.ActionComplete,
		authorize: ownedBySalon(salonID),
		userEvent: domain.EventServiceCompleted,
		admin:     true,
		finish: func(ctx context.Context, tx repository.Tx, t *domain.Ticket) error {
			if err := tx.Salons.AddCompletion(ctx, t.SalonID, t.TotalPrice); err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return ErrSalonNotFound
				}
				return err
			}
			return nil
		},
	})
}

// Cancel withdraws the user's own active ticket.
//
// Returns:
//   - error: queue.ErrNotTicketOwner if the ticket was booked by someone else.
func (s *Service) Cancel(ctx context.Context, userID, ticketID uuid.UUID) (*domain.Ticket, error) {
	return s.transition(ctx, "service.queue.Cancel", ticketID, change{
		action: domain.ActionCancel,
		authorize: func(t *domain.Ticket) error {
			if !t.OwnedBy(userID) {
				return ErrNotTicketOwner
			}
			return nil
		},
		userEvent: domain.EventStatusChange,
	})
}

func (s *Service) NoShow(ctx context.Context, salonID, ticketID uuid.UUID) (*domain.Ticket, error) {
	return s.transition(ctx, "service.queue.NoShow", ticketID, change{
		action:    domain.ActionNoShow,
		authorize: ownedBySalon(salonID),
		userEvent: domain.EventStatusChange,
	})
}

// Extend adds minutes to the ticket's expected duration. The status is
// left unchanged.
func (s *Service) Extend(ctx context.Context, salonID, ticketID uuid.UUID, minutes int) (*domain.Ticket, error) {
	const op = "service.queue.Extend"

	if minutes < 1 || minutes > s.cfg.MaxExtendMinutes {
		return nil, fmt.Errorf("%s: %w", op, &ValidationError{
			Field:  "minutes",
			Reason: fmt.Sprintf("must be between 1 and %d", s.cfg.MaxExtendMinutes),
		})
	}

	return s.transition(ctx, op, ticketID, change{
		action:    domain.ActionExtend,
		authorize: ownedBySalon(salonID),
		userEvent: domain.EventStatusChange,
		prepare: func(_ context.Context, _ repository.Tx, t *domain.Ticket) error {
			t.TotalDuration += minutes
			return nil
		},
	})
}

// change describes one state machine step applied by transition.
type change struct {
	action    domain.Action
	authorize func(t *domain.Ticket) error
	// prepare runs after the new status is set and before the ticket is
	// written back.
	prepare func(ctx context.Context, tx repository.Tx, t *domain.Ticket) error
	// finish runs after the ticket is written back.
	finish    func(ctx context.Context, tx repository.Tx, t *domain.Ticket) error
	userEvent string
	admin     bool
}

// transition locks the ticket, checks the action against the transition
// table and persists the result. Events go out after commit.
func (s *Service) transition(ctx context.Context, op string, ticketID uuid.UUID, ch change) (*domain.Ticket, error) {
	var ticket domain.Ticket

	err := s.tx.Do(ctx, func(ctx context.Context, tx repository.Tx, after func(uow.AfterCommit)) error {
		t, err := tx.Tickets.GetForUpdate(ctx, ticketID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrTicketNotFound
			}
			return err
		}

		if err := ch.authorize(t); err != nil {
			return err
		}

		from := t.Status
		next, ok := domain.NextStatus(ch.action, from)
		if !ok {
			return fmt.Errorf("%w: cannot %s a %s ticket", ErrInvalidTransition, ch.action, from)
		}

		t.Status = next
		t.UpdatedAt = s.now()

		if ch.prepare != nil {
			if err := ch.prepare(ctx, tx, t); err != nil {
				return err
			}
		}

		if err := tx.Tickets.Update(ctx, t, from); err != nil {
			switch {
			case errors.Is(err, repository.ErrChairOccupied):
				return ErrChairBusy
			case errors.Is(err, repository.ErrStaffOccupied):
				return ErrStaffBusy
			case errors.Is(err, repository.ErrConflict):
				return fmt.Errorf("%w: ticket left %s", ErrInvalidTransition, from)
			}
			return err
		}

		if ch.finish != nil {
			if err := ch.finish(ctx, tx, t); err != nil {
				return err
			}
		}

		ticket = *t
		updated := *t
		after(func(ctx context.Context) {
			s.invalidate(ctx, updated.SalonID)
			s.notify(ctx, updated, ch)
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &ticket, nil
}

func (s *Service) notify(ctx context.Context, t domain.Ticket, ch change) {
	if t.UserID != nil && ch.userEvent != "" {
		s.publish(ctx, domain.UserRoom(*t.UserID), ch.userEvent, t)
	}

	s.publish(ctx, domain.SalonRoom(t.SalonID), domain.EventQueueUpdated, domain.QueueUpdate{
		SalonID:  t.SalonID,
		TicketID: t.ID,
		Action:   ch.action,
		Status:   t.Status,
	})

	if ch.admin {
		s.publish(ctx, domain.AdminRoom, domain.EventAdminStatsUpdate, domain.CompletionUpdate{
			SalonID:  t.SalonID,
			TicketID: t.ID,
			Amount:   t.TotalPrice,
		})
	}
}

// publish never fails the caller; the state change is already committed.
func (s *Service) publish(ctx context.Context, room, event string, payload any) {
	if s.pub == nil {
		return
	}

	if err := s.pub.Publish(ctx, room, event, payload); err != nil {
		s.log.WarnContext(ctx, "publish failed",
			slog.String("room", room),
			slog.String("event", event),
			slog.Any("error", err),
		)
	}
}

func (s *Service) invalidate(ctx context.Context, salonID uuid.UUID) {
	if s.cache == nil {
		return
	}

	if err := s.cache.InvalidateSalon(ctx, salonID); err != nil {
		s.log.WarnContext(ctx, "cache invalidation failed",
			slog.String("salon_id", salonID.String()),
			slog.Any("error", err),
		)
	}
}

func (s *Service) getSalon(ctx context.Context, tx repository.Tx, id uuid.UUID) (*domain.Salon, error) {
	salon, err := tx.Salons.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSalonNotFound
		}
		return nil, err
	}
	return salon, nil
}

func (s *Service) now() time.Time {
	return s.cfg.Now().UTC()
}

func ownedBySalon(salonID uuid.UUID) func(t *domain.Ticket) error {
	return func(t *domain.Ticket) error {
		if t.SalonID != salonID {
			return ErrTicketNotFound
		}
		return nil
	}
}

func validateItems(items []domain.ServiceItem) error {
	if len(items) == 0 {
		return &ValidationError{Field: "services", Reason: "at least one service is required"}
	}

	for i, it := range items {
		field := fmt.Sprintf("services[%d]", i)
		if it.Name == "" {
			return &ValidationError{Field: field + ".name", Reason: "required"}
		}
		if it.Price < 0 {
			return &ValidationError{Field: field + ".price", Reason: "must not be negative"}
		}
		if it.Duration < 0 {
			return &ValidationError{Field: field + ".duration", Reason: "must not be negative"}
		}
	}

	return nil
}

// priceServices resolves the requested services against the salon roster.
// With a roster only the item name matters. A salon without a roster takes
// the requested items as they are, each needing a positive duration.
func priceServices(salon *domain.Salon, items []domain.ServiceItem) ([]domain.ServiceItem, int64, int, error) {
	out := make([]domain.ServiceItem, 0, len(items))

	var (
		price    int64
		duration int
	)
	for i, it := range items {
		if len(salon.Services) > 0 {
			svc, ok := salon.FindService(it.Name)
			if !ok {
				return nil, 0, 0, &ValidationError{
					Field:  fmt.Sprintf("services[%d].name", i),
					Reason: fmt.Sprintf("%q is not offered by this salon", it.Name),
				}
			}
			it = domain.ServiceItem{Name: svc.Name, Price: svc.Price, Duration: svc.Duration}
		} else if it.Duration <= 0 {
			return nil, 0, 0, &ValidationError{
				Field:  fmt.Sprintf("services[%d].duration", i),
				Reason: "must be positive",
			}
		}

		price += it.Price
		duration += it.Duration
		out = append(out, it)
	}

	return out, price, duration, nil
}
