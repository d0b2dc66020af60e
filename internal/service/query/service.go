package query

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/salonq/internal/domain"
	"github.com/kirinyoku/salonq/internal/repository"
	redisrepo "github.com/kirinyoku/salonq/internal/repository/redis"
)

type Config struct {
	Location     *time.Location
	Now          func() time.Time
	SalonListTTL time.Duration
	SalonTTL     time.Duration
	DefaultPage  int
	MaxPage      int
}

type Service struct {
	tickets repository.TicketRepository
	salons  repository.SalonRepository
	queries repository.QueryRepository
	cache   *redisrepo.Cache
	cfg     Config
}

func New(
	tickets repository.TicketRepository,
	salons repository.SalonRepository,
	queries repository.QueryRepository,
	cache *redisrepo.Cache,
	cfg Config,
) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	if cfg.SalonListTTL <= 0 {
		cfg.SalonListTTL = 10 * time.Second
	}

	if cfg.SalonTTL <= 0 {
		cfg.SalonTTL = 60 * time.Second
	}

	if cfg.DefaultPage <= 0 {
		cfg.DefaultPage = 20
	}

	if cfg.MaxPage <= 0 {
		cfg.MaxPage = 100
	}

	return &Service{
		tickets: tickets,
		salons:  salons,
		queries: queries,
		cache:   cache,
		cfg:     cfg,
	}
}

// CurrentTicket returns the user's active ticket and how many waiting
// tickets are ahead of it. A pending ticket has every waiting ticket
// ahead of it; a serving ticket has none.
//
// Returns:
//   - error: query.ErrNoActiveTicket if the user holds no active ticket.
func (s *Service) CurrentTicket(ctx context.Context, userID uuid.UUID) (*domain.TicketView, error) {
	const op = "service.query.CurrentTicket"

	t, err := s.tickets.ActiveByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrNoActiveTicket)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	view := &domain.TicketView{Ticket: *t}

	position := -1
	switch {
	case t.Status == domain.StatusPending:
		position = math.MaxInt32
	case t.Status == domain.StatusWaiting && t.QueuePosition != nil:
		position = *t.QueuePosition
	}

	if position > 0 {
		view.Ahead, err = s.queries.WaitingAhead(ctx, t.SalonID, position)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	return view, nil
}

// Board assembles the salon's live dashboard. Today's figures start at
// local midnight.
//
// Returns:
//   - error: query.ErrSalonNotFound if the salon does not exist.
func (s *Service) Board(ctx context.Context, salonID uuid.UUID) (*domain.Board, error) {
	const op = "service.query.Board"

	if _, err := s.salons.Get(ctx, salonID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrSalonNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	active, err := s.queries.ListSalonTickets(ctx, salonID, domain.ActiveStatuses...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	board := &domain.Board{
		SalonID: salonID,
		Pending: []domain.Ticket{},
		Waiting: []domain.Ticket{},
		Serving: []domain.Ticket{},
	}
	for _, t := range active {
		switch t.Status {
		case domain.StatusPending:
			board.Pending = append(board.Pending, t)
		case domain.StatusWaiting:
			board.Waiting = append(board.Waiting, t)
		case domain.StatusServing:
			board.Serving = append(board.Serving, t)
		}
	}

	board.Today, err = s.queries.DayStats(ctx, salonID, s.today())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return board, nil
}

// UserHistory lists the user's finished tickets, newest first.
func (s *Service) UserHistory(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Ticket, error) {
	const op = "service.query.UserHistory"

	limit, offset = s.page(limit, offset)

	out, err := s.queries.UserHistory(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// SalonHistory lists the salon's finished tickets, newest first.
func (s *Service) SalonHistory(ctx context.Context, salonID uuid.UUID, limit, offset int) ([]domain.Ticket, error) {
	const op = "service.query.SalonHistory"

	limit, offset = s.page(limit, offset)

	out, err := s.queries.SalonHistory(ctx, salonID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// ListSalons returns the public salon listing, served from the cache when
// possible. Every ticket transition of a salon drops the cached pages.
func (s *Service) ListSalons(ctx context.Context, onlyOnline bool, limit, offset int) ([]domain.SalonListing, error) {
	const op = "service.query.ListSalons"

	limit, offset = s.page(limit, offset)

	listing, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		redisrepo.KeySalonListing(onlyOnline, limit, offset),
		s.cfg.SalonListTTL,
		func(ctx context.Context) ([]domain.SalonListing, error) {
			return s.queries.ListSalons(ctx, onlyOnline, limit, offset)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return listing, nil
}

// GetSalon retrieves a salon by its ID, utilizing the cache.
//
// Returns:
//   - error: query.ErrSalonNotFound if the salon does not exist.
func (s *Service) GetSalon(ctx context.Context, id uuid.UUID) (*domain.Salon, error) {
	const op = "service.query.GetSalon"

	salon, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		redisrepo.KeySalon(id),
		s.cfg.SalonTTL,
		func(ctx context.Context) (domain.Salon, error) {
			sl, err := s.salons.Get(ctx, id)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return domain.Salon{}, ErrSalonNotFound
				}

				return domain.Salon{}, err
			}

			return *sl, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &salon, nil
}

func (s *Service) AdminStats(ctx context.Context) (*domain.AdminStats, error) {
	const op = "service.query.AdminStats"

	stats, err := s.queries.AdminStats(ctx, s.today())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &stats, nil
}

func (s *Service) today() time.Time {
	return domain.ServiceDay(s.cfg.Now(), s.cfg.Location)
}

func (s *Service) page(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = s.cfg.DefaultPage
	}

	if limit > s.cfg.MaxPage {
		limit = s.cfg.MaxPage
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset
}
