// Package memory is an in-process implementation of the repository
// interfaces. Transactions are serialized and rolled back by restoring a
// snapshot, which mirrors the row locking the PostgreSQL store relies on.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/salonq/internal/domain"
	"github.com/kirinyoku/salonq/internal/repository"
	"github.com/kirinyoku/salonq/internal/uow"
)

type Store struct {
	txMu sync.Mutex

	mu       sync.RWMutex
	salons   map[uuid.UUID]domain.Salon
	tickets  map[uuid.UUID]domain.Ticket
	// counters holds the last queue position handed out per salon.
	counters map[uuid.UUID]int
}

func NewStore() *Store {
	return &Store{
		salons:   map[uuid.UUID]domain.Salon{},
		tickets:  map[uuid.UUID]domain.Ticket{},
		counters: map[uuid.UUID]int{},
	}
}

func (s *Store) Tickets() *TicketRepo { return &TicketRepo{s: s} }
func (s *Store) Salons() *SalonRepo   { return &SalonRepo{s: s} }
func (s *Store) Query() *QueryRepo    { return &QueryRepo{s: s} }

// Do runs fn as one transaction. Concurrent calls run one at a time; when
// fn fails every write it made is undone and no hook runs.
func (s *Store) Do(ctx context.Context, fn uow.Func) error {
	s.txMu.Lock()

	s.mu.RLock()
	salons := maps.Clone(s.salons)
	tickets := maps.Clone(s.tickets)
	counters := maps.Clone(s.counters)
	s.mu.RUnlock()

	var hooks []uow.AfterCommit
	tx := repository.Tx{Tickets: s.Tickets(), Salons: s.Salons()}

	err := fn(ctx, tx, func(h uow.AfterCommit) {
		hooks = append(hooks, h)
	})
	if err != nil {
		s.mu.Lock()
		s.salons, s.tickets, s.counters = salons, tickets, counters
		s.mu.Unlock()
	}

	s.txMu.Unlock()

	if err != nil {
		return err
	}

	for _, h := range hooks {
		h(ctx)
	}

	return nil
}

type TicketRepo struct {
	s *Store
}

func (r *TicketRepo) Create(_ context.Context, t *domain.Ticket) error {
	const op = "memory.TicketRepo.Create"

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.salons[t.SalonID]; !ok {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}
	if _, ok := r.s.tickets[t.ID]; ok {
		return fmt.Errorf("%s: %w", op, repository.ErrConflict)
	}
	if t.UserID != nil && t.Status.Active() {
		if _, ok := r.s.activeByUser(*t.UserID); ok {
			return fmt.Errorf("%s: %w", op, repository.ErrConflict)
		}
	}

	r.s.tickets[t.ID] = cloneTicket(*t)

	return nil
}

func (r *TicketRepo) Get(_ context.Context, id uuid.UUID) (*domain.Ticket, error) {
	const op = "memory.TicketRepo.Get"

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	t, ok := r.s.tickets[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	out := cloneTicket(t)
	return &out, nil
}

func (r *TicketRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Ticket, error) {
	return r.Get(ctx, id)
}

func (r *TicketRepo) Update(_ context.Context, t *domain.Ticket, expected domain.TicketStatus) error {
	const op = "memory.TicketRepo.Update"

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cur, ok := r.s.tickets[t.ID]
	if !ok || cur.Status != expected {
		return fmt.Errorf("%s: %w", op, repository.ErrConflict)
	}

	if t.Status == domain.StatusServing && t.ChairID != nil {
		for id, other := range r.s.tickets {
			if id != t.ID && other.SalonID == t.SalonID && other.Status == domain.StatusServing &&
				other.ChairID != nil && *other.ChairID == *t.ChairID {
				return fmt.Errorf("%s: %w", op, repository.ErrChairOccupied)
			}
		}
	}

	if t.Status == domain.StatusServing && t.StaffName != nil {
		for id, other := range r.s.tickets {
			if id != t.ID && other.SalonID == t.SalonID && other.Status == domain.StatusServing &&
				other.StaffName != nil && *other.StaffName == *t.StaffName {
				return fmt.Errorf("%s: %w", op, repository.ErrStaffOccupied)
			}
		}
	}

	cur.Status = t.Status
	cur.QueuePosition = t.QueuePosition
	cur.StaffName = t.StaffName
	cur.ChairID = t.ChairID
	cur.TotalDuration = t.TotalDuration
	cur.UpdatedAt = t.UpdatedAt
	r.s.tickets[t.ID] = cloneTicket(cur)

	return nil
}

func (r *TicketRepo) ActiveByUser(_ context.Context, userID uuid.UUID) (*domain.Ticket, error) {
	const op = "memory.TicketRepo.ActiveByUser"

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	t, ok := r.s.activeByUser(userID)
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	out := cloneTicket(t)
	return &out, nil
}

func (r *TicketRepo) ChairBusy(_ context.Context, salonID uuid.UUID, chairID int) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, t := range r.s.tickets {
		if t.SalonID == salonID && t.Status == domain.StatusServing && t.ChairID != nil && *t.ChairID == chairID {
			return true, nil
		}
	}

	return false, nil
}

func (r *TicketRepo) StaffBusy(_ context.Context, salonID uuid.UUID, staffName string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, t := range r.s.tickets {
		if t.SalonID == salonID && t.Status == domain.StatusServing && t.StaffName != nil && *t.StaffName == staffName {
			return true, nil
		}
	}

	return false, nil
}

func (r *TicketRepo) NextPosition(_ context.Context, salonID uuid.UUID) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.counters[salonID]++

	return r.s.counters[salonID], nil
}

type SalonRepo struct {
	s *Store
}

func (r *SalonRepo) Create(_ context.Context, salon *domain.Salon) error {
	const op = "memory.SalonRepo.Create"

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.salons {
		if existing.ID == salon.ID || existing.Name == salon.Name {
			return fmt.Errorf("%s: %w", op, repository.ErrConflict)
		}
	}

	r.s.salons[salon.ID] = cloneSalon(*salon)

	return nil
}

func (r *SalonRepo) Get(_ context.Context, id uuid.UUID) (*domain.Salon, error) {
	const op = "memory.SalonRepo.Get"

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	salon, ok := r.s.salons[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	out := cloneSalon(salon)
	return &out, nil
}

func (r *SalonRepo) SetOnline(_ context.Context, id uuid.UUID, online bool) error {
	return r.update("memory.SalonRepo.SetOnline", id, func(s *domain.Salon) {
		s.IsOnline = online
	})
}

func (r *SalonRepo) SetVerified(_ context.Context, id uuid.UUID, verified bool) error {
	return r.update("memory.SalonRepo.SetVerified", id, func(s *domain.Salon) {
		s.IsVerified = verified
	})
}

func (r *SalonRepo) ReplaceServices(_ context.Context, id uuid.UUID, services []domain.SalonService) error {
	return r.update("memory.SalonRepo.ReplaceServices", id, func(s *domain.Salon) {
		s.Services = slices.Clone(services)
	})
}

func (r *SalonRepo) ReplaceStaff(_ context.Context, id uuid.UUID, staff []domain.Staff) error {
	return r.update("memory.SalonRepo.ReplaceStaff", id, func(s *domain.Salon) {
		s.Staff = slices.Clone(staff)
	})
}

func (r *SalonRepo) AddCompletion(_ context.Context, id uuid.UUID, amount int64) error {
	return r.update("memory.SalonRepo.AddCompletion", id, func(s *domain.Salon) {
		s.Revenue += amount
		s.ReviewsCount++
	})
}

func (r *SalonRepo) update(op string, id uuid.UUID, apply func(*domain.Salon)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	salon, ok := r.s.salons[id]
	if !ok {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	apply(&salon)
	salon.UpdatedAt = time.Now().UTC()
	r.s.salons[id] = salon

	return nil
}

type QueryRepo struct {
	s *Store
}

func (r *QueryRepo) ListSalonTickets(
	_ context.Context,
	salonID uuid.UUID,
	statuses ...domain.TicketStatus,
) ([]domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []domain.Ticket{}
	for _, t := range r.s.tickets {
		if t.SalonID == salonID && slices.Contains(statuses, t.Status) {
			out = append(out, cloneTicket(t))
		}
	}

	sort.Slice(out, func(i, j int) bool {
		pi, pj := out[i].QueuePosition, out[j].QueuePosition
		switch {
		case pi != nil && pj != nil && *pi != *pj:
			return *pi < *pj
		case pi != nil && pj == nil:
			return true
		case pi == nil && pj != nil:
			return false
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	return out, nil
}

func (r *QueryRepo) DayStats(_ context.Context, salonID uuid.UUID, since time.Time) (domain.DayStats, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var ds domain.DayStats
	for _, t := range r.s.tickets {
		if t.SalonID == salonID && t.Status == domain.StatusCompleted && !t.UpdatedAt.Before(since) {
			ds.Completed++
			ds.Revenue += t.TotalPrice
		}
	}

	return ds, nil
}

func (r *QueryRepo) WaitingAhead(_ context.Context, salonID uuid.UUID, position int) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var n int64
	for _, t := range r.s.tickets {
		if t.SalonID == salonID && t.Status == domain.StatusWaiting &&
			t.QueuePosition != nil && *t.QueuePosition < position {
			n++
		}
	}

	return n, nil
}

func (r *QueryRepo) UserHistory(_ context.Context, userID uuid.UUID, limit, offset int) ([]domain.Ticket, error) {
	return r.history(func(t domain.Ticket) bool { return t.OwnedBy(userID) }, limit, offset), nil
}

func (r *QueryRepo) SalonHistory(_ context.Context, salonID uuid.UUID, limit, offset int) ([]domain.Ticket, error) {
	return r.history(func(t domain.Ticket) bool { return t.SalonID == salonID }, limit, offset), nil
}

func (r *QueryRepo) history(match func(domain.Ticket) bool, limit, offset int) []domain.Ticket {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	all := []domain.Ticket{}
	for _, t := range r.s.tickets {
		if t.Status.Terminal() && match(t) {
			all = append(all, cloneTicket(t))
		}
	}

	sort.Slice(all, func(i, j int) bool {
		if !all[i].UpdatedAt.Equal(all[j].UpdatedAt) {
			return all[i].UpdatedAt.After(all[j].UpdatedAt)
		}
		return all[i].ID.String() < all[j].ID.String()
	})

	return page(all, limit, offset)
}

func (r *QueryRepo) ListSalons(_ context.Context, onlyOnline bool, limit, offset int) ([]domain.SalonListing, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []domain.SalonListing{}
	for _, s := range r.s.salons {
		if onlyOnline && !s.IsOnline {
			continue
		}

		l := domain.SalonListing{
			ID:         s.ID,
			Name:       s.Name,
			IsOnline:   s.IsOnline,
			IsVerified: s.IsVerified,
			Rating:     s.Rating,
		}
		for _, t := range r.s.tickets {
			if t.SalonID != s.ID {
				continue
			}
			switch t.Status {
			case domain.StatusWaiting:
				l.Waiting++
				l.EstTime += int64(t.TotalDuration)
			case domain.StatusServing:
				l.EstTime += int64(t.TotalDuration)
			}
		}
		out = append(out, l)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].IsOnline != out[j].IsOnline {
			return out[i].IsOnline
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID.String() < out[j].ID.String()
	})

	return page(out, limit, offset), nil
}

func (r *QueryRepo) AdminStats(_ context.Context, since time.Time) (domain.AdminStats, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	stats := domain.AdminStats{TicketsToday: map[domain.TicketStatus]int64{}}
	for _, s := range r.s.salons {
		stats.Salons++
		if s.IsOnline {
			stats.OnlineSalons++
		}
		if s.IsVerified {
			stats.VerifiedSalons++
		}
		stats.RevenueTotal += s.Revenue
	}

	for _, t := range r.s.tickets {
		if t.UpdatedAt.Before(since) {
			continue
		}
		stats.TicketsToday[t.Status]++
		if t.Status == domain.StatusCompleted {
			stats.RevenueToday += t.TotalPrice
		}
	}

	return stats, nil
}

func (s *Store) activeByUser(userID uuid.UUID) (domain.Ticket, bool) {
	for _, t := range s.tickets {
		if t.OwnedBy(userID) && t.Status.Active() {
			return t, true
		}
	}
	return domain.Ticket{}, false
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func cloneTicket(t domain.Ticket) domain.Ticket {
	t.Services = slices.Clone(t.Services)
	return t
}

func cloneSalon(s domain.Salon) domain.Salon {
	s.Services = slices.Clone(s.Services)
	s.Staff = slices.Clone(s.Staff)
	return s
}
