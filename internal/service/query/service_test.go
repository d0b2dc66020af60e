package query

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/kirinyoku/salonq/internal/domain"
	"github.com/kirinyoku/salonq/internal/repository/memory"
	redisrepo "github.com/kirinyoku/salonq/internal/repository/redis"
	"github.com/kirinyoku/salonq/internal/service/queue"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	now   time.Time
	store *memory.Store
	queue *queue.Service
	svc   *Service
	salon *domain.Salon
}

func newFixture(t *testing.T, cache *redisrepo.Cache) *fixture {
	t.Helper()

	store := memory.NewStore()
	salon := &domain.Salon{
		ID:       uuid.New(),
		Name:     "Fade Factory",
		Chairs:   2,
		IsOnline: true,
		Services: []domain.SalonService{{Name: "haircut", Price: 250, Duration: 25}},
	}
	require.NoError(t, store.Salons().Create(context.Background(), salon))

	f := &fixture{
		now:   time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		store: store,
		salon: salon,
	}
	clock := func() time.Time { return f.now }

	var inv queue.Invalidator
	if cache != nil {
		inv = cache
	}

	f.queue = queue.New(store, nil, inv, nil, nil, queue.Config{Now: clock})
	f.svc = New(store.Tickets(), store.Salons(), store.Query(), cache, Config{Now: clock})

	return f
}

func (f *fixture) join(t *testing.T, userID uuid.UUID) *domain.Ticket {
	t.Helper()

	ticket, err := f.queue.Join(context.Background(), userID, queue.JoinRequest{
		SalonID:  f.salon.ID,
		Services: []domain.ServiceItem{{Name: "haircut", Price: 250, Duration: 25}},
	})
	require.NoError(t, err)
	return ticket
}

func (f *fixture) waiting(t *testing.T, userID uuid.UUID) *domain.Ticket {
	t.Helper()

	ticket, err := f.queue.Accept(context.Background(), f.salon.ID, f.join(t, userID).ID)
	require.NoError(t, err)
	return ticket
}

func TestCurrentTicketAhead(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	u1, u2, u3 := uuid.New(), uuid.New(), uuid.New()
	f.waiting(t, u1)
	f.waiting(t, u2)
	f.join(t, u3)

	view, err := f.svc.CurrentTicket(ctx, u2)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWaiting, view.Status)
	assert.Equal(t, int64(1), view.Ahead)

	view, err = f.svc.CurrentTicket(ctx, u3)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, view.Status)
	assert.Equal(t, int64(2), view.Ahead)

	_, err = f.svc.CurrentTicket(ctx, uuid.New())
	require.ErrorIs(t, err, ErrNoActiveTicket)
}

func TestBoard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	done := f.waiting(t, uuid.New())
	_, err := f.queue.Start(ctx, f.salon.ID, done.ID, 1, "Asha")
	require.NoError(t, err)
	_, err = f.queue.Complete(ctx, f.salon.ID, done.ID)
	require.NoError(t, err)

	serving := f.waiting(t, uuid.New())
	_, err = f.queue.Start(ctx, f.salon.ID, serving.ID, 2, "Asha")
	require.NoError(t, err)

	ahead := f.waiting(t, uuid.New())
	behind := f.waiting(t, uuid.New())
	pending := f.join(t, uuid.New())

	board, err := f.svc.Board(ctx, f.salon.ID)
	require.NoError(t, err)

	require.Len(t, board.Pending, 1)
	assert.Equal(t, pending.ID, board.Pending[0].ID)
	require.Len(t, board.Waiting, 2)
	assert.Equal(t, ahead.ID, board.Waiting[0].ID)
	assert.Equal(t, behind.ID, board.Waiting[1].ID)
	require.Len(t, board.Serving, 1)
	assert.Equal(t, serving.ID, board.Serving[0].ID)
	assert.Equal(t, domain.DayStats{Completed: 1, Revenue: 250}, board.Today)

	_, err = f.svc.Board(ctx, uuid.New())
	require.ErrorIs(t, err, ErrSalonNotFound)
}

func TestBoardOrderAcrossMidnight(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	f.now = time.Date(2026, 3, 1, 23, 50, 0, 0, time.UTC)
	a := f.waiting(t, uuid.New())
	b := f.waiting(t, uuid.New())

	f.now = time.Date(2026, 3, 2, 0, 5, 0, 0, time.UTC)
	lateUser := uuid.New()
	c := f.waiting(t, lateUser)

	assert.Equal(t, 1, *a.QueuePosition)
	assert.Equal(t, 2, *b.QueuePosition)
	assert.Equal(t, 3, *c.QueuePosition)

	board, err := f.svc.Board(ctx, f.salon.ID)
	require.NoError(t, err)
	require.Len(t, board.Waiting, 3)
	assert.Equal(t, a.ID, board.Waiting[0].ID)
	assert.Equal(t, b.ID, board.Waiting[1].ID)
	assert.Equal(t, c.ID, board.Waiting[2].ID)

	view, err := f.svc.CurrentTicket(ctx, lateUser)
	require.NoError(t, err)
	assert.Equal(t, int64(2), view.Ahead)
}

func TestHistory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	userID := uuid.New()

	first := f.join(t, userID)
	_, err := f.queue.Cancel(ctx, userID, first.ID)
	require.NoError(t, err)

	f.now = f.now.Add(time.Minute)

	second := f.join(t, userID)
	_, err = f.queue.Reject(ctx, f.salon.ID, second.ID)
	require.NoError(t, err)

	f.join(t, userID)

	history, err := f.svc.UserHistory(ctx, userID, 0, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, second.ID, history[0].ID)
	assert.Equal(t, first.ID, history[1].ID)

	history, err = f.svc.SalonHistory(ctx, f.salon.ID, 1, 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, first.ID, history[0].ID)
}

func TestListSalonsCachedAndInvalidated(t *testing.T) {
	ctx := context.Background()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := newFixture(t, redisrepo.New(rdb))

	offline := &domain.Salon{ID: uuid.New(), Name: "Afterhours", Chairs: 1}
	require.NoError(t, f.store.Salons().Create(ctx, offline))

	serving := f.waiting(t, uuid.New())
	_, err := f.queue.Start(ctx, f.salon.ID, serving.ID, 1, "Asha")
	require.NoError(t, err)
	f.waiting(t, uuid.New())
	f.join(t, uuid.New())

	listing, err := f.svc.ListSalons(ctx, false, 0, 0)
	require.NoError(t, err)
	require.Len(t, listing, 2)
	assert.Equal(t, f.salon.ID, listing[0].ID, "online salons first")
	assert.Equal(t, int64(1), listing[0].Waiting)
	assert.Equal(t, int64(50), listing[0].EstTime)
	assert.Equal(t, int64(0), listing[1].Waiting)
	assert.True(t, mr.Exists(redisrepo.KeySalonListing(false, 20, 0)))

	online, err := f.svc.ListSalons(ctx, true, 0, 0)
	require.NoError(t, err)
	require.Len(t, online, 1)

	f.waiting(t, uuid.New())
	assert.False(t, mr.Exists(redisrepo.KeySalonListing(false, 20, 0)))

	listing, err = f.svc.ListSalons(ctx, false, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), listing[0].Waiting)
	assert.Equal(t, int64(75), listing[0].EstTime)
}

func TestGetSalon(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	salon, err := f.svc.GetSalon(ctx, f.salon.ID)
	require.NoError(t, err)
	assert.Equal(t, "Fade Factory", salon.Name)

	_, err = f.svc.GetSalon(ctx, uuid.New())
	require.ErrorIs(t, err, ErrSalonNotFound)
}

func TestAdminStats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	ticket := f.waiting(t, uuid.New())
	_, err := f.queue.Start(ctx, f.salon.ID, ticket.ID, 1, "Asha")
	require.NoError(t, err)
	_, err = f.queue.Complete(ctx, f.salon.ID, ticket.ID)
	require.NoError(t, err)
	f.join(t, uuid.New())

	stats, err := f.svc.AdminStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Salons)
	assert.Equal(t, int64(1), stats.OnlineSalons)
	assert.Equal(t, int64(250), stats.RevenueToday)
	assert.Equal(t, int64(250), stats.RevenueTotal)
	assert.Equal(t, int64(1), stats.TicketsToday[domain.StatusCompleted])
	assert.Equal(t, int64(1), stats.TicketsToday[domain.StatusPending])
}
