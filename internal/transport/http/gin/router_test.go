package httpgin

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kirinyoku/salonq/internal/auth"
	"github.com/kirinyoku/salonq/internal/domain"
	"github.com/kirinyoku/salonq/internal/realtime"
	"github.com/kirinyoku/salonq/internal/repository/memory"
	redisrepo "github.com/kirinyoku/salonq/internal/repository/redis"
	"github.com/kirinyoku/salonq/internal/service"
	"github.com/kirinyoku/salonq/internal/service/query"
	"github.com/kirinyoku/salonq/internal/service/queue"
	"github.com/kirinyoku/salonq/internal/service/salon"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type env struct {
	router   *gin.Engine
	store    *memory.Store
	salon    *domain.Salon
	verifier *auth.Verifier
	mr       *miniredis.Miniredis
}

type envOptions struct {
	joinLimit int
}

func newEnv(t *testing.T, opts envOptions) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewStore()
	cache := redisrepo.New(rdb)

	var limiter queue.Limiter
	if opts.joinLimit > 0 {
		limiter = redisrepo.NewSlidingWindowLimiter(rdb, redisrepo.PrefixRateLimit("join"), opts.joinLimit, time.Minute)
	}

	svcs := &service.Services{
		Queue: queue.New(store, nil, cache, limiter, log, queue.Config{}),
		Query: query.New(store.Tickets(), store.Salons(), store.Query(), cache, query.Config{}),
		Salon: salon.New(store, nil, cache, log),
	}

	s := &domain.Salon{
		ID:       uuid.New(),
		Name:     "Sharp Lines",
		Chairs:   2,
		IsOnline: true,
		Services: []domain.SalonService{{Name: "haircut", Price: 300, Duration: 30}},
	}
	require.NoError(t, store.Salons().Create(context.Background(), s))

	verifier := auth.NewVerifier(testSecret)

	return &env{
		router: NewRouter(svcs, Deps{
			Idempotency: redisrepo.NewIdempotencyStore(rdb, time.Hour),
			Verifier:    verifier,
			Hub:         realtime.NewHub(log, realtime.Options{}),
			Logger:      log,
		}),
		store:    store,
		salon:    s,
		verifier: verifier,
		mr:       mr,
	}
}

func (e *env) token(t *testing.T, id uuid.UUID, role auth.Role) string {
	t.Helper()

	tok, err := e.verifier.Sign(auth.Identity{ID: id, Role: role}, time.Hour)
	require.NoError(t, err)
	return tok
}

type call struct {
	method  string
	path    string
	token   string
	body    any
	headers map[string]string
}

func (e *env) do(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()

	var body io.Reader
	if c.body != nil {
		b, err := json.Marshal(c.body)
		require.NoError(t, err)
		body = bytes.NewReader(b)
	}

	req := httptest.NewRequest(c.method, c.path, body)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) (Response, T) {
	t.Helper()

	var raw struct {
		Success bool            `json:"success"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))

	var data T
	if len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, &data))
	}

	return Response{Success: raw.Success, Message: raw.Message}, data
}

func (e *env) joinBody() JoinQueueRequest {
	return JoinQueueRequest{
		SalonID:  e.salon.ID.String(),
		Services: []ServiceItemInput{{Name: "haircut", Price: 300, Duration: 30}},
	}
}

func (e *env) join(t *testing.T, userID uuid.UUID) domain.Ticket {
	t.Helper()

	w := e.do(t, call{method: http.MethodPost, path: "/api/queue/join", token: e.token(t, userID, auth.RoleUser), body: e.joinBody()})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	_, ticket := decode[domain.Ticket](t, w)
	return ticket
}

func TestHealthz(t *testing.T) {
	e := newEnv(t, envOptions{})

	w := e.do(t, call{method: http.MethodGet, path: "/healthz"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestAuthAndRoles(t *testing.T) {
	e := newEnv(t, envOptions{})
	userID := uuid.New()

	w := e.do(t, call{method: http.MethodGet, path: "/api/queue/me"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(t, call{method: http.MethodGet, path: "/api/queue/me", token: "garbage"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(t, call{method: http.MethodGet, path: "/api/salon/board", token: e.token(t, userID, auth.RoleUser)})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(t, call{method: http.MethodGet, path: "/api/admin/stats", token: e.token(t, e.salon.ID, auth.RoleSalon)})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestJoinAndCurrentTicket(t *testing.T) {
	e := newEnv(t, envOptions{})
	userID := uuid.New()

	ticket := e.join(t, userID)
	assert.Equal(t, domain.StatusPending, ticket.Status)
	assert.Equal(t, int64(300), ticket.TotalPrice)

	w := e.do(t, call{method: http.MethodGet, path: "/api/queue/me", token: e.token(t, userID, auth.RoleUser)})
	require.Equal(t, http.StatusOK, w.Code)
	resp, view := decode[domain.TicketView](t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, ticket.ID, view.ID)

	w = e.do(t, call{method: http.MethodPost, path: "/api/queue/join", token: e.token(t, userID, auth.RoleUser), body: e.joinBody()})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestJoinValidation(t *testing.T) {
	e := newEnv(t, envOptions{})
	tok := e.token(t, uuid.New(), auth.RoleUser)

	w := e.do(t, call{method: http.MethodPost, path: "/api/queue/join", token: tok, body: JoinQueueRequest{SalonID: "nope"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body := e.joinBody()
	body.Services[0].Name = "perm"
	w = e.do(t, call{method: http.MethodPost, path: "/api/queue/join", token: tok, body: body})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body = e.joinBody()
	body.Services[0].Duration = -1
	w = e.do(t, call{method: http.MethodPost, path: "/api/queue/join", token: tok, body: body})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body = e.joinBody()
	body.SalonID = uuid.NewString()
	w = e.do(t, call{method: http.MethodPost, path: "/api/queue/join", token: tok, body: body})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestJoinWithServiceNamesOnly(t *testing.T) {
	e := newEnv(t, envOptions{})

	body := map[string]any{
		"salon_id": e.salon.ID.String(),
		"services": []map[string]any{{"name": "haircut"}},
	}
	w := e.do(t, call{method: http.MethodPost, path: "/api/queue/join", token: e.token(t, uuid.New(), auth.RoleUser), body: body})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	_, ticket := decode[domain.Ticket](t, w)
	assert.Equal(t, int64(300), ticket.TotalPrice)
	assert.Equal(t, 30, ticket.TotalDuration)
}

func TestJoinIdempotencyKey(t *testing.T) {
	e := newEnv(t, envOptions{})
	userID := uuid.New()
	tok := e.token(t, userID, auth.RoleUser)

	first := e.do(t, call{
		method:  http.MethodPost,
		path:    "/api/queue/join",
		token:   tok,
		body:    e.joinBody(),
		headers: map[string]string{"Idempotency-Key": "abc"},
	})
	require.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, "abc", first.Header().Get("Idempotency-Key"))

	replay := e.do(t, call{
		method:  http.MethodPost,
		path:    "/api/queue/join",
		token:   tok,
		body:    e.joinBody(),
		headers: map[string]string{"Idempotency-Key": "abc"},
	})
	require.Equal(t, http.StatusCreated, replay.Code)
	assert.Equal(t, first.Body.String(), replay.Body.String())

	// A failed request releases its key.
	other := e.do(t, call{
		method:  http.MethodPost,
		path:    "/api/queue/join",
		token:   tok,
		body:    e.joinBody(),
		headers: map[string]string{"Idempotency-Key": "def"},
	})
	assert.Equal(t, http.StatusConflict, other.Code)
	assert.False(t, e.mr.Exists(redisrepo.KeyIdemJoin(userID, "def")))
}

func TestJoinInProgressKey(t *testing.T) {
	e := newEnv(t, envOptions{})
	userID := uuid.New()

	require.NoError(t, e.mr.Set(redisrepo.KeyIdemJoin(userID, "busy"), "LOCK"))

	w := e.do(t, call{
		method:  http.MethodPost,
		path:    "/api/queue/join",
		token:   e.token(t, userID, auth.RoleUser),
		body:    e.joinBody(),
		headers: map[string]string{"Idempotency-Key": "busy"},
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestJoinRateLimited(t *testing.T) {
	e := newEnv(t, envOptions{joinLimit: 1})
	userID := uuid.New()
	tok := e.token(t, userID, auth.RoleUser)

	ticket := e.join(t, userID)

	w := e.do(t, call{method: http.MethodPost, path: "/api/queue/" + ticket.ID.String() + "/cancel", token: tok})
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, call{method: http.MethodPost, path: "/api/queue/join", token: tok, body: e.joinBody()})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestStaffFlow(t *testing.T) {
	e := newEnv(t, envOptions{})
	staff := e.token(t, e.salon.ID, auth.RoleSalon)
	userID := uuid.New()

	ticket := e.join(t, userID)
	base := "/api/queue/" + ticket.ID.String()

	w := e.do(t, call{method: http.MethodPost, path: base + "/accept", token: staff})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	_, accepted := decode[domain.Ticket](t, w)
	assert.Equal(t, domain.StatusWaiting, accepted.Status)
	require.NotNil(t, accepted.QueuePosition)
	assert.Equal(t, 1, *accepted.QueuePosition)

	w = e.do(t, call{method: http.MethodPost, path: base + "/start", token: staff, body: StartServiceRequest{ChairID: 1, StaffName: "Noor"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = e.do(t, call{method: http.MethodPost, path: base + "/extend", token: staff, body: ExtendRequest{Minutes: 10}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	_, extended := decode[domain.Ticket](t, w)
	assert.Equal(t, 40, extended.TotalDuration)

	w = e.do(t, call{method: http.MethodPost, path: base + "/accept", token: staff})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = e.do(t, call{method: http.MethodGet, path: "/api/salon/board", token: staff})
	require.Equal(t, http.StatusOK, w.Code)
	_, board := decode[domain.Board](t, w)
	require.Len(t, board.Serving, 1)

	w = e.do(t, call{method: http.MethodPost, path: base + "/complete", token: staff})
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, call{method: http.MethodGet, path: "/api/bookings/history", token: e.token(t, userID, auth.RoleUser)})
	require.Equal(t, http.StatusOK, w.Code)
	_, history := decode[[]domain.Ticket](t, w)
	require.Len(t, history, 1)
	assert.Equal(t, domain.StatusCompleted, history[0].Status)

	w = e.do(t, call{method: http.MethodGet, path: "/api/bookings/history", token: staff})
	require.Equal(t, http.StatusOK, w.Code)
	_, history = decode[[]domain.Ticket](t, w)
	assert.Len(t, history, 1)
}

func TestStaffErrors(t *testing.T) {
	e := newEnv(t, envOptions{})
	staff := e.token(t, e.salon.ID, auth.RoleSalon)

	w := e.do(t, call{method: http.MethodPost, path: "/api/queue/not-a-uuid/accept", token: staff})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, call{method: http.MethodPost, path: "/api/queue/" + uuid.NewString() + "/accept", token: staff})
	assert.Equal(t, http.StatusNotFound, w.Code)

	first := e.join(t, uuid.New())
	second := e.join(t, uuid.New())
	for _, id := range []uuid.UUID{first.ID, second.ID} {
		w = e.do(t, call{method: http.MethodPost, path: "/api/queue/" + id.String() + "/accept", token: staff})
		require.Equal(t, http.StatusOK, w.Code)
	}

	start := StartServiceRequest{ChairID: 2, StaffName: "Noor"}
	w = e.do(t, call{method: http.MethodPost, path: "/api/queue/" + first.ID.String() + "/start", token: staff, body: start})
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, call{method: http.MethodPost, path: "/api/queue/" + second.ID.String() + "/start", token: staff, body: start})
	assert.Equal(t, http.StatusConflict, w.Code)

	sameStaff := StartServiceRequest{ChairID: 1, StaffName: "Noor"}
	w = e.do(t, call{method: http.MethodPost, path: "/api/queue/" + second.ID.String() + "/start", token: staff, body: sameStaff})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = e.do(t, call{method: http.MethodPost, path: "/api/queue/" + second.ID.String() + "/start", token: staff, body: map[string]any{"chair_id": 1}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	other := e.token(t, uuid.New(), auth.RoleSalon)
	w = e.do(t, call{method: http.MethodPost, path: "/api/queue/" + second.ID.String() + "/no-show", token: other})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCancelByAnotherUser(t *testing.T) {
	e := newEnv(t, envOptions{})
	ticket := e.join(t, uuid.New())

	w := e.do(t, call{method: http.MethodPost, path: "/api/queue/" + ticket.ID.String() + "/cancel", token: e.token(t, uuid.New(), auth.RoleUser)})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestWalkIn(t *testing.T) {
	e := newEnv(t, envOptions{})

	w := e.do(t, call{
		method: http.MethodPost,
		path:   "/api/queue/walk-in",
		token:  e.token(t, e.salon.ID, auth.RoleSalon),
		body: WalkInRequest{
			GuestName: "Walk-in Sam",
			Services:  []ServiceItemInput{{Name: "haircut", Price: 300, Duration: 30}},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	_, ticket := decode[domain.Ticket](t, w)
	assert.Equal(t, domain.StatusWaiting, ticket.Status)
	assert.Nil(t, ticket.UserID)
}

func TestListSalonsETag(t *testing.T) {
	e := newEnv(t, envOptions{})

	w := e.do(t, call{method: http.MethodGet, path: "/api/salons?online=true"})
	require.Equal(t, http.StatusOK, w.Code)
	tag := w.Header().Get("ETag")
	require.NotEmpty(t, tag)
	assert.Equal(t, "public, max-age=10", w.Header().Get("Cache-Control"))

	_, listing := decode[[]domain.SalonListing](t, w)
	require.Len(t, listing, 1)
	assert.Equal(t, e.salon.ID, listing[0].ID)

	w = e.do(t, call{method: http.MethodGet, path: "/api/salons?online=true", headers: map[string]string{"If-None-Match": tag}})
	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Empty(t, w.Body.Bytes())

	w = e.do(t, call{method: http.MethodGet, path: "/api/salons/" + e.salon.ID.String()})
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, call{method: http.MethodGet, path: "/api/salons/" + uuid.NewString()})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSalonManagement(t *testing.T) {
	e := newEnv(t, envOptions{})
	admin := e.token(t, uuid.New(), auth.RoleAdmin)

	w := e.do(t, call{method: http.MethodPost, path: "/api/admin/salons", token: admin, body: CreateSalonRequest{Name: "Mane Event", Chairs: 3}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	_, created := decode[domain.Salon](t, w)
	assert.False(t, created.IsOnline)

	w = e.do(t, call{method: http.MethodPost, path: "/api/admin/salons", token: admin, body: CreateSalonRequest{Name: "Mane Event", Chairs: 3}})
	assert.Equal(t, http.StatusConflict, w.Code)

	verified := true
	w = e.do(t, call{method: http.MethodPut, path: "/api/admin/salons/" + created.ID.String() + "/verify", token: admin, body: SetVerifiedRequest{IsVerified: &verified}})
	require.Equal(t, http.StatusOK, w.Code)

	staff := e.token(t, created.ID, auth.RoleSalon)
	online := true
	w = e.do(t, call{method: http.MethodPut, path: "/api/salon/status", token: staff, body: SetOnlineRequest{IsOnline: &online}})
	require.Equal(t, http.StatusOK, w.Code)
	_, updated := decode[domain.Salon](t, w)
	assert.True(t, updated.IsOnline)
	assert.True(t, updated.IsVerified)

	w = e.do(t, call{method: http.MethodPut, path: "/api/salon/status", token: staff, body: map[string]any{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, call{method: http.MethodPut, path: "/api/salon/services", token: staff, body: ReplaceServicesRequest{
		Services: []domain.SalonService{{Name: "beard trim", Price: 120, Duration: 15}},
	}})
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, call{method: http.MethodPut, path: "/api/salon/staff", token: staff, body: ReplaceStaffRequest{
		Staff: []domain.Staff{{Name: "Noor", Status: "asleep"}},
	}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, call{method: http.MethodGet, path: "/api/admin/stats", token: admin})
	require.Equal(t, http.StatusOK, w.Code)
	_, stats := decode[domain.AdminStats](t, w)
	assert.Equal(t, int64(2), stats.Salons)
	assert.Equal(t, int64(2), stats.OnlineSalons)
}

func TestWebsocketRequiresToken(t *testing.T) {
	e := newEnv(t, envOptions{})

	w := e.do(t, call{method: http.MethodGet, path: "/ws"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
