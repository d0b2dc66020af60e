package httpgin

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/kirinyoku/salonq/internal/auth"
	"github.com/kirinyoku/salonq/internal/realtime"
	redisrepo "github.com/kirinyoku/salonq/internal/repository/redis"
	"github.com/kirinyoku/salonq/internal/service"
	"github.com/kirinyoku/salonq/internal/service/query"
	"github.com/kirinyoku/salonq/internal/service/queue"
	"github.com/kirinyoku/salonq/internal/service/salon"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

const jsonContentType = "application/json; charset=utf-8"

// Deps are the collaborators the router needs besides the services.
// Idempotency is optional; without it Idempotency-Key is ignored.
type Deps struct {
	Idempotency *redisrepo.IdempotencyStore
	Verifier    *auth.Verifier
	Hub         *realtime.Hub
	Logger      *slog.Logger
}

func NewRouter(svcs *service.Services, deps Deps, middlewares ...gin.HandlerFunc) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := gin.New()

	r.Use(gin.Recovery(), LoggingMiddleware(deps.Logger), RequestIDMiddleware(), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// health
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, Response{Success: true, Message: "ok"})
	})

	r.GET("/ws", handleWebsocket(deps.Hub, deps.Verifier))

	api := r.Group("/api")

	// Public API
	api.GET("/salons", handleListSalons(svcs))
	api.GET("/salons/:id", handleGetSalon(svcs))

	authed := api.Group("", Auth(deps.Verifier))

	user := authed.Group("", RequireRole(auth.RoleUser))
	{
		user.POST("/queue/join", handleJoinQueue(svcs, deps.Idempotency))
		user.POST("/queue/:id/cancel", handleCancel(svcs))
		user.GET("/queue/me", handleCurrentTicket(svcs))
	}

	staff := authed.Group("", RequireRole(auth.RoleSalon))
	{
		staff.POST("/queue/walk-in", handleWalkIn(svcs))
		staff.POST("/queue/:id/accept", handleSalonAction(svcs.Queue.Accept))
		staff.POST("/queue/:id/reject", handleSalonAction(svcs.Queue.Reject))
		staff.POST("/queue/:id/start", handleStart(svcs))
		staff.POST("/queue/:id/complete", handleSalonAction(svcs.Queue.Complete))
		staff.POST("/queue/:id/no-show", handleSalonAction(svcs.Queue.NoShow))
		staff.POST("/queue/:id/extend", handleExtend(svcs))

		staff.GET("/salon/board", handleBoard(svcs))
		staff.PUT("/salon/status", handleSetOnline(svcs))
		staff.PUT("/salon/services", handleReplaceServices(svcs))
		staff.PUT("/salon/staff", handleReplaceStaff(svcs))
	}

	authed.GET("/bookings/history", RequireRole(auth.RoleUser, auth.RoleSalon), handleHistory(svcs))

	admin := authed.Group("/admin", RequireRole(auth.RoleAdmin))
	{
		admin.POST("/salons", handleCreateSalon(svcs))
		admin.PUT("/salons/:id/verify", handleSetVerified(svcs))
		admin.GET("/stats", handleAdminStats(svcs))
	}

	return r
}

// --- Helpers ---

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	v, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return v, true
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func respondOK(c *gin.Context, status int, message string, data any) {
	c.JSON(status, Response{Success: true, Message: message, Data: data})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{Message: msg})
}

var errStatuses = []struct {
	err    error
	status int
}{
	{queue.ErrTicketNotFound, http.StatusNotFound},
	{queue.ErrSalonNotFound, http.StatusNotFound},
	{query.ErrSalonNotFound, http.StatusNotFound},
	{query.ErrNoActiveTicket, http.StatusNotFound},
	{salon.ErrSalonNotFound, http.StatusNotFound},

	{queue.ErrActiveTicketExists, http.StatusConflict},
	{queue.ErrInvalidTransition, http.StatusConflict},
	{queue.ErrChairBusy, http.StatusConflict},
	{queue.ErrStaffBusy, http.StatusConflict},
	{queue.ErrSalonOffline, http.StatusConflict},
	{salon.ErrSalonConflict, http.StatusConflict},

	{queue.ErrNotTicketOwner, http.StatusForbidden},
	{auth.ErrInvalidToken, http.StatusUnauthorized},
}

func respondErr(c *gin.Context, err error) {
	var (
		limited  *queue.RateLimitedError
		queueErr *queue.ValidationError
		salonErr *salon.ValidationError
	)

	switch {
	case errors.As(err, &limited):
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(limited.RetryAfter)))
		c.JSON(http.StatusTooManyRequests, Response{Message: "too many requests"})
		return
	case errors.As(err, &queueErr):
		badRequest(c, queueErr.Error())
		return
	case errors.As(err, &salonErr):
		badRequest(c, salonErr.Error())
		return
	}

	for _, e := range errStatuses {
		if errors.Is(err, e.err) {
			c.JSON(e.status, Response{Message: e.err.Error()})
			return
		}
	}

	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, Response{Message: "internal error"})
}

func retryAfterSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}

func websocketUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		// Origins are governed by the same open CORS policy as the API.
		CheckOrigin: func(*http.Request) bool { return true },
	}
}
