package httpgin

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kirinyoku/salonq/internal/domain"
	redisrepo "github.com/kirinyoku/salonq/internal/repository/redis"
	"github.com/kirinyoku/salonq/internal/service"
	"github.com/kirinyoku/salonq/internal/service/queue"
)

const idemLockTTL = 30 * time.Second

// @Summary  Join a salon queue (idempotent)
// @Security BearerAuth
// @Param    req body  JoinQueueRequest true "payload"
// @Header   201 {string} Idempotency-Key "echo"
// @Success  201 {object} Response{data=domain.Ticket}
// @Failure  400 {object} Response
// @Failure  409 {object} Response "active ticket exists / salon offline / idem in progress"
// @Failure  429 {object} Response "rate limited"
// @Router   /api/queue/join [post]
func handleJoinQueue(svcs *service.Services, idem *redisrepo.IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := identityFrom(c)

		var req JoinQueueRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		salonID, err := uuid.Parse(req.SalonID)
		if err != nil {
			badRequest(c, "invalid salon_id")
			return
		}

		ctx := c.Request.Context()

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var storageKey string
		if idem != nil && idemKey != "" {
			storageKey = redisrepo.KeyIdemJoin(id.ID, idemKey)

			state, payload, err := idem.Begin(ctx, storageKey, idemLockTTL)
			if err != nil {
				respondErr(c, err)
				return
			}

			switch state {
			case redisrepo.IdemDone:
				c.Header("Idempotency-Key", idemKey)
				c.Data(http.StatusCreated, jsonContentType, []byte(payload))
				return
			case redisrepo.IdemInProgress:
				c.Header("Retry-After", "1")
				c.JSON(http.StatusConflict, Response{Message: "idempotency key in progress"})
				return
			}
		}

		ticket, err := svcs.Queue.Join(ctx, id.ID, queue.JoinRequest{
			SalonID:       salonID,
			Services:      toItems(req.Services),
			TotalPrice:    req.TotalPrice,
			TotalDuration: req.TotalDuration,
		})
		if err != nil {
			if storageKey != "" {
				_ = idem.Release(context.WithoutCancel(ctx), storageKey)
			}
			respondErr(c, err)
			return
		}

		b, err := json.Marshal(Response{Success: true, Message: "joined queue", Data: ticket})
		if err != nil {
			respondErr(c, err)
			return
		}

		if storageKey != "" {
			_ = idem.SaveResult(context.WithoutCancel(ctx), storageKey, string(b))
			c.Header("Idempotency-Key", idemKey)
		}

		c.Data(http.StatusCreated, jsonContentType, b)
	}
}

// @Summary  Add a walk-in guest to the queue
// @Security BearerAuth
// @Param    req body  WalkInRequest true "payload"
// @Success  201 {object} Response{data=domain.Ticket}
// @Failure  400 {object} Response
// @Router   /api/queue/walk-in [post]
func handleWalkIn(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := identityFrom(c)

		var req WalkInRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		ticket, err := svcs.Queue.WalkIn(c.Request.Context(), id.ID, queue.WalkInRequest{
			GuestName:   req.GuestName,
			GuestMobile: req.GuestMobile,
			Services:    toItems(req.Services),
		})
		if err != nil {
			respondErr(c, err)
			return
		}

		respondOK(c, http.StatusCreated, "walk-in added", ticket)
	}
}

type salonAction func(ctx context.Context, salonID, ticketID uuid.UUID) (*domain.Ticket, error)

// handleSalonAction serves the staff transitions that need nothing but
// the ticket id: accept, reject, complete and no-show.
//
// @Summary  Apply a staff transition to a ticket
// @Security BearerAuth
// @Param    id  path  string  true  "Ticket ID (uuid)"
// @Success  200 {object} Response{data=domain.Ticket}
// @Failure  404 {object} Response
// @Failure  409 {object} Response "invalid transition"
// @Router   /api/queue/{id}/accept [post]
// @Router   /api/queue/{id}/reject [post]
// @Router   /api/queue/{id}/complete [post]
// @Router   /api/queue/{id}/no-show [post]
func handleSalonAction(action salonAction) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := identityFrom(c)
		ticketID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		ticket, err := action(c.Request.Context(), id.ID, ticketID)
		if err != nil {
			respondErr(c, err)
			return
		}

		respondOK(c, http.StatusOK, "ticket "+string(ticket.Status), ticket)
	}
}

// @Summary  Seat a waiting ticket in a chair
// @Security BearerAuth
// @Param    id  path  string  true  "Ticket ID (uuid)"
// @Param    req body  StartServiceRequest true "payload"
// @Success  200 {object} Response{data=domain.Ticket}
// @Failure  409 {object} Response "chair busy / invalid transition"
// @Router   /api/queue/{id}/start [post]
func handleStart(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := identityFrom(c)
		ticketID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		var req StartServiceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		ticket, err := svcs.Queue.Start(c.Request.Context(), id.ID, ticketID, req.ChairID, req.StaffName)
		if err != nil {
			respondErr(c, err)
			return
		}

		respondOK(c, http.StatusOK, "service started", ticket)
	}
}

// @Summary  Extend the estimated duration of a ticket
// @Security BearerAuth
// @Param    id  path  string  true  "Ticket ID (uuid)"
// @Param    req body  ExtendRequest true "payload"
// @Success  200 {object} Response{data=domain.Ticket}
// @Router   /api/queue/{id}/extend [post]
func handleExtend(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := identityFrom(c)
		ticketID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		var req ExtendRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		ticket, err := svcs.Queue.Extend(c.Request.Context(), id.ID, ticketID, req.Minutes)
		if err != nil {
			respondErr(c, err)
			return
		}

		respondOK(c, http.StatusOK, "service extended", ticket)
	}
}

// @Summary  Cancel own ticket
// @Security BearerAuth
// @Param    id  path  string  true  "Ticket ID (uuid)"
// @Success  200 {object} Response{data=domain.Ticket}
// @Failure  403 {object} Response "not the owner"
// @Router   /api/queue/{id}/cancel [post]
func handleCancel(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := identityFrom(c)
		ticketID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		ticket, err := svcs.Queue.Cancel(c.Request.Context(), id.ID, ticketID)
		if err != nil {
			respondErr(c, err)
			return
		}

		respondOK(c, http.StatusOK, "ticket cancelled", ticket)
	}
}

// @Summary  Current ticket with people ahead
// @Security BearerAuth
// @Success  200 {object} Response{data=domain.TicketView}
// @Failure  404 {object} Response "no active ticket"
// @Router   /api/queue/me [get]
func handleCurrentTicket(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := identityFrom(c)

		view, err := svcs.Query.CurrentTicket(c.Request.Context(), id.ID)
		if err != nil {
			respondErr(c, err)
			return
		}

		respondOK(c, http.StatusOK, "", view)
	}
}
