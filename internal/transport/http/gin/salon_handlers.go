package httpgin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kirinyoku/salonq/internal/auth"
	"github.com/kirinyoku/salonq/internal/service"
	"github.com/kirinyoku/salonq/internal/service/salon"
)

// @Summary  List salons with live queue figures
// @Param    online query  bool  false "only online salons"
// @Param    limit  query  int   false "page size"
// @Param    offset query  int   false "offset"
// @Success  200  {object}  Response{data=[]domain.SalonListing}
// @Router   /api/salons [get]
func handleListSalons(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		onlyOnline := c.Query("online") == "true"
		limit := parseIntDefault(c.Query("limit"), 0)
		offset := parseIntDefault(c.Query("offset"), 0)

		listing, err := svcs.Query.ListSalons(c.Request.Context(), onlyOnline, limit, offset)
		if err != nil {
			respondErr(c, err)
			return
		}

		writeJSONWithCache(c, http.StatusOK, listing, "public, max-age=10")
	}
}

// @Summary  Get salon
// @Param    id  path  string  true  "Salon ID (uuid)"
// @Success  200  {object}  Response{data=domain.Salon}
// @Failure  404  {object}  Response
// @Router   /api/salons/{id} [get]
func handleGetSalon(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		salonID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		s, err := svcs.Query.GetSalon(c.Request.Context(), salonID)
		if err != nil {
			respondErr(c, err)
			return
		}

		writeJSONWithCache(c, http.StatusOK, s, "public, max-age=60")
	}
}

// @Summary  Salon board with today's stats
// @Security BearerAuth
// @Success  200  {object}  Response{data=domain.Board}
// @Router   /api/salon/board [get]
func handleBoard(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := identityFrom(c)

		board, err := svcs.Query.Board(c.Request.Context(), id.ID)
		if err != nil {
			respondErr(c, err)
			return
		}

		respondOK(c, http.StatusOK, "", board)
	}
}

// @Summary  Booking history of the caller
// @Security BearerAuth
// @Param    limit  query  int   false "page size"
// @Param    offset query  int   false "offset"
// @Success  200  {object}  Response{data=[]domain.Ticket}
// @Router   /api/bookings/history [get]
func handleHistory(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := identityFrom(c)
		limit := parseIntDefault(c.Query("limit"), 0)
		offset := parseIntDefault(c.Query("offset"), 0)

		history := svcs.Query.UserHistory
		if id.Role == auth.RoleSalon {
			history = svcs.Query.SalonHistory
		}

		tickets, err := history(c.Request.Context(), id.ID, limit, offset)
		if err != nil {
			respondErr(c, err)
			return
		}

		respondOK(c, http.StatusOK, "", tickets)
	}
}

// @Summary  Open or close the salon for bookings
// @Security BearerAuth
// @Param    req body  SetOnlineRequest true "payload"
// @Success  200  {object}  Response{data=domain.Salon}
// @Router   /api/salon/status [put]
func handleSetOnline(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := identityFrom(c)

		var req SetOnlineRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		s, err := svcs.Salon.SetOnline(c.Request.Context(), id.ID, *req.IsOnline)
		if err != nil {
			respondErr(c, err)
			return
		}

		respondOK(c, http.StatusOK, "status updated", s)
	}
}

// @Summary  Replace the service roster
// @Security BearerAuth
// @Param    req body  ReplaceServicesRequest true "payload"
// @Success  200  {object}  Response{data=domain.Salon}
// @Router   /api/salon/services [put]
func handleReplaceServices(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := identityFrom(c)

		var req ReplaceServicesRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		s, err := svcs.Salon.ReplaceServices(c.Request.Context(), id.ID, req.Services)
		if err != nil {
			respondErr(c, err)
			return
		}

		respondOK(c, http.StatusOK, "services updated", s)
	}
}

// @Summary  Replace the staff list
// @Security BearerAuth
// @Param    req body  ReplaceStaffRequest true "payload"
// @Success  200  {object}  Response{data=domain.Salon}
// @Router   /api/salon/staff [put]
func handleReplaceStaff(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := identityFrom(c)

		var req ReplaceStaffRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		s, err := svcs.Salon.ReplaceStaff(c.Request.Context(), id.ID, req.Staff)
		if err != nil {
			respondErr(c, err)
			return
		}

		respondOK(c, http.StatusOK, "staff updated", s)
	}
}

// @Summary  Register a salon
// @Security BearerAuth
// @Param    req body  CreateSalonRequest true "payload"
// @Success  201  {object}  Response{data=domain.Salon}
// @Failure  409  {object}  Response
// @Router   /api/admin/salons [post]
func handleCreateSalon(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateSalonRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		s, err := svcs.Salon.Create(c.Request.Context(), salon.CreateRequest{
			Name:     req.Name,
			Chairs:   req.Chairs,
			Services: req.Services,
			Staff:    req.Staff,
		})
		if err != nil {
			respondErr(c, err)
			return
		}

		respondOK(c, http.StatusCreated, "salon created", s)
	}
}

// @Summary  Set the verified flag of a salon
// @Security BearerAuth
// @Param    id  path  string  true  "Salon ID (uuid)"
// @Param    req body  SetVerifiedRequest true "payload"
// @Success  200  {object}  Response{data=domain.Salon}
// @Router   /api/admin/salons/{id}/verify [put]
func handleSetVerified(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		salonID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		var req SetVerifiedRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		s, err := svcs.Salon.SetVerified(c.Request.Context(), salonID, *req.IsVerified)
		if err != nil {
			respondErr(c, err)
			return
		}

		respondOK(c, http.StatusOK, "salon updated", s)
	}
}

// @Summary  Platform-wide stats
// @Security BearerAuth
// @Success  200  {object}  Response{data=domain.AdminStats}
// @Router   /api/admin/stats [get]
func handleAdminStats(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := svcs.Query.AdminStats(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}

		respondOK(c, http.StatusOK, "", stats)
	}
}
