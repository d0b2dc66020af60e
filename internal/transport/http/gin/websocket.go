package httpgin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kirinyoku/salonq/internal/auth"
	"github.com/kirinyoku/salonq/internal/realtime"
)

// @Summary  Subscribe to live queue events
// @Description Send {"action":"join","room":"salon_<id>"} to subscribe. Rooms are salon_<id>, user_<id> and admin_room.
// @Param    token query string false "bearer token when headers cannot be set"
// @Success  101 {string} string "switching protocols"
// @Failure  401 {object} Response
// @Router   /ws [get]
func handleWebsocket(hub *realtime.Hub, verifier *auth.Verifier) gin.HandlerFunc {
	upgrader := websocketUpgrader()

	return func(c *gin.Context) {
		id, err := authenticate(c, verifier, true)
		if err != nil {
			c.JSON(http.StatusUnauthorized, Response{Message: "unauthorized"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade has already replied to the client.
			_ = c.Error(err)
			return
		}

		hub.Serve(conn, id)
	}
}
