package httpgin

import (
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kirinyoku/salonq/internal/auth"
)

const identityKey = "identity"

var errMissingToken = errors.New("missing bearer token")

func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = uuid.New().String()
		}

		c.Writer.Header().Set("X-Request-ID", reqID)
		c.Set("request_id", reqID)

		c.Next()
	}
}

func CORS() gin.HandlerFunc {
	cfg := cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{
			"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS",
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"Authorization",
			"X-Requested-With",
			"X-Request-ID",
			"Idempotency-Key",
			"If-None-Match",
		},
		ExposeHeaders: []string{
			"X-Request-ID",
			"ETag",
			"Cache-Control",
			"Idempotency-Key",
			"Retry-After",
		},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}

	return cors.New(cfg)
}

func LoggingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery
		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}

		reqID, _ := c.Get("request_id")

		attrs := []any{
			slog.Int("status", c.Writer.Status()),
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("ip", c.ClientIP()),
			slog.String("ua", c.Request.UserAgent()),
			slog.Any("request_id", reqID),
			slog.Duration("latency", time.Since(start)),
			slog.Int("bytes_out", c.Writer.Size()),
		}

		if len(c.Errors) > 0 {
			attrs = append(attrs, slog.String("error", c.Errors.String()))
			logger.Error("http", slog.Group("http", attrs...))
			return
		}

		logger.Info("http", slog.Group("http", attrs...))
	}
}

// Auth verifies the bearer token and stores the caller's identity on the
// context. Requests without a valid token stop with 401.
func Auth(verifier *auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := authenticate(c, verifier, false)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{Message: "unauthorized"})
			return
		}

		c.Set(identityKey, id)
		c.Next()
	}
}

// RequireRole stops with 403 unless the caller holds one of roles.
// It must run after Auth.
func RequireRole(roles ...auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identityFrom(c)
		if !ok || !slices.Contains(roles, id.Role) {
			c.AbortWithStatusJSON(http.StatusForbidden, Response{Message: "forbidden"})
			return
		}

		c.Next()
	}
}

// authenticate reads the token from the Authorization header. Browsers
// cannot set headers on a websocket handshake, so allowQuery also accepts
// a ?token= parameter.
func authenticate(c *gin.Context, verifier *auth.Verifier, allowQuery bool) (auth.Identity, error) {
	token, found := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !found && allowQuery {
		token = c.Query("token")
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return auth.Identity{}, errMissingToken
	}

	return verifier.Parse(token)
}

func identityFrom(c *gin.Context) (auth.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return auth.Identity{}, false
	}

	id, ok := v.(auth.Identity)
	return id, ok
}
