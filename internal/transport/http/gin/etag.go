package httpgin

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
)

// writeJSONWithCache writes the enveloped data with ETag and Cache-Control.
// A matching If-None-Match gets 304 and no body.
func writeJSONWithCache(c *gin.Context, status int, data any, cacheControl string) {
	b, err := json.Marshal(Response{Success: true, Data: data})
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, Response{Message: "internal error"})
		return
	}

	sum := sha256.Sum256(b)
	tag := `W/"` + hex.EncodeToString(sum[:16]) + `"`

	c.Header("ETag", tag)
	if cacheControl != "" {
		c.Header("Cache-Control", cacheControl)
	}

	if c.GetHeader("If-None-Match") == tag {
		c.Status(http.StatusNotModified)
		return
	}

	c.Data(status, "application/json; charset=utf-8", b)
}
