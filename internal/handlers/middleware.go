package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const userIdCtxKey = "userId"

// bearerAuth guards the device-facing routes. Rejections are logged
// with the requested route so a misconfigured dashboard or script shows
// up in the bridge log instead of as silent 401s.
func (h *Handler) bearerAuth(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		h.rejectUnauthorized(c, "missing Authorization header")
		return
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		h.rejectUnauthorized(c, "invalid Authorization header format")
		return
	}

	userId, err := h.services.ParseToken(parts[1])
	if err != nil {
		h.rejectUnauthorized(c, "invalid or expired token")
		return
	}

	c.Set(userIdCtxKey, userId)
	c.Next()
}

func (h *Handler) rejectUnauthorized(c *gin.Context, reason string) {
	if h.log != nil {
		h.log.Debugw("request_unauthorized", "path", c.Request.URL.Path, "reason", reason)
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": reason})
}
