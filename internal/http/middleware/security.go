package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// AdminTokenHeader authenticates operator endpoints.
	AdminTokenHeader = "X-Admin-Token"
	// ServiceTokenHeader authenticates the chat gateway on the ledger API.
	// X-User-ID and body user ids are only trusted behind it.
	ServiceTokenHeader = "X-Service-Token"
)

// SecurityOptions configures SecurityHeaders.
type SecurityOptions struct {
	NoStore bool // add Cache-Control: no-store
}

// SecurityHeaders adds baseline hardening headers for a JSON API and exposes
// X-Request-ID to browser clients.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		if opt.NoStore {
			h.Set("Cache-Control", "no-store")
		}
		if h.Get(requestIDHeader) != "" {
			const hdr = "Access-Control-Expose-Headers"
			cur := h.Get(hdr)
			if cur == "" {
				h.Set(hdr, requestIDHeader)
			} else if !strings.Contains(cur, requestIDHeader) {
				h.Set(hdr, cur+", "+requestIDHeader)
			}
		}
		c.Next()
	}
}

// AdminToken guards operator routes. An empty token disables the routes
// entirely (403) rather than leaving them open.
func AdminToken(token string) gin.HandlerFunc {
	return requireToken(AdminTokenHeader, token, "admin endpoints disabled", "invalid admin token")
}

// ServiceToken guards the ledger API the gateway calls. Like AdminToken, an
// empty token rejects every request.
func ServiceToken(token string) gin.HandlerFunc {
	return requireToken(ServiceTokenHeader, token, "service token not configured", "invalid service token")
}

func requireToken(header, token, disabledMsg, invalidMsg string) gin.HandlerFunc {
	want := []byte(token)
	return func(c *gin.Context) {
		if len(want) == 0 {
			abort(c, http.StatusForbidden, "forbidden", disabledMsg)
			return
		}
		got := []byte(c.GetHeader(header))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			abort(c, http.StatusUnauthorized, "unauthorized", invalidMsg)
			return
		}
		c.Next()
	}
}

// abort writes the standard error envelope from middleware.
func abort(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       code,
		"message":    msg,
	})
}
