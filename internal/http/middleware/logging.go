// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides the request id injector, the structured access logger
// and panic recovery. Recommended order: RequestID, Logger, Recovery, so
// panics and errors carry the correlation id.
//
// The access log never includes bodies. Claim addresses that appear in the
// query string are masked, and credential headers are never logged.
package middleware

import (
	"net/http"
	"regexp"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	requestIDKey    = "requestID"
	loggerKey       = "logger"
	requestIDHeader = "X-Request-ID"
	// UserIDHeader carries the platform user id forwarded by the chat gateway.
	UserIDHeader = "X-User-ID"
	// maxQueryLogLength caps the number of bytes of the raw query string logged.
	maxQueryLogLength = 2048
)

// addressRE matches base58 strings long enough to be claim addresses.
var addressRE = regexp.MustCompile(`[1-9A-HJ-NP-Za-km-z]{32,44}`)

// RequestID attaches (or propagates) a correlation identifier per request.
// An incoming X-Request-ID is reused; otherwise a UUIDv4 is generated. The id
// is echoed in the response header and stored under "requestID".
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// Logger writes one access-log line per request and stores a request-scoped
// zerolog.Logger under "logger" for handlers.
//
// The user id is read after the handler ran so that handlers which resolve the
// caller from the body can still attribute the request.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		l := log.With().
			Str("component", "http").
			Str("request_id", requestID(c)).
			Str("method", c.Request.Method).
			Str("path", route).
			Str("remote_ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Logger()
		c.Set(loggerKey, &l)

		c.Next()

		ev := l.WithLevel(accessLevel(c)).
			Str("user_id", UserID(c)).
			Str("query", truncate(RedactAddresses(c.Request.URL.RawQuery), maxQueryLogLength)).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Int64("bytes_in", c.Request.ContentLength).
			Int("bytes_out", c.Writer.Size())
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", RedactAddresses(c.Errors.String()))
		}
		ev.Msg("request")
	}
}

// accessLevel is error for 5xx or collected gin errors, warn for 4xx.
func accessLevel(c *gin.Context) zerolog.Level {
	switch status := c.Writer.Status(); {
	case len(c.Errors) > 0, status >= 500:
		return zerolog.ErrorLevel
	case status >= 400:
		return zerolog.WarnLevel
	}
	return zerolog.InfoLevel
}

// Recovery turns a panic into the standard 500 envelope. The stack goes to
// the request logger so it carries the request id.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			LoggerFrom(c).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("panic recovered")
			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			abort(c, http.StatusInternalServerError, "internal_error", "internal server error")
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped logger, or the global logger when
// Logger() did not run.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

// SetUserID records the caller for logging and rate limiting.
func SetUserID(c *gin.Context, id string) {
	if id = strings.TrimSpace(id); id != "" {
		c.Set("userID", id)
	}
}

// UserID returns the caller recorded by SetUserID, falling back to the
// X-User-ID header. It returns "" for anonymous requests.
func UserID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c.Request != nil {
		return strings.TrimSpace(c.GetHeader(UserIDHeader))
	}
	return ""
}

// RedactAddresses masks claim-address-like tokens in s.
func RedactAddresses(s string) string {
	if s == "" {
		return s
	}
	return addressRE.ReplaceAllString(s, "[REDACTED:address]")
}

func requestID(c *gin.Context) string {
	if v, ok := c.Get(requestIDKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// truncate operates on bytes, which is acceptable for logging.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
