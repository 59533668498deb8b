// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides the correlation ID injector, a panic-safe recovery
// handler, and the request-scoped logger accessor. Access logging itself
// lives in RedactingLogger; inbound webhook forms carry customer phone
// numbers, so a logger that does not scrub is not installed anywhere.
//
// Composition order:
//  1. RequestID()
//  2. RedactingLogger()
//  3. Recovery()
//
// so that panics and errors are logged with the correlation ID attached.
package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// requestIDKey is the Gin context key under which the request ID is stored.
	requestIDKey = "requestID"
	// loggerKey is the Gin context key for the request-scoped logger.
	loggerKey = "logger"
	// requestIDHeader is the HTTP header used to propagate the correlation ID.
	requestIDHeader = "X-Request-ID"
)

// RequestID attaches (or propagates) a correlation identifier per request and
// stashes a request-scoped zerolog.Logger carrying it.
//
// An incoming X-Request-ID header is reused when present (so the transport's
// retry of a webhook delivery keeps its original ID); otherwise a new UUIDv4
// is generated. The ID is written back to the response header and stored in
// the Gin context, and LoggerFrom returns a logger pre-tagged with it.
//
// Place this first in the chain so every later middleware and handler can
// rely on the ID for logging and error responses.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)

		l := log.With().Str("request_id", rid).Logger()
		c.Set(loggerKey, &l)

		c.Next()
	}
}

// Recovery intercepts panics, logs the stack trace with the correlation ID,
// and returns the standard JSON 500 envelope:
//
//	{ "request_id": "...", "code": "internal_error", "message": "internal server error" }
//
// When a response was already partially written the body is left alone and
// only the status is forced to 500.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				rid, _ := c.Get(requestIDKey)
				LoggerFrom(c).Error().
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")

				if !c.Writer.Written() {
					c.Header(requestIDHeader, asString(rid))
					c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
						"request_id": asString(rid),
						"code":       "internal_error",
						"message":    "internal server error",
					})
					return
				}
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped zerolog.Logger attached by RequestID.
// A fallback logger without request fields is returned when none was
// attached, so callers never need a nil check.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

// asString converts a Gin context value to a string, returning "" for any
// non-string value.
func asString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
