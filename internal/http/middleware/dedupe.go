// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements webhook dedupe support for the inbound message
// endpoint. Messaging transports retry webhook deliveries on timeouts and
// 5xx responses; re-running a dialogue turn for a retried delivery could add
// to the cart or submit an order twice. The middleware validates the
// transport message id (Twilio's MessageSid form field), performs a
// user-defined lookup to detect previously processed deliveries, and
// annotates the request context so the handler can:
//   - read the normalized sid (GetMessageSid)
//   - detect replayed deliveries and their recorded reply (ReplayReply)
//   - bypass rate limiting when a replay is served (via an internal flag)
//
// Design goals:
//   - Keep transport concerns (validation, context stashing) in middleware.
//   - Decouple persistence via a narrow DedupeLookup function type.
//   - Remain framework-agnostic beyond Gin's context.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// FormMessageSid is the form field carrying the transport's unique message
// id on inbound webhook requests.
const FormMessageSid = "MessageSid"

// Context keys used internally to stash dedupe state.
// These keys are intentionally unexported and referenced via accessor helpers.
const (
	ctxKeyMessageSid  = "dedupe.sid"
	ctxKeyReplayReply = "dedupe.reply" // string: recorded reply for a replayed sid
	ctxKeyRateBypass  = "rate.bypass"  // bool: true to skip rate limiting
)

// GetMessageSid returns the validated message sid stored in the Gin context
// by WebhookDedupe. The second return value indicates presence.
//
// Handlers should prefer this function over reading the form field directly.
func GetMessageSid(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyMessageSid)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// ReplayReply returns the recorded reply for a replayed delivery, when the
// middleware detected that this message sid was already processed. The second
// return value indicates a replay.
func ReplayReply(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyReplayReply)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, true
}

// DedupeOptions configures field validation behavior for WebhookDedupe.
// TTL enforcement is intentionally out of scope here and should be
// implemented inside the provided lookup function.
type DedupeOptions struct {
	// MaxLen caps the accepted sid length. Values <= 0 default to 64.
	MaxLen int
	// Pattern restricts allowed characters. If nil, a conservative
	// alphanumeric token pattern is used: ^[A-Za-z0-9]+$
	Pattern *regexp.Regexp
}

// DedupeLookup answers whether a delivery with the given message sid has
// already been processed, and returns the recorded reply when it has.
// Implementations typically consult a database record with a TTL window.
//
// Return exists=true when the prior reply can be replayed; return an error
// only for lookup failures (which should not block normal processing).
type DedupeLookup func(ctx context.Context, messageSid string, now time.Time) (reply string, exists bool, err error)

// WebhookDedupe validates the MessageSid form field (if present), stashes it
// in the request context, and checks for a previously processed delivery via
// the supplied lookup. When a replay is detected, it marks the context so
// downstream components can:
//   - serve the recorded reply via ReplayReply
//   - bypass rate limiting (internal flag checked by the RL middleware)
//
// Behavior:
//   - If the field is absent: the middleware is a no-op (local testing tools
//     rarely send a sid).
//   - If the field fails validation: responds 400 with a compact error body.
//   - If lookup indicates a replay: stashes the recorded reply.
//   - Always invokes the next handler unless validation fails.
//
// The middleware does not itself write the response; the webhook handler
// remains in control of serializing replays into the transport envelope.
func WebhookDedupe(opts DedupeOptions, lookup DedupeLookup) gin.HandlerFunc {
	// Sensible defaults.
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 64
	}
	pat := opts.Pattern
	if pat == nil {
		pat = regexp.MustCompile(`^[A-Za-z0-9]+$`)
	}

	return func(c *gin.Context) {
		sid := c.PostForm(FormMessageSid)
		if sid == "" {
			// Nothing to validate or stash; proceed.
			c.Next()
			return
		}
		if len(sid) > maxLen || !pat.MatchString(sid) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"code":    "bad_message_sid",
				"message": "invalid MessageSid",
			})
			return
		}

		// Stash the normalized sid for downstream use.
		c.Set(ctxKeyMessageSid, sid)

		// If this delivery was already processed, mark replay + rate bypass.
		if lookup != nil {
			now := time.Now().UTC()
			if reply, exists, _ := lookup(c.Request.Context(), sid, now); exists {
				c.Set(ctxKeyReplayReply, reply)
				c.Set(ctxKeyRateBypass, true) // let RL middleware skip limiting
			}
		}

		c.Next()
	}
}
