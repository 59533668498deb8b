// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements token authentication for the restaurant dashboard.
// Every restaurant owns an opaque dashboard token; dashboard requests present
// it in the X-Dashboard-Token header and are scoped to the restaurant that
// token resolves to. The middleware never leaks which part of the check
// failed beyond the standard 401/403 split:
//   - 401 when the header is missing entirely
//   - 403 when a token is present but does not resolve to a restaurant
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// HeaderDashboardToken is the HTTP header carrying the restaurant's dashboard
// token on API requests.
const HeaderDashboardToken = "X-Dashboard-Token"

// ctxKeyRestaurantID is the Gin context key under which the authenticated
// restaurant id is stored. The rate limiter and logging middleware read the
// same key.
const ctxKeyRestaurantID = "restaurantID"

// TokenResolver maps a dashboard token to the owning restaurant id.
// Implementations return ok=false when the token is unknown and reserve the
// error return for infrastructure failures (which yield a 500, not a 403).
type TokenResolver func(ctx context.Context, token string) (restaurantID string, ok bool, err error)

// RestaurantID returns the authenticated restaurant id stored by
// DashboardAuth. The second return value indicates presence.
func RestaurantID(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyRestaurantID)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// DashboardAuth returns a Gin middleware that authenticates dashboard
// requests via the X-Dashboard-Token header.
//
// Behavior:
//   - Missing or blank header: 401 with code "missing_token".
//   - Token present but unresolvable: 403 with code "invalid_token".
//   - Resolver failure: 500 with code "internal_error".
//   - On success the restaurant id is stored in the Gin context under
//     "restaurantID" for downstream handlers and middleware.
func DashboardAuth(resolve TokenResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.Writer.Header().Get("X-Request-ID")

		token := strings.TrimSpace(c.GetHeader(HeaderDashboardToken))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"request_id": rid,
				"code":       "missing_token",
				"message":    "dashboard token required",
			})
			return
		}

		restaurantID, ok, err := resolve(c.Request.Context(), token)
		if err != nil {
			LoggerFrom(c).Error().Err(err).Msg("dashboard token resolution failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"request_id": rid,
				"code":       "internal_error",
				"message":    "internal server error",
			})
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"request_id": rid,
				"code":       "invalid_token",
				"message":    "invalid dashboard token",
			})
			return
		}

		c.Set(ctxKeyRestaurantID, restaurantID)
		c.Next()
	}
}
