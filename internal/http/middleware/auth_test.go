package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newAuthRouter(resolve TokenResolver) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(DashboardAuth(resolve))
	r.GET("/orders", func(c *gin.Context) {
		id, ok := RestaurantID(c)
		c.JSON(http.StatusOK, gin.H{"restaurant_id": id, "ok": ok})
	})
	return r
}

func TestDashboardAuth_MissingToken(t *testing.T) {
	r := newAuthRouter(func(ctx context.Context, token string) (string, bool, error) {
		t.Fatalf("resolver must not be called without a token")
		return "", false, nil
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orders", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body["code"] != "missing_token" {
		t.Fatalf("body: %v", body)
	}
}

func TestDashboardAuth_UnknownToken(t *testing.T) {
	r := newAuthRouter(func(ctx context.Context, token string) (string, bool, error) {
		return "", false, nil
	})

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set(HeaderDashboardToken, "nope")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body["code"] != "invalid_token" {
		t.Fatalf("body: %v", body)
	}
}

func TestDashboardAuth_ResolverFailure(t *testing.T) {
	r := newAuthRouter(func(ctx context.Context, token string) (string, bool, error) {
		return "", false, errors.New("db down")
	})

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set(HeaderDashboardToken, "any")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	// Infrastructure failures must not masquerade as bad credentials.
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestDashboardAuth_Success(t *testing.T) {
	var seen string
	r := newAuthRouter(func(ctx context.Context, token string) (string, bool, error) {
		seen = token
		return "r-42", true, nil
	})

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set(HeaderDashboardToken, "  secret  ") // trimmed before resolving
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if seen != "secret" {
		t.Fatalf("resolver saw %q, want trimmed token", seen)
	}
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body["restaurant_id"] != "r-42" || body["ok"] != true {
		t.Fatalf("body: %v", body)
	}
}
