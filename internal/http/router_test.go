package httpapi

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/swaadx/go-order-backend/internal/config"
	"github.com/swaadx/go-order-backend/internal/domain"
	"github.com/swaadx/go-order-backend/internal/repo"
	"github.com/swaadx/go-order-backend/internal/session"
)

const (
	testSender  = "whatsapp:+15550001111"
	testNumberA = "whatsapp:+14155238886"
	testNumberB = "whatsapp:+14155230000"
	testTokenA  = "token-a"
	testTokenB  = "token-b"
)

type testApp struct {
	router   *gin.Engine
	db       *gorm.DB
	sessions *session.Store
	restA    *domain.Restaurant
	restB    *domain.Restaurant
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("router_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	restA := seedTestRestaurant(t, db, "Kitchen A", testNumberA, testTokenA)
	restB := seedTestRestaurant(t, db, "Kitchen B", testNumberB, testTokenB)
	seedTestItem(t, db, restA.ID, 1, "Margherita Pizza", "200")
	seedTestItem(t, db, restA.ID, 2, "Veg Burger", "120")
	seedTestItem(t, db, restB.ID, 1, "Paneer Roll", "150")

	sessions := session.New(30*time.Minute, 5*time.Minute)

	cfg := config.Config{
		Port:        "0",
		GinMode:     gin.TestMode,
		APIBasePath: "/api/v1",
		TaxRate:     0.05,
		// Generous limits so tests never trip the bucket.
		RateRPS:        1000,
		RateBurst:      1000,
		SessionTTL:     30 * time.Minute,
		StorageTimeout: 5 * time.Second,
		DedupeTTL:      time.Hour,
	}

	r := gin.New()
	RegisterRoutes(r, db, sessions, cfg)
	return &testApp{router: r, db: db, sessions: sessions, restA: restA, restB: restB}
}

func seedTestRestaurant(t *testing.T, db *gorm.DB, name, number, token string) *domain.Restaurant {
	t.Helper()
	r := &domain.Restaurant{
		ID:             uuid.NewString(),
		Name:           name,
		WhatsAppNumber: number,
		DashboardToken: token,
	}
	if err := db.Create(r).Error; err != nil {
		t.Fatalf("seed restaurant: %v", err)
	}
	return r
}

func seedTestItem(t *testing.T, db *gorm.DB, restaurantID string, itemNo int, name, price string) {
	t.Helper()
	p, _ := decimal.NewFromString(price)
	it := &domain.MenuItem{
		ID:           uuid.NewString(),
		RestaurantID: restaurantID,
		ItemNo:       itemNo,
		Name:         name,
		Price:        p,
		IsActive:     true,
		Position:     itemNo,
	}
	if err := db.Create(it).Error; err != nil {
		t.Fatalf("seed item: %v", err)
	}
}

// message posts one webhook form and returns the recorder.
func (a *testApp) message(t *testing.T, from, to, body, sid string) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{}
	form.Set("From", from)
	form.Set("To", to)
	form.Set("Body", body)
	if sid != "" {
		form.Set("MessageSid", sid)
	}
	req := httptest.NewRequest(http.MethodPost, "/whatsapp", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testApp) dashboard(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("X-Dashboard-Token", token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

//
// Webhook
//

func TestWebhook_GreetingReturnsTwiML(t *testing.T) {
	app := newTestApp(t)

	w := app.message(t, testSender, testNumberA, "hi", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/xml") {
		t.Fatalf("content type = %q", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, "<Response><Message>") || !strings.Contains(body, "Welcome to Kitchen A") {
		t.Fatalf("twiml body: %s", body)
	}
}

func TestWebhook_MissingFieldsRejected(t *testing.T) {
	app := newTestApp(t)

	form := url.Values{}
	form.Set("Body", "hi")
	req := httptest.NewRequest(http.MethodPost, "/whatsapp", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestWebhook_FullOrderFlowPersistsOrder(t *testing.T) {
	app := newTestApp(t)

	for _, msg := range []string{"hi", "1-2", "2-1", "confirm", "2"} {
		if w := app.message(t, testSender, testNumberA, msg, ""); w.Code != http.StatusOK {
			t.Fatalf("%q: status %d", msg, w.Code)
		}
	}
	w := app.message(t, testSender, testNumberA, "confirm", "")
	if !strings.Contains(w.Body.String(), "Order placed") {
		t.Fatalf("final reply: %s", w.Body.String())
	}

	var orders []domain.Order
	if err := app.db.Find(&orders).Error; err != nil || len(orders) != 1 {
		t.Fatalf("orders = %v err=%v", orders, err)
	}
	o := orders[0]
	if o.RestaurantID != app.restA.ID || o.Status != domain.StatusNew || o.ItemCount != 3 {
		t.Fatalf("order: %+v", o)
	}
	if !o.Total.Equal(decimal.NewFromInt(546)) { // 520 + 5% tax
		t.Fatalf("total = %s, want 546", o.Total)
	}
	if app.sessions.Len() != 0 {
		t.Fatalf("session survived the completed order")
	}
}

func TestWebhook_DedupeReplaysRecordedReply(t *testing.T) {
	app := newTestApp(t)
	app.message(t, testSender, testNumberA, "hi", "SM001")

	first := app.message(t, testSender, testNumberA, "1-2", "SM002")
	if !strings.Contains(first.Body.String(), "Added Margherita Pizza × 2") {
		t.Fatalf("first reply: %s", first.Body.String())
	}

	// Transport retry: same sid, same reply, and crucially no second cart line.
	retry := app.message(t, testSender, testNumberA, "1-2", "SM002")
	if retry.Code != http.StatusOK || retry.Body.String() != first.Body.String() {
		t.Fatalf("retry reply differs:\n%s\n%s", retry.Body.String(), first.Body.String())
	}
	sess, ok := app.sessions.Peek(testSender)
	if !ok || len(sess.Cart.Lines) != 1 {
		t.Fatalf("retry mutated the cart: %+v", sess.Cart.Lines)
	}
}

func TestWebhook_InvalidMessageSidRejected(t *testing.T) {
	app := newTestApp(t)
	w := app.message(t, testSender, testNumberA, "hi", "bad sid!")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestWebhook_UnknownRestaurantNumber(t *testing.T) {
	app := newTestApp(t)
	w := app.message(t, testSender, "whatsapp:+19999999999", "hi", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "not linked to any restaurant") {
		t.Fatalf("reply: %s", w.Body.String())
	}
	if app.sessions.Len() != 0 {
		t.Fatalf("unknown destination created a session")
	}
}

//
// Dashboard
//

// placeOrder drives one pickup order for a restaurant through the webhook.
func placeOrder(t *testing.T, app *testApp, from, number string) {
	t.Helper()
	for _, msg := range []string{"hi", "1-1", "confirm", "2", "confirm"} {
		if w := app.message(t, from, number, msg, ""); w.Code != http.StatusOK {
			t.Fatalf("%q: status %d", msg, w.Code)
		}
	}
}

func TestDashboard_AuthRequired(t *testing.T) {
	app := newTestApp(t)

	if w := app.dashboard(t, http.MethodGet, "/api/v1/dashboard/orders", "", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing token status = %d", w.Code)
	}
	if w := app.dashboard(t, http.MethodGet, "/api/v1/dashboard/orders", "wrong", ""); w.Code != http.StatusForbidden {
		t.Fatalf("bad token status = %d", w.Code)
	}
}

func TestDashboard_ListsOwnOrdersOnly(t *testing.T) {
	app := newTestApp(t)
	placeOrder(t, app, testSender, testNumberA)
	placeOrder(t, app, "whatsapp:+15550002222", testNumberB)

	w := app.dashboard(t, http.MethodGet, "/api/v1/dashboard/orders", testTokenA, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	if !strings.Contains(body, app.restA.ID) || strings.Contains(body, app.restB.ID) {
		t.Fatalf("tenant isolation broken: %s", body)
	}
	if !strings.Contains(body, `"total":1`) {
		t.Fatalf("pagination total: %s", body)
	}
}

func TestDashboard_StatusFilterValidation(t *testing.T) {
	app := newTestApp(t)
	w := app.dashboard(t, http.MethodGet, "/api/v1/dashboard/orders?status=COOKING", testTokenA, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "invalid_status") {
		t.Fatalf("body: %s", w.Body.String())
	}
}

func TestDashboard_UpdateOrderStatus(t *testing.T) {
	app := newTestApp(t)
	placeOrder(t, app, testSender, testNumberA)

	var o domain.Order
	if err := app.db.First(&o).Error; err != nil {
		t.Fatalf("load order: %v", err)
	}

	path := "/api/v1/dashboard/orders/" + o.ID + "/status"
	w := app.dashboard(t, http.MethodPatch, path, testTokenA, `{"status":"preparing"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var got domain.Order
	if err := app.db.First(&got, "id = ?", o.ID).Error; err != nil || got.Status != domain.StatusPreparing {
		t.Fatalf("order status = %q err=%v", got.Status, err)
	}

	// Another restaurant's token sees the order as missing.
	if w := app.dashboard(t, http.MethodPatch, path, testTokenB, `{"status":"READY"}`); w.Code != http.StatusNotFound {
		t.Fatalf("cross-tenant status = %d", w.Code)
	}
	// Unknown status value.
	if w := app.dashboard(t, http.MethodPatch, path, testTokenA, `{"status":"BURNT"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("bad status = %d", w.Code)
	}
	// Malformed id.
	if w := app.dashboard(t, http.MethodPatch, "/api/v1/dashboard/orders/not-a-uuid/status", testTokenA, `{"status":"READY"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("bad id status = %d", w.Code)
	}
}

//
// Operational endpoints
//

func TestHealthAndBanner(t *testing.T) {
	app := newTestApp(t)

	for _, path := range []string{"/health", "/"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		app.router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, w.Code)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	app := newTestApp(t)
	app.message(t, testSender, testNumberA, "hi", "")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "http_requests_total") {
		t.Fatalf("metrics exposition missing counters")
	}
}

func TestUnknownRouteEnvelope(t *testing.T) {
	app := newTestApp(t)
	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "not_found") {
		t.Fatalf("body: %s", w.Body.String())
	}
}
