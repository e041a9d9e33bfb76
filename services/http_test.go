package services

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/bobs-corn/corn_api/model"
	"github.com/bobs-corn/corn_api/services/handlers"
	"github.com/bobs-corn/corn_api/shared"
)

type testServer struct {
	app    *fiber.App
	ledger *memoryLedger
	store  *memoryRateLimitStore
}

func newTestServer(dbUp, cacheUp bool) *testServer {
	ledger := &memoryLedger{}
	store := newMemoryRateLimitStore()

	purchaseSvc := &PurchaseService{
		ledger:  ledger,
		limiter: newTestLimiter(store, RateLimitWindow{Seconds: 60, MaxRequests: 1}),
	}
	healthSvc := &HealthService{
		db:        stubProber{ok: dbUp},
		cache:     stubProber{ok: cacheUp},
		startedAt: time.Now().Add(-time.Second),
	}

	app := (&HttpService{}).newApp(
		handlers.NewPurchaseHandler(purchaseSvc),
		handlers.NewHealthHandler(healthSvc),
		nil,
	)

	return &testServer{app: app, ledger: ledger, store: store}
}

func (s *testServer) request(t *testing.T, method, target, clientIP string) (*http.Response, []byte) {
	t.Helper()

	req := httptest.NewRequest(method, target, nil)
	if clientIP != "" {
		req.Header.Set("X-Forwarded-For", clientIP)
	}

	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, target, err)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading response body: %v", err)
	}
	resp.Body.Close()

	return resp, body
}

type errorBody struct {
	Error struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
	Timestamp string `json:"timestamp"`
	Path      string `json:"path"`
}

func decodeJSON(t *testing.T, body []byte, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(body, v); err != nil {
		t.Fatalf("decoding %q: %v", body, err)
	}
}

func TestAPI_PurchaseCorn(t *testing.T) {
	srv := newTestServer(true, true)

	resp, body := srv.request(t, http.MethodPost, "/api/v1/corn", "127.0.0.1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}

	var result struct {
		Success   bool   `json:"success"`
		Message   string `json:"message"`
		Timestamp string `json:"timestamp"`
	}
	decodeJSON(t, body, &result)

	if !result.Success {
		t.Fatal("expected success=true")
	}
	if !strings.Contains(result.Message, "purchased successfully") {
		t.Fatalf("unexpected message %q", result.Message)
	}
	if _, err := time.Parse(time.RFC3339, result.Timestamp); err != nil {
		t.Fatalf("timestamp %q is not RFC3339: %v", result.Timestamp, err)
	}
	if got := srv.ledger.countForIP("127.0.0.1"); got != 1 {
		t.Fatalf("expected exactly 1 ledger row, got %d", got)
	}
}

func TestAPI_SecondPurchaseWithinWindowRejected(t *testing.T) {
	srv := newTestServer(true, true)

	resp, _ := srv.request(t, http.MethodPost, "/api/v1/corn", "127.0.0.1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected first purchase admitted, got %d", resp.StatusCode)
	}

	resp, body := srv.request(t, http.MethodPost, "/api/v1/corn", "127.0.0.1")
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d: %s", resp.StatusCode, body)
	}

	var errResp errorBody
	decodeJSON(t, body, &errResp)
	if errResp.Error.Code != shared.CodeTooManyRequests {
		t.Fatalf("expected code %s, got %s", shared.CodeTooManyRequests, errResp.Error.Code)
	}
	if !strings.Contains(errResp.Error.Message, "Maximum 1 purchase per minute allowed") {
		t.Fatalf("unexpected message %q", errResp.Error.Message)
	}
	if errResp.Path != "/api/v1/corn" {
		t.Fatalf("unexpected path %q", errResp.Path)
	}
	if got := srv.ledger.countForIP("127.0.0.1"); got != 1 {
		t.Fatalf("expected rejection to persist nothing, ledger rows=%d", got)
	}
}

func TestAPI_ClientsAreLimitedIndependently(t *testing.T) {
	srv := newTestServer(true, true)

	resp, _ := srv.request(t, http.MethodPost, "/api/v1/corn", "10.0.0.1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected first client admitted, got %d", resp.StatusCode)
	}

	resp, _ = srv.request(t, http.MethodPost, "/api/v1/corn", "10.0.0.2")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected second client admitted, got %d", resp.StatusCode)
	}
}

func TestAPI_GetPurchases(t *testing.T) {
	srv := newTestServer(true, true)
	seedPurchases(srv.ledger, "127.0.0.1",
		model.PurchaseStatusSuccess, model.PurchaseStatusRateLimited, model.PurchaseStatusSuccess)
	seedPurchases(srv.ledger, "192.168.0.9", model.PurchaseStatusSuccess)

	resp, body := srv.request(t, http.MethodGet, "/api/v1/purchases", "127.0.0.1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}

	var result struct {
		Purchases []model.Purchase `json:"purchases"`
		Total     int64            `json:"total"`
		Limit     int              `json:"limit"`
		Offset    int              `json:"offset"`
	}
	decodeJSON(t, body, &result)

	if result.Limit != 50 || result.Offset != 0 {
		t.Fatalf("expected default pagination 50/0, got %d/%d", result.Limit, result.Offset)
	}
	if result.Total != 3 || len(result.Purchases) != 3 {
		t.Fatalf("expected the caller's 3 purchases only, got total=%d len=%d", result.Total, len(result.Purchases))
	}
	for i := 1; i < len(result.Purchases); i++ {
		if result.Purchases[i].CreatedAt.After(result.Purchases[i-1].CreatedAt) {
			t.Fatal("expected purchases ordered most recent first")
		}
	}
}

func TestAPI_GetPurchasesPaginationAndFilter(t *testing.T) {
	srv := newTestServer(true, true)
	seedPurchases(srv.ledger, "127.0.0.1",
		model.PurchaseStatusSuccess, model.PurchaseStatusSuccess, model.PurchaseStatusSuccess,
		model.PurchaseStatusRateLimited)

	resp, body := srv.request(t, http.MethodGet, "/api/v1/purchases?limit=2&offset=1&status=success", "127.0.0.1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}

	var result struct {
		Purchases []model.Purchase `json:"purchases"`
		Total     int64            `json:"total"`
		Limit     int              `json:"limit"`
		Offset    int              `json:"offset"`
	}
	decodeJSON(t, body, &result)

	if result.Limit != 2 || result.Offset != 1 {
		t.Fatalf("expected pagination 2/1 echoed back, got %d/%d", result.Limit, result.Offset)
	}
	if result.Total != 3 {
		t.Fatalf("expected total=3 for the status filter, got %d", result.Total)
	}
	if len(result.Purchases) != 2 {
		t.Fatalf("expected a 2-row page, got %d", len(result.Purchases))
	}
}

func TestAPI_GetPurchasesInvalidStatus(t *testing.T) {
	srv := newTestServer(true, true)

	resp, body := srv.request(t, http.MethodGet, "/api/v1/purchases?status=bogus", "127.0.0.1")
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", resp.StatusCode, body)
	}

	var errResp errorBody
	decodeJSON(t, body, &errResp)
	if errResp.Error.Code != shared.CodeValidationError {
		t.Fatalf("expected code %s, got %s", shared.CodeValidationError, errResp.Error.Code)
	}
	if len(errResp.Error.Details) == 0 {
		t.Fatal("expected validation details in the error body")
	}
}

func TestAPI_GetPurchasesMalformedLimit(t *testing.T) {
	srv := newTestServer(true, true)

	resp, body := srv.request(t, http.MethodGet, "/api/v1/purchases?limit=abc", "127.0.0.1")
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", resp.StatusCode, body)
	}
}

func TestAPI_HealthUp(t *testing.T) {
	srv := newTestServer(true, true)

	resp, body := srv.request(t, http.MethodGet, "/health", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}

	var result struct {
		Status   string  `json:"status"`
		Uptime   float64 `json:"uptime"`
		Services struct {
			Database bool `json:"database"`
			Cache    bool `json:"cache"`
		} `json:"services"`
	}
	decodeJSON(t, body, &result)

	if result.Status != "ok" {
		t.Fatalf("unexpected status %q", result.Status)
	}
	if !result.Services.Database || !result.Services.Cache {
		t.Fatalf("expected both services reported up: %+v", result.Services)
	}
	if result.Uptime <= 0 {
		t.Fatalf("expected positive uptime, got %f", result.Uptime)
	}
}

func TestAPI_HealthDegraded(t *testing.T) {
	srv := newTestServer(true, false)

	resp, body := srv.request(t, http.MethodGet, "/health", "")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", resp.StatusCode, body)
	}

	var result struct {
		Services struct {
			Database bool `json:"database"`
			Cache    bool `json:"cache"`
		} `json:"services"`
	}
	decodeJSON(t, body, &result)

	if !result.Services.Database {
		t.Fatal("expected database still reported up")
	}
	if result.Services.Cache {
		t.Fatal("expected cache reported down")
	}
}

func TestAPI_UnknownRoute(t *testing.T) {
	srv := newTestServer(true, true)

	resp, body := srv.request(t, http.MethodGet, "/api/v1/nope", "127.0.0.1")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", resp.StatusCode, body)
	}

	var errResp errorBody
	decodeJSON(t, body, &errResp)
	if errResp.Error.Code != shared.CodeNotFound {
		t.Fatalf("expected code %s, got %s", shared.CodeNotFound, errResp.Error.Code)
	}
	if errResp.Error.Message != "Route not found" {
		t.Fatalf("unexpected message %q", errResp.Error.Message)
	}
}

func TestClientIPResolution(t *testing.T) {
	srv := newTestServer(true, true)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/corn", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	resp, err := srv.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if got := srv.ledger.countForIP("203.0.113.7"); got != 1 {
		t.Fatalf("expected first X-Forwarded-For hop used as client key, rows=%d", got)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/corn", nil)
	req.Header.Set("X-Real-IP", "198.51.100.4")
	resp, err = srv.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if got := srv.ledger.countForIP("198.51.100.4"); got != 1 {
		t.Fatalf("expected X-Real-IP fallback used as client key, rows=%d", got)
	}
}
