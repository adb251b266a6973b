package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	domainevents "fulfillment_backend/internal/events"
	"fulfillment_backend/internal/fulfillment"
	"fulfillment_backend/internal/fulfillment/intent"
	apphttp "fulfillment_backend/internal/http"
	"fulfillment_backend/platform/events"
	"fulfillment_backend/platform/logger"
)

func TestExtractLeadID(t *testing.T) {
	cases := []struct {
		name string
		form url.Values
		want int64
		ok   bool
	}{
		{"creation event", url.Values{"leads[add][0][id]": {"123"}}, 123, true},
		{"status event", url.Values{"leads[status][0][id]": {"456"}}, 456, true},
		{"creation wins over status", url.Values{
			"leads[add][0][id]":    {"123"},
			"leads[status][0][id]": {"456"},
		}, 123, true},
		{"non-numeric", url.Values{"leads[add][0][id]": {"abc"}}, 0, false},
		{"zero id", url.Values{"leads[add][0][id]": {"0"}}, 0, false},
		{"unrelated event", url.Values{"contacts[add][0][id]": {"9"}}, 0, false},
		{"empty body", url.Values{}, 0, false},
	}
	for _, tc := range cases {
		got, ok := ExtractLeadID(tc.form)
		if got != tc.want || ok != tc.ok {
			t.Errorf("%s: ExtractLeadID = (%d, %v), want (%d, %v)", tc.name, got, ok, tc.want, tc.ok)
		}
	}
}

type stubRunner struct {
	leads chan int64
}

func (r *stubRunner) HandleLeadEvent(_ context.Context, leadID int64) (fulfillment.RunResult, error) {
	r.leads <- leadID
	return fulfillment.RunResult{LeadID: leadID}, nil
}

func newTestEngine(t *testing.T) (*gin.Engine, *stubRunner, *Module) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.New("development")
	runner := &stubRunner{leads: make(chan int64, 1)}
	module := New(runner, events.NewInMemoryBus(log), log)

	engine := gin.New()
	module.RegisterRoutes(&apphttp.RouterContext{
		Engine: engine,
		V1:     engine.Group("/api/v1"),
		Logger: log,
	})
	return engine, runner, module
}

func TestWebhookAcksAndDetachesRun(t *testing.T) {
	engine, runner, _ := newTestEngine(t)

	body := url.Values{"leads[add][0][id]": {"123"}}.Encode()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["status"] != "accepted" {
		t.Fatalf("response = %v", resp)
	}

	select {
	case leadID := <-runner.leads:
		if leadID != 123 {
			t.Fatalf("run started for lead %d, want 123", leadID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("detached run never started")
	}
}

func TestWebhookIgnoresUnrelatedEvents(t *testing.T) {
	engine, runner, _ := newTestEngine(t)

	body := url.Values{"contacts[add][0][id]": {"9"}}.Encode()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, unrelated events must still be acknowledged", rec.Code)
	}
	select {
	case leadID := <-runner.leads:
		t.Fatalf("run started for lead %d, want none", leadID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLastOrderEndpoint(t *testing.T) {
	engine, _, module := newTestEngine(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/last-order", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status before any order = %d, want 404", rec.Code)
	}

	module.lastOrder.Set(&intent.OrderIntent{
		LeadID:       101,
		CustomerName: "Aigerim",
		RawAddress:   "Abaya, 10",
		Items: []intent.LineItem{
			{Name: "Burger", Quantity: 2, UnitPrice: decimal.NewFromInt(1100)},
		},
	})

	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["total"] != "2200" || resp["customer"] != "Aigerim" {
		t.Fatalf("response = %v", resp)
	}
}

func TestLastOrderCacheLastWriteWins(t *testing.T) {
	cache := NewLastOrderCache()
	log := logger.New("development")
	bus := events.NewInMemoryBus(log)
	cache.Subscribe(bus)

	first := &intent.OrderIntent{LeadID: 1}
	second := &intent.OrderIntent{LeadID: 2}
	if err := bus.PublishSync(context.Background(), domainevents.NewOrderIntentReady(first)); err != nil {
		t.Fatalf("PublishSync: %v", err)
	}
	if err := bus.PublishSync(context.Background(), domainevents.NewOrderIntentReady(second)); err != nil {
		t.Fatalf("PublishSync: %v", err)
	}

	order, _, ok := cache.Get()
	if !ok || order.LeadID != 2 {
		t.Fatalf("cached order = %+v ok=%v, want lead 2", order, ok)
	}
}
