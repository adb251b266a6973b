package carrier

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fulfillment_backend/internal/fulfillment/intent"
	"fulfillment_backend/platform/apperr"
	"fulfillment_backend/platform/config"
	"fulfillment_backend/platform/logger"
	"fulfillment_backend/platform/retry"
)

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		CarrierBaseURL:            baseURL,
		CarrierToken:              "carrier-token",
		CarrierOriginFullname:     "Main branch, Abaya 10",
		CarrierOriginCountry:      "Kazakhstan",
		CarrierOriginCity:         "Almaty",
		CarrierOriginStreet:       "Abaya",
		CarrierOriginBuilding:     "10",
		CarrierOriginContactName:  "Branch",
		CarrierOriginContactPhone: "+77010000000",
		CarrierManifestDenylist:   []string{"Ketchup", "Cheese sauce"},
	}
}

func TestParseAddress(t *testing.T) {
	cases := []struct {
		raw  string
		want Address
	}{
		{"Abaya, 10", Address{Street: "Abaya", Building: "10"}},
		{"Abaya, 10, 2, 5, 41", Address{Street: "Abaya", Building: "10", Porch: "2", Floor: "5", Apartment: "41"}},
		{"Abaya,10,2", Address{Street: "Abaya", Building: "10", Porch: "2"}},
		{"Abaya", Address{Street: "Abaya"}},
	}
	for _, tc := range cases {
		if got := ParseAddress(tc.raw); got != tc.want {
			t.Errorf("ParseAddress(%q) = %+v, want %+v", tc.raw, got, tc.want)
		}
	}
}

func TestBuildClaimFiltersManifestAndSplitsAddress(t *testing.T) {
	dispatcher := NewDispatcher(nil, testConfig("http://unused"), logger.New("development"))
	dispatcher.now = func() time.Time {
		return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	}

	order := &intent.OrderIntent{
		LeadID:        101,
		CustomerName:  "Aigerim",
		CustomerPhone: "+77001234567",
		RawAddress:    "Abaya, 10, 2, 5, 41",
		Comment:       "call on arrival",
		PrepTime:      20 * time.Minute,
		Items: []intent.LineItem{
			{ProductID: "prod-1", Name: "Burger", Quantity: 2, UnitPrice: decimal.NewFromInt(1100)},
			{ProductID: "prod-2", Name: "Ketchup", Quantity: 1, UnitPrice: decimal.Zero},
		},
	}

	payload := dispatcher.buildClaim(order)

	items := payload["items"].([]map[string]interface{})
	if len(items) != 1 {
		t.Fatalf("manifest items = %d, want 1 (denylisted condiment excluded)", len(items))
	}
	if items[0]["title"] != "Burger" || items[0]["quantity"] != 2 {
		t.Fatalf("item = %+v", items[0])
	}

	points := payload["route_points"].([]map[string]interface{})
	if len(points) != 2 {
		t.Fatalf("route points = %d, want 2", len(points))
	}
	dest := points[1]["address"].(map[string]interface{})
	if dest["street"] != "Abaya" || dest["building"] != "10" ||
		dest["porch"] != "2" || dest["sfloor"] != "5" || dest["sflat"] != "41" {
		t.Fatalf("destination = %+v", dest)
	}

	if due := payload["due"].(string); due != "2026-03-01T12:20:00Z" {
		t.Fatalf("due = %q, want submit time plus prep time", due)
	}

	reqs := payload["client_requirements"].(map[string]interface{})
	if reqs["taxi_class"] != "courier" {
		t.Fatalf("taxi_class = %v", reqs["taxi_class"])
	}
	if opts := reqs["cargo_options"].([]string); len(opts) != 1 || opts[0] != "thermobag" {
		t.Fatalf("cargo_options = %v", opts)
	}

	source := points[0]["contact"].(map[string]interface{})
	if source["phone"] != "+77010000000" {
		t.Fatalf("source contact phone = %v, want configured origin fallback", source["phone"])
	}
}

func TestBuildClaimPrefersLeadCourierPhone(t *testing.T) {
	dispatcher := NewDispatcher(nil, testConfig("http://unused"), logger.New("development"))

	payload := dispatcher.buildClaim(&intent.OrderIntent{
		RawAddress:   "Abaya, 10",
		CourierPhone: "+77021112233",
	})

	points := payload["route_points"].([]map[string]interface{})
	source := points[0]["contact"].(map[string]interface{})
	if source["phone"] != "+77021112233" {
		t.Fatalf("source contact phone = %v, want lead courier phone", source["phone"])
	}
	emergency := payload["emergency_contact"].(map[string]interface{})
	if emergency["phone"] != "+77021112233" {
		t.Fatalf("emergency contact phone = %v", emergency["phone"])
	}
}

func TestBuildClaimDefaultsPrepTime(t *testing.T) {
	dispatcher := NewDispatcher(nil, testConfig("http://unused"), logger.New("development"))
	dispatcher.now = func() time.Time {
		return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	}

	payload := dispatcher.buildClaim(&intent.OrderIntent{RawAddress: "Abaya, 10"})
	if due := payload["due"].(string); due != "2026-03-01T12:15:00Z" {
		t.Fatalf("due = %q, want default prep time applied", due)
	}
}

func TestDispatchCreatesAndAcceptsClaim(t *testing.T) {
	saved := acceptPolicy
	acceptPolicy = retry.Fixed(5, time.Millisecond)
	defer func() { acceptPolicy = saved }()

	infoPolls := 0
	var acceptedVersion int

	mux := http.NewServeMux()
	mux.HandleFunc("/b2b/cargo/integration/v2/claims/create", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("request_id") == "" {
			t.Error("claims/create missing request_id")
		}
		_, _ = io.WriteString(w, `{"id": "claim-1", "status": "new", "version": 1}`)
	})
	mux.HandleFunc("/b2b/cargo/integration/v2/claims/info", func(w http.ResponseWriter, r *http.Request) {
		infoPolls++
		status := "estimating"
		if infoPolls >= 2 {
			status = "ready_for_approval"
		}
		_, _ = io.WriteString(w, `{"id": "claim-1", "status": "`+status+`", "version": 3}`)
	})
	mux.HandleFunc("/b2b/cargo/integration/v2/claims/accept", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]int
		_ = json.NewDecoder(r.Body).Decode(&body)
		acceptedVersion = body["version"]
		_, _ = io.WriteString(w, `{"id": "claim-1", "status": "accepted", "version": 3}`)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewClient(testConfig(srv.URL), 5*time.Second, logger.New("development"))
	dispatcher := NewDispatcher(client, testConfig(srv.URL), logger.New("development"))

	claim, err := dispatcher.Dispatch(context.Background(), &intent.OrderIntent{
		RawAddress: "Abaya, 10",
		Items:      []intent.LineItem{{Name: "Burger", Quantity: 1, UnitPrice: decimal.NewFromInt(1500)}},
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if claim.Status != StatusAccepted {
		t.Fatalf("claim status = %v, want accepted", claim.Status)
	}
	if acceptedVersion != 3 {
		t.Fatalf("accepted version = %d, want the polled claim version", acceptedVersion)
	}
}

func TestDispatchTakesCourierSearchAsAccepted(t *testing.T) {
	saved := acceptPolicy
	acceptPolicy = retry.Fixed(2, time.Millisecond)
	defer func() { acceptPolicy = saved }()

	accepts := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/b2b/cargo/integration/v2/claims/create", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id": "claim-1", "status": "new", "version": 1}`)
	})
	mux.HandleFunc("/b2b/cargo/integration/v2/claims/info", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id": "claim-1", "status": "performer_lookup", "version": 2}`)
	})
	mux.HandleFunc("/b2b/cargo/integration/v2/claims/accept", func(w http.ResponseWriter, r *http.Request) {
		accepts++
		_, _ = io.WriteString(w, `{"id": "claim-1", "status": "accepted", "version": 2}`)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewClient(testConfig(srv.URL), 5*time.Second, logger.New("development"))
	dispatcher := NewDispatcher(client, testConfig(srv.URL), logger.New("development"))

	claim, err := dispatcher.Dispatch(context.Background(), &intent.OrderIntent{RawAddress: "Abaya, 10"})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if claim.Status != StatusPerformerLookup {
		t.Fatalf("claim status = %v, want performer_lookup taken as accepted", claim.Status)
	}
	if accepts != 0 {
		t.Fatalf("accepts = %d, courier search must not be re-accepted", accepts)
	}
}

func TestDispatchKeepsPollingOtherStates(t *testing.T) {
	saved := acceptPolicy
	acceptPolicy = retry.Fixed(3, time.Millisecond)
	defer func() { acceptPolicy = saved }()

	infoPolls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/b2b/cargo/integration/v2/claims/create", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id": "claim-1", "status": "new", "version": 1}`)
	})
	mux.HandleFunc("/b2b/cargo/integration/v2/claims/info", func(w http.ResponseWriter, r *http.Request) {
		infoPolls++
		_, _ = io.WriteString(w, `{"id": "claim-1", "status": "accepted", "version": 1}`)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewClient(testConfig(srv.URL), 5*time.Second, logger.New("development"))
	dispatcher := NewDispatcher(client, testConfig(srv.URL), logger.New("development"))

	_, err := dispatcher.Dispatch(context.Background(), &intent.OrderIntent{RawAddress: "Abaya, 10"})
	if !apperr.Is(err, apperr.KindTimeout) {
		t.Fatalf("err = %v, statuses outside the accept set must exhaust the policy", err)
	}
	if infoPolls != 3 {
		t.Fatalf("polls = %d, want every attempt to re-poll", infoPolls)
	}
}

func TestDispatchTimesOutWhenNeverPriced(t *testing.T) {
	saved := acceptPolicy
	acceptPolicy = retry.Fixed(2, time.Millisecond)
	defer func() { acceptPolicy = saved }()

	mux := http.NewServeMux()
	mux.HandleFunc("/b2b/cargo/integration/v2/claims/create", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id": "claim-1", "status": "new", "version": 1}`)
	})
	mux.HandleFunc("/b2b/cargo/integration/v2/claims/info", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id": "claim-1", "status": "estimating", "version": 1}`)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewClient(testConfig(srv.URL), 5*time.Second, logger.New("development"))
	dispatcher := NewDispatcher(client, testConfig(srv.URL), logger.New("development"))

	claim, err := dispatcher.Dispatch(context.Background(), &intent.OrderIntent{RawAddress: "Abaya, 10"})
	if !apperr.Is(err, apperr.KindTimeout) {
		t.Fatalf("err = %v, want KindTimeout", err)
	}
	if claim.ID != "claim-1" {
		t.Fatalf("claim id = %q, created claim must still be returned", claim.ID)
	}
}
