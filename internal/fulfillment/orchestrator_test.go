package fulfillment

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fulfillment_backend/internal/carrier"
	"fulfillment_backend/internal/crm"
	domainevents "fulfillment_backend/internal/events"
	"fulfillment_backend/internal/fulfillment/intent"
	"fulfillment_backend/internal/pos"
	"fulfillment_backend/platform/apperr"
	"fulfillment_backend/platform/events"
	"fulfillment_backend/platform/logger"
	"fulfillment_backend/platform/validator"
)

type fakeLeads struct {
	lead        crm.Lead
	refs        []crm.CatalogRef
	childID     int64
	fetchErr    error
	patchedName string
	patchedSum  int64
	patchedLead int64
}

func (l *fakeLeads) FetchLead(_ context.Context, leadID int64) (crm.Lead, []crm.CatalogRef, error) {
	if l.fetchErr != nil {
		return crm.Lead{}, nil, l.fetchErr
	}
	return l.lead, l.refs, nil
}

func (l *fakeLeads) FetchChildLeadID(_ context.Context, _ int64) (int64, error) {
	return l.childID, nil
}

func (l *fakeLeads) PatchLeadPrice(_ context.Context, leadID, price int64) error {
	l.patchedLead = leadID
	l.patchedSum = price
	return nil
}

func (l *fakeLeads) PatchLeadName(_ context.Context, leadID int64, name string) error {
	l.patchedName = name
	return nil
}

type noteRecorder struct {
	mu    sync.Mutex
	notes []string
	leads []int64
}

func (r *noteRecorder) Report(_ context.Context, leadID int64, format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, fmt.Sprintf(format, args...))
	r.leads = append(r.leads, leadID)
}

func (r *noteRecorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.notes...)
}

type fakeOrders struct {
	submitErr  error
	confirmErr error
	closeErr   error
	submitted  *intent.OrderIntent
	closed     []string
}

func (o *fakeOrders) Submit(_ context.Context, order *intent.OrderIntent) (pos.SubmitResult, error) {
	if o.submitErr != nil {
		return pos.SubmitResult{}, o.submitErr
	}
	o.submitted = order
	return pos.SubmitResult{OrderID: "order-1"}, nil
}

func (o *fakeOrders) WaitUntilConfirmed(_ context.Context, _ string) error {
	return o.confirmErr
}

func (o *fakeOrders) Close(_ context.Context, orderID string) error {
	o.closed = append(o.closed, orderID)
	return o.closeErr
}

type fakeDispatcher struct {
	err        error
	dispatched bool
}

func (d *fakeDispatcher) Dispatch(_ context.Context, _ *intent.OrderIntent) (carrier.Claim, error) {
	d.dispatched = true
	if d.err != nil {
		return carrier.Claim{ID: "claim-1"}, d.err
	}
	return carrier.Claim{ID: "claim-1", Status: carrier.StatusAccepted, Version: 1}, nil
}

type fakeTracker struct {
	result  carrier.TrackResult
	tracked chan struct{}
}

func (t *fakeTracker) Track(_ context.Context, _ string, _ int64) (carrier.TrackResult, error) {
	defer close(t.tracked)
	return t.result, nil
}

type syncBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *syncBus) Publish(_ context.Context, event events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *syncBus) PublishSync(_ context.Context, event events.Event) error {
	b.Publish(context.Background(), event)
	return nil
}

func (b *syncBus) Subscribe(_ string, _ events.Handler) {}

func (b *syncBus) named(name string) []events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []events.Event
	for _, event := range b.events {
		if event.EventName() == name {
			out = append(out, event)
		}
	}
	return out
}

type fixture struct {
	leads      *fakeLeads
	reporter   *noteRecorder
	orders     *fakeOrders
	dispatcher *fakeDispatcher
	tracker    *fakeTracker
	registry   *TrackingRegistry
	bus        *syncBus
	orch       *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	catalog := fakeCatalog{
		"p1/s1": {ProductID: "p1", SizeID: "s1", Name: "Burger", Price: decimal.NewFromInt(1100)},
		"p2/":   {ProductID: "p2", Name: "Fries", Price: decimal.NewFromInt(550)},
	}

	f := &fixture{
		leads: &fakeLeads{
			lead: crm.Lead{
				ID:   101,
				Name: "Lead #101",
				CustomFields: []crm.CustomField{
					field("Customer name", "Aigerim"),
					field("Customer phone", "+77001234567"),
					field("Delivery address", "Abaya, 10"),
				},
			},
			refs: []crm.CatalogRef{
				{ProductID: "p1", SizeID: "s1", Quantity: 1},
				{ProductID: "p2", Quantity: 2},
			},
			childID: 201,
		},
		reporter:   &noteRecorder{},
		orders:     &fakeOrders{},
		dispatcher: &fakeDispatcher{},
		tracker:    &fakeTracker{result: carrier.TrackResult{Delivered: true, Final: carrier.StatusDeliveredFinish}, tracked: make(chan struct{})},
		registry:   NewTrackingRegistry(0),
		bus:        &syncBus{},
	}

	log := logger.New("development")
	normalizer := NewNormalizer(catalog, emptyBundles(t), fieldConfig(), log)
	f.orch = NewOrchestrator(f.leads, f.reporter, normalizer, f.orders, f.dispatcher, f.tracker, f.registry, f.bus, validator.New(), log)
	return f
}

func waitTracked(t *testing.T, f *fixture) {
	t.Helper()
	select {
	case <-f.tracker.tracked:
	case <-time.After(2 * time.Second):
		t.Fatal("tracking task never ran")
	}
	// Give runTracking time to publish and release the registry slot.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(f.registry.Active()) == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("tracking slot never released")
}

func TestHandleLeadEventHappyPath(t *testing.T) {
	f := newFixture(t)
	f.orch.now = func() time.Time {
		return time.Date(2026, 3, 14, 15, 4, 0, 0, time.UTC)
	}

	result, err := f.orch.HandleLeadEvent(context.Background(), 101)
	if err != nil {
		t.Fatalf("HandleLeadEvent: %v", err)
	}
	if result.OrderID != "order-1" || result.ClaimID != "claim-1" || !result.Tracking {
		t.Fatalf("result = %+v", result)
	}
	if result.ChildLeadID != 201 {
		t.Fatalf("ChildLeadID = %d", result.ChildLeadID)
	}

	waitTracked(t, f)

	if f.leads.patchedLead != 201 || f.leads.patchedSum != 2200 {
		t.Fatalf("lead annotation = lead %d sum %d, want child lead with total 2200",
			f.leads.patchedLead, f.leads.patchedSum)
	}
	if f.leads.patchedName != "Aigerim + 15:04" {
		t.Fatalf("lead name = %q, want customer name plus order time", f.leads.patchedName)
	}
	if f.orders.submitted == nil || len(f.orders.submitted.Items) != 2 {
		t.Fatalf("submitted order = %+v", f.orders.submitted)
	}
	if len(f.orders.closed) != 1 || f.orders.closed[0] != "order-1" {
		t.Fatalf("closed orders = %v, want the confirmed order finalized", f.orders.closed)
	}

	var sawItemized bool
	for _, note := range f.reporter.all() {
		if strings.Contains(note, "Burger x1") && strings.Contains(note, "Fries x2") {
			sawItemized = true
		}
	}
	if !sawItemized {
		t.Fatalf("itemized order note missing; notes: %v", f.reporter.all())
	}

	ready := f.bus.named(domainevents.OrderIntentReadyName)
	if len(ready) != 1 {
		t.Fatalf("OrderIntentReady events = %d", len(ready))
	}
	finished := f.bus.named(domainevents.RunFinishedName)
	if len(finished) != 1 {
		t.Fatalf("RunFinished events = %d", len(finished))
	}
	if !finished[0].(domainevents.RunFinished).Delivered {
		t.Fatalf("RunFinished = %+v, want delivered", finished[0])
	}
}

func TestHandleLeadEventEmptyIntentNeverSubmits(t *testing.T) {
	f := newFixture(t)
	f.leads.refs = []crm.CatalogRef{{ProductID: "ghost", Quantity: 1}}

	_, err := f.orch.HandleLeadEvent(context.Background(), 101)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("err = %v, want KindValidation", err)
	}
	if f.orders.submitted != nil {
		t.Fatal("empty intent must never reach Submit")
	}
	if f.dispatcher.dispatched {
		t.Fatal("empty intent must never reach Dispatch")
	}

	notes := f.reporter.all()
	var sawEmpty bool
	for _, note := range notes {
		if strings.Contains(note, "No sellable items") {
			sawEmpty = true
		}
	}
	if !sawEmpty {
		t.Fatalf("empty-intent note missing; notes: %v", notes)
	}
}

func TestHandleLeadEventInvalidPhoneStopsRun(t *testing.T) {
	f := newFixture(t)
	f.leads.lead.CustomFields = []crm.CustomField{
		field("Customer name", "Aigerim"),
		field("Customer phone", "not-a-phone"),
	}

	_, err := f.orch.HandleLeadEvent(context.Background(), 101)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("err = %v, want KindValidation", err)
	}
	if f.orders.submitted != nil {
		t.Fatal("invalid order must never reach Submit")
	}
}

func TestHandleLeadEventTerminalOfflineStopsRun(t *testing.T) {
	f := newFixture(t)
	f.orders.submitErr = apperr.Unavailable("fulfillment terminal is not alive")

	_, err := f.orch.HandleLeadEvent(context.Background(), 101)
	if !apperr.Is(err, apperr.KindUnavailable) {
		t.Fatalf("err = %v, want KindUnavailable", err)
	}
	if f.dispatcher.dispatched {
		t.Fatal("no claim may be created when the terminal is offline")
	}

	offline := 0
	for _, note := range f.reporter.all() {
		if strings.Contains(note, "terminal is offline") {
			offline++
		}
	}
	if offline != 1 {
		t.Fatalf("offline notes = %d, want exactly 1; notes: %v", offline, f.reporter.all())
	}
}

func TestHandleLeadEventConfirmationTimeoutContinues(t *testing.T) {
	f := newFixture(t)
	f.orders.confirmErr = apperr.Timeout("order confirmation not observed in time")

	result, err := f.orch.HandleLeadEvent(context.Background(), 101)
	if err != nil {
		t.Fatalf("HandleLeadEvent: %v", err)
	}
	if !f.dispatcher.dispatched {
		t.Fatal("confirmation timeout must not stop the run")
	}
	if result.OrderID != "order-1" {
		t.Fatalf("OrderID = %q, submit-time id must be kept", result.OrderID)
	}
	if len(f.orders.closed) != 0 {
		t.Fatalf("closed orders = %v, close must be skipped without confirmation", f.orders.closed)
	}
	waitTracked(t, f)
}

func TestHandleLeadEventRejectedOrderStopsRun(t *testing.T) {
	f := newFixture(t)
	f.orders.confirmErr = apperr.New(apperr.KindRemote, "order creation failed")

	_, err := f.orch.HandleLeadEvent(context.Background(), 101)
	if !apperr.Is(err, apperr.KindRemote) {
		t.Fatalf("err = %v, want KindRemote", err)
	}
	if f.dispatcher.dispatched {
		t.Fatal("rejected order must not be dispatched")
	}
}

func TestHandleLeadEventDispatchFailureStopsRun(t *testing.T) {
	f := newFixture(t)
	f.dispatcher.err = apperr.Timeout("claim was not accepted in time")

	_, err := f.orch.HandleLeadEvent(context.Background(), 101)
	if !apperr.Is(err, apperr.KindTimeout) {
		t.Fatalf("err = %v, want KindTimeout", err)
	}
	if len(f.registry.Active()) != 0 {
		t.Fatal("failed dispatch must not register a tracking task")
	}
}

func TestHandleLeadEventReportsToParentWithoutChild(t *testing.T) {
	f := newFixture(t)
	f.leads.childID = 0

	_, err := f.orch.HandleLeadEvent(context.Background(), 101)
	if err != nil {
		t.Fatalf("HandleLeadEvent: %v", err)
	}
	waitTracked(t, f)

	if f.leads.patchedLead != 101 {
		t.Fatalf("annotated lead = %d, want parent when no child exists", f.leads.patchedLead)
	}
	f.reporter.mu.Lock()
	defer f.reporter.mu.Unlock()
	for i, leadID := range f.reporter.leads {
		if leadID != 101 {
			t.Fatalf("note %d went to lead %d, want parent 101", i, leadID)
		}
	}
}
