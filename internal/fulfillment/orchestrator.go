package fulfillment

import (
	"context"
	"fmt"
	"time"

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

// LeadSource provides the CRM data a run needs. Satisfied by *crm.Client.
type LeadSource interface {
	FetchLead(ctx context.Context, leadID int64) (crm.Lead, []crm.CatalogRef, error)
	FetchChildLeadID(ctx context.Context, parentLeadID int64) (int64, error)
	PatchLeadPrice(ctx context.Context, leadID int64, price int64) error
	PatchLeadName(ctx context.Context, leadID int64, name string) error
}

// Reporter posts progress notes. Satisfied by *crm.Reporter.
type Reporter interface {
	Report(ctx context.Context, leadID int64, format string, args ...interface{})
}

// OrderSubmitter submits orders to the POS. Satisfied by *pos.OrderManager.
type OrderSubmitter interface {
	Submit(ctx context.Context, order *intent.OrderIntent) (pos.SubmitResult, error)
	WaitUntilConfirmed(ctx context.Context, orderID string) error
	Close(ctx context.Context, orderID string) error
}

// ClaimDispatcher creates delivery claims. Satisfied by
// *carrier.Dispatcher.
type ClaimDispatcher interface {
	Dispatch(ctx context.Context, order *intent.OrderIntent) (carrier.Claim, error)
}

// DeliveryTracker follows a claim to its end. Satisfied by
// *carrier.Tracker.
type DeliveryTracker interface {
	Track(ctx context.Context, claimID string, leadID int64) (carrier.TrackResult, error)
}

// RunResult summarizes a fulfillment run up to the point tracking detaches.
type RunResult struct {
	LeadID      int64
	ChildLeadID int64
	OrderID     string
	ClaimID     string
	Tracking    bool
}

// Orchestrator drives the fulfillment saga for one lead at a time. Steps
// run sequentially; there is no rollback, only progress notes explaining
// where a run stopped.
type Orchestrator struct {
	leads      LeadSource
	reporter   Reporter
	normalizer *Normalizer
	orders     OrderSubmitter
	dispatcher ClaimDispatcher
	tracker    DeliveryTracker
	registry   *TrackingRegistry
	bus        events.Bus
	val        *validator.Validator
	log        *logger.Logger
	now        func() time.Time
}

// NewOrchestrator wires the saga steps together.
func NewOrchestrator(
	leads LeadSource,
	reporter Reporter,
	normalizer *Normalizer,
	orders OrderSubmitter,
	dispatcher ClaimDispatcher,
	tracker DeliveryTracker,
	registry *TrackingRegistry,
	bus events.Bus,
	val *validator.Validator,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		leads:      leads,
		reporter:   reporter,
		normalizer: normalizer,
		orders:     orders,
		dispatcher: dispatcher,
		tracker:    tracker,
		registry:   registry,
		bus:        bus,
		val:        val,
		log:        log,
		now:        time.Now,
	}
}

// HandleLeadEvent runs the saga for a freshly created lead. Returns once
// the claim is accepted and tracking has detached into its own task.
func (o *Orchestrator) HandleLeadEvent(ctx context.Context, leadID int64) (RunResult, error) {
	log := o.log.WithLeadID(fmt.Sprintf("%d", leadID))
	result := RunResult{LeadID: leadID}

	lead, refs, err := o.leads.FetchLead(ctx, leadID)
	if err != nil {
		log.Error("fulfillment: lead fetch failed", "error", err)
		return result, err
	}

	childID, err := o.leads.FetchChildLeadID(ctx, leadID)
	if err != nil {
		return result, err
	}
	if childID == 0 {
		log.Warn("fulfillment: no child lead found, reporting to parent")
	}
	result.ChildLeadID = childID

	order, dropped := o.normalizer.Normalize(lead, refs)
	order.ChildLeadID = childID
	reportLead := order.ReportLeadID()

	for _, productID := range dropped {
		o.reporter.Report(ctx, reportLead, "Item %s is not on the menu and was left out of the order", productID)
	}

	if order.Empty() {
		o.reporter.Report(ctx, reportLead, "No sellable items could be assembled from this lead, order not placed")
		return result, apperr.Validation("lead yields no sellable items").WithOp("fulfillment.HandleLeadEvent")
	}

	if err := o.val.Struct(order); err != nil {
		log.Error("fulfillment: assembled order failed validation", "error", err)
		o.reporter.Report(ctx, reportLead, "Order data is incomplete, order not placed")
		return result, apperr.Wrap(apperr.KindValidation, "assembled order failed validation", err).WithOp("fulfillment.HandleLeadEvent")
	}

	o.annotateLead(ctx, log, order)

	o.bus.Publish(ctx, domainevents.NewOrderIntentReady(order))
	o.reporter.Report(ctx, reportLead, "%s", formatOrderNote(order, o.now()))

	submit, err := o.orders.Submit(ctx, order)
	if err != nil {
		if apperr.Is(err, apperr.KindUnavailable) {
			o.reporter.Report(ctx, reportLead, "The branch terminal is offline, order not placed")
		} else {
			o.reporter.Report(ctx, reportLead, "Order could not be placed in the POS")
		}
		log.Error("fulfillment: order submission failed", "error", err)
		o.bus.Publish(ctx, domainevents.NewRunFinished(leadID, "", "", false, "submit failed"))
		return result, err
	}
	result.OrderID = submit.OrderID
	o.reporter.Report(ctx, reportLead, "Order placed in the POS, number %s", submit.OrderID)

	if err := o.orders.WaitUntilConfirmed(ctx, submit.OrderID); err != nil {
		if apperr.Is(err, apperr.KindTimeout) {
			// The order usually lands eventually; skip the close and keep
			// going with the submit-time id.
			log.Warn("fulfillment: order confirmation timed out, continuing", "orderId", submit.OrderID)
			o.reporter.Report(ctx, reportLead, "POS confirmation is taking longer than usual, continuing with delivery")
		} else {
			o.reporter.Report(ctx, reportLead, "The POS rejected the order")
			log.Error("fulfillment: order rejected", "orderId", submit.OrderID, "error", err)
			o.bus.Publish(ctx, domainevents.NewRunFinished(leadID, submit.OrderID, "", false, "order rejected"))
			return result, err
		}
	} else {
		o.reporter.Report(ctx, reportLead, "Order confirmed by the branch")
		if err := o.orders.Close(ctx, submit.OrderID); err != nil {
			// Non-fatal: the courier can still be sent.
			log.Warn("fulfillment: order close failed", "orderId", submit.OrderID, "error", err)
			o.reporter.Report(ctx, reportLead, "Order %s could not be finalized in the POS", submit.OrderID)
		} else {
			o.reporter.Report(ctx, reportLead, "Order %s finalized in the POS", submit.OrderID)
		}
	}

	claim, err := o.dispatcher.Dispatch(ctx, order)
	if err != nil {
		o.reporter.Report(ctx, reportLead, "Delivery could not be arranged with the carrier")
		log.Error("fulfillment: claim dispatch failed", "claimId", claim.ID, "error", err)
		o.bus.Publish(ctx, domainevents.NewRunFinished(leadID, submit.OrderID, claim.ID, false, "dispatch failed"))
		return result, err
	}
	result.ClaimID = claim.ID
	o.reporter.Report(ctx, reportLead, "Delivery claim accepted, claim %s", claim.ID)

	trackCtx, err := o.registry.Register(claim.ID)
	if err != nil {
		log.Error("fulfillment: tracking registration failed", "claimId", claim.ID, "error", err)
		return result, err
	}
	result.Tracking = true

	go o.runTracking(trackCtx, log, claim.ID, submit.OrderID, leadID, reportLead)

	return result, nil
}

// runTracking is the detached tracking task. It owns its slot in the
// registry and publishes the run outcome when it ends.
func (o *Orchestrator) runTracking(ctx context.Context, log *logger.Logger, claimID, orderID string, leadID, reportLead int64) {
	defer o.registry.Done(claimID)
	defer func() {
		if r := recover(); r != nil {
			log.Error("fulfillment: tracking task panicked", "claimId", claimID, "panic", r)
		}
	}()

	outcome, err := o.tracker.Track(ctx, claimID, reportLead)
	if err != nil {
		log.Warn("fulfillment: tracking ended without a terminal state", "claimId", claimID, "error", err)
	}

	reason := outcome.Final.String()
	o.bus.Publish(context.WithoutCancel(ctx), domainevents.NewRunFinished(leadID, orderID, claimID, outcome.Delivered, reason))
	log.Info("fulfillment: run finished", "claimId", claimID, "delivered", outcome.Delivered, "finalStatus", reason)
}

// annotateLead mirrors the assembled order back onto the lead: the total as
// the lead price and a timestamped order name.
func (o *Orchestrator) annotateLead(ctx context.Context, log *logger.Logger, order *intent.OrderIntent) {
	reportLead := order.ReportLeadID()

	if err := o.leads.PatchLeadPrice(ctx, reportLead, order.Total().IntPart()); err != nil {
		log.Warn("fulfillment: could not patch lead price", "error", err)
	}

	name := fmt.Sprintf("%s + %s", order.CustomerName, o.now().Format("15:04"))
	if err := o.leads.PatchLeadName(ctx, reportLead, name); err != nil {
		log.Warn("fulfillment: could not patch lead name", "error", err)
	}
}
