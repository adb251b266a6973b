package carrier

import (
	"context"
	"fmt"
	"time"

	"fulfillment_backend/platform/apperr"
	"fulfillment_backend/platform/logger"
	"fulfillment_backend/platform/retry"
)

// trackPolicy bounds the tracking loop: 180 polls at 30s covers a delivery
// window of 90 minutes.
var trackPolicy = retry.Fixed(180, 30*time.Second)

// TrackingWindow is the upper bound on one claim's tracking lifetime,
// derived from the poll policy with headroom for the remote calls.
func TrackingWindow() time.Duration {
	return time.Duration(trackPolicy.MaxAttempts)*trackPolicy.InitialDelay + 10*time.Minute
}

// ProgressReporter posts progress notes to a lead. Satisfied by
// crm.Reporter.
type ProgressReporter interface {
	Report(ctx context.Context, leadID int64, format string, args ...interface{})
}

// LeadCloser moves a lead to a pipeline status. Satisfied by crm.Client.
type LeadCloser interface {
	PatchLeadStatus(ctx context.Context, leadID int64, statusID int) error
}

// TrackResult is the terminal outcome of a tracking run.
type TrackResult struct {
	Delivered bool
	Final     Status
}

// Tracker follows a claim to its terminal state, reporting every status
// change to the lead. On delivery it closes the lead.
type Tracker struct {
	client         *Client
	reporter       ProgressReporter
	leads          LeadCloser
	closedStatusID int
	portalURL      string
	log            *logger.Logger
}

// NewTracker creates a tracker. closedStatusID is the CRM pipeline status a
// delivered lead is moved to; portalURL is the carrier's cargo portal, posted
// once at tracking start when set.
func NewTracker(client *Client, reporter ProgressReporter, leads LeadCloser, closedStatusID int, portalURL string, log *logger.Logger) *Tracker {
	return &Tracker{
		client:         client,
		reporter:       reporter,
		leads:          leads,
		closedStatusID: closedStatusID,
		portalURL:      portalURL,
		log:            log,
	}
}

// Track polls the claim until it reaches a terminal state or the tracking
// policy is exhausted. leadID receives progress notes and is closed on
// delivery.
func (t *Tracker) Track(ctx context.Context, claimID string, leadID int64) (TrackResult, error) {
	log := &logger.Logger{Logger: t.log.With("claimId", claimID, "leadId", leadID)}

	lastStatus := StatusUnknown
	courierReported := false
	linkReported := false

	if t.portalURL != "" {
		t.reporter.Report(ctx, leadID, "Track the delivery on the carrier portal: %s", t.portalURL)
	}

	for attempt := 0; attempt < trackPolicy.MaxAttempts; attempt++ {
		if !linkReported {
			t.tryReportLink(ctx, log, claimID, leadID, &linkReported)
		}

		claim, err := t.client.GetClaim(ctx, claimID)
		if err != nil {
			log.Warn("carrier: tracking poll failed", "attempt", attempt+1, "error", err)
		} else if claim.Status != lastStatus {
			lastStatus = claim.Status
			t.onStatusChange(ctx, log, claim, leadID, &courierReported)

			switch claim.Status.Family() {
			case FamilySuccess:
				t.closeLead(ctx, log, leadID)
				return TrackResult{Delivered: true, Final: claim.Status}, nil
			case FamilyFailure:
				return TrackResult{Delivered: false, Final: claim.Status}, nil
			}
		}

		if attempt < trackPolicy.MaxAttempts-1 {
			if err := trackPolicy.Wait(ctx, attempt); err != nil {
				return TrackResult{Final: lastStatus}, err
			}
		}
	}

	t.reporter.Report(ctx, leadID, "Delivery tracking window elapsed, last status: %s", lastStatus)
	return TrackResult{Final: lastStatus}, apperr.Timeout("claim did not reach a terminal state in time").WithOp("carrier.Track")
}

func (t *Tracker) onStatusChange(ctx context.Context, log *logger.Logger, claim Claim, leadID int64, courierReported *bool) {
	log.Info("carrier: claim status changed", "status", claim.Status.String())

	if claim.Status.Family() == FamilyUnknown {
		log.Warn("carrier: unrecognized claim status", "status", claim.Status.String())
		return
	}

	t.reporter.Report(ctx, leadID, "%s", claim.Status.Message())

	if claim.Status.Family() == FamilyCourier && !*courierReported {
		*courierReported = true
		t.reportCourier(ctx, log, claim.ID, leadID)
	}
}

// tryReportLink publishes the public tracking link the first time the
// carrier issues one. Carriers issue links on their own schedule, so the
// check runs every poll until it succeeds.
func (t *Tracker) tryReportLink(ctx context.Context, log *logger.Logger, claimID string, leadID int64, linkReported *bool) {
	link, err := t.client.TrackingLink(ctx, claimID)
	if err != nil {
		log.Warn("carrier: tracking link unavailable", "error", err)
		return
	}
	if link == "" {
		return
	}
	*linkReported = true
	t.reporter.Report(ctx, leadID, "Track the courier: %s", link)
}

// reportCourier posts the courier contact once, when a courier is first
// assigned.
func (t *Tracker) reportCourier(ctx context.Context, log *logger.Logger, claimID string, leadID int64) {
	info, err := t.client.CourierInfo(ctx, claimID)
	if err != nil {
		log.Warn("carrier: courier info unavailable", "error", err)
		return
	}
	if info.Name == "" && info.Phone == "" {
		return
	}
	contact := info.Phone
	if info.Ext != "" {
		contact = fmt.Sprintf("%s ext. %s", info.Phone, info.Ext)
	}
	if info.ETAMinutes > 0 {
		t.reporter.Report(ctx, leadID, "Courier: %s, phone: %s, arriving in %d min", info.Name, contact, info.ETAMinutes)
		return
	}
	t.reporter.Report(ctx, leadID, "Courier: %s, phone: %s", info.Name, contact)
}

// closeLead moves the lead to the delivered pipeline status. Best-effort:
// the delivery already happened.
func (t *Tracker) closeLead(ctx context.Context, log *logger.Logger, leadID int64) {
	if leadID == 0 {
		return
	}
	if err := t.leads.PatchLeadStatus(ctx, leadID, t.closedStatusID); err != nil {
		log.Warn("carrier: could not close lead", "error", err)
	}
}
