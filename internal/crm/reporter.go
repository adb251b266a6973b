package crm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"fulfillment_backend/platform/config"
	"fulfillment_backend/platform/logger"
)

// NoteWriter appends a note to a lead. Satisfied by *Client.
type NoteWriter interface {
	AppendNote(ctx context.Context, leadID int64, text, tag string) error
}

// Reporter posts human-readable progress notes to a lead. Reporting is
// best-effort: failures are logged and never fail the fulfillment run.
// Notes are rate-limited so a chatty tracking loop cannot exhaust the CRM
// API quota.
type Reporter struct {
	notes   NoteWriter
	limiter *rate.Limiter
	log     *logger.Logger
}

// NewReporter creates a progress reporter with the configured note rate.
func NewReporter(notes NoteWriter, cfg config.CRMConfig, log *logger.Logger) *Reporter {
	perSecond := cfg.GetCRMNoteRatePerSecond()
	if perSecond <= 0 {
		perSecond = 1
	}
	return &Reporter{
		notes:   notes,
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
		log:     log,
	}
}

// Report posts a progress note to the lead. Blocks for the rate limiter,
// swallows delivery errors.
func (r *Reporter) Report(ctx context.Context, leadID int64, format string, args ...interface{}) {
	if leadID == 0 {
		return
	}
	text := fmt.Sprintf(format, args...)

	if err := r.limiter.Wait(ctx); err != nil {
		r.log.Warn("crm: progress note dropped", "leadId", leadID, "text", text, "error", err)
		return
	}

	if err := r.notes.AppendNote(ctx, leadID, text, ""); err != nil {
		r.log.RemoteCallError("crm", "AppendNote", err)
	}
}

// ReportTagged posts a service-message note attributed to an external system.
func (r *Reporter) ReportTagged(ctx context.Context, leadID int64, tag, format string, args ...interface{}) {
	if leadID == 0 {
		return
	}
	text := fmt.Sprintf(format, args...)

	if err := r.limiter.Wait(ctx); err != nil {
		r.log.Warn("crm: progress note dropped", "leadId", leadID, "text", text, "error", err)
		return
	}

	if err := r.notes.AppendNote(ctx, leadID, text, tag); err != nil {
		r.log.RemoteCallError("crm", "AppendNote", err)
	}
}
