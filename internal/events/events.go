// Package events defines the domain events exchanged between fulfillment
// modules over the in-process bus.
package events

import (
	"fulfillment_backend/internal/fulfillment/intent"
	"fulfillment_backend/platform/events"
)

// Event names.
const (
	OrderIntentReadyName = "fulfillment.order_intent_ready"
	RunFinishedName      = "fulfillment.run_finished"
)

// OrderIntentReady is published once a lead has been normalized into a
// priced order, before submission to the POS.
type OrderIntentReady struct {
	events.BaseEvent
	Order *intent.OrderIntent
}

// EventName returns the event identifier.
func (e OrderIntentReady) EventName() string { return OrderIntentReadyName }

// NewOrderIntentReady creates the event.
func NewOrderIntentReady(order *intent.OrderIntent) OrderIntentReady {
	return OrderIntentReady{BaseEvent: events.NewBaseEvent(), Order: order}
}

// RunFinished is published when a fulfillment run reaches its end, whether
// the order was delivered or the run failed along the way.
type RunFinished struct {
	events.BaseEvent
	LeadID    int64
	OrderID   string
	ClaimID   string
	Delivered bool
	Reason    string
}

// EventName returns the event identifier.
func (e RunFinished) EventName() string { return RunFinishedName }

// NewRunFinished creates the event.
func NewRunFinished(leadID int64, orderID, claimID string, delivered bool, reason string) RunFinished {
	return RunFinished{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    leadID,
		OrderID:   orderID,
		ClaimID:   claimID,
		Delivered: delivered,
		Reason:    reason,
	}
}
