// Package intent holds the normalized order model shared by the POS and
// carrier clients. It is a leaf package with no dependencies on the rest of
// the application.
package intent

import (
	"time"

	"github.com/shopspring/decimal"
)

// LineItem is one sellable position of the order, priced from the POS menu.
type LineItem struct {
	ProductID string `validate:"required"`
	SizeID    string
	Name      string
	Quantity  int `validate:"gt=0"`
	UnitPrice decimal.Decimal
}

// Total returns the line total (unit price times quantity).
func (li LineItem) Total() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// OrderIntent is the normalized order assembled from a CRM lead. It carries
// everything downstream steps need so they never re-read the lead.
type OrderIntent struct {
	LeadID      int64
	ChildLeadID int64

	CustomerName  string
	CustomerPhone string `validate:"omitempty,e164"`
	CourierPhone  string `validate:"omitempty,e164"`
	RawAddress    string
	Comment       string
	Branch        string
	Source        string
	PaymentMethod string
	PrepTime      time.Duration

	Items []LineItem `validate:"dive"`
}

// Total sums all line totals.
func (o *OrderIntent) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Total())
	}
	return total
}

// Empty reports whether the intent resolved to no sellable items. An empty
// intent must never be submitted to the POS.
func (o *OrderIntent) Empty() bool {
	return len(o.Items) == 0
}

// ReportLeadID returns the lead progress notes should target: the child lead
// when the CRM automation created one, otherwise the parent.
func (o *OrderIntent) ReportLeadID() int64 {
	if o.ChildLeadID != 0 {
		return o.ChildLeadID
	}
	return o.LeadID
}
