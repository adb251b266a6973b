// Package fulfillment orchestrates the order saga: a CRM lead is normalized
// against the POS catalog, submitted as a POS order, handed to the carrier,
// and tracked to a terminal state while the lead is annotated along the way.
package fulfillment

import (
	"strconv"
	"strings"
	"time"

	"fulfillment_backend/internal/crm"
	"fulfillment_backend/internal/fulfillment/intent"
	"fulfillment_backend/internal/pos"
	"fulfillment_backend/platform/config"
	"fulfillment_backend/platform/logger"
	"fulfillment_backend/platform/phone"
	"fulfillment_backend/platform/sanitize"
)

// CatalogLookup resolves products in the POS menu. Satisfied by
// *pos.Catalog.
type CatalogLookup interface {
	Lookup(productID, sizeID string) (pos.Product, bool)
}

// Normalizer turns a raw CRM lead into a priced order intent.
type Normalizer struct {
	catalog CatalogLookup
	bundles *BundleTable
	fields  config.LeadFieldConfig
	log     *logger.Logger
}

// NewNormalizer creates a normalizer.
func NewNormalizer(catalog CatalogLookup, bundles *BundleTable, fields config.LeadFieldConfig, log *logger.Logger) *Normalizer {
	return &Normalizer{catalog: catalog, bundles: bundles, fields: fields, log: log}
}

// Normalize builds the order intent from the lead's custom fields and its
// linked catalog references. References that resolve to nothing in the POS
// menu are dropped and returned by name so the caller can report them.
func (n *Normalizer) Normalize(lead crm.Lead, refs []crm.CatalogRef) (*intent.OrderIntent, []string) {
	order := &intent.OrderIntent{
		LeadID:        lead.ID,
		CustomerName:  sanitize.Text(lead.Field(n.fields.GetLeadFieldCustomerName())),
		RawAddress:    sanitize.Text(lead.Field(n.fields.GetLeadFieldAddress())),
		Comment:       sanitize.Text(lead.Field(n.fields.GetLeadFieldComment())),
		Branch:        lead.Field(n.fields.GetLeadFieldBranch()),
		Source:        lead.Field(n.fields.GetLeadFieldSource()),
		PaymentMethod: lead.Field(n.fields.GetLeadFieldPaymentMethod()),
		PrepTime:      parsePrepTime(lead.Field(n.fields.GetLeadFieldPrepTime())),
	}

	if raw := lead.Field(n.fields.GetLeadFieldCustomerPhone()); raw != "" {
		order.CustomerPhone = phone.NormalizeE164(raw)
		if order.CustomerPhone == strings.TrimSpace(raw) && !strings.HasPrefix(order.CustomerPhone, "+") {
			n.log.Warn("fulfillment: customer phone did not normalize", "leadId", lead.ID, "raw", raw)
		}
	}
	if raw := lead.Field(n.fields.GetLeadFieldCourierPhone()); raw != "" {
		order.CourierPhone = phone.NormalizeE164(raw)
	}

	if order.CustomerName == "" {
		order.CustomerName = sanitize.Text(lead.Name)
	}

	var dropped []string
	for _, ref := range refs {
		items, ok := n.resolveRef(ref)
		if !ok {
			n.log.Warn("fulfillment: catalog reference dropped", "leadId", lead.ID, "productId", ref.ProductID)
			dropped = append(dropped, ref.ProductID)
			continue
		}
		order.Items = append(order.Items, items...)
	}

	return order, dropped
}

// resolveRef prices one catalog reference. A combo product yields its parent
// line at menu price plus zero-priced component lines.
func (n *Normalizer) resolveRef(ref crm.CatalogRef) ([]intent.LineItem, bool) {
	product, ok := n.catalog.Lookup(ref.ProductID, ref.SizeID)
	if !ok {
		return nil, false
	}

	items := []intent.LineItem{{
		ProductID: product.ProductID,
		SizeID:    product.SizeID,
		Name:      product.Name,
		Quantity:  ref.Quantity,
		UnitPrice: product.Price,
	}}

	for _, component := range n.bundles.Components(ref.ProductID) {
		line := intent.LineItem{
			ProductID: component.ProductID,
			SizeID:    component.SizeID,
			Quantity:  component.Quantity * ref.Quantity,
		}
		if sub, ok := n.catalog.Lookup(component.ProductID, component.SizeID); ok {
			line.Name = sub.Name
			line.SizeID = sub.SizeID
		} else {
			n.log.Warn("fulfillment: bundle component missing from catalog", "productId", component.ProductID)
			line.Name = component.ProductID
		}
		items = append(items, line)
	}

	return items, true
}

func parsePrepTime(raw string) time.Duration {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0
	}
	minutes, err := strconv.Atoi(trimmed)
	if err != nil || minutes <= 0 {
		return 0
	}
	return time.Duration(minutes) * time.Minute
}
