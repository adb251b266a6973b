package pos

import (
	"strings"

	"fulfillment_backend/platform/config"
)

// PaymentMethod is the POS payment descriptor derived from the lead's
// free-text payment label.
type PaymentMethod struct {
	Kind   string
	TypeID string
}

// cardLabels are payment labels that map to a card-style payment in the POS.
// Anything unrecognized falls back to cash, which the courier can always
// settle on the doorstep.
var cardLabels = []string{"kaspi", "card", "карта"}

// ResolvePaymentMethod maps a lead payment label to a POS payment method.
func ResolvePaymentMethod(cfg config.POSConfig, label string) PaymentMethod {
	normalized := strings.ToLower(strings.TrimSpace(label))
	for _, candidate := range cardLabels {
		if strings.Contains(normalized, candidate) {
			return PaymentMethod{Kind: "Card", TypeID: cfg.GetPOSPaymentTypeCardID()}
		}
	}
	return PaymentMethod{Kind: "Cash", TypeID: cfg.GetPOSPaymentTypeCashID()}
}
