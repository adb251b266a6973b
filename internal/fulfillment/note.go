package fulfillment

import (
	"fmt"
	"strings"
	"time"

	"fulfillment_backend/internal/fulfillment/intent"
)

// formatOrderNote renders the assembled order as the note posted to the lead
// once normalization succeeds: the customer details line by line, then every
// priced item.
func formatOrderNote(order *intent.OrderIntent, placedAt time.Time) string {
	var b strings.Builder
	b.WriteString("New customer order\n")
	fmt.Fprintf(&b, "Order #: %s\n", placedAt.Format("15:04"))
	fmt.Fprintf(&b, "Customer: %s\n", orElse(order.CustomerName, "n/a"))
	fmt.Fprintf(&b, "Phone: %s\n", orElse(order.CustomerPhone, "n/a"))
	fmt.Fprintf(&b, "Address: %s\n", orElse(order.RawAddress, "n/a"))
	fmt.Fprintf(&b, "Comment: %s\n", orElse(order.Comment, "no comment"))
	fmt.Fprintf(&b, "Branch: %s\n", orElse(order.Branch, "n/a"))
	fmt.Fprintf(&b, "Payment method: %s\n", orElse(order.PaymentMethod, "n/a"))
	fmt.Fprintf(&b, "Prep time: %d min\n", int(order.PrepTime.Minutes()))
	fmt.Fprintf(&b, "Source: %s\n", orElse(order.Source, "n/a"))
	fmt.Fprintf(&b, "Total: %s KZT\n\n", order.Total().String())

	b.WriteString("Items:\n")
	for _, item := range order.Items {
		fmt.Fprintf(&b, "  - %s x%d (%s KZT) = %s KZT\n",
			item.Name, item.Quantity, item.UnitPrice.String(), item.Total().String())
	}
	return b.String()
}

func orElse(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
