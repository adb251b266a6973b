package pos

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fulfillment_backend/internal/fulfillment/intent"
	"fulfillment_backend/platform/apperr"
	"fulfillment_backend/platform/config"
	"fulfillment_backend/platform/logger"
	"fulfillment_backend/platform/retry"
)

// confirmPolicy governs order confirmation polling. The POS creates delivery
// orders asynchronously; "Success" only appears once the order reaches the
// terminal.
var confirmPolicy = retry.Exponential(10, 2*time.Second, 2, 60*time.Second)

// OrderManager submits normalized orders to the POS and tracks them to
// confirmation.
type OrderManager struct {
	client *Client
	cfg    config.POSConfig
	log    *logger.Logger
}

// NewOrderManager creates an order manager.
func NewOrderManager(client *Client, cfg config.POSConfig, log *logger.Logger) *OrderManager {
	return &OrderManager{client: client, cfg: cfg, log: log}
}

// Submit checks terminal liveness once and creates the delivery order.
// An offline terminal is a fatal condition for the run.
func (m *OrderManager) Submit(ctx context.Context, order *intent.OrderIntent) (SubmitResult, error) {
	alive, err := m.client.TerminalAlive(ctx)
	if err != nil {
		return SubmitResult{}, err
	}
	if !alive {
		return SubmitResult{}, apperr.Unavailable("fulfillment terminal is not alive").WithOp("pos.Submit")
	}

	payment := ResolvePaymentMethod(m.cfg, order.PaymentMethod)

	items := make([]map[string]interface{}, 0, len(order.Items))
	for _, item := range order.Items {
		entry := map[string]interface{}{
			"productId": item.ProductID,
			"type":      "Product",
			"amount":    item.Quantity,
			"price":     item.UnitPrice.InexactFloat64(),
		}
		if item.SizeID != "" {
			entry["productSizeId"] = item.SizeID
		}
		items = append(items, entry)
	}

	comment := order.Comment
	if order.Source != "" {
		comment = fmt.Sprintf("[%s] %s", order.Source, comment)
	}

	payload := map[string]interface{}{
		"organizationId":  m.cfg.GetPOSOrganizationID(),
		"terminalGroupId": m.cfg.GetPOSTerminalGroupID(),
		"order": map[string]interface{}{
			"externalNumber": uuid.NewString(),
			"orderTypeId":    m.cfg.GetPOSOrderTypeID(),
			"phone":          order.CustomerPhone,
			"comment":        comment,
			"customer": map[string]interface{}{
				"name": order.CustomerName,
			},
			"items": items,
			"payments": []map[string]interface{}{{
				"paymentTypeKind": payment.Kind,
				"paymentTypeId":   payment.TypeID,
				"sum":             order.Total().InexactFloat64(),
			}},
		},
	}

	var resp orderCreateResponse
	if err := m.client.do(ctx, "/api/1/deliveries/create", payload, &resp); err != nil {
		return SubmitResult{}, apperr.Remote("failed to create delivery order", err).WithOp("pos.Submit")
	}
	if resp.OrderInfo.ID == "" {
		return SubmitResult{}, apperr.Remote("order creation returned no order id", nil).WithOp("pos.Submit")
	}

	m.log.Info("pos: order submitted", "orderId", resp.OrderInfo.ID, "leadId", order.LeadID)
	return SubmitResult{OrderID: resp.OrderInfo.ID}, nil
}

// WaitUntilConfirmed polls the order until its creation status is Success.
// Exhausting the confirmation policy is a soft failure: the caller keeps the
// submit-time order id and continues the run.
func (m *OrderManager) WaitUntilConfirmed(ctx context.Context, orderID string) error {
	payload := map[string]interface{}{
		"organizationId": m.cfg.GetPOSOrganizationID(),
		"orderIds":       []string{orderID},
	}

	for attempt := 0; attempt < confirmPolicy.MaxAttempts; attempt++ {
		var resp orderStatusResponse
		err := m.client.do(ctx, "/api/1/deliveries/by_id", payload, &resp)
		if err != nil {
			m.log.Warn("pos: confirmation poll failed", "orderId", orderID, "attempt", attempt+1, "error", err)
		} else {
			for _, order := range resp.Orders {
				if order.ID != orderID {
					continue
				}
				switch order.CreationStatus {
				case "Success":
					return nil
				case "Error":
					msg := "order creation failed"
					if order.ErrorInfo != nil {
						msg = fmt.Sprintf("order creation failed: %s", order.ErrorInfo.Description)
					}
					return apperr.New(apperr.KindRemote, msg).WithOp("pos.WaitUntilConfirmed")
				}
			}
		}

		if attempt < confirmPolicy.MaxAttempts-1 {
			if err := confirmPolicy.Wait(ctx, attempt); err != nil {
				return err
			}
		}
	}

	return apperr.Timeout("order confirmation not observed in time").WithOp("pos.WaitUntilConfirmed")
}

// Close finalizes the delivery order once its creation is confirmed.
// Failure is reported but never fails the run.
func (m *OrderManager) Close(ctx context.Context, orderID string) error {
	payload := map[string]interface{}{
		"organizationId": m.cfg.GetPOSOrganizationID(),
		"orderId":        orderID,
	}
	if err := m.client.do(ctx, "/api/1/deliveries/close", payload, nil); err != nil {
		return apperr.Remote("failed to close delivery order", err).WithOp("pos.Close")
	}
	return nil
}
