package webhook

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"fulfillment_backend/internal/fulfillment"
	apphttp "fulfillment_backend/internal/http"
	"fulfillment_backend/platform/events"
	"fulfillment_backend/platform/httpkit"
	"fulfillment_backend/platform/logger"
)

// Runner starts a fulfillment run for a lead. Satisfied by
// *fulfillment.Orchestrator.
type Runner interface {
	HandleLeadEvent(ctx context.Context, leadID int64) (fulfillment.RunResult, error)
}

// Module is the webhook ingress module.
type Module struct {
	runner    Runner
	lastOrder *LastOrderCache
	log       *logger.Logger
}

// New creates the module and subscribes its last-order cache to the bus.
func New(runner Runner, bus events.Bus, log *logger.Logger) *Module {
	m := &Module{
		runner:    runner,
		lastOrder: NewLastOrderCache(),
		log:       log,
	}
	m.lastOrder.Subscribe(bus)
	return m
}

// Name implements http.Module.
func (m *Module) Name() string { return "webhook" }

// RegisterRoutes implements http.Module.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.V1.POST("/webhook", m.handleWebhook)
	ctx.V1.GET("/last-order", m.handleLastOrder)
}

// handleWebhook acknowledges the CRM immediately; the run happens on a
// detached task so the CRM's webhook timeout never interferes with it.
func (m *Module) handleWebhook(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "malformed webhook body", nil)
		return
	}

	leadID, ok := ExtractLeadID(c.Request.PostForm)
	if !ok {
		// Unrelated CRM events land here too; acknowledge and move on.
		m.log.Debug("webhook: no lead id in payload")
		httpkit.OK(c, gin.H{"status": "ignored"})
		return
	}

	go m.run(leadID)

	httpkit.OK(c, gin.H{"status": "accepted", "lead_id": leadID})
}

func (m *Module) run(leadID int64) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("webhook: fulfillment run panicked", "leadId", leadID, "panic", r)
		}
	}()

	result, err := m.runner.HandleLeadEvent(context.Background(), leadID)
	if err != nil {
		m.log.Error("webhook: fulfillment run failed", "leadId", leadID, "error", err)
		return
	}
	m.log.Info("webhook: fulfillment run detached",
		"leadId", leadID, "orderId", result.OrderID, "claimId", result.ClaimID)
}

func (m *Module) handleLastOrder(c *gin.Context) {
	order, at, ok := m.lastOrder.Get()
	if !ok {
		httpkit.Error(c, http.StatusNotFound, "no order assembled yet", nil)
		return
	}

	items := make([]gin.H, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, gin.H{
			"name":       item.Name,
			"quantity":   item.Quantity,
			"unit_price": item.UnitPrice.String(),
		})
	}

	httpkit.OK(c, gin.H{
		"lead_id":      order.LeadID,
		"customer":     order.CustomerName,
		"address":      order.RawAddress,
		"total":        order.Total().String(),
		"items":        items,
		"assembled_at": at,
	})
}
