package catalogsync

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	apphttp "fulfillment_backend/internal/http"
	"fulfillment_backend/platform/httpkit"
	"fulfillment_backend/platform/logger"
)

// CatalogReloader refreshes the POS menu index. Satisfied by *pos.Catalog.
type CatalogReloader interface {
	Reload(ctx context.Context) error
}

// JobScheduler enqueues catalog maintenance work off the request path.
// Satisfied by *scheduler.Client.
type JobScheduler interface {
	SchedulePriceSync(ctx context.Context, requestedBy string) error
	ScheduleCatalogReload(ctx context.Context, requestedBy string) error
}

// Module exposes catalog maintenance endpoints. With a job scheduler
// configured the work is queued; without one it runs inline.
type Module struct {
	service *Service
	catalog CatalogReloader
	jobs    JobScheduler
	log     *logger.Logger
}

// NewModule creates the module. jobs may be nil when Redis is not
// configured.
func NewModule(service *Service, catalog CatalogReloader, jobs JobScheduler, log *logger.Logger) *Module {
	return &Module{service: service, catalog: catalog, jobs: jobs, log: log}
}

// Name implements http.Module.
func (m *Module) Name() string { return "catalogsync" }

// RegisterRoutes implements http.Module.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/catalog")
	group.POST("/price-sync", m.handlePriceSync)
	group.POST("/reload", m.handleReload)
}

func (m *Module) handlePriceSync(c *gin.Context) {
	if m.jobs != nil {
		if err := m.jobs.SchedulePriceSync(c.Request.Context(), c.ClientIP()); err != nil {
			m.log.Error("catalogsync: could not enqueue price sync", "error", err)
			httpkit.Error(c, http.StatusServiceUnavailable, "price sync could not be scheduled", nil)
			return
		}
		httpkit.JSON(c, http.StatusAccepted, gin.H{"status": "scheduled"})
		return
	}

	result, err := m.service.SyncPrices(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (m *Module) handleReload(c *gin.Context) {
	if m.jobs != nil {
		if err := m.jobs.ScheduleCatalogReload(c.Request.Context(), c.ClientIP()); err != nil {
			m.log.Error("catalogsync: could not enqueue catalog reload", "error", err)
			httpkit.Error(c, http.StatusServiceUnavailable, "reload could not be scheduled", nil)
			return
		}
		httpkit.JSON(c, http.StatusAccepted, gin.H{"status": "scheduled"})
		return
	}

	if err := m.catalog.Reload(c.Request.Context()); err != nil {
		if httpkit.HandleError(c, err) {
			return
		}
	}
	httpkit.OK(c, gin.H{"status": "reloaded"})
}
