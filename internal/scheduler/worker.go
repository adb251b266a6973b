package scheduler

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"fulfillment_backend/internal/catalogsync"
	"fulfillment_backend/platform/config"
	"fulfillment_backend/platform/logger"
)

// CatalogReloader refreshes the POS menu index. Satisfied by *pos.Catalog.
type CatalogReloader interface {
	Reload(ctx context.Context) error
}

type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	sync    *catalogsync.Service
	catalog CatalogReloader
	log     *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, sync *catalogsync.Service, catalog CatalogReloader, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:  server,
		mux:     mux,
		sync:    sync,
		catalog: catalog,
		log:     log,
	}

	mux.HandleFunc(TaskCatalogPriceSync, w.handleCatalogPriceSync)
	mux.HandleFunc(TaskCatalogReload, w.handleCatalogReload)

	return w, nil
}

func (w *Worker) handleCatalogPriceSync(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseCatalogPriceSyncPayload(task)
	if err != nil {
		return err
	}

	result, err := w.sync.SyncPrices(ctx)
	if err != nil {
		return err
	}

	w.log.Info("scheduler: catalog price sync done",
		"requestedBy", payload.RequestedBy,
		"checked", result.Checked, "updated", result.Updated, "missing", result.Missing)
	return nil
}

func (w *Worker) handleCatalogReload(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseCatalogReloadPayload(task)
	if err != nil {
		return err
	}

	if err := w.catalog.Reload(ctx); err != nil {
		return err
	}

	w.log.Info("scheduler: catalog reloaded", "requestedBy", payload.RequestedBy)
	return nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
