package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fulfillment_backend/internal/catalogsync"
	"fulfillment_backend/internal/crm"
	"fulfillment_backend/internal/pos"
	"fulfillment_backend/internal/scheduler"
	"fulfillment_backend/platform/config"
	"fulfillment_backend/platform/logger"
)

// The scheduler binary runs the asynq worker for catalog maintenance jobs.
// It shares the CRM and POS clients with the api binary but serves no HTTP.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	timeout := cfg.HTTPClientTimeout

	crmClient := crm.NewClient(cfg, timeout, log)
	posClient := pos.NewClient(cfg, timeout, log)
	catalog := pos.NewCatalog(posClient, cfg, log)

	if err := catalog.Reload(ctx); err != nil {
		log.Error("catalog could not be loaded at startup", "error", err)
	} else {
		log.Info("catalog loaded", "positions", catalog.Size())
	}

	syncService := catalogsync.New(crmClient, catalog, cfg, log)

	worker, err := scheduler.NewWorker(cfg, syncService, catalog, log)
	if err != nil {
		log.Error("failed to initialize worker", "error", err)
		panic("failed to initialize worker: " + err.Error())
	}

	// Keep the menu index fresh for price reconciliation even when no
	// reload job arrives.
	go refreshLoop(ctx, catalog, log)

	worker.Run(ctx)
	log.Info("scheduler stopped")
}

func refreshLoop(ctx context.Context, catalog *pos.Catalog, log *logger.Logger) {
	ticker := time.NewTicker(30 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := catalog.Reload(ctx); err != nil {
				log.Warn("periodic catalog reload failed", "error", err)
			}
		}
	}
}
