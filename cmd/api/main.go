package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fulfillment_backend/internal/carrier"
	"fulfillment_backend/internal/catalogsync"
	"fulfillment_backend/internal/crm"
	"fulfillment_backend/internal/fulfillment"
	apphttp "fulfillment_backend/internal/http"
	"fulfillment_backend/internal/http/router"
	"fulfillment_backend/internal/pos"
	"fulfillment_backend/internal/scheduler"
	"fulfillment_backend/internal/webhook"
	"fulfillment_backend/platform/config"
	"fulfillment_backend/platform/events"
	"fulfillment_backend/platform/logger"
	"fulfillment_backend/platform/validator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	// Shared validator instance for dependency injection
	val := validator.New()

	timeout := cfg.HTTPClientTimeout

	crmClient := crm.NewClient(cfg, timeout, log)
	reporter := crm.NewReporter(crmClient, cfg, log)

	posClient := pos.NewClient(cfg, timeout, log)
	catalog := pos.NewCatalog(posClient, cfg, log)

	// The catalog is required before any order can be priced, but the POS
	// being briefly unreachable at boot should not keep the server down:
	// the reload endpoint can recover later.
	if err := withRetry(ctx, log, "catalog load", 5, 2*time.Second, func() error {
		return catalog.Reload(ctx)
	}); err != nil {
		log.Error("catalog could not be loaded at startup, serving anyway", "error", err)
	} else {
		log.Info("catalog loaded", "positions", catalog.Size())
	}

	orders := pos.NewOrderManager(posClient, cfg, log)

	carrierClient := carrier.NewClient(cfg, timeout, log)
	dispatcher := carrier.NewDispatcher(carrierClient, cfg, log)
	tracker := carrier.NewTracker(carrierClient, reporter, crmClient, cfg.GetCRMClosedStatusID(), cfg.GetCarrierPortalURL(), log)

	bundles, err := fulfillment.LoadBundleTable(cfg.GetBundleTablePath())
	if err != nil {
		log.Error("failed to load bundle table", "error", err)
		panic("failed to load bundle table: " + err.Error())
	}
	log.Info("bundle table loaded", "combos", bundles.Size())

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	normalizer := fulfillment.NewNormalizer(catalog, bundles, cfg, log)
	registry := fulfillment.NewTrackingRegistry(carrier.TrackingWindow())
	orchestrator := fulfillment.NewOrchestrator(
		crmClient, reporter, normalizer, orders, dispatcher, tracker,
		registry, eventBus, val, log,
	)
	defer registry.CancelAll()

	webhookModule := webhook.New(orchestrator, eventBus, log)

	syncService := catalogsync.New(crmClient, catalog, cfg, log)
	catalogJobs, closeJobs := initCatalogJobs(cfg, log)
	if closeJobs != nil {
		defer closeJobs()
	}
	catalogModule := catalogsync.NewModule(syncService, catalog, catalogJobs, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		EventBus: eventBus,
		Modules: []apphttp.Module{
			webhookModule,
			catalogModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		registry.CancelAll()
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// initCatalogJobs returns a job scheduler when Redis is configured, nil
// otherwise. Without one, catalog maintenance runs inline.
func initCatalogJobs(cfg config.SchedulerConfig, log *logger.Logger) (catalogsync.JobScheduler, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; catalog jobs run inline")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize catalog job client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
