package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	userservice "cratewatch/contexts/identity/user-service"
	userpostgres "cratewatch/contexts/identity/user-service/adapters/postgres"
	importservice "cratewatch/contexts/integrations/import-service"
	importpostgres "cratewatch/contexts/integrations/import-service/adapters/postgres"
	providergateway "cratewatch/contexts/integrations/provider-gateway"
	gatewaypostgres "cratewatch/contexts/integrations/provider-gateway/adapters/postgres"
	listingservice "cratewatch/contexts/marketplace/listing-service"
	listingpostgres "cratewatch/contexts/marketplace/listing-service/adapters/postgres"
	notificationservice "cratewatch/contexts/notifications/notification-service"
	"cratewatch/contexts/notifications/notification-service/adapters/email"
	notifpostgres "cratewatch/contexts/notifications/notification-service/adapters/postgres"
	notifworkers "cratewatch/contexts/notifications/notification-service/application/workers"
	releaseservice "cratewatch/contexts/watching/release-service"
	releasepostgres "cratewatch/contexts/watching/release-service/adapters/postgres"
	ruleservice "cratewatch/contexts/watching/rule-service"
	rulepostgres "cratewatch/contexts/watching/rule-service/adapters/postgres"
	ruleworkers "cratewatch/contexts/watching/rule-service/application/workers"
	"cratewatch/internal/platform/config"
	"cratewatch/internal/platform/db"
	"cratewatch/internal/platform/httpserver"
	"cratewatch/internal/platform/messaging"
	"cratewatch/internal/platform/metrics"
	"cratewatch/internal/shared/secrets"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres     *db.Postgres
	scheduler    ruleworkers.Scheduler
	delivery     notifworkers.DeliveryWorker
	registry     *prometheus.Registry
	metricsAddr  string
	pollInterval time.Duration
	logger       *slog.Logger
}

// modules is the full set of wired contexts sharing one postgres handle.
type modules struct {
	users         userservice.Module
	rules         ruleservice.Module
	releases      releaseservice.Module
	listings      listingservice.Module
	imports       importservice.Module
	notifications notificationservice.Module
	gateway       providergateway.Module
	broker        *messaging.Broker
}

func buildModules(
	cfg config.Config,
	pg *db.Postgres,
	schedulerMetrics *metrics.SchedulerMetrics,
	deliveryMetrics *metrics.DeliveryMetrics,
	logger *slog.Logger,
) (modules, error) {
	vault, err := secrets.New(cfg.VaultKeyID, cfg.VaultKeyMaterial)
	if err != nil {
		return modules{}, err
	}

	userRepo := userpostgres.NewRepository(pg.DB, logger)
	ruleRepo := rulepostgres.NewRepository(pg.DB, logger)
	releaseRepo := releasepostgres.NewRepository(pg.DB, logger)
	listingRepo := listingpostgres.NewRepository(pg.DB, logger)
	importRepo := importpostgres.NewRepository(pg.DB, logger)
	gatewayRepo := gatewaypostgres.NewRepository(pg.DB, logger)
	gatewaySink := gatewaypostgres.NewRequestSink(pg.DB, gatewaypostgres.UUIDGenerator{}, gatewaypostgres.SystemClock{}, logger)
	notifRepo := notifpostgres.NewRepository(pg.DB, logger)

	broker := messaging.NewBroker(logger)
	userDirectory := userservice.Directory{Users: userRepo}

	notifications := notificationservice.NewModule(notificationservice.Dependencies{
		Events:         notifRepo,
		Notifications:  notifRepo,
		Preferences:    notifRepo,
		Queue:          notifRepo,
		Users:          userDirectory,
		Email:          &email.StubSender{Logger: logger},
		Stream:         broker,
		Clock:          notifpostgres.SystemClock{},
		IDGenerator:    notifpostgres.UUIDGenerator{},
		BatchSize:      cfg.DeliveryBatchSize,
		MaxAttempts:    cfg.DeliveryMaxAttempts,
		RetryBaseDelay: cfg.DeliveryRetryBase,
		RetryMaxDelay:  cfg.DeliveryRetryMax,
		ClaimTTL:       cfg.WorkerClaimTTL,
		Metrics:        deliveryMetrics,
		Logger:         logger,
	})

	gateway := providergateway.NewModule(providergateway.Dependencies{
		Links:       gatewayRepo,
		Sink:        gatewaySink,
		Cipher:      vault,
		Clock:       gatewaypostgres.SystemClock{},
		IDGenerator: gatewaypostgres.UUIDGenerator{},
		Providers: providergateway.ProviderConfig{
			DiscogsBaseURL:    cfg.DiscogsBaseURL,
			DiscogsToken:      cfg.DiscogsToken,
			EbayBaseURL:       cfg.EbayBaseURL,
			EbayClientID:      cfg.EbayClientID,
			EbayClientSecret:  cfg.EbayClientSecret,
			EbayMarketplaceID: cfg.EbayMarketplaceID,
			UserAgent:         cfg.UserAgent,
			MockEnabled:       cfg.MockProvider,
		},
		Logger: logger,
	})

	listings := listingservice.NewModule(listingservice.Dependencies{
		Listings:    listingRepo,
		Matches:     listingRepo,
		Clicks:      listingRepo,
		Rules:       ruleservice.FilterDirectory{Rules: ruleRepo},
		Releases:    releaseservice.CandidateDirectory{Releases: releaseRepo},
		Events:      notifications.RecordEvent,
		Clock:       listingpostgres.SystemClock{},
		IDGenerator: listingpostgres.UUIDGenerator{},
		Logger:      logger,
	})

	rules := ruleservice.NewModule(ruleservice.Dependencies{
		Rules:       ruleRepo,
		Events:      notifications.RecordEvent,
		Clients:     gateway.Clients,
		Sink:        gateway.Sink,
		Ingest:      listings.Ingest,
		Users:       userDirectory,
		Clock:       rulepostgres.SystemClock{},
		IDGenerator: rulepostgres.UUIDGenerator{},
		SearchLimit: cfg.SearchLimit,
		BatchSize:   cfg.SchedulerBatchSize,
		Jitter:      cfg.SchedulerJitter,
		RetryDelay:  cfg.SchedulerRetry,
		ClaimTTL:    cfg.WorkerClaimTTL,
		Metrics:     schedulerMetrics,
		Logger:      logger,
	})

	releases := releaseservice.NewModule(releaseservice.Dependencies{
		Releases:    releaseRepo,
		Events:      notifications.RecordEvent,
		Clock:       releasepostgres.SystemClock{},
		IDGenerator: releasepostgres.UUIDGenerator{},
		Logger:      logger,
	})

	users := userservice.NewModule(userservice.Dependencies{
		Users:       userRepo,
		Rules:       ruleRepo,
		Clock:       userpostgres.SystemClock{},
		IDGenerator: userpostgres.UUIDGenerator{},
		Logger:      logger,
	})

	imports := importservice.NewModule(importservice.Dependencies{
		Jobs:        importRepo,
		Tokens:      gateway.ResolveToken,
		Lists:       gateway.ListClient,
		Releases:    releases.UpsertFromImport,
		Events:      notifications.RecordEvent,
		Clock:       importpostgres.SystemClock{},
		IDGenerator: importpostgres.UUIDGenerator{},
		Logger:      logger,
	})

	return modules{
		users:         users,
		rules:         rules,
		releases:      releases,
		listings:      listings,
		imports:       imports,
		notifications: notifications,
		gateway:       gateway,
		broker:        broker,
	}, nil
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// The API process never runs the polling or delivery loops, so it
	// carries no loop metrics of its own.
	wired, err := buildModules(cfg, pg, nil, nil, logger)
	if err != nil {
		return nil, err
	}

	server := httpserver.New(httpserver.Options{
		Users:          wired.users,
		Rules:          wired.rules,
		Releases:       wired.releases,
		Listings:       wired.listings,
		Imports:        wired.imports,
		Notifications:  wired.notifications,
		Gateway:        wired.gateway,
		Stream:         wired.broker,
		Registry:       registry,
		EbayCampaignID: cfg.EbayCampaignID,
		ImportCooldown: cfg.ImportCooldownSeconds,
		Logger:         logger,
		Addr:           normalizeAddr(cfg.HTTPPort),
	})
	return &APIApp{
		server:   server,
		postgres: pg,
		logger:   logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	schedulerMetrics := metrics.NewSchedulerMetrics(registry)
	deliveryMetrics := metrics.NewDeliveryMetrics(registry)

	wired, err := buildModules(cfg, pg, schedulerMetrics, deliveryMetrics, logger)
	if err != nil {
		return nil, err
	}

	return &WorkerApp{
		postgres:     pg,
		scheduler:    wired.rules.Scheduler,
		delivery:     wired.notifications.DeliveryWorker,
		registry:     registry,
		metricsAddr:  normalizeAddr(cfg.HTTPPort),
		pollInterval: cfg.WorkerPollInterval,
		logger:       logger,
	}, nil
}

func (a *APIApp) Run(_ context.Context) error {
	a.logger.Info("api app started",
		"event", "bootstrap_api_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
	)
	return a.server.Start()
}

func (a *APIApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

// Run drives the polling scheduler and the notification delivery loop, plus
// a metrics listener, until the context is cancelled or a loop fails.
func (w *WorkerApp) Run(ctx context.Context) error {
	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
	)

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", promhttp.HandlerFor(w.registry, promhttp.HandlerOpts{}))
		server := &http.Server{Addr: w.metricsAddr, Handler: mux}

		errCh := make(chan error, 1)
		go func() { errCh <- server.ListenAndServe() }()

		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return err
			}
			return nil
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		}
	})

	group.Go(func() error {
		return w.loop(ctx, func(ctx context.Context) error {
			_, err := w.scheduler.RunOnce(ctx)
			return err
		})
	})

	group.Go(func() error {
		return w.loop(ctx, func(ctx context.Context) error {
			_, err := w.delivery.RunOnce(ctx)
			return err
		})
	})

	return group.Wait()
}

func (w *WorkerApp) loop(ctx context.Context, runOnce func(context.Context) error) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		if err := runOnce(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
