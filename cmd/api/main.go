package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	httptransport "github.com/spec-kit/support-desk/internal/api/http"
	"github.com/spec-kit/support-desk/internal/api/http/handlers"
	"github.com/spec-kit/support-desk/internal/api/ws"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/notification"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/persistence"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/internal/repository/memory"
	"github.com/spec-kit/support-desk/internal/service"
	"github.com/spec-kit/support-desk/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics()

	catalog, err := config.LoadCatalog(cfg.Support.CatalogFile)
	if err != nil {
		logger.Warn("business model catalog unavailable; only stored tenant configs apply",
			zap.String("path", cfg.Support.CatalogFile), zap.Error(err))
		catalog = config.EmptyCatalog()
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	var repos *repository.Repositories
	if pg.Enabled() {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(cfg.Postgres.DSN, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		repos = repository.NewPostgresRepositories(pg.Pool)
	} else {
		repos, _ = memory.NewRepositories()
		seedDemoAgents(ctx, repos.Agents, logger)
	}

	redis, err := persistence.NewRedis(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Warn("redis unavailable; rate limits use the ticket store", zap.Error(err))
	}
	defer redis.Close()

	fallbackCounter := repository.NewStoreRateCounter(repos.Tickets)
	primaryCounter := fallbackCounter
	if redis.Enabled() && cfg.Support.RateLimitBackend == "redis" {
		primaryCounter = repository.NewRedisRateCounter(redis.Client)
	}

	hub := notification.NewHub()
	notifierOpts := []notification.Option{
		notification.WithChannel(hub),
		notification.WithWebhook(notification.NewWebhookClient(cfg.Notification.WebhookTimeout(), logger)),
		notification.WithMetrics(metrics),
	}
	if cfg.Notification.AMQPURL != "" {
		publisher, err := notification.NewAMQPPublisher(cfg.Notification.AMQPURL, cfg.Notification.AMQPExchange, logger)
		if err != nil {
			logger.Warn("amqp publisher disabled", zap.Error(err))
		} else {
			defer publisher.Close() //nolint:errcheck
			notifierOpts = append(notifierOpts, notification.WithChannel(publisher))
		}
	}
	if sender := notification.NewSMTPSender(
		cfg.Notification.SMTPAddr,
		cfg.Notification.EmailFrom,
		cfg.Notification.SMTPUsername,
		cfg.Notification.SMTPPassword,
	); sender != nil {
		notifierOpts = append(notifierOpts, notification.WithEmail(sender))
	}
	notifier := notification.NewDispatcher(logger, notifierOpts...)

	dispatcher := events.NewInMemoryDispatcher(logger)
	resolver := service.NewConfigResolver(repos.TenantConfigs, catalog, logger)
	limiter := service.NewRateLimiter(primaryCounter, fallbackCounter, logger, metrics)
	assignment := service.NewAssignmentEngine(repos.Tickets, repos.Agents, logger)
	escalation := service.NewEscalationEngine(assignment, logger)

	ticketService := service.NewTicketService(service.TicketDependencies{
		Repos:       repos,
		Resolver:    resolver,
		RateLimiter: limiter,
		Assignment:  assignment,
		Escalation:  escalation,
		Dispatcher:  dispatcher,
		Logger:      logger,
		Metrics:     metrics,
	})

	alertEngine := service.NewAlertEngine(service.AlertEngineDependencies{
		Rules:    repos.AlertRules,
		History:  repos.AlertHistory,
		Scopes:   resolver,
		Provider: service.NewMetricsService(repos),
		Notifier: notifier,
		Logger:   logger,
		Metrics:  metrics,
		Config: service.AlertEngineConfig{
			TenantTimeout:     cfg.Alerting.TenantTimeout(),
			ResolvedRetention: cfg.Alerting.ResolvedRetention(),
		},
	})
	if seeded, err := alertEngine.SeedRules(ctx, catalog.AlertRules); err != nil {
		logger.Warn("failed to seed alert rules", zap.Error(err))
	} else if seeded > 0 {
		logger.Info("alert rules seeded", zap.Int("count", seeded))
	}

	scheduler := worker.NewScheduler(logger)
	worker.RegisterSupportJobs(scheduler, worker.SupportJobs{
		Notifications: service.NewNotificationService(dispatcher, notifier, logger),
		Alerts:        alertEngine,
		SLA:           service.NewSLATracker(repos, dispatcher, logger, metrics),
		Config:        cfg.Alerting,
		Logger:        logger,
	})
	scheduler.Start(ctx)
	defer scheduler.Stop()

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokens)

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Alerts:         handlers.NewAlertsHandler(alertEngine),
		AuthMiddleware: authMiddleware,
	})

	opsServer := observability.NewOpsServer(cfg.Ops.Addr, metrics, ws.NewDashboardHandler(hub, tokens, logger))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http listening", zap.String("addr", cfg.App.Addr()))
		return app.Listen(cfg.App.Addr())
	})
	g.Go(func() error {
		logger.Info("ops listening", zap.String("addr", cfg.Ops.Addr))
		if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			logger.Warn("http shutdown", zap.Error(err))
		}
		return opsServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}

// seedDemoAgents gives the in-memory store a small roster so assignment has
// someone to pick.
func seedDemoAgents(ctx context.Context, agents repository.AgentRepository, logger *zap.Logger) {
	now := time.Now().UTC()
	acme := "acme-store"
	initech := "initech"
	roster := []domain.AgentProfile{
		{ID: "agent-001", Name: "Dana Ortiz", Email: "dana@acme.example", Role: domain.RoleAgent, BusinessModel: "marketplace", TenantID: &acme,
			Skills: []domain.TicketCategory{domain.TicketCategoryOrder, domain.TicketCategoryShipping, domain.TicketCategoryGeneral}, MaxConcurrentTickets: 10},
		{ID: "agent-002", Name: "Lee Park", Email: "lee@acme.example", Role: domain.RoleAgent, BusinessModel: "marketplace", TenantID: &acme,
			Skills: []domain.TicketCategory{domain.TicketCategoryPayment, domain.TicketCategoryAccount, domain.TicketCategoryGeneral}, MaxConcurrentTickets: 10},
		{ID: "vendor-001", Name: "Acme Vendor Desk", Email: "vendor@acme.example", Role: domain.RoleVendor, BusinessModel: "marketplace", TenantID: &acme,
			MaxConcurrentTickets: 25},
		{ID: "agent-101", Name: "Sam Reyes", Email: "sam@initech.example", Role: domain.RoleAgent, BusinessModel: "saas", TenantID: &initech,
			Skills: []domain.TicketCategory{domain.TicketCategoryTechnical, domain.TicketCategoryAccount, domain.TicketCategoryGeneral}, MaxConcurrentTickets: 8},
		{ID: "supervisor-101", Name: "Ari Novak", Email: "ari@initech.example", Role: domain.RoleSupervisor, BusinessModel: "saas", TenantID: &initech,
			MaxConcurrentTickets: 15},
		{ID: "admin-001", Name: "Marketplace Admin", Email: "admin@example.com", Role: domain.RolePlatformAdmin, BusinessModel: "marketplace",
			MaxConcurrentTickets: 50},
		{ID: "admin-002", Name: "SaaS Admin", Email: "admin@example.com", Role: domain.RolePlatformAdmin, BusinessModel: "saas",
			MaxConcurrentTickets: 50},
	}
	for i := range roster {
		agent := roster[i]
		agent.Active = true
		agent.Available = true
		agent.CreatedAt = now
		agent.UpdatedAt = now
		if err := agents.Create(ctx, &agent); err != nil {
			logger.Warn("failed to seed agent", zap.String("agent_id", agent.ID), zap.Error(err))
		}
	}
	logger.Info("in-memory store seeded with demo agents", zap.Int("count", len(roster)))
}
