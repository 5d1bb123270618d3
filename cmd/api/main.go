package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/mesa-ayuda/helpdesk-service/internal/api/http"
	"github.com/mesa-ayuda/helpdesk-service/internal/api/http/handlers"
	"github.com/mesa-ayuda/helpdesk-service/internal/config"
	"github.com/mesa-ayuda/helpdesk-service/internal/events"
	"github.com/mesa-ayuda/helpdesk-service/internal/observability"
	"github.com/mesa-ayuda/helpdesk-service/internal/persistence"
	"github.com/mesa-ayuda/helpdesk-service/internal/repository"
	"github.com/mesa-ayuda/helpdesk-service/internal/service"
	"github.com/mesa-ayuda/helpdesk-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	docStore, closeStore, err := persistence.OpenStore(ctx, *cfg, logger)
	if err != nil {
		logger.Fatal("failed to open document store", zap.Error(err))
	}
	defer closeStore()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	clientRepo := repository.NewClientRepository(docStore, cfg.Store.ClientTable)
	ticketRepo := repository.NewTicketRepository(docStore, cfg.Store.TicketTable)

	clientService := service.NewClientService(service.ClientDependencies{
		ClientRepo: clientRepo,
		Metrics:    metrics,
		Logger:     logger,
		CacheSize:  cfg.Cache.ClientSize,
		CacheTTL:   cfg.Cache.ClientTTL(),
	})
	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		Clients:    clientService,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo: ticketRepo,
		Clients:    clientService,
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification, nil)
	waitWorkers := worker.StartNotificationWorker(ctx, notificationService, cfg.Notification.Workers)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  cfg.App.RequestTimeout(),
		WriteTimeout: cfg.App.RequestTimeout(),
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:             handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, docStore),
		Clients:            handlers.NewClientsHandler(authService, clientService),
		Tickets:            handlers.NewTicketsHandler(ticketService),
		Metrics:            metrics,
		LoginRatePerMinute: cfg.Auth.LoginRatePerMinute,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	cancel()
	waitWorkers()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
