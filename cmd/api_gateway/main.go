package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/systems-marketplace-payments/internal/api_gateway"
	"github.com/systems-marketplace-payments/internal/api_gateway/handler"
	"github.com/systems-marketplace-payments/internal/api_gateway/service"
	"github.com/systems-marketplace-payments/internal/config"
	"github.com/systems-marketplace-payments/internal/data/mongo"
	"github.com/systems-marketplace-payments/internal/data/postgres"
	"github.com/systems-marketplace-payments/internal/logger"
	"github.com/systems-marketplace-payments/internal/platform/messaging/producers"
	"github.com/systems-marketplace-payments/internal/platform/payments"
	"github.com/systems-marketplace-payments/internal/platform/persistence"
	"github.com/systems-marketplace-payments/internal/purchasing/components"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("api_gateway")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	// Initialize databases with app context
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	// Purchase lifecycle events
	eventProducer, err := producers.NewPurchaseEventProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize purchase event producer", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	purchaseRepo := mongo.NewPurchaseRepository(log, mongoDB.Database())
	if err := purchaseRepo.EnsureIndexes(appCtx); err != nil {
		log.Error("Failed to ensure purchase indexes", "error", err)
		os.Exit(1)
	}
	grantRepo := mongo.NewAccessGrantRepository(log, mongoDB.Database())
	creatorRepo := postgres.NewCreatorAccountRepository(log, postgresDB)
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)

	processor := payments.NewStripeProcessor(log, &cfg.Stripe, nil)

	// Initialize services
	ledgerService, err := components.CreateLedgerService(
		purchaseRepo,
		creatorRepo,
		grantRepo,
		outboxRepo,
		processor,
		eventProducer,
		log,
		cfg,
	)
	if err != nil {
		log.Error("Failed to initialize ledger service", "error", err)
		os.Exit(1)
	}
	connectService := service.NewConnectService(creatorRepo, processor, log)

	// Initialize REST server
	server := api_gateway.NewServer(log, cfg, ledgerService, connectService, map[string]handler.Pinger{
		"postgres": postgresDB,
		"mongodb":  mongoDB,
	})
	log.Info("REST server initialized")

	// Create error channel for server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	log.Info("Starting graceful shutdown...")

	// Stop accepting requests before closing what they depend on
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	if err = eventProducer.Close(); err != nil {
		log.Error("Error closing Kafka producer", "error", err)
	}

	postgresDB.Close()

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	}
	if err != nil {
		log.Error("Server shutdown completed with errors")
	} else {
		log.Info("Server shutdown completed successfully")
	}
}
