package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/systems-marketplace-payments/internal/config"
	"github.com/systems-marketplace-payments/internal/data/mongo"
	"github.com/systems-marketplace-payments/internal/data/postgres"
	"github.com/systems-marketplace-payments/internal/logger"
	"github.com/systems-marketplace-payments/internal/platform/messaging/consumers"
	"github.com/systems-marketplace-payments/internal/platform/messaging/producers"
	"github.com/systems-marketplace-payments/internal/platform/payments"
	"github.com/systems-marketplace-payments/internal/platform/persistence"
	"github.com/systems-marketplace-payments/internal/purchasing/components"
	"github.com/systems-marketplace-payments/internal/reconciler/consumer"
	"github.com/systems-marketplace-payments/internal/reconciler/outbox_poller"
	"github.com/systems-marketplace-payments/internal/reconciler/sweeper"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("reconciler")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	log.Info("Starting Reconciler",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

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

	// Initialize repositories
	purchaseRepo := mongo.NewPurchaseRepository(log, mongoDB.Database())
	if err := purchaseRepo.EnsureIndexes(appCtx); err != nil {
		log.Error("Failed to ensure purchase indexes", "error", err)
		os.Exit(1)
	}
	grantRepo := mongo.NewAccessGrantRepository(log, mongoDB.Database())
	creatorRepo := postgres.NewCreatorAccountRepository(log, postgresDB)
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)
	auditRepo := postgres.NewPurchaseEventRepository(log, postgresDB)

	// Initialize Kafka
	kafkaConsumer := consumers.NewKafkaConsumer(appCtx, log, &cfg.Kafka)

	eventProducer, err := producers.NewPurchaseEventProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize purchase event producer", "error", err)
		os.Exit(1)
	}

	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}
	var deadLetters producers.DeadLetterPublisher
	if dlqProducer != nil {
		deadLetters = dlqProducer
	}

	// The sweeper drives the same ledger the gateway serves
	ledgerService, err := components.CreateLedgerService(
		purchaseRepo,
		creatorRepo,
		grantRepo,
		outboxRepo,
		payments.NewStripeProcessor(log, &cfg.Stripe, nil),
		eventProducer,
		log,
		cfg,
	)
	if err != nil {
		log.Error("Failed to initialize ledger service", "error", err)
		os.Exit(1)
	}

	purchaseSweeper, err := sweeper.NewSweeper(&cfg.Reconciler, cfg.WorkerPool.Size, purchaseRepo, ledgerService, log.With("component", "sweeper"))
	if err != nil {
		log.Error("Failed to initialize sweeper", "error", err)
		os.Exit(1)
	}

	eventHandler := consumer.NewPurchaseEventHandler(log, auditRepo, deadLetters)

	poller := outbox_poller.NewPoller(
		&cfg.Reconciler,
		outboxRepo,
		outbox_poller.NewPurchaseRecorder(outboxRepo, purchaseRepo, log),
		log,
	)

	// Create error channel for service errors
	errChan := make(chan error, 1)

	// Create wait group for graceful shutdown
	var wg sync.WaitGroup

	if err := kafkaConsumer.Subscribe(appCtx, eventHandler.HandleMessage); err != nil {
		errChan <- fmt.Errorf("kafka consumer error: %w", err)
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		poller.Start(appCtx)
	}()
	go func() {
		defer wg.Done()
		purchaseSweeper.Start(appCtx)
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serviceErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Service error occurred", "error", err)
		serviceErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	log.Info("Starting graceful shutdown...")

	// Wait for the poller, the sweeper and the consume loop
	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		if done := kafkaConsumer.Done(); done != nil {
			<-done
		}
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("All services stopped successfully")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	purchaseSweeper.Shutdown()

	if dlqProducer != nil {
		if err = dlqProducer.Close(); err != nil {
			log.Error("Error closing DLQ Kafka producer", "error", err)
		}
	}

	if err = eventProducer.Close(); err != nil {
		log.Error("Error closing purchase event producer", "error", err)
	}

	if err = kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
	}

	postgresDB.Close()

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	if serviceErr != nil {
		log.Error("Reconciler shutdown with errors", "error", serviceErr)
	}
	if err != nil {
		log.Error("Reconciler shutdown completed with errors")
	} else {
		log.Info("Reconciler shutdown completed successfully")
	}
}
