package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wms-platform/allocation-service/internal/activities"
	"github.com/wms-platform/allocation-service/internal/application"
	mongoRepo "github.com/wms-platform/allocation-service/internal/infrastructure/mongodb"
	"github.com/wms-platform/allocation-service/pkg/cloudevents"
	"github.com/wms-platform/allocation-service/pkg/kafka"
	"github.com/wms-platform/allocation-service/pkg/logging"
	"github.com/wms-platform/allocation-service/pkg/metrics"
	"github.com/wms-platform/allocation-service/pkg/mongodb"
	"github.com/wms-platform/allocation-service/pkg/temporal"
	"github.com/wms-platform/allocation-service/pkg/tracing"
)

const serviceName = "allocation-worker"

func main() {
	logger := logging.New(logging.DefaultConfig(serviceName))
	logger.SetDefault()

	logger.Info("Starting allocation worker")

	config := loadConfig()
	ctx := context.Background()

	// Initialize OpenTelemetry tracing
	tracingConfig := tracing.DefaultConfig(serviceName)
	tracingConfig.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
	tracingConfig.Environment = getEnv("ENVIRONMENT", "development")
	tracingConfig.ServiceVersion = getEnv("VERSION", tracingConfig.ServiceVersion)
	tracingConfig.Enabled = getBoolEnv("TRACING_ENABLED", true)

	tracerProvider, err := tracing.Initialize(ctx, tracingConfig)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize tracing")
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
				logger.WithError(err).Error("Failed to shutdown tracer")
			}
		}()
	}

	m := metrics.New(metrics.DefaultConfig(serviceName))
	metricsServer := &http.Server{Addr: config.MetricsAddr, Handler: m.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("Metrics server error")
		}
	}()

	// Initialize MongoDB
	mongoClient, err := mongodb.NewClient(ctx, config.MongoDB)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to MongoDB")
		os.Exit(1)
	}
	defer mongoClient.Close(ctx)
	logger.Info("Connected to MongoDB", "database", config.MongoDB.Database)

	breaker := mongodb.NewStorageBreaker(m, logger)
	repo := mongoRepo.NewWarehouseStockRepository(mongoClient.Database(), breaker, m, logger)
	if err := repo.EnsureIndexes(ctx); err != nil {
		logger.WithError(err).Warn("Failed to create warehouse stock indexes")
	}

	// A nil publisher interface disables event publication
	var publisher kafka.EventPublisher
	if config.KafkaEnabled {
		producer := kafka.NewInstrumentedProducer(kafka.NewProducer(config.Kafka), m, logger)
		defer producer.Close()
		publisher = producer
		logger.Info("Kafka producer initialized", "brokers", config.Kafka.Brokers)
	} else {
		logger.Info("Kafka publishing disabled")
	}

	eventFactory := cloudevents.NewEventFactory(cloudevents.SourceAllocation)
	service := application.NewAllocationApplicationService(repo, publisher, eventFactory, m, logger)

	// Initialize Temporal client
	temporalClient, err := temporal.NewClient(ctx, config.Temporal, logger.Logger)
	if err != nil {
		logger.WithError(err).Error("Failed to create Temporal client")
		os.Exit(1)
	}
	defer temporalClient.Close()
	logger.Info("Connected to Temporal", "hostPort", config.Temporal.HostPort)

	allocationActivities := activities.NewAllocationActivities(service, m, logger)

	w := temporalClient.NewWorker(temporal.DefaultWorkerOptions(temporal.TaskQueues.Allocation))
	w.RegisterActivity(allocationActivities.AllocateShipment)
	logger.Info("Registered activities", "activity", temporal.ActivityNames.AllocateShipment)

	if err := w.Start(); err != nil {
		logger.WithError(err).Error("Failed to start worker")
		os.Exit(1)
	}
	logger.Info("Worker started", "taskQueue", temporal.TaskQueues.Allocation)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down worker...")

	w.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Metrics server forced to shutdown")
	}

	logger.Info("Worker stopped")
}
