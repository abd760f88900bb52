package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/allocation-service/internal/application"
	mongoRepo "github.com/wms-platform/allocation-service/internal/infrastructure/mongodb"
	"github.com/wms-platform/allocation-service/pkg/cloudevents"
	"github.com/wms-platform/allocation-service/pkg/kafka"
	"github.com/wms-platform/allocation-service/pkg/logging"
	"github.com/wms-platform/allocation-service/pkg/metrics"
	"github.com/wms-platform/allocation-service/pkg/mongodb"
	"github.com/wms-platform/allocation-service/pkg/tracing"
)

const serviceName = "allocation-service"

func main() {
	logger := logging.New(logging.DefaultConfig(serviceName))
	logger.SetDefault()

	logger.Info("Starting allocation-service API")

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
		// Continue without tracing
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
				logger.WithError(err).Error("Failed to shutdown tracer")
			}
		}()
		logger.Info("Tracing initialized", "endpoint", tracingConfig.OTLPEndpoint, "enabled", tracingConfig.Enabled)
	}

	m := metrics.New(metrics.DefaultConfig(serviceName))

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
		if config.EnsureTopics {
			topicCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			if err := kafka.EnsureTopics(topicCtx, config.Kafka.Brokers, kafka.DefaultTopicConfigs()); err != nil {
				logger.WithError(err).Warn("Failed to ensure Kafka topics")
			}
			cancel()
		}

		producer := kafka.NewInstrumentedProducer(kafka.NewProducer(config.Kafka), m, logger)
		defer producer.Close()
		publisher = producer
		logger.Info("Kafka producer initialized", "brokers", config.Kafka.Brokers)
	} else {
		logger.Info("Kafka publishing disabled")
	}

	eventFactory := cloudevents.NewEventFactory(cloudevents.SourceAllocation)
	service := application.NewAllocationApplicationService(repo, publisher, eventFactory, m, logger)

	gin.SetMode(gin.ReleaseMode)
	router := newRouter(service, m, logger, func() error {
		return mongoClient.HealthCheck(ctx)
	})

	srv := &http.Server{
		Addr:         config.ServerAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
		}
	}()
	logger.Info("Server started", "addr", config.ServerAddr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server stopped")
}
