package main

import (
	"os"
	"strings"
	"time"

	"github.com/wms-platform/allocation-service/pkg/kafka"
	"github.com/wms-platform/allocation-service/pkg/mongodb"
	"github.com/wms-platform/allocation-service/pkg/resilience"
)

// Config holds API configuration
type Config struct {
	ServerAddr   string
	MongoDB      *mongodb.Config
	Kafka        *kafka.Config
	KafkaEnabled bool
	// EnsureTopics creates the allocation topics at startup
	EnsureTopics bool
}

func loadConfig() *Config {
	kafkaConfig := kafka.DefaultConfig()
	kafkaConfig.Brokers = kafka.ParseBrokers(getEnv("KAFKA_BROKERS", "localhost:9092"))

	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8080"),
		MongoDB: &mongodb.Config{
			URI:            getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database:       getEnv("MONGODB_DATABASE", "allocation_db"),
			ConnectTimeout: 10 * time.Second,
			MaxPoolSize:    100,
			MinPoolSize:    10,
			ConnectRetry:   resilience.DefaultRetryConfig(),
		},
		Kafka:        kafkaConfig,
		KafkaEnabled: getBoolEnv("KAFKA_ENABLED", true),
		EnsureTopics: getBoolEnv("KAFKA_ENSURE_TOPICS", false),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultValue
	}
}
