package kafka

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/segmentio/kafka-go"
)

// EnsureTopics creates the given topics through the cluster controller.
// Existing topics are left untouched. The replication factor is capped at the
// number of brokers so single broker development clusters work.
func EnsureTopics(ctx context.Context, brokers []string, topics []TopicConfig) error {
	if len(brokers) == 0 {
		return fmt.Errorf("no kafka brokers configured")
	}

	conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		return fmt.Errorf("failed to dial kafka: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("failed to find kafka controller: %w", err)
	}
	clusterBrokers, err := conn.Brokers()
	if err != nil {
		return fmt.Errorf("failed to list kafka brokers: %w", err)
	}

	controllerConn, err := kafka.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("failed to dial kafka controller: %w", err)
	}
	defer controllerConn.Close()

	if err := controllerConn.CreateTopics(topicConfigs(topics, len(clusterBrokers))...); err != nil {
		return fmt.Errorf("failed to create topics: %w", err)
	}
	return nil
}

func topicConfigs(topics []TopicConfig, brokerCount int) []kafka.TopicConfig {
	configs := make([]kafka.TopicConfig, 0, len(topics))
	for _, t := range topics {
		replication := t.ReplicationFactor
		if brokerCount > 0 && replication > brokerCount {
			replication = brokerCount
		}

		cfg := kafka.TopicConfig{
			Topic:             t.Name,
			NumPartitions:     t.Partitions,
			ReplicationFactor: replication,
		}
		if t.RetentionMs > 0 {
			cfg.ConfigEntries = []kafka.ConfigEntry{
				{ConfigName: "retention.ms", ConfigValue: strconv.FormatInt(t.RetentionMs, 10)},
			}
		}
		configs = append(configs, cfg)
	}
	return configs
}
