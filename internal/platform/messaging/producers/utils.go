package producers

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/systems-marketplace-payments/internal/config"
)

const (
	topicReadAttempts = 5
	topicReadBackoff  = 2 * time.Second
)

// ensureTopic dials the broker and creates topic when it does not exist yet
func ensureTopic(cfg *config.KafkaConfig, topic string, log *slog.Logger) error {
	conn, err := kafka.Dial("tcp", cfg.Brokers)
	if err != nil {
		return fmt.Errorf("failed to dial kafka: %w", err)
	}
	defer conn.Close()

	return createKafkaTopicIfNotExists(conn, topicSpec(topic, cfg.NumPartitions, cfg.ReplicationFactor), log)
}

// topicSpec builds the topic config, defaulting to a single partition and replica
func topicSpec(topic string, numPartitions, replicationFactor int) kafka.TopicConfig {
	spec := kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     numPartitions,
		ReplicationFactor: replicationFactor,
	}
	if spec.NumPartitions <= 0 {
		spec.NumPartitions = 1
	}
	if spec.ReplicationFactor <= 0 {
		spec.ReplicationFactor = 1
	}
	return spec
}

// createKafkaTopicIfNotExists creates the topic if its partitions cannot be read, retrying reads first
func createKafkaTopicIfNotExists(conn *kafka.Conn, spec kafka.TopicConfig, log *slog.Logger) error {
	var partitions []kafka.Partition
	var err error

	log.Info("Checking if Kafka topic exists", "topic", spec.Topic)
	for i := 0; i < topicReadAttempts; i++ {
		partitions, err = conn.ReadPartitions(spec.Topic)
		if err == nil {
			break
		}
		log.Warn("Failed to read partitions, retrying...", "topic", spec.Topic, "attempt", i+1, "error", err)
		time.Sleep(topicReadBackoff)
	}

	if len(partitions) > 0 {
		log.Info("Kafka topic already exists", "topic", spec.Topic, "partitions", len(partitions))
		return nil
	}

	log.Info("Creating Kafka topic",
		"topic", spec.Topic,
		"partitions", spec.NumPartitions,
		"replication_factor", spec.ReplicationFactor,
		"last_read_error", err,
	)
	if err := conn.CreateTopics(spec); err != nil {
		return fmt.Errorf("failed to create kafka topic %s: %w", spec.Topic, err)
	}
	log.Info("Created Kafka topic", "topic", spec.Topic)
	return nil
}
