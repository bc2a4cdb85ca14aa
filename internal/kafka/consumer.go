package kafka

import (
	"context"
	"fmt"
	"strings"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"devotion-go/internal/config"
	"devotion-go/internal/logger"
)

// MessageHandler is a function type for processing consumed Kafka messages.
type MessageHandler func(ctx context.Context, msg *kafka.Message) error

// MessageConsumer defines the interface for a Kafka message consumer.
type MessageConsumer interface {
	Consume(ctx context.Context, topics []string, groupID string, handler MessageHandler) error
	Close()
}

// ConsumerOption customizes a consumer created by NewConfluentKafkaConsumer.
type ConsumerOption func(*confluentKafkaConsumer)

// WithOffsetReset sets auto.offset.reset. Fan-out consumers with a fresh
// group per process use "latest" so they do not replay history.
func WithOffsetReset(reset string) ConsumerOption {
	return func(c *confluentKafkaConsumer) {
		c.offsetReset = reset
	}
}

// confluentKafkaConsumer is an implementation of MessageConsumer using confluent-kafka-go.
type confluentKafkaConsumer struct {
	consumer    *kafka.Consumer
	cfg         config.KafkaConfig
	groupID     string
	offsetReset string
}

// NewConfluentKafkaConsumer creates a new Kafka consumer instance using confluent-kafka-go.
// The underlying consumer is created in Consume, once the group id is known.
func NewConfluentKafkaConsumer(cfg config.KafkaConfig, opts ...ConsumerOption) (MessageConsumer, error) {
	c := &confluentKafkaConsumer{cfg: cfg, offsetReset: "earliest"}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Consume starts consuming messages from the specified topics and group.
// This method will block until the context is canceled or a fatal error occurs.
// Offsets are committed only after handler returns nil.
func (c *confluentKafkaConsumer) Consume(ctx context.Context, topics []string, groupID string, handler MessageHandler) error {
	if len(topics) == 0 {
		return fmt.Errorf("kafka consumer: no topics specified")
	}
	c.groupID = groupID
	log := logger.Log.With().Str("group", groupID).Logger()

	configMap := &kafka.ConfigMap{
		"bootstrap.servers":  strings.Join(c.cfg.Brokers, ","),
		"group.id":           c.groupID,
		"auto.offset.reset":  c.offsetReset,
		"enable.auto.commit": "false",
		"security.protocol":  c.cfg.Protocol,
	}
	if c.cfg.ClientID != "" {
		_ = configMap.SetKey("client.id", c.cfg.ClientID)
	}

	consumer, err := kafka.NewConsumer(configMap)
	if err != nil {
		return fmt.Errorf("failed to create Kafka consumer for group %s: %w", groupID, err)
	}
	c.consumer = consumer

	err = c.consumer.SubscribeTopics(topics, nil)
	if err != nil {
		_ = c.consumer.Close()
		c.consumer = nil
		return fmt.Errorf("failed to subscribe to topics %v for group %s: %w", topics, groupID, err)
	}

	log.Info().Strs("topics", topics).Msg("Kafka consumer started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("context canceled, stopping Kafka consumer")
			return nil
		default:
		}

		ev := c.consumer.Poll(1000)
		if ev == nil {
			continue
		}

		switch e := ev.(type) {
		case *kafka.Message:
			if err := handler(ctx, e); err != nil {
				log.Error().Err(err).Str("topic", *e.TopicPartition.Topic).
					Str("offset", e.TopicPartition.Offset.String()).Msg("error processing Kafka message")
				continue
			}
			if _, err := c.consumer.CommitMessage(e); err != nil {
				log.Warn().Err(err).Str("topic", *e.TopicPartition.Topic).
					Str("offset", e.TopicPartition.Offset.String()).Msg("failed to commit offset")
			}
		case kafka.Error:
			log.Error().Err(e).Int("code", int(e.Code())).Bool("fatal", e.IsFatal()).Msg("Kafka consumer error")
			if e.IsFatal() {
				return e
			}
		case kafka.AssignedPartitions:
			log.Info().Int("partitions", len(e.Partitions)).Msg("partitions assigned")
			_ = c.consumer.Assign(e.Partitions)
		case kafka.RevokedPartitions:
			log.Info().Int("partitions", len(e.Partitions)).Msg("partitions revoked")
			_ = c.consumer.Unassign()
		}
	}
}

// Close closes the Kafka consumer.
func (c *confluentKafkaConsumer) Close() {
	if c.consumer == nil {
		return
	}
	if err := c.consumer.Close(); err != nil {
		logger.Error().Err(err).Str("group", c.groupID).Msg("error closing Kafka consumer")
	} else {
		logger.Info().Str("group", c.groupID).Msg("Kafka consumer closed")
	}
	c.consumer = nil
}
