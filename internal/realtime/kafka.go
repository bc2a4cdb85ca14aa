package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	confluent "github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"devotion-go/internal/kafka"
	"devotion-go/internal/logger"
	"devotion-go/internal/storage"
)

// KafkaBroker publishes change events to a Kafka topic keyed by table. A
// consumer with a group unique to this process reads the topic back into a
// local MemoryBroker, so every API instance sees every change.
type KafkaBroker struct {
	producer kafka.MessageProducer
	consumer kafka.MessageConsumer
	topic    string
	groupID  string
	local    *MemoryBroker
	log      zerolog.Logger
}

// NewKafkaBroker creates a broker over the given producer and consumer.
// groupPrefix gets a random suffix so that each process forms its own group.
func NewKafkaBroker(producer kafka.MessageProducer, consumer kafka.MessageConsumer, topic, groupPrefix string, bufferSize int) *KafkaBroker {
	return &KafkaBroker{
		producer: producer,
		consumer: consumer,
		topic:    topic,
		groupID:  groupPrefix + "-" + uuid.New().String(),
		local:    NewMemoryBroker(bufferSize),
		log:      logger.With("kafka-broker"),
	}
}

// Run starts the local fan-out loop and consumes the change topic until ctx
// is canceled.
func (b *KafkaBroker) Run(ctx context.Context) error {
	go b.local.Run(ctx)
	return b.consumer.Consume(ctx, []string{b.topic}, b.groupID, b.handleMessage)
}

func (b *KafkaBroker) handleMessage(ctx context.Context, msg *confluent.Message) error {
	var ev storage.ChangeEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		// Skipped rather than retried; a malformed event will never decode.
		b.log.Warn().Err(err).Str("key", string(msg.Key)).Msg("skipping malformed change event")
		return nil
	}
	return b.local.Publish(ctx, ev)
}

func (b *KafkaBroker) Publish(ctx context.Context, ev storage.ChangeEvent) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode change event: %w", err)
	}
	return b.producer.SendMessage(ctx, b.topic, []byte(ev.Table), raw)
}

func (b *KafkaBroker) Subscribe(ctx context.Context, sub storage.Subscription, handler storage.Handler) (storage.Unsubscribe, error) {
	return b.local.Subscribe(ctx, sub, handler)
}
