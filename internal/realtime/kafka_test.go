package realtime

import (
	"context"
	"sync"
	"testing"
	"time"

	confluent "github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devotion-go/internal/kafka"
	"devotion-go/internal/storage"
)

// loopback is a producer and consumer pair sharing one in-memory topic.
type loopback struct {
	msgs chan *confluent.Message

	mu      sync.Mutex
	keys    []string
	groupID string
}

func newLoopback() *loopback {
	return &loopback{msgs: make(chan *confluent.Message, 16)}
}

func (l *loopback) SendMessage(_ context.Context, topic string, key []byte, payload []byte) error {
	l.mu.Lock()
	l.keys = append(l.keys, string(key))
	l.mu.Unlock()
	l.msgs <- &confluent.Message{
		TopicPartition: confluent.TopicPartition{Topic: &topic},
		Key:            key,
		Value:          payload,
	}
	return nil
}

func (l *loopback) Consume(ctx context.Context, topics []string, groupID string, handler kafka.MessageHandler) error {
	l.mu.Lock()
	l.groupID = groupID
	l.mu.Unlock()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-l.msgs:
			if err := handler(ctx, msg); err != nil {
				return err
			}
		}
	}
}

func (l *loopback) Close() {}

func TestKafkaBrokerRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lb := newLoopback()
	b := NewKafkaBroker(lb, lb, "changes", "devotion-api", 16)
	go b.Run(ctx)

	var c collector
	_, err := b.Subscribe(ctx, storage.Subscription{Table: "messages", Filter: storage.Eq("receiver_id", "u1")}, c.handle)
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, messageEvent("m1", "u1")))
	require.NoError(t, b.Publish(ctx, messageEvent("m2", "u2")))

	// A malformed record on the topic is skipped.
	lb.msgs <- &confluent.Message{Key: []byte("messages"), Value: []byte("{not json")}
	require.NoError(t, b.Publish(ctx, messageEvent("m3", "u1")))

	assert.Eventually(t, func() bool { return c.count() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"m1", "m3"}, c.ids())

	lb.mu.Lock()
	defer lb.mu.Unlock()
	assert.Equal(t, []string{"messages", "messages", "messages"}, lb.keys, "records are keyed by table")
	assert.Contains(t, lb.groupID, "devotion-api-")
}
