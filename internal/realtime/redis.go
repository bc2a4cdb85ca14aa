package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"devotion-go/internal/config"
	"devotion-go/internal/logger"
	"devotion-go/internal/storage"
)

// RedisBroker distributes change events over Redis pub/sub, one channel per
// table. Every subscription holds its own SUBSCRIBE and filters locally.
type RedisBroker struct {
	client *redis.Client
	prefix string
	log    zerolog.Logger
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// NewRedisBroker creates a broker publishing on channels named prefix+table.
func NewRedisBroker(client *redis.Client, prefix string) *RedisBroker {
	return &RedisBroker{client: client, prefix: prefix, log: logger.With("redis-broker")}
}

func (b *RedisBroker) channel(table string) string {
	return b.prefix + table
}

func (b *RedisBroker) Publish(ctx context.Context, ev storage.ChangeEvent) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode change event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel(ev.Table), raw).Err(); err != nil {
		return fmt.Errorf("redis publish to %s: %w", b.channel(ev.Table), err)
	}
	return nil
}

func (b *RedisBroker) Subscribe(ctx context.Context, sub storage.Subscription, handler storage.Handler) (storage.Unsubscribe, error) {
	ps := b.client.Subscribe(ctx, b.channel(sub.Table))
	// Wait for the subscription confirmation so no event published after
	// Subscribe returns is missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis subscribe to %s: %w", b.channel(sub.Table), err)
	}

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			if err := ps.Close(); err != nil {
				b.log.Debug().Err(err).Str("table", sub.Table).Msg("closing redis subscription")
			}
		})
	}

	go func() {
		defer unsubscribe()
		ch := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev storage.ChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					b.log.Warn().Err(err).Str("channel", msg.Channel).Msg("skipping malformed change event")
					continue
				}
				if sub.Accepts(ev) {
					handler(ctx, ev)
				}
			}
		}
	}()
	return unsubscribe, nil
}
