package realtime

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"devotion-go/internal/logger"
	"devotion-go/internal/storage"
)

// ErrBrokerClosed is returned once the broker's run loop has exited.
var ErrBrokerClosed = errors.New("realtime: broker closed")

type subscriber struct {
	id      uint64
	sub     storage.Subscription
	handler storage.Handler
	ctx     context.Context
	events  chan storage.ChangeEvent
}

// MemoryBroker fans change events out to in-process subscribers. Each
// subscriber has its own buffered queue drained by its own goroutine, so a
// slow handler never stalls the others. When a queue is full the event is
// dropped for that subscriber.
type MemoryBroker struct {
	// Registered subscribers. Only the Run loop touches this map.
	subscribers map[uint64]*subscriber

	register   chan *subscriber
	unregister chan uint64
	publish    chan storage.ChangeEvent
	done       chan struct{}

	bufferSize int
	nextID     atomic.Uint64
	log        zerolog.Logger
}

// NewMemoryBroker creates a broker whose per-subscriber queues hold
// bufferSize events. Run must be started before use.
func NewMemoryBroker(bufferSize int) *MemoryBroker {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &MemoryBroker{
		subscribers: make(map[uint64]*subscriber),
		register:    make(chan *subscriber),
		unregister:  make(chan uint64),
		publish:     make(chan storage.ChangeEvent, bufferSize),
		done:        make(chan struct{}),
		bufferSize:  bufferSize,
		log:         logger.With("memory-broker"),
	}
}

// Run processes registrations and publications until ctx is canceled.
func (b *MemoryBroker) Run(ctx context.Context) {
	b.log.Debug().Msg("memory broker run loop started")
	defer func() {
		close(b.done)
		for id, s := range b.subscribers {
			close(s.events)
			delete(b.subscribers, id)
		}
		b.log.Debug().Msg("memory broker run loop stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case s := <-b.register:
			b.subscribers[s.id] = s
			go s.drain()

		case id := <-b.unregister:
			if s, ok := b.subscribers[id]; ok {
				delete(b.subscribers, id)
				close(s.events)
			}

		case ev := <-b.publish:
			for _, s := range b.subscribers {
				if !s.sub.Accepts(ev) {
					continue
				}
				select {
				case s.events <- ev:
				default:
					b.log.Warn().Str("table", ev.Table).Str("event", string(ev.Type)).
						Uint64("subscriber", s.id).Msg("subscriber queue full, dropping change event")
				}
			}
		}
	}
}

// Publish queues ev for delivery to every matching subscriber.
func (b *MemoryBroker) Publish(ctx context.Context, ev storage.ChangeEvent) error {
	select {
	case b.publish <- ev:
		return nil
	case <-b.done:
		return ErrBrokerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers handler for events accepted by sub. The subscription
// ends when the returned Unsubscribe is called or ctx is canceled; handler is
// invoked with ctx.
func (b *MemoryBroker) Subscribe(ctx context.Context, sub storage.Subscription, handler storage.Handler) (storage.Unsubscribe, error) {
	s := &subscriber{
		id:      b.nextID.Add(1),
		sub:     sub,
		handler: handler,
		ctx:     ctx,
		events:  make(chan storage.ChangeEvent, b.bufferSize),
	}
	select {
	case b.register <- s:
	case <-b.done:
		return nil, ErrBrokerClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once
	stop := make(chan struct{})
	unsubscribe := func() {
		once.Do(func() {
			close(stop)
			select {
			case b.unregister <- s.id:
			case <-b.done:
			}
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			unsubscribe()
		case <-stop:
		}
	}()
	return unsubscribe, nil
}

func (s *subscriber) drain() {
	for ev := range s.events {
		s.handler(s.ctx, ev)
	}
}
