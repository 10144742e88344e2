// Package messaging provides MessageBus implementations: an in-process
// dispatcher and a Redis pub/sub bus for multi-instance deployments.
package messaging

import (
	"context"
	"sync"

	"github.com/alchemorsel/recipe-studio/internal/ports/outbound"
	"go.uber.org/zap"
)

type subscription struct {
	id      uint64
	handler outbound.MessageHandler
}

// MemoryBus dispatches messages synchronously to in-process subscribers
type MemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]subscription
	nextID   uint64
	log      *zap.Logger
}

// NewMemoryBus creates a new in-process message bus
func NewMemoryBus(log *zap.Logger) *MemoryBus {
	return &MemoryBus{
		handlers: make(map[string][]subscription),
		log:      log.Named("memory-bus"),
	}
}

// Publish delivers message to every handler of topic. Handler errors are
// logged and do not stop delivery to the remaining handlers.
func (b *MemoryBus) Publish(ctx context.Context, topic string, message outbound.Message) error {
	b.mu.RLock()
	subs := make([]subscription, len(b.handlers[topic]))
	copy(subs, b.handlers[topic])
	b.mu.RUnlock()

	if len(subs) == 0 {
		b.log.Debug("No handlers registered for topic", zap.String("topic", topic))
		return nil
	}

	for _, sub := range subs {
		if err := sub.handler(ctx, message); err != nil {
			b.log.Error("Failed to handle message",
				zap.String("topic", topic),
				zap.String("type", message.Type),
				zap.Error(err),
			)
		}
	}
	return nil
}

// Subscribe registers handler for topic until the returned function is
// called or ctx ends
func (b *MemoryBus) Subscribe(ctx context.Context, topic string, handler outbound.MessageHandler) (func(), error) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.handlers[topic] = append(b.handlers[topic], subscription{id: id, handler: handler})
	b.mu.Unlock()
	b.log.Debug("Registered message handler", zap.String("topic", topic))

	stop := make(chan struct{})
	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			close(stop)
			b.unsubscribe(topic, id)
		})
	}
	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				unsubscribe()
			case <-stop:
			}
		}()
	}
	return unsubscribe, nil
}

func (b *MemoryBus) unsubscribe(topic string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[topic]
	for i, sub := range subs {
		if sub.id == id {
			b.handlers[topic] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.handlers[topic]) == 0 {
		delete(b.handlers, topic)
	}
}
