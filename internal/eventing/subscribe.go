package eventing

import (
	"context"
	"sync"
)

// Identified is implemented by events that carry a unique id.
type Identified interface {
	EventID() string
}

// ProcessedStore provides idempotency checks.
type ProcessedStore interface {
	HasProcessed(ctx context.Context, eventID, consumerName string) (bool, error)
	MarkProcessed(ctx context.Context, eventID, consumerName string) error
}

// Subscribe wraps handler with idempotency if store is provided.
func Subscribe(bus EventBus, eventType, consumerName string, handler EventHandler, store ProcessedStore) {
	if bus == nil {
		return
	}
	if store == nil {
		bus.Subscribe(eventType, handler)
		return
	}
	bus.Subscribe(eventType, WrapHandler(consumerName, handler, store))
}

// WrapHandler runs handler at most once per event id and consumer.
// Events without an id are always delivered.
func WrapHandler(consumerName string, handler EventHandler, store ProcessedStore) EventHandler {
	return func(ctx context.Context, event any) error {
		identified, ok := event.(Identified)
		if !ok || identified.EventID() == "" {
			return handler(ctx, event)
		}
		id := identified.EventID()
		processed, err := store.HasProcessed(ctx, id, consumerName)
		if err != nil {
			return err
		}
		if processed {
			return nil
		}
		if err := handler(ctx, event); err != nil {
			return err
		}
		return store.MarkProcessed(ctx, id, consumerName)
	}
}

// MemoryProcessedStore keeps processed markers in memory.
type MemoryProcessedStore struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewMemoryProcessedStore constructs an empty store.
func NewMemoryProcessedStore() *MemoryProcessedStore {
	return &MemoryProcessedStore{seen: make(map[string]struct{})}
}

// HasProcessed reports whether the consumer already handled the event.
func (s *MemoryProcessedStore) HasProcessed(ctx context.Context, eventID, consumerName string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[consumerName+"|"+eventID]
	return ok, nil
}

// MarkProcessed records the event as handled by the consumer.
func (s *MemoryProcessedStore) MarkProcessed(ctx context.Context, eventID, consumerName string) error {
	s.mu.Lock()
	s.seen[consumerName+"|"+eventID] = struct{}{}
	s.mu.Unlock()
	return nil
}
