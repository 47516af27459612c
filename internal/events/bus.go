package events

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/mangashelf/mangashelf/internal/id"
)

// Subscription receives events until it is unsubscribed or the bus stops.
type Subscription struct {
	C     chan Event
	Done  chan struct{}
	ID    string
	types []Type
}

func (s *Subscription) wants(t Type) bool {
	return len(s.types) == 0 || slices.Contains(s.types, t)
}

// Bus fans events out to subscribers. Slow subscribers lose events rather
// than blocking the producers.
type Bus struct {
	subs   map[string]*Subscription
	events chan Event
	logger *slog.Logger
	wg     sync.WaitGroup
	mu     sync.RWMutex

	shutdownMu sync.RWMutex
	shutdown   bool
}

// NewBus creates a bus. Call Start to begin delivery.
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		subs:   make(map[string]*Subscription),
		events: make(chan Event, 1000),
		logger: logger,
	}
}

// Start delivers events until ctx is done or Shutdown is called.
func (b *Bus) Start(ctx context.Context) {
	b.wg.Add(1)
	defer b.wg.Done()

	b.logger.Info("event bus starting")
	for {
		select {
		case e, ok := <-b.events:
			if !ok {
				return
			}
			b.broadcast(e)
		case <-ctx.Done():
			b.logger.Info("event bus stopping")
			b.closeAll()
			return
		}
	}
}

// Shutdown stops accepting events, drains the queue and closes every
// subscription.
func (b *Bus) Shutdown(ctx context.Context) error {
	b.shutdownMu.Lock()
	if b.shutdown {
		b.shutdownMu.Unlock()
		return nil
	}
	b.shutdown = true
	close(b.events)
	b.shutdownMu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		for e := range b.events {
			b.broadcast(e)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		b.logger.Warn("event drain timed out, some events were lost")
	}
	b.closeAll()
	return nil
}

// Emit queues e for delivery. It never blocks.
func (b *Bus) Emit(e Event) {
	b.shutdownMu.RLock()
	defer b.shutdownMu.RUnlock()
	if b.shutdown {
		return
	}

	select {
	case b.events <- e:
	default:
		b.logger.Error("event queue full, dropping event", slog.String("event_type", string(e.Type)))
	}
}

func (b *Bus) broadcast(e Event) {
	var delivered, dropped int

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		if !s.wants(e.Type) {
			continue
		}
		select {
		case s.C <- e:
			delivered++
		default:
			dropped++
			b.logger.Warn("dropped event for slow subscriber",
				slog.String("subscriber_id", s.ID),
				slog.String("event_type", string(e.Type)))
		}
	}
	b.logger.Debug("event delivered",
		slog.String("event_type", string(e.Type)),
		slog.Group("stats", slog.Int("delivered", delivered), slog.Int("dropped", dropped)))
}

// Subscribe registers a subscriber for the given types, or every type when
// none are given.
func (b *Bus) Subscribe(types ...Type) (*Subscription, error) {
	subID, err := id.Generate("sub")
	if err != nil {
		return nil, err
	}
	s := &Subscription{
		ID:    subID,
		C:     make(chan Event, 100),
		Done:  make(chan struct{}),
		types: types,
	}

	b.mu.Lock()
	b.subs[s.ID] = s
	b.mu.Unlock()
	return s, nil
}

// Unsubscribe removes a subscriber and closes its channels.
func (b *Bus) Unsubscribe(subID string) {
	b.mu.Lock()
	s, ok := b.subs[subID]
	if ok {
		delete(b.subs, subID)
	}
	b.mu.Unlock()
	if !ok {
		return
	}
	close(s.Done)
	close(s.C)
}

// SubscriberCount returns the number of live subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Bus) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs {
		close(s.Done)
		close(s.C)
	}
	b.subs = make(map[string]*Subscription)
}
