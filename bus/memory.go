// Package bus provides the broadcast medium decoupling storage writes
// from live sessions: an in-memory implementation for single-node
// deployments and a Redis-backed one for multi-process fan-out.
package bus

import (
	"context"
	"log/slog"
	"sync"

	"whisper-gateway/contract"
	"whisper-gateway/domain"
	"whisper-gateway/domain/event"
	"whisper-gateway/errors"
)

// MemoryBus delivers events between publishers and subscribers of the
// same process. Sends to a subscriber happen under the bus lock in
// publish order, which gives FIFO delivery per topic; a subscriber that
// stops draining loses events rather than stalling publishers.
type MemoryBus struct {
	mu         sync.Mutex
	log        *slog.Logger
	bufferSize int
	subs       map[domain.TopicID][]*memorySubscription
	closed     bool
}

func NewMemoryBus(log *slog.Logger, bufferSize int) *MemoryBus {
	return &MemoryBus{
		log:        log,
		bufferSize: bufferSize,
		subs:       make(map[domain.TopicID][]*memorySubscription),
	}
}

func (b *MemoryBus) Publish(_ context.Context, topic domain.TopicID, e event.BroadcastEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errors.ErrBusClosed
	}
	for _, sub := range b.subs[topic] {
		select {
		case sub.events <- e:
		default:
			b.log.Warn("Subscriber buffer full, dropping event", "topic", topic)
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(topic domain.TopicID) (contract.ISubscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, errors.ErrBusClosed
	}
	sub := &memorySubscription{
		bus:    b,
		topic:  topic,
		events: make(chan event.BroadcastEvent, b.bufferSize),
	}
	b.subs[topic] = append(b.subs[topic], sub)
	return sub, nil
}

// Close drops every subscription. Subscribers observe the closed event
// channel and stop.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, subs := range b.subs {
		for _, sub := range subs {
			close(sub.events)
		}
	}
	b.subs = nil
	return nil
}

func (b *MemoryBus) remove(target *memorySubscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	subs := b.subs[target.topic]
	for i, sub := range subs {
		if sub == target {
			b.subs[target.topic] = append(subs[:i], subs[i+1:]...)
			close(sub.events)
			break
		}
	}
	if len(b.subs[target.topic]) == 0 {
		delete(b.subs, target.topic)
	}
}

type memorySubscription struct {
	bus    *MemoryBus
	topic  domain.TopicID
	events chan event.BroadcastEvent
	once   sync.Once
}

func (s *memorySubscription) Events() <-chan event.BroadcastEvent {
	return s.events
}

func (s *memorySubscription) Close() error {
	s.once.Do(func() {
		s.bus.remove(s)
	})
	return nil
}
