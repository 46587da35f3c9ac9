// Package runtime wires live sessions to the broadcast bus. It tracks
// topic membership and fans events out without containing business
// logic or domain rules.
package runtime

import (
	"context"
	"log/slog"
	"sync"

	"whisper-gateway/contract"
	"whisper-gateway/domain"
	"whisper-gateway/domain/event"
)

type memberSet map[contract.EventSink]struct{}

// Registry is the process-wide mapping from topic to the set of live
// session sinks joined to it. It holds non-owning references: a sink's
// lifetime belongs to its session, never to the registry.
type Registry struct {
	mu     sync.RWMutex
	log    *slog.Logger
	topics map[domain.TopicID]memberSet
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		log:    log,
		topics: make(map[domain.TopicID]memberSet),
	}
}

// Join idempotently adds the sink to the topic's member set and reports
// whether it was the first member on this process.
func (r *Registry) Join(topic domain.TopicID, sink contract.EventSink) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.topics[topic]
	if !ok {
		members = make(memberSet)
		r.topics[topic] = members
	}
	members[sink] = struct{}{}
	return !ok
}

// Leave removes the sink and reports whether the topic's member set
// became empty. Empty topics are deleted so the registry does not grow
// unboundedly across the process lifetime.
func (r *Registry) Leave(topic domain.TopicID, sink contract.EventSink) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.topics[topic]
	if !ok {
		return false
	}
	delete(members, sink)
	if len(members) == 0 {
		delete(r.topics, topic)
		return true
	}
	return false
}

// Publish delivers the event to every sink joined at the instant of the
// call. The member set is snapshotted first: a potentially slow
// per-session send must never happen while holding the registry lock.
// A sink that cannot accept the event applies its own overflow policy;
// the registry only logs the failure.
func (r *Registry) Publish(ctx context.Context, topic domain.TopicID, e event.BroadcastEvent) {
	r.mu.RLock()
	sinks := make([]contract.EventSink, 0, len(r.topics[topic]))
	for sink := range r.topics[topic] {
		sinks = append(sinks, sink)
	}
	r.mu.RUnlock()

	for _, sink := range sinks {
		if err := sink.Consume(ctx, e); err != nil {
			r.log.Warn("Session could not accept event", "topic", topic, "error", err)
		}
	}
}

// Members reports the number of sinks currently joined to the topic.
func (r *Registry) Members(topic domain.TopicID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.topics[topic])
}
