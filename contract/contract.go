//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"whisper-gateway/domain"
	"whisper-gateway/domain/event"
)

// WorkerName identifies a supervised worker in logs.
type WorkerName string

// Worker doesn't protect itself; supervision, restarts, and panic
// recovery belong to the Supervisor.
type Worker interface {
	Run(ctx context.Context) error
}

type ISupervisor interface {
	Start(ctx context.Context, worker Worker)
	Wait()
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker
// lifecycle events, avoiding manual naming in the Worker interface.
func GetWorkerName(w Worker) WorkerName {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return WorkerName(t.Name())
}

// EventSink is the delivery end of one live session. Consume must not
// block: a sink whose outbound queue is full returns an error and the
// session applies its overflow policy.
type EventSink interface {
	Consume(ctx context.Context, e event.BroadcastEvent) error
}

// IRegistry tracks which sinks are joined to which topic and fans
// events out to them. Join is idempotent; the boolean results report
// whether the sink was the first member of the topic on this process
// (Join) or the last one (Leave).
type IRegistry interface {
	Join(topic domain.TopicID, sink EventSink) (first bool)
	Leave(topic domain.TopicID, sink EventSink) (last bool)
	Publish(ctx context.Context, topic domain.TopicID, e event.BroadcastEvent)
	Members(topic domain.TopicID) int
}

// ISubscription is one live bus subscription. Events delivered after
// Close are discarded.
type ISubscription interface {
	Events() <-chan event.BroadcastEvent
	Close() error
}

// IBus is the publish/subscribe medium decoupling the storage-write
// path from the live-connection path. For a single topic, events
// published by one publisher are delivered in publish order;
// cross-publisher ordering is not guaranteed.
type IBus interface {
	Publish(ctx context.Context, topic domain.TopicID, e event.BroadcastEvent) error
	Subscribe(topic domain.TopicID) (ISubscription, error)
	Close() error
}

// ICoordinator joins sessions to topics and routes every publication
// through the bus, so that locally-connected sessions and sessions on
// other processes observe the same stream.
type ICoordinator interface {
	Join(topic domain.TopicID, sink EventSink) error
	Leave(topic domain.TopicID, sink EventSink)
	Publish(ctx context.Context, topic domain.TopicID, e event.BroadcastEvent) error
}
