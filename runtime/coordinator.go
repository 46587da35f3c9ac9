package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"whisper-gateway/contract"
	"whisper-gateway/domain"
	"whisper-gateway/domain/event"
)

// Coordinator owns the registry and the bus. Every publication goes
// through the bus — including ones originating from local sessions — so
// sessions on this process and on other processes observe the same
// stream, and a sender's own session receives a consistent echo.
//
// For each topic with at least one local member, the coordinator runs
// one supervised forwarder that drains the topic's bus subscription
// into the registry. The first local Join subscribes; the last local
// Leave tears the subscription down.
type Coordinator struct {
	mu         sync.Mutex
	log        *slog.Logger
	registry   contract.IRegistry
	bus        contract.IBus
	supervisor contract.ISupervisor
	ctx        context.Context
	forwarders map[domain.TopicID]*ForwarderWorker
}

func NewCoordinator(log *slog.Logger, registry contract.IRegistry, bus contract.IBus,
	supervisor contract.ISupervisor) *Coordinator {
	return &Coordinator{
		log:        log,
		registry:   registry,
		bus:        bus,
		supervisor: supervisor,
		forwarders: make(map[domain.TopicID]*ForwarderWorker),
	}
}

// Start binds the coordinator to the process lifetime context under
// which forwarders are supervised. Must be called before the first Join.
func (c *Coordinator) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ctx = ctx
}

// Join registers the sink for the topic. When the sink is the topic's
// first local member, a bus subscription is opened and its forwarder is
// started under supervision.
//
// The registry mutation and the forwarder bookkeeping happen under one
// lock: a Join and a Leave on the same topic must observe each other's
// forwarder state, or a fresh first member could inherit a forwarder
// that a concurrent last leaver is about to close.
func (c *Coordinator) Join(topic domain.TopicID, sink contract.EventSink) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	first := c.registry.Join(topic, sink)
	if !first {
		return nil
	}
	if _, ok := c.forwarders[topic]; ok {
		return nil
	}

	sub, err := c.bus.Subscribe(topic)
	if err != nil {
		c.registry.Leave(topic, sink)
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	forwarder := NewForwarderWorker(c.log, topic, sub, c.registry)
	c.forwarders[topic] = forwarder
	c.supervisor.Start(c.ctx, forwarder)
	c.log.Debug("Opened topic forwarder", "topic", topic)
	return nil
}

// Leave removes the sink; the topic's forwarder and bus subscription
// are closed once no local member remains.
func (c *Coordinator) Leave(topic domain.TopicID, sink contract.EventSink) {
	c.mu.Lock()
	defer c.mu.Unlock()

	last := c.registry.Leave(topic, sink)
	if !last {
		return
	}
	if forwarder, ok := c.forwarders[topic]; ok {
		delete(c.forwarders, topic)
		forwarder.Close()
		c.log.Debug("Closed topic forwarder", "topic", topic)
	}
}

// Publish routes an event to every subscriber of the topic, on this
// process and on any other process sharing the bus.
func (c *Coordinator) Publish(ctx context.Context, topic domain.TopicID, e event.BroadcastEvent) error {
	return c.bus.Publish(ctx, topic, e)
}

// Stop closes every remaining forwarder. Sessions are expected to have
// been torn down already; this is the shutdown backstop.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for topic, forwarder := range c.forwarders {
		forwarder.Close()
		delete(c.forwarders, topic)
	}
}

// ForwarderWorker drains one topic's bus subscription into the
// registry. It ends cleanly when the subscription closes or the context
// is canceled.
type ForwarderWorker struct {
	log      *slog.Logger
	topic    domain.TopicID
	sub      contract.ISubscription
	registry contract.IRegistry
}

func NewForwarderWorker(log *slog.Logger, topic domain.TopicID,
	sub contract.ISubscription, registry contract.IRegistry) *ForwarderWorker {
	return &ForwarderWorker{log: log, topic: topic, sub: sub, registry: registry}
}

func (w *ForwarderWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			_ = w.sub.Close()
			return nil
		case evt, ok := <-w.sub.Events():
			if !ok {
				return nil
			}
			w.registry.Publish(ctx, w.topic, evt)
		}
	}
}

// Close ends the worker by closing its subscription; the supervised Run
// loop observes the closed stream and returns without restart.
func (w *ForwarderWorker) Close() {
	_ = w.sub.Close()
}
