package bus

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/go-redis/redis/v8"

	"whisper-gateway/contract"
	"whisper-gateway/domain"
	"whisper-gateway/domain/event"
)

const channelPrefix = "whisper:"

// RedisBus carries broadcast events over Redis pub/sub so a message
// persisted by one gateway process reaches sessions held by another.
// Events travel as their canonical wire frames; the Redis channel name
// carries the topic. Redis pub/sub preserves per-connection publish
// order, which satisfies the per-publisher FIFO guarantee.
type RedisBus struct {
	client     *redis.Client
	log        *slog.Logger
	bufferSize int
}

func NewRedisBus(addr string, db int, log *slog.Logger, bufferSize int) (*RedisBus, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if _, err := client.Ping(context.Background()).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisBus{client: client, log: log, bufferSize: bufferSize}, nil
}

func channelName(topic domain.TopicID) string {
	return channelPrefix + string(topic)
}

func topicFromChannel(channel string) domain.TopicID {
	return domain.TopicID(strings.TrimPrefix(channel, channelPrefix))
}

func (b *RedisBus) Publish(ctx context.Context, topic domain.TopicID, e event.BroadcastEvent) error {
	payload, err := event.Marshal(e)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, channelName(topic), payload).Err()
}

// Subscribe opens a dedicated Redis subscription for the topic and
// decodes incoming frames back into typed events. Frames that fail to
// decode are logged and skipped; they must not kill the stream.
func (b *RedisBus) Subscribe(topic domain.TopicID) (contract.ISubscription, error) {
	pubsub := b.client.Subscribe(context.Background(), channelName(topic))
	// Force the subscription to be established before returning, so a
	// publish issued right after Join is not lost.
	if _, err := pubsub.Receive(context.Background()); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	sub := &redisSubscription{
		pubsub: pubsub,
		events: make(chan event.BroadcastEvent, b.bufferSize),
	}
	go func() {
		defer close(sub.events)
		for msg := range pubsub.Channel() {
			evt, err := event.Unmarshal(topicFromChannel(msg.Channel), []byte(msg.Payload))
			if err != nil {
				b.log.Warn("Dropping undecodable bus frame",
					"channel", msg.Channel, "error", err)
				continue
			}
			select {
			case sub.events <- evt:
			default:
				b.log.Warn("Subscriber buffer full, dropping event",
					"channel", msg.Channel)
			}
		}
	}()
	return sub, nil
}

func (b *RedisBus) Close() error {
	return b.client.Close()
}

type redisSubscription struct {
	pubsub *redis.PubSub
	events chan event.BroadcastEvent
	once   sync.Once
	err    error
}

func (s *redisSubscription) Events() <-chan event.BroadcastEvent {
	return s.events
}

func (s *redisSubscription) Close() error {
	s.once.Do(func() {
		s.err = s.pubsub.Close()
	})
	return s.err
}
