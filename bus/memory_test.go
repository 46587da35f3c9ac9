package bus

import (
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"whisper-gateway/domain"
	"whisper-gateway/domain/event"
	"whisper-gateway/errors"
)

func Test_Publish_Reaches_Topic_Subscribers(t *testing.T) {
	req := require.New(t)
	memoryBus := NewMemoryBus(slog.Default(), 8)
	defer memoryBus.Close()
	topic := domain.ConversationTopic(uuid.New())

	first, err := memoryBus.Subscribe(topic)
	req.NoError(err)
	second, err := memoryBus.Subscribe(topic)
	req.NoError(err)
	other, err := memoryBus.Subscribe(domain.PresenceTopic)
	req.NoError(err)

	evt := event.Typing{UserID: "alice", Username: "Alice", IsTyping: true}
	req.NoError(memoryBus.Publish(context.Background(), topic, evt))

	req.Equal(evt, <-first.Events())
	req.Equal(evt, <-second.Events())
	req.Empty(other.Events())
}

func Test_Publish_Preserves_Order(t *testing.T) {
	req := require.New(t)
	memoryBus := NewMemoryBus(slog.Default(), 8)
	defer memoryBus.Close()
	topic := domain.ConversationTopic(uuid.New())

	sub, err := memoryBus.Subscribe(topic)
	req.NoError(err)

	for _, userID := range []string{"a", "b", "c"} {
		req.NoError(memoryBus.Publish(context.Background(), topic,
			event.UserJoined{UserID: userID}))
	}

	for _, expected := range []string{"a", "b", "c"} {
		joined, ok := (<-sub.Events()).(event.UserJoined)
		req.True(ok)
		req.Equal(expected, joined.UserID)
	}
}

func Test_Full_Subscriber_Drops_Instead_Of_Stalling(t *testing.T) {
	req := require.New(t)
	memoryBus := NewMemoryBus(slog.Default(), 1)
	defer memoryBus.Close()
	topic := domain.ConversationTopic(uuid.New())

	sub, err := memoryBus.Subscribe(topic)
	req.NoError(err)

	// Second publish overflows the single-slot buffer and is dropped
	req.NoError(memoryBus.Publish(context.Background(), topic, event.UserJoined{UserID: "first"}))
	req.NoError(memoryBus.Publish(context.Background(), topic, event.UserJoined{UserID: "second"}))

	joined := (<-sub.Events()).(event.UserJoined)
	req.Equal("first", joined.UserID)
	req.Empty(sub.Events())
}

func Test_Subscription_Close_Stops_Delivery(t *testing.T) {
	req := require.New(t)
	memoryBus := NewMemoryBus(slog.Default(), 8)
	defer memoryBus.Close()
	topic := domain.ConversationTopic(uuid.New())

	sub, err := memoryBus.Subscribe(topic)
	req.NoError(err)
	req.NoError(sub.Close())
	req.NoError(sub.Close())

	_, open := <-sub.Events()
	req.False(open)
	req.NoError(memoryBus.Publish(context.Background(), topic, event.UserJoined{UserID: "late"}))
}

func Test_Closed_Bus_Rejects_Operations(t *testing.T) {
	req := require.New(t)
	memoryBus := NewMemoryBus(slog.Default(), 8)
	topic := domain.ConversationTopic(uuid.New())

	sub, err := memoryBus.Subscribe(topic)
	req.NoError(err)
	req.NoError(memoryBus.Close())

	_, open := <-sub.Events()
	req.False(open)

	err = memoryBus.Publish(context.Background(), topic, event.UserJoined{UserID: "x"})
	req.ErrorIs(err, errors.ErrBusClosed)

	_, err = memoryBus.Subscribe(topic)
	req.ErrorIs(err, errors.ErrBusClosed)
}
