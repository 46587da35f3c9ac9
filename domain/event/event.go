// Package event defines the broadcast events fanned out to live
// sessions, together with their JSON wire codec. The same encoding is
// used for outbound frames and for the networked bus envelope.
package event

import (
	"time"

	"github.com/google/uuid"

	"whisper-gateway/domain"
)

// BroadcastEvent is the tagged union delivered to every session joined
// to a topic.
type BroadcastEvent interface {
	Topic() domain.TopicID
}

// Presence statuses carried by UserStatus events.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// ChatMessage is the canonical event published for every successfully
// persisted message, regardless of which entry point created it.
type ChatMessage struct {
	ConversationID uuid.UUID
	MessageID      uuid.UUID
	UserID         string
	Username       string
	Content        string
	At             time.Time
}

func (e ChatMessage) Topic() domain.TopicID {
	return domain.ConversationTopic(e.ConversationID)
}

// UserJoined is the per-conversation notice that a session joined the
// topic. It is distinct from the global presence roster.
type UserJoined struct {
	ConversationID uuid.UUID
	UserID         string
	Username       string
}

func (e UserJoined) Topic() domain.TopicID {
	return domain.ConversationTopic(e.ConversationID)
}

// UserLeft is the per-conversation notice that a session left the topic.
type UserLeft struct {
	ConversationID uuid.UUID
	UserID         string
	Username       string
}

func (e UserLeft) Topic() domain.TopicID {
	return domain.ConversationTopic(e.ConversationID)
}

// Typing is republished immediately to the topic and never touches
// storage.
type Typing struct {
	ConversationID uuid.UUID
	UserID         string
	Username       string
	IsTyping       bool
}

func (e Typing) Topic() domain.TopicID {
	return domain.ConversationTopic(e.ConversationID)
}

// UserStatus is an online/offline transition on the presence roster.
// It exists only as a wire message and is never stored.
type UserStatus struct {
	UserID   string
	Username string
	Status   string
}

func (e UserStatus) Topic() domain.TopicID {
	return domain.PresenceTopic
}
