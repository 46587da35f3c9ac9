// Package domain contains core concepts of the chat gateway.
// This file defines Conversation entities and topic identifiers.
// No transport, storage, or UI logic should be added here.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"whisper-gateway/errors"
)

// TopicID is the broadcast scope a session joins: one per conversation,
// plus the fixed presence roster.
type TopicID string

// PresenceTopic is the well-known roster topic shared by every
// authenticated session, regardless of conversation membership.
const PresenceTopic TopicID = "online_status"

const conversationTopicPrefix = "chat_"

// ConversationTopic returns the topic a conversation's events are
// broadcast on.
func ConversationTopic(id uuid.UUID) TopicID {
	return TopicID(conversationTopicPrefix + id.String())
}

// ParseConversationTopic recovers the conversation identity from a topic.
// The presence roster and malformed topics yield an error.
func ParseConversationTopic(topic TopicID) (uuid.UUID, error) {
	raw, found := strings.CutPrefix(string(topic), conversationTopicPrefix)
	if !found {
		return uuid.Nil, fmt.Errorf("%w: %s", errors.ErrNotConversationTopic, topic)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", errors.ErrNotConversationTopic, err)
	}
	return id, nil
}

// Conversation represents a durable exchange between two or more users.
// Direct conversations have exactly two participants; anything larger is
// a group.
type Conversation struct {
	ID           uuid.UUID
	Name         string
	Participants []string
	IsGroup      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewConversation builds a usable conversation. Duplicate participants
// collapse to one entry and fewer than two distinct participants is an
// error. The group flag is forced on above two participants.
func NewConversation(name string, participants []string, isGroup bool) (Conversation, error) {
	unique := lo.Uniq(participants)
	if len(unique) < 2 {
		return Conversation{}, errors.ErrTooFewParticipants
	}
	now := time.Now().UTC()
	return Conversation{
		ID:           uuid.New(),
		Name:         name,
		Participants: unique,
		IsGroup:      isGroup || len(unique) > 2,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Topic is the broadcast scope of this conversation.
func (c Conversation) Topic() TopicID {
	return ConversationTopic(c.ID)
}

// HasParticipant reports membership of a user in the conversation.
func (c Conversation) HasParticipant(userID string) bool {
	return lo.Contains(c.Participants, userID)
}
