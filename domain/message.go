// Package domain contains core concepts of the chat gateway.
// This file defines Message records and their rules.
// A message's conversation and sender are immutable after creation.
package domain

import (
	"github.com/google/uuid"
	"time"
)

// Message represents a persisted chat message.
//
// IsRead is a single flag shared by every non-sender participant: in a
// group conversation, one reader marks the message read for everyone.
type Message struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	SenderID       string
	Content        string
	CreatedAt      time.Time
	IsRead         bool
}
