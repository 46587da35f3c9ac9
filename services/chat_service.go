//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"whisper-gateway/contract"
	"whisper-gateway/domain"
	"whisper-gateway/domain/event"
	"whisper-gateway/errors"
	"whisper-gateway/repositories"
)

type IChatService interface {
	CreateMessage(ctx context.Context, conversationID uuid.UUID, senderID, content string) (domain.Message, error)
	History(ctx context.Context, conversationID uuid.UUID, cursor *string) ([]domain.Message, *string, error)
	MarkRead(ctx context.Context, messageID uuid.UUID, readerID string) (bool, error)
}

// ChatService is the single writer for chat messages. Persisting a
// message and publishing its canonical broadcast event live in the same
// function, so a message created through any entry point — live
// session, administrative tooling, background job — always reaches live
// sessions. No other component publishes chat_message events.
type ChatService struct {
	conversations repositories.IConversationRepository
	messages      repositories.IMessageRepository
	users         repositories.IUserRepository
	bus           contract.IBus
	log           *slog.Logger
}

func NewChatService(conversations repositories.IConversationRepository,
	messages repositories.IMessageRepository, users repositories.IUserRepository,
	bus contract.IBus, log *slog.Logger) *ChatService {
	return &ChatService{
		conversations: conversations,
		messages:      messages,
		users:         users,
		bus:           bus,
		log:           log,
	}
}

// CreateMessage validates the sender against the conversation, persists
// the message, advances the conversation's updated_at, and publishes
// the canonical chat_message event to the conversation's topic.
func (s *ChatService) CreateMessage(ctx context.Context, conversationID uuid.UUID,
	senderID, content string) (domain.Message, error) {
	if strings.TrimSpace(content) == "" {
		return domain.Message{}, errors.ErrEmptyMessage
	}

	conversation, err := s.conversations.Get(ctx, conversationID)
	if err != nil {
		return domain.Message{}, err
	}
	if !conversation.HasParticipant(senderID) {
		return domain.Message{}, fmt.Errorf("%w: %s in %s", errors.ErrNotParticipant, senderID, conversationID)
	}

	sender, err := s.users.Get(ctx, senderID)
	if err != nil {
		return domain.Message{}, err
	}

	message := domain.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}
	if err = s.messages.Store(ctx, message); err != nil {
		return domain.Message{}, err
	}
	if err = s.conversations.Touch(ctx, conversationID, message.CreatedAt); err != nil {
		s.log.Error("Failed to advance conversation updated_at",
			"conversation_id", conversationID, "error", err)
	}

	evt := event.ChatMessage{
		ConversationID: conversationID,
		MessageID:      message.ID,
		UserID:         senderID,
		Username:       sender.Username,
		Content:        message.Content,
		At:             message.CreatedAt,
	}
	// The message is durable at this point; a publish failure is logged
	// rather than surfaced, and clients recover through history reads.
	if err = s.bus.Publish(ctx, conversation.Topic(), evt); err != nil {
		s.log.Error("Failed to publish chat_message event",
			"conversation_id", conversationID, "message_id", message.ID, "error", err)
	}

	return message, nil
}

// History pages through a conversation's messages, newest first.
func (s *ChatService) History(ctx context.Context, conversationID uuid.UUID,
	cursor *string) ([]domain.Message, *string, error) {
	return s.messages.List(ctx, conversationID, cursor)
}

// MarkRead flips the conversation-shared read flag of a message.
func (s *ChatService) MarkRead(ctx context.Context, messageID uuid.UUID, readerID string) (bool, error) {
	return s.messages.MarkRead(ctx, messageID, readerID)
}
