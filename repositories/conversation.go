//go:generate go run go.uber.org/mock/mockgen -source=conversation.go -destination=../mocks/mock_conversation_repository.go -package=mocks
package repositories

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"whisper-gateway/domain"
	"whisper-gateway/errors"
)

type IConversationRepository interface {
	Create(ctx context.Context, name string, participants []string, isGroup bool) (domain.Conversation, error)
	Get(ctx context.Context, id uuid.UUID) (domain.Conversation, error)
	IsParticipant(ctx context.Context, id uuid.UUID, userID string) (bool, error)
	Touch(ctx context.Context, id uuid.UUID, at time.Time) error
}

// diskConversation is the stored shape of a conversation record.
type diskConversation struct {
	ID           string    `json:"id"`
	Name         string    `json:"name,omitempty"`
	Participants []string  `json:"participants"`
	IsGroup      bool      `json:"is_group"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type ConversationRepository struct {
	db *badger.DB
}

func NewConversationRepository(db *badger.DB) IConversationRepository {
	return &ConversationRepository{db: db}
}

func conversationKey(id uuid.UUID) []byte {
	return []byte("conversation:" + id.String())
}

// Create validates the participant set through the domain constructor
// and persists the resulting conversation.
func (c ConversationRepository) Create(ctx context.Context, name string,
	participants []string, isGroup bool) (domain.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return domain.Conversation{}, err
	}
	conversation, err := domain.NewConversation(name, participants, isGroup)
	if err != nil {
		return domain.Conversation{}, err
	}
	data, err := json.Marshal(fromConversation(conversation))
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("marshal failed: %w", err)
	}
	err = c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(conversationKey(conversation.ID), data)
	})
	return conversation, err
}

func (c ConversationRepository) Get(ctx context.Context, id uuid.UUID) (domain.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return domain.Conversation{}, err
	}
	var disk diskConversation
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(conversationKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &disk)
		})
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.Conversation{}, errors.ErrConversationNotFound
	}
	if err != nil {
		return domain.Conversation{}, err
	}
	return toConversation(disk)
}

// IsParticipant is the membership check the session handshake relies
// on. A missing conversation reports false with ErrConversationNotFound
// so callers can log the distinction while rejecting identically.
func (c ConversationRepository) IsParticipant(ctx context.Context, id uuid.UUID, userID string) (bool, error) {
	conversation, err := c.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return conversation.HasParticipant(userID), nil
}

// Touch advances the conversation's updated_at. Called for every new
// message so that updated_at monotonically follows the latest write.
func (c ConversationRepository) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := c.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(conversationKey(id))
		if err != nil {
			return err
		}
		var disk diskConversation
		if err = item.Value(func(val []byte) error {
			return json.Unmarshal(val, &disk)
		}); err != nil {
			return err
		}
		if at.After(disk.UpdatedAt) {
			disk.UpdatedAt = at.UTC()
		}
		data, err := json.Marshal(disk)
		if err != nil {
			return err
		}
		return txn.Set(conversationKey(id), data)
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return errors.ErrConversationNotFound
	}
	return err
}

func fromConversation(conversation domain.Conversation) diskConversation {
	return diskConversation{
		ID:           conversation.ID.String(),
		Name:         conversation.Name,
		Participants: conversation.Participants,
		IsGroup:      conversation.IsGroup,
		CreatedAt:    conversation.CreatedAt,
		UpdatedAt:    conversation.UpdatedAt,
	}
}

func toConversation(disk diskConversation) (domain.Conversation, error) {
	id, err := uuid.Parse(disk.ID)
	if err != nil {
		return domain.Conversation{}, err
	}
	return domain.Conversation{
		ID:           id,
		Name:         disk.Name,
		Participants: disk.Participants,
		IsGroup:      disk.IsGroup,
		CreatedAt:    disk.CreatedAt,
		UpdatedAt:    disk.UpdatedAt,
	}, nil
}
