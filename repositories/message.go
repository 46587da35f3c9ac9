//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"whisper-gateway/domain"
	"whisper-gateway/errors"
)

type IMessageRepository interface {
	Store(ctx context.Context, message domain.Message) error
	List(ctx context.Context, conversationID uuid.UUID, cursor *string) ([]domain.Message, *string, error)
	MarkRead(ctx context.Context, messageID uuid.UUID, readerID string) (bool, error)
}

// diskMessage is the stored shape of a message record.
type diskMessage struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Content        string    `json:"content"`
	At             time.Time `json:"at"`
	IsRead         bool      `json:"is_read"`
}

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) MessageRepository {
	return MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

// messageKey is formatted as "msg:{conversation_id}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding
//     (lexicographical order).
//  2. Prevent data loss by using UUID as a collision disconnector if two
//     messages arrive at the same nanosecond.
func messageKey(message domain.Message) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s",
		message.ConversationID,
		message.CreatedAt.UnixNano(),
		message.ID,
	))
}

// refKey maps a message ID back to its primary key, for point updates
// such as the read flag.
func refKey(messageID uuid.UUID) []byte {
	return []byte("msgref:" + messageID.String())
}

// Store persists a message under its chronological key, plus a
// reference entry keyed by message ID.
func (m MessageRepository) Store(ctx context.Context, message domain.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(fromMessage(message))
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	key := messageKey(message)
	return m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, data); err != nil {
			return err
		}
		return txn.Set(refKey(message.ID), key)
	})
}

// List retrieves messages for a conversation using a reverse prefix
// scan, newest first. Thanks to the padded timestamp in the key the scan
// is naturally ordered by time. The returned cursor resumes the scan on
// the next call; collection stops once limitMessages is reached.
func (m MessageRepository) List(ctx context.Context, conversationID uuid.UUID, cursor *string) ([]domain.Message, *string, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	var diskMessages []diskMessage
	var lastKey string
	err := m.db.View(func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf("msg:%s:", conversationID)
		prefix := []byte(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Seek past the newest possible timestamp, then walk
			// backwards through the prefix.
			seekKey = append(prefix, []byte("9999999999999999999")...)
		default:
			seekKey = append(prefix, []byte(*cursor)...)
		}

		it.Seek(seekKey)

		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(diskMessages) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", *m.limitMessages))
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[len(prefix):])
			err := item.Value(func(value []byte) error {
				var disk diskMessage
				if err := json.Unmarshal(value, &disk); err != nil {
					return err
				}
				diskMessages = append(diskMessages, disk)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	messages, err := toMessages(diskMessages)
	return messages, &lastKey, err
}

// MarkRead flips the shared read flag. It reports true only when the
// reader is not the sender and the flag actually transitioned; every
// participant shares the single flag.
func (m MessageRepository) MarkRead(ctx context.Context, messageID uuid.UUID, readerID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	marked := false
	err := m.db.Update(func(txn *badger.Txn) error {
		ref, err := txn.Get(refKey(messageID))
		if err != nil {
			return err
		}
		var key []byte
		if err = ref.Value(func(val []byte) error {
			key = append([]byte(nil), val...)
			return nil
		}); err != nil {
			return err
		}

		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		var disk diskMessage
		if err = item.Value(func(val []byte) error {
			return json.Unmarshal(val, &disk)
		}); err != nil {
			return err
		}

		if disk.SenderID == readerID || disk.IsRead {
			return nil
		}
		disk.IsRead = true
		marked = true
		data, err := json.Marshal(disk)
		if err != nil {
			return err
		}
		return txn.Set(key, data)
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return false, errors.ErrMessageNotFound
	}
	return marked, err
}

func fromMessage(message domain.Message) diskMessage {
	return diskMessage{
		ID:             message.ID.String(),
		ConversationID: message.ConversationID.String(),
		SenderID:       message.SenderID,
		Content:        message.Content,
		At:             message.CreatedAt.UTC(),
		IsRead:         message.IsRead,
	}
}

func toMessages(disks []diskMessage) ([]domain.Message, error) {
	var firstErr error
	messages := lo.FilterMap(disks, func(disk diskMessage, _ int) (domain.Message, bool) {
		message, err := toMessage(disk)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return message, err == nil
	})
	return messages, firstErr
}

func toMessage(disk diskMessage) (domain.Message, error) {
	id, err := uuid.Parse(disk.ID)
	if err != nil {
		return domain.Message{}, err
	}
	conversationID, err := uuid.Parse(disk.ConversationID)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:             id,
		ConversationID: conversationID,
		SenderID:       disk.SenderID,
		Content:        disk.Content,
		CreatedAt:      disk.At,
		IsRead:         disk.IsRead,
	}, nil
}
