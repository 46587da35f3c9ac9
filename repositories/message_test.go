package repositories

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"whisper-gateway/domain"
	"whisper-gateway/errors"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newMessage(conversationID uuid.UUID, sender, content string, at time.Time) domain.Message {
	return domain.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       sender,
		Content:        content,
		CreatedAt:      at,
	}
}

func Test_Store_And_List_Newest_First(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default(), nil)
	ctx := context.Background()
	conversationID := uuid.New()
	at := time.Now().UTC()

	// Given three messages written out of order
	stored := []domain.Message{
		newMessage(conversationID, "alice", "first", at),
		newMessage(conversationID, "bob", "third", at.Add(2*time.Minute)),
		newMessage(conversationID, "clara", "second", at.Add(1*time.Minute)),
	}
	for _, message := range stored {
		req.NoError(repository.Store(ctx, message))
	}

	// When listing the conversation
	messages, _, err := repository.List(ctx, conversationID, nil)

	// Then they come back newest first
	req.NoError(err)
	req.Len(messages, 3)
	contents := lo.Map(messages, func(m domain.Message, _ int) string { return m.Content })
	req.Equal([]string{"third", "second", "first"}, contents)
}

func Test_List_Is_Scoped_To_Conversation(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default(), nil)
	ctx := context.Background()
	first := uuid.New()
	second := uuid.New()
	at := time.Now().UTC()

	req.NoError(repository.Store(ctx, newMessage(first, "alice", "mine", at)))
	req.NoError(repository.Store(ctx, newMessage(second, "bob", "theirs", at)))

	messages, _, err := repository.List(ctx, first, nil)
	req.NoError(err)
	req.Len(messages, 1)
	req.Equal("mine", messages[0].Content)
}

func Test_List_Limit_And_Cursor(t *testing.T) {
	req := require.New(t)
	limit := 2
	repository := NewMessageRepository(openTestDB(t), slog.Default(), &limit)
	ctx := context.Background()
	conversationID := uuid.New()
	at := time.Now().UTC()

	for i, content := range []string{"one", "two", "three", "four", "five"} {
		message := newMessage(conversationID, "alice", content, at.Add(time.Duration(i)*time.Minute))
		req.NoError(repository.Store(ctx, message))
	}

	// First page: the two newest
	page, cursor, err := repository.List(ctx, conversationID, nil)
	req.NoError(err)
	req.Len(page, 2)
	req.Equal("five", page[0].Content)
	req.Equal("four", page[1].Content)
	req.NotNil(cursor)

	// Second page resumes right after the cursor
	page, cursor, err = repository.List(ctx, conversationID, cursor)
	req.NoError(err)
	req.Len(page, 2)
	req.Equal("three", page[0].Content)
	req.Equal("two", page[1].Content)

	// Last page holds the remainder
	page, _, err = repository.List(ctx, conversationID, cursor)
	req.NoError(err)
	req.Len(page, 1)
	req.Equal("one", page[0].Content)
}

func Test_List_Empty_Conversation(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default(), nil)

	messages, _, err := repository.List(context.Background(), uuid.New(), nil)
	req.NoError(err)
	req.Empty(messages)
}

func Test_MarkRead_Transitions_Once(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default(), nil)
	ctx := context.Background()
	message := newMessage(uuid.New(), "alice", "hello", time.Now().UTC())
	req.NoError(repository.Store(ctx, message))

	// First reader flips the shared flag
	marked, err := repository.MarkRead(ctx, message.ID, "bob")
	req.NoError(err)
	req.True(marked)

	// A later reader finds it already read
	marked, err = repository.MarkRead(ctx, message.ID, "clara")
	req.NoError(err)
	req.False(marked)

	messages, _, err := repository.List(ctx, message.ConversationID, nil)
	req.NoError(err)
	req.Len(messages, 1)
	req.True(messages[0].IsRead)
}

func Test_MarkRead_Ignores_Sender(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default(), nil)
	ctx := context.Background()
	message := newMessage(uuid.New(), "alice", "hello", time.Now().UTC())
	req.NoError(repository.Store(ctx, message))

	marked, err := repository.MarkRead(ctx, message.ID, "alice")
	req.NoError(err)
	req.False(marked)

	messages, _, err := repository.List(ctx, message.ConversationID, nil)
	req.NoError(err)
	req.False(messages[0].IsRead)
}

func Test_MarkRead_Unknown_Message(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default(), nil)

	_, err := repository.MarkRead(context.Background(), uuid.New(), "bob")
	req.ErrorIs(err, errors.ErrMessageNotFound)
}
