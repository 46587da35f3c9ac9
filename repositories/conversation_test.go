package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"whisper-gateway/errors"
)

func Test_Create_And_Get_Conversation(t *testing.T) {
	req := require.New(t)
	repository := NewConversationRepository(openTestDB(t))
	ctx := context.Background()

	created, err := repository.Create(ctx, "book club", []string{"alice", "bob", "clara"}, true)
	req.NoError(err)

	fetched, err := repository.Get(ctx, created.ID)
	req.NoError(err)
	req.Equal(created.ID, fetched.ID)
	req.Equal("book club", fetched.Name)
	req.ElementsMatch([]string{"alice", "bob", "clara"}, fetched.Participants)
	req.True(fetched.IsGroup)
}

func Test_Create_Rejects_Single_Participant(t *testing.T) {
	req := require.New(t)
	repository := NewConversationRepository(openTestDB(t))

	_, err := repository.Create(context.Background(), "", []string{"alice"}, false)
	req.ErrorIs(err, errors.ErrTooFewParticipants)
}

func Test_Get_Unknown_Conversation(t *testing.T) {
	req := require.New(t)
	repository := NewConversationRepository(openTestDB(t))

	_, err := repository.Get(context.Background(), uuid.New())
	req.ErrorIs(err, errors.ErrConversationNotFound)
}

func Test_IsParticipant(t *testing.T) {
	req := require.New(t)
	repository := NewConversationRepository(openTestDB(t))
	ctx := context.Background()

	created, err := repository.Create(ctx, "", []string{"alice", "bob"}, false)
	req.NoError(err)

	ok, err := repository.IsParticipant(ctx, created.ID, "alice")
	req.NoError(err)
	req.True(ok)

	ok, err = repository.IsParticipant(ctx, created.ID, "mallory")
	req.NoError(err)
	req.False(ok)

	ok, err = repository.IsParticipant(ctx, uuid.New(), "alice")
	req.ErrorIs(err, errors.ErrConversationNotFound)
	req.False(ok)
}

func Test_Touch_Advances_UpdatedAt(t *testing.T) {
	req := require.New(t)
	repository := NewConversationRepository(openTestDB(t))
	ctx := context.Background()

	created, err := repository.Create(ctx, "", []string{"alice", "bob"}, false)
	req.NoError(err)

	later := created.UpdatedAt.Add(time.Hour)
	req.NoError(repository.Touch(ctx, created.ID, later))

	fetched, err := repository.Get(ctx, created.ID)
	req.NoError(err)
	req.True(fetched.UpdatedAt.Equal(later))

	// A stale touch never moves the timestamp backwards
	req.NoError(repository.Touch(ctx, created.ID, later.Add(-30*time.Minute)))
	fetched, err = repository.Get(ctx, created.ID)
	req.NoError(err)
	req.True(fetched.UpdatedAt.Equal(later))
}

func Test_Touch_Unknown_Conversation(t *testing.T) {
	req := require.New(t)
	repository := NewConversationRepository(openTestDB(t))

	err := repository.Touch(context.Background(), uuid.New(), time.Now())
	req.ErrorIs(err, errors.ErrConversationNotFound)
}
