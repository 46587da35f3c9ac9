package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"whisper-gateway/errors"
)

func Test_Create_And_Get_User(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))
	ctx := context.Background()

	created, err := repository.Create(ctx, "alice")
	req.NoError(err)
	req.NotEmpty(created.ID)

	fetched, err := repository.Get(ctx, created.ID)
	req.NoError(err)
	req.Equal(created.ID, fetched.ID)
	req.Equal("alice", fetched.Username)
}

func Test_Get_Unknown_User(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	_, err := repository.Get(context.Background(), "nobody")
	req.ErrorIs(err, errors.ErrUserNotFound)
}
