package auth

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"whisper-gateway/errors"
	"whisper-gateway/repositories"
)

type fakeUserRepository struct {
	users map[string]repositories.User
	delay time.Duration
}

func (f fakeUserRepository) Create(context.Context, string) (repositories.User, error) {
	panic("not used")
}

func (f fakeUserRepository) Get(ctx context.Context, id string) (repositories.User, error) {
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return repositories.User{}, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	user, ok := f.users[id]
	if !ok {
		return repositories.User{}, errors.ErrUserNotFound
	}
	return user, nil
}

func TestAuthenticator_Resolves_Principal(t *testing.T) {
	req := require.New(t)
	tokens := NewTokens([]byte("unit-test-secret"), time.Hour)
	users := fakeUserRepository{users: map[string]repositories.User{
		"user-42": {ID: "user-42", Username: "alice"},
	}}
	authenticator := NewAuthenticator(tokens, users, time.Second, slog.Default())

	signed, err := tokens.Generate("user-42")
	req.NoError(err)

	principal, err := authenticator.Authenticate(context.Background(), signed)
	req.NoError(err)
	req.False(principal.IsAnonymous())
	req.Equal("alice", principal.Username)
}

func TestAuthenticator_Missing_Credential_Is_Anonymous(t *testing.T) {
	req := require.New(t)
	authenticator := NewAuthenticator(NewTokens([]byte("s"), time.Hour),
		fakeUserRepository{}, time.Second, slog.Default())

	principal, err := authenticator.Authenticate(context.Background(), "")

	req.ErrorIs(err, errors.ErrMissingToken)
	req.True(principal.IsAnonymous())
}

func TestAuthenticator_Unknown_Subject_Is_Anonymous(t *testing.T) {
	req := require.New(t)
	tokens := NewTokens([]byte("unit-test-secret"), time.Hour)
	authenticator := NewAuthenticator(tokens, fakeUserRepository{}, time.Second, slog.Default())

	signed, err := tokens.Generate("ghost")
	req.NoError(err)

	principal, err := authenticator.Authenticate(context.Background(), signed)

	req.ErrorIs(err, errors.ErrUnknownSubject)
	req.True(principal.IsAnonymous())
}

func TestAuthenticator_Lookup_Timeout_Is_Anonymous(t *testing.T) {
	req := require.New(t)
	tokens := NewTokens([]byte("unit-test-secret"), time.Hour)
	slowUsers := fakeUserRepository{
		users: map[string]repositories.User{"user-42": {ID: "user-42", Username: "alice"}},
		delay: 500 * time.Millisecond,
	}
	authenticator := NewAuthenticator(tokens, slowUsers, 20*time.Millisecond, slog.Default())

	signed, err := tokens.Generate("user-42")
	req.NoError(err)

	// A lookup that cannot complete within the bound resolves to
	// anonymous instead of stalling the accept path
	principal, err := authenticator.Authenticate(context.Background(), signed)

	req.ErrorIs(err, errors.ErrUnknownSubject)
	req.True(principal.IsAnonymous())
}

func TestAuthenticator_Malformed_Credential_Is_Anonymous(t *testing.T) {
	req := require.New(t)
	authenticator := NewAuthenticator(NewTokens([]byte("s"), time.Hour),
		fakeUserRepository{}, time.Second, slog.Default())

	principal, err := authenticator.Authenticate(context.Background(), "not-a-jwt")

	req.ErrorIs(err, errors.ErrMalformedToken)
	req.True(principal.IsAnonymous())
}
