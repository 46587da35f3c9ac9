package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"whisper-gateway/domain"
	"whisper-gateway/errors"
	"whisper-gateway/repositories"
)

// Authenticator resolves a bearer credential presented at connection
// time to a principal. Every failure path, including a storage lookup
// that errors or times out, resolves to domain.Anonymous instead of
// leaking into the connection layer; the returned error only carries
// the rejection reason for logging.
type Authenticator struct {
	tokens  *Tokens
	users   repositories.IUserRepository
	timeout time.Duration
	log     *slog.Logger
}

func NewAuthenticator(tokens *Tokens, users repositories.IUserRepository,
	timeout time.Duration, log *slog.Logger) *Authenticator {
	return &Authenticator{tokens: tokens, users: users, timeout: timeout, log: log}
}

// Authenticate validates the credential and loads the subject's user
// record within a bounded timeout. The principal is domain.Anonymous
// exactly when the error is non-nil.
func (a *Authenticator) Authenticate(ctx context.Context, credential string) (domain.Principal, error) {
	if credential == "" {
		return domain.Anonymous, errors.ErrMissingToken
	}

	claims, err := a.tokens.Validate(credential)
	if err != nil {
		return domain.Anonymous, err
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	user, err := a.users.Get(ctx, claims.UserID)
	if err != nil {
		a.log.Warn("Token subject could not be resolved",
			"user_id", claims.UserID, "error", err)
		return domain.Anonymous, fmt.Errorf("%w: %v", errors.ErrUnknownSubject, err)
	}

	return domain.Principal{ID: user.ID, Username: user.Username}, nil
}
