package errors

import "fmt"

var (
	// Authentication: every one of these resolves to an anonymous
	// principal, never to a dropped accept loop.
	ErrMissingToken   = fmt.Errorf("missing credential token")
	ErrMalformedToken = fmt.Errorf("malformed credential token")
	ErrTokenExpired   = fmt.Errorf("credential token expired")
	ErrUnknownSubject = fmt.Errorf("unknown token subject")

	// Authorization and storage.
	ErrNotParticipant       = fmt.Errorf("user is not a participant")
	ErrConversationNotFound = fmt.Errorf("conversation not found")
	ErrMessageNotFound      = fmt.Errorf("message not found")
	ErrUserNotFound         = fmt.Errorf("user not found")
	ErrTooFewParticipants   = fmt.Errorf("a conversation needs at least two participants")
	ErrEmptyMessage         = fmt.Errorf("message content is empty")

	ErrNotConversationTopic = fmt.Errorf("not a conversation topic")
	ErrBusClosed            = fmt.Errorf("broadcast bus is closed")
	ErrUnknownEventType     = fmt.Errorf("unknown broadcast event type")

	ErrWorkerPanic = fmt.Errorf("worker panic")
)
