package event

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"whisper-gateway/domain"
	"whisper-gateway/errors"
)

func TestMarshal_ChatMessage_Wire_Format(t *testing.T) {
	req := require.New(t)
	conversationID := uuid.New()
	messageID := uuid.New()
	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	data, err := Marshal(ChatMessage{
		ConversationID: conversationID,
		MessageID:      messageID,
		UserID:         "u1",
		Username:       "alice",
		Content:        "hi",
		At:             at,
	})
	req.NoError(err)

	var decoded map[string]any
	req.NoError(json.Unmarshal(data, &decoded))
	req.Equal("chat_message", decoded["type"])
	req.Equal("hi", decoded["message"])
	req.Equal("u1", decoded["user_id"])
	req.Equal("alice", decoded["username"])
	req.Equal(messageID.String(), decoded["message_id"])
	req.Equal(at.Format(time.RFC3339Nano), decoded["timestamp"])
	// The frame never leaks fields of other event types
	req.NotContains(decoded, "status")
	req.NotContains(decoded, "is_typing")
}

func TestMarshal_Typing_Includes_False(t *testing.T) {
	req := require.New(t)

	data, err := Marshal(Typing{ConversationID: uuid.New(), UserID: "u1", Username: "alice", IsTyping: false})
	req.NoError(err)

	// is_typing carries an explicit false, it is not elided
	var decoded map[string]any
	req.NoError(json.Unmarshal(data, &decoded))
	req.Equal("typing", decoded["type"])
	req.Equal(false, decoded["is_typing"])
}

func TestUnmarshal_Restores_Conversation_From_Topic(t *testing.T) {
	req := require.New(t)
	original := ChatMessage{
		ConversationID: uuid.New(),
		MessageID:      uuid.New(),
		UserID:         "u1",
		Username:       "alice",
		Content:        "hi",
		At:             time.Now().UTC().Truncate(time.Millisecond),
	}

	data, err := Marshal(original)
	req.NoError(err)
	decoded, err := Unmarshal(original.Topic(), data)
	req.NoError(err)

	req.Equal(original, decoded)
}

func TestUnmarshal_UserStatus_On_Roster(t *testing.T) {
	req := require.New(t)
	original := UserStatus{UserID: "u1", Username: "alice", Status: StatusOffline}

	data, err := Marshal(original)
	req.NoError(err)
	decoded, err := Unmarshal(domain.PresenceTopic, data)
	req.NoError(err)

	req.Equal(original, decoded)
}

func TestUnmarshal_Unknown_Type(t *testing.T) {
	req := require.New(t)

	_, err := Unmarshal(domain.PresenceTopic, []byte(`{"type":"presence_ping"}`))

	req.ErrorIs(err, errors.ErrUnknownEventType)
}

func TestErrorFrame(t *testing.T) {
	req := require.New(t)

	var decoded map[string]any
	req.NoError(json.Unmarshal(ErrorFrame("Failed to save message"), &decoded))
	req.Equal("error", decoded["type"])
	req.Equal("Failed to save message", decoded["message"])
}
