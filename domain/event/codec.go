package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"whisper-gateway/domain"
	"whisper-gateway/errors"
)

// Frame type tags. Inbound connections send chat_message and typing;
// everything else is outbound only.
const (
	TypeChatMessage = "chat_message"
	TypeUserJoin    = "user_join"
	TypeUserLeave   = "user_leave"
	TypeTyping      = "typing"
	TypeUserStatus  = "user_status"
	TypeError       = "error"
)

// frame is the single JSON shape every event marshals into. Optional
// fields are omitted so each frame carries exactly the fields its type
// defines.
type frame struct {
	Type      string `json:"type"`
	Message   string `json:"message,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	Username  string `json:"username,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	IsTyping  *bool  `json:"is_typing,omitempty"`
	Status    string `json:"status,omitempty"`
}

// Marshal encodes an event into its outbound wire frame.
func Marshal(e BroadcastEvent) ([]byte, error) {
	var f frame
	switch evt := e.(type) {
	case ChatMessage:
		f = frame{
			Type:      TypeChatMessage,
			Message:   evt.Content,
			UserID:    evt.UserID,
			Username:  evt.Username,
			MessageID: evt.MessageID.String(),
			Timestamp: evt.At.UTC().Format(time.RFC3339Nano),
		}
	case UserJoined:
		f = frame{Type: TypeUserJoin, UserID: evt.UserID, Username: evt.Username}
	case UserLeft:
		f = frame{Type: TypeUserLeave, UserID: evt.UserID, Username: evt.Username}
	case Typing:
		f = frame{Type: TypeTyping, UserID: evt.UserID, Username: evt.Username, IsTyping: lo.ToPtr(evt.IsTyping)}
	case UserStatus:
		f = frame{Type: TypeUserStatus, UserID: evt.UserID, Username: evt.Username, Status: evt.Status}
	default:
		return nil, fmt.Errorf("%w: %T", errors.ErrUnknownEventType, e)
	}
	return json.Marshal(f)
}

// Unmarshal decodes a wire frame received on a topic back into a typed
// event. The topic supplies the conversation identity the frame itself
// does not carry.
func Unmarshal(topic domain.TopicID, data []byte) (BroadcastEvent, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}

	var conversationID uuid.UUID
	if topic != domain.PresenceTopic {
		id, err := domain.ParseConversationTopic(topic)
		if err != nil {
			return nil, err
		}
		conversationID = id
	}

	switch f.Type {
	case TypeChatMessage:
		messageID, err := uuid.Parse(f.MessageID)
		if err != nil {
			return nil, fmt.Errorf("invalid message_id: %w", err)
		}
		at, err := time.Parse(time.RFC3339Nano, f.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp: %w", err)
		}
		return ChatMessage{
			ConversationID: conversationID,
			MessageID:      messageID,
			UserID:         f.UserID,
			Username:       f.Username,
			Content:        f.Message,
			At:             at,
		}, nil
	case TypeUserJoin:
		return UserJoined{ConversationID: conversationID, UserID: f.UserID, Username: f.Username}, nil
	case TypeUserLeave:
		return UserLeft{ConversationID: conversationID, UserID: f.UserID, Username: f.Username}, nil
	case TypeTyping:
		return Typing{
			ConversationID: conversationID,
			UserID:         f.UserID,
			Username:       f.Username,
			IsTyping:       f.IsTyping != nil && *f.IsTyping,
		}, nil
	case TypeUserStatus:
		return UserStatus{UserID: f.UserID, Username: f.Username, Status: f.Status}, nil
	default:
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownEventType, f.Type)
	}
}

// ErrorFrame is sent back to the originating connection only, never
// broadcast.
func ErrorFrame(message string) []byte {
	data, _ := json.Marshal(frame{Type: TypeError, Message: message})
	return data
}
