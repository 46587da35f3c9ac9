// Package gateway accepts WebSocket connections, authenticates them,
// and drives the per-connection session state machine.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"whisper-gateway/contract"
	"whisper-gateway/domain"
	"whisper-gateway/domain/event"
	"whisper-gateway/services"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

var validate = validator.New()

// inboundFrame is the tagged union a client may send. The zero type
// defaults to chat_message, matching historical client behavior.
type inboundFrame struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	IsTyping bool   `json:"is_typing"`
}

// chatFrame carries the validation rules for an inbound chat_message.
type chatFrame struct {
	Message string `validate:"required,max=4096"`
}

// Session is the live runtime state of one accepted connection. It owns
// the socket, the authenticated principal, and the topics it joined;
// everything else holds non-owning references to it.
//
// Lifecycle: connecting → authenticating → (rejected|joined) → active →
// closing → closed. The handler covers the first three transitions;
// start() performs the join, and teardown runs exactly once regardless
// of which path detects the disconnect.
type Session struct {
	conn           *websocket.Conn
	principal      domain.Principal
	conversationID uuid.UUID // uuid.Nil for roster-only sessions
	topics         []domain.TopicID

	coordinator contract.ICoordinator
	chat        services.IChatService
	log         *slog.Logger

	send        chan []byte
	ctx         context.Context
	cancel      context.CancelFunc
	callTimeout time.Duration
	teardown    sync.Once
}

// newChatSession builds a session bound to one conversation topic plus
// the presence roster.
func newChatSession(conn *websocket.Conn, principal domain.Principal, conversationID uuid.UUID,
	coordinator contract.ICoordinator, chat services.IChatService,
	log *slog.Logger, sendBufferSize int, callTimeout time.Duration) *Session {
	s := newRosterSession(conn, principal, coordinator, chat, log, sendBufferSize, callTimeout)
	s.conversationID = conversationID
	s.topics = []domain.TopicID{domain.ConversationTopic(conversationID), domain.PresenceTopic}
	return s
}

// newRosterSession builds a session joined to the presence roster only.
func newRosterSession(conn *websocket.Conn, principal domain.Principal,
	coordinator contract.ICoordinator, chat services.IChatService,
	log *slog.Logger, sendBufferSize int, callTimeout time.Duration) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		conn:        conn,
		principal:   principal,
		topics:      []domain.TopicID{domain.PresenceTopic},
		coordinator: coordinator,
		chat:        chat,
		log:         log,
		send:        make(chan []byte, sendBufferSize),
		ctx:         ctx,
		cancel:      cancel,
		callTimeout: callTimeout,
	}
}

// start joins every topic, announces the arrival, and starts the pumps.
// The join notices are published after registration so the joining
// session receives its own echo, like any other member.
func (s *Session) start() error {
	for i, topic := range s.topics {
		if err := s.coordinator.Join(topic, s); err != nil {
			for _, joined := range s.topics[:i] {
				s.coordinator.Leave(joined, s)
			}
			return err
		}
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.callTimeout)
	defer cancel()
	if s.conversationID != uuid.Nil {
		s.publish(ctx, event.UserJoined{
			ConversationID: s.conversationID,
			UserID:         s.principal.ID,
			Username:       s.principal.Username,
		})
	}
	s.publish(ctx, event.UserStatus{
		UserID:   s.principal.ID,
		Username: s.principal.Username,
		Status:   event.StatusOnline,
	})

	go s.writePump()
	go s.readPump()
	return nil
}

// Consume implements contract.EventSink. It must never block the
// fan-out path: a session whose outbound queue is full is disconnected
// rather than allowed to starve delivery to other sessions.
func (s *Session) Consume(_ context.Context, e event.BroadcastEvent) error {
	payload, err := event.Marshal(e)
	if err != nil {
		return err
	}
	return s.enqueue(payload)
}

func (s *Session) enqueue(payload []byte) error {
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	case s.send <- payload:
		return nil
	default:
		s.log.Warn("Send queue full, disconnecting slow session",
			"user_id", s.principal.ID)
		go s.Close()
		return fmt.Errorf("send queue full for %s", s.principal.ID)
	}
}

// Close tears the session down exactly once: cancels in-flight
// call-outs, leaves every topic, publishes the departure notices, and
// closes the socket. Safe to call concurrently from any path that
// detects the disconnect.
func (s *Session) Close() {
	s.teardown.Do(func() {
		s.cancel()

		// Teardown outlives the session context on purpose; the leave
		// notices still have to reach the bus.
		ctx, cancel := context.WithTimeout(context.Background(), s.callTimeout)
		defer cancel()

		if s.conversationID != uuid.Nil {
			s.coordinator.Leave(domain.ConversationTopic(s.conversationID), s)
			s.publish(ctx, event.UserLeft{
				ConversationID: s.conversationID,
				UserID:         s.principal.ID,
				Username:       s.principal.Username,
			})
		}
		s.publish(ctx, event.UserStatus{
			UserID:   s.principal.ID,
			Username: s.principal.Username,
			Status:   event.StatusOffline,
		})
		s.coordinator.Leave(domain.PresenceTopic, s)

		_ = s.conn.Close()
		s.log.Info("Session closed", "user_id", s.principal.ID)
	})
}

func (s *Session) publish(ctx context.Context, e event.BroadcastEvent) {
	if err := s.coordinator.Publish(ctx, e.Topic(), e); err != nil {
		s.log.Error("Failed to publish event", "topic", e.Topic(), "error", err)
	}
}

// readPump processes inbound frames strictly in arrival order. It is
// the only reader of the connection.
func (s *Session) readPump() {
	defer s.Close()

	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.log.Warn("Unexpected WebSocket error", "user_id", s.principal.ID, "error", err)
			} else {
				s.log.Debug("Session disconnected", "user_id", s.principal.ID)
			}
			return
		}
		s.handleFrame(raw)
	}
}

// handleFrame dispatches one inbound frame. A malformed frame is logged
// and ignored; it never closes the connection.
func (s *Session) handleFrame(raw []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		s.log.Warn("Ignoring malformed frame", "user_id", s.principal.ID, "error", err)
		return
	}
	if frame.Type == "" {
		frame.Type = event.TypeChatMessage
	}

	switch frame.Type {
	case event.TypeChatMessage:
		s.handleChatMessage(frame.Message)
	case event.TypeTyping:
		s.handleTyping(frame.IsTyping)
	default:
		s.log.Warn("Ignoring frame of unknown type",
			"user_id", s.principal.ID, "type", frame.Type)
	}
}

// handleChatMessage persists the message through the bridge. An empty
// body is dropped silently; a storage failure is reported back to this
// connection only, never broadcast. On success nothing more happens
// here: the bridge's own publish delivers the canonical broadcast.
func (s *Session) handleChatMessage(content string) {
	if s.conversationID == uuid.Nil {
		s.log.Warn("Dropping chat_message on roster-only session", "user_id", s.principal.ID)
		return
	}
	if err := validate.Struct(chatFrame{Message: content}); err != nil {
		s.log.Warn("Dropping invalid chat_message",
			"user_id", s.principal.ID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.callTimeout)
	defer cancel()
	if _, err := s.chat.CreateMessage(ctx, s.conversationID, s.principal.ID, content); err != nil {
		s.log.Error("Failed to save message",
			"user_id", s.principal.ID, "conversation_id", s.conversationID, "error", err)
		_ = s.enqueue(event.ErrorFrame("Failed to save message"))
	}
}

// handleTyping republishes the typing status to the topic. It is
// stateless and never touches storage.
func (s *Session) handleTyping(isTyping bool) {
	if s.conversationID == uuid.Nil {
		return
	}
	ctx, cancel := context.WithTimeout(s.ctx, s.callTimeout)
	defer cancel()
	s.publish(ctx, event.Typing{
		ConversationID: s.conversationID,
		UserID:         s.principal.ID,
		Username:       s.principal.Username,
		IsTyping:       isTyping,
	})
}

// writePump is the only writer of the connection. It drains the
// outbound queue and keeps the connection alive with pings.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.Close()
	}()

	for {
		select {
		case <-s.ctx.Done():
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case payload := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.log.Debug("Write failed, closing session",
					"user_id", s.principal.ID, "error", err)
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
