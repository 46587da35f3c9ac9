package gateway

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"whisper-gateway/auth"
	"whisper-gateway/contract"
	"whisper-gateway/domain"
	"whisper-gateway/errors"
	"whisper-gateway/observability"
	"whisper-gateway/repositories"
	"whisper-gateway/services"
)

// Close codes reserved for handshake rejection. The connection is
// accepted first and then closed with the distinguishing code, so
// clients can tell authentication failures from authorization ones.
const (
	CloseInternalError  = 4000
	CloseNoIdentity     = 4001
	CloseForbiddenTopic = 4003
)

// Config carries the per-connection tunables of the gateway.
type Config struct {
	SendBufferSize int
	MaxMessageSize int64
	CallTimeout    time.Duration
}

// Gateway upgrades HTTP requests into chat and presence sessions.
type Gateway struct {
	log           *slog.Logger
	coordinator   contract.ICoordinator
	authenticator *auth.Authenticator
	conversations repositories.IConversationRepository
	chat          services.IChatService
	monitor       *observability.Monitor
	upgrader      websocket.Upgrader
	cfg           Config
}

func New(log *slog.Logger, coordinator contract.ICoordinator, authenticator *auth.Authenticator,
	conversations repositories.IConversationRepository, chat services.IChatService,
	monitor *observability.Monitor, cfg Config) *Gateway {
	return &Gateway{
		log:           log,
		coordinator:   coordinator,
		authenticator: authenticator,
		conversations: conversations,
		chat:          chat,
		monitor:       monitor,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		cfg: cfg,
	}
}

// Router exposes the gateway's endpoints.
func (g *Gateway) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/ws/chat/{conversation_id}", g.ServeChat)
	router.HandleFunc("/ws/online", g.ServeOnline)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return router
}

// ServeChat runs the handshake for a per-conversation session:
// credential resolution, then a membership check against the
// conversation. Absence of membership and a conversation that does not
// exist are logged differently but rejected identically on the wire.
func (g *Gateway) ServeChat(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn("WebSocket upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(g.cfg.MaxMessageSize)

	principal, ok := g.authenticate(conn, r)
	if !ok {
		return
	}

	conversationID, err := uuid.Parse(mux.Vars(r)["conversation_id"])
	if err != nil {
		g.log.Warn("Rejecting connection to malformed conversation id",
			"user_id", principal.ID, "conversation_id", mux.Vars(r)["conversation_id"])
		g.closeWithCode(conn, CloseForbiddenTopic, "forbidden")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), g.cfg.CallTimeout)
	defer cancel()
	isParticipant, err := g.conversations.IsParticipant(ctx, conversationID, principal.ID)
	switch {
	case stderrors.Is(err, errors.ErrConversationNotFound):
		g.log.Warn("Rejecting connection to unknown conversation",
			"user_id", principal.ID, "conversation_id", conversationID)
		g.closeWithCode(conn, CloseForbiddenTopic, "forbidden")
		return
	case err != nil:
		g.log.Error("Membership check failed",
			"user_id", principal.ID, "conversation_id", conversationID, "error", err)
		g.closeWithCode(conn, CloseInternalError, "internal error")
		return
	case !isParticipant:
		g.log.Warn("Rejecting non-participant",
			"user_id", principal.ID, "conversation_id", conversationID)
		g.closeWithCode(conn, CloseForbiddenTopic, "forbidden")
		return
	}

	session := newChatSession(conn, principal, conversationID,
		g.coordinator, g.chat, g.log, g.cfg.SendBufferSize, g.cfg.CallTimeout)
	if err := session.start(); err != nil {
		g.log.Error("Failed to start session",
			"user_id", principal.ID, "conversation_id", conversationID, "error", err)
		g.closeWithCode(conn, CloseInternalError, "internal error")
		return
	}
	g.monitor.SessionAccepted()
	g.log.Info("User joined conversation",
		"user_id", principal.ID, "username", principal.Username, "conversation_id", conversationID)
}

// ServeOnline runs the handshake for a roster-only presence session.
func (g *Gateway) ServeOnline(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn("WebSocket upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(g.cfg.MaxMessageSize)

	principal, ok := g.authenticate(conn, r)
	if !ok {
		return
	}

	session := newRosterSession(conn, principal,
		g.coordinator, g.chat, g.log, g.cfg.SendBufferSize, g.cfg.CallTimeout)
	if err := session.start(); err != nil {
		g.log.Error("Failed to start presence session",
			"user_id", principal.ID, "error", err)
		g.closeWithCode(conn, CloseInternalError, "internal error")
		return
	}
	g.monitor.SessionAccepted()
	g.log.Info("User connected to presence roster",
		"user_id", principal.ID, "username", principal.Username)
}

// authenticate resolves the ?token= credential. Anonymous resolutions
// are never authorized past this point.
func (g *Gateway) authenticate(conn *websocket.Conn, r *http.Request) (domain.Principal, bool) {
	p, err := g.authenticator.Authenticate(r.Context(), r.URL.Query().Get("token"))
	if p.IsAnonymous() {
		g.log.Warn("Rejecting unauthenticated connection",
			"remote_addr", r.RemoteAddr, "reason", err)
		g.closeWithCode(conn, CloseNoIdentity, "authentication required")
		return p, false
	}
	return p, true
}

func (g *Gateway) closeWithCode(conn *websocket.Conn, code int, reason string) {
	g.monitor.SessionRejected()
	deadline := time.Now().Add(writeWait)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), deadline)
	_ = conn.Close()
}
