// Package e2e exercises a running gateway over its real WebSocket
// endpoints. The suite is driven entirely by environment variables and
// skips itself when no gateway address is configured.
package e2e

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
)

// Frame mirrors the gateway's outbound JSON frame.
type Frame struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	MessageID string `json:"message_id"`
	Timestamp string `json:"timestamp"`
	IsTyping  *bool  `json:"is_typing"`
	Status    string `json:"status"`
}

type BaseWebSocketSuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseWebSocketSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.GatewayAddr == "" {
		s.T().Skip("GATEWAY_ADDR not set, skipping end-to-end suite")
	}
	if s.Config.JWTSecret == "" {
		s.T().Skip("JWT_SECRET not set, skipping end-to-end suite")
	}
}

// MintToken signs a credential for the given user with the shared
// secret, exactly as the gateway under test would have issued it.
func (s *BaseWebSocketSuite) MintToken(userID string) string {
	claims := jwt.MapClaims{
		"user_id": userID,
		"iss":     "whisper-gateway",
		"iat":     jwt.NewNumericDate(time.Now()),
		"exp":     jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.Config.JWTSecret))
	s.Require().NoError(err)
	return signed
}

// Dial opens a session against the gateway, printing a colorized header
// for the connection step in logs.
func (s *BaseWebSocketSuite) Dial(t *testing.T, name, path, token string) *websocket.Conn {
	header := fmt.Sprintf("  ====== %s ======", name)
	header = color.New(color.BgBlack, color.FgGreen).Render(header)
	t.Log(header)

	url := fmt.Sprintf("ws://%s%s?token=%s", s.Config.GatewayAddr, path, token)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err, "Failed to dial %s", path)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// ReadUntil reads frames until the predicate matches, logging each one
// when E2E_DEBUG_FRAMES is enabled.
func (s *BaseWebSocketSuite) ReadUntil(t *testing.T, conn *websocket.Conn, match func(Frame) bool) Frame {
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(5 * time.Second)))
	for {
		_, raw, err := conn.ReadMessage()
		s.Require().NoError(err, "Connection closed before the expected frame arrived")

		if s.Config.DebugFrames {
			t.Logf("<<< %s", raw)
		}
		var frame Frame
		s.Require().NoError(json.Unmarshal(raw, &frame))
		if match(frame) {
			return frame
		}
	}
}

// ExpectClose asserts the gateway rejects the dial with the given
// application close code.
func (s *BaseWebSocketSuite) ExpectClose(path, token string, code int) {
	url := fmt.Sprintf("ws://%s%s", s.Config.GatewayAddr, path)
	if token != "" {
		url += "?token=" + token
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err)
	defer conn.Close()

	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(5 * time.Second)))
	_, _, err = conn.ReadMessage()
	closeErr, ok := err.(*websocket.CloseError)
	s.Require().True(ok, "Expected a close frame, got: %v", err)
	s.Require().Equal(code, closeErr.Code)
}
