package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// GATEWAY_ADDR points at a running gateway, e.g. "localhost:8080".
	// The suite is skipped when it is unset.
	GatewayAddr string `envconfig:"GATEWAY_ADDR"`
	// JWT_SECRET must match the secret the gateway under test runs with,
	// so the suite can mint its own credentials.
	JWTSecret string `envconfig:"JWT_SECRET"`
	// E2E_DEBUG_FRAMES dumps every WebSocket frame for log readability
	DebugFrames bool `envconfig:"E2E_DEBUG_FRAMES" default:"false"`
	// Pre-provisioned fixtures on the gateway under test: two user IDs
	// that are both participants of E2E_CONVERSATION_ID.
	UserA          string `envconfig:"E2E_USER_A"`
	UserB          string `envconfig:"E2E_USER_B"`
	ConversationID string `envconfig:"E2E_CONVERSATION_ID"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
