package main

import "time"

type Config struct {
	Host           string        `env:"HOST,default=0.0.0.0"`
	Port           int           `env:"PORT,default=8080"`
	LogLevel       string        `env:"LOG_LEVEL,default=info"`
	BadgerFilepath string        `env:"BADGER_FILEPATH,required=true"`
	JWTSecret      string        `env:"JWT_SECRET,required=true"`
	TokenDuration  time.Duration `env:"TOKEN_DURATION,default=24h"`

	// Bounded suspension points: credential resolution and the
	// storage call-outs a session may block on.
	AuthTimeout    time.Duration `env:"AUTH_TIMEOUT,default=2s"`
	CalloutTimeout time.Duration `env:"CALLOUT_TIMEOUT,default=5s"`

	SendBufferSize  int           `env:"SEND_BUFFER_SIZE,default=256"`
	BusBufferSize   int           `env:"BUS_BUFFER_SIZE,default=256"`
	MaxMessageSize  int64         `env:"MAX_MESSAGE_SIZE,default=4096"`
	LimitMessages   *int          `env:"LIMIT_MESSAGES"`
	RestartInterval time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`

	// BUS_BACKEND selects the broadcast medium: "memory" keeps
	// single-node deployments dependency-free, "redis" lets several
	// gateway processes share one stream.
	BusBackend string `env:"BUS_BACKEND,default=memory"`
	RedisAddr  string `env:"REDIS_ADDR,default=localhost:6379"`
	RedisDB    int    `env:"REDIS_DB,default=0"`

	TelemetryInterval time.Duration `env:"TELEMETRY_INTERVAL,default=30s"`
	// DEBUG_PORT exposes the storage inspector on /inspect when non-zero.
	DebugPort int `env:"DEBUG_PORT,default=0"`
}
