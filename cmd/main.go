package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/database"
	"github.com/mama165/sdk-go/logs"

	"whisper-gateway/auth"
	"whisper-gateway/bus"
	"whisper-gateway/contract"
	"whisper-gateway/domain"
	"whisper-gateway/gateway"
	"whisper-gateway/observability"
	"whisper-gateway/repositories"
	"whisper-gateway/runtime"
	"whisper-gateway/runtime/workers"
	"whisper-gateway/services"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting, so that every defer (database close,
// worker drain) executes before the process exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Broadcast bus, selected at startup
	var broadcastBus contract.IBus
	switch config.BusBackend {
	case "redis":
		redisBus, err := bus.NewRedisBus(config.RedisAddr, config.RedisDB, log, config.BusBufferSize)
		if err != nil {
			return fmt.Errorf("redis bus: %w", err)
		}
		broadcastBus = redisBus
	case "memory":
		broadcastBus = bus.NewMemoryBus(log, config.BusBufferSize)
	default:
		return fmt.Errorf("unknown BUS_BACKEND %q", config.BusBackend)
	}
	defer func() { _ = broadcastBus.Close() }()

	// 4. Storage collaborator & bridge
	userRepository := repositories.NewUserRepository(db)
	conversationRepository := repositories.NewConversationRepository(db)
	messageRepository := repositories.NewMessageRepository(db, log, config.LimitMessages)
	chatService := services.NewChatService(conversationRepository, messageRepository,
		userRepository, broadcastBus, log)

	// 5. Supervision, registry, coordination
	supervisor := workers.NewSupervisor(log, config.RestartInterval)
	registry := runtime.NewRegistry(log)
	coordinator := runtime.NewCoordinator(log, registry, broadcastBus, supervisor)

	// Every live session sits on the presence roster, so its member
	// count is the live-session gauge.
	monitor := observability.NewMonitor(func() int {
		return registry.Members(domain.PresenceTopic)
	})

	// 6. Authentication
	tokens := auth.NewTokens([]byte(config.JWTSecret), config.TokenDuration)
	authenticator := auth.NewAuthenticator(tokens, userRepository, config.AuthTimeout, log)

	// 7. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	coordinator.Start(ctx)
	supervisor.Start(ctx, workers.NewTelemetryWorker(log, monitor, config.TelemetryInterval))

	if config.DebugPort != 0 {
		database.StartDebugServer(db, config.DebugPort, "/inspect", storageMapper)
		log.Info("Storage inspector available", "port", config.DebugPort)
	}

	// 8. Gateway HTTP server
	gw := gateway.New(log, coordinator, authenticator, conversationRepository, chatService,
		monitor, gateway.Config{
			SendBufferSize: config.SendBufferSize,
			MaxMessageSize: config.MaxMessageSize,
			CallTimeout:    config.CalloutTimeout,
		})
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{Addr: address, Handler: gw.Router()}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting gateway", "address", address, "bus", config.BusBackend, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("gateway server error: %w", err)
		}
	}()

	// 9. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 10. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("Server shutdown incomplete", "error", err)
	}
	coordinator.Stop()
	supervisor.Wait()
	log.Info("Gateway stopped cleanly")

	return nil
}

// storageMapper shapes the gateway's records for the storage inspector.
func storageMapper(key string, val []byte) database.InspectRow {
	row := database.DefaultMapper(key, val)

	// References store the primary key itself, not a JSON document.
	if strings.HasPrefix(key, "msgref:") {
		row.Type = "REF"
		row.Detail = string(val)
		return row
	}

	var fields map[string]any
	if err := json.Unmarshal(val, &fields); err != nil {
		row.Detail = "Error: unmarshal failed"
		return row
	}

	switch {
	case strings.HasPrefix(key, "msg:"):
		row.Type = "MESSAGE"
		row.Detail = fmt.Sprintf("%v: %v", fields["sender_id"], fields["content"])
	case strings.HasPrefix(key, "conversation:"):
		row.Type = "CONVERSATION"
		row.EntityID = fmt.Sprintf("%v", fields["id"])
		row.Detail = fmt.Sprintf("participants=%v group=%v", fields["participants"], fields["is_group"])
	case strings.HasPrefix(key, "user:"):
		row.Type = "USER"
		row.EntityID = fmt.Sprintf("%v", fields["id"])
		row.Detail = fmt.Sprintf("%v", fields["username"])
	}
	return row
}
