package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	GatewayAddr    string `env:"GATEWAY_ADDR,default=localhost:8080"`
	ConversationID string `env:"CONVERSATION_ID,required=true"`
	Token          string `env:"TOKEN,required=true"`
	LogLevel       string `env:"LOG_LEVEL,default=info"`
}

// frame mirrors the gateway's wire format in both directions.
type frame struct {
	Type      string `json:"type,omitempty"`
	Message   string `json:"message,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	Username  string `json:"username,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	IsTyping  *bool  `json:"is_typing,omitempty"`
	Status    string `json:"status,omitempty"`
}

func main() {
	// The main function manages the OS exit code based on run()'s return.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v", err)
	}
	os.Exit(code)
}

// run handles the WebSocket client lifecycle: configuration loading,
// connection, and the read/write loops until Ctrl+C or disconnect.
func run() (int, error) {
	// 1. Load configuration from environment variables.
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Setup context to handle termination signals (Ctrl+C).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open the session against the gateway.
	url := fmt.Sprintf("ws://%s/ws/chat/%s?token=%s",
		config.GatewayAddr, config.ConversationID, config.Token)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to gateway at %s: %w", config.GatewayAddr, err)
	}
	defer func() {
		log.Info("Closing connection...")
		_ = conn.Close()
	}()

	log.Info(fmt.Sprintf(">>> Connected to %s! Conversation %s (Ctrl+C to quit)...",
		config.GatewayAddr, config.ConversationID))

	// 4. Reception loop, in its own goroutine so stdin stays responsive.
	readErr := make(chan error, 1)
	go func() {
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			var f frame
			if err := json.Unmarshal(raw, &f); err != nil {
				log.Warn(fmt.Sprintf("Unreadable frame: %v", err))
				continue
			}
			printFrame(f)
		}
	}()

	// 5. Input loop: every stdin line becomes a chat message.
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			body := scanner.Text()
			if body == "" {
				continue
			}
			if err := conn.WriteJSON(frame{Message: body}); err != nil {
				log.Warn(fmt.Sprintf("Send failed: %v", err))
				return
			}
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("Stopping client...")
		return exitOK, nil
	case err := <-readErr:
		if websocket.IsCloseError(err, websocket.CloseNormalClosure) || ctx.Err() != nil {
			return exitOK, nil
		}
		return exitRuntime, fmt.Errorf("connection error: %w", err)
	}
}

// printFrame renders one received frame, colorized per frame type.
func printFrame(f frame) {
	at := time.Now().Format(time.TimeOnly)
	if f.Timestamp != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, f.Timestamp); err == nil {
			at = parsed.Local().Format(time.TimeOnly)
		}
	}

	switch f.Type {
	case "chat_message":
		fmt.Printf("[%s] %s: %s\n", at, color.FgCyan.Render(f.Username), f.Message)
	case "user_join":
		fmt.Printf("[%s] %s\n", at, color.FgGreen.Render("* "+f.Username+" joined"))
	case "user_leave":
		fmt.Printf("[%s] %s\n", at, color.FgYellow.Render("* "+f.Username+" left"))
	case "typing":
		if f.IsTyping != nil && *f.IsTyping {
			fmt.Printf("[%s] %s\n", at, color.FgGray.Render(f.Username+" is typing..."))
		}
	case "user_status":
		fmt.Printf("[%s] %s\n", at, color.FgGray.Render("* "+f.Username+" is "+f.Status))
	case "error":
		fmt.Printf("[%s] %s\n", at, color.FgRed.Render("! "+f.Message))
	}
}
