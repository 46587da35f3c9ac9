package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/database"
	"github.com/samber/lo"

	"whisper-gateway/repositories"
)

// Seeds the gateway's store with users and one conversation they all
// share, then prints the environment block the end-to-end suite expects.
// Run it against the same BADGER_FILEPATH the gateway uses:
//
//	go run ./cmd/tools -db /tmp/whisper -users alice,bob
func main() {
	dbPath := flag.String("db", database.DefaultPath, "Path to badger DB")
	users := flag.String("users", "alice,bob", "Comma-separated usernames to create")
	name := flag.String("name", "", "Conversation name (empty for a direct conversation)")
	flag.Parse()

	usernames := lo.Compact(strings.Split(*users, ","))
	if len(usernames) < 2 {
		log.Fatal("At least two usernames are required")
	}

	db, err := badger.Open(badger.DefaultOptions(*dbPath).WithLoggingLevel(badger.WARNING))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	ctx := context.Background()
	userRepository := repositories.NewUserRepository(db)
	conversationRepository := repositories.NewConversationRepository(db)

	ids := make([]string, 0, len(usernames))
	for _, username := range usernames {
		user, err := userRepository.Create(ctx, strings.TrimSpace(username))
		if err != nil {
			log.Fatalf("Failed to create user %q: %v", username, err)
		}
		fmt.Printf("Created user %-12s %s\n", user.Username, user.ID)
		ids = append(ids, user.ID)
	}

	conversation, err := conversationRepository.Create(ctx, *name, ids, len(ids) > 2)
	if err != nil {
		log.Fatal("Failed to create conversation: ", err)
	}
	fmt.Printf("Created conversation %s\n\n", conversation.ID)

	fmt.Println("# Environment for the end-to-end suite:")
	fmt.Printf("export E2E_USER_A=%s\n", ids[0])
	fmt.Printf("export E2E_USER_B=%s\n", ids[1])
	fmt.Printf("export E2E_CONVERSATION_ID=%s\n", conversation.ID)
}
