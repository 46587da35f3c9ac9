package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/database"
	"github.com/olekukonko/tablewriter"
)

// Command-line inspector for the gateway's badger store. Dumps records
// under a key prefix as a readable table, e.g.:
//
//	go run ./tools -prefix "msg:" -db /tmp/whisper
func main() {
	dbPath := flag.String("db", database.DefaultPath, "Path to badger DB")
	prefix := flag.String("prefix", "msg:", "Prefix to scan (msg:, conversation:, user:)")
	flag.Parse()

	db, err := badger.Open(badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithLoggingLevel(badger.ERROR))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Kind", "Entity ID", "Timestamp", "Detail"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	count := 0
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			err := item.Value(func(v []byte) error {
				table.Append(toRow(string(item.Key()), v))
				count++
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal("Scan failed: ", err)
	}

	table.Render()
	fmt.Printf("\n%d record(s) under %q\n", count, *prefix)
}

// toRow shapes one record for display based on its key namespace.
func toRow(key string, val []byte) []string {
	parts := strings.Split(key, ":")
	kind := parts[0]

	var fields map[string]any
	if err := json.Unmarshal(val, &fields); err != nil {
		return []string{shorten(key), kind, "-", "-", fmt.Sprintf("raw %d bytes", len(val))}
	}

	switch kind {
	case "msg":
		at := "-"
		if len(parts) >= 3 {
			if tsNano, err := strconv.ParseInt(parts[2], 10, 64); err == nil {
				at = time.Unix(0, tsNano).UTC().Format(time.RFC3339)
			}
		}
		detail := fmt.Sprintf("%v: %v", fields["sender_id"], fields["content"])
		if read, ok := fields["is_read"].(bool); ok && read {
			detail += " [read]"
		}
		return []string{shorten(key), "message", str(fields["id"]), at, detail}
	case "conversation":
		detail := fmt.Sprintf("participants=%v group=%v", fields["participants"], fields["is_group"])
		return []string{shorten(key), "conversation", str(fields["id"]), str(fields["updated_at"]), detail}
	case "user":
		return []string{shorten(key), "user", str(fields["id"]), str(fields["created_at"]), str(fields["username"])}
	default:
		return []string{shorten(key), kind, "-", "-", fmt.Sprintf("%d bytes", len(val))}
	}
}

func str(v any) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%v", v)
}

func shorten(key string) string {
	if len(key) <= 60 {
		return key
	}
	return key[:57] + "..."
}
