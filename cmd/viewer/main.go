package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

// Read-only dump of the persisted room logs. Opens the store alongside a
// running server thanks to BypassLockGuard.
func main() {
	dbPath := flag.String("db", os.Getenv("BADGER_FILEPATH"), "Path to badger DB")
	room := flag.String("room", "", "Only show this room")
	flag.Parse()

	if *dbPath == "" {
		log.Fatal("No database path: set -db or BADGER_FILEPATH")
	}

	opts := badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	header := color.New(color.BgBlack, color.FgGreen).
		Render(fmt.Sprintf(" Room logs @ %s ", *dbPath))
	fmt.Println(header)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Room", "Time", "Author", "Type", "Content"})
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

	perRoom := make(map[string]int)
	prefix := []byte("msg:")
	if *room != "" {
		prefix = []byte("msg:" + *room + ":")
	}

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			rawKey := string(item.Key())

			err := item.Value(func(v []byte) error {
				var row struct {
					Room    string    `json:"room"`
					Author  string    `json:"author"`
					Content string    `json:"content"`
					Type    string    `json:"type"`
					At      time.Time `json:"at"`
				}
				if err := json.Unmarshal(v, &row); err != nil {
					// Log the broken entry and keep scanning
					fmt.Printf("Error unmarshaling key %s: %v\n", rawKey, err)
					return nil
				}

				perRoom[row.Room]++

				content := row.Content
				if len(content) > 60 {
					content = content[:57] + "..."
				}

				table.Append([]string{
					shortenKey(rawKey),
					row.Room,
					row.At.Format("15:04:05"),
					row.Author,
					row.Type,
					content,
				})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	table.Render()

	rooms := make([]string, 0, len(perRoom))
	for r := range perRoom {
		rooms = append(rooms, r)
	}
	sort.Strings(rooms)
	for _, r := range rooms {
		fmt.Printf("%s: %d messages\n", r, perRoom[r])
	}
}

// shortenKey keeps the room and trims the padded timestamp and uuid for readability.
func shortenKey(key string) string {
	parts := strings.SplitN(key, ":", 4)
	if len(parts) != 4 {
		return key
	}
	id := parts[3]
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("msg:%s:…:%s", parts[1], id)
}
