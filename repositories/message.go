//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"roomcast/domain"
)

// MessageRepository persists the per-room ordered message log in BadgerDB.
// Keys are formatted as "msg:{room}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Prevent data loss by using UUID as a collision disconnector if two messages
//     arrive at the same nanosecond.
type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger

	mu     sync.Mutex
	lastAt map[domain.RoomID]time.Time
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) *MessageRepository {
	return &MessageRepository{db: db, log: log, lastAt: make(map[domain.RoomID]time.Time)}
}

type diskMessage struct {
	ID      string    `json:"id"`
	Room    string    `json:"room"`
	Author  string    `json:"author"`
	Content string    `json:"content"`
	Type    string    `json:"type"`
	At      time.Time `json:"at"`
}

func roomPrefix(room domain.RoomID) []byte {
	return []byte(fmt.Sprintf("msg:%s:", room))
}

// Append stores a new message and assigns its id and timestamp.
// Timestamps are clamped strictly increasing per room so that key order,
// log order and append order always agree.
func (m *MessageRepository) Append(room domain.RoomID, author, content string, t domain.MessageType) (domain.Message, error) {
	m.mu.Lock()
	at := time.Now().UTC()
	if last, ok := m.lastAt[room]; ok && !at.After(last) {
		at = last.Add(time.Nanosecond)
	}
	m.lastAt[room] = at
	m.mu.Unlock()

	message := domain.Message{
		ID:        uuid.New(),
		Room:      room,
		Author:    author,
		Content:   content,
		Type:      t,
		CreatedAt: at,
	}
	key := fmt.Sprintf("msg:%s:%019d:%s", room, at.UnixNano(), message.ID)
	bytes, err := json.Marshal(fromMessage(message))
	if err != nil {
		return domain.Message{}, err
	}
	err = m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), bytes)
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("appending message for room %s: %w", room, err)
	}
	return message, nil
}

// Recent retrieves the most recent `limit` messages of a room in
// chronological order. Thanks to the padded timestamp in the key, a
// reverse prefix scan yields them newest first; the slice is flipped
// before returning.
func (m *MessageRepository) Recent(room domain.RoomID, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		return nil, nil
	}
	var raw [][]byte
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := roomPrefix(room)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Seek past the newest possible key for this room
		seekKey := append(append([]byte{}, prefix...), []byte("9999999999999999999")...)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if len(raw) == limit {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", limit))
				break
			}
			err := it.Item().Value(func(value []byte) error {
				raw = append(raw, append([]byte{}, value...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	messages := make([]domain.Message, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var dm diskMessage
		if err = json.Unmarshal(raw[i], &dm); err != nil {
			return nil, err
		}
		message, err := toMessage(dm)
		if err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	return messages, nil
}

// Count returns the number of messages persisted for a room.
func (m *MessageRepository) Count(room domain.RoomID) (int, error) {
	count := 0
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := roomPrefix(room)
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// Rooms lists the room ids that currently hold at least one message.
// Used by the read-only viewer, not by the broadcast path.
func (m *MessageRepository) Rooms() ([]domain.RoomID, error) {
	seen := make(map[domain.RoomID]struct{})
	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		it := txn.NewIterator(options)
		defer it.Close()
		prefix := []byte("msg:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var dm diskMessage
			err := it.Item().Value(func(value []byte) error {
				return json.Unmarshal(value, &dm)
			})
			if err != nil {
				return err
			}
			seen[domain.RoomID(dm.Room)] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lo.Keys(seen), nil
}

func fromMessage(message domain.Message) diskMessage {
	return diskMessage{
		ID:      message.ID.String(),
		Room:    string(message.Room),
		Author:  message.Author,
		Content: message.Content,
		Type:    string(message.Type),
		At:      message.CreatedAt,
	}
}

func toMessage(dm diskMessage) (domain.Message, error) {
	parsedID, err := uuid.Parse(dm.ID)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:        parsedID,
		Room:      domain.RoomID(dm.Room),
		Author:    dm.Author,
		Content:   dm.Content,
		Type:      domain.MessageType(dm.Type),
		CreatedAt: dm.At.UTC(),
	}, nil
}
