package event

import (
	"time"

	"github.com/google/uuid"

	"roomcast/domain"
)

// DomainEvent is the closed set of payloads a room broadcast can carry.
// Downstream code matches exhaustively over {UserJoined, UserLeft,
// MessagePosted, TypingStarted}.
type DomainEvent interface {
	RoomID() domain.RoomID
}

// UserJoined announces a participant becoming active in a room.
type UserJoined struct {
	Room domain.RoomID
	Name string
}

func (e UserJoined) RoomID() domain.RoomID { return e.Room }

// UserLeft announces a participant leaving a room, whether explicit
// or synthesized from a transport close.
type UserLeft struct {
	Room domain.RoomID
	Name string
}

func (e UserLeft) RoomID() domain.RoomID { return e.Room }

// MessagePosted carries a persisted message with its server-assigned
// id and timestamp.
type MessagePosted struct {
	ID      uuid.UUID
	Room    domain.RoomID
	Author  string
	Content string
	Type    domain.MessageType
	At      time.Time
}

func (e MessagePosted) RoomID() domain.RoomID { return e.Room }

// TypingStarted is an ephemeral indicator; it is never persisted and
// never delivered back to the typist.
type TypingStarted struct {
	Room domain.RoomID
	Name string
}

func (e TypingStarted) RoomID() domain.RoomID { return e.Room }

// FromMessage converts a stored record into its broadcast form.
func FromMessage(m domain.Message) MessagePosted {
	return MessagePosted{
		ID:      m.ID,
		Room:    m.Room,
		Author:  m.Author,
		Content: m.Content,
		Type:    m.Type,
		At:      m.CreatedAt,
	}
}
