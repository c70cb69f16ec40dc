// Package domain contains core concepts of the chat system.
// This file defines Message events and related rules.
// Messages are immutable and validated by the domain.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// MessageType tags the author kind of a message.
type MessageType string

const (
	MessageTypeUser   MessageType = "user"
	MessageTypeSystem MessageType = "system"
	MessageTypeBot    MessageType = "bot"
)

// Valid reports whether the tag belongs to the closed set.
func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeUser, MessageTypeSystem, MessageTypeBot:
		return true
	}
	return false
}

// Message represents an immutable chat event.
// ID and CreatedAt are assigned by the store on append.
type Message struct {
	ID        uuid.UUID
	Room      RoomID
	Author    string
	Content   string
	Type      MessageType
	CreatedAt time.Time
}

// SystemJoined builds the platform-authored message marking a join.
func SystemJoined(room RoomID, name string) Message {
	return Message{Room: room, Author: name, Content: name + " joined the chat", Type: MessageTypeSystem}
}

// SystemLeft builds the platform-authored message marking a leave.
func SystemLeft(room RoomID, name string) Message {
	return Message{Room: room, Author: name, Content: name + " left the chat", Type: MessageTypeSystem}
}
