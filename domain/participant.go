// Package domain contains core concepts of the chat system.
// This file defines Participant entities and related invariants.
// No runtime, network, or UI logic should be added here.
package domain

import "time"

// Participant is the logical (room, display name) presence record.
// It is distinct from a Connection: several connections may claim the
// same name, but at most one Participant record is active per (room, name).
type Participant struct {
	Room     RoomID
	Name     string
	JoinedAt time.Time
}
