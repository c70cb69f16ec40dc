// Package domain contains core concepts of the chat system.
// Rooms are opaque broadcast domains; their metadata lives in the
// external administration surface, not here.
package domain

// RoomID is an opaque key identifying one isolated broadcast domain.
// The core never validates it against room metadata: any id with at
// least one joined connection is live.
type RoomID string
