// Package projection builds local read models from observed events.
// Handles counting and recency, does not emit events or touch storage.
package projection

import (
	"context"
	"sync"
	"time"

	"roomcast/domain"
	"roomcast/domain/event"
)

// RoomActivity summarizes what /stats exposes per room.
type RoomActivity struct {
	Room         domain.RoomID `json:"chatRoomId"`
	MessageCount int           `json:"messageCount"`
	LastAuthor   string        `json:"lastAuthor,omitempty"`
	LastActivity time.Time     `json:"lastActivity"`
}

// Activity is a permanent sink keeping an in-memory per-room summary
// of persisted messages. It is fed inside the publish path, so counts
// follow log order.
type Activity struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]RoomActivity
}

func NewActivity() *Activity {
	return &Activity{rooms: make(map[domain.RoomID]RoomActivity)}
}

func (a *Activity) Consume(_ context.Context, e event.DomainEvent) error {
	posted, ok := e.(event.MessagePosted)
	if !ok {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	summary := a.rooms[posted.Room]
	summary.Room = posted.Room
	summary.MessageCount++
	summary.LastAuthor = posted.Author
	summary.LastActivity = posted.At
	a.rooms[posted.Room] = summary
	return nil
}

// Snapshot returns a copy of every known room summary.
func (a *Activity) Snapshot() []RoomActivity {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]RoomActivity, 0, len(a.rooms))
	for _, summary := range a.rooms {
		out = append(out, summary)
	}
	return out
}
