// Package runtime holds the live state of the broadcast core: connection
// membership, participant presence and the publish pipeline. It carries
// no business rules beyond the invariants of those three concerns.
package runtime

import (
	"sync"

	"roomcast/contract"
	"roomcast/domain"
	"roomcast/errors"
)

type Set map[string]struct{}

type association struct {
	room domain.RoomID
	name string
}

// Registry owns every live connection and the room membership index.
// A connection is associated with at most one room at a time; the index
// from room id to member connections is maintained incrementally so a
// broadcast never scans unrelated connections.
type Registry struct {
	mu          sync.RWMutex
	connections map[string]contract.Connection
	assocs      map[string]association
	roomMembers map[domain.RoomID]Set
}

func NewRegistry() *Registry {
	return &Registry{
		connections: make(map[string]contract.Connection),
		assocs:      make(map[string]association),
		roomMembers: make(map[domain.RoomID]Set),
	}
}

// Register adds a connection with no room association yet.
// Registering the same connection twice is a no-op.
func (r *Registry) Register(conn contract.Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.connections[conn.ID()]; ok {
		return
	}
	r.connections[conn.ID()] = conn
}

// Join associates a registered connection with (room, name).
// A connection joined to a different room must leave first; re-joining
// the same room only refreshes the display name (last join wins).
func (r *Registry) Join(connID string, room domain.RoomID, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.connections[connID]; !ok {
		return errors.ErrNotRegistered
	}
	if assoc, ok := r.assocs[connID]; ok && assoc.room != room {
		return errors.ErrAlreadyJoined
	}

	r.assocs[connID] = association{room: room, name: name}
	if _, ok := r.roomMembers[room]; !ok {
		r.roomMembers[room] = make(Set)
	}
	r.roomMembers[room][connID] = struct{}{}
	return nil
}

// MembersOf returns a snapshot of the connections currently joined to a
// room. The copy keeps fan-out safe against concurrent joins and leaves.
func (r *Registry) MembersOf(room domain.RoomID) []contract.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.roomMembers[room]
	if !ok {
		return nil
	}
	snapshot := make([]contract.Connection, 0, len(members))
	for connID := range members {
		if conn, exists := r.connections[connID]; exists {
			snapshot = append(snapshot, conn)
		}
	}
	return snapshot
}

// Leave clears the connection's room association. The second call is a
// no-op reporting "already clear" through the returned flag.
func (r *Registry) Leave(connID string) (domain.RoomID, string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaveLocked(connID)
}

func (r *Registry) leaveLocked(connID string) (domain.RoomID, string, bool) {
	assoc, ok := r.assocs[connID]
	if !ok {
		return "", "", false
	}
	delete(r.assocs, connID)

	if members, exists := r.roomMembers[assoc.room]; exists {
		delete(members, connID)
		// No empty sets left behind to avoid leaking dead rooms
		if len(members) == 0 {
			delete(r.roomMembers, assoc.room)
		}
	}
	return assoc.room, assoc.name, true
}

// Unregister removes the connection entirely, implicitly leaving first.
// It reports the association that was cleared, if any.
func (r *Registry) Unregister(connID string) (domain.RoomID, string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, name, wasJoined := r.leaveLocked(connID)
	delete(r.connections, connID)
	return room, name, wasJoined
}

// Stats reports live connection and room counts for telemetry.
func (r *Registry) Stats() (connections, rooms int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections), len(r.roomMembers)
}
