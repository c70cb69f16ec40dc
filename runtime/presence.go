package runtime

import (
	"sync"
	"time"

	"roomcast/domain"
)

// Presence tracks the Absent -> Active -> Absent lifecycle of each
// (room, name) pair. At most one active record exists per pair: a later
// join under the same name supersedes the earlier one instead of
// duplicating it, which also means two connections sharing a display
// name silently supplant each other (last join wins).
type Presence struct {
	mu     sync.Mutex
	active map[domain.RoomID]map[string]domain.Participant
}

func NewPresence() *Presence {
	return &Presence{active: make(map[domain.RoomID]map[string]domain.Participant)}
}

// Join activates the participant record for (room, name) and reports
// whether one already existed. A rejoin keeps the original JoinedAt.
func (p *Presence) Join(room domain.RoomID, name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	members, ok := p.active[room]
	if !ok {
		members = make(map[string]domain.Participant)
		p.active[room] = members
	}
	if _, exists := members[name]; exists {
		return true
	}
	members[name] = domain.Participant{Room: room, Name: name, JoinedAt: time.Now().UTC()}
	return false
}

// Leave removes the active record for (room, name). Returns false when
// no record exists, so callers can suppress duplicate leave events.
func (p *Presence) Leave(room domain.RoomID, name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	members, ok := p.active[room]
	if !ok {
		return false
	}
	if _, exists := members[name]; !exists {
		return false
	}
	delete(members, name)
	if len(members) == 0 {
		delete(p.active, room)
	}
	return true
}

// ActiveCount is the presence display count exposed to the dashboard.
func (p *Presence) ActiveCount(room domain.RoomID) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active[room])
}

// TotalActive counts active participants across every room, for telemetry.
func (p *Presence) TotalActive() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := 0
	for _, members := range p.active {
		total += len(members)
	}
	return total
}

// Participants returns a copy of the active records for a room.
func (p *Presence) Participants(room domain.RoomID) []domain.Participant {
	p.mu.Lock()
	defer p.mu.Unlock()

	members := p.active[room]
	out := make([]domain.Participant, 0, len(members))
	for _, participant := range members {
		out = append(out, participant)
	}
	return out
}
