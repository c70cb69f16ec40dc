package protocol

import (
	"context"
	"log/slog"
	"sync"

	"roomcast/contract"
	"roomcast/domain"
	"roomcast/domain/event"
)

type sessionState int

const (
	stateUnjoined sessionState = iota
	stateJoined
	stateClosed
)

// Session drives one connection through Unjoined -> Joined -> Closed.
// Operations invalid for the current state are ignored silently; there
// is no negative-acknowledgment channel back to the sender.
type Session struct {
	conn         contract.Connection
	registry     contract.IRegistry
	presence     contract.IPresence
	broadcaster  contract.IBroadcaster
	store        contract.IMessageStore
	historyLimit int
	log          *slog.Logger

	mu    sync.Mutex
	state sessionState
	room  domain.RoomID
	name  string
}

// NewSession registers the connection and returns its protocol driver.
func NewSession(conn contract.Connection, registry contract.IRegistry,
	presence contract.IPresence, broadcaster contract.IBroadcaster,
	store contract.IMessageStore, historyLimit int, log *slog.Logger) *Session {
	registry.Register(conn)
	return &Session{
		conn:         conn,
		registry:     registry,
		presence:     presence,
		broadcaster:  broadcaster,
		store:        store,
		historyLimit: historyLimit,
		log:          log,
	}
}

// HandleFrame decodes one inbound frame and applies it to the state
// machine. Malformed frames are dropped without changing state.
func (s *Session) HandleFrame(ctx context.Context, data []byte) {
	cmd, err := Decode(data)
	if err != nil {
		s.log.Debug("Dropping frame", "connection", s.conn.ID(), "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch c := cmd.(type) {
	case JoinCommand:
		s.handleJoin(ctx, c)
	case PostCommand:
		s.handlePost(ctx, c)
	case TypingCommand:
		s.handleTyping(ctx)
	case LeaveCommand:
		s.handleLeave(ctx)
	}
}

// Close runs the Closed-state cleanup exactly once: a synthesized leave
// when still joined, then unregistration.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == stateClosed {
		return
	}
	if s.state == stateJoined {
		s.handleLeave(ctx)
	}
	s.registry.Unregister(s.conn.ID())
	s.state = stateClosed
}

func (s *Session) handleJoin(ctx context.Context, cmd JoinCommand) {
	if s.state == stateClosed {
		return
	}
	room := domain.RoomID(cmd.Room)
	if err := s.registry.Join(s.conn.ID(), room, cmd.Name); err != nil {
		// Rejected, not fatal: the connection keeps its current state
		s.log.Warn("Join rejected", "connection", s.conn.ID(), "room", room, "error", err)
		return
	}

	// A same-room rejoin under a new name retires the old presence
	// record first, otherwise the connection would hold two active
	// records and the stale one could never be removed.
	rejoin := s.state == stateJoined
	if rejoin && s.name != cmd.Name {
		s.retirePresence(ctx, s.room, s.name)
	}

	s.state = stateJoined
	s.room = room
	s.name = cmd.Name
	s.presence.Join(room, cmd.Name)

	if !rejoin {
		s.pushHistory(room)
	}

	joined := domain.SystemJoined(room, cmd.Name)
	if err := s.broadcaster.Publish(ctx, event.MessagePosted{
		Room: room, Author: joined.Author, Content: joined.Content, Type: joined.Type,
	}, ""); err != nil {
		s.log.Error("Failed to publish join message", "room", room, "error", err)
	}
	if err := s.broadcaster.Publish(ctx, event.UserJoined{Room: room, Name: cmd.Name}, ""); err != nil {
		s.log.Error("Failed to publish userJoined", "room", room, "error", err)
	}
}

func (s *Session) handlePost(ctx context.Context, cmd PostCommand) {
	if s.state != stateJoined {
		s.log.Debug("Ignoring message without room context", "connection", s.conn.ID())
		return
	}
	messageType := domain.MessageType(cmd.Type)
	if cmd.Type == "" {
		messageType = domain.MessageTypeUser
	}
	// The author renders its own message locally; only the rest of the
	// room needs the broadcast.
	err := s.broadcaster.Publish(ctx, event.MessagePosted{
		Room:    s.room,
		Author:  s.name,
		Content: cmd.Content,
		Type:    messageType,
	}, s.conn.ID())
	if err != nil {
		s.log.Error("Failed to publish message", "room", s.room, "error", err)
	}
}

func (s *Session) handleTyping(ctx context.Context) {
	if s.state != stateJoined {
		s.log.Debug("Ignoring typing without room context", "connection", s.conn.ID())
		return
	}
	err := s.broadcaster.Publish(ctx, event.TypingStarted{Room: s.room, Name: s.name}, s.conn.ID())
	if err != nil {
		s.log.Error("Failed to publish typing", "room", s.room, "error", err)
	}
}

func (s *Session) handleLeave(ctx context.Context) {
	if s.state != stateJoined {
		s.log.Debug("Ignoring leave without room context", "connection", s.conn.ID())
		return
	}
	room, name := s.room, s.name
	s.registry.Leave(s.conn.ID())
	s.state = stateUnjoined
	s.room = ""
	s.name = ""

	s.retirePresence(ctx, room, name)
}

// retirePresence deactivates the (room, name) record and broadcasts
// the departure. Another connection may have superseded the record; in
// that case the retirement is silent to avoid a duplicate userLeft.
func (s *Session) retirePresence(ctx context.Context, room domain.RoomID, name string) {
	if !s.presence.Leave(room, name) {
		return
	}

	left := domain.SystemLeft(room, name)
	if err := s.broadcaster.Publish(ctx, event.MessagePosted{
		Room: room, Author: left.Author, Content: left.Content, Type: left.Type,
	}, ""); err != nil {
		s.log.Error("Failed to publish leave message", "room", room, "error", err)
	}
	if err := s.broadcaster.Publish(ctx, event.UserLeft{Room: room, Name: name}, ""); err != nil {
		s.log.Error("Failed to publish userLeft", "room", room, "error", err)
	}
}

// pushHistory delivers the recent log suffix to the joining connection
// only, before any join broadcast reaches the room.
func (s *Session) pushHistory(room domain.RoomID) {
	if s.historyLimit <= 0 {
		return
	}
	history, err := s.store.Recent(room, s.historyLimit)
	if err != nil {
		s.log.Error("Failed to load room history", "room", room, "error", err)
		return
	}
	for _, message := range history {
		if err := s.conn.Send(event.FromMessage(message)); err != nil {
			s.log.Debug("Dropping history event", "connection", s.conn.ID(), "error", err)
			return
		}
	}
}
