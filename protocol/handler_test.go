package protocol

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"roomcast/domain"
	"roomcast/domain/event"
	"roomcast/runtime"
)

type fakeConn struct {
	id     string
	events []event.DomainEvent
}

func newFakeConn() *fakeConn { return &fakeConn{id: uuid.NewString()} }

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(e event.DomainEvent) error {
	c.events = append(c.events, e)
	return nil
}

func (c *fakeConn) ofType(frameType string) []event.DomainEvent {
	var out []event.DomainEvent
	for _, e := range c.events {
		switch e.(type) {
		case event.UserJoined:
			if frameType == "userJoined" {
				out = append(out, e)
			}
		case event.UserLeft:
			if frameType == "userLeft" {
				out = append(out, e)
			}
		case event.TypingStarted:
			if frameType == "typing" {
				out = append(out, e)
			}
		case event.MessagePosted:
			if frameType == "newMessage" {
				out = append(out, e)
			}
		}
	}
	return out
}

type memStore struct {
	mu   sync.Mutex
	logs map[domain.RoomID][]domain.Message
}

func newMemStore() *memStore { return &memStore{logs: make(map[domain.RoomID][]domain.Message)} }

func (s *memStore) Append(room domain.RoomID, author, content string, t domain.MessageType) (domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	message := domain.Message{
		ID: uuid.New(), Room: room, Author: author,
		Content: content, Type: t, CreatedAt: time.Now().UTC(),
	}
	s.logs[room] = append(s.logs[room], message)
	return message, nil
}

func (s *memStore) Recent(room domain.RoomID, limit int) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	log := s.logs[room]
	if len(log) > limit {
		log = log[len(log)-limit:]
	}
	return append([]domain.Message{}, log...), nil
}

func (s *memStore) Count(room domain.RoomID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.logs[room]), nil
}

type harness struct {
	registry    *runtime.Registry
	presence    *runtime.Presence
	broadcaster *runtime.Broadcaster
	store       *memStore
}

func newHarness() *harness {
	registry := runtime.NewRegistry()
	store := newMemStore()
	return &harness{
		registry:    registry,
		presence:    runtime.NewPresence(),
		broadcaster: runtime.NewBroadcaster(slog.Default(), registry, store, nil),
		store:       store,
	}
}

func (h *harness) session(conn *fakeConn) *Session {
	return NewSession(conn, h.registry, h.presence, h.broadcaster, h.store, 50, slog.Default())
}

func joinFrame(room, name string) []byte {
	return []byte(fmt.Sprintf(`{"type":"join","chatRoomId":%q,"userName":%q}`, room, name))
}

func messageFrameRaw(room, name, content string) []byte {
	return []byte(fmt.Sprintf(`{"type":"message","chatRoomId":%q,"userName":%q,"content":%q}`, room, name, content))
}

func Test_Scenario_Single_Join(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness()
	c1 := newFakeConn()
	session := h.session(c1)

	session.HandleFrame(ctx, joinFrame("r1", "Alice"))

	count, err := h.store.Count("r1")
	req.NoError(err)
	req.Equal(1, count)
	persisted, err := h.store.Recent("r1", 1)
	req.NoError(err)
	req.Equal("Alice joined the chat", persisted[0].Content)
	req.Equal(domain.MessageTypeSystem, persisted[0].Type)

	joined := c1.ofType("userJoined")
	req.Len(joined, 1)
	req.Equal("Alice", joined[0].(event.UserJoined).Name)
	req.Equal(1, h.presence.ActiveCount("r1"))
}

func Test_Scenario_Message_Excludes_Sender(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness()
	c1, c2 := newFakeConn(), newFakeConn()
	s1, s2 := h.session(c1), h.session(c2)

	s1.HandleFrame(ctx, joinFrame("r1", "Alice"))
	s2.HandleFrame(ctx, joinFrame("r1", "Bob"))
	c1.events = nil
	c2.events = nil

	s1.HandleFrame(ctx, messageFrameRaw("r1", "Alice", "hi"))

	req.Empty(c1.ofType("newMessage"))
	received := c2.ofType("newMessage")
	req.Len(received, 1)
	req.Equal("hi", received[0].(event.MessagePosted).Content)
	req.Equal(domain.MessageTypeUser, received[0].(event.MessagePosted).Type)

	// 2 join system messages + 1 user message, in order
	persisted, err := h.store.Recent("r1", 10)
	req.NoError(err)
	req.Len(persisted, 3)
	req.Equal("Alice joined the chat", persisted[0].Content)
	req.Equal("Bob joined the chat", persisted[1].Content)
	req.Equal("hi", persisted[2].Content)
}

func Test_Scenario_Disconnect_Synthesizes_Leave(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness()
	c1, c2 := newFakeConn(), newFakeConn()
	s1, s2 := h.session(c1), h.session(c2)

	s1.HandleFrame(ctx, joinFrame("r1", "Alice"))
	s2.HandleFrame(ctx, joinFrame("r1", "Bob"))
	req.Equal(2, h.presence.ActiveCount("r1"))
	c2.events = nil

	s1.Close(ctx)

	req.Equal(1, h.presence.ActiveCount("r1"))
	left := c2.ofType("userLeft")
	req.Len(left, 1)
	req.Equal("Alice", left[0].(event.UserLeft).Name)

	persisted, err := h.store.Recent("r1", 10)
	req.NoError(err)
	req.Equal("Alice left the chat", persisted[len(persisted)-1].Content)

	// A second close is a no-op: no duplicate leave broadcast
	c2.events = nil
	s1.Close(ctx)
	req.Empty(c2.events)
}

func Test_Scenario_Typing_Excludes_Typist_And_Skips_Store(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness()
	c1, c2, c3 := newFakeConn(), newFakeConn(), newFakeConn()
	s1 := h.session(c1)
	h.session(c2).HandleFrame(ctx, joinFrame("r1", "Bob"))
	h.session(c3).HandleFrame(ctx, joinFrame("r1", "Clara"))
	s1.HandleFrame(ctx, joinFrame("r1", "Alice"))

	countBefore, err := h.store.Count("r1")
	req.NoError(err)
	c1.events, c2.events, c3.events = nil, nil, nil

	s1.HandleFrame(ctx, []byte(`{"type":"typing","chatRoomId":"r1","userName":"Alice"}`))

	req.Empty(c1.ofType("typing"))
	req.Len(c2.ofType("typing"), 1)
	req.Len(c3.ofType("typing"), 1)
	req.Equal("Alice", c2.ofType("typing")[0].(event.TypingStarted).Name)

	countAfter, err := h.store.Count("r1")
	req.NoError(err)
	req.Equal(countBefore, countAfter)
}

func Test_Rejoin_Does_Not_Double_Count_Presence(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness()
	c1 := newFakeConn()
	session := h.session(c1)

	session.HandleFrame(ctx, joinFrame("r1", "Alice"))
	session.HandleFrame(ctx, joinFrame("r1", "Alice"))

	req.Equal(1, h.presence.ActiveCount("r1"))
	// One system "joined" message per join call
	count, err := h.store.Count("r1")
	req.NoError(err)
	req.Equal(2, count)
}

func Test_Rename_Join_Retires_Old_Presence(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness()
	c1, c2 := newFakeConn(), newFakeConn()
	s1 := h.session(c1)
	h.session(c2).HandleFrame(ctx, joinFrame("r1", "Carol"))

	s1.HandleFrame(ctx, joinFrame("r1", "Alice"))
	req.Equal(2, h.presence.ActiveCount("r1"))
	c2.events = nil

	// Same connection, same room, new name: the Alice record must be
	// retired, never left active alongside Bob
	s1.HandleFrame(ctx, joinFrame("r1", "Bob"))

	req.Equal(2, h.presence.ActiveCount("r1"))
	names := make([]string, 0, 2)
	for _, participant := range h.presence.Participants("r1") {
		names = append(names, participant.Name)
	}
	req.ElementsMatch([]string{"Carol", "Bob"}, names)

	left := c2.ofType("userLeft")
	req.Len(left, 1)
	req.Equal("Alice", left[0].(event.UserLeft).Name)
	joined := c2.ofType("userJoined")
	req.Len(joined, 1)
	req.Equal("Bob", joined[0].(event.UserJoined).Name)

	// Disconnecting retires the current record, leaving nothing behind
	s1.Close(ctx)
	req.Equal(1, h.presence.ActiveCount("r1"))
	req.Equal("Carol", h.presence.Participants("r1")[0].Name)
}

func Test_Rejoin_Skips_History_Push(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness()
	c1 := newFakeConn()
	session := h.session(c1)

	session.HandleFrame(ctx, joinFrame("r1", "Alice"))
	session.HandleFrame(ctx, messageFrameRaw("r1", "Alice", "already seen"))
	c1.events = nil

	session.HandleFrame(ctx, joinFrame("r1", "Alice"))

	// Only the fresh join system message is delivered, the log suffix
	// the client already holds is not replayed
	replayed := c1.ofType("newMessage")
	req.Len(replayed, 1)
	req.Equal("Alice joined the chat", replayed[0].(event.MessagePosted).Content)
}

func Test_Join_Other_Room_While_Joined_Is_Rejected(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness()
	c1 := newFakeConn()
	session := h.session(c1)

	session.HandleFrame(ctx, joinFrame("r1", "Alice"))
	session.HandleFrame(ctx, joinFrame("r2", "Alice"))

	req.Equal(1, h.presence.ActiveCount("r1"))
	req.Zero(h.presence.ActiveCount("r2"))
	count, err := h.store.Count("r2")
	req.NoError(err)
	req.Zero(count)
}

func Test_Message_While_Unjoined_Is_Ignored(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness()
	c1 := newFakeConn()
	session := h.session(c1)

	session.HandleFrame(ctx, messageFrameRaw("r1", "Alice", "hello?"))
	session.HandleFrame(ctx, []byte(`{"type":"typing","chatRoomId":"r1","userName":"Alice"}`))
	session.HandleFrame(ctx, []byte(`{"type":"leave"}`))

	count, err := h.store.Count("r1")
	req.NoError(err)
	req.Zero(count)
	req.Empty(c1.events)
}

func Test_Malformed_Frames_Are_Dropped(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness()
	c1 := newFakeConn()
	session := h.session(c1)

	session.HandleFrame(ctx, []byte(`not json at all`))
	session.HandleFrame(ctx, []byte(`{"type":"teleport"}`))
	session.HandleFrame(ctx, []byte(`{"type":"join","chatRoomId":"r1"}`)) // missing userName

	req.Empty(c1.events)
	req.Zero(h.presence.ActiveCount("r1"))

	// The connection is still usable afterwards
	session.HandleFrame(ctx, joinFrame("r1", "Alice"))
	req.Equal(1, h.presence.ActiveCount("r1"))
}

func Test_History_Pushed_On_Join(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness()

	c1 := newFakeConn()
	s1 := h.session(c1)
	s1.HandleFrame(ctx, joinFrame("r1", "Alice"))
	s1.HandleFrame(ctx, messageFrameRaw("r1", "Alice", "first"))
	s1.HandleFrame(ctx, messageFrameRaw("r1", "Alice", "second"))

	c2 := newFakeConn()
	h.session(c2).HandleFrame(ctx, joinFrame("r1", "Bob"))

	history := c2.ofType("newMessage")
	// 1 join system message + 2 user messages from history, then Bob's
	// own join system message broadcast
	req.Len(history, 4)
	req.Equal("Alice joined the chat", history[0].(event.MessagePosted).Content)
	req.Equal("first", history[1].(event.MessagePosted).Content)
	req.Equal("second", history[2].(event.MessagePosted).Content)
	req.Equal("Bob joined the chat", history[3].(event.MessagePosted).Content)
}
