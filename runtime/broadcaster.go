package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/abadojack/whatlanggo"

	"roomcast/contract"
	"roomcast/domain"
	"roomcast/domain/event"
	"roomcast/moderation"
)

// Broadcaster is the persist-then-fan-out pipeline for one process.
//
// A per-room mutex is held across moderation, append, sink notification
// and membership snapshot, so two publishes to the same room can never
// interleave: log order, index order and delivery order always agree.
// Delivery itself is a non-blocking Send per connection; one saturated
// or closed peer never stalls the others nor fails the publish.
//
// Persistence failure aborts the whole publish and is logged: an
// undelivered, unsaved message beats a duplicate on retry.
type Broadcaster struct {
	log       *slog.Logger
	registry  contract.IRegistry
	store     contract.IMessageStore
	moderator *moderation.Moderator
	sinks     []contract.EventSink

	mu        sync.Mutex
	roomLocks map[domain.RoomID]*sync.Mutex
}

func NewBroadcaster(log *slog.Logger, registry contract.IRegistry,
	store contract.IMessageStore, moderator *moderation.Moderator,
	sinks ...contract.EventSink) *Broadcaster {
	return &Broadcaster{
		log:       log,
		registry:  registry,
		store:     store,
		moderator: moderator,
		sinks:     sinks,
		roomLocks: make(map[domain.RoomID]*sync.Mutex),
	}
}

// Publish persists the payload when it is a message, then delivers the
// stored record to every current member of the room except
// excludeConnID. Typing indicators are transient and skip persistence.
func (b *Broadcaster) Publish(ctx context.Context, e event.DomainEvent, excludeConnID string) error {
	room := e.RoomID()
	lock := b.lockFor(room)
	lock.Lock()
	defer lock.Unlock()

	switch evt := e.(type) {
	case event.MessagePosted:
		stored, err := b.persist(ctx, evt)
		if err != nil {
			b.log.Error("Publish aborted, persistence failed",
				"room", room, "author", evt.Author, "error", err)
			return err
		}
		b.deliver(stored, excludeConnID)
		return nil
	case event.TypingStarted, event.UserJoined, event.UserLeft:
		b.deliver(e, excludeConnID)
		return nil
	default:
		b.log.Debug(fmt.Sprintf("Unhandled event kind: %T", evt))
		return nil
	}
}

func (b *Broadcaster) persist(ctx context.Context, evt event.MessagePosted) (event.MessagePosted, error) {
	content := evt.Content
	if b.moderator != nil && evt.Type == domain.MessageTypeUser {
		masked, found := b.moderator.Mask(content)
		if len(found) > 0 {
			info := whatlanggo.Detect(content)
			b.log.Warn("Censored words masked",
				"room", evt.Room,
				"author", evt.Author,
				"lang", info.Lang.Iso6391(),
				"words", len(found))
			content = masked
		}
	}

	stored, err := b.store.Append(evt.Room, evt.Author, content, evt.Type)
	if err != nil {
		return event.MessagePosted{}, err
	}

	out := event.FromMessage(stored)
	for _, sink := range b.sinks {
		if err := sink.Consume(ctx, out); err != nil {
			// Sinks are side channels; the log stays the source of truth
			b.log.Error("Sink failed to consume event", "room", evt.Room, "error", err)
		}
	}
	return out, nil
}

func (b *Broadcaster) deliver(e event.DomainEvent, excludeConnID string) {
	for _, conn := range b.registry.MembersOf(e.RoomID()) {
		if excludeConnID != "" && conn.ID() == excludeConnID {
			continue
		}
		if err := conn.Send(e); err != nil {
			b.log.Debug("Dropping event for slow or closed connection",
				"connection", conn.ID(), "room", e.RoomID(), "error", err)
		}
	}
}

func (b *Broadcaster) lockFor(room domain.RoomID) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()
	lock, ok := b.roomLocks[room]
	if !ok {
		lock = &sync.Mutex{}
		b.roomLocks[room] = lock
	}
	return lock
}
