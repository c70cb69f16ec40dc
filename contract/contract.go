//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"roomcast/domain"
	"roomcast/domain/event"
)

// Connection is one live transport-level session. Send must never block:
// a saturated or closed peer drops the event instead of stalling the
// broadcaster.
type Connection interface {
	ID() string
	Send(e event.DomainEvent) error
}

// IRegistry owns the set of live connections and the room membership index.
type IRegistry interface {
	Register(conn Connection)
	Join(connID string, room domain.RoomID, name string) error
	MembersOf(room domain.RoomID) []Connection
	Leave(connID string) (domain.RoomID, string, bool)
	Unregister(connID string) (domain.RoomID, string, bool)
}

// IPresence owns participant liveness per (room, name).
type IPresence interface {
	Join(room domain.RoomID, name string) bool
	Leave(room domain.RoomID, name string) bool
	ActiveCount(room domain.RoomID) int
	Participants(room domain.RoomID) []domain.Participant
}

// IBroadcaster coordinates persist-then-fan-out for one room.
type IBroadcaster interface {
	Publish(ctx context.Context, e event.DomainEvent, excludeConnID string) error
}

// IMessageStore is the append-only, per-room ordered message log.
// Backing implementations are external collaborators of the core.
type IMessageStore interface {
	Append(room domain.RoomID, author, content string, t domain.MessageType) (domain.Message, error)
	Recent(room domain.RoomID, limit int) ([]domain.Message, error)
	Count(room domain.RoomID) (int, error)
}

// EventSink consumes events that survived persistence (indexing,
// projections). Sinks run inside the publish path and must stay cheap.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
