// Package protocol is the wire boundary of the broadcast core: it
// decodes inbound JSON frames into a closed command set, encodes
// outbound broadcast events, and drives the per-connection session
// state machine.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"roomcast/domain/event"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Command is the closed set of decoded inbound operations.
// Frames are decoded and validated once, here; downstream logic
// matches exhaustively over {Join, Leave, Post, Typing}.
type Command interface {
	isCommand()
}

type JoinCommand struct {
	Room string `json:"chatRoomId" validate:"required"`
	Name string `json:"userName" validate:"required"`
}

// LeaveCommand uses the connection's stored room and name.
type LeaveCommand struct{}

type PostCommand struct {
	Room    string `json:"chatRoomId" validate:"required"`
	Name    string `json:"userName" validate:"required"`
	Content string `json:"content" validate:"required"`
	Type    string `json:"messageType" validate:"omitempty,oneof=user system bot"`
}

type TypingCommand struct {
	Room string `json:"chatRoomId" validate:"required"`
	Name string `json:"userName" validate:"required"`
}

func (JoinCommand) isCommand()   {}
func (LeaveCommand) isCommand()  {}
func (PostCommand) isCommand()   {}
func (TypingCommand) isCommand() {}

// Decode turns a raw inbound frame into a validated Command.
func Decode(data []byte) (Command, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("undecodable frame: %w", err)
	}

	switch envelope.Type {
	case "join":
		return decodeInto[JoinCommand](data)
	case "leave":
		return LeaveCommand{}, nil
	case "message":
		return decodeInto[PostCommand](data)
	case "typing":
		return decodeInto[TypingCommand](data)
	default:
		return nil, fmt.Errorf("unknown frame type %q", envelope.Type)
	}
}

func decodeInto[T Command](data []byte) (Command, error) {
	var cmd T
	if err := json.Unmarshal(data, &cmd); err != nil {
		return nil, fmt.Errorf("undecodable frame: %w", err)
	}
	if err := validate.Struct(cmd); err != nil {
		return nil, fmt.Errorf("invalid frame: %w", err)
	}
	return cmd, nil
}

type wireMessage struct {
	ID      string    `json:"id"`
	Room    string    `json:"chatRoomId"`
	Name    string    `json:"userName"`
	Content string    `json:"content"`
	Type    string    `json:"messageType"`
	At      time.Time `json:"timestamp"`
}

type presenceFrame struct {
	Type string `json:"type"`
	Name string `json:"userName"`
	Room string `json:"chatRoomId"`
}

type messageFrame struct {
	Type    string      `json:"type"`
	Message wireMessage `json:"message"`
}

// Encode renders a broadcast event as its outbound JSON frame.
func Encode(e event.DomainEvent) ([]byte, error) {
	switch evt := e.(type) {
	case event.UserJoined:
		return json.Marshal(presenceFrame{Type: "userJoined", Name: evt.Name, Room: string(evt.Room)})
	case event.UserLeft:
		return json.Marshal(presenceFrame{Type: "userLeft", Name: evt.Name, Room: string(evt.Room)})
	case event.TypingStarted:
		return json.Marshal(presenceFrame{Type: "typing", Name: evt.Name, Room: string(evt.Room)})
	case event.MessagePosted:
		return json.Marshal(messageFrame{
			Type: "newMessage",
			Message: wireMessage{
				ID:      evt.ID.String(),
				Room:    string(evt.Room),
				Name:    evt.Author,
				Content: evt.Content,
				Type:    string(evt.Type),
				At:      evt.At,
			},
		})
	default:
		return nil, fmt.Errorf("unencodable event %T", e)
	}
}
