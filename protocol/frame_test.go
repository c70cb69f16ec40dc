package protocol

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"roomcast/domain"
	"roomcast/domain/event"
)

func Test_Decode_Closed_Command_Set(t *testing.T) {
	req := require.New(t)

	cmd, err := Decode([]byte(`{"type":"join","chatRoomId":"r1","userName":"Alice"}`))
	req.NoError(err)
	req.Equal(JoinCommand{Room: "r1", Name: "Alice"}, cmd)

	cmd, err = Decode([]byte(`{"type":"leave"}`))
	req.NoError(err)
	req.IsType(LeaveCommand{}, cmd)

	cmd, err = Decode([]byte(`{"type":"message","chatRoomId":"r1","userName":"Alice","content":"hi"}`))
	req.NoError(err)
	post := cmd.(PostCommand)
	req.Equal("hi", post.Content)
	req.Empty(post.Type) // messageType is optional, defaulted by the session

	_, err = Decode([]byte(`{"type":"message","chatRoomId":"r1","userName":"Alice","content":"hi","messageType":"alien"}`))
	req.Error(err)

	_, err = Decode([]byte(`{"type":"warp"}`))
	req.Error(err)

	_, err = Decode([]byte(`{"type":"typing","chatRoomId":"r1"}`))
	req.Error(err)
}

func Test_Encode_New_Message_Frame(t *testing.T) {
	req := require.New(t)
	at := time.Now().UTC()
	id := uuid.New()

	data, err := Encode(event.MessagePosted{
		ID: id, Room: "r1", Author: "Alice", Content: "hi",
		Type: domain.MessageTypeUser, At: at,
	})
	req.NoError(err)

	var frame struct {
		Type    string `json:"type"`
		Message struct {
			ID      string    `json:"id"`
			Room    string    `json:"chatRoomId"`
			Name    string    `json:"userName"`
			Content string    `json:"content"`
			Type    string    `json:"messageType"`
			At      time.Time `json:"timestamp"`
		} `json:"message"`
	}
	req.NoError(json.Unmarshal(data, &frame))
	req.Equal("newMessage", frame.Type)
	req.Equal(id.String(), frame.Message.ID)
	req.Equal("user", frame.Message.Type)
	req.True(frame.Message.At.Equal(at))
}

func Test_Encode_Typing_Frame(t *testing.T) {
	req := require.New(t)

	data, err := Encode(event.TypingStarted{Room: "r1", Name: "Alice"})
	req.NoError(err)
	req.JSONEq(`{"type":"typing","userName":"Alice","chatRoomId":"r1"}`, string(data))
}
