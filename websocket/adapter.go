// Package websocket adapts one gorilla/websocket connection to the
// broadcast core: the read pump feeds inbound frames to the protocol
// session, the write pump drains a bounded outbound queue.
package websocket

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"roomcast/domain/event"
	"roomcast/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// errSendBufferFull reports a saturated outbound queue, so the drop is
// logged with its real cause instead of a transport close error.
var errSendBufferFull = errors.New("send buffer full, frame dropped")

type Conn struct {
	id   string
	ws   *websocket.Conn
	send chan []byte
	log  *slog.Logger
}

func NewConn(id string, ws *websocket.Conn, bufferSize int, log *slog.Logger) *Conn {
	return &Conn{
		id:   id,
		ws:   ws,
		send: make(chan []byte, bufferSize),
		log:  log,
	}
}

func (c *Conn) ID() string { return c.id }

// Send encodes and queues one outbound event. It never blocks: when the
// queue is saturated the event is dropped for this connection only.
func (c *Conn) Send(e event.DomainEvent) error {
	data, err := protocol.Encode(e)
	if err != nil {
		return err
	}
	select {
	case c.send <- data:
		return nil
	default:
		return errSendBufferFull
	}
}

// Start runs both pumps. The read pump owns the session lifecycle and
// drives the synthesized leave on transport close.
func (c *Conn) Start(ctx context.Context, session *protocol.Session) {
	go c.writePump()
	go c.readPump(ctx, session)
}

func (c *Conn) readPump(ctx context.Context, session *protocol.Session) {
	defer func() {
		session.Close(ctx)
		_ = c.ws.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.log.Error("Read error", "connection", c.id, "error", err)
			}
			return
		}
		session.HandleFrame(ctx, data)
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
