package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/gookit/color"
	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"

	"roomcast/httpapi"
	"roomcast/projection"
	"roomcast/protocol"
	"roomcast/repositories"
	"roomcast/runtime"
	"roomcast/search"
	ws "roomcast/websocket"
)

// BaseWsSuite boots the full broadcast stack in-process behind an
// httptest server and hands out real websocket clients.
type BaseWsSuite struct {
	suite.Suite
	Config Config

	db       *badger.DB
	writer   *bluge.Writer
	Store    *repositories.MessageRepository
	Presence *runtime.Presence
	Server   *httptest.Server
}

func (s *BaseWsSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)

	log := slog.Default()

	s.db, err = badger.Open(badger.DefaultOptions(s.T().TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	s.Require().NoError(err)

	s.writer, err = bluge.OpenWriter(bluge.DefaultConfig(s.T().TempDir()))
	s.Require().NoError(err)

	s.Store = repositories.NewMessageRepository(s.db, log)
	index := search.NewMessageIndex(s.writer, log)
	activity := projection.NewActivity()
	registry := runtime.NewRegistry()
	s.Presence = runtime.NewPresence()
	broadcaster := runtime.NewBroadcaster(log, registry, s.Store, nil, index, activity)

	upgrader := gorilla.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		socket, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn := ws.NewConn(uuid.NewString(), socket, s.Config.BufferSize, log)
		session := protocol.NewSession(conn, registry, s.Presence, broadcaster,
			s.Store, s.Config.HistoryLimit, log)
		conn.Start(context.Background(), session)
	})
	httpapi.NewServer(log, s.Store, s.Presence, registry.Stats,
		activity, index, s.Config.HistoryLimit).Register(mux)

	s.Server = httptest.NewServer(mux)
}

func (s *BaseWsSuite) TearDownSuite() {
	s.Server.Close()
	s.Require().NoError(s.writer.Close())
	s.Require().NoError(s.db.Close())
}

// StepHeader prints a colorized banner so scenario steps stand out in logs
func (s *BaseWsSuite) StepHeader(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// WsClient is a raw websocket participant reading frames synchronously.
type WsClient struct {
	suite *BaseWsSuite
	Name  string
	conn  *gorilla.Conn
}

func (s *BaseWsSuite) Dial(name string) *WsClient {
	url := "ws" + strings.TrimPrefix(s.Server.URL, "http") + "/ws"
	conn, resp, err := gorilla.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err, "Failed to open websocket to "+url)
	if resp != nil {
		_ = resp.Body.Close()
	}
	client := &WsClient{suite: s, Name: name, conn: conn}
	s.T().Cleanup(client.Close)
	return client
}

func (c *WsClient) Close() {
	_ = c.conn.Close()
}

// SendFrame marshals and writes one inbound command frame.
func (c *WsClient) SendFrame(frame map[string]any) {
	c.suite.Require().NoError(c.conn.WriteJSON(frame))
}

func (c *WsClient) Join(room string) {
	c.SendFrame(map[string]any{"type": "join", "chatRoomId": room, "userName": c.Name})
}

func (c *WsClient) Post(room, content string) {
	c.SendFrame(map[string]any{
		"type": "message", "chatRoomId": room, "userName": c.Name, "content": content,
	})
}

func (c *WsClient) Typing(room string) {
	c.SendFrame(map[string]any{"type": "typing", "chatRoomId": room, "userName": c.Name})
}

func (c *WsClient) Leave() {
	c.SendFrame(map[string]any{"type": "leave"})
}

// NextFrame blocks until the next outbound frame arrives or the
// configured timeout elapses.
func (c *WsClient) NextFrame() map[string]any {
	c.suite.Require().NoError(c.conn.SetReadDeadline(time.Now().Add(c.suite.Config.FrameTimeout)))
	_, data, err := c.conn.ReadMessage()
	c.suite.Require().NoError(err, "%s expected a frame but the read failed", c.Name)

	if c.suite.Config.DebugJSON {
		c.suite.T().Logf("%s <- %s", c.Name, string(data))
	}

	var frame map[string]any
	c.suite.Require().NoError(json.Unmarshal(data, &frame))
	return frame
}

// ExpectPresence asserts the next frame is a presence notification of
// the given type about the given user.
func (c *WsClient) ExpectPresence(frameType, userName string) {
	frame := c.NextFrame()
	c.suite.Require().Equal(frameType, frame["type"], "%s received an unexpected frame: %v", c.Name, frame)
	c.suite.Require().Equal(userName, frame["userName"])
}

// ExpectMessage asserts the next frame is a newMessage and returns its
// message body.
func (c *WsClient) ExpectMessage(author, content string) map[string]any {
	frame := c.NextFrame()
	c.suite.Require().Equal("newMessage", frame["type"], "%s received an unexpected frame: %v", c.Name, frame)
	message, ok := frame["message"].(map[string]any)
	c.suite.Require().True(ok, "newMessage frame without message body: %v", frame)
	c.suite.Require().Equal(author, message["userName"])
	c.suite.Require().Equal(content, message["content"])
	return message
}
