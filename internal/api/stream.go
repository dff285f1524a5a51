package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack"

	"wandermap/pkg/session"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	maxMessage = 4096
)

// Pointer event types sent by stream clients.
const (
	EventMove  = "move"
	EventLeave = "leave"
	EventClick = "click"
)

// PointerEvent is a client message on the stream.
type PointerEvent struct {
	Type string  `json:"type" msgpack:"type"`
	X    float64 `json:"x" msgpack:"x"`
	Y    float64 `json:"y" msgpack:"y"`
}

// codec encodes outgoing batches and decodes incoming events for one
// connection.
type codec struct {
	name        string
	messageType int
	marshal     func(v any) ([]byte, error)
	unmarshal   func(data []byte, v any) error
}

var (
	jsonCodec    = codec{name: "json", messageType: websocket.TextMessage, marshal: json.Marshal, unmarshal: json.Unmarshal}
	msgpackCodec = codec{name: "msgpack", messageType: websocket.BinaryMessage, marshal: msgpack.Marshal, unmarshal: msgpack.Unmarshal}
)

func codecFor(name string) (codec, error) {
	switch name {
	case "", "json":
		return jsonCodec, nil
	case "msgpack":
		return msgpackCodec, nil
	default:
		return codec{}, fmt.Errorf("unsupported codec %q", name)
	}
}

// StreamHandler upgrades to a websocket that carries pointer events in and
// command batches out.
type StreamHandler struct {
	sessions *SessionHandler
	upgrader websocket.Upgrader
}

// NewStreamHandler creates a StreamHandler resolving sessions through sh.
func NewStreamHandler(sh *SessionHandler) *StreamHandler {
	return &StreamHandler{
		sessions: sh,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 16 * 1024,
		},
	}
}

func (h *StreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessions.session(w, r)
	if !ok {
		return
	}
	c, err := codecFor(r.URL.Query().Get("codec"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_codec", err.Error())
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Websocket upgrade failed", "session", s.ID(), "error", err)
		return
	}
	defer conn.Close()

	sub := s.Subscribe()
	defer sub.Release()
	slog.Debug("Stream attached", "session", s.ID(), "codec", c.name)

	touch := func() { h.sessions.mgr.Touch(s.ID()) }
	go readPump(conn, s, c, sub, touch)
	writePump(conn, c, sub)
}

// readPump applies client pointer events until the connection fails, then
// releases the subscription so the writer stops. Every event and pong
// counts as session activity.
func readPump(conn *websocket.Conn, s *session.Session, c codec, sub *session.Subscription, touch func()) {
	defer sub.Release()

	conn.SetReadLimit(maxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		touch()
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("Stream read failed", "session", s.ID(), "error", err)
			}
			return
		}
		var ev PointerEvent
		if err := c.unmarshal(data, &ev); err != nil {
			slog.Warn("Ignoring malformed pointer event", "session", s.ID(), "error", err)
			continue
		}
		touch()
		applyEvent(s, ev)
	}
}

func applyEvent(s *session.Session, ev PointerEvent) {
	switch ev.Type {
	case EventMove:
		s.PointerMove(ev.X, ev.Y)
	case EventLeave:
		s.PointerLeave()
	case EventClick:
		s.PointerClick(ev.X, ev.Y)
	default:
		slog.Warn("Ignoring unknown pointer event", "session", s.ID(), "type", ev.Type)
	}
}

// writePump sends batches until the subscription closes.
func writePump(conn *websocket.Conn, c codec, sub *session.Subscription) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case b, ok := <-sub.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			data, err := c.marshal(b)
			if err != nil {
				slog.Error("Failed to encode batch", "error", err)
				return
			}
			if err := conn.WriteMessage(c.messageType, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
