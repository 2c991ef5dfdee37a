package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/lockbox/internal/auth/domain"
	"github.com/aussiebroadwan/lockbox/pkg/slogx"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 << 10
	sendBuffer     = 16
)

// Client actions and server replies on the websocket.
const (
	ActionJoin  = "join"
	ActionLeave = "leave"

	ReplyJoined = "joined"
	ReplyLeft   = "left"
	ReplyError  = "error"
)

// ClientMessage is sent by the browser to join or leave a request's room.
type ClientMessage struct {
	Action    string `json:"action"`
	RequestID string `json:"requestId"`
	Token     string `json:"token,omitempty"`
}

// ServerMessage acknowledges a ClientMessage. Room events are sent as
// domain.Event.
type ServerMessage struct {
	Type    string `json:"type"`
	Room    string `json:"room,omitempty"`
	Message string `json:"message,omitempty"`
}

// Handler upgrades GET /realtime to a websocket. A client may join directly
// with ?requestId=...&token=... or send ClientMessage frames afterwards.
type Handler struct {
	Channel  *Channel
	upgrader websocket.Upgrader
}

// NewHandler accepts browser origins listed in allowedOrigins ("*" allows
// any). An empty list only accepts same-origin requests.
func NewHandler(ch *Channel, allowedOrigins []string) *Handler {
	h := &Handler{
		Channel: ch,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	if len(allowedOrigins) > 0 {
		h.upgrader.CheckOrigin = originChecker(allowedOrigins)
	}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	if slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return slices.ContainsFunc(allowed, func(a string) bool {
			return strings.EqualFold(strings.TrimRight(a, "/"), u.Scheme+"://"+u.Host)
		})
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		log.Info("websocket upgrade failed", "err", err)
		return
	}

	// The connection outlives request cancellation semantics after hijack;
	// keep the request-scoped logger only.
	ctx := context.WithoutCancel(r.Context())
	c := newConn(conn)
	go c.writePump()

	if id := r.URL.Query().Get("requestId"); id != "" {
		h.handle(ctx, c, ClientMessage{Action: ActionJoin, RequestID: id, Token: r.URL.Query().Get("token")})
	}

	c.readPump(func(msg ClientMessage) { h.handle(ctx, c, msg) })

	h.Channel.Hub.LeaveAll(c)
	c.close()
	log.Debug("websocket closed")
}

func (h *Handler) handle(ctx context.Context, c *wsConn, msg ClientMessage) {
	room := domain.RoomName(msg.RequestID)

	switch msg.Action {
	case ActionJoin:
		if err := h.Channel.Join(ctx, c, msg.RequestID, msg.Token); err != nil {
			text := "Unauthorized"
			if errors.Is(err, ErrUnknownRoom) {
				text = "Unknown room"
			}
			c.reply(ServerMessage{Type: ReplyError, Room: room, Message: text})
			return
		}
		c.reply(ServerMessage{Type: ReplyJoined, Room: room})
	case ActionLeave:
		h.Channel.Leave(c, msg.RequestID)
		c.reply(ServerMessage{Type: ReplyLeft, Room: room})
	default:
		c.reply(ServerMessage{Type: ReplyError, Message: "Unknown action"})
	}
}

// wsConn is one websocket client. Only writePump writes to the socket.
type wsConn struct {
	conn *websocket.Conn
	send chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

func newConn(conn *websocket.Conn) *wsConn {
	return &wsConn{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

// Deliver queues ev without blocking. A full buffer drops the event.
func (c *wsConn) Deliver(ev domain.Event) bool {
	b, err := json.Marshal(ev)
	if err != nil {
		return false
	}
	return c.enqueue(b)
}

func (c *wsConn) reply(msg ServerMessage) {
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.enqueue(b)
}

func (c *wsConn) enqueue(b []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- b:
		return true
	default:
		return false
	}
}

func (c *wsConn) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *wsConn) readPump(onMessage func(ClientMessage)) {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			var syntaxErr *json.SyntaxError
			if errors.As(err, &syntaxErr) {
				c.reply(ServerMessage{Type: ReplyError, Message: "Malformed message"})
				continue
			}
			return
		}
		onMessage(msg)
	}
}

func (c *wsConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
