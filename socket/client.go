package socket

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"livelist/pkg/logger"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Full-list updates carry the whole list, so frames can be large.
	maxMessageSize = 512 * 1024

	sendBufferSize = 256

	DefaultAvatar = "Anonymous"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Client is one admitted connection. ID is assigned on connect and is only
// unique while the connection is open.
type Client struct {
	ID     string
	Avatar string
	Conn   *websocket.Conn
	Send   chan []byte

	// dropped is owned by the room actor.
	dropped bool

	done      chan struct{}
	closeOnce sync.Once
}

func newClient(id, avatar string, conn *websocket.Conn) *Client {
	return &Client{
		ID:     id,
		Avatar: avatar,
		Conn:   conn,
		Send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.Conn != nil {
			c.Conn.Close()
		}
	})
}

// ServeWs upgrades the request and joins the connection to roomID. The
// avatar and pwd query parameters identify the user and unlock
// password-protected rooms.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request, roomID string) {
	avatar := r.URL.Query().Get("avatar")
	if avatar == "" {
		avatar = DefaultAvatar
	}
	password := r.URL.Query().Get("pwd")

	room := hub.Room(roomID)
	if room == nil {
		http.Error(w, "Server shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Sugar.Error(err)
		return
	}

	client := newClient(uuid.NewString(), avatar, conn)

	ctx, cancel := context.WithTimeout(r.Context(), writeWait)
	err = room.Join(ctx, client, password)
	cancel()
	if err != nil {
		// The actor may have admitted the client before the wait timed out.
		room.Leave(client)
		code, reason := websocket.CloseInternalServerErr, "Room unavailable"
		if errors.Is(err, ErrWrongPassword) {
			code, reason = websocket.ClosePolicyViolation, "Wrong password"
		}
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump(room)
}

func (c *Client) readPump(room *Room) {
	defer func() {
		room.Leave(c)
		c.close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.Sugar.Errorf("Room %s: read from %s: %v", room.ID, c.ID, err)
			}
			return
		}
		room.Submit(c, raw)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
