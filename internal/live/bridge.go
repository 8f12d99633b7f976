package live

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"livelist/internal/list/model"
	"livelist/internal/protocol"
	"livelist/pkg/logger"
)

const writeWait = 10 * time.Second

var (
	// ErrRejected is reported when the room refuses the connection, which
	// happens on a wrong password.
	ErrRejected = errors.New("rejected by room")
	ErrNotOpen  = errors.New("connection is not open")
)

// Handlers receive a connection's events. All of them run on the
// connection's read goroutine, in arrival order. Nil handlers are skipped.
type Handlers struct {
	OnInit       func(list *model.List)
	OnPresence   func(users []model.PresenceUser)
	OnUpdate     func(f protocol.Frame)
	OnConnect    func()
	OnDisconnect func(err error)
}

type DialOptions struct {
	Avatar   string
	Password string
	Dialer   *websocket.Dialer
}

// Conn is a client connection to one room.
type Conn struct {
	RoomID string

	ws       *websocket.Conn
	handlers Handlers

	writeMu   sync.Mutex
	open      atomic.Bool
	closing   atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
}

// RoomURL builds the WebSocket URL of roomID on server. server may use
// http(s) or ws(s) schemes.
func RoomURL(server, roomID string, opts DialOptions) (string, error) {
	u, err := url.Parse(strings.TrimRight(server, "/"))
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http", "":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path += "/rooms/" + url.PathEscape(roomID)

	q := url.Values{}
	if opts.Avatar != "" {
		q.Set("avatar", opts.Avatar)
	}
	if opts.Password != "" {
		q.Set("pwd", opts.Password)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Dial connects to roomID and starts dispatching frames to h. OnConnect runs
// before Dial returns.
func Dial(ctx context.Context, server, roomID string, opts DialOptions, h Handlers) (*Conn, error) {
	target, err := RoomURL(server, roomID, opts)
	if err != nil {
		return nil, err
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	ws, _, err := dialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, fmt.Errorf("dial room %s: %w", roomID, err)
	}

	c := &Conn{RoomID: roomID, ws: ws, handlers: h, done: make(chan struct{})}
	c.open.Store(true)
	logger.Sugar.Infof("Live: connected to room %s", roomID)
	if h.OnConnect != nil {
		h.OnConnect()
	}
	go c.readLoop()
	return c, nil
}

// Send writes msg without a sender. When the connection is not open the
// message is dropped with a warning, never queued.
func (c *Conn) Send(msg protocol.Message) error {
	if !c.open.Load() {
		logger.Sugar.Warnf("Live: cannot send %s to room %s, connection not open", msg.Type(), c.RoomID)
		return ErrNotOpen
	}
	raw, err := protocol.Encode(msg, nil)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteMessage(websocket.TextMessage, raw); err != nil {
		return fmt.Errorf("send %s: %w", msg.Type(), err)
	}
	return nil
}

// IsOpen reports whether frames can currently be sent.
func (c *Conn) IsOpen() bool { return c.open.Load() }

// Done is closed once the connection has ended and OnDisconnect has run.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Close ends the connection. It is safe to call more than once and from handlers.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		c.closing.Store(true)
		c.open.Store(false)
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		c.writeMu.Unlock()
		_ = c.ws.Close()
	})
}

func (c *Conn) readLoop() {
	var cause error
	defer func() {
		c.open.Store(false)
		_ = c.ws.Close()
		logger.Sugar.Infof("Live: disconnected from room %s", c.RoomID)
		if c.handlers.OnDisconnect != nil {
			c.handlers.OnDisconnect(cause)
		}
		close(c.done)
	}()

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			cause = c.disconnectCause(err)
			return
		}
		c.dispatch(raw)
	}
}

func (c *Conn) disconnectCause(err error) error {
	if c.closing.Load() {
		return nil
	}
	var ce *websocket.CloseError
	if errors.As(err, &ce) && ce.Code == websocket.ClosePolicyViolation {
		logger.Sugar.Warnf("Live: room %s rejected connection: %s", c.RoomID, ce.Text)
		return fmt.Errorf("%w: %s", ErrRejected, ce.Text)
	}
	return err
}

func (c *Conn) dispatch(raw []byte) {
	f, err := protocol.Decode(raw)
	if err != nil {
		logger.Sugar.Warnf("Live: dropping frame from room %s: %v", c.RoomID, err)
		return
	}
	switch m := f.Message.(type) {
	case protocol.Init:
		if c.handlers.OnInit != nil {
			c.handlers.OnInit(m.List)
		}
	case protocol.Presence:
		if c.handlers.OnPresence != nil {
			c.handlers.OnPresence(m.Users)
		}
	default:
		if c.handlers.OnUpdate != nil {
			c.handlers.OnUpdate(f)
		}
	}
}
