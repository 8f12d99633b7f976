package live

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"

	"livelist/internal/list/model"
	"livelist/internal/liststore"
	"livelist/internal/protocol"
	"livelist/pkg/logger"
)

type SessionConfig struct {
	// Server is the base URL of the list server, e.g. http://localhost:8080.
	Server string
	Avatar string
	// ShareBase is the app origin used in share links. Defaults to Server.
	ShareBase string
	Dial      DialOptions
	// OnStatus, when set, is told whenever a list's connection opens or ends.
	OnStatus func(listID string, connected bool, err error)
}

// Session keeps local lists in sync with their rooms. It owns one
// connection, presence store and typing store per live list.
type Session struct {
	store *liststore.Store
	cfg   SessionConfig

	mu    sync.Mutex
	rooms map[string]*liveRoom
}

type liveRoom struct {
	listID   string
	roomID   string
	presence *PresenceStore
	typing   *TypingStore

	// ready is closed once conn is set. conn stays nil when the dial failed.
	ready       chan struct{}
	conn        *Conn
	unsubscribe func()
}

func (r *liveRoom) send(msg protocol.Message) {
	<-r.ready
	if r.conn == nil {
		return
	}
	if err := r.conn.Send(msg); err != nil && !errors.Is(err, ErrNotOpen) {
		logger.Sugar.Warnf("Live: list %s: %v", r.listID, err)
	}
}

func NewSession(store *liststore.Store, cfg SessionConfig) *Session {
	return &Session{store: store, cfg: cfg, rooms: make(map[string]*liveRoom)}
}

// Connect makes listID live in roomID. On init the server's list wins when it
// has one; otherwise the local list is uploaded. Connecting a list that is
// already live is a no-op.
func (s *Session) Connect(ctx context.Context, listID, roomID, password string) error {
	s.mu.Lock()
	if _, ok := s.rooms[listID]; ok {
		s.mu.Unlock()
		return nil
	}
	r := &liveRoom{
		listID:   listID,
		roomID:   roomID,
		presence: NewPresenceStore(),
		typing:   NewTypingStore(),
		ready:    make(chan struct{}),
	}
	s.rooms[listID] = r
	s.mu.Unlock()

	opts := s.cfg.Dial
	opts.Avatar = s.cfg.Avatar
	opts.Password = password

	conn, err := Dial(ctx, s.cfg.Server, roomID, opts, s.handlers(r))
	if err != nil {
		close(r.ready)
		s.drop(listID, r)
		return err
	}
	r.conn = conn
	r.unsubscribe = s.store.Subscribe(func(c liststore.Change) {
		if c.Origin != liststore.OriginLocal || c.ListID != listID {
			return
		}
		if l, ok := c.State.List(listID); ok {
			r.send(protocol.ListUpdate{List: l})
		}
	})
	close(r.ready)
	return nil
}

func (s *Session) handlers(r *liveRoom) Handlers {
	return Handlers{
		OnInit: func(list *model.List) {
			if list != nil {
				s.store.Remote().ReplaceList(r.listID, *list)
				return
			}
			if local, ok := s.store.List(r.listID); ok {
				logger.Sugar.Infof("Live: room %s is empty, uploading list %s", r.roomID, r.listID)
				r.send(protocol.ListUpdate{List: local})
			}
		},
		OnPresence: r.presence.SetUsers,
		OnUpdate: func(f protocol.Frame) {
			s.applyRemote(r, f)
		},
		OnConnect: func() {
			s.status(r.listID, true, nil)
		},
		OnDisconnect: func(err error) {
			r.presence.Clear()
			if errors.Is(err, ErrRejected) {
				// A rejected list is not live.
				logger.Sugar.Warnf("Live: list %s: %v", r.listID, err)
				go s.release(r)
			}
			s.status(r.listID, false, err)
		},
	}
}

func (s *Session) status(listID string, connected bool, err error) {
	if s.cfg.OnStatus != nil {
		s.cfg.OnStatus(listID, connected, err)
	}
}

func (s *Session) applyRemote(r *liveRoom, f protocol.Frame) {
	remote := s.store.Remote()
	switch m := f.Message.(type) {
	case protocol.ListUpdate:
		remote.ReplaceList(r.listID, m.List)
	case protocol.TypingStart:
		if f.Sender != nil {
			r.typing.StartTyping(*f.Sender)
		}
	case protocol.TypingStop:
		if f.Sender != nil {
			r.typing.StopTyping(f.Sender.ID)
		}
	default:
		op, ok := protocol.ItemOp(m)
		if !ok {
			logger.Sugar.Warnf("Live: list %s: ignoring %s", r.listID, f.Type())
			return
		}
		if err := remote.ApplyOp(r.listID, op); err != nil {
			logger.Sugar.Warnf("Live: list %s: applying %s: %v", r.listID, f.Type(), err)
		}
	}
}

func (s *Session) drop(listID string, r *liveRoom) {
	s.mu.Lock()
	if s.rooms[listID] == r {
		delete(s.rooms, listID)
	}
	s.mu.Unlock()
	r.typing.Clear()
	r.presence.Clear()
}

// Disconnect ends the live connection of listID and tears down its stores.
func (s *Session) Disconnect(listID string) {
	s.mu.Lock()
	r, ok := s.rooms[listID]
	s.mu.Unlock()
	if !ok {
		return
	}
	s.release(r)
	logger.Sugar.Infof("Live: list %s is no longer live", listID)
}

func (s *Session) release(r *liveRoom) {
	<-r.ready
	if r.unsubscribe != nil {
		r.unsubscribe()
	}
	if r.conn != nil {
		r.conn.Close()
	}
	s.drop(r.listID, r)
}

// Close disconnects every live list.
func (s *Session) Close() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.rooms))
	for id := range s.rooms {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	for _, id := range ids {
		s.Disconnect(id)
	}
}

// Follow keeps the store's active list live, using the list id as the room
// id, until ctx is done.
func (s *Session) Follow(ctx context.Context, password string) error {
	active := make(chan string, 1)
	unsubscribe := s.store.Subscribe(func(c liststore.Change) {
		select {
		case <-active:
		default:
		}
		active <- c.State.ActiveListID
	})
	defer unsubscribe()

	current := s.store.ActiveListID()
	if err := s.Connect(ctx, current, current, password); err != nil {
		logger.Sugar.Warnf("Live: following %s: %v", current, err)
	}

	for {
		select {
		case id := <-active:
			if id == current {
				continue
			}
			s.Disconnect(current)
			current = id
			if err := s.Connect(ctx, id, id, password); err != nil {
				logger.Sugar.Warnf("Live: following %s: %v", id, err)
			}
		case <-ctx.Done():
			s.Disconnect(current)
			return ctx.Err()
		}
	}
}

func (s *Session) room(listID string) *liveRoom {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rooms[listID]
}

func (s *Session) BroadcastTypingStart(listID string) {
	if r := s.room(listID); r != nil {
		r.send(protocol.TypingStart{})
	}
}

func (s *Session) BroadcastTypingStop(listID string) {
	if r := s.room(listID); r != nil {
		r.send(protocol.TypingStop{})
	}
}

func (s *Session) IsLive(listID string) bool {
	return s.room(listID) != nil
}

// RoomID returns the room listID is connected to.
func (s *Session) RoomID(listID string) (string, bool) {
	if r := s.room(listID); r != nil {
		return r.roomID, true
	}
	return "", false
}

// Presence returns the presence store of a live list, or nil.
func (s *Session) Presence(listID string) *PresenceStore {
	if r := s.room(listID); r != nil {
		return r.presence
	}
	return nil
}

// Typing returns the typing store of a live list, or nil.
func (s *Session) Typing(listID string) *TypingStore {
	if r := s.room(listID); r != nil {
		return r.typing
	}
	return nil
}

// ShareURL is the link that opens listID's room, with the password when given.
func (s *Session) ShareURL(listID, password string) string {
	roomID := listID
	if id, ok := s.RoomID(listID); ok {
		roomID = id
	}
	base := s.cfg.ShareBase
	if base == "" {
		base = s.cfg.Server
	}
	q := url.Values{}
	q.Set("list", roomID)
	if password != "" {
		q.Set("pwd", password)
	}
	return strings.TrimRight(base, "/") + "/?" + q.Encode()
}
