package socket

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"livelist/internal/list/model"
	"livelist/internal/list/mutate"
	"livelist/internal/protocol"
	"livelist/internal/room/repository"
	"livelist/pkg/logger"
)

const (
	inboxSize    = 256
	storeTimeout = 5 * time.Second
)

var (
	ErrWrongPassword = errors.New("wrong password")
	ErrNoList        = errors.New("room has no list")
	ErrRoomClosed    = errors.New("room closed")
	ErrUnavailable   = errors.New("room storage unavailable")
)

type joinEvent struct {
	client   *Client
	password string
	reply    chan error
}

type leaveEvent struct {
	client *Client
}

type messageEvent struct {
	client *Client
	raw    []byte
}

type seedEvent struct {
	list     model.List
	password string
	reply    chan error
}

type snapshot struct {
	list     *model.List
	presence []model.PresenceUser
	err      error
}

type snapshotEvent struct {
	reply chan snapshot
}

// Room is the single owner of one list's server state. Every event goes
// through inbox and is handled by run one at a time, so mutations from
// different connections never interleave.
type Room struct {
	ID string

	hub   *Hub
	ctx   context.Context
	store repository.RoomStore
	now   func() time.Time
	inbox chan any

	// mu is held for reading while an event is sent to inbox and for
	// writing when the room retires. A retired room forwards to its successor.
	mu      sync.RWMutex
	retired bool

	// Owned by run.
	clients  map[string]*Client
	presence map[string]model.PresenceUser
	list     *model.List
	password string
	loaded   bool
}

func newRoom(h *Hub, id string) *Room {
	return &Room{
		ID:       id,
		hub:      h,
		ctx:      h.ctx,
		store:    h.store,
		now:      h.now,
		inbox:    make(chan any, inboxSize),
		clients:  make(map[string]*Client),
		presence: make(map[string]model.PresenceUser),
	}
}

func (r *Room) run() {
	idle := time.NewTimer(r.hub.idleTimeout)
	defer idle.Stop()
	for {
		select {
		case ev := <-r.inbox:
			r.handle(ev)
			idle.Reset(r.hub.idleTimeout)
		case <-idle.C:
			if len(r.clients) == 0 && r.hub.retire(r) {
				logger.Sugar.Infof("Room %s idle, stopped", r.ID)
				return
			}
			idle.Reset(r.hub.idleTimeout)
		case <-r.ctx.Done():
			for _, c := range r.clients {
				c.close()
			}
			logger.Sugar.Infof("Room %s stopped", r.ID)
			return
		}
	}
}

func (r *Room) handle(ev any) {
	switch ev := ev.(type) {
	case joinEvent:
		ev.reply <- r.join(ev.client, ev.password)
	case leaveEvent:
		r.leave(ev.client)
	case messageEvent:
		r.receive(ev.client, ev.raw)
	case seedEvent:
		ev.reply <- r.seed(ev.list, ev.password)
	case snapshotEvent:
		ev.reply <- r.snapshot()
	default:
		logger.Sugar.Warnf("Room %s: unknown event %T", r.ID, ev)
	}
}

func (r *Room) enqueue(ctx context.Context, ev any) error {
	r.mu.RLock()
	if r.retired {
		r.mu.RUnlock()
		next := r.hub.Room(r.ID)
		if next == nil {
			return ErrRoomClosed
		}
		return next.enqueue(ctx, ev)
	}
	defer r.mu.RUnlock()
	select {
	case r.inbox <- ev:
		return nil
	case <-r.ctx.Done():
		return ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Join admits c if password matches the room's password. On success the
// client has already been queued its init frame and the presence snapshot.
func (r *Room) Join(ctx context.Context, c *Client, password string) error {
	reply := make(chan error, 1)
	if err := r.enqueue(ctx, joinEvent{client: c, password: password, reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-r.ctx.Done():
		return ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Leave removes c from the room. Removing a client that never joined is a no-op.
func (r *Room) Leave(c *Client) {
	_ = r.enqueue(context.Background(), leaveEvent{client: c})
}

// Submit hands a raw frame from c to the actor.
func (r *Room) Submit(c *Client, raw []byte) {
	_ = r.enqueue(context.Background(), messageEvent{client: c, raw: raw})
}

// Seed stores list as the room's list and, when password is not empty, sets
// the room password. Connected clients receive the new list.
func (r *Room) Seed(ctx context.Context, list model.List, password string) error {
	reply := make(chan error, 1)
	if err := r.enqueue(ctx, seedEvent{list: list, password: password, reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-r.ctx.Done():
		return ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Room) query(ctx context.Context) (snapshot, error) {
	reply := make(chan snapshot, 1)
	if err := r.enqueue(ctx, snapshotEvent{reply: reply}); err != nil {
		return snapshot{}, err
	}
	select {
	case s := <-reply:
		return s, s.err
	case <-r.ctx.Done():
		return snapshot{}, ErrRoomClosed
	case <-ctx.Done():
		return snapshot{}, ctx.Err()
	}
}

// List returns the room's current list, or nil if it was never seeded.
func (r *Room) List(ctx context.Context) (*model.List, error) {
	s, err := r.query(ctx)
	return s.list, err
}

// Presence returns the connected users ordered by join time.
func (r *Room) Presence(ctx context.Context) ([]model.PresenceUser, error) {
	s, err := r.query(ctx)
	return s.presence, err
}

func (r *Room) storeContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.ctx, storeTimeout)
}

func (r *Room) ensureLoaded() error {
	if r.loaded {
		return nil
	}
	ctx, cancel := r.storeContext()
	defer cancel()

	list, err := r.store.LoadList(ctx, r.ID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	password, err := r.store.LoadPassword(ctx, r.ID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	stale, err := r.store.LoadPresence(ctx, r.ID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	r.list = list
	r.password = password
	r.loaded = true

	// Nobody is connected to a freshly started room.
	if len(stale) > 0 {
		r.persistPresence()
	}
	return nil
}

func (r *Room) join(c *Client, password string) error {
	if err := r.ensureLoaded(); err != nil {
		logger.Sugar.Errorf("Room %s: rejecting %s: %v", r.ID, c.ID, err)
		return err
	}
	if r.password != "" && r.password != password {
		logger.Sugar.Warnf("Room %s: wrong password from %s (%s)", r.ID, c.ID, c.Avatar)
		return ErrWrongPassword
	}

	r.clients[c.ID] = c
	r.presence[c.ID] = model.PresenceUser{ID: c.ID, Avatar: c.Avatar, JoinedAt: model.NewTimestamp(r.now())}
	r.persistPresence()

	initMsg, err := protocol.Encode(protocol.Init{List: r.list}, nil)
	if err != nil {
		logger.Sugar.Errorf("Room %s: encoding init: %v", r.ID, err)
	} else {
		r.deliver(c, initMsg)
	}
	r.broadcastPresence()

	logger.Sugar.Infof("Room %s: %s joined (%d online)", r.ID, c.Avatar, len(r.presence))
	return nil
}

func (r *Room) leave(c *Client) {
	if cur, ok := r.clients[c.ID]; ok && cur == c {
		delete(r.clients, c.ID)
		close(c.Send)
	}
	if _, ok := r.presence[c.ID]; !ok {
		return
	}
	delete(r.presence, c.ID)
	r.persistPresence()
	r.broadcastPresence()
	logger.Sugar.Infof("Room %s: %s left (%d online)", r.ID, c.Avatar, len(r.presence))
}

func (r *Room) receive(c *Client, raw []byte) {
	frame, err := protocol.Decode(raw)
	if err != nil {
		logger.Sugar.Warnf("Room %s: dropping frame from %s: %v", r.ID, c.ID, err)
		return
	}
	if !protocol.IsClientType(frame.Type()) {
		logger.Sugar.Warnf("Room %s: dropping server-only %s from %s", r.ID, frame.Type(), c.ID)
		return
	}

	var sender *model.PresenceUser
	if p, ok := r.presence[c.ID]; ok {
		sender = &p
	}

	if err := r.apply(frame.Message); err != nil {
		logger.Sugar.Errorf("Room %s: %s from %s rejected: %v", r.ID, frame.Type(), c.ID, err)
		return
	}

	out, err := protocol.Relay(frame, sender)
	if err != nil {
		logger.Sugar.Errorf("Room %s: encoding relay: %v", r.ID, err)
		return
	}
	r.broadcast(out, c.ID)
	logger.Sugar.Debugf("Room %s: %s sent %s", r.ID, c.Avatar, frame.Type())
}

func (r *Room) apply(msg protocol.Message) error {
	if err := r.ensureLoaded(); err != nil {
		return err
	}
	switch m := msg.(type) {
	case protocol.ListUpdate:
		return r.commit(mutate.ReplaceList(m.List, r.now()))
	case protocol.ItemAdd, protocol.ItemUpdate, protocol.ItemDelete, protocol.ItemToggle:
		if r.list == nil {
			return ErrNoList
		}
		op, _ := protocol.ItemOp(m)
		next, err := mutate.Apply(*r.list, op, r.now())
		if err != nil {
			return err
		}
		return r.commit(next)
	case protocol.TypingStart, protocol.TypingStop:
		return nil
	}
	return fmt.Errorf("unhandled message %s", msg.Type())
}

// commit persists next before making it the room's list, so a storage
// failure leaves the room unchanged.
func (r *Room) commit(next model.List) error {
	ctx, cancel := r.storeContext()
	defer cancel()
	if err := r.store.SaveList(ctx, r.ID, next); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	r.list = &next
	return nil
}

func (r *Room) seed(list model.List, password string) error {
	if err := r.ensureLoaded(); err != nil {
		return err
	}
	if err := r.commit(mutate.ReplaceList(list, r.now())); err != nil {
		return err
	}
	if password != "" {
		ctx, cancel := r.storeContext()
		defer cancel()
		if err := r.store.SavePassword(ctx, r.ID, password); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		r.password = password
	}

	out, err := protocol.Encode(protocol.ListUpdate{List: *r.list}, nil)
	if err != nil {
		return err
	}
	r.broadcast(out, "")
	logger.Sugar.Infof("Room %s seeded with list %s", r.ID, list.ID)
	return nil
}

func (r *Room) snapshot() snapshot {
	if err := r.ensureLoaded(); err != nil {
		return snapshot{err: err}
	}
	s := snapshot{presence: r.presenceList()}
	if r.list != nil {
		l := r.list.Clone()
		s.list = &l
	}
	return s
}

func (r *Room) presenceList() []model.PresenceUser {
	users := make([]model.PresenceUser, 0, len(r.presence))
	for _, p := range r.presence {
		users = append(users, p)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].JoinedAt != users[j].JoinedAt {
			return users[i].JoinedAt < users[j].JoinedAt
		}
		return users[i].ID < users[j].ID
	})
	return users
}

func (r *Room) persistPresence() {
	ctx, cancel := r.storeContext()
	defer cancel()
	if err := r.store.SavePresence(ctx, r.ID, r.presenceList()); err != nil {
		logger.Sugar.Errorf("Room %s: saving presence: %v", r.ID, err)
	}
}

func (r *Room) broadcastPresence() {
	out, err := protocol.Encode(protocol.Presence{Users: r.presenceList()}, nil)
	if err != nil {
		logger.Sugar.Errorf("Room %s: encoding presence: %v", r.ID, err)
		return
	}
	r.broadcast(out, "")
}

func (r *Room) broadcast(payload []byte, except string) {
	for id, c := range r.clients {
		if id == except {
			continue
		}
		r.deliver(c, payload)
	}
}

// deliver never blocks. A client whose buffer is full is disconnected; its
// read loop then reports the leave.
func (r *Room) deliver(c *Client, payload []byte) {
	select {
	case c.Send <- payload:
	default:
		if !c.dropped {
			c.dropped = true
			logger.Sugar.Warnf("Room %s: send buffer of %s is full, disconnecting", r.ID, c.ID)
			c.close()
		}
	}
}
