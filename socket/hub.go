package socket

import (
	"context"
	"sync"
	"time"

	"livelist/internal/room/repository"
	"livelist/pkg/logger"
)

// DefaultIdleTimeout is how long a room with no clients keeps its actor.
const DefaultIdleTimeout = time.Minute

// Hub owns the room actors of one server. A room's actor starts on first use
// and stops once it has had no clients for the idle timeout; its state lives
// in the store, so the next use reloads it.
type Hub struct {
	store       repository.RoomStore
	now         func() time.Time
	idleTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	rooms map[string]*Room
}

type HubOption func(*Hub)

// WithClock replaces time.Now for updatedAt and joinedAt stamps.
func WithClock(now func() time.Time) HubOption {
	return func(h *Hub) { h.now = now }
}

// WithIdleTimeout sets how long an empty room stays running.
func WithIdleTimeout(d time.Duration) HubOption {
	return func(h *Hub) { h.idleTimeout = d }
}

func NewHub(store repository.RoomStore, opts ...HubOption) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		store:       store,
		now:         time.Now,
		idleTimeout: DefaultIdleTimeout,
		ctx:         ctx,
		cancel:      cancel,
		rooms:       make(map[string]*Room),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Room returns the actor for id, starting it if needed. It returns nil once
// the hub is closed.
func (h *Hub) Room(id string) *Room {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ctx.Err() != nil {
		return nil
	}
	if r, ok := h.rooms[id]; ok {
		return r
	}
	r := newRoom(h, id)
	h.rooms[id] = r
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		r.run()
	}()
	logger.Sugar.Infof("Room %s started", id)
	return r
}

// retire removes r from the hub if nothing is waiting to reach it. Senders
// hold r.mu for reading, so a failed TryLock means an event is on its way.
func (h *Hub) retire(r *Room) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !r.mu.TryLock() {
		return false
	}
	defer r.mu.Unlock()
	if len(r.inbox) > 0 {
		return false
	}
	r.retired = true
	if h.rooms[r.ID] == r {
		delete(h.rooms, r.ID)
	}
	return true
}

// Len reports how many rooms are running.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms)
}

// Close stops every room and disconnects their clients.
func (h *Hub) Close() {
	h.mu.Lock()
	h.cancel()
	h.mu.Unlock()
	h.wg.Wait()
}
