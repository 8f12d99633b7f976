package live

import (
	"sync"
	"time"

	"livelist/internal/list/model"
)

const (
	// TypingTimeout is how long a typing entry lives without a fresh typing_start.
	TypingTimeout = 5 * time.Second
	typingSweep   = time.Second
)

// TypingStore tracks who is composing in a room. Entries expire on their own
// so a lost typing_stop cannot leave someone typing forever.
type TypingStore struct {
	now func() time.Time

	mu    sync.Mutex
	users []model.TypingUser
	subs  listeners[[]model.TypingUser]

	stop     chan struct{}
	stopOnce sync.Once
}

type TypingOption func(*TypingStore)

func WithTypingClock(now func() time.Time) TypingOption {
	return func(t *TypingStore) { t.now = now }
}

// NewTypingStore starts the background sweep; Clear stops it.
func NewTypingStore(opts ...TypingOption) *TypingStore {
	t := &TypingStore{now: time.Now, stop: make(chan struct{})}
	for _, opt := range opts {
		opt(t)
	}
	go t.sweep()
	return t
}

func (t *TypingStore) sweep() {
	ticker := time.NewTicker(typingSweep)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			t.Prune()
		case <-t.stop:
			return
		}
	}
}

func (t *TypingStore) set(fn func([]model.TypingUser) ([]model.TypingUser, bool)) {
	t.mu.Lock()
	next, changed := fn(t.users)
	if !changed {
		t.mu.Unlock()
		return
	}
	t.users = next
	snapshot := append([]model.TypingUser(nil), next...)
	t.mu.Unlock()
	t.subs.emit(snapshot)
}

// StartTyping records u as typing now, replacing any earlier entry.
func (t *TypingStore) StartTyping(u model.PresenceUser) {
	entry := model.TypingUser{ID: u.ID, Avatar: u.Avatar, StartedAt: model.NewTimestamp(t.now())}
	t.set(func(users []model.TypingUser) ([]model.TypingUser, bool) {
		users = removeByID(users, u.ID, typingID)
		return append(users, entry), true
	})
}

func (t *TypingStore) StopTyping(id string) {
	t.set(func(users []model.TypingUser) ([]model.TypingUser, bool) {
		next := removeByID(users, id, typingID)
		return next, len(next) != len(users)
	})
}

// Prune drops entries that started TypingTimeout or more ago.
func (t *TypingStore) Prune() {
	now := t.now()
	t.set(func(users []model.TypingUser) ([]model.TypingUser, bool) {
		next := users[:0:0]
		for _, u := range users {
			if now.Sub(u.StartedAt.Time()) < TypingTimeout {
				next = append(next, u)
			}
		}
		return next, len(next) != len(users)
	})
}

func (t *TypingStore) Users() []model.TypingUser {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]model.TypingUser(nil), t.users...)
}

func (t *TypingStore) Subscribe(fn func([]model.TypingUser)) func() {
	return t.subs.add(fn)
}

// Clear empties the store and stops the sweep.
func (t *TypingStore) Clear() {
	t.stopOnce.Do(func() { close(t.stop) })
	t.set(func(users []model.TypingUser) ([]model.TypingUser, bool) {
		return nil, len(users) > 0
	})
}

func typingID(u model.TypingUser) string { return u.ID }
