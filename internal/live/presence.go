package live

import (
	"sync"

	"livelist/internal/list/model"
)

// PresenceStore mirrors the last presence snapshot pushed by a room.
type PresenceStore struct {
	mu    sync.Mutex
	users []model.PresenceUser
	subs  listeners[[]model.PresenceUser]
}

func NewPresenceStore() *PresenceStore {
	return &PresenceStore{}
}

func (p *PresenceStore) set(fn func([]model.PresenceUser) []model.PresenceUser) {
	p.mu.Lock()
	p.users = fn(p.users)
	snapshot := append([]model.PresenceUser(nil), p.users...)
	p.mu.Unlock()
	p.subs.emit(snapshot)
}

// SetUsers replaces the whole set.
func (p *PresenceStore) SetUsers(users []model.PresenceUser) {
	p.set(func([]model.PresenceUser) []model.PresenceUser {
		return append([]model.PresenceUser(nil), users...)
	})
}

// AddUser adds u unless a user with the same id is present.
func (p *PresenceStore) AddUser(u model.PresenceUser) {
	p.set(func(users []model.PresenceUser) []model.PresenceUser {
		for _, existing := range users {
			if existing.ID == u.ID {
				return users
			}
		}
		return append(users, u)
	})
}

func (p *PresenceStore) RemoveUser(id string) {
	p.set(func(users []model.PresenceUser) []model.PresenceUser {
		return removeByID(users, id, func(u model.PresenceUser) string { return u.ID })
	})
}

func (p *PresenceStore) Clear() {
	p.set(func([]model.PresenceUser) []model.PresenceUser { return nil })
}

func (p *PresenceStore) Users() []model.PresenceUser {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.PresenceUser(nil), p.users...)
}

// Subscribe calls fn with every new snapshot until the returned func is called.
func (p *PresenceStore) Subscribe(fn func([]model.PresenceUser)) func() {
	return p.subs.add(fn)
}

func removeByID[T any](in []T, id string, key func(T) string) []T {
	out := in[:0:0]
	for _, v := range in {
		if key(v) != id {
			out = append(out, v)
		}
	}
	return out
}
