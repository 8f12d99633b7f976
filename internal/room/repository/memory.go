package repository

import (
	"context"
	"sync"

	"livelist/internal/list/model"
)

type memoryRoom struct {
	list     *model.List
	password string
	presence []model.PresenceUser
}

// MemoryStore keeps rooms in process memory. It is used when no database is
// configured, and in tests.
type MemoryStore struct {
	mu    sync.Mutex
	rooms map[string]*memoryRoom
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rooms: make(map[string]*memoryRoom)}
}

func (m *MemoryStore) room(id string) *memoryRoom {
	r, ok := m.rooms[id]
	if !ok {
		r = &memoryRoom{}
		m.rooms[id] = r
	}
	return r
}

func (m *MemoryStore) LoadList(_ context.Context, roomID string) (*model.List, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[roomID]
	if !ok || r.list == nil {
		return nil, nil
	}
	l := r.list.Clone()
	return &l, nil
}

func (m *MemoryStore) SaveList(_ context.Context, roomID string, list model.List) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := list.Clone()
	m.room(roomID).list = &l
	return nil
}

func (m *MemoryStore) LoadPassword(_ context.Context, roomID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rooms[roomID]; ok {
		return r.password, nil
	}
	return "", nil
}

func (m *MemoryStore) SavePassword(_ context.Context, roomID, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.room(roomID).password = password
	return nil
}

func (m *MemoryStore) SavePresence(_ context.Context, roomID string, users []model.PresenceUser) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.room(roomID).presence = append([]model.PresenceUser(nil), users...)
	return nil
}

func (m *MemoryStore) LoadPresence(_ context.Context, roomID string) ([]model.PresenceUser, error) {
	return m.Presence(roomID), nil
}

// Has reports whether anything was ever stored for roomID.
func (m *MemoryStore) Has(roomID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rooms[roomID]
	return ok
}

// Presence returns the last saved presence snapshot for a room.
func (m *MemoryStore) Presence(roomID string) []model.PresenceUser {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rooms[roomID]; ok {
		return append([]model.PresenceUser(nil), r.presence...)
	}
	return nil
}
