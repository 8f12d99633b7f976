package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"livelist/internal/list/model"
	"livelist/socket"
)

var ErrShuttingDown = errors.New("server is shutting down")

// RoomService is the out-of-band HTTP path into the room actors. Writes go
// through the actor so they are ordered with live socket traffic.
type RoomService struct {
	Hub *socket.Hub
}

func NewRoomService(hub *socket.Hub) *RoomService {
	return &RoomService{Hub: hub}
}

// CreateRoom stores list as the list of roomID. An empty roomID falls back to
// the list id, then to a generated id.
func (s *RoomService) CreateRoom(ctx context.Context, roomID string, list model.List, password string) (model.CreateRoomResponse, error) {
	if roomID == "" {
		roomID = list.ID
	}
	if roomID == "" {
		roomID = uuid.NewString()
	}
	if list.ID == "" {
		list.ID = roomID
	}

	room := s.Hub.Room(roomID)
	if room == nil {
		return model.CreateRoomResponse{}, ErrShuttingDown
	}
	if err := room.Seed(ctx, list, password); err != nil {
		return model.CreateRoomResponse{}, err
	}
	return model.CreateRoomResponse{RoomID: roomID, ListID: list.ID}, nil
}

// GetList returns the stored list of roomID, or nil when the room has none.
func (s *RoomService) GetList(ctx context.Context, roomID string) (*model.List, error) {
	room := s.Hub.Room(roomID)
	if room == nil {
		return nil, ErrShuttingDown
	}
	return room.List(ctx)
}

func (s *RoomService) GetPresence(ctx context.Context, roomID string) ([]model.PresenceUser, error) {
	room := s.Hub.Room(roomID)
	if room == nil {
		return nil, ErrShuttingDown
	}
	return room.Presence(ctx)
}
