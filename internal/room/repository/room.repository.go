package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"livelist/internal/list/model"
	"livelist/pkg/logger"
)

// RoomStore persists the durable part of a room: its list, password and the
// last presence snapshot. A room with no stored list loads as (nil, nil).
type RoomStore interface {
	LoadList(ctx context.Context, roomID string) (*model.List, error)
	SaveList(ctx context.Context, roomID string, list model.List) error
	LoadPassword(ctx context.Context, roomID string) (string, error)
	SavePassword(ctx context.Context, roomID, password string) error
	LoadPresence(ctx context.Context, roomID string) ([]model.PresenceUser, error)
	SavePresence(ctx context.Context, roomID string, users []model.PresenceUser) error
}

// Schema is applied by Migrate. list and presence are JSON documents.
const Schema = `CREATE TABLE IF NOT EXISTS rooms (
	id         TEXT PRIMARY KEY,
	list       JSONB,
	password   TEXT NOT NULL DEFAULT '',
	presence   JSONB NOT NULL DEFAULT '[]',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

type RoomRepository struct {
	DB *sql.DB
}

func NewRoomRepository(db *sql.DB) *RoomRepository {
	return &RoomRepository{DB: db}
}

func (r *RoomRepository) Migrate(ctx context.Context) error {
	if _, err := r.DB.ExecContext(ctx, Schema); err != nil {
		logger.Sugar.Errorf("Failed to migrate rooms table: %v", err)
		return fmt.Errorf("migrate rooms: %w", err)
	}
	return nil
}

func (r *RoomRepository) LoadList(ctx context.Context, roomID string) (*model.List, error) {
	var raw []byte
	err := r.DB.QueryRowContext(ctx, "SELECT list FROM rooms WHERE id = $1", roomID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to load list for room %s: %v", roomID, err)
		return nil, fmt.Errorf("load list %s: %w", roomID, err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var list *model.List
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("decode list %s: %w", roomID, err)
	}
	return list, nil
}

func (r *RoomRepository) SaveList(ctx context.Context, roomID string, list model.List) error {
	raw, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode list %s: %w", roomID, err)
	}
	_, err = r.DB.ExecContext(ctx, `INSERT INTO rooms (id, list, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (id) DO UPDATE SET list = $2, updated_at = NOW()`, roomID, string(raw))
	if err != nil {
		logger.Sugar.Errorf("Failed to save list for room %s: %v", roomID, err)
		return fmt.Errorf("save list %s: %w", roomID, err)
	}
	return nil
}

func (r *RoomRepository) LoadPassword(ctx context.Context, roomID string) (string, error) {
	var password string
	err := r.DB.QueryRowContext(ctx, "SELECT password FROM rooms WHERE id = $1", roomID).Scan(&password)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to load password for room %s: %v", roomID, err)
		return "", fmt.Errorf("load password %s: %w", roomID, err)
	}
	return password, nil
}

func (r *RoomRepository) SavePassword(ctx context.Context, roomID, password string) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO rooms (id, password, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (id) DO UPDATE SET password = $2, updated_at = NOW()`, roomID, password)
	if err != nil {
		logger.Sugar.Errorf("Failed to save password for room %s: %v", roomID, err)
		return fmt.Errorf("save password %s: %w", roomID, err)
	}
	return nil
}

func (r *RoomRepository) LoadPresence(ctx context.Context, roomID string) ([]model.PresenceUser, error) {
	var raw []byte
	err := r.DB.QueryRowContext(ctx, "SELECT presence FROM rooms WHERE id = $1", roomID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to load presence for room %s: %v", roomID, err)
		return nil, fmt.Errorf("load presence %s: %w", roomID, err)
	}
	var users []model.PresenceUser
	if err := json.Unmarshal(raw, &users); err != nil {
		return nil, fmt.Errorf("decode presence %s: %w", roomID, err)
	}
	return users, nil
}

func (r *RoomRepository) SavePresence(ctx context.Context, roomID string, users []model.PresenceUser) error {
	if users == nil {
		users = []model.PresenceUser{}
	}
	raw, err := json.Marshal(users)
	if err != nil {
		return fmt.Errorf("encode presence %s: %w", roomID, err)
	}
	_, err = r.DB.ExecContext(ctx, `INSERT INTO rooms (id, presence) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET presence = $2`, roomID, string(raw))
	if err != nil {
		logger.Sugar.Errorf("Failed to save presence for room %s: %v", roomID, err)
		return fmt.Errorf("save presence %s: %w", roomID, err)
	}
	return nil
}
