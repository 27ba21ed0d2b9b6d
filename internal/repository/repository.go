package repository

import (
	"context"
	"database/sql"
	"time"

	bridge "daikin_bridge"
)

type Authorization interface {
	Create(ctx context.Context, username, hash string) (int, error)
	GetByUsername(ctx context.Context, username string) (*bridge.User, error)
}

// SnapshotRepo persists the single most recent device snapshot.
type SnapshotRepo interface {
	Save(ctx context.Context, s bridge.DeviceSnapshot) error
	Load(ctx context.Context) (bridge.DeviceSnapshot, bool, error)
}

// EventRepo is the append-only command/refresh journal.
type EventRepo interface {
	Append(ctx context.Context, e bridge.DeviceEvent) error
	List(ctx context.Context, from, to time.Time, typ string) ([]bridge.DeviceEvent, error)
}

type Repository struct {
	Snapshots SnapshotRepo
	Events    EventRepo
	Auth      Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		Snapshots: NewSnapshotSQLite(db),
		Events:    NewEventSQLite(db),
		Auth:      NewUserRepository(db),
	}
}
