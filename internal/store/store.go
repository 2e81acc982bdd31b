package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// User represents a registered user.
type User struct {
	ID           int64
	Username     string
	DisplayName  string
	PasswordHash string
	CreatedAt    time.Time
}

// Settings holds the per-user preferences the realtime hub consults.
type Settings struct {
	UserID           int64
	ShowOnlineStatus bool
	UpdatedAt        time.Time
}

// Room represents a chat room.
type Room struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// UserStore provides user persistence.
type UserStore interface {
	// CreateUser creates a new user with a hashed password.
	CreateUser(ctx context.Context, username, displayName, passwordHash string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)
}

// SettingsStore provides per-user preference persistence.
type SettingsStore interface {
	// GetSettings returns the user's settings, defaulting show_online_status
	// to true when no row exists yet.
	GetSettings(ctx context.Context, userID int64) (*Settings, error)

	// SetShowOnlineStatus updates the presence visibility preference.
	SetShowOnlineStatus(ctx context.Context, userID int64, show bool) error
}

// RoomStore provides room and membership persistence. RoomMemberNames is the
// membership resolver the hub fans out through.
type RoomStore interface {
	// CreateRoom creates a new room.
	CreateRoom(ctx context.Context, name string) (*Room, error)

	// GetRoomByID retrieves a room by ID.
	GetRoomByID(ctx context.Context, id int64) (*Room, error)

	// AddMember adds a user to a room. Adding twice is a no-op.
	AddMember(ctx context.Context, roomID, userID int64) error

	// RemoveMember removes a user from a room.
	RemoveMember(ctx context.Context, roomID, userID int64) error

	// RoomMemberNames returns the usernames of all members of a room.
	RoomMemberNames(ctx context.Context, roomID int64) ([]string, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	SettingsStore
	RoomStore

	// Close releases underlying resources.
	Close() error
}
