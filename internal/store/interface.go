package store

import (
	"context"

	"github.com/weiawesome/wes-io-live/party-service/internal/domain"
)

// RoomStore holds room membership, link and player state shared by every
// worker. Infrastructure failures are returned wrapping domain.ErrTransient;
// operations on unknown rooms return domain.ErrRoomNotFound.
type RoomStore interface {
	// CreateRoom creates the room if it does not exist. It reports whether
	// this call created it; an existing room is left untouched.
	CreateRoom(ctx context.Context, roomID, link string) (bool, error)

	// Exists reports whether the room exists.
	Exists(ctx context.Context, roomID string) (bool, error)

	// GetRoom returns the full room record.
	GetRoom(ctx context.Context, roomID string) (*domain.Room, error)

	// AddMember adds m unless a member with the same user id is present.
	// It reports whether the list changed.
	AddMember(ctx context.Context, roomID string, m domain.Member) (bool, error)

	// RemoveMember removes userID. It reports whether the user was a member.
	RemoveMember(ctx context.Context, roomID, userID string) (bool, error)

	// SetPlayer overwrites the player snapshot.
	SetPlayer(ctx context.Context, roomID string, p domain.Player) error

	// Close closes the store connection.
	Close() error
}
