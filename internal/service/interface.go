package service

import (
	"context"
	"errors"

	"github.com/weiawesome/wes-io-live/party-service/internal/domain"
	"github.com/weiawesome/wes-io-live/party-service/internal/hub"
)

var (
	ErrLinkNotSet      = errors.New("no video link set for this room")
	ErrCatalogDisabled = errors.New("room catalog is disabled")
)

// PartyService executes the socket commands of one worker. Returned errors
// wrap one of domain.ErrAuth, domain.ErrProtocol or domain.ErrTransient.
type PartyService interface {
	HandleJoin(ctx context.Context, c *hub.Client, cmd domain.JoinCommand) error
	HandleMessage(ctx context.Context, c *hub.Client, cmd domain.MessageCommand) error
	HandleLeave(ctx context.Context, c *hub.Client, cmd domain.LeaveCommand) error
	HandleVideoState(ctx context.Context, c *hub.Client, cmd domain.VideoStateCommand) error
	HandlePing(ctx context.Context, c *hub.Client, cmd domain.PingCommand) error
	HandleDisconnect(ctx context.Context, c *hub.Client) error
}

// RoomService backs the HTTP endpoints.
type RoomService interface {
	CreateRoom(ctx context.Context, userID string, req *domain.CreateRoomRequest) (*domain.CreateRoomResponse, error)
	GetRoomInfo(ctx context.Context, roomID string) (*domain.RoomInfo, error)
	PostMessage(ctx context.Context, id domain.Identity, roomID, content string) (*domain.ChatEvent, error)
	ResolvePartyLink(ctx context.Context, token, roomID string) (string, error)
	ListMyRooms(ctx context.Context, userID string) ([]domain.CatalogEntry, error)
}
