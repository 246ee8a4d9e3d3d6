package service

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/weiawesome/wes-io-live/party-service/internal/audit"
	"github.com/weiawesome/wes-io-live/party-service/internal/auth"
	"github.com/weiawesome/wes-io-live/party-service/internal/catalog"
	"github.com/weiawesome/wes-io-live/party-service/internal/domain"
	"github.com/weiawesome/wes-io-live/party-service/internal/hub"
	"github.com/weiawesome/wes-io-live/party-service/internal/roomid"
	"github.com/weiawesome/wes-io-live/party-service/internal/store"
	"github.com/weiawesome/wes-io-live/party-service/pkg/log"
	"github.com/weiawesome/wes-io-live/party-service/pkg/pubsub"
)

const maxCreateAttempts = 3

type roomService struct {
	hub     *hub.Hub
	guard   auth.Guard
	store   store.RoomStore
	bus     pubsub.Publisher
	catalog catalog.Repository
	ids     *roomid.Generator
	opts    Options

	sf singleflight.Group
}

// NewRoomService creates the HTTP-facing room service. repo may be nil when
// the catalog is disabled.
func NewRoomService(
	h *hub.Hub,
	guard auth.Guard,
	st store.RoomStore,
	bus pubsub.Publisher,
	repo catalog.Repository,
	ids *roomid.Generator,
	opts Options,
) RoomService {
	if ids == nil {
		ids = roomid.NewHexGenerator()
	}
	opts = withDefaults(opts)
	return &roomService{
		hub:     h,
		guard:   guard,
		store:   st,
		bus:     bus,
		catalog: repo,
		ids:     ids,
		opts:    opts,
	}
}

func (s *roomService) CreateRoom(ctx context.Context, userID string, req *domain.CreateRoomRequest) (*domain.CreateRoomResponse, error) {
	var roomID string
	for attempt := 0; attempt < maxCreateAttempts && roomID == ""; attempt++ {
		id, err := s.ids.Generate()
		if err != nil {
			return nil, err
		}
		created, err := s.store.CreateRoom(ctx, id, req.Link)
		if err != nil {
			return nil, err
		}
		if created {
			roomID = id
		}
	}
	if roomID == "" {
		return nil, fmt.Errorf("failed to allocate a free room id after %d attempts", maxCreateAttempts)
	}

	if s.catalog != nil {
		entry := &domain.CatalogEntry{RoomID: roomID, Link: req.Link, CreatedBy: userID}
		if err := s.catalog.Record(ctx, entry); err != nil {
			// The live room already exists; a missing catalog row only
			// hides it from the creator's listing.
			l := log.Ctx(ctx)
			l.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to record room in catalog")
		}
	}

	audit.Log(ctx, audit.ActionCreateRoom, userID, roomID, "room created")
	return &domain.CreateRoomResponse{RoomID: roomID, Link: req.Link}, nil
}

func (s *roomService) GetRoomInfo(ctx context.Context, roomID string) (*domain.RoomInfo, error) {
	// Concurrent lookups of the same room share one store round trip.
	result, err, _ := s.sf.Do(roomID, func() (interface{}, error) {
		return s.loadRoomInfo(ctx, roomID)
	})
	if err != nil {
		return nil, err
	}

	shared, ok := result.(*domain.RoomInfo)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from singleflight")
	}

	info := *shared
	info.LocalConnections = s.hub.RoomClientCount(roomID)
	return &info, nil
}

func (s *roomService) loadRoomInfo(ctx context.Context, roomID string) (*domain.RoomInfo, error) {
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	info := &domain.RoomInfo{Room: *room}

	if s.catalog != nil {
		entry, err := s.catalog.Get(ctx, roomID)
		switch {
		case err == nil:
			info.CreatedBy = entry.CreatedBy
			createdAt := entry.CreatedAt
			info.CreatedAt = &createdAt
		case errors.Is(err, catalog.ErrNotFound):
			// created by a socket join, never catalogued
		default:
			l := log.Ctx(ctx)
			l.Warn().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to read catalog entry")
		}
	}

	return info, nil
}

func (s *roomService) PostMessage(ctx context.Context, id domain.Identity, roomID, content string) (*domain.ChatEvent, error) {
	exists, err := s.store.Exists(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.ErrRoomNotFound
	}

	ev := domain.NewChatEvent(roomID, id, content, s.opts.Now())
	if err := publishEvent(ctx, s.bus, roomID, id.UserID, ev.Type, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

func (s *roomService) ResolvePartyLink(ctx context.Context, token, roomID string) (string, error) {
	if _, err := s.guard.Authenticate(token); err != nil {
		return "", err
	}

	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return "", err
	}
	if room.Link == "" {
		return "", ErrLinkNotSet
	}
	return room.Link, nil
}

func (s *roomService) ListMyRooms(ctx context.Context, userID string) ([]domain.CatalogEntry, error) {
	if s.catalog == nil {
		return nil, ErrCatalogDisabled
	}
	return s.catalog.ListByCreator(ctx, userID)
}
