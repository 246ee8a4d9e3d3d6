package service

import (
	"context"
	"sync"

	"github.com/weiawesome/wes-io-live/party-service/internal/domain"
	"github.com/weiawesome/wes-io-live/party-service/internal/hub"
	"github.com/weiawesome/wes-io-live/party-service/pkg/log"
	"github.com/weiawesome/wes-io-live/party-service/pkg/pubsub"
)

// subscriptions keeps this worker's bus subscriptions in step with the hub's
// room index. Decisions are serialized so a release racing a join can never
// leave a room with local sockets but no subscription.
type subscriptions struct {
	mu     sync.Mutex
	bus    pubsub.Subscriber
	hub    *hub.Hub
	active map[string]struct{}
}

func newSubscriptions(bus pubsub.Subscriber, h *hub.Hub) *subscriptions {
	return &subscriptions{
		bus:    bus,
		hub:    h,
		active: make(map[string]struct{}),
	}
}

func (s *subscriptions) ensure(ctx context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.active[roomID]; ok {
		return nil
	}
	if err := s.bus.Subscribe(ctx, pubsub.RoomChannel(roomID)); err != nil {
		return domain.Transient("subscribe", err)
	}
	s.active[roomID] = struct{}{}
	return nil
}

// release unsubscribes from roomID once no local socket is left in it.
func (s *subscriptions) release(ctx context.Context, roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.active[roomID]; !ok {
		return
	}
	if s.hub.RoomClientCount(roomID) > 0 {
		return
	}
	if err := s.bus.Unsubscribe(ctx, pubsub.RoomChannel(roomID)); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to unsubscribe from room channel")
		return
	}
	delete(s.active, roomID)
}
