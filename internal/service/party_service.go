package service

import (
	"context"
	"errors"
	"time"

	"github.com/weiawesome/wes-io-live/party-service/internal/audit"
	"github.com/weiawesome/wes-io-live/party-service/internal/auth"
	"github.com/weiawesome/wes-io-live/party-service/internal/domain"
	"github.com/weiawesome/wes-io-live/party-service/internal/hub"
	"github.com/weiawesome/wes-io-live/party-service/internal/reconcile"
	"github.com/weiawesome/wes-io-live/party-service/internal/store"
	"github.com/weiawesome/wes-io-live/party-service/pkg/log"
	"github.com/weiawesome/wes-io-live/party-service/pkg/pubsub"
)

const defaultOpTimeout = 5 * time.Second

// Options tunes a party service. Zero values take defaults.
type Options struct {
	// OpTimeout bounds store and bus calls that run outside a frame, such as
	// compensation pulses.
	OpTimeout time.Duration
	// Now is the clock used for timestamps and throttling.
	Now func() time.Time
}

func withDefaults(opts Options) Options {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = defaultOpTimeout
	}
	return opts
}

type partyService struct {
	hub       *hub.Hub
	guard     auth.Guard
	store     store.RoomStore
	bus       pubsub.PubSub
	engine    *reconcile.Engine
	subs      *subscriptions
	now       func() time.Time
	opTimeout time.Duration
}

func NewPartyService(
	h *hub.Hub,
	guard auth.Guard,
	st store.RoomStore,
	bus pubsub.PubSub,
	engine *reconcile.Engine,
	opts Options,
) PartyService {
	opts = withDefaults(opts)
	return &partyService{
		hub:       h,
		guard:     guard,
		store:     st,
		bus:       bus,
		engine:    engine,
		subs:      newSubscriptions(bus, h),
		now:       opts.Now,
		opTimeout: opts.OpTimeout,
	}
}

func (s *partyService) authenticate(ctx context.Context, token, roomID string) (domain.Identity, error) {
	id, err := s.guard.Authenticate(token)
	if err != nil {
		audit.LogWithDetail(ctx, audit.ActionAuthFailed, "", roomID, err.Error(), "frame rejected")
		return domain.Identity{}, err
	}
	return id, nil
}

func (s *partyService) HandleJoin(ctx context.Context, c *hub.Client, cmd domain.JoinCommand) error {
	id, err := s.authenticate(ctx, cmd.Token, cmd.RoomID)
	if err != nil {
		return err
	}
	l := log.Ctx(ctx)

	if cmd.Link != "" {
		created, err := s.store.CreateRoom(ctx, cmd.RoomID, cmd.Link)
		if err != nil {
			return err
		}
		if created {
			l.Info().Str(log.FieldRoomID, cmd.RoomID).Str("link", cmd.Link).Msg("room created")
		}
	} else {
		exists, err := s.store.Exists(ctx, cmd.RoomID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrRoomNotFound
		}
	}

	// A socket is in at most one room.
	if current, prev := c.Session.CurrentRoom(); current != "" && current != cmd.RoomID {
		s.leaveCurrent(ctx, c, current, prev)
	}

	// relay reads the session identity for echo suppression, so it is set
	// before the socket is indexed.
	c.Session.JoinRoom(cmd.RoomID, id)
	added := s.hub.JoinRoom(c, cmd.RoomID)

	// A socket that was already in the room keeps its place on failure; a new
	// one is taken out again so a retried join announces the user.
	undo := func() {
		if !added {
			return
		}
		s.leaveLocal(ctx, c, cmd.RoomID)
	}

	if err := s.subs.ensure(ctx, cmd.RoomID); err != nil {
		undo()
		return err
	}

	if _, err := s.store.AddMember(ctx, cmd.RoomID, domain.Member{UserID: id.UserID, Name: id.DisplayName}); err != nil {
		undo()
		return err
	}

	if added {
		ev := domain.NewMemberEvent(domain.MsgTypeUserJoined, cmd.RoomID, id, s.now())
		if err := s.publish(ctx, cmd.RoomID, id.UserID, ev.Type, ev); err != nil {
			undo()
			return err
		}
		audit.Log(ctx, audit.ActionJoinRoom, id.UserID, cmd.RoomID, "user joined room")
	}

	ack := &domain.JoinedMessage{
		Type:       domain.MsgTypeJoined,
		ActionType: domain.ActionSystem,
		RoomID:     cmd.RoomID,
		UserID:     id.UserID,
		Name:       id.DisplayName,
	}
	if room, err := s.store.GetRoom(ctx, cmd.RoomID); err == nil {
		ack.Link = room.Link
		ack.Members = room.Members
		ack.Player = &room.Player
	} else {
		l.Warn().Err(err).Str(log.FieldRoomID, cmd.RoomID).Msg("failed to load room snapshot for join ack")
	}

	return c.SendMessage(ack)
}

func (s *partyService) HandleMessage(ctx context.Context, c *hub.Client, cmd domain.MessageCommand) error {
	id, err := s.authenticate(ctx, cmd.Token, cmd.RoomID)
	if err != nil {
		return err
	}

	exists, err := s.store.Exists(ctx, cmd.RoomID)
	if err != nil {
		return err
	}
	if !exists {
		return domain.ErrRoomNotFound
	}

	ev := domain.NewChatEvent(cmd.RoomID, id, cmd.Content, s.now())
	return s.publish(ctx, cmd.RoomID, id.UserID, ev.Type, ev)
}

func (s *partyService) HandleLeave(ctx context.Context, c *hub.Client, cmd domain.LeaveCommand) error {
	id, err := s.authenticate(ctx, cmd.Token, cmd.RoomID)
	if err != nil {
		return err
	}

	removed, err := s.store.RemoveMember(ctx, cmd.RoomID, id.UserID)
	if errors.Is(err, domain.ErrRoomNotFound) {
		return err
	}

	s.leaveLocal(ctx, c, cmd.RoomID)

	if err != nil {
		return err
	}

	if removed {
		ev := domain.NewMemberEvent(domain.MsgTypeUserLeft, cmd.RoomID, id, s.now())
		if err := s.publish(ctx, cmd.RoomID, id.UserID, ev.Type, ev); err != nil {
			return err
		}
		audit.Log(ctx, audit.ActionLeaveRoom, id.UserID, cmd.RoomID, "user left room")
	} else {
		l := log.Ctx(ctx)
		l.Info().
			Str(log.FieldUserID, id.UserID).
			Str(log.FieldRoomID, cmd.RoomID).
			Msg("leave from user who was not a member")
	}

	return c.SendMessage(&domain.LeftMessage{
		Type:       domain.MsgTypeLeft,
		ActionType: domain.ActionSystem,
		RoomID:     cmd.RoomID,
		UserID:     id.UserID,
	})
}

func (s *partyService) HandleVideoState(ctx context.Context, c *hub.Client, cmd domain.VideoStateCommand) error {
	id, err := s.authenticate(ctx, cmd.Token, cmd.RoomID)
	if err != nil {
		return err
	}

	room, err := s.store.GetRoom(ctx, cmd.RoomID)
	if err != nil {
		return err
	}

	now := s.now()
	player, verdict := s.engine.Reconcile(room, cmd.Update, id.UserID, now)
	if verdict != reconcile.Accepted {
		l := log.Ctx(ctx)
		l.Debug().
			Str(log.FieldUserID, id.UserID).
			Str(log.FieldRoomID, cmd.RoomID).
			Str(log.FieldVerdict, verdict.String()).
			Float64("current_time", cmd.Update.CurrentTime).
			Bool("is_playing", cmd.Update.IsPlaying).
			Msg("video state rejected")
		return nil
	}

	if err := s.store.SetPlayer(ctx, cmd.RoomID, player); err != nil {
		return err
	}

	ev := domain.NewVideoStateEvent(cmd.RoomID, id, player, now, false)
	if err := s.publish(ctx, cmd.RoomID, id.UserID, ev.Type, ev); err != nil {
		return err
	}
	audit.LogWithDetail(ctx, audit.ActionVideoAccepted, id.UserID, cmd.RoomID, verdict.String(), "video state accepted")

	roomID := cmd.RoomID
	s.engine.SchedulePulse(player, func(next domain.Player) {
		pctx, cancel := context.WithTimeout(context.Background(), s.opTimeout)
		defer cancel()

		pulse := domain.NewVideoStateEvent(roomID, id, next, s.now(), true)
		if err := s.publish(pctx, roomID, id.UserID, pulse.Type, pulse); err != nil {
			l := log.L()
			l.Warn().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to publish compensation pulse")
		}
	})

	return nil
}

func (s *partyService) HandlePing(ctx context.Context, c *hub.Client, cmd domain.PingCommand) error {
	return c.SendMessage(&domain.PongMessage{
		Type:       domain.MsgTypePong,
		ActionType: domain.ActionSystem,
		Timestamp:  cmd.Timestamp,
		ServerTime: domain.EpochMillis(s.now()),
	})
}

// HandleDisconnect runs the implicit leave for a closed socket. Remote
// failures are logged; local cleanup always completes.
func (s *partyService) HandleDisconnect(ctx context.Context, c *hub.Client) error {
	roomID, id := c.Session.CurrentRoom()
	if roomID == "" {
		return nil
	}

	s.leaveCurrent(ctx, c, roomID, id)
	audit.Log(ctx, audit.ActionDisconnect, id.UserID, roomID, "socket closed")
	return nil
}

// leaveCurrent removes c from roomID on behalf of id, best-effort.
func (s *partyService) leaveCurrent(ctx context.Context, c *hub.Client, roomID string, id domain.Identity) {
	l := log.Ctx(ctx)

	removed, err := s.store.RemoveMember(ctx, roomID, id.UserID)
	if err != nil {
		l.Warn().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to remove member")
	}

	s.leaveLocal(ctx, c, roomID)

	if removed {
		ev := domain.NewMemberEvent(domain.MsgTypeUserLeft, roomID, id, s.now())
		if err := s.publish(ctx, roomID, id.UserID, ev.Type, ev); err != nil {
			l.Warn().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to publish user_left")
		}
	}
}

func (s *partyService) leaveLocal(ctx context.Context, c *hub.Client, roomID string) {
	s.hub.LeaveRoom(c, roomID)
	if current, _ := c.Session.CurrentRoom(); current == roomID {
		c.Session.LeaveRoom()
	}
	s.subs.release(ctx, roomID)
}

func (s *partyService) publish(ctx context.Context, roomID, origin, eventType string, payload interface{}) error {
	return publishEvent(ctx, s.bus, roomID, origin, eventType, payload)
}

// publishEvent sends payload, the exact frame sockets will receive, to the
// room's bus channel.
func publishEvent(ctx context.Context, bus pubsub.Publisher, roomID, origin, eventType string, payload interface{}) error {
	ev, err := pubsub.NewEvent(eventType, roomID, origin, payload)
	if err != nil {
		return err
	}
	if err := bus.Publish(ctx, pubsub.RoomChannel(roomID), ev); err != nil {
		return domain.Transient("publish "+eventType, err)
	}
	return nil
}
