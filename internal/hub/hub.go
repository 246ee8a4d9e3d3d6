package hub

import (
	"context"
	"sync"

	"github.com/weiawesome/wes-io-live/party-service/internal/config"
	"github.com/weiawesome/wes-io-live/party-service/internal/domain"
	"github.com/weiawesome/wes-io-live/party-service/pkg/log"
	"github.com/weiawesome/wes-io-live/party-service/pkg/pubsub"
)

// Hub owns the sockets connected to this worker and the room -> sockets
// index used to relay bus events.
type Hub struct {
	clients    map[string]*Client            // clientID -> client
	rooms      map[string]map[string]*Client // roomID -> clientID -> client
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	live       sync.WaitGroup // one count per registered client
	config     config.WebSocketConfig

	runMu   sync.Mutex
	running bool
	stopped bool
	stop    chan struct{}
	done    chan struct{}
}

// Stats is a point-in-time view of the hub.
type Stats struct {
	Clients int `json:"clients"`
	Rooms   int `json:"rooms"`
}

func NewHub(cfg config.WebSocketConfig) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		config:     cfg,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Run processes registrations and relays bus events until Stop is called or
// events is closed.
func (h *Hub) Run(events <-chan *pubsub.Event) {
	h.runMu.Lock()
	if h.running || h.stopped {
		h.runMu.Unlock()
		return
	}
	h.running = true
	h.runMu.Unlock()

	defer close(h.done)

	for {
		select {
		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)

		case ev, ok := <-events:
			if !ok {
				l := log.L()
				l.Warn().Msg("bus event stream closed, hub stopping")
				return
			}
			h.relay(ev)

		case <-h.stop:
			return
		}
	}
}

// Stop ends Run and closes every client's send channel.
func (h *Hub) Stop() {
	h.runMu.Lock()
	if h.stopped {
		h.runMu.Unlock()
		return
	}
	h.stopped = true
	running := h.running
	close(h.stop)
	h.runMu.Unlock()

	if running {
		<-h.done
	} else {
		close(h.done)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		c.closeSend()
		delete(h.clients, id)
		h.live.Done()
	}
	h.rooms = make(map[string]map[string]*Client)
}

// Drain closes every connected socket and waits until each has run its close
// handling and left the hub, or until ctx is done. Call it before Stop and
// while the room store and bus are still open.
func (h *Hub) Drain(ctx context.Context) error {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.Kick()
	}

	drained := make(chan struct{})
	go func() {
		h.live.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		h.addClient(client)
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
		h.removeClient(client)
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client.ID]; !ok {
		h.live.Add(1)
	}
	h.clients[client.ID] = client
	h.mu.Unlock()
	l := log.L()
	l.Debug().Str(log.FieldConnID, client.ID).Msg("client registered")
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client.ID]; ok {
		for roomID, members := range h.rooms {
			delete(members, client.ID)
			if len(members) == 0 {
				delete(h.rooms, roomID)
			}
		}
		delete(h.clients, client.ID)
		h.live.Done()
	}
	h.mu.Unlock()
	client.closeSend()
	l := log.L()
	l.Debug().Str(log.FieldConnID, client.ID).Msg("client unregistered")
}

// JoinRoom adds client to the local index of roomID. It reports whether the
// client was newly added.
func (h *Hub) JoinRoom(client *Client, roomID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[roomID]
	if !ok {
		members = make(map[string]*Client)
		h.rooms[roomID] = members
	}
	if _, exists := members[client.ID]; exists {
		return false
	}
	members[client.ID] = client

	l := log.L()
	l.Info().Str(log.FieldConnID, client.ID).Str(log.FieldRoomID, roomID).Msg("client joined room")
	return true
}

// LeaveRoom removes client from roomID and returns the number of local
// sockets left in the room.
func (h *Hub) LeaveRoom(client *Client, roomID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[roomID]
	if !ok {
		return 0
	}
	if _, exists := members[client.ID]; exists {
		delete(members, client.ID)
		l := log.L()
		l.Info().Str(log.FieldConnID, client.ID).Str(log.FieldRoomID, roomID).Msg("client left room")
	}
	if len(members) == 0 {
		delete(h.rooms, roomID)
		return 0
	}
	return len(members)
}

func (h *Hub) InRoom(client *Client, roomID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[roomID][client.ID]
	return ok
}

func (h *Hub) RoomClientCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return Stats{Clients: len(h.clients), Rooms: len(h.rooms)}
}

// relay delivers ev to every local socket in its room. Playback updates are
// withheld from sockets belonging to the user who caused them.
func (h *Hub) relay(ev *pubsub.Event) {
	h.mu.RLock()
	members := h.rooms[ev.RoomID]
	targets := make([]*Client, 0, len(members))
	for _, c := range members {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	suppressEcho := ev.Type == domain.MsgTypeVideoStateUpdate && ev.Origin != ""

	for _, c := range targets {
		if suppressEcho && c.Session.GetUserID() == ev.Origin {
			continue
		}
		if !c.trySend(ev.Payload) {
			l := log.L()
			l.Warn().
				Str(log.FieldConnID, c.ID).
				Str(log.FieldRoomID, ev.RoomID).
				Str(log.FieldEventType, ev.Type).
				Msg("client send buffer full, dropping connection")
			go c.Kick()
		}
	}
}
