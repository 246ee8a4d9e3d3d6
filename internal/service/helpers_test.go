package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-live/party-service/internal/auth"
	"github.com/weiawesome/wes-io-live/party-service/internal/config"
	"github.com/weiawesome/wes-io-live/party-service/internal/domain"
	"github.com/weiawesome/wes-io-live/party-service/internal/hub"
	"github.com/weiawesome/wes-io-live/party-service/internal/reconcile"
	"github.com/weiawesome/wes-io-live/party-service/internal/store"
	"github.com/weiawesome/wes-io-live/party-service/pkg/jwt"
	"github.com/weiawesome/wes-io-live/party-service/pkg/pubsub"
)

const testSecret = "service-test-secret"

// fakeClock is a settable clock shared by a test's workers.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// worker is one party-service process wired to a shared Redis.
type worker struct {
	hub    *hub.Hub
	store  *store.RedisStore
	bus    *pubsub.RedisPubSub
	client *redis.Client
	svc    PartyService
}

type cluster struct {
	mr     *miniredis.Miniredis
	tokens *jwt.Manager
	clock  *fakeClock
	cfg    reconcile.Config
}

func newCluster(t *testing.T) *cluster {
	t.Helper()
	tokens, err := jwt.NewManager(jwt.Config{Secret: testSecret})
	require.NoError(t, err)
	return &cluster{
		mr:     miniredis.RunT(t),
		tokens: tokens,
		clock:  newFakeClock(),
		cfg:    reconcile.Config{PulseDelay: 50 * time.Millisecond},
	}
}

func (cl *cluster) worker(t *testing.T) *worker {
	t.Helper()
	return cl.workerWith(t, nil)
}

// workerWith builds a worker whose service sees the room store through wrap.
func (cl *cluster) workerWith(t *testing.T, wrap func(*store.RedisStore) store.RoomStore) *worker {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: cl.mr.Addr()})
	st := store.NewRedisStoreFromClient(client, "party:room")
	var roomStore store.RoomStore = st
	if wrap != nil {
		roomStore = wrap(st)
	}
	bus := pubsub.NewRedisPubSubFromClient(client, 64)
	h := hub.NewHub(config.WebSocketConfig{SendBuffer: 64})
	go h.Run(bus.Events())

	t.Cleanup(func() {
		bus.Close()
		h.Stop()
		client.Close()
	})

	svc := NewPartyService(h, auth.NewJWTGuard(cl.tokens), roomStore, bus, reconcile.NewEngine(cl.cfg), Options{
		Now:       cl.clock.Now,
		OpTimeout: time.Second,
	})
	return &worker{hub: h, store: st, bus: bus, client: client, svc: svc}
}

func (cl *cluster) token(t *testing.T, userID, name string) string {
	t.Helper()
	tok, err := cl.tokens.GenerateToken(userID, name)
	require.NoError(t, err)
	return tok
}

// socket is a connection without a real websocket; frames land in Send.
func (w *worker) socket(id string) *hub.Client {
	c := hub.NewClient(id, w.hub, nil, config.WebSocketConfig{SendBuffer: 64})
	w.hub.Register(c)
	return c
}

// waitSubscribers blocks until n bus subscribers listen on the room channel.
func (cl *cluster) waitSubscribers(t *testing.T, roomID string, n int64) {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: cl.mr.Addr()})
	defer client.Close()

	channel := pubsub.RoomChannel(roomID)
	require.Eventually(t, func() bool {
		counts, err := client.PubSubNumSub(context.Background(), channel).Result()
		return err == nil && counts[channel] == n
	}, 2*time.Second, 5*time.Millisecond, "waiting for %d subscribers on %s", n, channel)
}

type frame map[string]interface{}

func (f frame) str(key string) string {
	s, _ := f[key].(string)
	return s
}

func (f frame) num(key string) float64 {
	n, _ := f[key].(float64)
	return n
}

// collect reads every frame the socket receives within wait.
func collect(t *testing.T, c *hub.Client, wait time.Duration) []frame {
	t.Helper()
	var frames []frame
	deadline := time.After(wait)
	for {
		select {
		case data, ok := <-c.Send:
			if !ok {
				return frames
			}
			var f frame
			require.NoError(t, json.Unmarshal(data, &f))
			frames = append(frames, f)
		case <-deadline:
			return frames
		}
	}
}

// next waits for the first frame of the given type, discarding others.
func next(t *testing.T, c *hub.Client, frameType string) frame {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case data, ok := <-c.Send:
			require.True(t, ok, "socket closed while waiting for %s", frameType)
			var f frame
			require.NoError(t, json.Unmarshal(data, &f))
			if f.str("type") == frameType {
				return f
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s frame", frameType)
			return nil
		}
	}
}

func ofType(frames []frame, frameType string) []frame {
	var out []frame
	for _, f := range frames {
		if f.str("type") == frameType {
			out = append(out, f)
		}
	}
	return out
}

// hookedStore runs beforeAdd ahead of every AddMember; a non-nil error
// replaces the store call.
type hookedStore struct {
	*store.RedisStore
	beforeAdd func() error
}

func (s *hookedStore) AddMember(ctx context.Context, roomID string, m domain.Member) (bool, error) {
	if s.beforeAdd != nil {
		if err := s.beforeAdd(); err != nil {
			return false, err
		}
	}
	return s.RedisStore.AddMember(ctx, roomID, m)
}
