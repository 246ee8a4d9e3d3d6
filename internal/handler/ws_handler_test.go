package handler

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-live/party-service/internal/auth"
	"github.com/weiawesome/wes-io-live/party-service/internal/config"
	"github.com/weiawesome/wes-io-live/party-service/internal/domain"
	"github.com/weiawesome/wes-io-live/party-service/internal/hub"
	"github.com/weiawesome/wes-io-live/party-service/internal/reconcile"
	"github.com/weiawesome/wes-io-live/party-service/internal/service"
	"github.com/weiawesome/wes-io-live/party-service/internal/store"
	"github.com/weiawesome/wes-io-live/party-service/pkg/jwt"
	"github.com/weiawesome/wes-io-live/party-service/pkg/pubsub"
)

type wsFixture struct {
	url    string
	store  *store.RedisStore
	hub    *hub.Hub
	tokens *jwt.Manager
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	st := store.NewRedisStoreFromClient(client, "party:room")
	bus := pubsub.NewRedisPubSubFromClient(client, 64)

	wsCfg := config.WebSocketConfig{
		PingInterval:   time.Second,
		PongWait:       5 * time.Second,
		WriteWait:      time.Second,
		MaxMessageSize: 8192,
		SendBuffer:     64,
	}
	h := hub.NewHub(wsCfg)
	go h.Run(bus.Events())

	tokens, err := jwt.NewManager(jwt.Config{Secret: "ws-test-secret"})
	require.NoError(t, err)

	svc := service.NewPartyService(h, auth.NewJWTGuard(tokens), st, bus, reconcile.NewEngine(reconcile.DefaultConfig()), service.Options{})

	r := gin.New()
	NewWSHandler(h, svc, wsCfg, time.Second).RegisterRoutes(r, "/ws")
	srv := httptest.NewServer(r)

	t.Cleanup(func() {
		srv.Close()
		bus.Close()
		h.Stop()
		client.Close()
	})

	return &wsFixture{
		url:    "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
		store:  st,
		hub:    h,
		tokens: tokens,
	}
}

func (f *wsFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(f.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (f *wsFixture) token(t *testing.T, userID, name string) string {
	t.Helper()
	tok, err := f.tokens.GenerateToken(userID, name)
	require.NoError(t, err)
	return tok
}

func send(t *testing.T, conn *websocket.Conn, frame map[string]interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(frame))
}

// await reads frames until one of the given type arrives.
func await(t *testing.T, conn *websocket.Conn, frameType string) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var f map[string]interface{}
		require.NoError(t, conn.ReadJSON(&f), "waiting for %s", frameType)
		if f["type"] == frameType {
			return f
		}
	}
}

func TestWSHandler_ErrorFrames(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t)

	tests := []struct {
		name     string
		raw      string
		wantCode string
	}{
		{"malformed json", `{"type":`, domain.ErrCodeBadRequest},
		{"unknown type", `{"type":"dance"}`, domain.ErrCodeBadRequest},
		{"missing room id", `{"type":"join","token":"x"}`, domain.ErrCodeBadRequest},
		{"bad token", `{"type":"join","roomId":"r1","token":"nope","link":"https://example/video"}`, domain.ErrCodeUnauthorized},
		{"unknown room", `{"type":"message","roomId":"ghost","token":"` + f.token(t, "u1", "One") + `","content":"hi"}`, domain.ErrCodeRoomNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(tt.raw)))
			frame := await(t, conn, domain.MsgTypeError)
			assert.Equal(t, tt.wantCode, frame["code"])
			assert.NotEmpty(t, frame["message"])
		})
	}

	// The connection survives every rejected frame.
	send(t, conn, map[string]interface{}{"type": "ping", "timestamp": 42})
	pong := await(t, conn, domain.MsgTypePong)
	assert.Equal(t, float64(42), pong["timestamp"])
}

func TestWSHandler_RoomSession(t *testing.T) {
	f := newWSFixture(t)
	x := f.dial(t)
	y := f.dial(t)
	tokX := f.token(t, "ux", "Xavier")
	tokY := f.token(t, "uy", "Yara")

	send(t, x, map[string]interface{}{"type": "join", "roomId": "ab12cd34", "token": tokX, "link": "https://example/video"})
	joined := await(t, x, domain.MsgTypeJoined)
	assert.Equal(t, "https://example/video", joined["link"])

	send(t, y, map[string]interface{}{"type": "join", "roomId": "ab12cd34", "token": tokY})
	await(t, y, domain.MsgTypeJoined)
	seen := await(t, x, domain.MsgTypeUserJoined)
	assert.Equal(t, "uy", seen["userId"])

	send(t, y, map[string]interface{}{"type": "message", "roomId": "ab12cd34", "token": tokY, "content": "hi all"})
	msg := await(t, x, domain.MsgTypeChat)
	assert.Equal(t, "hi all", msg["content"])
	assert.Equal(t, "Yara", msg["name"])

	// Closing Y's socket runs the implicit leave.
	require.NoError(t, y.Close())
	gone := await(t, x, domain.MsgTypeUserLeft)
	assert.Equal(t, "uy", gone["userId"])

	assert.Eventually(t, func() bool {
		room, err := f.store.GetRoom(context.Background(), "ab12cd34")
		return err == nil && !room.HasMember("uy") && room.HasMember("ux")
	}, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		return f.hub.RoomClientCount("ab12cd34") == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWSHandler_RoutesOnlyConfiguredPath(t *testing.T) {
	f := newWSFixture(t)
	_, resp, err := websocket.DefaultDialer.Dial(strings.TrimSuffix(f.url, "/ws")+"/other", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestWSHandler_DrainRunsDisconnectCleanup(t *testing.T) {
	f := newWSFixture(t)
	x := f.dial(t)
	y := f.dial(t)

	send(t, x, map[string]interface{}{"type": "join", "roomId": "ab12cd34", "token": f.token(t, "ux", "X"), "link": "https://example/video"})
	await(t, x, domain.MsgTypeJoined)
	send(t, y, map[string]interface{}{"type": "join", "roomId": "ab12cd34", "token": f.token(t, "uy", "Y")})
	await(t, y, domain.MsgTypeJoined)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, f.hub.Drain(ctx))

	// Membership is already gone when Drain returns; the store is still open.
	room, err := f.store.GetRoom(context.Background(), "ab12cd34")
	require.NoError(t, err)
	assert.Empty(t, room.Members)
	assert.Equal(t, 0, f.hub.Stats().Clients)
}
