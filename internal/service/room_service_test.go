package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-live/party-service/internal/auth"
	"github.com/weiawesome/wes-io-live/party-service/internal/catalog"
	"github.com/weiawesome/wes-io-live/party-service/internal/domain"
	"github.com/weiawesome/wes-io-live/party-service/internal/roomid"
	"github.com/weiawesome/wes-io-live/party-service/pkg/database"
)

func newCatalog(t *testing.T) catalog.Repository {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.New(&database.Config{
		Driver:   "sqlite",
		FilePath: fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
		LogLevel: "silent",
	})
	require.NoError(t, err)
	require.NoError(t, catalog.Migrate(db))
	t.Cleanup(func() { database.Close(db) })
	return catalog.NewGormRepository(db)
}

func newRoomService(cl *cluster, w *worker, repo catalog.Repository, ids *roomid.Generator) RoomService {
	return NewRoomService(w.hub, auth.NewJWTGuard(cl.tokens), w.store, w.bus, repo, ids, Options{
		Now:       cl.clock.Now,
		OpTimeout: time.Second,
	})
}

func TestRoomService_CreateRoom(t *testing.T) {
	cl := newCluster(t)
	w := cl.worker(t)
	repo := newCatalog(t)
	svc := newRoomService(cl, w, repo, nil)
	ctx := context.Background()

	resp, err := svc.CreateRoom(ctx, "u1", &domain.CreateRoomRequest{Link: videoLink})
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{8}$`), resp.RoomID)
	assert.Equal(t, videoLink, resp.Link)

	room, err := w.store.GetRoom(ctx, resp.RoomID)
	require.NoError(t, err)
	assert.Equal(t, videoLink, room.Link)
	assert.Empty(t, room.Members)

	entry, err := repo.Get(ctx, resp.RoomID)
	require.NoError(t, err)
	assert.Equal(t, "u1", entry.CreatedBy)

	mine, err := svc.ListMyRooms(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, resp.RoomID, mine[0].RoomID)
}

func TestRoomService_CreateRoomIDsExhausted(t *testing.T) {
	cl := newCluster(t)
	w := cl.worker(t)
	ids, err := roomid.NewGenerator(1, "ab")
	require.NoError(t, err)
	svc := newRoomService(cl, w, nil, ids)
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		_, err := w.store.CreateRoom(ctx, id, videoLink)
		require.NoError(t, err)
	}

	_, err = svc.CreateRoom(ctx, "u1", &domain.CreateRoomRequest{Link: videoLink})
	assert.Error(t, err)
}

func TestRoomService_GetRoomInfo(t *testing.T) {
	cl := newCluster(t)
	w := cl.worker(t)
	repo := newCatalog(t)
	svc := newRoomService(cl, w, repo, nil)
	ctx := context.Background()

	resp, err := svc.CreateRoom(ctx, "u1", &domain.CreateRoomRequest{Link: videoLink})
	require.NoError(t, err)
	join(t, w, w.socket("x"), cl.token(t, "ux", "X"), resp.RoomID, "")

	info, err := svc.GetRoomInfo(ctx, resp.RoomID)
	require.NoError(t, err)
	assert.Equal(t, videoLink, info.Link)
	assert.Equal(t, 1, info.LocalConnections)
	assert.Equal(t, "u1", info.CreatedBy)
	require.NotNil(t, info.CreatedAt)
	assert.Len(t, info.Members, 1)

	// Rooms created by a socket join have no catalog entry.
	join(t, w, w.socket("y"), cl.token(t, "uy", "Y"), roomID, videoLink)
	info, err = svc.GetRoomInfo(ctx, roomID)
	require.NoError(t, err)
	assert.Empty(t, info.CreatedBy)
	assert.Nil(t, info.CreatedAt)

	_, err = svc.GetRoomInfo(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestRoomService_ResolvePartyLink(t *testing.T) {
	cl := newCluster(t)
	w := cl.worker(t)
	svc := newRoomService(cl, w, nil, nil)
	ctx := context.Background()
	token := cl.token(t, "u1", "One")

	_, err := w.store.CreateRoom(ctx, roomID, videoLink)
	require.NoError(t, err)
	_, err = w.store.CreateRoom(ctx, "nolink", "")
	require.NoError(t, err)

	link, err := svc.ResolvePartyLink(ctx, token, roomID)
	require.NoError(t, err)
	assert.Equal(t, videoLink, link)

	_, err = svc.ResolvePartyLink(ctx, "bad", roomID)
	assert.ErrorIs(t, err, domain.ErrAuth)

	_, err = svc.ResolvePartyLink(ctx, token, "ghost")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)

	_, err = svc.ResolvePartyLink(ctx, token, "nolink")
	assert.ErrorIs(t, err, ErrLinkNotSet)
}

func TestRoomService_PostMessage(t *testing.T) {
	cl := newCluster(t)
	w := cl.worker(t)
	svc := newRoomService(cl, w, nil, nil)
	ctx := context.Background()

	x := w.socket("x")
	join(t, w, x, cl.token(t, "ux", "X"), roomID, videoLink)
	cl.waitSubscribers(t, roomID, 1)

	ev, err := svc.PostMessage(ctx, domain.Identity{UserID: "bot", DisplayName: "Bot"}, roomID, "from http")
	require.NoError(t, err)
	assert.Equal(t, domain.MsgTypeChat, ev.Type)

	msg := next(t, x, domain.MsgTypeChat)
	assert.Equal(t, "from http", msg.str("content"))
	assert.Equal(t, "bot", msg.str("userId"))
	assert.Equal(t, "Bot", msg.str("name"))

	_, err = svc.PostMessage(ctx, domain.Identity{UserID: "bot"}, "ghost", "hi")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestRoomService_CatalogDisabled(t *testing.T) {
	cl := newCluster(t)
	w := cl.worker(t)
	svc := newRoomService(cl, w, nil, nil)

	_, err := svc.ListMyRooms(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrCatalogDisabled)

	resp, err := svc.CreateRoom(context.Background(), "u1", &domain.CreateRoomRequest{Link: videoLink})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.RoomID)
}

func TestRoomService_GetRoomInfoConcurrent(t *testing.T) {
	cl := newCluster(t)
	w := cl.worker(t)
	svc := newRoomService(cl, w, nil, nil)
	ctx := context.Background()

	_, err := w.store.CreateRoom(ctx, roomID, videoLink)
	require.NoError(t, err)

	var wg sync.WaitGroup
	infos := make([]*domain.RoomInfo, 8)
	errs := make([]error, 8)
	for i := range infos {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			infos[i], errs[i] = svc.GetRoomInfo(ctx, roomID)
		}(i)
	}
	wg.Wait()

	for i := range infos {
		require.NoError(t, errs[i])
		assert.Equal(t, videoLink, infos[i].Link)
	}
	// Callers never share a result value.
	infos[0].LocalConnections = 99
	assert.NotEqual(t, 99, infos[1].LocalConnections)
}
