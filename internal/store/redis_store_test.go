package store

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-live/party-service/internal/domain"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStoreFromClient(client, "party:room"), mr
}

func TestRedisStore_CreateRoom(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateRoom(ctx, "ab12cd34", "https://example/video")
	require.NoError(t, err)
	assert.True(t, created)

	assert.Equal(t, "https://example/video", mr.HGet("party:room:ab12cd34", "link"))
	assert.Equal(t, "[]", mr.HGet("party:room:ab12cd34", "members"))

	room, err := s.GetRoom(ctx, "ab12cd34")
	require.NoError(t, err)
	assert.Equal(t, "ab12cd34", room.ID)
	assert.Empty(t, room.Members)
	assert.Equal(t, domain.NewPlayer(), room.Player)
	assert.False(t, room.Player.Active)
	assert.Equal(t, domain.NotStartedTime, room.Player.CurrentTime)
}

func TestRedisStore_CreateRoomIsIdempotent(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateRoom(ctx, "r1", "https://first")
	require.NoError(t, err)
	_, err = s.AddMember(ctx, "r1", domain.Member{UserID: "u1", Name: "Una"})
	require.NoError(t, err)

	created, err := s.CreateRoom(ctx, "r1", "https://second")
	require.NoError(t, err)
	assert.False(t, created)

	room, err := s.GetRoom(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "https://first", room.Link)
	assert.Len(t, room.Members, 1)
}

func TestRedisStore_Exists(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	ok, err := s.Exists(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.CreateRoom(ctx, "r1", "")
	require.NoError(t, err)

	ok, err = s.Exists(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisStore_GetRoomNotFound(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.GetRoom(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestRedisStore_GetRoomDefaultsMissingFields(t *testing.T) {
	s, mr := newTestStore(t)
	mr.HSet("party:room:legacy", "link", "https://old")

	room, err := s.GetRoom(context.Background(), "legacy")
	require.NoError(t, err)
	assert.Equal(t, "https://old", room.Link)
	assert.NotNil(t, room.Members)
	assert.Empty(t, room.Members)
	assert.Equal(t, domain.NewPlayer(), room.Player)
}

func TestRedisStore_Members(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	_, err := s.CreateRoom(ctx, "r1", "https://x")
	require.NoError(t, err)

	added, err := s.AddMember(ctx, "r1", domain.Member{UserID: "u1", Name: "Una"})
	require.NoError(t, err)
	assert.True(t, added)

	added, err = s.AddMember(ctx, "r1", domain.Member{UserID: "u1", Name: "Una again"})
	require.NoError(t, err)
	assert.False(t, added, "membership is unique by user id")

	_, err = s.AddMember(ctx, "r1", domain.Member{UserID: "u2", Name: "Dos"})
	require.NoError(t, err)

	room, err := s.GetRoom(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, []domain.Member{{UserID: "u1", Name: "Una"}, {UserID: "u2", Name: "Dos"}}, room.Members)

	removed, err := s.RemoveMember(ctx, "r1", "u1")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.RemoveMember(ctx, "r1", "u1")
	require.NoError(t, err)
	assert.False(t, removed)

	room, err = s.GetRoom(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, []domain.Member{{UserID: "u2", Name: "Dos"}}, room.Members)
}

func TestRedisStore_MembersOnMissingRoom(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.AddMember(ctx, "ghost", domain.Member{UserID: "u1"})
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)

	_, err = s.RemoveMember(ctx, "ghost", "u1")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestRedisStore_ConcurrentAddMember(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	_, err := s.CreateRoom(ctx, "busy", "https://x")
	require.NoError(t, err)

	users := []string{"a", "b", "c", "d", "e", "f"}
	var wg sync.WaitGroup
	for _, u := range users {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			// Contention may exhaust retries; the assertion below only
			// requires that no successful write is lost.
			s.AddMember(ctx, "busy", domain.Member{UserID: u, Name: u})
		}(u)
	}
	wg.Wait()

	room, err := s.GetRoom(ctx, "busy")
	require.NoError(t, err)

	seen := map[string]int{}
	for _, m := range room.Members {
		seen[m.UserID]++
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, "duplicate member %s", id)
	}
}

func TestRedisStore_SetPlayer(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	_, err := s.CreateRoom(ctx, "r1", "https://x")
	require.NoError(t, err)

	p := domain.Player{Active: true, IsPlaying: true, Duration: 600, CurrentTime: 12, UpdatedBy: "u1", LastUpdate: 1700000000.25}
	require.NoError(t, s.SetPlayer(ctx, "r1", p))

	room, err := s.GetRoom(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, p, room.Player)
}

func TestRedisStore_TransientErrors(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()
	_, err := s.CreateRoom(ctx, "r1", "https://x")
	require.NoError(t, err)

	mr.Close()

	_, err = s.Exists(ctx, "r1")
	assert.ErrorIs(t, err, domain.ErrTransient)

	_, err = s.GetRoom(ctx, "r1")
	assert.ErrorIs(t, err, domain.ErrTransient)

	_, err = s.AddMember(ctx, "r1", domain.Member{UserID: "u1"})
	assert.ErrorIs(t, err, domain.ErrTransient)

	err = s.SetPlayer(ctx, "r1", domain.NewPlayer())
	assert.ErrorIs(t, err, domain.ErrTransient)

	_, err = s.CreateRoom(ctx, "r2", "https://x")
	assert.ErrorIs(t, err, domain.ErrTransient)
}

func TestRedisStore_CustomPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	s := NewRedisStoreFromClient(client, "watch:rooms")
	_, err := s.CreateRoom(context.Background(), "r1", "https://x")
	require.NoError(t, err)
	assert.True(t, mr.Exists("watch:rooms:r1"))
	assert.NoError(t, s.Close(), "borrowed client stays open")
	assert.NoError(t, client.Ping(context.Background()).Err())
}
