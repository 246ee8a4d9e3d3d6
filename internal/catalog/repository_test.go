package catalog

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/weiawesome/wes-io-live/party-service/internal/domain"
	"github.com/weiawesome/wes-io-live/party-service/pkg/database"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.New(&database.Config{
		Driver:   "sqlite",
		FilePath: fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
		LogLevel: "silent",
	})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	t.Cleanup(func() { database.Close(db) })
	return db
}

func TestGormRepository_RecordAndGet(t *testing.T) {
	repo := NewGormRepository(newTestDB(t))
	ctx := context.Background()

	entry := &domain.CatalogEntry{RoomID: "ab12cd34", Link: "https://example/video", CreatedBy: "u1"}
	require.NoError(t, repo.Record(ctx, entry))
	assert.False(t, entry.CreatedAt.IsZero())

	got, err := repo.Get(ctx, "ab12cd34")
	require.NoError(t, err)
	assert.Equal(t, "https://example/video", got.Link)
	assert.Equal(t, "u1", got.CreatedBy)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGormRepository_RecordDuplicate(t *testing.T) {
	repo := NewGormRepository(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Record(ctx, &domain.CatalogEntry{RoomID: "r1", CreatedBy: "u1"}))
	err := repo.Record(ctx, &domain.CatalogEntry{RoomID: "r1", CreatedBy: "u2"})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestGormRepository_ListByCreator(t *testing.T) {
	repo := NewGormRepository(newTestDB(t))
	ctx := context.Background()

	for _, e := range []domain.CatalogEntry{
		{RoomID: "r1", CreatedBy: "alice"},
		{RoomID: "r2", CreatedBy: "bob"},
		{RoomID: "r3", CreatedBy: "alice"},
	} {
		e := e
		require.NoError(t, repo.Record(ctx, &e))
	}

	rooms, err := repo.ListByCreator(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, "r3", rooms[0].RoomID, "newest first")
	assert.Equal(t, "r1", rooms[1].RoomID)

	none, err := repo.ListByCreator(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}
