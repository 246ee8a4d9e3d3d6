package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKafkaPubSub_RoomFilter(t *testing.T) {
	k := &KafkaPubSub{rooms: make(map[string]struct{})}
	ctx := context.Background()

	require.NoError(t, k.Subscribe(ctx, RoomChannel("r1"), RoomChannel("r2")))
	assert.True(t, k.wants("r1"))
	assert.True(t, k.wants("r2"))
	assert.False(t, k.wants("r3"))

	require.NoError(t, k.Unsubscribe(ctx, RoomChannel("r1")))
	assert.False(t, k.wants("r1"))
	assert.True(t, k.wants("r2"))

	assert.Error(t, k.Subscribe(ctx, "not-a-room"))
}

func TestKafkaPubSub_PublishRejectsForeignChannel(t *testing.T) {
	k := &KafkaPubSub{rooms: make(map[string]struct{}), topic: "party-room-events"}

	ev, err := NewEvent("message", "r1", "", nil)
	require.NoError(t, err)
	assert.Error(t, k.Publish(context.Background(), "chat:r1", ev))
}
