package notifications

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"jammer/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_NilRedisIsNoop(t *testing.T) {
	n := NewNotifier(nil)
	assert.NoError(t, n.PublishUser(context.Background(), 1, "payload"))
	assert.NoError(t, n.PublishBroadcast(context.Background(), "payload"))
	assert.NoError(t, n.PublishRoom(context.Background(), models.RoomTypeDM, 1, "payload"))
	assert.NoError(t, n.StartUserSubscriber(context.Background(), func(string, string) {}))
}

func TestUserChannel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		userID   uint
		expected string
	}{
		{1, "notify:user:1"},
		{100, "notify:user:100"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, UserChannel(tt.userID))
	}
}

func TestRoomChannel(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "room:dm:5", RoomChannel(models.RoomTypeDM, 5))
	assert.Equal(t, "room:jam:9", RoomChannel(models.RoomTypeJam, 9))
}

func TestNotifier_UserSubscriberDeliversAndStopsOnCancel(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	n := NewNotifier(rdb)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var received int32
	payloads := make(chan string, 2)
	require.NoError(t, n.StartUserSubscriber(ctx, func(_ string, payload string) {
		atomic.AddInt32(&received, 1)
		payloads <- payload
	}))

	require.NoError(t, n.PublishUser(context.Background(), 7, "before-cancel"))
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&received) >= 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	time.Sleep(20 * time.Millisecond)

	// Drain the pre-cancel message to avoid false positives.
	select {
	case <-payloads:
	default:
	}

	require.NoError(t, n.PublishUser(context.Background(), 7, "after-cancel"))
	assert.Never(t, func() bool {
		select {
		case payload := <-payloads:
			return payload == "after-cancel"
		default:
			return false
		}
	}, 200*time.Millisecond, 10*time.Millisecond)
}

func TestNotifier_RoomSubscriberReceivesBothRoomTypes(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	n := NewNotifier(rdb)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	channels := make(chan string, 4)
	require.NoError(t, n.StartRoomSubscriber(ctx, func(channel, _ string) {
		channels <- channel
	}))

	require.NoError(t, n.PublishRoom(context.Background(), models.RoomTypeDM, 3, "{}"))
	require.NoError(t, n.PublishRoom(context.Background(), models.RoomTypeJam, 4, "{}"))

	got := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case ch := <-channels:
			got[ch] = true
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for room message")
		}
	}
	assert.True(t, got["room:dm:3"])
	assert.True(t, got["room:jam:4"])
}
