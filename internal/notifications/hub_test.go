package notifications

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEventuallyTimeout = time.Second
	testPollInterval      = 10 * time.Millisecond
)

func TestHub_BroadcastReachesAllUserClients(t *testing.T) {
	hub := NewHub()

	clientA, err := hub.Register(7, nil)
	require.NoError(t, err)
	clientB, err := hub.Register(7, nil)
	require.NoError(t, err)
	other, err := hub.Register(8, nil)
	require.NoError(t, err)

	hub.Broadcast(7, `{"type":"connection.request"}`)

	assert.Len(t, clientA.Send, 1)
	assert.Len(t, clientB.Send, 1)
	assert.Len(t, other.Send, 0)

	_ = hub.Shutdown(context.Background())
}

func TestHub_PerUserConnectionLimit(t *testing.T) {
	hub := NewHub()

	for i := 0; i < maxConnsPerUser; i++ {
		_, err := hub.Register(1, nil)
		require.NoError(t, err)
	}
	_, err := hub.Register(1, nil)
	assert.Error(t, err)

	_ = hub.Shutdown(context.Background())
}

func TestHub_GracePeriodSuppressesOfflineOnRapidReconnect(t *testing.T) {
	hub := NewHub()
	hub.presence.SetOfflineGracePeriod(40 * time.Millisecond)

	clientA, err := hub.Register(10, nil)
	assert.NoError(t, err)

	hub.UnregisterClient(clientA)
	_, err = hub.Register(10, nil)
	assert.NoError(t, err)

	assert.Never(t, func() bool {
		hub.presence.mu.RLock()
		defer hub.presence.mu.RUnlock()
		return hub.presence.offlineNotified[10]
	}, 20*testPollInterval, testPollInterval)
	assert.True(t, hub.IsOnline(10))

	_ = hub.Shutdown(context.Background())
}

func TestHub_MultiConnectionLastDisconnectTriggersOfflineOnce(t *testing.T) {
	hub := NewHub()
	hub.presence.SetOfflineGracePeriod(30 * time.Millisecond)

	clientA, err := hub.Register(15, nil)
	assert.NoError(t, err)
	clientB, err := hub.Register(15, nil)
	assert.NoError(t, err)

	hub.UnregisterClient(clientA)
	assert.Never(t, func() bool {
		hub.presence.mu.RLock()
		defer hub.presence.mu.RUnlock()
		return hub.presence.offlineNotified[15]
	}, 30*testPollInterval, testPollInterval)

	hub.UnregisterClient(clientB)
	assert.Eventually(t, func() bool {
		hub.presence.mu.RLock()
		defer hub.presence.mu.RUnlock()
		return hub.presence.offlineNotified[15]
	}, testEventuallyTimeout, testPollInterval)
	assert.False(t, hub.IsOnline(15))

	_ = hub.Shutdown(context.Background())
}

func TestHub_ReaperRemovesStalePresence(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	hub := NewHub(rdb)

	var offlineCount int32
	hub.SetPresenceCallbacks(nil, func(_ uint) {
		atomic.AddInt32(&offlineCount, 1)
	})

	ctx := context.Background()
	assert.NoError(t, rdb.SAdd(ctx, presenceOnlineSetKey, "44").Err())

	hub.presence.reapOnce(ctx)

	isMember, err := rdb.SIsMember(ctx, presenceOnlineSetKey, "44").Result()
	assert.NoError(t, err)
	assert.False(t, isMember)
	assert.Equal(t, int32(1), atomic.LoadInt32(&offlineCount))

	_ = hub.Shutdown(context.Background())
}

func TestHub_StartWiringRoutesUserAndBroadcastChannels(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	hub := NewHub()
	notifier := NewNotifier(rdb)

	client, err := hub.Register(21, nil)
	require.NoError(t, err)
	bystander, err := hub.Register(22, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, hub.StartWiring(ctx, notifier))

	require.NoError(t, notifier.PublishUser(ctx, 21, `{"type":"jam.decision"}`))
	assert.Eventually(t, func() bool {
		return len(client.Send) == 1
	}, testEventuallyTimeout, testPollInterval)
	assert.Len(t, bystander.Send, 0)

	require.NoError(t, notifier.PublishBroadcast(ctx, `{"type":"announcement"}`))
	assert.Eventually(t, func() bool {
		return len(bystander.Send) == 1
	}, testEventuallyTimeout, testPollInterval)

	_ = hub.Shutdown(context.Background())
}
