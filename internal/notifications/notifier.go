// Package notifications provides real-time event delivery over Redis pub/sub
// and websockets.
package notifications

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"strconv"

	"jammer/internal/models"

	"github.com/redis/go-redis/v9"
)

// Notifier publishes events into Redis channels. All publish methods are
// no-ops when Redis is unavailable, so callers never need to branch on it.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a Notifier backed by the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishUser sends an event payload to a single user's channel.
func (n *Notifier) PublishUser(ctx context.Context, userID uint, payload string) error {
	if n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, UserChannel(userID), payload).Err()
}

// PublishBroadcast sends an event payload to every connected user.
func (n *Notifier) PublishBroadcast(ctx context.Context, payload string) error {
	if n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, "notify:broadcast", payload).Err()
}

// PublishRoom sends a chat event to a DM or jam room channel.
func (n *Notifier) PublishRoom(ctx context.Context, roomType models.RoomType, roomID uint, payload string) error {
	if n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, RoomChannel(roomType, roomID), payload).Err()
}

// StartUserSubscriber subscribes to the per-user and broadcast channels and
// invokes onMessage for each incoming message. The subscription ends when ctx
// is cancelled.
func (n *Notifier) StartUserSubscriber(ctx context.Context, onMessage func(channel, payload string)) error {
	if n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, "notify:user:*", "notify:broadcast")
	go n.pump(ctx, sub, "UserSubscriber", onMessage)
	return nil
}

// StartRoomSubscriber subscribes to every DM and jam room channel.
func (n *Notifier) StartRoomSubscriber(ctx context.Context, onMessage func(channel, payload string)) error {
	if n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, "room:dm:*", "room:jam:*")
	go n.pump(ctx, sub, "RoomSubscriber", onMessage)
	return nil
}

// pump drains a pub/sub subscription until ctx is cancelled. A panic inside
// onMessage kills one delivery, not the subscriber.
func (n *Notifier) pump(ctx context.Context, sub *redis.PubSub, name string, onMessage func(channel, payload string)) {
	defer func() { _ = sub.Close() }()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			func() {
				defer func() {
					if r := recover(); r != nil {
						log.Printf("PANIC in %s: %v\n%s", name, r, debug.Stack())
					}
				}()
				onMessage(msg.Channel, msg.Payload)
			}()
		}
	}
}

// UserChannel derives the Redis channel name for a user.
func UserChannel(userID uint) string {
	return "notify:user:" + strconv.FormatUint(uint64(userID), 10)
}

// RoomChannel derives the Redis channel name for a chat room.
func RoomChannel(roomType models.RoomType, roomID uint) string {
	return fmt.Sprintf("room:%s:%d", roomType, roomID)
}
