package notifications

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	presenceOnlineSetKey  = "presence:online"
	presenceLastSeenKeyNS = "presence:last_seen:"
	presenceLastSeenTTL   = 90 * time.Second
	presenceOfflineGrace  = 5 * time.Second
	presenceReaperPeriod  = 60 * time.Second
)

// Presence tracks which musicians currently hold a live websocket connection.
// Local connection counts are authoritative for this process; Redis mirrors
// them so presence survives across instances. Offline transitions are delayed
// by a grace window to suppress flapping on quick reconnects.
type Presence struct {
	rdb *redis.Client

	mu              sync.RWMutex
	localConnCounts map[uint]int
	offlineTimers   map[uint]*time.Timer
	offlineNotified map[uint]bool

	offlineGrace   time.Duration
	reaperInterval time.Duration

	onUserOnline  func(userID uint)
	onUserOffline func(userID uint)

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewPresence creates a presence tracker and starts the Redis reaper when a
// Redis client is available.
func NewPresence(rdb *redis.Client) *Presence {
	p := &Presence{
		rdb:             rdb,
		localConnCounts: make(map[uint]int),
		offlineTimers:   make(map[uint]*time.Timer),
		offlineNotified: make(map[uint]bool),
		offlineGrace:    presenceOfflineGrace,
		reaperInterval:  presenceReaperPeriod,
		stopCh:          make(chan struct{}),
	}

	if p.rdb != nil {
		go p.reaperLoop()
	}

	return p
}

// SetCallbacks installs online/offline transition hooks.
func (p *Presence) SetCallbacks(onOnline, onOffline func(userID uint)) {
	p.mu.Lock()
	p.onUserOnline = onOnline
	p.onUserOffline = onOffline
	p.mu.Unlock()
}

// SetOfflineGracePeriod overrides the offline debounce window.
func (p *Presence) SetOfflineGracePeriod(d time.Duration) {
	if d <= 0 {
		return
	}
	p.mu.Lock()
	p.offlineGrace = d
	p.mu.Unlock()
}

// Stop halts the reaper and cancels pending offline timers.
func (p *Presence) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
		p.mu.Lock()
		for userID, timer := range p.offlineTimers {
			if timer != nil {
				timer.Stop()
			}
			delete(p.offlineTimers, userID)
		}
		p.mu.Unlock()
	})
}

// Register records a new connection for the user.
func (p *Presence) Register(ctx context.Context, userID uint) {
	wasOnline := p.IsOnline(ctx, userID)

	p.mu.Lock()
	if t, ok := p.offlineTimers[userID]; ok {
		t.Stop()
		delete(p.offlineTimers, userID)
	}
	p.localConnCounts[userID]++
	p.offlineNotified[userID] = false
	p.mu.Unlock()

	p.Touch(ctx, userID)
	if !wasOnline {
		p.emitOnline(userID)
	}
}

// Touch refreshes the Redis presence markers for the user.
func (p *Presence) Touch(ctx context.Context, userID uint) {
	if p.rdb == nil {
		return
	}
	uid := strconv.FormatUint(uint64(userID), 10)
	if err := p.rdb.SAdd(ctx, presenceOnlineSetKey, uid).Err(); err != nil {
		log.Printf("presence touch SADD failed for user %d: %v", userID, err)
	}
	if err := p.rdb.SetEx(ctx, p.lastSeenKey(userID), strconv.FormatInt(time.Now().Unix(), 10), presenceLastSeenTTL).Err(); err != nil {
		log.Printf("presence touch SETEX failed for user %d: %v", userID, err)
	}
}

// Unregister records a connection loss. The offline transition fires only
// after the grace window passes with no reconnect.
func (p *Presence) Unregister(ctx context.Context, userID uint) {
	_ = ctx

	p.mu.Lock()
	if n, ok := p.localConnCounts[userID]; ok {
		n--
		if n > 0 {
			p.localConnCounts[userID] = n
			p.mu.Unlock()
			return
		}
		delete(p.localConnCounts, userID)
	}

	if t, ok := p.offlineTimers[userID]; ok {
		t.Stop()
	}
	p.offlineTimers[userID] = time.AfterFunc(p.offlineGrace, func() {
		p.finalizeOffline(context.Background(), userID)
	})
	p.mu.Unlock()
}

// IsOnline reports whether the user is connected here or on another instance.
func (p *Presence) IsOnline(ctx context.Context, userID uint) bool {
	p.mu.RLock()
	if p.localConnCounts[userID] > 0 {
		p.mu.RUnlock()
		return true
	}
	p.mu.RUnlock()

	if p.rdb == nil {
		return false
	}

	exists, err := p.rdb.Exists(ctx, p.lastSeenKey(userID)).Result()
	if err != nil {
		return false
	}
	return exists > 0
}

// OnlineUserIDs returns online users from Redis, filtered for staleness and
// unioned with local connections as a safety net.
func (p *Presence) OnlineUserIDs(ctx context.Context) []uint {
	local := p.localUserIDs()
	if p.rdb == nil {
		return local
	}

	members, err := p.rdb.SMembers(ctx, presenceOnlineSetKey).Result()
	if err != nil {
		return local
	}

	seen := make(map[uint]struct{}, len(members)+len(local))
	result := make([]uint, 0, len(members)+len(local))

	for _, raw := range members {
		id64, parseErr := strconv.ParseUint(raw, 10, 32)
		if parseErr != nil {
			continue
		}
		userID := uint(id64)
		exists, existsErr := p.rdb.Exists(ctx, p.lastSeenKey(userID)).Result()
		if existsErr != nil {
			continue
		}
		if exists == 0 {
			_ = p.rdb.SRem(ctx, presenceOnlineSetKey, raw).Err()
			continue
		}
		if _, ok := seen[userID]; ok {
			continue
		}
		seen[userID] = struct{}{}
		result = append(result, userID)
	}

	for _, userID := range local {
		if _, ok := seen[userID]; ok {
			continue
		}
		seen[userID] = struct{}{}
		result = append(result, userID)
	}

	return result
}

// reapOnce is test-visible and performs one stale-entry cleanup pass.
func (p *Presence) reapOnce(ctx context.Context) {
	if p.rdb == nil {
		return
	}

	members, err := p.rdb.SMembers(ctx, presenceOnlineSetKey).Result()
	if err != nil {
		return
	}

	for _, raw := range members {
		id64, parseErr := strconv.ParseUint(raw, 10, 32)
		if parseErr != nil {
			continue
		}
		userID := uint(id64)
		exists, existsErr := p.rdb.Exists(ctx, p.lastSeenKey(userID)).Result()
		if existsErr != nil || exists > 0 {
			continue
		}

		_ = p.rdb.SRem(ctx, presenceOnlineSetKey, raw).Err()

		p.mu.RLock()
		hasLocal := p.localConnCounts[userID] > 0
		p.mu.RUnlock()
		if !hasLocal {
			p.emitOffline(userID)
		}
	}
}

func (p *Presence) reaperLoop() {
	ctx := context.Background()
	ticker := time.NewTicker(p.reaperInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.reapOnce(ctx)
		}
	}
}

func (p *Presence) finalizeOffline(ctx context.Context, userID uint) {
	p.mu.Lock()
	if p.localConnCounts[userID] > 0 {
		delete(p.offlineTimers, userID)
		p.mu.Unlock()
		return
	}
	delete(p.offlineTimers, userID)
	p.mu.Unlock()

	if p.rdb != nil {
		exists, err := p.rdb.Exists(ctx, p.lastSeenKey(userID)).Result()
		if err == nil && exists > 0 {
			// Another instance refreshed presence, user stays online.
			return
		}
		_ = p.rdb.SRem(ctx, presenceOnlineSetKey, strconv.FormatUint(uint64(userID), 10)).Err()
	}

	p.emitOffline(userID)
}

func (p *Presence) emitOnline(userID uint) {
	p.mu.Lock()
	p.offlineNotified[userID] = false
	cb := p.onUserOnline
	p.mu.Unlock()
	if cb != nil {
		cb(userID)
	}
}

func (p *Presence) emitOffline(userID uint) {
	p.mu.Lock()
	if p.offlineNotified[userID] {
		p.mu.Unlock()
		return
	}
	p.offlineNotified[userID] = true
	cb := p.onUserOffline
	p.mu.Unlock()
	if cb != nil {
		cb(userID)
	}
}

func (p *Presence) localUserIDs() []uint {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]uint, 0, len(p.localConnCounts))
	for userID, count := range p.localConnCounts {
		if count > 0 {
			ids = append(ids, userID)
		}
	}
	return ids
}

func (p *Presence) lastSeenKey(userID uint) string {
	return presenceLastSeenKeyNS + strconv.FormatUint(uint64(userID), 10)
}
