package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
)

const (
	localMaxEntries      = 10000
	localCleanupInterval = time.Minute
	localEntryTTL        = 5 * time.Minute
)

type localEntry struct {
	mu         sync.Mutex
	timestamps []time.Time
	lastAccess time.Time
}

// Local is the in-process sliding-window limiter. Buckets live in a
// sharded map; each bucket prunes its own window under a bucket lock, so
// unrelated (client, operation) pairs never contend.
type Local struct {
	limit       int
	window      time.Duration
	entries     cmap.ConcurrentMap[string, *localEntry]
	lastCleanup atomic.Int64
	now         func() time.Time
}

func NewLocal(limit int, window time.Duration) *Local {
	l := &Local{
		limit:   limit,
		window:  window,
		entries: cmap.New[*localEntry](),
		now:     time.Now,
	}
	l.lastCleanup.Store(time.Now().UnixNano())
	return l
}

func (l *Local) Allow(_ context.Context, clientID, operation string) (Decision, error) {
	now := l.now()
	l.maybeCleanup(now)

	key := bucketKey(clientID, operation)
	entry, _ := l.entries.Get(key)
	if entry == nil {
		entry = &localEntry{}
		if !l.entries.SetIfAbsent(key, entry) {
			entry, _ = l.entries.Get(key)
		}
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	entry.lastAccess = now
	windowStart := now.Add(-l.window)

	kept := entry.timestamps[:0]
	for _, ts := range entry.timestamps {
		if ts.After(windowStart) {
			kept = append(kept, ts)
		}
	}
	entry.timestamps = kept

	if len(entry.timestamps) >= l.limit {
		resetAt := entry.timestamps[0].Add(l.window)
		return Decision{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: resetAt.Sub(now),
			ResetAt:    resetAt,
		}, nil
	}

	entry.timestamps = append(entry.timestamps, now)
	return Decision{
		Allowed:   true,
		Remaining: l.limit - len(entry.timestamps),
		ResetAt:   entry.timestamps[0].Add(l.window),
	}, nil
}

// maybeCleanup drops idle buckets at most once per cleanup interval.
func (l *Local) maybeCleanup(now time.Time) {
	last := l.lastCleanup.Load()
	if now.UnixNano()-last < int64(localCleanupInterval) {
		return
	}
	if !l.lastCleanup.CompareAndSwap(last, now.UnixNano()) {
		return
	}

	stale := make([]string, 0)
	for item := range l.entries.IterBuffered() {
		item.Val.mu.Lock()
		idle := now.Sub(item.Val.lastAccess) > localEntryTTL
		item.Val.mu.Unlock()
		if idle {
			stale = append(stale, item.Key)
		}
	}
	for _, key := range stale {
		l.entries.Remove(key)
	}

	// Hard cap: shed arbitrary buckets rather than grow without bound.
	for l.entries.Count() > localMaxEntries {
		for item := range l.entries.IterBuffered() {
			l.entries.Remove(item.Key)
			if l.entries.Count() <= localMaxEntries {
				break
			}
		}
	}
}
