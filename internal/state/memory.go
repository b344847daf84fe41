package state

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"bmsengine/internal/metrics"
)

const memoryShards = 16

// MemoryStore keeps cooldown stamps in process. Expired stamps are swept and the total
// number of entries is capped, evicting the oldest first.
type MemoryStore struct {
	window     time.Duration
	maxEntries int
	count      atomic.Int64
	closed     atomic.Bool
	shards     [memoryShards]memoryShard
}

type memoryShard struct {
	mu    sync.Mutex
	stamp map[string]time.Time
}

func NewMemoryStore(window time.Duration, maxEntries int) *MemoryStore {
	if maxEntries < memoryShards {
		maxEntries = memoryShards
	}
	s := &MemoryStore{window: window, maxEntries: maxEntries}
	for i := range s.shards {
		s.shards[i].stamp = make(map[string]time.Time)
	}
	return s
}

func (s *MemoryStore) shard(key string) *memoryShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &s.shards[h.Sum32()%memoryShards]
}

func (s *MemoryStore) Claim(_ context.Context, key string, now time.Time) (bool, error) {
	if s.closed.Load() {
		return false, ErrStoreClosed
	}

	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if last, ok := sh.stamp[key]; ok {
		if now.Sub(last) < s.window {
			return false, nil
		}
		sh.stamp[key] = now
		return true, nil
	}

	perShard := s.maxEntries / memoryShards
	if len(sh.stamp) >= perShard {
		s.sweepShard(sh, now)
	}
	for len(sh.stamp) >= perShard {
		s.evictOldest(sh)
	}

	sh.stamp[key] = now
	s.count.Add(1)
	metrics.CooldownEntries.Set(float64(s.count.Load()))
	return true, nil
}

// Sweep drops every stamp older than the window and returns how many were removed.
func (s *MemoryStore) Sweep(now time.Time) int {
	removed := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		removed += s.sweepShard(sh, now)
		sh.mu.Unlock()
	}
	metrics.CooldownEntries.Set(float64(s.count.Load()))
	return removed
}

// Run sweeps on every tick until ctx is done.
func (s *MemoryStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Sweep(now)
		}
	}
}

func (s *MemoryStore) Len() int { return int(s.count.Load()) }

func (s *MemoryStore) Close() error {
	s.closed.Store(true)
	return nil
}

func (s *MemoryStore) sweepShard(sh *memoryShard, now time.Time) int {
	removed := 0
	for key, last := range sh.stamp {
		if now.Sub(last) >= s.window {
			delete(sh.stamp, key)
			removed++
		}
	}
	s.count.Add(int64(-removed))
	return removed
}

func (s *MemoryStore) evictOldest(sh *memoryShard) {
	var (
		oldestKey string
		oldest    time.Time
		found     bool
	)
	for key, last := range sh.stamp {
		if !found || last.Before(oldest) {
			oldestKey, oldest, found = key, last, true
		}
	}
	if found {
		delete(sh.stamp, oldestKey)
		s.count.Add(-1)
	}
}
