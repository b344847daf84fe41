package health

import (
	"hash/fnv"
	"sync"
	"time"
)

const (
	// DefaultHistorySize is how many entries are kept per equipment.
	DefaultHistorySize = 100
	historyShards      = 32
)

// Entry is one scored reading in an equipment's rolling history.
type Entry struct {
	At    time.Time
	Score float64
}

// History is a bounded FIFO of entries per equipment, sharded by equipment id.
type History struct {
	size   int
	shards [historyShards]historyShard
}

type historyShard struct {
	mu      sync.Mutex
	entries map[string][]Entry
}

func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	h := &History{size: size}
	for i := range h.shards {
		h.shards[i].entries = make(map[string][]Entry)
	}
	return h
}

func (h *History) shard(id string) *historyShard {
	f := fnv.New32a()
	f.Write([]byte(id))
	return &h.shards[f.Sum32()%historyShards]
}

// Append adds an entry, evicting the oldest once the equipment is at capacity.
func (h *History) Append(id string, e Entry) {
	s := h.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.entries[id]
	if len(list) >= h.size {
		copy(list, list[len(list)-h.size+1:])
		list = list[:h.size-1]
	}
	s.entries[id] = append(list, e)
}

// Recent returns a copy of up to n newest entries, oldest first.
func (h *History) Recent(id string, n int) []Entry {
	s := h.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.entries[id]
	if n > len(list) || n <= 0 {
		n = len(list)
	}
	out := make([]Entry, n)
	copy(out, list[len(list)-n:])
	return out
}

func (h *History) Len(id string) int {
	s := h.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries[id])
}
