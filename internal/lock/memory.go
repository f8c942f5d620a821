package lock

import (
	"context"
	"sync"
	"time"

	"github.com/aevon-lab/aggindex/internal/core/partition"
)

// memoryBackend keeps one single-slot channel per locked key. Keys are
// spread over partition.Count shards so unrelated keys rarely contend on
// the bookkeeping mutex.
type memoryBackend struct {
	shards [partition.Count]memoryShard
}

type memoryShard struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewMemory returns a Locker for a single process.
func NewMemory(acquireTimeout time.Duration) *Locker {
	b := &memoryBackend{}
	for i := range b.shards {
		b.shards[i].slots = make(map[string]*slot)
	}
	return &Locker{backend: b, acquireTimeout: acquireTimeout}
}

func (b *memoryBackend) name() string { return "memory" }

func (b *memoryBackend) lock(ctx context.Context, key string) (func(context.Context) error, error) {
	shard := &b.shards[partition.For(key)]

	shard.mu.Lock()
	s, ok := shard.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		shard.slots[key] = s
	}
	s.refs++
	shard.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		shard.forget(key, s)
		return nil, ctx.Err()
	}

	return func(context.Context) error {
		<-s.ch
		shard.forget(key, s)
		return nil
	}, nil
}

// forget drops the caller's reference and the slot once nobody waits on it.
func (s *memoryShard) forget(key string, sl *slot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl.refs--
	if sl.refs == 0 {
		delete(s.slots, key)
	}
}
