// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package compute

import (
	"container/list"
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"github.com/gogpu/sdfscene/internal/ir"
	"github.com/gogpu/sdfscene/internal/ir/wgsl"
)

const (
	// cacheShards must be a power of 2 for fast modulo via bitwise AND.
	cacheShards = 8
	cacheMask   = cacheShards - 1

	// DefaultCacheCapacity is the default number of programs per shard.
	DefaultCacheCapacity = 8
)

// Cache memoizes compiled programs of an underlying device, keyed by the
// lowered WGSL source of the kernel. Rebuilding an unchanged scene therefore
// reuses the previous pipeline.
//
// Programs are reference counted: a program evicted from the cache stays
// valid until every handle returned by Compile has been released.
//
// Thread safety: Cache is safe for concurrent use.
type Cache struct {
	dev      Device
	shards   [cacheShards]*cacheShard
	capacity int

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

type cacheShard struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	lru     *list.List // front is most recent
}

type cacheEntry struct {
	key    string
	shared *sharedProgram
}

// sharedProgram counts the cache's own reference plus one per live handle.
type sharedProgram struct {
	prog Program
	refs atomic.Int32
}

func (s *sharedProgram) acquire() { s.refs.Add(1) }

func (s *sharedProgram) release() {
	if s.refs.Add(-1) == 0 {
		s.prog.Release()
	}
}

var _ Device = (*Cache)(nil)

// NewCache wraps dev. If capacity <= 0, DefaultCacheCapacity is used.
func NewCache(dev Device, capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	c := &Cache{dev: dev, capacity: capacity}
	for i := range c.shards {
		c.shards[i] = &cacheShard{entries: make(map[string]*list.Element), lru: list.New()}
	}
	return c
}

func (c *Cache) Name() string { return c.dev.Name() + "+cache" }

// Device returns the wrapped device.
func (c *Cache) Device() Device { return c.dev }

func (c *Cache) shard(key string) *cacheShard {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key)) // fnv.Write never returns an error
	return c.shards[h.Sum64()&cacheMask]
}

// Compile returns a cached program for k or compiles a new one. The compile
// runs with the shard lock held so concurrent requests for the same kernel
// compile once.
func (c *Cache) Compile(k *ir.Kernel) (Program, error) {
	key, err := wgsl.Lower(k)
	if err != nil {
		return nil, err
	}
	s := c.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.entries[key]; ok {
		s.lru.MoveToFront(el)
		c.hits.Add(1)
		sp := el.Value.(*cacheEntry).shared
		sp.acquire()
		return &cachedProgram{shared: sp}, nil
	}
	c.misses.Add(1)

	prog, err := c.dev.Compile(k)
	if err != nil {
		return nil, err
	}
	for s.lru.Len() >= c.capacity {
		oldest := s.lru.Back()
		e := s.lru.Remove(oldest).(*cacheEntry)
		delete(s.entries, e.key)
		e.shared.release()
		c.evictions.Add(1)
	}
	sp := &sharedProgram{prog: prog}
	sp.refs.Store(2) // cache + returned handle
	s.entries[key] = s.lru.PushFront(&cacheEntry{key: key, shared: sp})
	return &cachedProgram{shared: sp}, nil
}

// Purge drops every cached program. Outstanding handles stay valid.
func (c *Cache) Purge() {
	for _, s := range c.shards {
		s.mu.Lock()
		for _, el := range s.entries {
			el.Value.(*cacheEntry).shared.release()
		}
		s.entries = make(map[string]*list.Element)
		s.lru.Init()
		s.mu.Unlock()
	}
}

// Close purges the cache and closes the wrapped device.
func (c *Cache) Close() {
	c.Purge()
	c.dev.Close()
}

// CacheStats reports cache usage.
type CacheStats struct {
	Len       int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// Stats returns current cache statistics.
func (c *Cache) Stats() CacheStats {
	n := 0
	for _, s := range c.shards {
		s.mu.Lock()
		n += len(s.entries)
		s.mu.Unlock()
	}
	return CacheStats{Len: n, Hits: c.hits.Load(), Misses: c.misses.Load(), Evictions: c.evictions.Load()}
}

type cachedProgram struct {
	shared   *sharedProgram
	released atomic.Bool
}

func (p *cachedProgram) Stride() int { return p.shared.prog.Stride() }

func (p *cachedProgram) Dispatch(ctx context.Context, data []float32, width, height int) ([]float32, error) {
	if p.released.Load() {
		return nil, ErrReleased
	}
	return p.shared.prog.Dispatch(ctx, data, width, height)
}

func (p *cachedProgram) Release() {
	if p.released.CompareAndSwap(false, true) {
		p.shared.release()
	}
}
