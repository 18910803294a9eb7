// Package store implements LocalStore: a bounded-capacity LRU map with
// per-entry TTL expiry and hit/miss/put/delete accounting, per spec.md
// §4.1. The LRU order is modeled with container/list the way
// Krishna8167-tempuscache does (map[key]*list.Element + a recency list),
// generalized to the spec's eviction and TTL-sweep rules.
package store

import (
	"container/list"
	"runtime"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/akshatgopal/distributed-cache-project/internal/entry"
)

// DefaultMaxEntries is used whenever max_entries is misconfigured
// (<= 0), per spec.md §4.1.
const DefaultMaxEntries = 1000

type elem struct {
	key   string
	entry entry.Entry
}

// LocalStore is a concurrent, bounded LRU cache of key -> entry.Entry.
// All mutating operations (Put, Delete, eviction, TTL sweep, Snapshot's
// proactive expiry) are serialized through mu; counters are atomic and
// readable without blocking.
type LocalStore struct {
	mu         sync.Mutex
	data       map[string]*list.Element
	lru        *list.List // front = most recently used
	maxEntries int

	hits    atomic.Uint64
	misses  atomic.Uint64
	puts    atomic.Uint64
	deletes atomic.Uint64

	sweepStop chan struct{}
	sweepOnce sync.Once
	logger    *zap.Logger
}

// New builds a LocalStore with the given capacity and starts its
// background TTL sweeper (first run after 1 minute, every 5 minutes
// thereafter, per spec.md §4.1). maxEntries <= 0 logs a warning and falls
// back to DefaultMaxEntries.
func New(maxEntries int, logger *zap.Logger) *LocalStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxEntries <= 0 {
		logger.Warn("store: max_entries misconfigured, falling back to default",
			zap.Int("configured", maxEntries), zap.Int("default", DefaultMaxEntries))
		maxEntries = DefaultMaxEntries
	}
	s := &LocalStore{
		data:       make(map[string]*list.Element),
		lru:        list.New(),
		maxEntries: maxEntries,
		sweepStop:  make(chan struct{}),
		logger:     logger,
	}
	go s.sweepLoop()
	return s
}

// Put inserts or replaces the entry for key, stamping CreationTime=now and
// promoting key to most-recently-used. It may evict the least-recently-used
// key if this insertion pushes size above maxEntries; eviction does not
// increment the deletes counter.
func (s *LocalStore) Put(key string, value entry.Value, ttl time.Duration) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	e := entry.New(value, ttl, now)
	if existing, ok := s.data[key]; ok {
		existing.Value = elem{key: key, entry: e}
		s.lru.MoveToFront(existing)
		s.puts.Inc()
		return
	}

	le := s.lru.PushFront(elem{key: key, entry: e})
	s.data[key] = le
	s.puts.Inc()

	if s.lru.Len() > s.maxEntries {
		s.evictOldestLocked()
	}
}

// Get returns the value for key if present and not expired. An expired
// entry observed here is removed before Get returns, and counts as a
// miss.
func (s *LocalStore) Get(key string) (entry.Value, bool) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	le, ok := s.data[key]
	if !ok {
		s.misses.Inc()
		return entry.Value{}, false
	}
	ev := le.Value.(elem)
	if ev.entry.IsExpired(now) {
		s.removeLocked(le)
		s.misses.Inc()
		return entry.Value{}, false
	}
	s.lru.MoveToFront(le)
	s.hits.Inc()
	return ev.entry.Value, true
}

// Delete removes key if present. deletes is incremented unconditionally,
// even when the key was already absent (spec.md §9 open question,
// resolved in DESIGN.md: preserve as specified).
func (s *LocalStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if le, ok := s.data[key]; ok {
		s.removeLocked(le)
	}
	s.deletes.Inc()
}

// Size returns the number of non-expired entries. Entries that are
// expired but not yet swept are excluded from the count even though they
// remain reachable in the map until the next Get/sweep.
func (s *LocalStore) Size() int {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for e := s.lru.Front(); e != nil; e = e.Next() {
		if !e.Value.(elem).entry.IsExpired(now) {
			n++
		}
	}
	return n
}

// Snapshot returns a point-in-time copy of non-expired (key, value)
// pairs, proactively removing any expired entries it observes.
func (s *LocalStore) Snapshot() map[string]entry.Value {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]entry.Value, len(s.data))
	var e *list.Element = s.lru.Front()
	for e != nil {
		next := e.Next()
		ev := e.Value.(elem)
		if ev.entry.IsExpired(now) {
			s.removeLocked(e)
		} else {
			out[ev.key] = ev.entry.Value
		}
		e = next
	}
	return out
}

// Stats is a snapshot of the store's monotonic counters.
type Stats struct {
	Hits    uint64
	Misses  uint64
	Puts    uint64
	Deletes uint64
}

// Stats returns the current hit/miss/put/delete counters. Reading them
// never blocks on the store's mutex.
func (s *LocalStore) Stats() Stats {
	return Stats{
		Hits:    s.hits.Load(),
		Misses:  s.misses.Load(),
		Puts:    s.puts.Load(),
		Deletes: s.deletes.Load(),
	}
}

// MemoryUsage reports this process's currently allocated heap bytes, used
// as the "process-wide used-bytes" reporting hook spec.md leaves
// abstract.
func (s *LocalStore) MemoryUsage() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.Alloc
}

// TotalMemory reports this process's total bytes obtained from the OS,
// used as the "process-wide heap bytes" reporting hook.
func (s *LocalStore) TotalMemory() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.Sys
}

// Shutdown cancels the background TTL sweeper. Safe to call once.
func (s *LocalStore) Shutdown() {
	s.sweepOnce.Do(func() { close(s.sweepStop) })
}

func (s *LocalStore) evictOldestLocked() {
	back := s.lru.Back()
	if back == nil {
		return
	}
	ev := back.Value.(elem)
	s.removeLocked(back)
	s.logger.Debug("store: evicted lru entry", zap.String("key", ev.key))
}

// removeLocked removes e from both the list and the map. Caller must hold
// s.mu.
func (s *LocalStore) removeLocked(e *list.Element) {
	ev := e.Value.(elem)
	s.lru.Remove(e)
	delete(s.data, ev.key)
}

func (s *LocalStore) sweepLoop() {
	initial := time.NewTimer(time.Minute)
	defer initial.Stop()
	select {
	case <-initial.C:
	case <-s.sweepStop:
		return
	}

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	s.sweepExpired()
	for {
		select {
		case <-ticker.C:
			s.sweepExpired()
		case <-s.sweepStop:
			return
		}
	}
}

func (s *LocalStore) sweepExpired() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.lru.Front()
	removed := 0
	for e != nil {
		next := e.Next()
		if e.Value.(elem).entry.IsExpired(now) {
			s.removeLocked(e)
			removed++
		}
		e = next
	}
	if removed > 0 {
		s.logger.Debug("store: ttl sweep removed entries", zap.Int("count", removed))
	}
}
