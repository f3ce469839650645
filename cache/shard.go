package cache

import (
	"sync"
	"time"

	"github.com/mpavkovic/lhd-go/internal/util"
	"github.com/mpavkovic/lhd-go/ranker"
)

// shard is an independent partition of the cache with its own lock, map,
// and ranker instance. Eviction order is delegated entirely to the
// ranker: the shard just tracks residency and feeds it Update/Replaced
// calls, and asks it for a victim via Rank when over limit.
type shard[K comparable, V any] struct {
	// ---- guarded by mu ----
	mu      sync.RWMutex
	m       map[K]*node[K, V]
	byID    map[ranker.Id]*node[K, V]
	nextID  ranker.Id
	len     int   // number of resident entries
	cost    int64 // total cost (if MaxCost is enabled)
	cap     int   // per-shard entry capacity
	maxCost int64 // per-shard cost limit (0 = disabled)

	rnk ranker.Ranker
	opt Options[K, V]

	// ---- hot counters (separate cache lines to avoid false sharing) ----
	_      util.CacheLinePad
	hits   util.PaddedAtomicInt64
	misses util.PaddedAtomicInt64
	evicts util.PaddedAtomicUint64
}

// newShard initializes a shard with per-shard capacity, a ranker
// factory, and options. maxCost is derived by splitting opt.MaxCost
// evenly across shards.
func newShard[K comparable, V any](capacity int, rf ranker.Factory, opt Options[K, V]) *shard[K, V] {
	s := &shard[K, V]{
		m:    make(map[K]*node[K, V], capacity),
		byID: make(map[ranker.Id]*node[K, V], capacity),
		cap:  capacity,
		opt:  opt,
	}

	if opt.MaxCost > 0 {
		shards := opt.Shards
		if shards <= 0 {
			shards = util.ReasonableShardCount()
		}
		s.maxCost = (opt.MaxCost + int64(shards) - 1) / int64(shards)
	}

	s.rnk = rf.New(shardHandle[K, V]{s: s})
	return s
}

// Add inserts a NEW entry (no update) via the ranker.
// ttl is an absolute UnixNano deadline (0 = no TTL); cost is the logical weight (0 = equal).
// Returns false if the key already exists.
func (s *shard[K, V]) Add(k K, v V, ttl int64, cost int32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.m[k]; exists {
		return false
	}
	s.insertLocked(k, v, ttl, cost)
	s.enforceLimitsLocked()
	return true
}

// Set inserts or updates an entry and refreshes its ranker standing.
func (s *shard[K, V]) Set(k K, v V, ttl int64, cost int32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n, ok := s.m[k]; ok {
		oldCost := int64(n.cost)
		n.val = v
		n.exp = ttl
		n.cost = cost
		s.cost += int64(cost) - oldCost

		s.rnk.Update(n.rid, s.requestFor(k, n))
		s.enforceLimitsLocked()
		return
	}

	s.insertLocked(k, v, ttl, cost)
	s.enforceLimitsLocked()
}

// Get returns the value and refreshes its ranker standing.
// TTL: if expired, the entry is evicted and a miss is returned.
func (s *shard[K, V]) Get(k K) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.m[k]
	if !ok {
		s.misses.Add(1)
		s.opt.Metrics.Miss()
		var zero V
		return zero, false
	}
	if s.expiredLocked(n) {
		s.evictNode(n, EvictTTL)
		s.misses.Add(1)
		s.opt.Metrics.Miss()
		var zero V
		return zero, false
	}

	s.rnk.Update(n.rid, s.requestFor(k, n))
	s.hits.Add(1)
	s.opt.Metrics.Hit()
	return n.val, true
}

// Remove deletes an entry by key. Returns true if the entry existed.
func (s *shard[K, V]) Remove(k K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.m[k]
	if !ok {
		return false
	}
	s.forgetLocked(n)
	delete(s.m, k)
	// Note: explicit Remove is not counted as an eviction in metrics;
	// add a dedicated "deletes" counter if needed.
	return true
}

// Len returns the number of resident entries in this shard.
func (s *shard[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.len
}

// -------------------- internals (mu held) --------------------

func (s *shard[K, V]) expiredLocked(n *node[K, V]) bool {
	if n.exp == 0 {
		return false
	}
	return s.now() > n.exp
}

func (s *shard[K, V]) now() int64 {
	if s.opt.Clock != nil {
		return s.opt.Clock.NowUnixNano()
	}
	return time.Now().UnixNano()
}

// insertLocked creates a node, assigns it a fresh ranker id, and tells
// the ranker about it via Update (an unseen id is treated as a new
// arrival, per the ranker contract).
func (s *shard[K, V]) insertLocked(k K, v V, ttl int64, cost int32) {
	rid := s.nextID
	s.nextID++

	n := &node[K, V]{key: k, val: v, exp: ttl, cost: cost, rid: rid}
	s.m[k] = n
	s.byID[rid] = n
	s.len++
	s.cost += int64(cost)

	s.rnk.Update(rid, s.requestFor(k, n))
}

// requestFor builds the ranker.Request describing k/n, applying
// Options.AppID (default: every key belongs to app 0) and treating a
// zero cost as size 1 so the density model never divides by zero.
func (s *shard[K, V]) requestFor(k K, n *node[K, V]) ranker.Request {
	var appID uint64
	if s.opt.AppID != nil {
		appID = s.opt.AppID(k)
	}
	size := uint32(n.cost)
	if size < 1 {
		size = 1
	}
	return ranker.Request{AppID: appID, Size: size}
}

// forgetLocked removes n from the shard's own bookkeeping and tells the
// ranker it is gone. The ranker contract only distinguishes "resident"
// from "not resident" — it has no separate signal for "deleted by the
// caller" versus "evicted for space" — so an explicit Remove/TTL expiry
// reports the same Replaced call a capacity eviction would. This slightly
// overcounts the eviction side of the density model for caches that rely
// heavily on explicit deletion, but the decaying histograms self-correct
// as fresher samples arrive.
func (s *shard[K, V]) forgetLocked(n *node[K, V]) {
	_ = s.rnk.Replaced(n.rid)
	delete(s.byID, n.rid)
	s.len--
	s.cost -= int64(n.cost)
	if s.cost < 0 {
		s.cost = 0
	}
}

// evictNode removes the node, updates metrics/counters, and fires OnEvict.
func (s *shard[K, V]) evictNode(n *node[K, V], reason EvictReason) {
	s.forgetLocked(n)
	delete(s.m, n.key)
	s.evicts.Add(1)
	s.opt.Metrics.Evict(reason)
	if cb := s.opt.OnEvict; cb != nil {
		// Note: calling callbacks under the lock is safer but may add latency.
		// If you move this outside the lock later, pass copies of key/value.
		cb(n.key, n.val, reason)
	}
}

// enforceLimitsLocked asks the ranker for a victim until both count and
// cost limits are satisfied.
func (s *shard[K, V]) enforceLimitsLocked() {
	for s.len > s.cap {
		if !s.evictOneLocked(EvictPolicy) {
			break
		}
	}
	if s.maxCost > 0 {
		for s.cost > s.maxCost {
			if !s.evictOneLocked(EvictCapacity) {
				break
			}
		}
	}
	s.opt.Metrics.Size(s.len, s.cost)
}

// evictOneLocked asks the ranker to rank the resident set and evicts its
// pick. Returns false if the shard is empty or the ranker's answer no
// longer resolves to a resident node (should not happen under correct
// bookkeeping, but a harness must not panic on a stale id).
func (s *shard[K, V]) evictOneLocked(reason EvictReason) bool {
	victim, err := s.rnk.Rank(ranker.Request{})
	if err != nil {
		return false
	}
	n, ok := s.byID[victim]
	if !ok {
		return false
	}
	s.evictNode(n, reason)
	return true
}

// rankerStats reports this shard's ranker diagnostics, falling back to a
// Len-only snapshot if the ranker doesn't implement rankerDiagnostics.
func (s *shard[K, V]) rankerStats() RankerStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.rnk.(rankerDiagnostics)
	if !ok {
		return RankerStats{Len: s.len}
	}
	return RankerStats{
		Len:                 d.Len(),
		NumReconfigurations: d.NumReconfigurations(),
		AgeCoarseningShift:  d.AgeCoarseningShift(),
		Overflows:           d.Overflows(),
	}
}

// -------------------- ranker.CacheHandle --------------------

// shardHandle exposes the shard's occupancy to its ranker without
// letting the ranker reach into shard internals directly.
type shardHandle[K comparable, V any] struct{ s *shard[K, V] }

func (h shardHandle[K, V]) NumObjects() int { return h.s.len }

func (h shardHandle[K, V]) ConsumedCapacity() int64 {
	if h.s.maxCost > 0 {
		return h.s.cost
	}
	return int64(h.s.len)
}
