package cache

import "github.com/mpavkovic/lhd-go/ranker"

// node holds a resident entry's key/value plus the bookkeeping a shard
// needs to drive its ranker and enforce TTL/cost limits. Unlike the
// teacher's intrusive-list node, there are no prev/next links: eviction
// order comes from the ranker, not from list position.
type node[K comparable, V any] struct {
	key K
	val V

	// rid is this entry's identity in the shard's ranker. Assigned once
	// at insertion and never reused while the entry is resident.
	rid ranker.Id

	// Absolute expiration deadline in UnixNano.
	// Zero means "no TTL".
	exp int64

	// Logical "cost" used when MaxCost is enabled, and reported to the
	// ranker as ranker.Request.Size.
	cost int32
}

// Key returns the node key.
func (n *node[K, V]) Key() K { return n.key }

// Value returns a pointer to the stored value.
// NOTE: callers must only read/write through this pointer while holding the
// shard lock; otherwise data races may occur.
func (n *node[K, V]) Value() *V { return &n.val }
