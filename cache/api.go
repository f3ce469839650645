package cache

import (
	"context"
	"time"
)

// Cache is a sharded, in-memory key/value cache interface.
// All methods are safe for concurrent use by multiple goroutines.
//
// Typical complexity for operations is amortized O(1):
// a map lookup plus a constant number of ranker calls under a shard lock.
type Cache[K comparable, V any] interface {
	// Add inserts k→v only if k is not present.
	// It uses the cache's DefaultTTL (if any).
	// Returns false if the key already exists (no update is performed).
	Add(k K, v V) bool

	// Set inserts or updates k→v.
	// It uses the cache's DefaultTTL (if any), and promotes the entry
	// according to the active ranker.
	Set(k K, v V)

	// Get returns the value for k and a boolean flag indicating presence.
	// On hit, the entry's ranker standing is refreshed.
	Get(k K) (V, bool)

	// Remove deletes k if present and returns true on success.
	Remove(k K) bool

	// Len returns the total number of resident entries across all shards.
	Len() int

	// Close stops background workers (if any) and marks the cache closed.
	// Current implementation is a soft close and returns nil.
	Close() error

	// SetWithTTL inserts or updates k→v with a per-key TTL (relative duration).
	// A non-positive ttl disables expiration for this entry.
	SetWithTTL(k K, v V, ttl time.Duration)

	// GetOrLoad returns the value for k, loading it via Options.Loader on miss.
	// Concurrent loads for the same key are coalesced (singleflight).
	// If no Loader was configured, returns ErrNoLoader.
	GetOrLoad(ctx context.Context, k K) (V, error)

	// RankerStats returns one entry per shard describing the shard's
	// ranker. Rankers that don't expose the optional diagnostic methods
	// (see rankerDiagnostics) report a zero-value Stats for the
	// reconfiguration/coarsening fields; Len is always accurate.
	RankerStats() []RankerStats
}

// RankerStats is a per-shard snapshot of a ranker's diagnostic counters,
// intended for periodic export (e.g. to Prometheus gauges) rather than
// for anything the ranker or shard reads back.
type RankerStats struct {
	// Len is the number of tags currently resident in this shard's ranker.
	Len int
	// NumReconfigurations, AgeCoarseningShift, and Overflows are only
	// meaningful for rankers that track a reconfiguration schedule
	// (ranker/lhd); other rankers report zero for all three.
	NumReconfigurations uint64
	AgeCoarseningShift  uint32
	Overflows           uint64
}

// rankerDiagnostics is the optional introspection surface ranker/lhd.Ranker
// implements. A ranker that doesn't implement it still works; its shard
// just reports a Len-only RankerStats.
type rankerDiagnostics interface {
	NumReconfigurations() uint64
	AgeCoarseningShift() uint32
	Overflows() uint64
	Len() int
}
