// Package cache provides a fast, generic, sharded in-memory cache with a
// pluggable victim-selection ranker (LHD by default), per-entry TTL,
// optional singleflight loading, lightweight metrics hooks, and
// cost-based capacity.
//
// Design
//
//   - Concurrency: the cache is split into shards, each protected by an
//     RWMutex. The default shard count is chosen by a heuristic
//     (ReasonableShardCount) and is a power of two. Picking shards reduces
//     contention while keeping memory overhead small.
//
//   - Storage: each shard keeps a map[K]*node for lookups and hands its
//     own ranker one Update/Rank/Replaced call per operation; there is no
//     intrusive list, since eviction order lives entirely in the ranker.
//
//   - Rankers: eviction is pluggable via the ranker package. ranker/lhd
//     (Least Hit Density) is the default; ranker/rankedlru is provided as
//     a degenerate age-only baseline. More rankers can be added without
//     changing the shard.
//
//   - TTL: entries can have per-item deadlines (UnixNano). Expiration is lazy:
//     an expired entry is removed when it is next read. Trimming to capacity
//     picks victims through the ranker and does not look at deadlines.
//
//   - Cost/MaxCost: besides entry count (Capacity), you may account a user-defined
//     "cost" per value (Options.Cost) and enforce a global MaxCost. Shards split
//     the MaxCost budget evenly, and cost doubles as the ranker's request size.
//
//   - GetOrLoad: coalesces concurrent loads for the same key using singleflight.
//     If Loader is nil, GetOrLoad returns ErrNoLoader.
//
//   - Metrics: Options.Metrics receives Hit/Miss/Evict/Size signals.
//     By default NoopMetrics is used; plug a Prometheus adapter to export metrics.
//
//   - Callbacks: Options.OnEvict(k, v, reason) is called for every eviction
//     (reason is one of EvictPolicy, EvictTTL, EvictCapacity).
//
// Basic usage
//
//	// Create a default (LHD-ranked) cache with capacity for 10k entries.
//	c := cache.New[string, []byte](cache.Options[string, []byte]{Capacity: 10_000})
//	c.Set("a", []byte("1"))
//	if v, ok := c.Get("a"); ok {
//	    _ = v // use value
//	}
//	c.Remove("a")
//
// With TTL
//
//	c := cache.New[string, string](cache.Options[string, string]{Capacity: 1024})
//	c.SetWithTTL("tmp", "v", 200*time.Millisecond)
//	time.Sleep(300*time.Millisecond)
//	_, ok := c.Get("tmp") // ok == false (expired)
//
// With GetOrLoad (singleflight)
//
//	c := cache.New[string, string](cache.Options[string, string]{
//	    Capacity: 1024,
//	    Loader: func(ctx context.Context, k string) (string, error) {
//	        // e.g. fetch from DB
//	        return "v:" + k, nil
//	    },
//	})
//	v, err := c.GetOrLoad(context.Background(), "key")
//
// Using the ranked-LRU baseline instead of LHD
//
//	c := cache.New[string, string](cache.Options[string, string]{
//	    Capacity: 50_000,
//	    Ranker:   rankedlru.New(rankedlru.Config{}),
//	})
//
// Exporting metrics (example Prometheus adapter)
//
//	m := prom.New(nil, "cachex", "demo", nil) // implements Metrics
//	c := cache.New[string, []byte](cache.Options[string, []byte]{
//	    Capacity: 10_000,
//	    Metrics:  m,
//	})
//
// Thread-safety & complexity
//
// All methods on Cache are safe for concurrent use. Typical operation cost is
// O(1) expected time: one map access and a constant number of ranker calls.
// Eviction work is also O(1) per removed item (a fixed-size random sample,
// not a full scan).
//
// See package cache/options.go for all available Options fields and package
// ranker for the Ranker/Factory interfaces used to implement custom strategies.
package cache
