// Command bench runs a synthetic or trace-replay workload against the
// cache and exposes optional pprof/Prometheus endpoints.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mpavkovic/lhd-go/cache"
	pmet "github.com/mpavkovic/lhd-go/metrics/prom"
	"github.com/mpavkovic/lhd-go/ranker"
	"github.com/mpavkovic/lhd-go/ranker/lhd"
	"github.com/mpavkovic/lhd-go/ranker/rankedlru"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// ---- Flags ----
	var (
		capacity = flag.Int("cap", 100_000, "cache capacity (entries)")
		shards   = flag.Int("shards", 0, "number of shards (0=auto)")
		rk       = flag.String("ranker", "lhd", "eviction ranker: lhd | rankedlru")
		assoc    = flag.Int("associativity", 0, "victim sample size (0=ranker default)")

		workers  = flag.Int("workers", 2*runtime.GOMAXPROCS(0), "number of worker goroutines")
		duration = flag.Duration("duration", 10*time.Second, "benchmark duration (ignored with -trace)")
		readPct  = flag.Int("reads", 80, "read percentage [0..100] for the synthetic workload")

		keys    = flag.Int("keys", 1_000_000, "keyspace size (synthetic workload)")
		zipfS   = flag.Float64("zipf_s", 1.1, "Zipf s > 1 (skew)")
		zipfV   = flag.Float64("zipf_v", 1.0, "Zipf v")
		seed    = flag.Int64("seed", time.Now().UnixNano(), "random seed")
		preload = flag.Int("preload", 0, "preload entries (0 = cap/2, synthetic workload only)")

		trace = flag.String("trace", "", "replay a CSV trace (id,appId,size per line) instead of the synthetic workload")

		pprofAddr   = flag.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
		metricsAddr = flag.String("http", ":8080", "serve Prometheus metrics at addr")
	)
	flag.Parse()

	// ---- pprof server (on DefaultServeMux) ----
	if *pprofAddr != "" {
		go func() {
			log.Printf("pprof: serving at %s", *pprofAddr)
			log.Println(http.ListenAndServe(*pprofAddr, nil))
		}()
	}

	// ---- Prometheus metrics (on DefaultServeMux) ----
	metrics := pmet.New(nil, "lhd", "bench", nil)
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		log.Printf("metrics: serving at %s", *metricsAddr)
		log.Println(http.ListenAndServe(*metricsAddr, nil))
	}()

	// ---- Build cache ----
	appIDs := newTraceIndex()
	opt := cache.Options[string, string]{
		Capacity: *capacity,
		Shards:   *shards,
		Metrics:  metrics,
		AppID:    appIDs.appIDFor,
		Cost:     func(string) int { return 1 },
	}
	var rf ranker.Factory
	switch *rk {
	case "lhd":
		cfg := lhd.Config{}
		if *assoc > 0 {
			cfg.Associativity = *assoc
		}
		rf = lhd.New(cfg)
	case "rankedlru":
		cfg := rankedlru.Config{}
		if *assoc > 0 {
			cfg.Associativity = *assoc
		}
		rf = rankedlru.New(cfg)
	default:
		log.Fatalf("unknown ranker: %q (use lhd or rankedlru)", *rk)
	}
	opt.Ranker = rf
	c := cache.New[string, string](opt)
	defer func() { _ = c.Close() }()

	statsDone := make(chan struct{})
	defer close(statsDone)
	go func() {
		t := time.NewTicker(2 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-statsDone:
				return
			case <-t.C:
				metrics.ObserveRanker(c.RankerStats())
			}
		}
	}()

	var report func()
	if *trace != "" {
		report = runTraceReplay(c, *trace, appIDs)
	} else {
		report = runSyntheticWorkload(c, syntheticConfig{
			capacity: *capacity,
			shards:   *shards,
			workers:  *workers,
			duration: *duration,
			readPct:  *readPct,
			keys:     *keys,
			zipfS:    *zipfS,
			zipfV:    *zipfV,
			seed:     *seed,
			preload:  *preload,
		})
	}

	fmt.Printf("ranker=%s cap=%d shards=%d\n", *rk, *capacity, *shards)
	report()
	fmt.Printf("Len()=%d\n", c.Len())
}

// traceIndex records each key's declared AppID so Options.AppID can look
// it up without threading an extra parameter through Cache's interface.
// Only runTraceReplay populates it, before the key it describes is first
// touched; reads come from inside shard-locked code and take the read
// lock.
type traceIndex struct {
	mu sync.RWMutex
	m  map[string]uint64
}

func newTraceIndex() *traceIndex { return &traceIndex{m: make(map[string]uint64)} }

func (t *traceIndex) set(key string, appID uint64) {
	t.mu.Lock()
	t.m[key] = appID
	t.mu.Unlock()
}

func (t *traceIndex) appIDFor(key string) uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.m[key]
}

type syntheticConfig struct {
	capacity, shards, workers, keys, preload int
	duration                                 time.Duration
	readPct                                  int
	zipfS, zipfV                             float64
	seed                                     int64
}

// runSyntheticWorkload preloads half of capacity and then runs a
// Zipf-distributed read/write mix across workers for cfg.duration,
// returning a closure that prints the collected counters.
func runSyntheticWorkload(c cache.Cache[string, string], cfg syntheticConfig) func() {
	pl := cfg.preload
	if pl == 0 {
		pl = cfg.capacity / 2
	}
	for i := 0; i < pl; i++ {
		k := "k:" + strconv.Itoa(i)
		c.Set(k, "v"+strconv.Itoa(i))
	}

	keysMax := uint64(cfg.keys - 1)
	workersN := cfg.workers
	if workersN <= 0 {
		workersN = 1
	}

	var reads, writes, hits, misses, total uint64
	ctx, cancel := context.WithTimeout(context.Background(), cfg.duration)
	defer cancel()

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(workersN)
	for w := 0; w < workersN; w++ {
		go func(id int) {
			defer wg.Done()

			// Each worker gets its own RNG + Zipf (rand.Rand is NOT goroutine-safe).
			localR := rand.New(rand.NewSource(cfg.seed + int64(id)*9973))
			localZipf := rand.NewZipf(localR, cfg.zipfS, cfg.zipfV, keysMax)

			keyByZipf := func() string {
				return "k:" + strconv.FormatUint(localZipf.Uint64(), 10)
			}

			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				atomic.AddUint64(&total, 1)
				if int(localR.Int31n(100)) < cfg.readPct {
					atomic.AddUint64(&reads, 1)
					if _, ok := c.Get(keyByZipf()); ok {
						atomic.AddUint64(&hits, 1)
					} else {
						atomic.AddUint64(&misses, 1)
					}
				} else {
					atomic.AddUint64(&writes, 1)
					k := keyByZipf()
					c.Set(k, "v"+strconv.Itoa(localR.Int()))
				}
			}
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	return func() {
		ops := atomic.LoadUint64(&total)
		readsN := atomic.LoadUint64(&reads)
		writesN := atomic.LoadUint64(&writes)
		hitsN := atomic.LoadUint64(&hits)
		missesN := atomic.LoadUint64(&misses)

		hitRate := 0.0
		if readsN > 0 {
			hitRate = float64(hitsN) / float64(readsN) * 100
		}

		fmt.Printf("workers=%d dur=%v seed=%d\n", workersN, elapsed, cfg.seed)
		fmt.Printf("ops=%d (%.0f ops/s)  reads=%d  writes=%d\n",
			ops, float64(ops)/elapsed.Seconds(), readsN, writesN)
		fmt.Printf("hits=%d  misses=%d  hit-rate=%.2f%%\n", hitsN, missesN, hitRate)
	}
}

// runTraceReplay single-threads a CSV trace of "id,appId,size" lines
// through the cache: a Get miss is treated as a load followed by an
// admitting Set, matching the classic cache-simulator replay model. It
// records each record's AppID in idx before the corresponding Get so
// Options.AppID sees it on first touch. A record's size only sets the
// length of the stored value; Options.Cost counts every entry as 1.
func runTraceReplay(c cache.Cache[string, string], path string, idx *traceIndex) func() {
	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("open trace %q: %v", path, err)
	}
	defer f.Close()

	var total, hits, misses uint64
	start := time.Now()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		id, appID, size, ok := parseTraceLine(line)
		if !ok {
			continue
		}
		idx.set(id, appID)

		total++
		if v, ok := c.Get(id); ok {
			_ = v
			hits++
			continue
		}
		misses++
		c.Set(id, strings.Repeat("x", int(size)))
	}
	if err := scanner.Err(); err != nil {
		log.Fatalf("reading trace %q: %v", path, err)
	}
	elapsed := time.Since(start)

	return func() {
		hitRate := 0.0
		if total > 0 {
			hitRate = float64(hits) / float64(total) * 100
		}
		fmt.Printf("trace=%s records=%d dur=%v\n", path, total, elapsed)
		fmt.Printf("hits=%d  misses=%d  hit-rate=%.2f%%\n", hits, misses, hitRate)
	}
}

// parseTraceLine parses "id,appId,size"; size defaults to 1 and appId to
// 0 when omitted, so a bare "id" per line also replays.
func parseTraceLine(line string) (id string, appID uint64, size uint64, ok bool) {
	fields := strings.Split(line, ",")
	if len(fields) == 0 || fields[0] == "" {
		return "", 0, 0, false
	}
	id = fields[0]
	size = 1
	if len(fields) > 1 {
		v, err := strconv.ParseUint(strings.TrimSpace(fields[1]), 10, 64)
		if err != nil {
			return "", 0, 0, false
		}
		appID = v
	}
	if len(fields) > 2 {
		v, err := strconv.ParseUint(strings.TrimSpace(fields[2]), 10, 64)
		if err != nil {
			return "", 0, 0, false
		}
		if v > 0 {
			size = v
		}
	}
	return id, appID, size, true
}
