// Package lhd implements the Least Hit Density (LHD) eviction ranker:
// an online, self-tuning victim-selection policy that estimates each
// resident object's expected remaining contribution to the hit rate per
// unit of occupied capacity, and samples a small set of candidates
// rather than scanning all of them.
//
// Ranker is driven by a single serialized stream of Update/Rank/Replaced
// calls from a cache harness, as described by the ranker package. It
// maintains decaying per-age, per-class histograms of hits and
// evictions, derives a hit-density curve from them, and periodically
// adapts its time quantization as the working set changes.
package lhd

import (
	"math"

	"github.com/mpavkovic/lhd-go/ranker"
)

// Factory builds per-handle Ranker instances sharing one Config. A
// harness that shards its keyspace constructs one Ranker per shard via
// the same Factory, mirroring how the teacher's shard-local policies are
// instantiated from a single Policy factory.
type Factory struct {
	cfg Config
}

// New validates cfg (after filling in defaults for zero fields) and
// returns a Factory. It panics on an inconsistent Config, matching this
// module's convention for construction-time argument errors.
func New(cfg Config) Factory {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		panic(err)
	}
	return Factory{cfg: cfg}
}

// New implements ranker.Factory.
func (f Factory) New(handle ranker.CacheHandle) ranker.Ranker {
	return newRanker(f.cfg, handle)
}

// Ranker is the per-handle LHD model state from spec.md §3.
type Ranker struct {
	cfg    Config
	handle ranker.CacheHandle
	rng    *rng

	tags    tagTable
	classes []class

	timestamp           uint64
	ageCoarseningShift  uint32
	nextReconfiguration uint64
	numReconfigurations uint64
	overflows           uint64
	ewmaNumObjects      float64
	ewmaNumObjectsMass  float64
}

var _ ranker.Ranker = (*Ranker)(nil)

func newRanker(cfg Config, handle ranker.CacheHandle) *Ranker {
	r := &Ranker{
		cfg:                 cfg,
		handle:              handle,
		rng:                 newRNG(cfg.RNGSeed),
		tags:                newTagTable(),
		classes:             make([]class, cfg.NumClasses),
		nextReconfiguration: cfg.AccsPerReconfiguration,
	}
	for c := range r.classes {
		r.classes[c] = newClass(cfg.MaxAge)
		r.classes[c].seedColdStart(uint32(c))
	}
	return r
}

// Rank implements ranker.Ranker. It samples K candidates uniformly from
// the tag table and returns the one with the lowest hit density, per
// spec.md §4.5.
func (r *Ranker) Rank(req ranker.Request) (ranker.Id, error) {
	n := r.tags.len()
	if n == 0 {
		return 0, ranker.ErrEmpty
	}

	candidates := warmupAssociativity
	if r.numReconfigurations > warmupReconfigurations {
		candidates = r.cfg.Associativity
	}

	victim := -1
	victimRank := math.Inf(1)
	for i := 0; i < candidates; i++ {
		idx := r.rng.intn(n)
		rank := r.getHitDensity(r.tags.at(idx))
		if rank < victimRank {
			victim = idx
			victimRank = rank
		}
	}
	return r.tags.at(victim).id, nil
}

// Update implements ranker.Ranker, per spec.md §4.6.
func (r *Ranker) Update(id ranker.Id, req ranker.Request) {
	var t *tag
	if idx, ok := r.tags.find(id); ok {
		t = r.tags.at(idx)
		age := r.getAge(t)
		cl := r.classFor(t)
		cl.hits[age]++
		t.lastLastHitAge = t.lastHitAge
		t.lastHitAge = age
	} else {
		// insert cannot fail: we just established id is absent.
		idx, _ := r.tags.insert(id, tag{
			lastLastHitAge: r.cfg.MaxAge,
			lastHitAge:     0,
		})
		t = r.tags.at(idx)
	}

	t.timestamp = uint32(r.timestamp >> r.ageCoarseningShift)
	t.app = uint32(req.AppID % uint64(r.cfg.AppClasses))
	t.size = req.Size

	r.rng.next()
	r.timestamp++

	r.nextReconfiguration--
	if r.nextReconfiguration == 0 {
		r.reconfigure()
		r.nextReconfiguration = r.cfg.AccsPerReconfiguration
		r.numReconfigurations++
	}
}

// Replaced implements ranker.Ranker, per spec.md §4.7.
func (r *Ranker) Replaced(id ranker.Id) error {
	idx, ok := r.tags.find(id)
	if !ok {
		return ranker.ErrUnknown
	}
	t := r.tags.at(idx)
	age := r.getAge(t)
	cl := r.classFor(t)
	cl.evictions[age]++
	r.tags.removeAt(idx)
	return nil
}

// reconfigure runs the periodic pass from spec.md §4.8: decay
// histograms, adapt the coarsening shift, rebuild the density curve.
func (r *Ranker) reconfigure() {
	for i := range r.classes {
		r.classes[i].decayAndTotals(r.cfg.EwmaDecay)
	}

	r.adaptAgeCoarsening()

	for i := range r.classes {
		r.classes[i].modelHitDensity()
	}

	if r.cfg.DumpRanks {
		r.dumpRanks()
	}

	r.overflows = 0
}

// getAge implements spec.md §4.2.
func (r *Ranker) getAge(t *tag) uint32 {
	cur := r.timestamp >> r.ageCoarseningShift
	diff := cur - uint64(t.timestamp)
	if diff >= uint64(r.cfg.MaxAge) {
		r.overflows++
		return r.cfg.MaxAge - 1
	}
	return uint32(diff)
}

// classFor implements spec.md §4.2's getClass, returning the class a
// tag currently belongs to.
func (r *Ranker) classFor(t *tag) *class {
	hac := hitAgeClass(t, r.cfg.MaxAge, r.cfg.HitAgeClasses)
	idx := t.app*r.cfg.HitAgeClasses + hac
	return &r.classes[idx]
}

// getHitDensity implements spec.md §4.4.
func (r *Ranker) getHitDensity(t *tag) float64 {
	cl := r.classFor(t)
	age := r.getAge(t)
	size := t.size
	if size < 1 {
		size = 1
	}
	return cl.hitDensities[age] / float64(size)
}

// NumReconfigurations reports how many reconfiguration passes have run.
// Exposed for harness diagnostics; not read back by the model itself.
func (r *Ranker) NumReconfigurations() uint64 { return r.numReconfigurations }

// AgeCoarseningShift reports the current coarsening shift. Exposed for
// harness diagnostics.
func (r *Ranker) AgeCoarseningShift() uint32 { return r.ageCoarseningShift }

// Overflows reports the age-clamp overflow count accumulated since the
// last reconfiguration. Exposed for harness diagnostics.
func (r *Ranker) Overflows() uint64 { return r.overflows }

// Len reports the number of resident tags. Exposed for harness diagnostics.
func (r *Ranker) Len() int { return r.tags.len() }
