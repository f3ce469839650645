// Package rankedlru implements the ranked-LRU degenerate case from
// spec.md §4.10: a companion ranker that uses rank(tag) = age(tag) with
// the same sampling and replacement protocol as LHD but no classes and
// no density model. It is useful as a baseline and as a sanity oracle —
// over a uniform-access trace its victim choices and hit rate should
// match a textbook LRU within sampling noise (spec.md §8 invariant 8).
package rankedlru

import (
	"github.com/mpavkovic/lhd-go/ranker"
)

// DefaultAssociativity mirrors ranker/lhd's steady-state sample count so
// the two rankers are comparable apples-to-apples in a harness. Unlike
// LHD, rankedlru has no model to warm up, so it samples this many
// candidates from the very first call.
const DefaultAssociativity = 64

// Config collects rankedlru's tuning knobs. It has no histogram-related
// fields since there is no density model to tune.
type Config struct {
	// Associativity is the steady-state victim sample count.
	Associativity int
	// RNGSeed seeds the deterministic sampler; 0 selects a fixed default.
	RNGSeed uint64
}

func (c Config) withDefaults() Config {
	if c.Associativity == 0 {
		c.Associativity = DefaultAssociativity
	}
	return c
}

// Factory builds per-handle Ranker instances sharing one Config.
type Factory struct {
	cfg Config
}

// New returns a Factory for the ranked-LRU scorer.
func New(cfg Config) Factory {
	return Factory{cfg: cfg.withDefaults()}
}

// New implements ranker.Factory.
func (f Factory) New(handle ranker.CacheHandle) ranker.Ranker {
	return &Ranker{
		cfg:    f.cfg,
		handle: handle,
		rng:    newRNG(f.cfg.RNGSeed),
		tags:   newTagTable(),
	}
}

type tag struct {
	id        ranker.Id
	timestamp uint64
}

type tagTable struct {
	tags  []tag
	index map[ranker.Id]int
}

func newTagTable() tagTable { return tagTable{index: make(map[ranker.Id]int)} }

func (tt *tagTable) len() int { return len(tt.tags) }

func (tt *tagTable) find(id ranker.Id) (int, bool) {
	idx, ok := tt.index[id]
	return idx, ok
}

func (tt *tagTable) at(idx int) *tag { return &tt.tags[idx] }

func (tt *tagTable) insert(id ranker.Id, t tag) (int, error) {
	if _, ok := tt.index[id]; ok {
		return 0, ranker.ErrDuplicate
	}
	t.id = id
	idx := len(tt.tags)
	tt.tags = append(tt.tags, t)
	tt.index[id] = idx
	return idx, nil
}

func (tt *tagTable) removeAt(idx int) {
	last := len(tt.tags) - 1
	removedID := tt.tags[idx].id
	if idx != last {
		tt.tags[idx] = tt.tags[last]
		tt.index[tt.tags[idx].id] = idx
	}
	tt.tags = tt.tags[:last]
	delete(tt.index, removedID)
}

// Ranker implements ranker.Ranker with age as the (negated) rank: the
// oldest sampled tag is always the victim.
type Ranker struct {
	cfg    Config
	handle ranker.CacheHandle
	rng    *rng

	tags      tagTable
	timestamp uint64
}

var _ ranker.Ranker = (*Ranker)(nil)

// Rank samples candidates uniformly and returns the one with the
// greatest age (i.e. the classic LRU choice), per spec.md §4.10.
func (r *Ranker) Rank(_ ranker.Request) (ranker.Id, error) {
	n := r.tags.len()
	if n == 0 {
		return 0, ranker.ErrEmpty
	}

	candidates := r.cfg.Associativity

	victim := -1
	var victimAge uint64
	for i := 0; i < candidates; i++ {
		idx := r.rng.intn(n)
		age := r.timestamp - r.tags.at(idx).timestamp
		if victim == -1 || age > victimAge {
			victim = idx
			victimAge = age
		}
	}
	return r.tags.at(victim).id, nil
}

// Update records id's most recent access time.
func (r *Ranker) Update(id ranker.Id, _ ranker.Request) {
	if idx, ok := r.tags.find(id); ok {
		r.tags.at(idx).timestamp = r.timestamp
	} else {
		_, _ = r.tags.insert(id, tag{timestamp: r.timestamp})
	}
	r.rng.next()
	r.timestamp++
}

// Replaced removes id's tag. Returns ranker.ErrUnknown if absent.
func (r *Ranker) Replaced(id ranker.Id) error {
	idx, ok := r.tags.find(id)
	if !ok {
		return ranker.ErrUnknown
	}
	r.tags.removeAt(idx)
	return nil
}
