package lhd

import (
	"math/bits"

	"github.com/mpavkovic/lhd-go/ranker"
)

// tag is the per-resident-object metadata described by spec.md §3.
type tag struct {
	id ranker.Id

	// timestamp is the coarsened insertion/last-access time.
	timestamp uint32
	// lastHitAge and lastLastHitAge are the two most recent ages
	// observed at hit time; lastLastHitAge == MaxAge is the sentinel
	// for "no hit has been observed yet" (ages are always < MaxAge).
	lastHitAge     uint32
	lastLastHitAge uint32

	app  uint32
	size uint32
}

// tagTable is the dense, order-irrelevant sequence of resident tags plus
// an id->index map, per spec.md §4.1. Removal is O(1) via swap-with-last.
type tagTable struct {
	tags  []tag
	index map[ranker.Id]int
}

func newTagTable() tagTable {
	return tagTable{index: make(map[ranker.Id]int)}
}

func (tt *tagTable) len() int { return len(tt.tags) }

func (tt *tagTable) find(id ranker.Id) (int, bool) {
	idx, ok := tt.index[id]
	return idx, ok
}

func (tt *tagTable) at(idx int) *tag { return &tt.tags[idx] }

// insert appends a fresh tag for id. It fails with ranker.ErrDuplicate if
// id is already resident — a contract-respecting harness never hits this.
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

// removeAt removes the tag at idx via swap-with-last, fixing the index
// entry of whichever tag was moved into idx.
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

// hitAgeClass buckets a tag's recent reuse distance into
// [0, hitAgeClasses) ordinal bins: class 0 means "no hit observed yet";
// classes 1..hitAgeClasses-1 bucket lastHitAge by log2. This mapping is
// the one spec.md §4.2 calls "the simplest faithful mapping" and must
// stay stable across reconfigurations — it never depends on anything
// but the tag's own two stored ages.
func hitAgeClass(t *tag, maxAge, hitAgeClasses uint32) uint32 {
	if t.lastLastHitAge == maxAge {
		return 0
	}
	remaining := hitAgeClasses - 1
	if remaining == 0 {
		return 0
	}
	// floor(log2(lastHitAge + 1)), clamped into the remaining bins.
	bucket := uint32(bits.Len32(t.lastHitAge + 1) - 1)
	if bucket > remaining-1 {
		bucket = remaining - 1
	}
	return 1 + bucket
}
