package lhd

import "log"

// dumpRanks is the diagnostic sink gated by Config.DumpRanks. It only
// reads classes/handle state and logs a summary; it never writes back
// into hitDensities, hits, or evictions, per spec.md §4.8 and §9.
//
// For each class it logs the total hits and evictions and truncatedAt:
// the first age whose hit density, divided by the average resident
// object size (ConsumedCapacity/NumObjects), is zero while less than
// 0.01 of the class's event mass remains at higher ages (-1 if none).
// The per-age densities themselves are not printed.
func (r *Ranker) dumpRanks() {
	numObjects := r.handle.NumObjects()
	if numObjects == 0 {
		return
	}
	avgSize := float64(r.handle.ConsumedCapacity()) / float64(numObjects)
	if avgSize <= 0 {
		avgSize = 1
	}

	for ci := range r.classes {
		cl := &r.classes[ci]
		left := cl.totalHits + cl.totalEvictions
		truncatedAt := -1
		for a := 0; a < len(cl.hitDensities); a++ {
			density := cl.hitDensities[a] / avgSize
			left -= cl.hits[a] + cl.evictions[a]
			if density == 0 && left < 1e-2 {
				truncatedAt = a
				break
			}
		}
		log.Printf("lhd: class %d hits=%g evictions=%g truncatedAt=%d",
			ci, cl.totalHits, cl.totalEvictions, truncatedAt)
	}
}
