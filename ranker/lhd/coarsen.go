package lhd

// adaptAgeCoarsening is the coarsening controller from spec.md §4.9. It
// tracks an EWMA of the resident object count and, only at
// numReconfigurations == 5 or 25, recomputes the coarsening shift and
// rescales every class's histograms plus every resident tag's
// timestamp to match.
func (r *Ranker) adaptAgeCoarsening() {
	r.ewmaNumObjects *= r.cfg.EwmaDecay
	r.ewmaNumObjectsMass *= r.cfg.EwmaDecay
	r.ewmaNumObjects += float64(r.handle.NumObjects())
	r.ewmaNumObjectsMass += 1

	numObjects := r.ewmaNumObjects / r.ewmaNumObjectsMass
	optimal := numObjects / (r.cfg.AgeCoarseningErrorTolerance * float64(r.cfg.MaxAge))

	if r.numReconfigurations != coarseningScheduleFirst && r.numReconfigurations != coarseningScheduleSecond {
		return
	}

	shift := coarseningShiftFor(optimal)
	delta := int64(shift) - int64(r.ageCoarseningShift)
	r.ageCoarseningShift = shift

	// Inflate the EWMA mass to delay the next adjustment.
	r.ewmaNumObjects *= coarseningRebaseFactor
	r.ewmaNumObjectsMass *= coarseningRebaseFactor

	if delta == 0 {
		return
	}

	for i := range r.classes {
		rescaleClass(&r.classes[i], delta, r.cfg.MaxAge)
	}

	// The reference implementation shifts every tag timestamp by delta
	// unconditionally, which under two's-complement semantics happens to
	// equal a right-shift by -delta on the stretch path. We case-split
	// explicitly instead, per spec.md §4.9's open question, since Go
	// shift counts must be unsigned and an implicit two's-complement
	// reinterpretation would be the wrong kind of "faithful".
	if delta < 0 {
		shiftAmount := uint32(-delta)
		for i := range r.tags.tags {
			r.tags.tags[i].timestamp >>= shiftAmount
		}
	} else {
		shiftAmount := uint32(delta)
		for i := range r.tags.tags {
			r.tags.tags[i].timestamp <<= shiftAmount
		}
	}
}

// coarseningShiftFor returns the smallest non-negative integer s such
// that 2^s >= optimal, per spec.md §4.9.
func coarseningShiftFor(optimal float64) uint32 {
	var s uint32
	for float64(uint64(1)<<s) < optimal {
		s++
	}
	return s
}

// rescaleClass folds or splits a class's histograms to approximate the
// new coarsening shift, per spec.md §4.9. delta < 0 stretches (each old
// bin now covers fewer real ages); delta > 0 compresses.
func rescaleClass(cl *class, delta int64, maxAge uint32) {
	if delta < 0 {
		stretchClass(cl, uint32(-delta), maxAge)
	} else {
		compressClass(cl, uint32(delta), maxAge)
	}
}

func stretchClass(cl *class, d, maxAge uint32) {
	// Fold bins beyond the new reach into the last bin.
	start := maxAge >> d
	for a := start; a <= maxAge-2; a++ {
		cl.hits[maxAge-1] += cl.hits[a]
		cl.evictions[maxAge-1] += cl.evictions[a]
	}
	// Sweep downward, dividing each old bin's mass across the 2^d new
	// bins that now map to it. Reading cl.hits[a>>d] before it is
	// overwritten requires processing a from high to low, since a>>d < a.
	div := float64(uint64(1) << d)
	for a := int64(maxAge) - 2; a >= 0; a-- {
		src := uint32(a) >> d
		cl.hits[a] = cl.hits[src] / div
		cl.evictions[a] = cl.evictions[src] / div
	}
}

func compressClass(cl *class, d, maxAge uint32) {
	limit := maxAge >> d
	span := uint32(1) << d
	for a := uint32(0); a < limit; a++ {
		var h, e float64
		base := a << d
		for i := uint32(0); i < span; i++ {
			h += cl.hits[base+i]
			e += cl.evictions[base+i]
		}
		cl.hits[a] = h
		cl.evictions[a] = e
	}
	for a := limit; a < maxAge-1; a++ {
		cl.hits[a] = 0
		cl.evictions[a] = 0
	}
}
